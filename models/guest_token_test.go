package models

import (
	"encoding/json"
	"testing"
)

func TestNewGuestTokenRequest(t *testing.T) {
	got, err := json.Marshal(NewGuestTokenRequest("abc123"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"resources":[{"type":"dashboard","id":"abc123"}],"rls":[],"user":{"username":"guest","first_name":"Guest","last_name":"User"}}`
	if string(got) != want {
		t.Errorf("payload mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestConnectionConfigPublicHidesPassword(t *testing.T) {
	cfg := ConnectionConfig{Domain: "http://localhost:8088", Username: "admin", Password: "secret", DashboardID: "abc"}

	raw, err := json.Marshal(cfg.Public())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := fields["password"]; ok {
		t.Error("public connection must not expose password")
	}
	if fields["has_password"] != true {
		t.Error("expected has_password=true")
	}
}
