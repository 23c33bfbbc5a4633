package models

type Message struct {
	Channel   string `json:"channel"`
	Event     string `json:"event"`
	RequestID string `json:"request_id,omitempty"`

	Command map[string]string      `json:"command,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
