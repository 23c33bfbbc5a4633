package models

const (
	ResourceTypeDashboard = "dashboard"

	GuestUsername  = "guest"
	GuestFirstName = "Guest"
	GuestLastName  = "User"
)

// GuestToken is an opaque short-lived credential scoped to one dashboard.
type GuestToken string

type GuestTokenRequest struct {
	Resources []GuestResource `json:"resources"`
	RLS       []RLSRule       `json:"rls"`
	User      GuestUser       `json:"user"`
}

type GuestResource struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type RLSRule struct {
	Clause  string `json:"clause"`
	Dataset int    `json:"dataset,omitempty"`
}

type GuestUser struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// NewGuestTokenRequest builds the guest token payload for a dashboard.
// It depends on the dashboard id only, never on the real account.
func NewGuestTokenRequest(dashboardID string) GuestTokenRequest {
	return GuestTokenRequest{
		Resources: []GuestResource{{Type: ResourceTypeDashboard, ID: dashboardID}},
		RLS:       []RLSRule{},
		User: GuestUser{
			Username:  GuestUsername,
			FirstName: GuestFirstName,
			LastName:  GuestLastName,
		},
	}
}
