// Package domain contains entities without logic, just meta-data.
package domain

type UserID string

// Status is the derived presence of a user, computed from live
// connection count.
type Status string

const (
	StatusOnline  Status = "ONLINE"
	StatusOffline Status = "OFFLINE"
)

// UserSummary is the public profile attached to relayed events.
// It is resolved through the user directory, never stored here.
type UserSummary struct {
	ID          UserID `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}
