// Package audit records administrative and account actions.
package audit

import "time"

type Action string

const (
	ActionRegister        Action = "register"
	ActionLogin           Action = "user_login"
	ActionEmailVerified   Action = "email_verified"
	ActionPasswordReset   Action = "password_reset"
	ActionPasswordChange  Action = "password_change"
	ActionProfileUpdate   Action = "profile_update"
	ActionAvatarUpload    Action = "avatar_upload"
	ActionAvatarDelete    Action = "avatar_delete"
	ActionAdminUserUpdate Action = "admin_user_update"
	ActionAdminUserDelete Action = "admin_user_delete"
)

const ResourceUser = "user"

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Entry is a new audit record. UserID is the actor.
type Entry struct {
	Action       Action
	ResourceType string
	ResourceID   string
	UserID       string
	OldValues    map[string]any
	NewValues    map[string]any
	Metadata     map[string]any
}

type Record struct {
	ID           string         `json:"id"`
	Action       Action         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   *string        `json:"resource_id"`
	UserID       string         `json:"user_id"`
	UserEmail    string         `json:"user_email,omitempty"`
	UserName     string         `json:"user_name,omitempty"`
	OldValues    map[string]any `json:"old_values"`
	NewValues    map[string]any `json:"new_values"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Filter narrows Search. Action matches as a case-insensitive substring.
type Filter struct {
	Action       string
	ResourceType string
	UserID       string
	Since        *time.Time
	Until        *time.Time
	Limit        int
	Offset       int
}

type ActionCount struct {
	Action Action `json:"action"`
	Count  int    `json:"count"`
}

type Stats struct {
	TotalLogs      int           `json:"total_logs"`
	ActionsCount   []ActionCount `json:"actions_count"`
	RecentActivity []Record      `json:"recent_activity"`
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}
