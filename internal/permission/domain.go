package permission

import "time"

// Permission is a catalog entry. The ID doubles as the natural key and by
// convention has the form "action:resource"; the shape is not validated,
// ids without a colon are stored with an empty resource name.
type Permission struct {
	ID           string
	Action       string
	ResourceName string
	Description  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserPermission links a catalog entry to a user.
type UserPermission struct {
	ID           int64
	UserID       int64
	PermissionID string
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewPermission is the insert payload for a catalog entry.
type NewPermission struct {
	ID           string
	Action       string
	ResourceName string
	Description  string
}

// NewUserPermission is the insert payload for a grant.
type NewUserPermission struct {
	UserID       int64
	PermissionID string
	CreatedBy    string
}
