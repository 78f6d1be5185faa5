package models

import "time"

// Folder is a node in a user's folder tree. Parent references form the
// hierarchy; cycle prevention is enforced with an ancestor walk before
// any reparenting.
type Folder struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	Name      string    `json:"name"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FolderRequest is the JSON body for folder create and update calls.
type FolderRequest struct {
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id,omitempty"`
}
