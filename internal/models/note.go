// Package models defines the domain types for Dagaz.
package models

import "time"

// Note is a single outliner record. ParentID is a tree-edge pointer; nil marks a root.
// Position only has meaning relative to notes sharing the same ParentID.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ParentID  *string   `json:"parent_id"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated"`
}

// ParentKey returns the parent id, or "" for roots.
func (n Note) ParentKey() string {
	if n.ParentID == nil {
		return ""
	}
	return *n.ParentID
}

// IsRoot reports whether the note declares no parent.
func (n Note) IsRoot() bool {
	return n.ParentKey() == ""
}

// Ref returns a pointer to a copy of id, or nil when id is empty.
// Handy for building nullable parent references.
func Ref(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

// SameParent reports whether two nullable parent references point at the same note.
func SameParent(a, b *string) bool {
	ak, bk := "", ""
	if a != nil {
		ak = *a
	}
	if b != nil {
		bk = *b
	}
	return ak == bk
}
