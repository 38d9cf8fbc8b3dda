// Package models holds the server-side data structures backed by Postgres.
package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// File is one shared file's metadata row. The bytes themselves live in the
// object store under StorageKey; this row carries everything the sharing UI
// and the cleanup sweep need.
type File struct {
	ID           string
	OwnerID      string
	FileName     string
	StorageKey   string
	Size         int64
	ContentType  string
	PasswordHash string
	BatchID      string
	Downloads    int64
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// SetPassword stores a bcrypt hash of pw on the row. An empty pw clears the
// protection.
func (f *File) SetPassword(pw string) error {
	if pw == "" {
		f.PasswordHash = ""
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	f.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether pw unlocks the row. Rows without a hash are
// open to anyone holding the link.
func (f *File) CheckPassword(pw string) bool {
	if f.PasswordHash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(f.PasswordHash), []byte(pw)) == nil
}

// Expired reports whether the row's expiry has passed as of now.
func (f *File) Expired(now time.Time) bool {
	return !f.ExpiresAt.IsZero() && f.ExpiresAt.Before(now)
}
