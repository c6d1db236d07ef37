package model

import "time"

// Category is a user-managed label an aggregate can be filed under. It is
// never written by reconciliation, only by the user-facing edit operation.
type Category struct {
	CreatedAt time.Time
	Name      string
	ID        int64
}
