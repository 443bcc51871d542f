package models

import "time"

// Circle is a shared key-domain. The circle key itself is never stored
// here; it exists only wrapped inside trustee rows.
type Circle struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
