package models

import (
	"time"

	"github.com/circlekeep/circlekeep/internal/server/trust"
)

// Trustee is a member's access grant to one circle. At most one row exists
// per (member, circle) pair. WrappedCircleKey is the circle's symmetric key
// encrypted under the member's public key.
type Trustee struct {
	ID               string
	MemberID         string
	CircleID         string
	Level            trust.Level
	WrappedCircleKey []byte
	CreatedAt        time.Time
	ChangedAt        time.Time
}
