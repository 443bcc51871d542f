package models

import "time"

// Role distinguishes regular members from the system administrator.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Member is an authenticatable principal. The private key is stored only in
// wrapped form (base64 of the symmetric-cipher output); the salt is
// generated once at creation and never changes.
type Member struct {
	ID          string
	AccountName string
	Salt        string
	// WrappedPrivateKey is the member's RSA private key, encrypted under a
	// key derived from the member's credential and Salt, base64-encoded.
	WrappedPrivateKey string
	// PublicKey is the PEM-armored public half of the key pair.
	PublicKey string
	Role      Role
	Active    bool
	CreatedAt time.Time
	ChangedAt time.Time
}

// IsAdmin reports whether the member is the system administrator.
func (m *Member) IsAdmin() bool {
	return m.Role == RoleAdmin
}
