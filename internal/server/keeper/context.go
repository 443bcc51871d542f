package keeper

import (
	"github.com/circlekeep/circlekeep/internal/cryptox"
	"github.com/circlekeep/circlekeep/internal/server/models"
)

// Context is the result of a successful pipeline run: the resolved member,
// its unwrapped key pair, the trustee rows consulted for the authorization
// decision (possibly empty for administrator or circle-free actions), and a
// short-lived session token.
//
// A Context is owned by the request-processing scope that obtained it and
// must be Closed when that scope ends.
type Context struct {
	Member       *models.Member
	KeyPair      *cryptox.KeyPair
	Trustees     []*models.Trustee
	SessionToken string
}

// Close discards the unwrapped key material. Private key integers are
// zeroed where feasible; the Context must not be used afterwards.
func (c *Context) Close() {
	if c.KeyPair != nil && c.KeyPair.Private != nil {
		priv := c.KeyPair.Private
		priv.D.SetInt64(0)
		for _, p := range priv.Primes {
			p.SetInt64(0)
		}
	}
	c.KeyPair = nil
}
