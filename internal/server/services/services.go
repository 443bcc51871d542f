// Package services contains the business operations built on top of the
// authorization pipeline: member lifecycle, circle management, and
// encrypted data-object handling. Every operation authorizes its request
// through keeper.Authorizer before touching any state.
package services

import (
	"github.com/circlekeep/circlekeep/internal/common"
	"github.com/circlekeep/circlekeep/internal/cryptox"
	"github.com/circlekeep/circlekeep/internal/server/keeper"
)

// circleKeyFromContext unwraps the circle's symmetric key from the
// authorized context's trustee grant for the circle. The administrator
// bypasses trustee checks in the pipeline, so an administrator without a
// grant of their own lands here with no matching trustee and cannot unwrap
// the key; that is the circle-scoped existence check the pipeline defers to
// business logic.
func circleKeyFromContext(authz *keeper.Context, circleID string) ([]byte, error) {
	for _, t := range authz.Trustees {
		if t.CircleID == circleID {
			return cryptox.DecryptAsymmetric(authz.KeyPair.Private, t.WrappedCircleKey)
		}
	}
	return nil, common.ErrorUnauthorized
}
