package keeper

import (
	"errors"
	"fmt"
)

// The pipeline fails with exactly one of these typed errors. They are
// terminal: no stage retries, and no error is ever downgraded into another
// category. Callers translate them into their own response envelopes and
// must not expose internal messages to remote clients.
var (
	// ErrIdentification: the account name resolves to no member and is not
	// the bootstrap-eligible administrator name.
	ErrIdentification = errors.New("account could not be identified")

	// ErrAuthentication: the credential does not unlock the account. Every
	// cryptographic failure during the possession proof collapses into
	// this value so callers cannot distinguish corrupt stored data from a
	// wrong credential.
	ErrAuthentication = errors.New("credentials could not be verified")

	// ErrAuthorization: account resolved and credentials proven, but the
	// held trust level does not satisfy the action.
	ErrAuthorization = errors.New("insufficient trust level")
)

// VerificationError reports a structurally invalid request. It carries the
// full field-to-message map, not just the first failure, and is returned
// before any storage or crypto work happens.
type VerificationError struct {
	Fields map[string]string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("request verification failed: %d invalid field(s)", len(e.Fields))
}
