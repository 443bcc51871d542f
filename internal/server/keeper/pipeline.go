// Package keeper implements the authentication and authorization pipeline
// every request passes through before business logic runs: structural
// verification, account resolution (with administrator bootstrap),
// credential-to-key derivation with a possession-proof round-trip, and the
// trust-level authorization decision.
//
// The pipeline is a strict linear sequence. Each stage either passes its
// result forward or fails with a typed error; there are no retries inside
// the pipeline (the single bootstrap re-resolution under race is the one
// exception, per the storage idempotence contract). An Authorizer keeps no
// per-request state and is safe for concurrent use.
package keeper

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"

	"github.com/circlekeep/circlekeep/internal/common"
	"github.com/circlekeep/circlekeep/internal/cryptox"
	"github.com/circlekeep/circlekeep/internal/logging"
	"github.com/circlekeep/circlekeep/internal/server/auth"
	"github.com/circlekeep/circlekeep/internal/server/config"
	"github.com/circlekeep/circlekeep/internal/server/models"
	"github.com/circlekeep/circlekeep/internal/server/repositories/repomanager"
	"github.com/circlekeep/circlekeep/internal/server/trust"
)

const saltSize = 16

// Authorizer runs the pipeline. Construct once with NewAuthorizer and share
// across requests; all state lives in the arguments and return values.
type Authorizer struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	config *config.Config
	logger logging.Logger
}

func NewAuthorizer(db *sql.DB, repos repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *Authorizer {
	return &Authorizer{db: db, repos: repos, config: cfg, logger: logger}
}

// AuthorizeRequest verifies, identifies, authenticates, and authorizes one
// request against the action's required trust level. circleID is an
// optional scoping hint; it narrows lookups but never decides authorization
// by itself. On success the returned Context is fully populated; on failure
// the error is one of the typed values in errors.go.
func (a *Authorizer) AuthorizeRequest(ctx context.Context, req Request, action trust.Action, circleID string) (*Context, error) {
	// Stage 1: structural verification, always before any storage access.
	if fields := req.Validate(); len(fields) > 0 {
		return nil, &VerificationError{Fields: fields}
	}

	// Stage 2: account resolution, with the one-time administrator
	// bootstrap path.
	member, err := a.resolveAccount(ctx, req, circleID)
	if err != nil {
		return nil, err
	}

	// Stage 3: credential verification via the possession proof.
	keyPair, err := a.proveCredential(req, member)
	if err != nil {
		return nil, err
	}

	// Stage 4: trust-level authorization.
	trusteeList, err := a.authorize(ctx, member, action, circleID)
	if err != nil {
		return nil, err
	}

	token, err := auth.GenerateToken(member.ID, []byte(a.config.SessionSecretKey), a.config.SessionTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("session token: %w", err)
	}

	a.logger.Info(ctx, "request authorized", "account", member.AccountName, "action", string(action))

	return &Context{
		Member:       member,
		KeyPair:      keyPair,
		Trustees:     trusteeList,
		SessionToken: token,
	}, nil
}

// resolveAccount looks the member up by account name. A circle hint narrows
// the lookup for non-administrator accounts, but a scoped miss falls back
// to the unscoped lookup so the hint can never cause a spurious
// identification failure.
func (a *Authorizer) resolveAccount(ctx context.Context, req Request, circleID string) (*models.Member, error) {
	name := req.AccountName()
	repo := a.repos.Members(a.db)

	if circleID != "" && name != a.config.AdminAccountName {
		member, err := repo.GetByAccountNameAndCircle(ctx, name, circleID)
		if err == nil {
			return member, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("member lookup: %w", err)
		}
	}

	member, err := repo.GetByAccountName(ctx, name)
	if err == nil {
		return member, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("member lookup: %w", err)
	}

	if name == a.config.AdminAccountName {
		return a.bootstrapAdmin(ctx, req)
	}

	// Burn a derivation on a throwaway salt so unknown accounts cost the
	// same as known ones.
	if req.CredentialType() == CredentialPassphrase {
		salt, _ := common.MakeRandHexString(saltSize)
		common.WipeByteArray(cryptox.DeriveKeyFromPassphrase(req.Credential(), salt))
	}
	return nil, ErrIdentification
}

// bootstrapAdmin creates the reserved administrator account on its first
// authentication: fresh salt and key pair, private key wrapped under the
// key derived from the submitted credential. Losing a concurrent creation
// race is not an error; the loser re-resolves the winner's record.
func (a *Authorizer) bootstrapAdmin(ctx context.Context, req Request) (*models.Member, error) {
	salt, err := common.MakeRandHexString(saltSize)
	if err != nil {
		return nil, fmt.Errorf("bootstrap salt: %w", err)
	}

	keyPair, err := cryptox.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("bootstrap key pair: %w", err)
	}

	symKey := a.deriveKey(req, salt)
	defer common.WipeByteArray(symKey)

	wrapped, err := cryptox.WrapPrivateKey(keyPair, symKey, salt)
	if err != nil {
		return nil, fmt.Errorf("bootstrap wrap: %w", err)
	}
	armored, err := cryptox.Armor(keyPair.Public)
	if err != nil {
		return nil, fmt.Errorf("bootstrap armor: %w", err)
	}

	member := &models.Member{
		AccountName:       a.config.AdminAccountName,
		Salt:              salt,
		WrappedPrivateKey: wrapped,
		PublicKey:         armored,
		Role:              models.RoleAdmin,
		Active:            true,
	}

	repo := a.repos.Members(a.db)
	created, err := repo.Create(ctx, member)
	if err == nil {
		a.logger.Info(ctx, "administrator account bootstrapped")
		return created, nil
	}
	if errors.Is(err, common.ErrorAlreadyExists) {
		// Lost the race: another request created the administrator first.
		return repo.GetByAccountName(ctx, a.config.AdminAccountName)
	}
	return nil, fmt.Errorf("bootstrap persist: %w", err)
}

// proveCredential derives the symmetric key from the submitted credential,
// unwraps the stored private key, and proves possession by encrypting a
// random nonce with the candidate public key and decrypting it with the
// candidate private key. The round-trip is mandatory: symmetric decryption
// with a wrong key garbles the private key silently, and only the
// asymmetric round-trip detects it.
func (a *Authorizer) proveCredential(req Request, member *models.Member) (*cryptox.KeyPair, error) {
	symKey := a.deriveKey(req, member.Salt)
	defer common.WipeByteArray(symKey)

	keyPair, err := cryptox.ExtractKeyPair(member.WrappedPrivateKey, member.PublicKey, symKey, member.Salt)
	if err != nil {
		return nil, ErrAuthentication
	}

	nonce, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, ErrAuthentication
	}

	challenge, err := cryptox.EncryptAsymmetric(keyPair.Public, []byte(nonce))
	if err != nil {
		return nil, ErrAuthentication
	}
	response, err := cryptox.DecryptAsymmetric(keyPair.Private, challenge)
	if err != nil {
		return nil, ErrAuthentication
	}

	if subtle.ConstantTimeCompare([]byte(nonce), response) != 1 {
		return nil, ErrAuthentication
	}

	return keyPair, nil
}

// authorize resolves the member's held trust against the action's required
// level. Sysop actions demand the administrator; the administrator bypasses
// trustee lookups for everything else (circle existence stays a business
// service concern); regular members need at least one satisfying trustee
// row, scoped to the circle hint when present.
func (a *Authorizer) authorize(ctx context.Context, member *models.Member, action trust.Action, circleID string) ([]*models.Trustee, error) {
	required := trust.RequiredLevel(action)

	if required == trust.Sysop {
		if member.IsAdmin() {
			return nil, nil
		}
		return nil, ErrAuthorization
	}

	if member.IsAdmin() {
		return nil, nil
	}

	repo := a.repos.Trustees(a.db)

	var (
		trusteeList []*models.Trustee
		err         error
	)
	if circleID != "" {
		trusteeList, err = repo.ListByMemberAndCircle(ctx, member.ID, circleID)
	} else {
		trusteeList, err = repo.ListByMember(ctx, member.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("trustee lookup: %w", err)
	}

	for _, t := range trusteeList {
		if trust.IsAllowed(t.Level, required) {
			return trusteeList, nil
		}
	}
	return nil, ErrAuthorization
}

func (a *Authorizer) deriveKey(req Request, salt string) []byte {
	if req.CredentialType() == CredentialRawKey {
		return cryptox.DeriveKeyFromRawKey(req.Credential())
	}
	return cryptox.DeriveKeyFromPassphrase(req.Credential(), salt)
}
