package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/circlekeep/circlekeep/internal/common"
	"github.com/circlekeep/circlekeep/internal/cryptox"
	"github.com/circlekeep/circlekeep/internal/logging"
	"github.com/circlekeep/circlekeep/internal/server/keeper"
	"github.com/circlekeep/circlekeep/internal/server/models"
	"github.com/circlekeep/circlekeep/internal/server/repositories/repomanager"
	"github.com/circlekeep/circlekeep/internal/server/trust"
)

const saltSize = 16

// MemberService handles member lifecycle: creation, credential changes,
// invalidation, and deletion. Creation, invalidation, and deletion are
// administrator (Sysop) operations; credential changes are self-service.
type MemberService struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	authorizer *keeper.Authorizer
	logger     logging.Logger
}

func NewMemberService(db *sql.DB, repos repomanager.RepositoryManager, authorizer *keeper.Authorizer, logger logging.Logger) *MemberService {
	return &MemberService{db: db, repos: repos, authorizer: authorizer, logger: logger}
}

// CreateMember provisions a new member: fresh salt and key pair, private
// key wrapped under a key derived from the initial credential.
func (s *MemberService) CreateMember(ctx context.Context, adminReq keeper.Request, accountName string, credential []byte, credType keeper.CredentialType) (*models.Member, error) {
	authz, err := s.authorizer.AuthorizeRequest(ctx, adminReq, trust.ActionCreateMember, "")
	if err != nil {
		return nil, err
	}
	defer authz.Close()

	salt, err := common.MakeRandHexString(saltSize)
	if err != nil {
		return nil, fmt.Errorf("salt generation: %w", err)
	}
	keyPair, err := cryptox.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	symKey := deriveKey(credential, credType, salt)
	defer common.WipeByteArray(symKey)

	wrapped, err := cryptox.WrapPrivateKey(keyPair, symKey, salt)
	if err != nil {
		return nil, err
	}
	armored, err := cryptox.Armor(keyPair.Public)
	if err != nil {
		return nil, err
	}

	member := &models.Member{
		AccountName:       accountName,
		Salt:              salt,
		WrappedPrivateKey: wrapped,
		PublicKey:         armored,
		Role:              models.RoleMember,
		Active:            true,
	}

	created, err := s.repos.Members(s.db).Create(ctx, member)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("creating member: %w", err)
	}

	s.logger.Info(ctx, "member created", "account", accountName)
	return created, nil
}

// ChangeCredentials re-wraps the member's existing key pair under a key
// derived from the new credential. The key pair and the salt stay the
// same, so existing circle-key grants keep working.
func (s *MemberService) ChangeCredentials(ctx context.Context, req keeper.Request, newCredential []byte, newType keeper.CredentialType) error {
	authz, err := s.authorizer.AuthorizeRequest(ctx, req, trust.ActionLogin, "")
	if err != nil {
		return err
	}
	defer authz.Close()

	member := authz.Member

	symKey := deriveKey(newCredential, newType, member.Salt)
	defer common.WipeByteArray(symKey)

	wrapped, err := cryptox.WrapPrivateKey(authz.KeyPair, symKey, member.Salt)
	if err != nil {
		return err
	}

	member.WrappedPrivateKey = wrapped
	if err := s.repos.Members(s.db).Update(ctx, member); err != nil {
		return fmt.Errorf("updating member: %w", err)
	}

	s.logger.Info(ctx, "credentials changed", "account", member.AccountName)
	return nil
}

// Invalidate replaces the member's key pair entirely. Existing circle-key
// grants become undecryptable until an administrator re-issues them.
func (s *MemberService) Invalidate(ctx context.Context, adminReq keeper.Request, accountName string, newCredential []byte, newType keeper.CredentialType) error {
	authz, err := s.authorizer.AuthorizeRequest(ctx, adminReq, trust.ActionDeleteMember, "")
	if err != nil {
		return err
	}
	defer authz.Close()

	repo := s.repos.Members(s.db)
	member, err := repo.GetByAccountName(ctx, accountName)
	if err != nil {
		return fmt.Errorf("member lookup: %w", err)
	}

	keyPair, err := cryptox.GenerateKeyPair()
	if err != nil {
		return err
	}

	symKey := deriveKey(newCredential, newType, member.Salt)
	defer common.WipeByteArray(symKey)

	wrapped, err := cryptox.WrapPrivateKey(keyPair, symKey, member.Salt)
	if err != nil {
		return err
	}
	armored, err := cryptox.Armor(keyPair.Public)
	if err != nil {
		return err
	}

	member.WrappedPrivateKey = wrapped
	member.PublicKey = armored
	if err := repo.Update(ctx, member); err != nil {
		return fmt.Errorf("updating member: %w", err)
	}

	s.logger.Warn(ctx, "member invalidated", "account", accountName)
	return nil
}

// DeleteMember removes the member record; trustee rows cascade away.
func (s *MemberService) DeleteMember(ctx context.Context, adminReq keeper.Request, accountName string) error {
	authz, err := s.authorizer.AuthorizeRequest(ctx, adminReq, trust.ActionDeleteMember, "")
	if err != nil {
		return err
	}
	defer authz.Close()

	repo := s.repos.Members(s.db)
	member, err := repo.GetByAccountName(ctx, accountName)
	if err != nil {
		return fmt.Errorf("member lookup: %w", err)
	}

	if err := repo.Delete(ctx, member.ID); err != nil {
		return fmt.Errorf("deleting member: %w", err)
	}

	s.logger.Info(ctx, "member deleted", "account", accountName)
	return nil
}

func deriveKey(credential []byte, credType keeper.CredentialType, salt string) []byte {
	if credType == keeper.CredentialRawKey {
		return cryptox.DeriveKeyFromRawKey(credential)
	}
	return cryptox.DeriveKeyFromPassphrase(credential, salt)
}
