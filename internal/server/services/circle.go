package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/circlekeep/circlekeep/internal/common"
	"github.com/circlekeep/circlekeep/internal/cryptox"
	"github.com/circlekeep/circlekeep/internal/dbx"
	"github.com/circlekeep/circlekeep/internal/logging"
	"github.com/circlekeep/circlekeep/internal/server/keeper"
	"github.com/circlekeep/circlekeep/internal/server/models"
	"github.com/circlekeep/circlekeep/internal/server/repositories/repomanager"
	"github.com/circlekeep/circlekeep/internal/server/trust"
)

const circleKeySize = 32

// CircleService manages circles and their trustee grants. The circle key
// exists in plaintext only transiently inside these operations; at rest it
// lives wrapped under member public keys in trustee rows.
type CircleService struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	authorizer *keeper.Authorizer
	logger     logging.Logger
}

func NewCircleService(db *sql.DB, repos repomanager.RepositoryManager, authorizer *keeper.Authorizer, logger logging.Logger) *CircleService {
	return &CircleService{db: db, repos: repos, authorizer: authorizer, logger: logger}
}

// CreateCircle creates a circle with a fresh symmetric key and grants the
// creator Admin, all in one transaction.
func (s *CircleService) CreateCircle(ctx context.Context, req keeper.Request, name string) (*models.Circle, error) {
	authz, err := s.authorizer.AuthorizeRequest(ctx, req, trust.ActionCreateCircle, "")
	if err != nil {
		return nil, err
	}
	defer authz.Close()

	circleKey := common.GenerateRandByteArray(circleKeySize)
	defer common.WipeByteArray(circleKey)

	wrappedKey, err := cryptox.EncryptAsymmetric(authz.KeyPair.Public, circleKey)
	if err != nil {
		return nil, err
	}

	circle := &models.Circle{Name: name}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repos.Circles(tx).Create(ctx, circle)
		if err != nil {
			return err
		}
		circle = created

		_, err = s.repos.Trustees(tx).Create(ctx, &models.Trustee{
			MemberID:         authz.Member.ID,
			CircleID:         circle.ID,
			Level:            trust.Admin,
			WrappedCircleKey: wrappedKey,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating circle: %w", err)
	}

	s.logger.Info(ctx, "circle created", "circle", circle.ID, "creator", authz.Member.AccountName)
	return circle, nil
}

// AddTrustee grants a member access to a circle at the given level. The
// granting admin unwraps the circle key with their own private key and
// re-wraps it under the new member's public key.
func (s *CircleService) AddTrustee(ctx context.Context, req keeper.Request, circleID, accountName string, level trust.Level) (*models.Trustee, error) {
	if level == trust.Sysop {
		return nil, keeper.ErrAuthorization
	}

	authz, err := s.authorizer.AuthorizeRequest(ctx, req, trust.ActionAddTrustee, circleID)
	if err != nil {
		return nil, err
	}
	defer authz.Close()

	if _, err := s.repos.Circles(s.db).GetByID(ctx, circleID); err != nil {
		return nil, fmt.Errorf("circle lookup: %w", err)
	}

	circleKey, err := circleKeyFromContext(authz, circleID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(circleKey)

	target, err := s.repos.Members(s.db).GetByAccountName(ctx, accountName)
	if err != nil {
		return nil, fmt.Errorf("member lookup: %w", err)
	}

	targetPub, err := cryptox.Unarmor(target.PublicKey)
	if err != nil {
		return nil, err
	}
	wrappedKey, err := cryptox.EncryptAsymmetric(targetPub, circleKey)
	if err != nil {
		return nil, err
	}

	trustee, err := s.repos.Trustees(s.db).Create(ctx, &models.Trustee{
		MemberID:         target.ID,
		CircleID:         circleID,
		Level:            level,
		WrappedCircleKey: wrappedKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating trustee: %w", err)
	}

	s.logger.Info(ctx, "trustee added", "circle", circleID, "account", accountName, "level", level.String())
	return trustee, nil
}

// RemoveTrustee revokes a member's grant on a circle.
func (s *CircleService) RemoveTrustee(ctx context.Context, req keeper.Request, circleID, accountName string) error {
	authz, err := s.authorizer.AuthorizeRequest(ctx, req, trust.ActionRemoveTrustee, circleID)
	if err != nil {
		return err
	}
	defer authz.Close()

	target, err := s.repos.Members(s.db).GetByAccountName(ctx, accountName)
	if err != nil {
		return fmt.Errorf("member lookup: %w", err)
	}

	if err := s.repos.Trustees(s.db).Delete(ctx, target.ID, circleID); err != nil {
		return fmt.Errorf("deleting trustee: %w", err)
	}

	s.logger.Info(ctx, "trustee removed", "circle", circleID, "account", accountName)
	return nil
}

// DeleteCircle removes the circle; trustee rows and object metadata
// cascade away.
func (s *CircleService) DeleteCircle(ctx context.Context, req keeper.Request, circleID string) error {
	authz, err := s.authorizer.AuthorizeRequest(ctx, req, trust.ActionDeleteCircle, circleID)
	if err != nil {
		return err
	}
	defer authz.Close()

	if err := s.repos.Circles(s.db).Delete(ctx, circleID); err != nil {
		return fmt.Errorf("deleting circle: %w", err)
	}

	s.logger.Info(ctx, "circle deleted", "circle", circleID)
	return nil
}
