package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/circlekeep/circlekeep/internal/common"
	"github.com/circlekeep/circlekeep/internal/cryptox"
	"github.com/circlekeep/circlekeep/internal/logging"
	sc "github.com/circlekeep/circlekeep/internal/server/config"
	"github.com/circlekeep/circlekeep/internal/server/keeper"
	"github.com/circlekeep/circlekeep/internal/server/models"
	"github.com/circlekeep/circlekeep/internal/server/repositories/repomanager"
	"github.com/circlekeep/circlekeep/internal/server/trust"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Seams for testing the S3 interactions without a live endpoint.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putS3Object = func(ctx context.Context, client *s3.Client, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return client.PutObject(ctx, in)
	}

	getS3Object = func(ctx context.Context, client *s3.Client, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return client.GetObject(ctx, in)
	}
)

// ObjectService stores and retrieves encrypted data objects. Payloads are
// encrypted under the circle key and the ciphertext kept in S3-compatible
// storage; metadata (storage key, checksum, nonce) lives in PostgreSQL.
type ObjectService struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	authorizer *keeper.Authorizer
	config     *sc.Config
	logger     logging.Logger
}

func NewObjectService(db *sql.DB, repos repomanager.RepositoryManager, authorizer *keeper.Authorizer, cfg *sc.Config, logger logging.Logger) *ObjectService {
	return &ObjectService{db: db, repos: repos, authorizer: authorizer, config: cfg, logger: logger}
}

// randomStorageKey returns a date-partitioned unique object key.
func randomStorageKey(circleID string) string {
	d := time.Now()
	return fmt.Sprintf("circles/%s/%d/%02d/%v", circleID, d.Year(), d.Month(), uuid.New())
}

func (s *ObjectService) s3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// PutObject encrypts plaintext under the circle key and stores it: the
// ciphertext goes to object storage, the metadata row (with the ciphertext
// checksum for the integrity scanner) to the database. Requires Write on
// the circle.
func (s *ObjectService) PutObject(ctx context.Context, req keeper.Request, circleID, name string, plaintext []byte) (*models.DataObject, error) {
	authz, err := s.authorizer.AuthorizeRequest(ctx, req, trust.ActionWriteObject, circleID)
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

	ciphertext, nonce, err := cryptox.EncryptPayload(circleKey, plaintext)
	if err != nil {
		return nil, err
	}

	client, err := s.s3Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	storageKey := randomStorageKey(circleID)
	_, err = putS3Object(ctx, client, &s3.PutObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(storageKey),
		Body:   bytes.NewReader(ciphertext),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 put: %w", err)
	}

	object := &models.DataObject{
		CircleID:   circleID,
		Name:       name,
		StorageKey: storageKey,
		Checksum:   cryptox.Checksum(ciphertext),
		Nonce:      nonce,
	}
	created, err := s.repos.Objects(s.db).Create(ctx, object)
	if err != nil {
		return nil, fmt.Errorf("creating object: %w", err)
	}

	s.logger.Info(ctx, "object stored", "circle", circleID, "object", name)
	return created, nil
}

// GetObject fetches the ciphertext, verifies its checksum, and decrypts it
// with the circle key from the caller's grant. Requires Read on the circle.
func (s *ObjectService) GetObject(ctx context.Context, req keeper.Request, circleID, name string) ([]byte, error) {
	authz, err := s.authorizer.AuthorizeRequest(ctx, req, trust.ActionReadObject, circleID)
	if err != nil {
		return nil, err
	}
	defer authz.Close()

	object, err := s.repos.Objects(s.db).GetByCircleAndName(ctx, circleID, name)
	if err != nil {
		return nil, fmt.Errorf("object lookup: %w", err)
	}

	client, err := s.s3Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	out, err := getS3Object(ctx, client, &s3.GetObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(object.StorageKey),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get: %w", err)
	}
	defer out.Body.Close()

	ciphertext, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read: %w", err)
	}

	if cryptox.Checksum(ciphertext) != object.Checksum {
		return nil, fmt.Errorf("object %s: checksum mismatch", name)
	}

	circleKey, err := circleKeyFromContext(authz, circleID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(circleKey)

	return cryptox.DecryptPayload(circleKey, object.Nonce, ciphertext)
}

// ListObjects returns the metadata rows for a circle. Requires Read.
func (s *ObjectService) ListObjects(ctx context.Context, req keeper.Request, circleID string) ([]*models.DataObject, error) {
	authz, err := s.authorizer.AuthorizeRequest(ctx, req, trust.ActionReadObject, circleID)
	if err != nil {
		return nil, err
	}
	defer authz.Close()

	return s.repos.Objects(s.db).ListByCircle(ctx, circleID)
}
