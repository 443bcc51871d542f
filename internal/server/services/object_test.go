package services

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/circlekeep/circlekeep/internal/common"
	"github.com/circlekeep/circlekeep/internal/server/keeper"
	"github.com/circlekeep/circlekeep/internal/server/models"
	"github.com/circlekeep/circlekeep/internal/server/trust"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStorage replaces the S3 seams with an in-memory bucket and restores
// them when the test finishes.
func stubStorage(t *testing.T) map[string][]byte {
	t.Helper()

	bucket := map[string][]byte{}

	origLoad := loadDefaultAWSConfig
	origPut := putS3Object
	origGet := getS3Object
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		putS3Object = origPut
		getS3Object = origGet
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	putS3Object = func(ctx context.Context, client *s3.Client, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		data, err := io.ReadAll(in.Body)
		if err != nil {
			return nil, err
		}
		bucket[*in.Key] = data
		return &s3.PutObjectOutput{}, nil
	}
	getS3Object = func(ctx context.Context, client *s3.Client, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		data, ok := bucket[*in.Key]
		if !ok {
			return nil, common.ErrorNotFound
		}
		return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
	}

	return bucket
}

func newObjectService(rm *fakeRepoManager) *ObjectService {
	return NewObjectService(nil, rm, newTestAuthorizer(rm), testConfig(), testLogger())
}

func TestPutGetObjectRoundTrip(t *testing.T) {
	bucket := stubStorage(t)
	rm := newFakeRepoManager()
	svc := newObjectService(rm)
	alice, kp := seedMember(t, rm, "alice", "alice-pw", models.RoleMember)
	grantCircle(t, rm, alice, kp, "c1", trust.Write)

	plaintext := []byte("the payload never leaves the server unencrypted")
	object, err := svc.PutObject(context.Background(), passphraseRequest("alice", "alice-pw"), "c1", "notes", plaintext)
	require.NoError(t, err)
	assert.NotEmpty(t, object.StorageKey)
	assert.Len(t, object.Checksum, 64)
	assert.NotEmpty(t, object.Nonce)

	// Only ciphertext reaches storage.
	stored, ok := bucket[object.StorageKey]
	require.True(t, ok)
	assert.NotEqual(t, plaintext, stored)
	assert.NotContains(t, string(stored), "payload")

	decrypted, err := svc.GetObject(context.Background(), passphraseRequest("alice", "alice-pw"), "c1", "notes")
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestPutObjectRequiresWrite(t *testing.T) {
	stubStorage(t)
	rm := newFakeRepoManager()
	svc := newObjectService(rm)
	bob, kp := seedMember(t, rm, "bob", "bob-pw", models.RoleMember)
	grantCircle(t, rm, bob, kp, "c1", trust.Read)

	_, err := svc.PutObject(context.Background(), passphraseRequest("bob", "bob-pw"), "c1", "notes", []byte("x"))
	assert.ErrorIs(t, err, keeper.ErrAuthorization)
}

func TestPutObjectUnknownCircle(t *testing.T) {
	stubStorage(t)
	rm := newFakeRepoManager()
	svc := newObjectService(rm)
	seedMember(t, rm, "admin", "admin-pw", models.RoleAdmin)

	_, err := svc.PutObject(context.Background(), passphraseRequest("admin", "admin-pw"), "nowhere", "notes", []byte("x"))
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetObjectChecksumMismatch(t *testing.T) {
	bucket := stubStorage(t)
	rm := newFakeRepoManager()
	svc := newObjectService(rm)
	alice, kp := seedMember(t, rm, "alice", "alice-pw", models.RoleMember)
	grantCircle(t, rm, alice, kp, "c1", trust.Write)

	object, err := svc.PutObject(context.Background(), passphraseRequest("alice", "alice-pw"), "c1", "notes", []byte("payload"))
	require.NoError(t, err)

	// Corrupt the stored ciphertext behind the metadata's back.
	bucket[object.StorageKey] = append(bucket[object.StorageKey], 0xFF)

	_, err = svc.GetObject(context.Background(), passphraseRequest("alice", "alice-pw"), "c1", "notes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestListObjects(t *testing.T) {
	stubStorage(t)
	rm := newFakeRepoManager()
	svc := newObjectService(rm)
	alice, kp := seedMember(t, rm, "alice", "alice-pw", models.RoleMember)
	grantCircle(t, rm, alice, kp, "c1", trust.Write)
	seedMember(t, rm, "mallory", "mallory-pw", models.RoleMember)

	req := passphraseRequest("alice", "alice-pw")
	_, err := svc.PutObject(context.Background(), req, "c1", "one", []byte("1"))
	require.NoError(t, err)
	_, err = svc.PutObject(context.Background(), req, "c1", "two", []byte("2"))
	require.NoError(t, err)

	list, err := svc.ListObjects(context.Background(), req, "c1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = svc.ListObjects(context.Background(), passphraseRequest("mallory", "mallory-pw"), "c1")
	assert.ErrorIs(t, err, keeper.ErrAuthorization)
}
