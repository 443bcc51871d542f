package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/circlekeep/circlekeep/internal/common"
	"github.com/circlekeep/circlekeep/internal/cryptox"
	"github.com/circlekeep/circlekeep/internal/dbx"
	"github.com/circlekeep/circlekeep/internal/logging"
	"github.com/circlekeep/circlekeep/internal/server/config"
	"github.com/circlekeep/circlekeep/internal/server/keeper"
	"github.com/circlekeep/circlekeep/internal/server/models"
	"github.com/circlekeep/circlekeep/internal/server/repositories/circles"
	"github.com/circlekeep/circlekeep/internal/server/repositories/members"
	"github.com/circlekeep/circlekeep/internal/server/repositories/objects"
	"github.com/circlekeep/circlekeep/internal/server/repositories/trustees"
	"github.com/circlekeep/circlekeep/internal/server/trust"
	"github.com/stretchr/testify/require"
)

type fakeMembersRepo struct {
	mu     sync.Mutex
	byName map[string]*models.Member
}

func newFakeMembersRepo() *fakeMembersRepo {
	return &fakeMembersRepo{byName: map[string]*models.Member{}}
}

func (f *fakeMembersRepo) Create(ctx context.Context, m *models.Member) (*models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[m.AccountName]; ok {
		return nil, common.ErrorAlreadyExists
	}
	m.ID = m.AccountName
	m.CreatedAt = time.Now()
	f.byName[m.AccountName] = m
	return m, nil
}

func (f *fakeMembersRepo) GetByAccountName(ctx context.Context, name string) (*models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.byName[name]; ok {
		return m, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeMembersRepo) GetByAccountNameAndCircle(ctx context.Context, name, circleID string) (*models.Member, error) {
	return nil, common.ErrorNotFound
}

func (f *fakeMembersRepo) Update(ctx context.Context, m *models.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byName[m.AccountName] = m
	return nil
}

func (f *fakeMembersRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, m := range f.byName {
		if m.ID == id {
			delete(f.byName, name)
			return nil
		}
	}
	return common.ErrorNotFound
}

type fakeTrusteesRepo struct {
	rows []*models.Trustee
}

func (f *fakeTrusteesRepo) ListByMember(ctx context.Context, memberID string) ([]*models.Trustee, error) {
	var out []*models.Trustee
	for _, r := range f.rows {
		if r.MemberID == memberID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeTrusteesRepo) ListByMemberAndCircle(ctx context.Context, memberID, circleID string) ([]*models.Trustee, error) {
	var out []*models.Trustee
	for _, r := range f.rows {
		if r.MemberID == memberID && r.CircleID == circleID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeTrusteesRepo) Create(ctx context.Context, tr *models.Trustee) (*models.Trustee, error) {
	for _, r := range f.rows {
		if r.MemberID == tr.MemberID && r.CircleID == tr.CircleID {
			return nil, common.ErrorAlreadyExists
		}
	}
	tr.ID = tr.MemberID + "/" + tr.CircleID
	f.rows = append(f.rows, tr)
	return tr, nil
}

func (f *fakeTrusteesRepo) UpdateLevel(ctx context.Context, memberID, circleID, level string) error {
	return nil
}

func (f *fakeTrusteesRepo) Delete(ctx context.Context, memberID, circleID string) error {
	for i, r := range f.rows {
		if r.MemberID == memberID && r.CircleID == circleID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

type fakeCirclesRepo struct {
	byID map[string]*models.Circle
}

func newFakeCirclesRepo() *fakeCirclesRepo {
	return &fakeCirclesRepo{byID: map[string]*models.Circle{}}
}

func (f *fakeCirclesRepo) Create(ctx context.Context, c *models.Circle) (*models.Circle, error) {
	c.ID = "circle-" + c.Name
	c.CreatedAt = time.Now()
	f.byID[c.ID] = c
	return c, nil
}

func (f *fakeCirclesRepo) GetByID(ctx context.Context, id string) (*models.Circle, error) {
	if c, ok := f.byID[id]; ok {
		return c, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeCirclesRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeObjectsRepo struct {
	rows []*models.DataObject
}

func (f *fakeObjectsRepo) Create(ctx context.Context, o *models.DataObject) (*models.DataObject, error) {
	o.ID = o.CircleID + "/" + o.Name
	o.CreatedAt = time.Now()
	f.rows = append(f.rows, o)
	return o, nil
}

func (f *fakeObjectsRepo) GetByCircleAndName(ctx context.Context, circleID, name string) (*models.DataObject, error) {
	for _, r := range f.rows {
		if r.CircleID == circleID && r.Name == name {
			return r, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeObjectsRepo) ListByCircle(ctx context.Context, circleID string) ([]*models.DataObject, error) {
	var out []*models.DataObject
	for _, r := range f.rows {
		if r.CircleID == circleID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeObjectsRepo) Delete(ctx context.Context, id string) error {
	for i, r := range f.rows {
		if r.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

type fakeRepoManager struct {
	m *fakeMembersRepo
	t *fakeTrusteesRepo
	c *fakeCirclesRepo
	o *fakeObjectsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		m: newFakeMembersRepo(),
		t: &fakeTrusteesRepo{},
		c: newFakeCirclesRepo(),
		o: &fakeObjectsRepo{},
	}
}

func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (f *fakeRepoManager) Members(dbx.DBTX) members.Repository          { return f.m }
func (f *fakeRepoManager) Trustees(dbx.DBTX) trustees.Repository        { return f.t }
func (f *fakeRepoManager) Circles(dbx.DBTX) circles.Repository          { return f.c }
func (f *fakeRepoManager) Objects(dbx.DBTX) objects.Repository          { return f.o }

// --- helpers ---

func testConfig() *config.Config {
	return &config.Config{
		AdminAccountName:             "admin",
		SessionSecretKey:             "test-secret",
		SessionTokenValidityDuration: time.Hour,
		S3Bucket:                     "circlekeep-test",
		S3Region:                     "us-east-1",
	}
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func newTestAuthorizer(rm *fakeRepoManager) *keeper.Authorizer {
	return keeper.NewAuthorizer(nil, rm, testConfig(), testLogger())
}

// seedMember registers a member whose private key is wrapped under the key
// derived from the passphrase, and returns the member plus the raw key
// pair for assertions.
func seedMember(t *testing.T, rm *fakeRepoManager, name, passphrase string, role models.Role) (*models.Member, *cryptox.KeyPair) {
	t.Helper()

	salt, err := common.MakeRandHexString(16)
	require.NoError(t, err)
	kp, err := cryptox.GenerateKeyPair()
	require.NoError(t, err)

	symKey := cryptox.DeriveKeyFromPassphrase([]byte(passphrase), salt)
	wrapped, err := cryptox.WrapPrivateKey(kp, symKey, salt)
	require.NoError(t, err)
	armored, err := cryptox.Armor(kp.Public)
	require.NoError(t, err)

	m, err := rm.m.Create(context.Background(), &models.Member{
		AccountName:       name,
		Salt:              salt,
		WrappedPrivateKey: wrapped,
		PublicKey:         armored,
		Role:              role,
		Active:            true,
	})
	require.NoError(t, err)
	return m, kp
}

// grantCircle creates a circle and a trustee row wrapping a fresh circle
// key under the member's public key. Returns the circle key for use in
// further grants.
func grantCircle(t *testing.T, rm *fakeRepoManager, member *models.Member, kp *cryptox.KeyPair, circleID string, level trust.Level) []byte {
	t.Helper()

	rm.c.byID[circleID] = &models.Circle{ID: circleID, Name: circleID}

	circleKey := common.GenerateRandByteArray(32)
	wrapped, err := cryptox.EncryptAsymmetric(kp.Public, circleKey)
	require.NoError(t, err)

	_, err = rm.t.Create(context.Background(), &models.Trustee{
		MemberID:         member.ID,
		CircleID:         circleID,
		Level:            level,
		WrappedCircleKey: wrapped,
	})
	require.NoError(t, err)
	return circleKey
}

func passphraseRequest(account, secret string) keeper.Request {
	return &keeper.CredentialRequest{
		Account: account,
		Secret:  []byte(secret),
		Type:    keeper.CredentialPassphrase,
	}
}
