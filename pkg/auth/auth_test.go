package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/models"
	"github.com/mcclellann/loantracker/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testOTP = "321456"

func newTestService(t *testing.T) (*Service, store.Storage) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "auth_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	svc := NewService(s, nil, Options{Secret: "test-secret", TTL: time.Hour, StaticOTP: testOTP, Cost: bcrypt.MinCost})
	return svc, s
}

func seedUser(t *testing.T, s store.Storage, mobile string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		ID:        uuid.New(),
		UserName:  mobile,
		FullName:  "Maria Santos",
		FirstName: "Maria",
		LastName:  "Santos",
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestLoginFlow_FirstTimeUser(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	user := seedUser(t, s, "09170000001", models.RoleClient)

	res, err := svc.Login(ctx, "09170000001")
	require.NoError(t, err)
	assert.True(t, res.RequiresMPINSetup)
	assert.Empty(t, res.Token)

	_, err = svc.VerifyOTP(ctx, "09170000001", "000000")
	assert.ErrorIs(t, err, ErrInvalidOTP)

	res, err = svc.VerifyOTP(ctx, "09170000001", testOTP)
	require.NoError(t, err)
	assert.True(t, res.RequiresMPINSetup)
	assert.Empty(t, res.Token)

	_, err = svc.CreateMPIN(ctx, "09170000001", testOTP, "12a4")
	assert.ErrorIs(t, err, ErrMPINFormat)

	res, err = svc.CreateMPIN(ctx, "09170000001", testOTP, "1234")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)

	id, err := svc.ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)
	assert.Equal(t, models.RoleClient, id.Role)

	_, err = svc.CreateMPIN(ctx, "09170000001", testOTP, "9999")
	assert.ErrorIs(t, err, ErrMPINAlreadySet)

	stored, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "1234", stored.MPINHash, "MPIN is stored hashed")
}

func TestMPINLogin(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	user := seedUser(t, s, "09170000002", models.RoleClerk)

	_, err := svc.MPINLogin(ctx, "09170000002", "1234")
	assert.ErrorIs(t, err, ErrMPINNotSet)

	require.NoError(t, svc.ChangeMPIN(ctx, user.ID, "4321"))

	_, err = svc.MPINLogin(ctx, "09170000002", "1234")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := svc.MPINLogin(ctx, "09170000002", "4321")
	require.NoError(t, err)
	assert.Equal(t, models.RoleClerk, res.Role)
	assert.NotEmpty(t, res.Token)

	_, err = svc.MPINLogin(ctx, "09179999999", "4321")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.Login(ctx, "09179999999")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.ErrorIs(t, svc.ChangeMPIN(ctx, uuid.New(), "1111"), ErrUserNotFound)
}

func TestParseToken_Rejects(t *testing.T) {
	svc, _ := newTestService(t)
	user := &models.User{ID: uuid.New(), Role: models.RoleAdmin}

	token, _, err := svc.IssueToken(user)
	require.NoError(t, err)

	other := NewService(nil, nil, Options{Secret: "another-secret"})
	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := svc.IssueToken(user)
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.ParseToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ParseToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentity(t *testing.T) {
	owner := uuid.New()
	client := &Identity{UserID: owner, Role: models.RoleClient}
	clerk := &Identity{UserID: uuid.New(), Role: models.RoleClerk}

	assert.True(t, client.CanView(owner))
	assert.False(t, client.CanView(uuid.New()))
	assert.True(t, clerk.CanView(owner))
	assert.False(t, client.IsStaff())

	var none *Identity
	assert.False(t, none.HasRole(models.RoleClient))

	ctx := WithIdentity(context.Background(), clerk)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, clerk, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestValidMPIN(t *testing.T) {
	assert.True(t, ValidMPIN("0000"))
	assert.False(t, ValidMPIN("123"))
	assert.False(t, ValidMPIN("12345"))
	assert.False(t, ValidMPIN("１２３４"))
}
