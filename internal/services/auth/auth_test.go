package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/budgetapp/budget-api/internal/domain/models"
	"github.com/budgetapp/budget-api/internal/lib/jwt"
	"github.com/budgetapp/budget-api/internal/storage"
	"github.com/budgetapp/budget-api/internal/storage/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ UserSaver    = (*sqlstore.Storage)(nil)
	_ UserProvider = (*sqlstore.Storage)(nil)
	_ UserDeleter  = (*sqlstore.Storage)(nil)

	_ UserProvider = (*FakeUserStorage)(nil)
)

// FakeUserStorage keeps users in memory.
type FakeUserStorage struct {
	users  map[int64]models.User
	nextID int64

	// saveErr, when set, is returned by SaveUser to simulate a uniqueness race.
	saveErr error
}

func NewFakeUserStorage() *FakeUserStorage {
	return &FakeUserStorage{users: make(map[int64]models.User), nextID: 1}
}

func (fs *FakeUserStorage) SaveUser(ctx context.Context, email, username string, passHash []byte) (models.User, error) {
	if fs.saveErr != nil {
		return models.User{}, fs.saveErr
	}
	user := models.User{
		ID:           fs.nextID,
		Email:        email,
		Username:     username,
		PasswordHash: string(passHash),
		CreatedAt:    time.Now().UTC(),
	}
	fs.users[user.ID] = user
	fs.nextID++
	return user, nil
}

func (fs *FakeUserStorage) UserByUsername(ctx context.Context, username string) (models.User, error) {
	for _, u := range fs.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

func (fs *FakeUserStorage) UserByEmail(ctx context.Context, email string) (models.User, error) {
	for _, u := range fs.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

func (fs *FakeUserStorage) DeleteUser(ctx context.Context, id int64) error {
	if _, ok := fs.users[id]; !ok {
		return storage.ErrUserNotFound
	}
	delete(fs.users, id)
	return nil
}

func newTestAuth(fs *FakeUserStorage) (*Auth, *jwt.Codec) {
	codec := jwt.NewCodec("test-secret", time.Minute)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, fs, fs, fs, codec, 0), codec
}

func TestRegister(t *testing.T) {
	fs := NewFakeUserStorage()
	a, _ := newTestAuth(fs)

	user, err := a.Register(context.Background(), "alice@example.com", "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Empty(t, user.PasswordHash)

	stored := fs.users[user.ID]
	assert.NotEqual(t, "secret", stored.PasswordHash)
	assert.NotEmpty(t, stored.PasswordHash)
}

func TestRegisterDuplicates(t *testing.T) {
	fs := NewFakeUserStorage()
	a, _ := newTestAuth(fs)

	_, err := a.Register(context.Background(), "alice@example.com", "alice", "secret")
	require.NoError(t, err)

	_, err = a.Register(context.Background(), "alice@example.com", "alice", "secret")
	assert.ErrorIs(t, err, ErrDuplicateEmail, "email is checked first")

	_, err = a.Register(context.Background(), "other@example.com", "alice", "secret")
	assert.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestRegisterStorageRace(t *testing.T) {
	fs := NewFakeUserStorage()
	a, _ := newTestAuth(fs)

	fs.saveErr = storage.ErrEmailExists
	_, err := a.Register(context.Background(), "alice@example.com", "alice", "secret")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	fs.saveErr = storage.ErrUsernameExists
	_, err = a.Register(context.Background(), "alice@example.com", "alice", "secret")
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	fs.saveErr = errors.New("connection reset")
	_, err = a.Register(context.Background(), "alice@example.com", "alice", "secret")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateEmail)
}

func TestLogin(t *testing.T) {
	fs := NewFakeUserStorage()
	a, codec := newTestAuth(fs)

	_, err := a.Register(context.Background(), "alice@example.com", "alice", "secret")
	require.NoError(t, err)

	token, err := a.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "bearer", token.TokenType)

	claims, err := codec.Decode(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	_, err = a.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.Login(context.Background(), "bob", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate(t *testing.T) {
	fs := NewFakeUserStorage()
	a, codec := newTestAuth(fs)

	registered, err := a.Register(context.Background(), "alice@example.com", "alice", "secret")
	require.NoError(t, err)

	good, err := codec.Encode("alice", 0)
	require.NoError(t, err)
	user, err := a.Authenticate(context.Background(), good)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	expired, err := codec.Encode("alice", -time.Minute)
	require.NoError(t, err)
	noSubject, err := codec.Encode("", 0)
	require.NoError(t, err)
	unknown, err := codec.Encode("bob", 0)
	require.NoError(t, err)
	wrongKey, err := jwt.NewCodec("other-secret", time.Minute).Encode("alice", 0)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":    expired,
		"no subject": noSubject,
		"unknown":    unknown,
		"wrong key":  wrongKey,
		"malformed":  "not.a.jwt",
		"empty":      "",
	} {
		_, err := a.Authenticate(context.Background(), token)
		assert.ErrorIs(t, err, ErrUnauthorized, name)
	}
}

func TestDeleteAccount(t *testing.T) {
	fs := NewFakeUserStorage()
	a, codec := newTestAuth(fs)

	user, err := a.Register(context.Background(), "alice@example.com", "alice", "secret")
	require.NoError(t, err)

	token, err := codec.Encode("alice", 0)
	require.NoError(t, err)

	require.NoError(t, a.DeleteAccount(context.Background(), user))

	_, err = a.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = a.DeleteAccount(context.Background(), user)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
