package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/budgetapp/budget-api/internal/domain/models"
	"github.com/budgetapp/budget-api/internal/lib/jwt"
	"github.com/budgetapp/budget-api/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

const tokenTypeBearer = "bearer"

var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrUnauthorized       = errors.New("could not validate credentials")
)

type UserSaver interface {
	SaveUser(ctx context.Context, email, username string, passHash []byte) (models.User, error)
}

type UserProvider interface {
	UserByUsername(ctx context.Context, username string) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
}

type UserDeleter interface {
	DeleteUser(ctx context.Context, id int64) error
}

type Auth struct {
	log          *slog.Logger
	userSaver    UserSaver
	userProvider UserProvider
	userDeleter  UserDeleter
	tokens       *jwt.Codec
	tokenTTL     time.Duration
}

// New returns the auth service. A zero tokenTTL uses the codec default.
func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	userDeleter UserDeleter,
	tokens *jwt.Codec,
	tokenTTL time.Duration,
) *Auth {
	return &Auth{
		log:          log,
		userSaver:    userSaver,
		userProvider: userProvider,
		userDeleter:  userDeleter,
		tokens:       tokens,
		tokenTTL:     tokenTTL,
	}
}

// Register creates a new user. Email uniqueness is checked before username.
func (a *Auth) Register(ctx context.Context, email, username, password string) (models.User, error) {
	const op = "services.auth.Register"

	log := a.log.With(slog.String("op", op), slog.String("username", username))

	if _, err := a.userProvider.UserByEmail(ctx, email); err == nil {
		return models.User{}, ErrDuplicateEmail
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := a.userProvider.UserByUsername(ctx, username); err == nil {
		return models.User{}, ErrDuplicateUsername
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", slog.Any("error", err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.userSaver.SaveUser(ctx, email, username, passHash)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrEmailExists):
			return models.User{}, ErrDuplicateEmail
		case errors.Is(err, storage.ErrUsernameExists):
			return models.User{}, ErrDuplicateUsername
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.Int64("uid", user.ID))

	user.PasswordHash = ""
	return user, nil
}

// Login checks the credentials and issues a bearer token whose subject is
// the username.
func (a *Auth) Login(ctx context.Context, username, password string) (models.Token, error) {
	const op = "services.auth.Login"

	log := a.log.With(slog.String("op", op), slog.String("username", username))

	user, err := a.userProvider.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return models.Token{}, ErrInvalidCredentials
		}
		return models.Token{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Warn("invalid credentials")
		return models.Token{}, ErrInvalidCredentials
	}

	token, err := a.tokens.Encode(user.Username, a.tokenTTL)
	if err != nil {
		return models.Token{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in")

	return models.Token{AccessToken: token, TokenType: tokenTypeBearer}, nil
}

// Authenticate resolves a bearer token to its user. Any failure, including
// a subject that no longer exists, is ErrUnauthorized.
func (a *Auth) Authenticate(ctx context.Context, token string) (models.User, error) {
	const op = "services.auth.Authenticate"

	log := a.log.With(slog.String("op", op))

	claims, err := a.tokens.Decode(token)
	if err != nil {
		log.Warn("token rejected", slog.Any("error", err))
		return models.User{}, ErrUnauthorized
	}

	if claims.Subject == "" {
		log.Warn("token has no subject")
		return models.User{}, ErrUnauthorized
	}

	user, err := a.userProvider.UserByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("token subject not found", slog.String("username", claims.Subject))
			return models.User{}, ErrUnauthorized
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// DeleteAccount removes the user and every transaction it owns.
func (a *Auth) DeleteAccount(ctx context.Context, user models.User) error {
	const op = "services.auth.DeleteAccount"

	if err := a.userDeleter.DeleteUser(ctx, user.ID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrUnauthorized
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	a.log.Info("account deleted", slog.String("op", op), slog.Int64("uid", user.ID))

	return nil
}
