package svc

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"

	"pastrio/metrics"
	"pastrio/pkg/domain"
	"pastrio/svc/auth"
	"pastrio/svc/db"
	"pastrio/svc/session"
	"pastrio/svc/util"
)

const (
	minPasswordLength = 8
	maxUsernameLength = 64
)

// Auth is the session gate: it owns the Anonymous/Authenticated transition.
// A valid session token mapping to a user id is the sole authenticated state.
type Auth struct {
	store    *db.Store
	sessions session.Store
	hasher   *auth.Hasher
	ttl      time.Duration
}

func NewAuth(store *db.Store, sessions session.Store, hasher *auth.Hasher, ttl time.Duration) *Auth {
	if store == nil || sessions == nil || hasher == nil {
		panic("auth service: nil dependency (store, sessions, or hasher)")
	}
	return &Auth{store: store, sessions: sessions, hasher: hasher, ttl: ttl}
}

// normalizeUsername trims and NFC-normalizes so visually identical usernames
// cannot coexist as distinct accounts.
func normalizeUsername(username string) string {
	return norm.NFC.String(strings.TrimSpace(username))
}

// Register creates the account and establishes a session in one step.
// Username uniqueness is ultimately enforced by the store's unique index; the
// pre-check only produces a friendlier error for the common case.
func (a *Auth) Register(ctx context.Context, username, password string) (string, *domain.User, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return "", nil, domain.ErrInvalidRequest
	}
	if len(username) > maxUsernameLength || len(password) < minPasswordLength {
		return "", nil, domain.ErrInvalidRequest
	}
	if _, err := a.store.FindUserByUsername(ctx, username); err == nil {
		metrics.AuthFailures.WithLabelValues("duplicate_username").Inc()
		return "", nil, domain.ErrDuplicateUsername
	} else if !errors.Is(err, db.ErrUserNotFound) {
		return "", nil, errors.Wrap(err, "register lookup")
	}
	hash, err := a.hasher.Hash(password)
	if err != nil {
		return "", nil, errors.Wrap(err, "hash password")
	}
	now := time.Now().UTC()
	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.InsertUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateUsername) {
			metrics.AuthFailures.WithLabelValues("duplicate_username").Inc()
			return "", nil, domain.ErrDuplicateUsername
		}
		return "", nil, errors.Wrap(err, "insert user")
	}
	token, err := a.establishSession(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}
	util.Info().Str("username", username).Msg("user registered")
	return token, user, nil
}

// Login verifies credentials and establishes a session. Unknown usernames
// burn a dummy verification so response timing does not reveal whether the
// account exists; both failure modes collapse to InvalidCredentials.
func (a *Auth) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}
	user, err := a.store.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			a.hasher.VerifyDummy()
			metrics.AuthFailures.WithLabelValues("unknown_user").Inc()
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, errors.Wrap(err, "login lookup")
	}
	match, err := a.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return "", nil, errors.Wrap(err, "verify password")
	}
	if !match {
		metrics.AuthFailures.WithLabelValues("bad_password").Inc()
		return "", nil, domain.ErrInvalidCredentials
	}
	token, err := a.establishSession(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}
	util.Info().Str("username", username).Msg("user logged in")
	return token, user, nil
}

// Logout destroys the session; an unknown token is a no-op.
func (a *Auth) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return a.sessions.Destroy(ctx, token)
}

// Authenticate resolves a session token to its payload, or AuthRequired.
func (a *Auth) Authenticate(ctx context.Context, token string) (*domain.SessionData, error) {
	if token == "" {
		return nil, domain.ErrAuthRequired
	}
	data, err := a.sessions.Get(ctx, token)
	if err != nil {
		return nil, errors.Wrap(err, "session lookup")
	}
	if data == nil {
		return nil, domain.ErrAuthRequired
	}
	return data, nil
}

// CurrentUser loads the account behind an authenticated session.
func (a *Auth) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	data, err := a.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := a.store.FindUserByID(ctx, data.UserID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			// Account deleted out from under a live session.
			return nil, domain.ErrAuthRequired
		}
		return nil, errors.Wrap(err, "load current user")
	}
	return user, nil
}

func (a *Auth) establishSession(ctx context.Context, userID int64) (string, error) {
	token, err := util.NewSessionToken()
	if err != nil {
		return "", err
	}
	if err := a.sessions.Set(ctx, token, domain.SessionData{UserID: userID}, a.ttl); err != nil {
		return "", errors.Wrap(err, "establish session")
	}
	metrics.SessionCreated.Inc()
	return token, nil
}

// SessionTTL is exposed so the HTTP layer can align the cookie max-age with
// the server-side window.
func (a *Auth) SessionTTL() time.Duration {
	return a.ttl
}
