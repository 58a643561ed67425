package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/tweet-graph/internal/audit"
	"github.com/weiawesome/tweet-graph/internal/domain"
	"github.com/weiawesome/tweet-graph/internal/store"
	"github.com/weiawesome/tweet-graph/pkg/jwt"
	pkglog "github.com/weiawesome/tweet-graph/pkg/log"
)

// ErrInvalidCredentials is returned for an unknown username or a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Authenticator turns credentials into tokens and tokens into callers.
type Authenticator struct {
	index  store.IdentityIndex
	users  store.UserRecordStore
	tokens *jwt.Manager
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(index store.IdentityIndex, users store.UserRecordStore, tokens *jwt.Manager) *Authenticator {
	return &Authenticator{index: index, users: users, tokens: tokens}
}

// SignIn checks the password against the stored bcrypt hash and issues a
// token pair.
func (a *Authenticator) SignIn(ctx context.Context, username, password string) (*jwt.TokenPair, error) {
	l := pkglog.Ctx(ctx)

	if domain.IsBlank(username) || domain.IsBlank(password) {
		return nil, domain.ErrEmptyInput
	}

	id, ok, err := a.index.Lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	user, ok, err := a.users.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		l.Warn().Int64(pkglog.FieldUserID, id).Msg("indexed username has no user record")
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		audit.Log(ctx, audit.ActionSignInFailed, id, "sign-in failed: wrong password")
		return nil, ErrInvalidCredentials
	}

	pair, err := a.tokens.GenerateTokenPair(user.ID, user.Username)
	if err != nil {
		l.Error().Err(err).Int64(pkglog.FieldUserID, user.ID).Msg("failed to generate tokens")
		return nil, err
	}

	audit.Log(ctx, audit.ActionSignIn, user.ID, "user signed in")
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair carrying the current
// username.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	claims, err := a.tokens.ValidateToken(refreshToken, jwt.TypeRefresh)
	if err != nil {
		return nil, err
	}

	user, ok, err := a.users.Read(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	pair, err := a.tokens.GenerateTokenPair(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.ActionRefreshToken, user.ID, "tokens refreshed")
	return pair, nil
}

// SignOut revokes every token issued to the caller so far.
func (a *Authenticator) SignOut(ctx context.Context, caller domain.Caller) error {
	if !caller.Authenticated() {
		return domain.ErrNotAuthenticated
	}

	a.tokens.RevokeUserTokens(caller.UserID)
	audit.Log(ctx, audit.ActionSignOut, caller.UserID, "user signed out")
	return nil
}
