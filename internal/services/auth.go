package services

import (
	"context"
	"fmt"
	"net/http"

	"moneyguard/internal/apierr"
	"moneyguard/internal/cache"
	"moneyguard/internal/core"
	"moneyguard/internal/httpclient"
	"moneyguard/internal/log"
	"moneyguard/internal/query"
	"moneyguard/internal/session"
)

const (
	loginFallback    = "Invalid email or password."
	registerFallback = "Registration failed."
)

// AuthService signs users in and out and keeps the session current.
type AuthService struct {
	client  query.Doer
	session *session.State
	cache   *cache.Store
	logger  *log.Logger
}

func NewAuthService(client query.Doer, state *session.State, store *cache.Store, logger *log.Logger) *AuthService {
	if logger == nil {
		logger = log.Discard()
	}
	return &AuthService{
		client:  client,
		session: state,
		cache:   store,
		logger:  logger.WithComponent(log.ComponentSession),
	}
}

// Login validates the form, signs in and persists the session. Failures carry
// the server message or "Invalid email or password.".
func (s *AuthService) Login(ctx context.Context, in core.LoginInput) (core.User, error) {
	if err := in.Validate(); err != nil {
		return core.User{}, apierr.Validation(err)
	}

	var rec session.AuthRecord
	err := doJSON(ctx, s.client, httpclient.Request{
		Method: http.MethodPost,
		Path:   "auth/sign-in",
		Body:   map[string]string{"email": in.Email, "password": in.Password},
	}, &rec)
	if err == nil && rec.Token == "" {
		err = fmt.Errorf("sign-in response without token")
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Login failed", log.NewFields().WithOperation(log.OpLogin).WithError(err).ToSlice()...)
		return core.User{}, apierr.WithFallback(err, loginFallback)
	}

	// results cached for a previous user must not leak
	s.cache.Clear()
	if err := s.session.Save(ctx, rec); err != nil {
		return core.User{}, err
	}
	s.logger.InfoContext(ctx, "Logged in", "email", rec.User.Email)
	return rec.User, nil
}

// Register creates an account. It does not sign the user in.
func (s *AuthService) Register(ctx context.Context, in core.RegisterInput) (core.User, error) {
	if err := in.Validate(); err != nil {
		return core.User{}, apierr.Validation(err)
	}

	var rec session.AuthRecord
	err := doJSON(ctx, s.client, httpclient.Request{
		Method: http.MethodPost,
		Path:   "auth/sign-up",
		Body: map[string]string{
			"username": in.Name,
			"email":    in.Email,
			"password": in.Password,
		},
	}, &rec)
	if err != nil {
		s.logger.WarnContext(ctx, "Registration failed", log.NewFields().WithOperation(log.OpRegister).WithError(err).ToSlice()...)
		return core.User{}, apierr.WithFallback(err, registerFallback)
	}

	user := rec.User
	if user.Email == "" {
		user = core.User{Username: in.Name, Email: in.Email}
	}
	return user, nil
}

// Logout forgets the session and every cached result.
func (s *AuthService) Logout(ctx context.Context) error {
	s.cache.Clear()
	if err := s.session.Clear(ctx); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Logged out")
	return nil
}

// CurrentUser returns the signed-in user.
func (s *AuthService) CurrentUser() (core.User, bool) {
	return s.session.User()
}
