package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"medchat/internal/models"
)

// Login authenticates and stores the resulting session.
func (t *Transport) Login(ctx context.Context, username, password string) (*models.PublicUser, error) {
	env, err := t.do(ctx, http.MethodPost, "/auth/login", models.LoginUserRequest{Username: username, Password: password}, false)
	if err != nil {
		return nil, err
	}

	var res models.LoginResponse
	if err := decode("data", env.Data, &res); err != nil {
		return nil, err
	}
	if res.Token == "" || res.User == nil {
		return nil, &ProtocolError{Reason: "login response without token or user"}
	}
	if err := t.session.SetAuthData(res.Token, res.User); err != nil {
		return nil, fmt.Errorf("Login: saving session: %w", err)
	}
	t.logger.Info("signed in", zap.String("username", res.User.Username), zap.Stringer("role", res.User.Role))
	return res.User, nil
}

// Logout tells the server and clears the local session. The session is
// cleared even when the request fails.
func (t *Transport) Logout(ctx context.Context) error {
	_, reqErr := t.do(ctx, http.MethodPost, "/auth/logout", nil, true)
	if err := t.session.Clear(); err != nil {
		return fmt.Errorf("Logout: clearing session: %w", err)
	}

	var authErr *AuthError
	if reqErr != nil && !errors.As(reqErr, &authErr) {
		t.logger.Warn("logout request failed", zap.Error(reqErr))
		return reqErr
	}
	return nil
}

// Profile returns the signed-in user as the server sees it.
func (t *Transport) Profile(ctx context.Context) (*models.PublicUser, error) {
	env, err := t.do(ctx, http.MethodGet, "/auth/profile", nil, true)
	if err != nil {
		return nil, err
	}
	var u models.PublicUser
	if err := decode("data", env.Data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
