package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persiashop/storefront-backend/api/middleware"
	"github.com/persiashop/storefront-backend/internal/users"
	"github.com/persiashop/storefront-backend/pkg/auth"
	"github.com/persiashop/storefront-backend/pkg/auth/session"
	"github.com/persiashop/storefront-backend/pkg/config"
)

var sessionJWT = config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 10}

type fakeSessions struct {
	revoked    []string
	revokedAll int64
	rotated    [2]string
	rotateID   string
	rotateTok  string
	rotateErr  error
}

func (s *fakeSessions) Rotate(_ context.Context, _ int64, oldAccessID, provided string) (string, string, error) {
	s.rotated = [2]string{oldAccessID, provided}
	return s.rotateID, s.rotateTok, s.rotateErr
}

func (s *fakeSessions) Revoke(_ context.Context, _ int64, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return nil
}

func (s *fakeSessions) RevokeAll(_ context.Context, userID int64) (int, error) {
	s.revokedAll = userID
	return 3, nil
}

type stubUserLoader struct {
	user *users.UserDTO
}

func (s stubUserLoader) CurrentUser(context.Context, int64) (*users.UserDTO, error) {
	return s.user, nil
}

// bearerRequest mints an access token issued at issuedAt for user 21.
func bearerRequest(t *testing.T, path, body string, issuedAt time.Time) (*http.Request, string) {
	t.Helper()
	jti := session.NewAccessID()
	token, err := auth.MintAccessToken(sessionJWT, issuedAt, auth.AccessTokenPayload{
		UserID:      21,
		PhoneNumber: "09121234567",
		JTI:         jti,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	return req, jti
}

func TestAuthLogoutRevokesPresentedSession(t *testing.T) {
	for name, issued := range map[string]time.Time{
		"live token":    time.Now(),
		"expired token": time.Now().Add(-time.Hour),
	} {
		t.Run(name, func(t *testing.T) {
			sessions := &fakeSessions{}
			req, jti := bearerRequest(t, "/logout", "", issued)
			rec := httptest.NewRecorder()
			AuthLogout(sessions, sessionJWT, nil).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, []string{jti}, sessions.revoked)
		})
	}
}

func TestAuthLogoutRequiresBearer(t *testing.T) {
	rec := httptest.NewRecorder()
	AuthLogout(&fakeSessions{}, sessionJWT, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthLogoutAll(t *testing.T) {
	sessions := &fakeSessions{}
	req := httptest.NewRequest(http.MethodPost, "/logout-all", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), 21))
	rec := httptest.NewRecorder()
	AuthLogoutAll(sessions, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 21, sessions.revokedAll)
	assert.JSONEq(t, `{"data":{"status":"logged_out","sessions_revoked":3}}`, rec.Body.String())
}

func TestAuthRefreshRotatesAndReloadsProfile(t *testing.T) {
	sessions := &fakeSessions{rotateID: "new-jti", rotateTok: "new-refresh"}
	loader := stubUserLoader{user: &users.UserDTO{ID: 21, PhoneNumber: "09121234567", IsProfileComplete: true}}
	req, jti := bearerRequest(t, "/refresh", `{"refresh_token":"old-refresh"}`, time.Now())
	rec := httptest.NewRecorder()
	AuthRefresh(sessions, loader, sessionJWT, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, [2]string{jti, "old-refresh"}, sessions.rotated)

	var payload struct {
		Data refreshResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "new-refresh", payload.Data.RefreshToken)

	claims, err := auth.ParseAccessToken(sessionJWT, payload.Data.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "new-jti", claims.ID)
	assert.True(t, claims.IsProfileComplete)
}

func TestAuthRefreshFailures(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"reused refresh token": {session.ErrInvalidRefreshToken, http.StatusUnauthorized},
		"store down":           {errors.New("redis down"), http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req, _ := bearerRequest(t, "/refresh", `{"refresh_token":"x"}`, time.Now())
			rec := httptest.NewRecorder()
			AuthRefresh(&fakeSessions{rotateErr: tc.err}, nil, sessionJWT, nil).ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
