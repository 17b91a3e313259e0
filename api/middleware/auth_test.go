package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgauth "github.com/craftcv/craftcv-backend/pkg/auth"
	"github.com/craftcv/craftcv-backend/pkg/config"
	"github.com/craftcv/craftcv-backend/pkg/logger"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "craftcv",
		ExpirationMinutes: 60,
	}
}

func authHandler(t *testing.T, cfg config.JWTConfig) (http.Handler, *string) {
	t.Helper()

	var seenUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return Auth(cfg, logger.New(logger.Options{ServiceName: "test"}))(next), &seenUserID
}

func TestAuthSeedsUserContext(t *testing.T) {
	cfg := testJWTConfig()
	handler, seenUserID := authHandler(t, cfg)

	userID := uuid.New()
	token, err := pkgauth.MintAccessToken(cfg, time.Now(), pkgauth.AccessTokenPayload{UserID: userID})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, userID.String(), *seenUserID)
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	handler, _ := authHandler(t, testJWTConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthRejectsForeignIssuer(t *testing.T) {
	cfg := testJWTConfig()
	handler, _ := authHandler(t, cfg)

	foreign := cfg
	foreign.Issuer = "someone-else"
	token, err := pkgauth.MintAccessToken(foreign, time.Now(), pkgauth.AccessTokenPayload{UserID: uuid.New()})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthRejectsTamperedToken(t *testing.T) {
	cfg := testJWTConfig()
	handler, _ := authHandler(t, cfg)

	tampered := cfg
	tampered.Secret = "other-secret"
	token, err := pkgauth.MintAccessToken(tampered, time.Now(), pkgauth.AccessTokenPayload{UserID: uuid.New()})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
