package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgauth "github.com/mkastler/poolcart-backend/pkg/auth"
	"github.com/mkastler/poolcart-backend/pkg/config"
	"github.com/mkastler/poolcart-backend/pkg/enums"
)

var testJWT = config.JWTConfig{
	Secret:            "middleware-test-secret",
	Issuer:            "poolcart-test",
	ExpirationMinutes: 5,
}

func protectedEcho(t *testing.T) (http.Handler, *string, *string) {
	t.Helper()
	var gotUser, gotRole string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	return Auth(testJWT, nil)(next), &gotUser, &gotRole
}

func TestAuthSeedsContextFromValidToken(t *testing.T) {
	handler, gotUser, gotRole := protectedEcho(t)

	userID := uuid.New()
	token, err := pkgauth.MintAccessToken(testJWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: userID,
		Role:   enums.ActorRoleMember,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, userID.String(), *gotUser)
	assert.Equal(t, "member", *gotRole)
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	handler, _, _ := protectedEcho(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsForeignSignature(t *testing.T) {
	handler, _, _ := protectedEcho(t)

	other := testJWT
	other.Secret = "some-other-secret"
	token, err := pkgauth.MintAccessToken(other, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.ActorRoleMember,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleBlocksOtherRoles(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireRole("admin", nil)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithRole(req.Context(), "member"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithRole(req.Context(), "admin"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
