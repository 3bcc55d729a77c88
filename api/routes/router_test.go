package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkastler/poolcart-backend/internal/availability"
	"github.com/mkastler/poolcart-backend/internal/bids"
	"github.com/mkastler/poolcart-backend/internal/export"
	"github.com/mkastler/poolcart-backend/internal/notifications"
	"github.com/mkastler/poolcart-backend/internal/reassignment"
	"github.com/mkastler/poolcart-backend/internal/runs"
	"github.com/mkastler/poolcart-backend/internal/shopping"
	"github.com/mkastler/poolcart-backend/internal/storage/memstore"
	pkgauth "github.com/mkastler/poolcart-backend/pkg/auth"
	"github.com/mkastler/poolcart-backend/pkg/config"
	"github.com/mkastler/poolcart-backend/pkg/enums"
	"github.com/mkastler/poolcart-backend/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "poolcart-test",
			ExpirationMinutes: 5,
		},
	}
}

func newTestRouter(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()

	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "test"})
	store := memstore.New()
	notifier := notifications.NopNotifier{}

	shoppingSvc, err := shopping.NewService(store, notifier, logg)
	require.NoError(t, err)
	runSvc, err := runs.NewService(store, shoppingSvc, notifier, logg)
	require.NoError(t, err)
	bidSvc, err := bids.NewService(store, notifier, logg)
	require.NoError(t, err)
	reassignSvc, err := reassignment.NewService(store, notifier, logg)
	require.NoError(t, err)
	availSvc, err := availability.NewService(store, logg)
	require.NoError(t, err)
	exportSvc, err := export.NewService(store, logg)
	require.NoError(t, err)

	handler := NewRouter(Deps{
		Config:        cfg,
		Logger:        logg,
		Store:         store,
		Runs:          runSvc,
		Bids:          bidSvc,
		Shopping:      shoppingSvc,
		Reassignments: reassignSvc,
		Availability:  availSvc,
		Export:        exportSvc,
	})
	return handler, cfg
}

func mintToken(t *testing.T, cfg *config.Config, userID uuid.UUID, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
	})
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func dataField(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestHealthLiveIsPublic(t *testing.T) {
	handler, _ := newTestRouter(t)
	rec := doJSON(t, handler, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-PoolCart-Env"))
}

func TestAPIRequiresAuth(t *testing.T) {
	handler, _ := newTestRouter(t)
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/runs", "", map[string]string{
		"group_id": uuid.NewString(),
		"store_id": uuid.NewString(),
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	handler, cfg := newTestRouter(t)
	member := mintToken(t, cfg, uuid.New(), enums.ActorRoleMember)

	rec := doJSON(t, handler, http.MethodGet,
		fmt.Sprintf("/api/admin/v1/runs/%s/breakdown", uuid.NewString()), member, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRunLifecycleOverHTTP(t *testing.T) {
	handler, cfg := newTestRouter(t)

	leaderID := uuid.New()
	memberID := uuid.New()
	leader := mintToken(t, cfg, leaderID, enums.ActorRoleMember)
	member := mintToken(t, cfg, memberID, enums.ActorRoleMember)

	groupID := uuid.NewString()
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/runs", leader, map[string]string{
		"group_id": groupID,
		"store_id": uuid.NewString(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	runID := dataField(t, rec)["ID"]
	runPath := fmt.Sprintf("/api/v1/runs/%v", runID)

	rec = doJSON(t, handler, http.MethodPost, runPath+"/join", member, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodPost, runPath+"/transition", leader, map[string]string{"target": "active"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Products are reference data owned elsewhere; bids only need the id.
	productID := uuid.NewString()
	rec = doJSON(t, handler, http.MethodPut, runPath+"/bids", member, map[string]any{
		"product_id": productID,
		"quantity":   "4",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodGet,
		fmt.Sprintf("%s/products/%s/total", runPath, productID), leader, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "4", dataField(t, rec)["total"])

	// bidding is closed once confirmed
	rec = doJSON(t, handler, http.MethodPost, runPath+"/transition", leader, map[string]string{"target": "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = doJSON(t, handler, http.MethodPut, runPath+"/bids", member, map[string]any{
		"product_id": productID,
		"quantity":   "6",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, runPath+"/shopping-list", leader, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet,
		fmt.Sprintf("/api/v1/groups/%s/runs?state=confirmed", groupID), leader, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestIllegalTransitionIsRejected(t *testing.T) {
	handler, cfg := newTestRouter(t)
	leader := mintToken(t, cfg, uuid.New(), enums.ActorRoleMember)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/runs", leader, map[string]string{
		"group_id": uuid.NewString(),
		"store_id": uuid.NewString(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	runID := dataField(t, rec)["ID"]

	rec = doJSON(t, handler, http.MethodPost,
		fmt.Sprintf("/api/v1/runs/%v/transition", runID), leader, map[string]string{"target": "shopping"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
