package middleware

import (
	"collaborative-docs/internal/auth"
	"collaborative-docs/internal/domain"
	"collaborative-docs/internal/worker"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "middleware-secret"

type recordingSyncer struct {
	mu     sync.Mutex
	synced []domain.Identity
}

func (r *recordingSyncer) Sync(ctx context.Context, identity domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synced = append(r.synced, identity)
	return nil
}

// inlinePool runs tasks synchronously so tests can observe them.
type inlinePool struct{}

func (inlinePool) Submit(t worker.Task) { _ = t(context.Background()) }

func setupRouter(t *testing.T, syncer ProfileSyncer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	verifier, err := auth.NewHMACVerifier(testSecret)
	require.NoError(t, err)

	m := &Auth{Verifier: verifier, Profiles: syncer, Pool: inlinePool{}}

	router := gin.New()
	router.Use(ErrorHandler(zap.NewNop()))
	whoami := func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"subject": identity.Subject, "org": identity.OrganizationID})
	}
	router.GET("/api/me", m.AuthMiddleWare(), whoami)
	router.POST("/api/session", m.SessionAuthMiddleWare(), whoami)
	return router
}

func signed(t *testing.T, identity domain.Identity) string {
	token, err := auth.SignHS256(testSecret, identity, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthMiddleWare_Success(t *testing.T) {
	syncer := &recordingSyncer{}
	router := setupRouter(t, syncer)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", signed(t, domain.Identity{Subject: "user_1", OrganizationID: "org_A"}))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subject":"user_1","org":"org_A"}`, w.Body.String())
	require.Len(t, syncer.synced, 1)
	assert.Equal(t, "user_1", syncer.synced[0].Subject)
}

func TestAuthMiddleWare_MissingHeader(t *testing.T) {
	syncer := &recordingSyncer{}
	router := setupRouter(t, syncer)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Authorization is not found!")
	assert.Empty(t, syncer.synced)
}

func TestAuthMiddleWare_InvalidToken(t *testing.T) {
	router := setupRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid token!")
}

func TestSessionAuthMiddleWare_BareRejection(t *testing.T) {
	router := setupRouter(t, nil)

	for _, header := range []string{"", "Bearer nope", "Basic dXNlcjpwYXNz"} {
		req := httptest.NewRequest(http.MethodPost, "/api/session", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Empty(t, w.Body.String(), header)
	}
}

func TestSessionAuthMiddleWare_DoesNotSyncProfile(t *testing.T) {
	syncer := &recordingSyncer{}
	router := setupRouter(t, syncer)

	req := httptest.NewRequest(http.MethodPost, "/api/session", nil)
	req.Header.Set("Authorization", signed(t, domain.Identity{Subject: "user_1", OrganizationID: "org_A"}))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, syncer.synced)
}
