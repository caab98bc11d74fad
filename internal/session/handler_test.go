package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"collaborative-docs/internal/auth"
	"collaborative-docs/internal/domain"
	"collaborative-docs/internal/middleware"
	"collaborative-docs/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "session-secret"

// memoryDocuments is a fixed document store.
type memoryDocuments map[string]*domain.Document

func (m memoryDocuments) FindByID(ctx context.Context, id string) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, ok := m[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

type brokenDocuments struct{}

func (brokenDocuments) FindByID(ctx context.Context, id string) (*domain.Document, error) {
	return nil, context.DeadlineExceeded
}

func setupRouter(t *testing.T, docs DocumentFinder) (*gin.Engine, *int) {
	return setupRouterWithContentType(t, docs, "application/json")
}

func setupRouterWithContentType(t *testing.T, docs DocumentFinder, contentType string) (*gin.Engine, *int) {
	gin.SetMode(gin.TestMode)

	mints := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mints++
		var req realtime.SessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"token":"granted-` + req.UserID + `"}`))
	}))
	t.Cleanup(upstream.Close)

	verifier, err := auth.NewHMACVerifier(testSecret)
	require.NoError(t, err)
	authMiddleware := &middleware.Auth{Verifier: verifier}

	gate := NewGate(docs, realtime.NewClient(upstream.URL, "sk_test", time.Second), time.Second, zap.NewNop())
	handler := NewHandler(gate)

	router := gin.New()
	router.Use(middleware.ErrorHandler(zap.NewNop()))
	router.POST("/api/realtime-auth", authMiddleware.SessionAuthMiddleWare(), handler.Authorize)
	return router, &mints
}

func post(t *testing.T, router *gin.Engine, identity *domain.Identity, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/realtime-auth", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if identity != nil {
		token, err := auth.SignHS256(testSecret, *identity, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var store = memoryDocuments{
	"d1": {ID: "d1", OwnerID: "u1"},
	"d2": {ID: "d2", OwnerID: "u1", OrganizationID: strPtr("org_A")},
}

func TestAuthorizeEndpoint_Grant(t *testing.T) {
	router, mints := setupRouter(t, store)

	w := post(t, router, &domain.Identity{Subject: "u2", OrganizationID: "org_A"}, `{"room":"d2"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"token":"granted-u2"}`, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, 1, *mints)
}

func TestAuthorizeEndpoint_ForwardsUpstreamContentType(t *testing.T) {
	router, _ := setupRouterWithContentType(t, store, "application/vnd.realtime+json; charset=utf-8")

	w := post(t, router, &domain.Identity{Subject: "u1"}, `{"room":"d1"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.realtime+json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `{"token":"granted-u1"}`, w.Body.String())
}

func TestAuthorizeEndpoint_DenialsAreIndistinguishable(t *testing.T) {
	router, mints := setupRouter(t, store)

	stranger := &domain.Identity{Subject: "u2"}
	responses := map[string]*httptest.ResponseRecorder{
		"not permitted":   post(t, router, stranger, `{"room":"d1"}`),
		"unknown room":    post(t, router, stranger, `{"room":"missing"}`),
		"unauthenticated": post(t, router, nil, `{"room":"d1"}`),
		"no room":         post(t, router, stranger, `{}`),
		"malformed body":  post(t, router, stranger, `{"room":`),
	}

	for name, w := range responses {
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
		assert.Empty(t, w.Body.String(), name)
	}
	assert.Zero(t, *mints)
}

func TestAuthorizeEndpoint_StoreFailure(t *testing.T) {
	router, mints := setupRouter(t, brokenDocuments{})

	w := post(t, router, &domain.Identity{Subject: "u1"}, `{"room":"d1"}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"Service unavailable"}`, w.Body.String())
	assert.Zero(t, *mints)
}
