package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/nlq-bench/internal/adapter/memory"
	portidempotency "github.com/alanyang/nlq-bench/internal/port/idempotency"
)

type failingStore struct{}

func (failingStore) Check(context.Context, string) (portidempotency.Response, bool, error) {
	return portidempotency.Response{}, false, errors.New("store down")
}

func (failingStore) Save(context.Context, string, string, portidempotency.Response) error {
	return errors.New("store down")
}

func newIdempotentRouter(store portidempotency.Store, status int) (*gin.Engine, *int) {
	gin.SetMode(gin.TestMode)
	calls := 0
	r := gin.New()
	r.Use(IdempotencyMiddleware(store))
	r.POST("/things", func(c *gin.Context) {
		calls++
		c.JSON(status, gin.H{"n": calls})
	})
	r.POST("/others", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"other": calls})
	})
	r.GET("/things", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"n": calls})
	})
	return r, &calls
}

func send(r *gin.Engine, method, key string) *httptest.ResponseRecorder {
	return sendTo(r, method, "/things", key)
}

func sendTo(r *gin.Engine, method, path, key string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), method, path, strings.NewReader("{}"))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	r, calls := newIdempotentRouter(memory.NewIdempotencyStore(), http.StatusCreated)

	first := send(r, http.MethodPost, "k1")
	second := send(r, http.MethodPost, "k1")

	assert.Equal(t, 1, *calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
}

func TestIdempotency_DistinctKeys(t *testing.T) {
	r, calls := newIdempotentRouter(memory.NewIdempotencyStore(), http.StatusCreated)

	send(r, http.MethodPost, "k1")
	send(r, http.MethodPost, "k2")

	assert.Equal(t, 2, *calls)
}

func TestIdempotency_KeyReusedOnOtherRoute(t *testing.T) {
	r, calls := newIdempotentRouter(memory.NewIdempotencyStore(), http.StatusCreated)

	first := sendTo(r, http.MethodPost, "/things", "k1")
	second := sendTo(r, http.MethodPost, "/others", "k1")

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, second.Code)
	assert.Empty(t, second.Header().Get("Idempotent-Replayed"))
	assert.Contains(t, second.Body.String(), "POST /things")
	assert.Equal(t, 1, *calls)

	again := sendTo(r, http.MethodPost, "/things", "k1")
	assert.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, "true", again.Header().Get("Idempotent-Replayed"))
}

func TestIdempotency_NoHeaderPassesThrough(t *testing.T) {
	r, calls := newIdempotentRouter(memory.NewIdempotencyStore(), http.StatusCreated)

	send(r, http.MethodPost, "")
	send(r, http.MethodPost, "")

	assert.Equal(t, 2, *calls)
}

func TestIdempotency_IgnoresGet(t *testing.T) {
	r, calls := newIdempotentRouter(memory.NewIdempotencyStore(), http.StatusOK)

	send(r, http.MethodGet, "k1")
	send(r, http.MethodGet, "k1")

	assert.Equal(t, 2, *calls)
}

func TestIdempotency_ServerErrorsNotStored(t *testing.T) {
	store := memory.NewIdempotencyStore()
	r, calls := newIdempotentRouter(store, http.StatusInternalServerError)

	send(r, http.MethodPost, "k1")
	send(r, http.MethodPost, "k1")

	assert.Equal(t, 2, *calls)
	_, ok, err := store.Check(context.Background(), "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdempotency_StoreFailureFailsOpen(t *testing.T) {
	r, calls := newIdempotentRouter(failingStore{}, http.StatusCreated)

	w := send(r, http.MethodPost, "k1")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, *calls)
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/api/runs", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/api/runs", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
