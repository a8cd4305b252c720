package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func preflight(router http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/admin/restore", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_DefaultOriginsOnly(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: no configured origins
	// WHEN: a local frontend and a foreign page ask to POST
	local := preflight(s.router, "http://localhost:5173")
	foreign := preflight(s.router, "http://evil.example")

	// THEN: only the local frontend is allowed, without credentials
	assert.Equal(t, "http://localhost:5173", local.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, local.Header().Get("Access-Control-Allow-Credentials"))
	assert.Empty(t, foreign.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_ConfiguredOrigins(t *testing.T) {
	h := newTestServer(t).h
	router := NewRouter(h, []string{"http://shop.test"})

	assert.Equal(t, "http://shop.test", preflight(router, "http://shop.test").Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, preflight(router, "http://localhost:5173").Header().Get("Access-Control-Allow-Origin"))
}
