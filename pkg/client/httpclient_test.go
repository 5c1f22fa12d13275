package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHttpClient_GETDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/properties/p-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"p-1","landlord_id":"l-1"}`))
	}))
	defer srv.Close()

	c := NewHttpClient(srv.URL, time.Second)
	resp, err := c.GET(context.Background(), "/properties/p-1")
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())

	var body map[string]string
	require.NoError(t, resp.DecodeJSON(&body))
	assert.Equal(t, "l-1", body["landlord_id"])
}

func TestHttpClient_POSTSetsContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "abc", r.Header.Get("X-Correlation-ID"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewHttpClient(srv.URL, time.Second)
	resp, err := c.POST(context.Background(), "/notify", map[string]string{"k": "v"}, WithHeader("X-Correlation-ID", "abc"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestGetErrorMessage(t *testing.T) {
	resp := &Response{Body: []byte(`{"code":"NOT_FOUND","message":"Property not found"}`)}
	assert.Equal(t, "Property not found", GetErrorMessage(resp))

	resp = &Response{Body: []byte(`{"code":"NOT_FOUND"}`)}
	assert.Equal(t, "NOT_FOUND", GetErrorMessage(resp))

	resp = &Response{Body: []byte("bad gateway\n")}
	assert.Equal(t, "bad gateway", GetErrorMessage(resp))
}

func TestNewHttpClient_TrimsTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/u-1", r.URL.Path)
	}))
	defer srv.Close()

	_, err := NewHttpClient(srv.URL+"/", time.Second).GET(context.Background(), "/users/u-1")
	require.NoError(t, err)
}
