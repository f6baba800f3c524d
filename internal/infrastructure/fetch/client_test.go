package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Options{})

	assert.NotNil(t, client.http)
	assert.Equal(t, DefaultMaxBodyBytes, client.maxBodyBytes)
	assert.Equal(t, DefaultUserAgents, client.userAgents)
}

func TestGet_RotatesUserAgent(t *testing.T) {
	agents := []string{"agent-a", "agent-b"}
	seen := make(chan string, 10)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	client := NewClient(Options{UserAgents: agents})
	for i := 0; i < 5; i++ {
		res, err := client.Get(context.Background(), server.URL, nil)
		require.NoError(t, err)
		assert.True(t, res.IsHTML())
		assert.Equal(t, "text/html", res.ContentType)
		assert.Contains(t, agents, <-seen)
	}
}

func TestGet_ExplicitUserAgentWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer server.Close()

	client := NewClient(Options{UserAgents: []string{"pool"}})
	res, err := client.Get(context.Background(), server.URL, map[string]string{"User-Agent": "custom"})

	require.NoError(t, err)
	assert.Equal(t, "custom", string(res.Body))
}

func TestGet_BodyTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer server.Close()

	client := NewClient(Options{MaxBodyBytes: 1024})
	res, err := client.Get(context.Background(), server.URL, nil)

	assert.Nil(t, res)
	assert.True(t, errors.Is(err, domain.ErrBodyTooLarge))
}

func TestGet_BodyAtLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 1024)))
	}))
	defer server.Close()

	client := NewClient(Options{MaxBodyBytes: 1024})
	res, err := client.Get(context.Background(), server.URL, nil)

	require.NoError(t, err)
	assert.Len(t, res.Body, 1024)
}

func TestGet_UpstreamStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("blocked"))
	}))
	defer server.Close()

	client := NewClient(Options{})
	res, err := client.Get(context.Background(), server.URL, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamStatus))
	require.NotNil(t, res)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.False(t, res.OK())
}

func TestGet_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(Options{})
	start := time.Now()
	res, err := client.Get(ctx, server.URL, nil)

	assert.Nil(t, res)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "app-id", r.Header.Get("X-Test-App"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json; charset=UTF-8")
		json.NewEncoder(w).Encode(map[string]string{"echo": body["params"]})
	}))
	defer server.Close()

	client := NewClient(Options{})
	res, err := client.PostJSON(context.Background(), server.URL, map[string]string{"X-Test-App": "app-id"},
		map[string]string{"params": "query=arroz"})

	require.NoError(t, err)
	assert.True(t, res.IsJSON())
	assert.JSONEq(t, `{"echo":"query=arroz"}`, string(res.Body))
}
