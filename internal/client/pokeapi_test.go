package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"pokedex/catalog/internal/config"
	"pokedex/catalog/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bulbasaurJSON = `{
  "id": 1,
  "name": "bulbasaur",
  "types": [
    {"slot": 1, "type": {"name": "grass", "url": "https://pokeapi.co/api/v2/type/12/"}},
    {"slot": 2, "type": {"name": "poison", "url": "https://pokeapi.co/api/v2/type/4/"}}
  ],
  "sprites": {"front_default": "https://img.example/1.png"}
}`

func testConfig(baseURL string) config.PokeAPIConfig {
	return config.PokeAPIConfig{
		BaseURL:              baseURL,
		Timeout:              5 * time.Second,
		MaxRequestsPerSecond: 1000,
		CircuitBreakerDelay:  time.Minute,
	}
}

func TestFetchEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pokemon/1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(bulbasaurJSON))
		case "/pokemon/2":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":2,"name":"Ivysaur","types":[{"slot":1,"type":{"name":"grass"}}],"sprites":{"front_default":null}}`))
		case "/pokemon/3":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewPokeAPIClient(testConfig(srv.URL), nil)
	ctx := context.Background()

	t.Run("decodes record", func(t *testing.T) {
		entry, err := c.FetchEntry(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, domain.Entry{
			Name:     "bulbasaur",
			Types:    []string{"grass", "poison"},
			Image:    "https://img.example/1.png",
			Position: 0,
		}, entry)
		assert.Equal(t, 1, entry.ID())
	})

	t.Run("null sprite and mixed case name", func(t *testing.T) {
		entry, err := c.FetchEntry(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "ivysaur", entry.Name)
		assert.Empty(t, entry.Image)
	})

	t.Run("server error is transient", func(t *testing.T) {
		_, err := c.FetchEntry(ctx, 2)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrTransient))

		var te *domain.TransientError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, 2, te.Position)
	})

	t.Run("missing id is not found", func(t *testing.T) {
		_, err := c.FetchEntry(ctx, 99)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestFetchEntryUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewPokeAPIClient(testConfig(url), nil)

	_, err := c.FetchEntry(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransient))
}

func TestFetchCatalogSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pokemon", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count": 1302, "next": null, "results": []}`))
	}))
	defer srv.Close()

	c := NewPokeAPIClient(testConfig(srv.URL), nil)

	size, err := c.FetchCatalogSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1302, size)
}

func TestCircuitBreakerOpensOnThrottle(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewPokeAPIClient(testConfig(srv.URL), nil)
	ctx := context.Background()

	_, err := c.FetchEntry(ctx, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransient))

	// Breaker is open: the second call must not reach the server.
	_, err = c.FetchEntry(ctx, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransient))
	assert.Equal(t, int32(1), calls.Load())
}
