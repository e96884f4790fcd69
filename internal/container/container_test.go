package container

import (
	"context"
	"testing"
	"time"

	"pokedex/catalog/internal/config"
	"pokedex/catalog/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listRemote []string

func (r listRemote) FetchEntry(_ context.Context, position int) (domain.Entry, error) {
	if position >= len(r) {
		return domain.Entry{}, &domain.NotFoundError{Position: position}
	}
	return domain.Entry{Name: r[position], Types: []string{"water"}, Position: position}, nil
}

func (r listRemote) FetchCatalogSize(context.Context) (int, error) {
	return len(r), nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		PokeAPI: config.PokeAPIConfig{
			BaseURL:              "http://unused",
			BatchSize:            2,
			MaxWorkers:           2,
			MaxRetries:           1,
			MaxRequestsPerSecond: 10,
			RetryWait:            time.Millisecond,
		},
		Cache: config.CacheConfig{SearchMemoSize: 32},
	}
}

func TestWarmPopulatesCacheAndIndex(t *testing.T) {
	remote := listRemote{"squirtle", "wartortle", "blastoise", "psyduck", "golduck"}

	c, err := NewWithClient(testConfig(), remote)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Warm(context.Background()))

	assert.Equal(t, 5, c.Cache.Size())
	assert.Equal(t, 5, c.Loader.Cursor())

	matches := c.Index.Search("duck")
	require.Len(t, matches, 2)
	assert.Equal(t, "psyduck", matches[0].Name)
	assert.Equal(t, "golduck", matches[1].Name)
}

func TestRunStopsWithContext(t *testing.T) {
	c, err := NewWithClient(testConfig(), listRemote{"lapras"})
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return c.Cache.Size() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
