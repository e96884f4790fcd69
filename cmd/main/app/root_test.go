package app

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"pokedex/catalog/internal/catalog"
	"pokedex/catalog/internal/domain"
	"pokedex/catalog/internal/loader"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"serve", "warm", "search", "page"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}

	page, _, err := root.Find([]string{"page"})
	require.NoError(t, err)
	assert.NotNil(t, page.Flags().Lookup("pages"))
}

func TestPrintEntries(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	printEntries(cmd, []domain.Entry{
		{Name: "bulbasaur", Types: []string{"grass", "poison"}, Position: 0},
		{Name: "pikachu", Types: []string{"electric"}, Position: 24},
	})

	assert.Equal(t,
		"#0001  bulbasaur        grass/poison\n#0025  pikachu          electric\n",
		buf.String())
}

// pagedRemote serves size entries; every fetch fails when down is set.
type pagedRemote struct {
	size int
	down bool
}

func (r pagedRemote) FetchEntry(_ context.Context, position int) (domain.Entry, error) {
	if r.down {
		return domain.Entry{}, &domain.TransientError{Position: position, Err: fmt.Errorf("connection refused")}
	}
	if position >= r.size {
		return domain.Entry{}, &domain.NotFoundError{Position: position}
	}
	return domain.Entry{Name: fmt.Sprintf("mon-%d", position), Types: []string{"normal"}, Position: position}, nil
}

func (r pagedRemote) FetchCatalogSize(context.Context) (int, error) {
	return r.size, nil
}

func pageCmd(t *testing.T, remote pagedRemote) (*cobra.Command, *bytes.Buffer, *loader.BatchLoader) {
	t.Helper()
	cache, err := catalog.NewCache()
	require.NoError(t, err)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())

	return cmd, &buf, loader.NewBatchLoader(cache, remote, nil, loader.Options{BatchSize: 2, MaxRetries: 1})
}

func TestLoadPagesStopsWhenExhausted(t *testing.T) {
	cmd, buf, bl := pageCmd(t, pagedRemote{size: 3})

	require.NoError(t, loadPages(cmd, bl, 5))

	assert.Equal(t,
		"--- page 1 ---\n"+
			"#0001  mon-0            normal\n"+
			"#0002  mon-1            normal\n"+
			"--- page 2 ---\n"+
			"#0003  mon-2            normal\n"+
			"remote catalog exhausted\n",
		buf.String())
}

func TestLoadPagesReportsOutage(t *testing.T) {
	cmd, buf, bl := pageCmd(t, pagedRemote{size: 3, down: true})

	err := loadPages(cmd, bl, 5)
	require.ErrorIs(t, err, domain.ErrTransient)
	assert.Contains(t, err.Error(), "remote unavailable at position 0")
	assert.NotContains(t, buf.String(), "exhausted")
}
