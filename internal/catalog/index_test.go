package catalog

import (
	"fmt"
	"testing"

	"pokedex/catalog/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIndex(t *testing.T, c *Cache, memoSize int) *Index {
	t.Helper()
	idx, err := NewIndex(c, memoSize)
	require.NoError(t, err)
	t.Cleanup(idx.Close)
	return idx
}

func TestSearchStarters(t *testing.T) {
	c := newCache(t, entry("bulbasaur", 0), entry("charmander", 3), entry("squirtle", 6))

	for _, memoSize := range []int{0, 16} {
		idx := newIndex(t, c, memoSize)

		assert.Equal(t, []string{"charmander"}, names(idx.Search("char")))
		assert.Empty(t, idx.Search("ZZZ"))
		assert.Equal(t, []string{"bulbasaur", "charmander", "squirtle"}, names(idx.Search("")))
		assert.Equal(t, []string{"charmander"}, names(idx.Search("CHAR")))
		assert.Equal(t, []string{"bulbasaur", "charmander"}, names(idx.Search("a")))
	}
}

func TestSearchIsSubsequenceInCatalogOrder(t *testing.T) {
	c := newCache(t,
		entry("pidgey", 15),
		entry("pidgeotto", 16),
		entry("rattata", 18),
		entry("pidgeot", 17+100),
	)
	idx := newIndex(t, c, 16)

	assert.Equal(t, []string{"pidgey", "pidgeotto", "pidgeot"}, names(idx.Search("pidge")))
	assert.Equal(t, []string{"pidgeotto", "rattata"}, names(idx.Search("tt")))
}

func TestSearchSeesAppendsAfterMemoization(t *testing.T) {
	c := newCache(t, entry("charmander", 3))
	idx := newIndex(t, c, 16)

	first := idx.Search("char")
	require.Len(t, first, 1)
	idx.memo.Wait()

	require.NoError(t, c.Append([]domain.Entry{entry("charmeleon", 4), entry("charizard", 5)}))

	assert.Equal(t, []string{"charmander", "charmeleon", "charizard"}, names(idx.Search("char")))
}

func TestSearchResultsAreCopies(t *testing.T) {
	c := newCache(t, domain.Entry{Name: "eevee", Types: []string{"normal"}, Position: 132})
	idx := newIndex(t, c, 16)

	got := idx.Search("eev")
	require.Len(t, got, 1)
	idx.memo.Wait()
	got[0].Types[0] = "fire"

	again := idx.Search("eev")
	require.Len(t, again, 1)
	assert.Equal(t, []string{"normal"}, again[0].Types)
}

func TestMemoHoldsUpToMemoSizeQueries(t *testing.T) {
	c := newCache(t, entry("bulbasaur", 0))
	idx := newIndex(t, c, 1024)

	queries := make([]string, 200)
	for n := range queries {
		queries[n] = fmt.Sprintf("q%03d", n)
		idx.Search(queries[n])
	}
	idx.memo.Wait()

	retained := 0
	for _, q := range queries {
		if _, ok := idx.memo.Get(memoKey(c.Generation(), q)); ok {
			retained++
		}
	}
	assert.Equal(t, len(queries), retained)
}
