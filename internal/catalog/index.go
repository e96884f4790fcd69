package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"pokedex/catalog/internal/domain"

	ristretto "github.com/dgraph-io/ristretto/v2"
	log "github.com/sirupsen/logrus"
)

// Index answers substring queries over whatever the cache holds at call time.
// Results are memoized per cache generation, so an append never serves stale
// matches.
type Index struct {
	cache *Cache
	memo  *ristretto.Cache[string, []domain.Entry]
}

// NewIndex creates an index over cache that memoizes up to memoSize queries.
// A memoSize of zero disables the memo.
func NewIndex(cache *Cache, memoSize int) (*Index, error) {
	idx := &Index{cache: cache}
	if memoSize <= 0 {
		return idx, nil
	}

	memo, err := ristretto.NewCache(&ristretto.Config[string, []domain.Entry]{
		NumCounters: int64(memoSize) * 10,
		// MaxCost counts memoized queries, not bytes.
		MaxCost:            int64(memoSize),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create search memo: %w", err)
	}
	idx.memo = memo

	return idx, nil
}

// Search returns every entry whose name contains query, case-insensitively,
// in catalog order. An empty query matches everything.
func (i *Index) Search(query string) []domain.Entry {
	q := strings.ToLower(query)

	if i.memo != nil {
		if hit, ok := i.memo.Get(memoKey(i.cache.Generation(), q)); ok {
			return cloneEntries(hit)
		}
	}

	matches := make([]domain.Entry, 0)
	generation := i.cache.scan(func(e domain.Entry) bool {
		if strings.Contains(e.Name, q) {
			matches = append(matches, e)
		}
		return true
	})

	if i.memo != nil {
		i.memo.Set(memoKey(generation, q), matches, 1)
	}

	log.Debugf("Search %q matched %d entries at generation %d", q, len(matches), generation)
	return cloneEntries(matches)
}

// Close releases the memo's background goroutines.
func (i *Index) Close() {
	if i.memo != nil {
		i.memo.Close()
	}
}

func memoKey(generation uint64, query string) string {
	return strconv.FormatUint(generation, 10) + ":" + query
}

func cloneEntries(entries []domain.Entry) []domain.Entry {
	out := make([]domain.Entry, len(entries))
	for n, e := range entries {
		out[n] = cloneEntry(e)
	}
	return out
}
