package catalog

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	"pokedex/catalog/internal/domain"

	"github.com/hashicorp/go-memdb"
)

const entryTable = "entry"

// record is the stored form of an entry. Slot is the dense cache index,
// Position the remote catalog position, which may skip values.
type record struct {
	Slot     int
	Key      string
	Position int
	Entry    domain.Entry
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			entryTable: {
				Name: entryTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &intIndex{field: func(r *record) int { return r.Slot }},
					},
					"name": {
						Name:    "name",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Key", Lowercase: true},
					},
					"position": {
						Name:    "position",
						Unique:  true,
						Indexer: &intIndex{field: func(r *record) int { return r.Position }},
					},
				},
			},
		},
	}
}

// intIndex encodes ints big-endian with the sign bit flipped so that index
// order is numeric order.
type intIndex struct {
	field func(*record) int
}

func (ix *intIndex) FromObject(obj any) (bool, []byte, error) {
	r, ok := obj.(*record)
	if !ok {
		return false, nil, fmt.Errorf("unexpected object %T in catalog table", obj)
	}
	return true, encodeInt(ix.field(r)), nil
}

func (ix *intIndex) FromArgs(args ...any) ([]byte, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("must provide only a single argument")
	}
	v, ok := args[0].(int)
	if !ok {
		return nil, fmt.Errorf("argument must be an int: %#v", args[0])
	}
	return encodeInt(v), nil
}

func encodeInt(v int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v)^(1<<63))
	return buf
}

// Cache is the ordered in-memory catalog. Reads run against an immutable
// snapshot; Append commits a whole batch or nothing.
type Cache struct {
	db *memdb.MemDB

	// mu pairs a committed snapshot with its generation.
	mu         sync.RWMutex
	generation uint64
}

func NewCache() (*Cache, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog store: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) snapshot() (*memdb.Txn, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db.Txn(false), c.generation
}

// Size returns the number of resolved entries.
func (c *Cache) Size() int {
	txn, _ := c.snapshot()
	defer txn.Abort()

	last, err := lastRecord(txn)
	if err != nil || last == nil {
		return 0
	}
	return last.Slot + 1
}

// NextPosition returns the remote position following the tail entry.
func (c *Cache) NextPosition() int {
	txn, _ := c.snapshot()
	defer txn.Abort()

	last, err := lastRecord(txn)
	if err != nil || last == nil {
		return 0
	}
	return last.Position + 1
}

// Generation increases by one with every committed append.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Window returns the entries at cache indexes [start, start+count), clipped
// to what is resolved. It never blocks on loading.
func (c *Cache) Window(start, count int) []domain.Entry {
	if start < 0 || count <= 0 {
		return []domain.Entry{}
	}

	txn, _ := c.snapshot()
	defer txn.Abort()

	it, err := txn.LowerBound(entryTable, "id", start)
	if err != nil {
		return []domain.Entry{}
	}

	out := make([]domain.Entry, 0, min(count, 64))
	for obj := it.Next(); obj != nil && len(out) < count; obj = it.Next() {
		out = append(out, cloneEntry(obj.(*record).Entry))
	}
	return out
}

// FindByName looks an entry up case-insensitively.
func (c *Cache) FindByName(name string) (domain.Entry, bool) {
	key := domain.NormalizeName(name)
	if key == "" {
		return domain.Entry{}, false
	}

	txn, _ := c.snapshot()
	defer txn.Abort()

	obj, err := txn.First(entryTable, "name", key)
	if err != nil || obj == nil {
		return domain.Entry{}, false
	}
	return cloneEntry(obj.(*record).Entry), true
}

// Append extends the catalog at its tail. Entries must have unique names and
// ascending positions past the current tail; otherwise nothing is written.
func (c *Cache) Append(entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	txn := c.db.Txn(true)
	defer txn.Abort()

	last, err := lastRecord(txn)
	if err != nil {
		return fmt.Errorf("failed to read catalog tail: %w", err)
	}

	slot, prevPosition := 0, -1
	if last != nil {
		slot, prevPosition = last.Slot+1, last.Position
	}

	for _, entry := range entries {
		key := domain.NormalizeName(entry.Name)
		if key == "" {
			return fmt.Errorf("entry at position %d has an empty name", entry.Position)
		}

		if entry.Position <= prevPosition {
			return fmt.Errorf("%w: position %d does not follow %d", domain.ErrOutOfOrder, entry.Position, prevPosition)
		}

		existing, err := txn.First(entryTable, "name", key)
		if err != nil {
			return fmt.Errorf("failed to look up %q: %w", key, err)
		}
		if existing != nil {
			return &domain.DuplicateNameError{Name: key}
		}

		stored := cloneEntry(entry)
		stored.Name = key

		if err := txn.Insert(entryTable, &record{
			Slot:     slot,
			Key:      key,
			Position: entry.Position,
			Entry:    stored,
		}); err != nil {
			return fmt.Errorf("failed to insert %q: %w", key, err)
		}

		slot++
		prevPosition = entry.Position
	}

	c.mu.Lock()
	txn.Commit()
	c.generation++
	c.mu.Unlock()

	return nil
}

// scan walks a single snapshot in catalog order until fn returns false and
// reports the generation the snapshot belongs to.
func (c *Cache) scan(fn func(domain.Entry) bool) uint64 {
	txn, generation := c.snapshot()
	defer txn.Abort()

	it, err := txn.Get(entryTable, "id")
	if err != nil {
		return generation
	}

	for obj := it.Next(); obj != nil; obj = it.Next() {
		if !fn(obj.(*record).Entry) {
			break
		}
	}
	return generation
}

func lastRecord(txn *memdb.Txn) (*record, error) {
	obj, err := txn.Last(entryTable, "id")
	if err != nil || obj == nil {
		return nil, err
	}
	return obj.(*record), nil
}

func cloneEntry(e domain.Entry) domain.Entry {
	e.Types = slices.Clone(e.Types)
	return e
}
