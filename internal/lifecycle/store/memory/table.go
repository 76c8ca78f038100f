package memory

import (
	"fmt"
	"sync"

	"bloodbank/pkg/platform/sentinel"
)

// table is one committed collection. Rows are owned by the table and handed
// out only as clones.
type table[K comparable, V any] struct {
	name    string
	rows    map[K]*V
	clone   func(*V) *V
	version func(*V) *int           // nil for insert-only tables
	unique  func(*V) (string, bool) // optional unique index
	index   map[string]K
}

func newTable[K comparable, V any](name string, clone func(*V) *V, version func(*V) *int, unique func(*V) (string, bool)) *table[K, V] {
	return &table[K, V]{
		name:    name,
		rows:    make(map[K]*V),
		clone:   clone,
		version: version,
		unique:  unique,
		index:   make(map[string]K),
	}
}

func shallow[V any](v *V) *V {
	c := *v
	return &c
}

type pending[V any] struct {
	row    *V
	base   int
	create bool
}

// txTable stages writes against a table. Reads see the transaction's own
// writes first, then the latest committed row.
type txTable[K comparable, V any] struct {
	t      *table[K, V]
	mu     *sync.RWMutex
	writes map[K]*pending[V]
	order  []K
}

func newTxTable[K comparable, V any](t *table[K, V], mu *sync.RWMutex) *txTable[K, V] {
	return &txTable[K, V]{t: t, mu: mu, writes: make(map[K]*pending[V])}
}

func (x *txTable[K, V]) get(k K) (*V, bool) {
	if p, ok := x.writes[k]; ok {
		return x.t.clone(p.row), true
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	row, ok := x.t.rows[k]
	if !ok {
		return nil, false
	}
	return x.t.clone(row), true
}

// scan returns clones of every visible row accepted by keep.
func (x *txTable[K, V]) scan(keep func(*V) bool) []*V {
	var out []*V
	x.mu.RLock()
	for k, row := range x.t.rows {
		if _, staged := x.writes[k]; staged {
			continue
		}
		if keep(row) {
			out = append(out, x.t.clone(row))
		}
	}
	x.mu.RUnlock()
	for _, k := range x.order {
		if row := x.writes[k].row; keep(row) {
			out = append(out, x.t.clone(row))
		}
	}
	return out
}

func (x *txTable[K, V]) create(k K, v *V) error {
	if _, ok := x.get(k); ok {
		return fmt.Errorf("%s %v: %w", x.t.name, k, sentinel.ErrAlreadyUsed)
	}
	if x.t.version != nil {
		*x.t.version(v) = 1
	}
	x.writes[k] = &pending[V]{row: x.t.clone(v), create: true}
	x.order = append(x.order, k)
	return nil
}

// update stages v if its version matches what this transaction last saw,
// then bumps the caller's copy.
func (x *txTable[K, V]) update(k K, v *V) error {
	current, ok := x.get(k)
	if !ok {
		return fmt.Errorf("%s %v: %w", x.t.name, k, sentinel.ErrNotFound)
	}
	seen := *x.t.version(v)
	if *x.t.version(current) != seen {
		return fmt.Errorf("%s %v: %w", x.t.name, k, sentinel.ErrConflict)
	}
	*x.t.version(v) = seen + 1
	if p, staged := x.writes[k]; staged {
		p.row = x.t.clone(v)
		return nil
	}
	x.writes[k] = &pending[V]{row: x.t.clone(v), base: seen}
	x.order = append(x.order, k)
	return nil
}

// validate runs under the store's write lock.
func (x *txTable[K, V]) validate() error {
	staged := make(map[string]K)
	for _, k := range x.order {
		p := x.writes[k]
		committed, exists := x.t.rows[k]
		switch {
		case p.create && exists:
			return fmt.Errorf("%s %v: %w", x.t.name, k, sentinel.ErrAlreadyUsed)
		case !p.create && !exists:
			return fmt.Errorf("%s %v: %w", x.t.name, k, sentinel.ErrNotFound)
		case !p.create && *x.t.version(committed) != p.base:
			return fmt.Errorf("%s %v: %w", x.t.name, k, sentinel.ErrConflict)
		}
		if x.t.unique == nil {
			continue
		}
		key, ok := x.t.unique(p.row)
		if !ok {
			continue
		}
		if other, dup := staged[key]; dup && other != k {
			return fmt.Errorf("%s %s: %w", x.t.name, key, sentinel.ErrAlreadyUsed)
		}
		staged[key] = k
		if holder, taken := x.t.index[key]; taken && holder != k {
			if hp, releasing := x.writes[holder]; releasing {
				if hk, still := x.t.unique(hp.row); !still || hk != key {
					continue
				}
			}
			return fmt.Errorf("%s %s: %w", x.t.name, key, sentinel.ErrAlreadyUsed)
		}
	}
	return nil
}

// apply runs under the store's write lock after every table validated.
func (x *txTable[K, V]) apply() {
	for _, k := range x.order {
		row := x.writes[k].row
		if x.t.unique != nil {
			if old, ok := x.t.rows[k]; ok {
				if key, had := x.t.unique(old); had && x.t.index[key] == k {
					delete(x.t.index, key)
				}
			}
			if key, ok := x.t.unique(row); ok {
				x.t.index[key] = k
			}
		}
		x.t.rows[k] = row
	}
}

type stager interface {
	validate() error
	apply()
}
