package dict

import (
	"fmt"
	"strings"
	"sync"

	"github.com/proofdex/proofdex/internal/ir"
)

// Validator checks a candidate record before it is assigned an index. next
// is the index the record would receive, which doubles as the exclusive
// upper bound for same-table argument references (acyclicity).
type Validator func(v ir.TableValue, next int) error

// Table is one interning table: an ordered entry list plus the structural
// index map that is its exact inverse.
//
// Concurrency: Intern is a critical section per table. Check-then-insert is
// atomic under the table mutex so two concurrent callers can never assign
// two different indices to the same structural record.
type Table struct {
	name     string
	validate Validator

	mu         sync.Mutex
	entries    []ir.TableValue
	index      map[string]int
	reserved   map[int]bool
	checkpoint int // -1 when no checkpoint is set
}

// NewTable creates an empty table. validate may be nil, in which case only
// same-table acyclicity is enforced on plain args.
func NewTable(name string, validate Validator) *Table {
	return &Table{
		name:       name,
		validate:   validate,
		index:      make(map[string]int),
		reserved:   make(map[int]bool),
		checkpoint: -1,
	}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Len returns the number of assigned indices, including reserved ones.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Intern returns the canonical index for (tags, args), assigning a new one
// only if no structurally equal record exists. The second call with equal
// content returns the same index and performs no mutation.
func (t *Table) Intern(tags []string, args []int) (int, error) {
	v := ir.NewTableValue(tags, args)

	t.mu.Lock()
	defer t.mu.Unlock()

	key := v.Key()
	if ix, ok := t.index[key]; ok {
		return ix, nil
	}
	next := len(t.entries)
	if err := t.check(v, next); err != nil {
		return 0, err
	}
	t.entries = append(t.entries, v)
	t.index[key] = next
	return next, nil
}

// check runs the configured validator, or the default same-table bound.
func (t *Table) check(v ir.TableValue, next int) error {
	if t.validate != nil {
		return t.validate(v, next)
	}
	for _, a := range v.Args {
		if a < 0 || a >= next {
			return &DanglingReferenceError{Table: t.name, Index: a}
		}
	}
	return nil
}

// Resolve returns the record at ix.
func (t *Table) Resolve(ix int) (ir.TableValue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ix < 0 || ix >= len(t.entries) {
		return ir.TableValue{}, &UnknownIndexError{Table: t.name, Index: ix}
	}
	if t.reserved[ix] {
		return ir.TableValue{}, &UnknownIndexError{Table: t.name, Index: ix}
	}
	return t.entries[ix], nil
}

// Values returns a copy of the entry list in index order.
func (t *Table) Values() []ir.TableValue {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ir.TableValue, len(t.entries))
	copy(out, t.entries)
	return out
}

// Reserve assigns the next index without content, for records that cannot be
// fully constructed yet (recursive structs during linking). The reserved
// index must later be filled by CommitReserved.
func (t *Table) Reserve() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	ix := len(t.entries)
	t.entries = append(t.entries, ir.TableValue{})
	t.reserved[ix] = true
	return ix
}

// CommitReserved fills a previously reserved index with its record content
// and returns the canonical index for that content. When the content turns
// out to duplicate an already-interned record, the reserved slot is filled
// anyway so references handed out before the duplication was known stay
// resolvable, while the index map and the returned index stay on the first
// occurrence.
func (t *Table) CommitReserved(ix int, tags []string, args []int) (int, error) {
	v := ir.NewTableValue(tags, args)

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.reserved[ix] {
		return 0, fmt.Errorf("table %q: index %d is not reserved", t.name, ix)
	}
	t.entries[ix] = v
	delete(t.reserved, ix)
	key := v.Key()
	if prior, ok := t.index[key]; ok {
		return prior, nil
	}
	t.index[key] = ix
	return ix, nil
}

// SetCheckpoint marks the current table length. A later ResetToCheckpoint
// discards everything assigned since.
func (t *Table) SetCheckpoint() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkpoint = len(t.entries)
}

// ResetToCheckpoint truncates the table back to the checkpoint and returns
// the checkpoint index. Reserved indices past the checkpoint are dropped.
func (t *Table) ResetToCheckpoint() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := t.checkpoint
	if cp < 0 || cp > len(t.entries) {
		cp = len(t.entries)
	}
	for key, ix := range t.index {
		if ix >= cp {
			delete(t.index, key)
		}
	}
	for ix := range t.reserved {
		if ix >= cp {
			delete(t.reserved, ix)
		}
	}
	t.entries = t.entries[:cp]
	t.checkpoint = -1
	return cp
}

// RemoveCheckpoint discards the checkpoint without truncating.
func (t *Table) RemoveCheckpoint() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkpoint = -1
}

// load replays persisted entries in order, rebuilding the index map. Each
// entry lands on its original position. Duplicate content is kept in place
// with the index map pointing at the first occurrence, mirroring the alias
// left behind when a reserved index committed onto existing content.
func (t *Table) load(entries []ir.TableValue) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) != 0 {
		return fmt.Errorf("table %q: load into non-empty table", t.name)
	}
	for i, v := range entries {
		t.entries = append(t.entries, v)
		key := v.Key()
		if _, ok := t.index[key]; !ok {
			t.index[key] = i
		}
	}
	return nil
}

// String renders the table for diagnostics: name, size, and entries.
func (t *Table) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "%-25s%4d\n", t.name, len(t.entries))
	for i, v := range t.entries {
		fmt.Fprintf(&b, "%4d  %s\n", i, v.Key())
	}
	return b.String()
}
