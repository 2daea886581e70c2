// Package stat implements the sufficient-statistics container for
// speaker-verification embeddings: one record per utterance carrying its
// unique ID, its speaker (model) label, and its first-order statistic
// vector, i.e. the embedding itself.
//
// Collections are built through a Builder and frozen afterwards: safe for
// concurrent reads, never mutated. A new collection is built wholesale when
// inputs change.
package stat

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrFrozenCollection is returned by Builder.Add after Build has been called.
var ErrFrozenCollection = errors.New("stat: collection is frozen")

// ErrDuplicateID indicates that a record ID is already present.
type ErrDuplicateID struct {
	ID string
}

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("stat: duplicate id %q", e.ID)
}

// ErrDimensionMismatch indicates a vector dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Record is one utterance's sufficient statistics.
// For anonymous test-time trials, Label equals ID.
type Record struct {
	ID     string
	Label  string
	Vector []float64
}

// Builder accumulates records and produces an immutable Collection.
// Not safe for concurrent use; the resulting Collection is.
type Builder struct {
	dim    int
	ids    []string
	labels []string
	slab   []float64
	byID   map[string]int
	frozen bool
}

// NewBuilder creates an empty Builder. The dimension is established by the
// first Add call and enforced for every subsequent record.
func NewBuilder() *Builder {
	return &Builder{byID: make(map[string]int)}
}

// Add appends one record. The vector is copied.
func (b *Builder) Add(id, label string, vector []float64) error {
	if b.frozen {
		return ErrFrozenCollection
	}
	if len(vector) == 0 {
		return &ErrDimensionMismatch{Expected: b.dim, Actual: 0}
	}
	if b.dim == 0 {
		b.dim = len(vector)
	} else if len(vector) != b.dim {
		return &ErrDimensionMismatch{Expected: b.dim, Actual: len(vector)}
	}
	if _, ok := b.byID[id]; ok {
		return &ErrDuplicateID{ID: id}
	}

	b.byID[id] = len(b.ids)
	b.ids = append(b.ids, id)
	b.labels = append(b.labels, label)
	b.slab = append(b.slab, vector...)
	return nil
}

// Size returns the number of records added so far.
func (b *Builder) Size() int { return len(b.ids) }

// Build finalizes the derived index mappings and freezes the builder.
// Further Add calls fail with ErrFrozenCollection.
func (b *Builder) Build() *Collection {
	b.frozen = true

	byLabel := make(map[string][]int)
	var labelOrder []string
	for i, label := range b.labels {
		if _, seen := byLabel[label]; !seen {
			labelOrder = append(labelOrder, label)
		}
		byLabel[label] = append(byLabel[label], i)
	}

	return &Collection{
		dim:        b.dim,
		ids:        b.ids,
		labels:     b.labels,
		slab:       b.slab,
		byID:       b.byID,
		byLabel:    byLabel,
		labelOrder: labelOrder,
	}
}

// Collection is an immutable, ordered sequence of records with derived
// id and label index mappings. Safe for concurrent reads.
type Collection struct {
	dim        int
	ids        []string
	labels     []string
	slab       []float64 // row-major, Size() x dim
	byID       map[string]int
	byLabel    map[string][]int
	labelOrder []string // distinct labels in first-seen order
}

// Size returns the number of records.
func (c *Collection) Size() int { return len(c.ids) }

// Dim returns the shared vector dimension (0 for an empty collection).
func (c *Collection) Dim() int { return c.dim }

// IDs returns the record IDs in insertion order. Callers must not mutate.
func (c *Collection) IDs() []string { return c.ids }

// Labels returns the per-record labels in insertion order.
// Callers must not mutate.
func (c *Collection) Labels() []string { return c.labels }

// DistinctLabels returns the distinct labels in first-seen order.
// Callers must not mutate.
func (c *Collection) DistinctLabels() []string { return c.labelOrder }

// At returns the record at position i. The vector aliases internal storage
// and must be treated as read-only.
func (c *Collection) At(i int) Record {
	return Record{
		ID:     c.ids[i],
		Label:  c.labels[i],
		Vector: c.slab[i*c.dim : (i+1)*c.dim],
	}
}

// Lookup returns the record with the given ID.
func (c *Collection) Lookup(id string) (Record, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Record{}, false
	}
	return c.At(i), true
}

// IndicesByLabel returns the record positions carrying the given label, in
// insertion order. Callers must not mutate.
func (c *Collection) IndicesByLabel(label string) []int {
	return c.byLabel[label]
}

// FirstIndexByLabel returns the position of the first record carrying the
// given label.
func (c *Collection) FirstIndexByLabel(label string) (int, bool) {
	idx := c.byLabel[label]
	if len(idx) == 0 {
		return 0, false
	}
	return idx[0], true
}

// MatrixView returns the records as a Size() x Dim() dense matrix backed by
// the collection's storage. The returned matrix must be treated as
// read-only.
func (c *Collection) MatrixView() *mat.Dense {
	if c.Size() == 0 {
		return nil
	}
	return mat.NewDense(c.Size(), c.dim, c.slab)
}

// Mean returns the mean vector over all records.
func (c *Collection) Mean() []float64 {
	mean := make([]float64, c.dim)
	if c.Size() == 0 {
		return mean
	}
	for i := 0; i < c.Size(); i++ {
		row := c.slab[i*c.dim : (i+1)*c.dim]
		for d, v := range row {
			mean[d] += v
		}
	}
	inv := 1.0 / float64(c.Size())
	for d := range mean {
		mean[d] *= inv
	}
	return mean
}

// LabelSum returns the element-wise sum of all vectors carrying the given
// label and the number of such vectors.
func (c *Collection) LabelSum(label string) ([]float64, int) {
	idx := c.byLabel[label]
	if len(idx) == 0 {
		return nil, 0
	}
	sum := make([]float64, c.dim)
	for _, i := range idx {
		row := c.slab[i*c.dim : (i+1)*c.dim]
		for d, v := range row {
			sum[d] += v
		}
	}
	return sum, len(idx)
}
