package stat

import (
	"fmt"

	"github.com/hupe1980/plda/persistence"
)

// Artifact returns the collection's serialized representation.
// The slices are copies; mutating them does not affect the collection.
func (c *Collection) Artifact() *persistence.StatArtifact {
	a := &persistence.StatArtifact{
		Dim:     c.dim,
		IDs:     append([]string(nil), c.ids...),
		Labels:  append([]string(nil), c.labels...),
		Vectors: append([]float64(nil), c.slab...),
	}
	return a
}

// FromArtifact rebuilds a collection from its serialized representation.
func FromArtifact(a *persistence.StatArtifact) (*Collection, error) {
	if len(a.IDs) != len(a.Labels) {
		return nil, fmt.Errorf("stat: artifact has %d ids but %d labels", len(a.IDs), len(a.Labels))
	}
	if len(a.Vectors) != len(a.IDs)*a.Dim {
		return nil, &ErrDimensionMismatch{Expected: len(a.IDs) * a.Dim, Actual: len(a.Vectors)}
	}

	b := NewBuilder()
	for i, id := range a.IDs {
		if err := b.Add(id, a.Labels[i], a.Vectors[i*a.Dim:(i+1)*a.Dim]); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}
