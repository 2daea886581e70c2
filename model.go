package plda

import (
	"github.com/hupe1980/plda/persistence"
	"github.com/hupe1980/plda/stat"
	"gonum.org/v1/gonum/mat"
)

// Model holds the trained PLDA parameters: the global mean of the training
// vectors, the between-speaker factor loading matrix F (D x K, K <= D), and
// the within-speaker covariance Sigma (D x D, symmetric positive definite
// after regularization).
//
// Models are read-only after training; Scorer never mutates them.
type Model struct {
	mean  []float64
	f     *mat.Dense
	sigma *mat.SymDense
}

// Dim returns the embedding dimension D.
func (m *Model) Dim() int { return len(m.mean) }

// Rank returns the factor column count K.
func (m *Model) Rank() int {
	_, k := m.f.Dims()
	return k
}

// Mean returns the global mean vector. Callers must not mutate.
func (m *Model) Mean() []float64 { return m.mean }

// F returns the between-speaker factor loading matrix.
func (m *Model) F() mat.Matrix { return m.f }

// Sigma returns the within-speaker covariance.
func (m *Model) Sigma() mat.Symmetric { return m.sigma }

// Artifact returns the model's serialized representation.
func (m *Model) Artifact() *persistence.ModelArtifact {
	d := m.Dim()
	k := m.Rank()

	f := make([]float64, d*k)
	for i := 0; i < d; i++ {
		for j := 0; j < k; j++ {
			f[i*k+j] = m.f.At(i, j)
		}
	}
	sigma := make([]float64, d*d)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			sigma[i*d+j] = m.sigma.At(i, j)
		}
	}
	return &persistence.ModelArtifact{
		Dim:   d,
		Rank:  k,
		Mean:  append([]float64(nil), m.mean...),
		F:     f,
		Sigma: sigma,
	}
}

// ModelFromArtifact rebuilds a model from its serialized representation.
// If wantDim is positive and disagrees with the artifact's dimension, the
// load fails with a dimension mismatch so incompatible caches are rejected
// up front.
func ModelFromArtifact(a *persistence.ModelArtifact, wantDim int) (*Model, error) {
	if wantDim > 0 && a.Dim != wantDim {
		return nil, &stat.ErrDimensionMismatch{Expected: wantDim, Actual: a.Dim}
	}
	if len(a.Mean) != a.Dim || len(a.F) != a.Dim*a.Rank || len(a.Sigma) != a.Dim*a.Dim {
		return nil, &stat.ErrDimensionMismatch{Expected: a.Dim, Actual: len(a.Mean)}
	}

	f := mat.NewDense(a.Dim, a.Rank, append([]float64(nil), a.F...))
	sigma := mat.NewSymDense(a.Dim, nil)
	for i := 0; i < a.Dim; i++ {
		for j := i; j < a.Dim; j++ {
			sigma.SetSym(i, j, 0.5*(a.Sigma[i*a.Dim+j]+a.Sigma[j*a.Dim+i]))
		}
	}
	return &Model{
		mean:  append([]float64(nil), a.Mean...),
		f:     f,
		sigma: sigma,
	}, nil
}
