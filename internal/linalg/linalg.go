// Package linalg provides the small set of symmetric-matrix operations the
// PLDA trainer and scorer share: diagonal regularization, Cholesky-based
// inversion with log-determinants, and thresholded eigenfactorization.
//
// Everything is float64. Matrices are tiny by linear-algebra standards
// (embedding dimension squared), so clarity wins over blocking tricks.
package linalg

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNotPositiveDefinite is returned when a Cholesky factorization fails,
// i.e. the matrix is not positive definite within floating-point tolerance.
var ErrNotPositiveDefinite = errors.New("linalg: matrix not positive definite")

// Regularize adds eps to every diagonal entry of s in place.
// This is the proactive guard against near-zero variance dimensions; callers
// apply it before any inversion rather than reacting to failures.
func Regularize(s *mat.SymDense, eps float64) {
	n := s.SymmetricDim()
	for i := 0; i < n; i++ {
		s.SetSym(i, i, s.At(i, i)+eps)
	}
}

// InvertSPD inverts a symmetric positive definite matrix via Cholesky and
// returns the inverse together with the log-determinant of the original
// matrix. Returns ErrNotPositiveDefinite if the factorization fails.
func InvertSPD(s mat.Symmetric) (*mat.SymDense, float64, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(s); !ok {
		return nil, 0, ErrNotPositiveDefinite
	}
	inv := mat.NewSymDense(s.SymmetricDim(), nil)
	if err := chol.InverseTo(inv); err != nil {
		return nil, 0, ErrNotPositiveDefinite
	}
	return inv, chol.LogDet(), nil
}

// SolveSPD solves s * x = b via Cholesky. b and the result are dense.
func SolveSPD(s mat.Symmetric, b mat.Matrix) (*mat.Dense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(s); !ok {
		return nil, ErrNotPositiveDefinite
	}
	var x mat.Dense
	if err := chol.SolveTo(&x, b); err != nil {
		return nil, ErrNotPositiveDefinite
	}
	return &x, nil
}

// AsSym converts a nearly-symmetric dense matrix into a SymDense by
// averaging a with its transpose. Floating-point products of symmetric
// matrices drift off symmetry in the low-order bits; this clamps them back.
func AsSym(a mat.Matrix) *mat.SymDense {
	n, c := a.Dims()
	if n != c {
		panic("linalg: AsSym requires a square matrix")
	}
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}
	return s
}

// SubSym returns a - b for symmetric matrices of equal dimension.
func SubSym(a, b mat.Symmetric) *mat.SymDense {
	n := a.SymmetricDim()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, a.At(i, j)-b.At(i, j))
		}
	}
	return s
}

// AddSym returns a + b for symmetric matrices of equal dimension.
func AddSym(a, b mat.Symmetric) *mat.SymDense {
	n := a.SymmetricDim()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, a.At(i, j)+b.At(i, j))
		}
	}
	return s
}

// FactorTopK eigendecomposes the symmetric matrix b and returns the loading
// matrix F = V_k * diag(sqrt(lambda_k)) built from the k largest eigenvalues
// strictly above threshold, with k additionally capped by maxK (maxK <= 0
// means no cap). Returns rank 0 (nil matrix) if no eigenvalue qualifies;
// the caller decides whether that is an error.
func FactorTopK(b mat.Symmetric, threshold float64, maxK int) *mat.Dense {
	n := b.SymmetricDim()

	var eig mat.EigenSym
	if ok := eig.Factorize(b, true); !ok {
		return nil
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// gonum returns eigenvalues in ascending order; walk from the top.
	k := 0
	for i := n - 1; i >= 0; i-- {
		if vals[i] <= threshold {
			break
		}
		k++
	}
	if maxK > 0 && k > maxK {
		k = maxK
	}
	if k == 0 {
		return nil
	}

	f := mat.NewDense(n, k, nil)
	for col := 0; col < k; col++ {
		src := n - 1 - col
		scale := math.Sqrt(vals[src])
		for row := 0; row < n; row++ {
			f.Set(row, col, vecs.At(row, src)*scale)
		}
	}
	return f
}

// QuadDiag computes the per-row quadratic form diag(X * A * X^T) for the
// n x d matrix X and the d x d symmetric matrix A, without materializing the
// full n x n product.
func QuadDiag(x *mat.Dense, a mat.Symmetric) []float64 {
	n, _ := x.Dims()
	var xa mat.Dense
	xa.Mul(x, a)

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = mat.Dot(mat.NewVecDense(len(x.RawRowView(i)), x.RawRowView(i)),
			mat.NewVecDense(len(xa.RawRowView(i)), xa.RawRowView(i)))
	}
	return out
}
