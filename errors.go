package plda

import (
	"errors"
	"fmt"

	"github.com/hupe1980/plda/internal/linalg"
)

var (
	// ErrSingularMatrix is returned when a covariance matrix cannot be
	// inverted within tolerance, even after diagonal regularization.
	ErrSingularMatrix = errors.New("matrix is singular within tolerance")

	// ErrDegenerateModel is returned when no between-class eigenvalue
	// exceeds the configured threshold, leaving the factor matrix empty.
	ErrDegenerateModel = errors.New("degenerate model: no usable between-class components")
)

// ErrInsufficientTrainingData indicates that the training collection cannot
// support covariance estimation.
//
// Training requires at least two distinct labels and at least one label with
// two or more records.
type ErrInsufficientTrainingData struct {
	Labels      int
	MultiLabels int
}

func (e *ErrInsufficientTrainingData) Error() string {
	return fmt.Sprintf("insufficient training data: %d labels, %d with multiple records", e.Labels, e.MultiLabels)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, linalg.ErrNotPositiveDefinite) {
		return fmt.Errorf("%w: %w", ErrSingularMatrix, err)
	}
	return err
}
