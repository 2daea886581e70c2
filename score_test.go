package plda

import (
	"errors"
	"math"
	"testing"

	"github.com/hupe1980/plda/ndx"
	"github.com/hupe1980/plda/stat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustIndex(t *testing.T, models, segments []string) *ndx.Index {
	t.Helper()
	index, err := ndx.New(models, segments)
	require.NoError(t, err)
	return index
}

func trainedModel(t *testing.T) *Model {
	t.Helper()
	model, err := NewTrainer().Train(symmetricTrainingSet(t))
	require.NoError(t, err)
	return model
}

func scoringSplit(t *testing.T) (*stat.Collection, *stat.Collection) {
	t.Helper()
	enroll := buildCollection(t, [][3]any{
		{"eA", "A", []float64{1, 1}},
		{"eB", "B", []float64{-1, -1}},
	})
	test := buildCollection(t, [][3]any{
		{"t1", "t1", []float64{1, 1}},
		{"t2", "t2", []float64{-1, -1}},
	})
	return enroll, test
}

func TestScore_Idempotent(t *testing.T) {
	model := trainedModel(t)
	enroll, test := scoringSplit(t)
	index := mustIndex(t, []string{"A", "B"}, []string{"t1", "t2"})

	first, err := NewScorer().Score(model, enroll, test, index)
	require.NoError(t, err)
	second, err := NewScorer().Score(model, enroll, test, index)
	require.NoError(t, err)

	// Same inputs walk the same summation order, so the scores must match
	// bit for bit, not merely within tolerance.
	for i := 0; i < first.NumModels(); i++ {
		for j := 0; j < first.NumSegments(); j++ {
			assert.Equal(t, first.At(i, j), second.At(i, j))
		}
	}
}

func TestScore_Lookup(t *testing.T) {
	model := trainedModel(t)
	enroll, test := scoringSplit(t)
	index := mustIndex(t, []string{"A", "B"}, []string{"t1", "t2"})

	scores, err := NewScorer().Score(model, enroll, test, index)
	require.NoError(t, err)

	got, err := scores.Lookup("A", "t1")
	require.NoError(t, err)
	assert.Equal(t, scores.At(0, 0), got)

	_, err = scores.Lookup("A", "nope")
	var notFound *ndx.ErrTrialNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestScore_MaskedTrialIsNaN(t *testing.T) {
	model := trainedModel(t)
	enroll, test := scoringSplit(t)
	index := mustIndex(t, []string{"A", "B"}, []string{"t1", "t2"})
	require.NoError(t, index.Exclude("A", "t2"))

	scores, err := NewScorer().Score(model, enroll, test, index)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(scores.At(0, 1)))
	assert.False(t, math.IsNaN(scores.At(0, 0)))
	assert.False(t, math.IsNaN(scores.At(1, 0)))
	assert.False(t, math.IsNaN(scores.At(1, 1)))
}

func TestScore_DimensionMismatch(t *testing.T) {
	model := trainedModel(t)
	enroll := buildCollection(t, [][3]any{
		{"eA", "A", []float64{1, 1, 1}},
	})
	test := buildCollection(t, [][3]any{
		{"t1", "t1", []float64{1, 1, 1}},
	})
	index := mustIndex(t, []string{"A"}, []string{"t1"})

	_, err := NewScorer().Score(model, enroll, test, index)
	var mismatch *stat.ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.Expected)
	assert.Equal(t, 3, mismatch.Actual)
}

func TestScore_MissingEnrollment(t *testing.T) {
	model := trainedModel(t)
	enroll, test := scoringSplit(t)
	index := mustIndex(t, []string{"A", "C"}, []string{"t1", "t2"})

	_, err := NewScorer().Score(model, enroll, test, index)
	var notFound *ndx.ErrTrialNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "C", notFound.EnrollID)
}

func TestScore_SymmetricLLRStructure(t *testing.T) {
	model := trainedModel(t)
	enroll, test := scoringSplit(t)
	index := mustIndex(t, []string{"A", "B"}, []string{"t1", "t2"})

	scores, err := NewScorer().Score(model, enroll, test, index)
	require.NoError(t, err)

	// The setup is mirror symmetric, so the matched and mismatched trials
	// should come out near-identical across the two speakers.
	assert.InDelta(t, scores.At(0, 0), scores.At(1, 1), 1e-6)
	assert.InDelta(t, scores.At(0, 1), scores.At(1, 0), 1e-6)
	assert.Greater(t, scores.At(0, 0), scores.At(0, 1))
}

func TestModel_ArtifactRoundTrip(t *testing.T) {
	model := trainedModel(t)
	enroll, test := scoringSplit(t)
	index := mustIndex(t, []string{"A", "B"}, []string{"t1", "t2"})

	restored, err := ModelFromArtifact(model.Artifact(), model.Dim())
	require.NoError(t, err)
	assert.Equal(t, model.Dim(), restored.Dim())
	assert.Equal(t, model.Rank(), restored.Rank())

	orig, err := NewScorer().Score(model, enroll, test, index)
	require.NoError(t, err)
	rest, err := NewScorer().Score(restored, enroll, test, index)
	require.NoError(t, err)

	for i := 0; i < orig.NumModels(); i++ {
		for j := 0; j < orig.NumSegments(); j++ {
			assert.InDelta(t, orig.At(i, j), rest.At(i, j), 1e-9)
		}
	}
}

func TestModel_FromArtifactDimensionMismatch(t *testing.T) {
	model := trainedModel(t)

	_, err := ModelFromArtifact(model.Artifact(), 5)
	var mismatch *stat.ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.True(t, errors.As(err, &mismatch))
}
