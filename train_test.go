package plda

import (
	"errors"
	"testing"

	"github.com/hupe1980/plda/stat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCollection(t *testing.T, records [][3]any) *stat.Collection {
	t.Helper()
	b := stat.NewBuilder()
	for _, r := range records {
		require.NoError(t, b.Add(r[0].(string), r[1].(string), r[2].([]float64)))
	}
	return b.Build()
}

func symmetricTrainingSet(t *testing.T) *stat.Collection {
	return buildCollection(t, [][3]any{
		{"a1", "A", []float64{1, 1}},
		{"a2", "A", []float64{1.1, 0.9}},
		{"b1", "B", []float64{-1, -1}},
		{"b2", "B", []float64{-0.9, -1.1}},
	})
}

func TestTrain_SymmetricScenario(t *testing.T) {
	model, err := NewTrainer().Train(symmetricTrainingSet(t))
	require.NoError(t, err)

	assert.Equal(t, 2, model.Dim())
	assert.GreaterOrEqual(t, model.Rank(), 1)
	// By symmetry of the two clusters the global mean is near the origin.
	assert.InDelta(t, 0.0, model.Mean()[0], 0.1)
	assert.InDelta(t, 0.0, model.Mean()[1], 0.1)

	// Sigma must stay symmetric positive definite.
	sigma := model.Sigma()
	for i := 0; i < 2; i++ {
		assert.Greater(t, sigma.At(i, i), 0.0)
		for j := 0; j < 2; j++ {
			assert.Equal(t, sigma.At(i, j), sigma.At(j, i))
		}
	}
}

func TestTrain_InsufficientData(t *testing.T) {
	// Single label.
	single := buildCollection(t, [][3]any{
		{"a1", "A", []float64{1, 0}},
		{"a2", "A", []float64{0, 1}},
	})
	_, err := NewTrainer().Train(single)
	var insufficient *ErrInsufficientTrainingData
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 1, insufficient.Labels)

	// Two labels but no label with two records.
	singletons := buildCollection(t, [][3]any{
		{"a1", "A", []float64{1, 0}},
		{"b1", "B", []float64{0, 1}},
	})
	_, err = NewTrainer().Train(singletons)
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 0, insufficient.MultiLabels)
}

func TestTrain_DegenerateModel(t *testing.T) {
	_, err := NewTrainer(WithEigenThreshold(1e12)).Train(symmetricTrainingSet(t))
	require.True(t, errors.Is(err, ErrDegenerateModel))
}

func TestTrain_RankCap(t *testing.T) {
	c := buildCollection(t, [][3]any{
		{"a1", "A", []float64{1, 0, 0}},
		{"a2", "A", []float64{1.1, 0.1, 0}},
		{"b1", "B", []float64{0, 1, 0}},
		{"b2", "B", []float64{0.1, 1.1, 0}},
		{"c1", "C", []float64{0, 0, 1}},
		{"c2", "C", []float64{0, 0.1, 1.1}},
	})

	model, err := NewTrainer(WithRank(1)).Train(c)
	require.NoError(t, err)
	assert.Equal(t, 1, model.Rank())
}

func TestTrain_Deterministic(t *testing.T) {
	c := symmetricTrainingSet(t)

	m1, err := NewTrainer().Train(c)
	require.NoError(t, err)
	m2, err := NewTrainer().Train(c)
	require.NoError(t, err)

	// Identical input ordering gives identical summation order.
	assert.Equal(t, m1.Mean(), m2.Mean())
	assert.Equal(t, m1.Artifact().F, m2.Artifact().F)
	assert.Equal(t, m1.Artifact().Sigma, m2.Artifact().Sigma)
}

func TestTrain_EMRefinement(t *testing.T) {
	model, err := NewTrainer(WithEMIterations(5)).Train(symmetricTrainingSet(t))
	require.NoError(t, err)
	assert.Equal(t, 2, model.Dim())

	// EM must preserve the PSD invariant on Sigma.
	sigma := model.Sigma()
	assert.Greater(t, sigma.At(0, 0), 0.0)
	assert.Greater(t, sigma.At(1, 1), 0.0)

	// And the refined model must still separate the two speakers.
	requireSeparation(t, model)
}

// requireSeparation scores the canonical enroll/test split and checks the
// same-speaker trials outrank the cross-speaker ones.
func requireSeparation(t *testing.T, model *Model) {
	t.Helper()
	enroll := buildCollection(t, [][3]any{
		{"eA", "A", []float64{1, 1}},
		{"eB", "B", []float64{-1, -1}},
	})
	test := buildCollection(t, [][3]any{
		{"t1", "t1", []float64{1, 1}},
		{"t2", "t2", []float64{-1, -1}},
	})
	index := mustIndex(t, []string{"A", "B"}, []string{"t1", "t2"})

	scores, err := NewScorer().Score(model, enroll, test, index)
	require.NoError(t, err)

	assert.Greater(t, scores.At(0, 0), scores.At(0, 1), "score(A,t1) must beat score(A,t2)")
	assert.Greater(t, scores.At(1, 1), scores.At(1, 0), "score(B,t2) must beat score(B,t1)")
}

func TestTrain_ScoringPreference(t *testing.T) {
	model, err := NewTrainer().Train(symmetricTrainingSet(t))
	require.NoError(t, err)
	requireSeparation(t, model)
}
