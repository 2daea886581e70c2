package eer

import (
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/plda/ndx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_DisjointClusters(t *testing.T) {
	// All positives strictly above all negatives: a perfect system.
	positive := []float64{5, 6, 7, 8}
	negative := []float64{-3, -2, -1, 0}

	res, err := Compute(positive, negative)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.EER)
	assert.LessOrEqual(t, res.Threshold, 5.0)
	assert.Greater(t, res.Threshold, 0.0)
}

func TestCompute_IdenticalSets(t *testing.T) {
	scores := []float64{1, 2, 3, 4}

	res, err := Compute(scores, scores)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.EER, 1e-12)
}

func TestCompute_InsufficientTrials(t *testing.T) {
	_, err := Compute(nil, []float64{1})
	require.True(t, errors.Is(err, ErrInsufficientTrials))

	_, err = Compute([]float64{1}, nil)
	require.True(t, errors.Is(err, ErrInsufficientTrials))
}

func TestCompute_PartialOverlap(t *testing.T) {
	positive := []float64{1, 2, 3, 4, 5}
	negative := []float64{-2, -1, 0, 1, 2}

	res, err := Compute(positive, negative)
	require.NoError(t, err)
	assert.Greater(t, res.EER, 0.0)
	assert.Less(t, res.EER, 0.5)
}

func TestRates_Monotonic(t *testing.T) {
	points := Rates([]float64{1, 2, 3}, []float64{-1, 0, 1})
	require.NotEmpty(t, points)
	for i := 1; i < len(points); i++ {
		assert.GreaterOrEqual(t, points[i].Threshold, points[i-1].Threshold)
		assert.LessOrEqual(t, points[i].FAR, points[i-1].FAR)
		assert.GreaterOrEqual(t, points[i].FRR, points[i-1].FRR)
	}
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"id10270/x6uYqmx31kE/00001.wav", "00001"},
		{`dir\sub\utt42.flac`, "utt42"},
		{"plain", "plain"},
		{" utt7.wav ", "utt7"},
		{"utt.tar.gz", "utt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeID(tt.ref), "ref %q", tt.ref)
	}
}

func TestParseTrials(t *testing.T) {
	input := strings.Join([]string{
		"1 spk1/a/utt1.wav spk1/b/utt2.wav",
		"0 spk1/a/utt1.wav spk2/c/utt3.wav",
		"",
		"1 utt4 utt5",
	}, "\n")

	trials, err := ParseTrials(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, trials, 3)
	assert.Equal(t, Trial{Target: true, EnrollID: "utt1", TestID: "utt2"}, trials[0])
	assert.Equal(t, Trial{Target: false, EnrollID: "utt1", TestID: "utt3"}, trials[1])
	assert.Equal(t, Trial{Target: true, EnrollID: "utt4", TestID: "utt5"}, trials[2])
}

func TestParseTrials_Malformed(t *testing.T) {
	_, err := ParseTrials(strings.NewReader("1 onlyone"))
	require.ErrorContains(t, err, "line 1")

	_, err = ParseTrials(strings.NewReader("2 a b"))
	require.ErrorContains(t, err, "bad label")
}

type mapScores map[[2]string]float64

func (m mapScores) Lookup(enrollID, testID string) (float64, error) {
	s, ok := m[[2]string{enrollID, testID}]
	if !ok {
		return 0, &ndx.ErrTrialNotFound{EnrollID: enrollID, TestID: testID}
	}
	return s, nil
}

func TestEvaluate(t *testing.T) {
	scores := mapScores{
		{"e1", "t1"}: 5,
		{"e1", "t2"}: -5,
		{"e2", "t1"}: -4,
		{"e2", "t2"}: 4,
	}
	trials := []Trial{
		{Target: true, EnrollID: "e1", TestID: "t1"},
		{Target: false, EnrollID: "e1", TestID: "t2"},
		{Target: false, EnrollID: "e2", TestID: "t1"},
		{Target: true, EnrollID: "e2", TestID: "t2"},
	}

	res, err := Evaluate(scores, trials)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.EER)
}

func TestEvaluate_TrialNotFound(t *testing.T) {
	scores := mapScores{{"e1", "t1"}: 1}
	trials := []Trial{
		{Target: true, EnrollID: "e1", TestID: "t1"},
		{Target: false, EnrollID: "ghost", TestID: "t1"},
	}

	_, err := Evaluate(scores, trials)
	var nf *ndx.ErrTrialNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "ghost", nf.EnrollID)
}
