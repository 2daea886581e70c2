package ingest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/hupe1980/plda/stat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubExtractor derives an embedding from the utterance ID so results are
// verifiable without a real model.
func stubExtractor(_ context.Context, b Batch) ([][]float64, error) {
	out := make([][]float64, len(b.IDs))
	for i, id := range b.IDs {
		out[i] = []float64{float64(len(id)), float64(id[0])}
	}
	return out, nil
}

func makeBatches(n int) []Batch {
	batches := make([]Batch, n)
	for i := range batches {
		batches[i] = Batch{
			IDs:    []string{fmt.Sprintf("utt%02d_a", i), fmt.Sprintf("utt%02d_b", i)},
			Labels: []string{fmt.Sprintf("spk%d", i%3), fmt.Sprintf("spk%d", i%3)},
		}
	}
	return batches
}

func TestRun_Sequential(t *testing.T) {
	c, err := Run(context.Background(), makeBatches(4), stubExtractor, Options{})
	require.NoError(t, err)
	require.Equal(t, 8, c.Size())
	require.Equal(t, 2, c.Dim())

	rec, ok := c.Lookup("utt02_a")
	require.True(t, ok)
	assert.Equal(t, "spk2", rec.Label)
	assert.Equal(t, []float64{7, float64('u')}, rec.Vector)
}

func TestRun_OrderIndependent(t *testing.T) {
	// Jittered extraction shuffles completion order; the assembled
	// collection must not notice.
	jittered := func(ctx context.Context, b Batch) ([][]float64, error) {
		time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
		return stubExtractor(ctx, b)
	}

	batches := makeBatches(12)
	first, err := Run(context.Background(), batches, jittered, Options{Workers: 8})
	require.NoError(t, err)
	second, err := Run(context.Background(), batches, jittered, Options{Workers: 3})
	require.NoError(t, err)

	require.Equal(t, first.IDs(), second.IDs())
	require.Equal(t, first.Labels(), second.Labels())
	for _, id := range first.IDs() {
		a, _ := first.Lookup(id)
		b, _ := second.Lookup(id)
		assert.Equal(t, a.Vector, b.Vector)
	}
}

func TestRun_AnonymousLabels(t *testing.T) {
	batches := []Batch{{IDs: []string{"t1", "t2"}}}
	c, err := Run(context.Background(), batches, stubExtractor, Options{})
	require.NoError(t, err)

	rec, ok := c.Lookup("t1")
	require.True(t, ok)
	assert.Equal(t, "t1", rec.Label)
}

func TestRun_ExtractorError(t *testing.T) {
	boom := errors.New("gpu on fire")
	failing := func(_ context.Context, b Batch) ([][]float64, error) {
		if b.IDs[0] == "utt02_a" {
			return nil, boom
		}
		return stubExtractor(context.Background(), b)
	}

	_, err := Run(context.Background(), makeBatches(4), failing, Options{Workers: 2})
	require.ErrorIs(t, err, boom)
}

func TestRun_CountMismatch(t *testing.T) {
	short := func(_ context.Context, b Batch) ([][]float64, error) {
		return [][]float64{{1, 2}}, nil
	}
	_, err := Run(context.Background(), makeBatches(1), short, Options{})
	require.ErrorContains(t, err, "1 embeddings for 2 utterances")
}

func TestRun_DuplicateIDAcrossBatches(t *testing.T) {
	batches := []Batch{
		{IDs: []string{"utt1"}, Labels: []string{"a"}},
		{IDs: []string{"utt1"}, Labels: []string{"b"}},
	}
	_, err := Run(context.Background(), batches, stubExtractor, Options{})
	var dup *stat.ErrDuplicateID
	require.ErrorAs(t, err, &dup)
}
