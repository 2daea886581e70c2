// Package ingest turns batched embedding extraction into a stat
// collection. Extraction may run on a worker pool, so batches complete in
// arbitrary order; assembly is strictly by input position, so the
// resulting collection is identical regardless of scheduling.
package ingest

import (
	"context"
	"fmt"

	"github.com/hupe1980/plda/stat"
	"golang.org/x/sync/errgroup"
)

// Batch is one extraction unit: utterance IDs and labels with their opaque
// waveform payloads. For anonymous test trials, Labels may be nil, in
// which case each record's label equals its ID.
type Batch struct {
	IDs       []string
	Labels    []string
	Waveforms [][]float64
	Lengths   []int
}

// Extractor maps a batch of waveforms to fixed-dimension embedding
// vectors, one per utterance. Treated as pure and synchronous; the neural
// extractor and its feature front-end live behind this function.
type Extractor func(ctx context.Context, b Batch) ([][]float64, error)

// Options configures an ingestion run.
type Options struct {
	// Workers is the number of concurrent extraction workers.
	// Values below 1 mean sequential extraction.
	Workers int
}

// Run extracts embeddings for every batch and assembles them into a
// frozen collection. The first extraction error cancels outstanding work.
func Run(ctx context.Context, batches []Batch, extract Extractor, opts Options) (*stat.Collection, error) {
	results := make([][][]float64, len(batches))

	g, ctx := errgroup.WithContext(ctx)
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, b := range batches {
		g.Go(func() error {
			embeddings, err := extract(ctx, b)
			if err != nil {
				return fmt.Errorf("ingest: batch %d: %w", i, err)
			}
			if len(embeddings) != len(b.IDs) {
				return fmt.Errorf("ingest: batch %d: extractor returned %d embeddings for %d utterances", i, len(embeddings), len(b.IDs))
			}
			results[i] = embeddings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Assembly in input order keeps the collection independent of worker
	// completion order.
	builder := stat.NewBuilder()
	for i, b := range batches {
		for j, id := range b.IDs {
			label := id
			if len(b.Labels) > 0 {
				label = b.Labels[j]
			}
			if err := builder.Add(id, label, results[i][j]); err != nil {
				return nil, err
			}
		}
	}
	return builder.Build(), nil
}
