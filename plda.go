// Package plda implements the statistical backend of a speaker-verification
// pipeline: Probabilistic Linear Discriminant Analysis over fixed-length
// embedding vectors.
//
// Given per-utterance embeddings with string identities, it provides:
//
//   - stat: sufficient-statistics collections for train/enroll/test splits
//   - ndx: the trial index enumerating enrollment x test pairs
//   - Trainer: two-covariance PLDA estimation with EM refinement
//   - Scorer: batched log-likelihood-ratio scoring for all trials
//   - eer: equal-error-rate evaluation against ground-truth labels
//
// Embedding extraction is an external collaborator consumed through
// ingest.Extractor; this package never touches audio or model weights.
//
// # Quick Start
//
//	trainer := plda.NewTrainer(plda.WithEMIterations(10))
//	model, err := trainer.Train(trainStats)
//	if err != nil {
//	    return err
//	}
//
//	index, err := ndx.New(enrollStats.DistinctLabels(), testStats.IDs())
//	if err != nil {
//	    return err
//	}
//
//	scores, err := plda.NewScorer().Score(model, enrollStats, testStats, index)
//	if err != nil {
//	    return err
//	}
//
//	result, err := eer.Evaluate(scores, trials)
//
// For end-to-end runs with artifact caching, see Pipeline.
package plda

import (
	"bytes"
	"context"
	"fmt"

	"github.com/hupe1980/plda/eer"
	"github.com/hupe1980/plda/ingest"
	"github.com/hupe1980/plda/ndx"
	"github.com/hupe1980/plda/persistence"
	"github.com/hupe1980/plda/stat"
)

// Cache keys for pipeline stage artifacts.
const (
	keyStatFormat = "stat_%s.bin" // per split
	keyNdx        = "ndx.bin"
	keyModel      = "plda_model.bin"
)

// Input is everything a full verification run needs.
type Input struct {
	// Train, Enroll, Test are the batched utterances per split.
	Train  []ingest.Batch
	Enroll []ingest.Batch
	Test   []ingest.Batch

	// Extractor maps waveform batches to embeddings.
	Extractor ingest.Extractor

	// Workers bounds concurrent extraction. Below 1 means sequential.
	Workers int

	// Trials are the ground-truth verification trials.
	Trials []eer.Trial
}

// Pipeline orchestrates the full flow: extract embeddings per split, train
// the PLDA model, build the trial index, score, and evaluate.
//
// With a cache store configured, each stage first checks for its cached
// artifact by key existence and skips recomputation on a hit. Content is
// not validated beyond format headers; a stale cache is the caller's risk.
type Pipeline struct {
	opts    options
	trainer *Trainer
	scorer  *Scorer
}

// NewPipeline creates a Pipeline.
func NewPipeline(opts ...Option) *Pipeline {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &Pipeline{
		opts:    o,
		trainer: &Trainer{opts: o},
		scorer:  &Scorer{opts: o},
	}
}

// Run executes the full verification flow and returns the EER operating
// point.
func (p *Pipeline) Run(ctx context.Context, in Input) (eer.Result, error) {
	trainStats, err := p.Stats(ctx, "train", in.Train, in.Extractor, in.Workers)
	if err != nil {
		return eer.Result{}, err
	}
	enrollStats, err := p.Stats(ctx, "enrol", in.Enroll, in.Extractor, in.Workers)
	if err != nil {
		return eer.Result{}, err
	}
	testStats, err := p.Stats(ctx, "test", in.Test, in.Extractor, in.Workers)
	if err != nil {
		return eer.Result{}, err
	}

	model, err := p.Model(ctx, trainStats)
	if err != nil {
		return eer.Result{}, err
	}

	index, err := p.Index(ctx, enrollStats, testStats)
	if err != nil {
		return eer.Result{}, err
	}

	scores, err := p.scorer.Score(model, enrollStats, testStats, index)
	if err != nil {
		return eer.Result{}, err
	}

	result, err := eer.Evaluate(scores, in.Trials)
	if err != nil {
		return eer.Result{}, err
	}
	p.opts.logger.Info("evaluation completed", "eer", result.EER, "threshold", result.Threshold)
	return result, nil
}

// Stats returns the stat collection for a split, from cache when present.
func (p *Pipeline) Stats(ctx context.Context, split string, batches []ingest.Batch, extract ingest.Extractor, workers int) (*stat.Collection, error) {
	key := fmt.Sprintf(keyStatFormat, split)
	logger := p.opts.logger.WithSplit(split)

	if data, ok, err := p.cacheGet(ctx, key); err != nil {
		return nil, err
	} else if ok {
		logger.LogCache(key, true)
		artifact, err := persistence.DecodeStats(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return stat.FromArtifact(artifact)
	}
	logger.LogCache(key, false)

	c, err := ingest.Run(ctx, batches, extract, ingest.Options{Workers: workers})
	if err != nil {
		return nil, err
	}
	logger.WithDimension(c.Dim()).WithCount(c.Size()).Info("embeddings extracted")

	var buf bytes.Buffer
	if err := persistence.EncodeStats(&buf, c.Artifact(), p.opts.compression); err != nil {
		return nil, err
	}
	if err := p.cachePut(ctx, key, buf.Bytes()); err != nil {
		return nil, err
	}
	return c, nil
}

// Model returns the trained PLDA model, from cache when present. A cached
// model whose dimension disagrees with the training collection fails the
// load rather than silently scoring garbage.
func (p *Pipeline) Model(ctx context.Context, trainStats *stat.Collection) (*Model, error) {
	if data, ok, err := p.cacheGet(ctx, keyModel); err != nil {
		return nil, err
	} else if ok {
		p.opts.logger.LogCache(keyModel, true)
		artifact, err := persistence.DecodeModel(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return ModelFromArtifact(artifact, trainStats.Dim())
	}
	p.opts.logger.LogCache(keyModel, false)

	model, err := p.trainer.Train(trainStats)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := persistence.EncodeModel(&buf, model.Artifact(), p.opts.compression); err != nil {
		return nil, err
	}
	if err := p.cachePut(ctx, keyModel, buf.Bytes()); err != nil {
		return nil, err
	}
	return model, nil
}

// Index returns the trial index over the enrollment labels and test IDs,
// from cache when present.
func (p *Pipeline) Index(ctx context.Context, enrollStats, testStats *stat.Collection) (*ndx.Index, error) {
	if data, ok, err := p.cacheGet(ctx, keyNdx); err != nil {
		return nil, err
	} else if ok {
		p.opts.logger.LogCache(keyNdx, true)
		artifact, err := persistence.DecodeIndex(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return ndx.FromArtifact(artifact)
	}
	p.opts.logger.LogCache(keyNdx, false)

	index, err := ndx.New(enrollStats.DistinctLabels(), testStats.IDs())
	if err != nil {
		return nil, err
	}

	artifact, err := index.Artifact()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := persistence.EncodeIndex(&buf, artifact, p.opts.compression); err != nil {
		return nil, err
	}
	if err := p.cachePut(ctx, keyNdx, buf.Bytes()); err != nil {
		return nil, err
	}
	return index, nil
}

// cacheGet returns (data, true, nil) on a hit and (nil, false, nil) when
// no cache store is configured or the key is absent. A Get failure after a
// positive Has is surfaced: existence was promised, content was not.
func (p *Pipeline) cacheGet(ctx context.Context, key string) ([]byte, bool, error) {
	if p.opts.cache == nil {
		return nil, false, nil
	}
	ok, err := p.opts.cache.Has(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	data, err := p.opts.cache.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (p *Pipeline) cachePut(ctx context.Context, key string, data []byte) error {
	if p.opts.cache == nil {
		return nil
	}
	if lim := p.opts.uploadLimiter; lim != nil {
		// WaitN caps n at the burst size, so large artifacts pace in chunks.
		for remaining := len(data); remaining > 0; {
			n := min(remaining, lim.Burst())
			if err := lim.WaitN(ctx, n); err != nil {
				return err
			}
			remaining -= n
		}
	}
	return p.opts.cache.Put(ctx, key, data)
}
