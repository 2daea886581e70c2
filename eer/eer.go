// Package eer evaluates trial scores against ground-truth labels and
// computes the equal-error-rate operating point: the threshold at which
// the false-accept rate equals the false-reject rate.
package eer

import (
	"errors"
	"math"
	"sort"
)

// ErrInsufficientTrials is returned when either the positive or the
// negative score set is empty; EER is undefined without both.
var ErrInsufficientTrials = errors.New("eer: need both positive and negative trials")

// Result is an EER operating point.
type Result struct {
	EER       float64
	Threshold float64
}

// ScoreSource resolves a trial pair to its score. *plda.ScoreMatrix
// satisfies this.
type ScoreSource interface {
	Lookup(enrollID, testID string) (float64, error)
}

// Evaluate resolves every ground-truth trial against the score source,
// partitions the scores by label, and computes the EER. A trial whose pair
// is absent from the source surfaces the lookup error immediately; trials
// are never silently skipped.
func Evaluate(scores ScoreSource, trials []Trial) (Result, error) {
	var positive, negative []float64
	for _, trial := range trials {
		s, err := scores.Lookup(trial.EnrollID, trial.TestID)
		if err != nil {
			return Result{}, err
		}
		if trial.Target {
			positive = append(positive, s)
		} else {
			negative = append(negative, s)
		}
	}
	return Compute(positive, negative)
}

// Compute finds the EER from already-partitioned score sets by sweeping a
// threshold over the pooled sorted scores. Returns the operating point
// where |FAR - FRR| is smallest, with EER reported as their midpoint.
func Compute(positive, negative []float64) (Result, error) {
	if len(positive) == 0 || len(negative) == 0 {
		return Result{}, ErrInsufficientTrials
	}

	pos := append([]float64(nil), positive...)
	neg := append([]float64(nil), negative...)
	sort.Float64s(pos)
	sort.Float64s(neg)

	pooled := make([]float64, 0, len(pos)+len(neg))
	pooled = append(pooled, pos...)
	pooled = append(pooled, neg...)
	sort.Float64s(pooled)

	best := Result{EER: math.Inf(1)}
	bestGap := math.Inf(1)
	for _, th := range pooled {
		far := rateAtOrAbove(neg, th)
		frr := rateBelow(pos, th)
		gap := math.Abs(far - frr)
		if gap < bestGap {
			bestGap = gap
			best = Result{EER: 0.5 * (far + frr), Threshold: th}
		}
	}
	return best, nil
}

// Rates returns the full sweep of (threshold, FAR, FRR) operating points
// over the pooled scores, for DET/ROC plotting.
func Rates(positive, negative []float64) []RatePoint {
	pos := append([]float64(nil), positive...)
	neg := append([]float64(nil), negative...)
	sort.Float64s(pos)
	sort.Float64s(neg)

	pooled := make([]float64, 0, len(pos)+len(neg))
	pooled = append(pooled, pos...)
	pooled = append(pooled, neg...)
	sort.Float64s(pooled)

	points := make([]RatePoint, 0, len(pooled))
	for _, th := range pooled {
		points = append(points, RatePoint{
			Threshold: th,
			FAR:       rateAtOrAbove(neg, th),
			FRR:       rateBelow(pos, th),
		})
	}
	return points
}

// RatePoint is one operating point on the error tradeoff curve.
type RatePoint struct {
	Threshold float64
	FAR       float64
	FRR       float64
}

// rateAtOrAbove returns the fraction of sorted scores >= th.
func rateAtOrAbove(sorted []float64, th float64) float64 {
	i := sort.SearchFloat64s(sorted, th)
	return float64(len(sorted)-i) / float64(len(sorted))
}

// rateBelow returns the fraction of sorted scores < th.
func rateBelow(sorted []float64, th float64) float64 {
	i := sort.SearchFloat64s(sorted, th)
	return float64(i) / float64(len(sorted))
}
