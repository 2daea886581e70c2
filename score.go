package plda

import (
	"math"

	"github.com/hupe1980/plda/internal/linalg"
	"github.com/hupe1980/plda/ndx"
	"github.com/hupe1980/plda/stat"
	"gonum.org/v1/gonum/mat"
)

// Scorer computes log-likelihood-ratio scores for all trials in an index
// using a trained model.
//
// The expensive matrix factorizations are done once per call; the trials
// themselves are filled in one batched pass, so scoring cost is dominated
// by a handful of dense D x D products regardless of trial count. Scoring
// is side-effect-free and bit-for-bit deterministic for identical inputs.
type Scorer struct {
	opts options
}

// NewScorer creates a Scorer.
func NewScorer(opts ...Option) *Scorer {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &Scorer{opts: o}
}

// ScoreMatrix is the dense trial score grid, row/column order matching the
// index it was computed for. Read-only after creation.
type ScoreMatrix struct {
	models   []string
	segments []string
	modelPos map[string]int
	segPos   map[string]int
	scores   []float64 // row-major, len(models) x len(segments)
}

// NumModels returns the number of score rows.
func (m *ScoreMatrix) NumModels() int { return len(m.models) }

// NumSegments returns the number of score columns.
func (m *ScoreMatrix) NumSegments() int { return len(m.segments) }

// Models returns the row IDs. Callers must not mutate.
func (m *ScoreMatrix) Models() []string { return m.models }

// Segments returns the column IDs. Callers must not mutate.
func (m *ScoreMatrix) Segments() []string { return m.segments }

// At returns the score at the given grid position.
func (m *ScoreMatrix) At(modelPos, segPos int) float64 {
	return m.scores[modelPos*len(m.segments)+segPos]
}

// Lookup returns the score for the given trial pair, or ErrTrialNotFound
// if either ID is absent from the matrix.
func (m *ScoreMatrix) Lookup(enrollID, testID string) (float64, error) {
	i, ok := m.modelPos[enrollID]
	if !ok {
		return 0, &ndx.ErrTrialNotFound{EnrollID: enrollID, TestID: testID}
	}
	j, ok := m.segPos[testID]
	if !ok {
		return 0, &ndx.ErrTrialNotFound{EnrollID: enrollID, TestID: testID}
	}
	return m.At(i, j), nil
}

// Score computes the LLR score matrix for every trial in the index.
//
// Index models are resolved against enrollment labels; segments are
// resolved against test IDs, falling back to labels. A missing entry
// surfaces ErrTrialNotFound: the index must be built from the collections
// it is scored against. Trials cleared from the index mask are reported
// as NaN.
func (s *Scorer) Score(model *Model, enroll, test *stat.Collection, index *ndx.Index) (*ScoreMatrix, error) {
	sm, err := s.score(model, enroll, test, index)
	s.opts.logger.LogScoring(index.NumModels(), index.NumSegments(), err)
	return sm, err
}

func (s *Scorer) score(model *Model, enroll, test *stat.Collection, index *ndx.Index) (*ScoreMatrix, error) {
	d := model.Dim()
	if enroll.Dim() != d {
		return nil, &stat.ErrDimensionMismatch{Expected: d, Actual: enroll.Dim()}
	}
	if test.Dim() != d {
		return nil, &stat.ErrDimensionMismatch{Expected: d, Actual: test.Dim()}
	}

	enrollMat, err := gatherRows(enroll, index.Models(), model.Mean(), true)
	if err != nil {
		return nil, err
	}
	testMat, err := gatherRows(test, index.Segments(), model.Mean(), false)
	if err != nil {
		return nil, err
	}

	// Precompute the two hypothesis precisions. With Sigma_ac = F F^T and
	// Sigma_tot = Sigma_ac + Sigma:
	//
	//   Q   = (Sigma_tot - Sigma_ac Sigma_tot^-1 Sigma_ac)^-1
	//   Phi = Sigma_tot^-1 - Q
	//   Psi = Sigma_tot^-1 Sigma_ac Q
	//
	// and the LLR for centered vectors e, t is
	//
	//   0.5 e^T Phi e + 0.5 t^T Phi t + e^T Psi t + 0.5 (logdet Q + logdet Sigma_tot)
	sigmaAc := mat.NewSymDense(d, nil)
	sigmaAc.SymOuterK(1, model.F())
	sigmaTot := linalg.AddSym(sigmaAc, model.Sigma())

	invTot, logdetTot, err := linalg.InvertSPD(sigmaTot)
	if err != nil {
		return nil, translateError(err)
	}

	var acInvTot, acInvTotAc mat.Dense
	acInvTot.Mul(sigmaAc, invTot)
	acInvTotAc.Mul(&acInvTot, sigmaAc)
	inner := linalg.SubSym(sigmaTot, linalg.AsSym(&acInvTotAc))

	q, logdetInner, err := linalg.InvertSPD(inner)
	if err != nil {
		return nil, translateError(err)
	}
	logdetQ := -logdetInner

	phi := linalg.SubSym(invTot, q)
	var invTotAc, psi mat.Dense
	invTotAc.Mul(invTot, sigmaAc)
	psi.Mul(&invTotAc, q)
	cst := 0.5 * (logdetQ + logdetTot)

	modelPart := linalg.QuadDiag(enrollMat, phi)
	segPart := linalg.QuadDiag(testMat, phi)

	var enrollPsi, cross mat.Dense
	enrollPsi.Mul(enrollMat, &psi)
	cross.Mul(&enrollPsi, testMat.T())

	numModels := index.NumModels()
	numSegments := index.NumSegments()
	scores := make([]float64, numModels*numSegments)
	for i := 0; i < numModels; i++ {
		for j := 0; j < numSegments; j++ {
			if !index.Masked(i, j) {
				scores[i*numSegments+j] = math.NaN()
				continue
			}
			scores[i*numSegments+j] = 0.5*modelPart[i] + 0.5*segPart[j] + cross.At(i, j) + cst
		}
	}

	modelPos := make(map[string]int, numModels)
	for i, id := range index.Models() {
		modelPos[id] = i
	}
	segPos := make(map[string]int, numSegments)
	for j, id := range index.Segments() {
		segPos[id] = j
	}
	return &ScoreMatrix{
		models:   append([]string(nil), index.Models()...),
		segments: append([]string(nil), index.Segments()...),
		modelPos: modelPos,
		segPos:   segPos,
		scores:   scores,
	}, nil
}

// gatherRows assembles the centered vectors for the given IDs in index
// order. byLabelFirst selects label-based resolution (enrollment models);
// otherwise IDs resolve against record IDs with a label fallback for
// anonymous test trials.
func gatherRows(c *stat.Collection, ids []string, mean []float64, byLabelFirst bool) (*mat.Dense, error) {
	out := mat.NewDense(len(ids), len(mean), nil)
	for r, id := range ids {
		var rec stat.Record
		var ok bool
		if byLabelFirst {
			var i int
			if i, ok = c.FirstIndexByLabel(id); ok {
				rec = c.At(i)
			}
		} else {
			if rec, ok = c.Lookup(id); !ok {
				var i int
				if i, ok = c.FirstIndexByLabel(id); ok {
					rec = c.At(i)
				}
			}
		}
		if !ok {
			if byLabelFirst {
				return nil, &ndx.ErrTrialNotFound{EnrollID: id}
			}
			return nil, &ndx.ErrTrialNotFound{TestID: id}
		}
		row := out.RawRowView(r)
		for j, v := range rec.Vector {
			row[j] = v - mean[j]
		}
	}
	return out, nil
}
