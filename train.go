package plda

import (
	"fmt"

	"github.com/hupe1980/plda/internal/linalg"
	"github.com/hupe1980/plda/stat"
	"gonum.org/v1/gonum/mat"
)

// Trainer estimates PLDA parameters from a labeled stat collection.
//
// The default path is the closed-form two-covariance estimate; EM
// refinement runs when requested via WithEMIterations or as an automatic
// fallback when the pooled within-class covariance is singular even after
// regularization.
//
// Training is deterministic given identical input ordering. Floating-point
// order of summation can change low-order bits, so comparisons against
// reference parameters should use a tolerance, not bit equality.
type Trainer struct {
	opts options
}

// NewTrainer creates a Trainer.
func NewTrainer(opts ...Option) *Trainer {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &Trainer{opts: o}
}

// Train estimates (mean, F, Sigma) from the collection. Records sharing a
// label are treated as utterances of the same speaker. Requires at least
// two distinct labels and at least one label with two or more records.
func (t *Trainer) Train(c *stat.Collection) (*Model, error) {
	model, err := t.train(c)
	t.opts.logger.LogTraining(c.Size(), len(c.DistinctLabels()), rankOf(model), t.opts.emIterations, err)
	return model, err
}

func rankOf(m *Model) int {
	if m == nil {
		return 0
	}
	return m.Rank()
}

func (t *Trainer) train(c *stat.Collection) (*Model, error) {
	n := c.Size()
	d := c.Dim()
	labels := c.DistinctLabels()
	numLabels := len(labels)

	multi := 0
	for _, label := range labels {
		if len(c.IndicesByLabel(label)) >= 2 {
			multi++
		}
	}
	if numLabels < 2 || multi < 1 {
		return nil, &ErrInsufficientTrainingData{Labels: numLabels, MultiLabels: multi}
	}

	// Step 1-2: global mean, centered data.
	mean := c.Mean()
	centered := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		rec := c.At(i)
		row := centered.RawRowView(i)
		for j, v := range rec.Vector {
			row[j] = v - mean[j]
		}
	}

	// Step 3-4: pooled within-class covariance of residuals, unbiased.
	sigma := mat.NewSymDense(d, nil)
	labelMeans := mat.NewDense(numLabels, d, nil)
	labelCounts := make([]int, numLabels)
	resid := mat.NewVecDense(d, nil)
	for li, label := range labels {
		idx := c.IndicesByLabel(label)
		labelCounts[li] = len(idx)
		mu := labelMeans.RawRowView(li)
		for _, i := range idx {
			row := centered.RawRowView(i)
			for j, v := range row {
				mu[j] += v
			}
		}
		inv := 1.0 / float64(len(idx))
		for j := range mu {
			mu[j] *= inv
		}
		for _, i := range idx {
			row := centered.RawRowView(i)
			for j := range row {
				resid.SetVec(j, row[j]-mu[j])
			}
			sigma.SymRankOne(sigma, 1, resid)
		}
	}
	sigma.ScaleSym(1.0/float64(n-numLabels), sigma)
	linalg.Regularize(sigma, t.opts.regularization)

	// Step 5: between-class covariance from label means, count-weighted,
	// minus the expected within-class contribution (L/N) * Sigma.
	between := mat.NewSymDense(d, nil)
	for li := range labels {
		mu := labelMeans.RowView(li)
		between.SymRankOne(between, float64(labelCounts[li]), mu)
	}
	between.ScaleSym(1.0/float64(n), between)
	withinShare := mat.NewSymDense(d, nil)
	withinShare.ScaleSym(float64(numLabels)/float64(n), sigma)
	between = linalg.SubSym(between, withinShare)

	// Step 6: factor the between-class covariance.
	maxK := t.opts.rank
	if maxK <= 0 || maxK > d {
		maxK = d
	}
	f := linalg.FactorTopK(between, t.opts.eigenThreshold, maxK)
	if f == nil {
		return nil, fmt.Errorf("%w: eigenvalue threshold %g", ErrDegenerateModel, t.opts.eigenThreshold)
	}

	// Decide on EM: explicit request, or fallback when the closed-form
	// covariance is not invertible.
	emIters := t.opts.emIterations
	if _, _, err := linalg.InvertSPD(sigma); err != nil {
		variance := 0.0
		for i := 0; i < d; i++ {
			variance += sigma.At(i, i)
		}
		variance /= float64(d)
		sigma = mat.NewSymDense(d, nil)
		for i := 0; i < d; i++ {
			sigma.SetSym(i, i, variance)
		}
		if emIters == 0 {
			emIters = DefaultEMFallbackIterations
		}
	}
	if emIters > 0 {
		var err error
		f, sigma, err = t.emRefine(centered, c, labels, f, sigma, emIters)
		if err != nil {
			return nil, translateError(err)
		}
	}

	return &Model{mean: mean, f: f, sigma: sigma}, nil
}

// emRefine runs EM sweeps for the generative model x = mu + F*y + e,
// y ~ N(0, I), e ~ N(0, Sigma), starting from the provided parameters.
// Sigma is symmetrized and re-regularized after every sweep so the PSD
// invariant holds throughout.
func (t *Trainer) emRefine(centered *mat.Dense, c *stat.Collection, labels []string, f *mat.Dense, sigma *mat.SymDense, iters int) (*mat.Dense, *mat.SymDense, error) {
	n, d := centered.Dims()
	_, k := f.Dims()

	// Total scatter is constant across sweeps.
	var scatter mat.Dense
	scatter.Mul(centered.T(), centered)

	// Per-label first-order sums of the centered data.
	sums := mat.NewDense(len(labels), d, nil)
	counts := make([]float64, len(labels))
	for li, label := range labels {
		idx := c.IndicesByLabel(label)
		counts[li] = float64(len(idx))
		dst := sums.RawRowView(li)
		for _, i := range idx {
			row := centered.RawRowView(i)
			for j, v := range row {
				dst[j] += v
			}
		}
	}

	for iter := 0; iter < iters; iter++ {
		invSigma, _, err := linalg.InvertSPD(sigma)
		if err != nil {
			return nil, nil, err
		}

		// E-step shared terms.
		var ftInvS mat.Dense // k x d
		ftInvS.Mul(f.T(), invSigma)
		var gram mat.Dense // k x k
		gram.Mul(&ftInvS, f)
		gramSym := linalg.AsSym(&gram)

		// Accumulators for the M-step.
		r := mat.NewSymDense(k, nil)    // sum_s n_s * E[y y^T]
		cAcc := mat.NewDense(d, k, nil) // sum_s f_s * E[y]^T

		proj := mat.NewDense(k, 1, nil)
		for li := range labels {
			ns := counts[li]
			fs := sums.RawRowView(li)

			// Posterior precision M_s = I + n_s * F^T Sigma^-1 F.
			ms := mat.NewSymDense(k, nil)
			for i := 0; i < k; i++ {
				for j := i; j < k; j++ {
					v := ns * gramSym.At(i, j)
					if i == j {
						v++
					}
					ms.SetSym(i, j, v)
				}
			}
			msInv, _, err := linalg.InvertSPD(ms)
			if err != nil {
				return nil, nil, err
			}

			// E[y_s] = M_s^-1 F^T Sigma^-1 f_s
			proj.Mul(&ftInvS, mat.NewDense(d, 1, fs))
			var ey mat.Dense // k x 1
			ey.Mul(msInv, proj)

			// R += n_s * (M_s^-1 + E[y] E[y]^T)
			for i := 0; i < k; i++ {
				for j := i; j < k; j++ {
					r.SetSym(i, j, r.At(i, j)+ns*(msInv.At(i, j)+ey.At(i, 0)*ey.At(j, 0)))
				}
			}
			// C += f_s E[y]^T
			for i := 0; i < d; i++ {
				for j := 0; j < k; j++ {
					cAcc.Set(i, j, cAcc.At(i, j)+fs[i]*ey.At(j, 0))
				}
			}
		}

		// M-step: F = C R^-1, Sigma = (scatter - F C^T) / n.
		ftNew, err := linalg.SolveSPD(r, cAcc.T())
		if err != nil {
			return nil, nil, err
		}
		fNew := mat.NewDense(d, k, nil)
		fNew.CloneFrom(ftNew.T())

		var explained mat.Dense
		explained.Mul(fNew, cAcc.T())
		var residual mat.Dense
		residual.Sub(&scatter, &explained)
		residual.Scale(1.0/float64(n), &residual)

		f = fNew
		sigma = linalg.AsSym(&residual)
		linalg.Regularize(sigma, t.opts.regularization)
	}
	return f, sigma, nil
}
