package plda

import (
	"github.com/hupe1980/plda/cachestore"
	"github.com/hupe1980/plda/persistence"
	"golang.org/x/time/rate"
)

const (
	// DefaultRegularization is the epsilon added to covariance diagonals
	// before any inversion.
	DefaultRegularization = 1e-6

	// DefaultEigenThreshold discards between-class eigenvalues at or below
	// this value when building the factor matrix.
	DefaultEigenThreshold = 1e-10

	// DefaultEMFallbackIterations is the EM sweep count used when the
	// closed-form covariance turns out singular and the caller did not
	// request EM explicitly.
	DefaultEMFallbackIterations = 10
)

type options struct {
	logger         *Logger
	cache          cachestore.CacheStore
	compression    persistence.Compression
	uploadLimiter  *rate.Limiter
	regularization float64
	eigenThreshold float64
	rank           int
	emIterations   int
}

func defaultOptions() options {
	return options{
		logger:         NoopLogger(),
		compression:    persistence.CompressionNone,
		regularization: DefaultRegularization,
		eigenThreshold: DefaultEigenThreshold,
	}
}

// Option configures Trainer, Scorer, and Pipeline behavior.
type Option func(*options)

// WithLogger sets the logger. Nil restores the no-op logger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithCacheStore sets the store used to cache stage artifacts. Without a
// store every stage recomputes and nothing is persisted.
func WithCacheStore(cs cachestore.CacheStore) Option {
	return func(o *options) {
		o.cache = cs
	}
}

// WithCompression sets the compression applied to cached artifacts.
func WithCompression(c persistence.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithUploadLimit throttles cache uploads to the given bytes per second.
// Useful when the cache store is remote and shares bandwidth with other
// work. Zero or negative disables throttling.
func WithUploadLimit(bytesPerSec int) Option {
	return func(o *options) {
		if bytesPerSec <= 0 {
			o.uploadLimiter = nil
			return
		}
		o.uploadLimiter = rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)
	}
}

// WithRegularization sets the diagonal epsilon added to covariance
// estimates before inversion. Defaults to DefaultRegularization.
func WithRegularization(eps float64) Option {
	return func(o *options) {
		if eps > 0 {
			o.regularization = eps
		}
	}
}

// WithEigenThreshold sets the minimum between-class eigenvalue kept when
// factoring F. Defaults to DefaultEigenThreshold.
func WithEigenThreshold(threshold float64) Option {
	return func(o *options) {
		o.eigenThreshold = threshold
	}
}

// WithRank caps the factor column count K. Zero (the default) keeps every
// component above the eigenvalue threshold, up to D.
func WithRank(k int) Option {
	return func(o *options) {
		if k > 0 {
			o.rank = k
		}
	}
}

// WithEMIterations runs n EM refinement sweeps after the closed-form
// estimate. Zero (the default) keeps the closed-form parameters; the
// trainer still falls back to EM on its own when the closed-form
// covariance is singular.
func WithEMIterations(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.emIterations = n
		}
	}
}
