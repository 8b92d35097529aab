// Package app holds the loaded predictors and the services shared by the
// HTTP handlers and CLI commands. It is constructed once at startup.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/sargazo/sargazo-predictor/internal/conf"
	"github.com/sargazo/sargazo-predictor/internal/errors"
	"github.com/sargazo/sargazo-predictor/internal/features"
	"github.com/sargazo/sargazo-predictor/internal/httpclient"
	"github.com/sargazo/sargazo-predictor/internal/logger"
	"github.com/sargazo/sargazo-predictor/internal/observability"
	"github.com/sargazo/sargazo-predictor/internal/observability/metrics"
	"github.com/sargazo/sargazo-predictor/internal/predictor"
)

// GetLogger returns the app package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("app")
}

// Context owns the predictors. A predictor that failed to load stays nil and
// its lookups return predictor.ErrNotLoaded with the load error attached.
type Context struct {
	coordinates    *predictor.SequencePredictor
	coordinatesErr error
	biomass        *predictor.TabularPredictor
	biomassErr     error

	metrics    *observability.Metrics
	httpClient *httpclient.Client
	memo       *cache.Cache
	flight     singleflight.Group // coalesces identical in-flight requests when memo is set
	started    time.Time

	closeOnce sync.Once
	closers   []func() error
}

// Option configures a Context.
type Option func(*Context)

// WithMetrics records load, prediction and cache metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Context) {
		c.metrics = m
	}
}

// WithHTTPClient sets the client used by remote backends. The caller keeps
// ownership of the client.
func WithHTTPClient(client *httpclient.Client) Option {
	return func(c *Context) {
		c.httpClient = client
	}
}

// WithCache memoises identical prediction requests for ttl.
func WithCache(ttl, cleanupInterval time.Duration) Option {
	return func(c *Context) {
		if ttl > 0 {
			c.memo = cache.New(ttl, cleanupInterval)
		}
	}
}

// New builds a context around already constructed predictors. A nil
// predictor is reported as not loaded.
func New(coordinates *predictor.SequencePredictor, biomass *predictor.TabularPredictor, opts ...Option) *Context {
	c := &Context{
		coordinates: coordinates,
		biomass:     biomass,
		started:     time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if coordinates == nil {
		c.coordinatesErr = errNotConfigured
	}
	if biomass == nil {
		c.biomassErr = errNotConfigured
	}
	return c
}

var errNotConfigured = errors.NewStd("predictor disabled in settings")

// Load reads every enabled predictor's artifacts. Each predictor loads all
// or nothing; a failure leaves it not loaded. With models.failfast set, the
// first failure is returned instead.
func Load(settings *conf.Settings, opts ...Option) (*Context, error) {
	c := New(nil, nil, opts...)
	if settings.Cache.Enabled && c.memo == nil {
		c.memo = cache.New(settings.Cache.TTL, settings.Cache.CleanupInterval)
	}

	var pm *metrics.PredictorMetrics
	if c.metrics != nil {
		pm = c.metrics.Predictor
	}
	l := &loader{settings: settings, client: c.httpClient, metrics: pm}
	log := GetLogger()

	if settings.Coordinates.Enabled {
		start := time.Now()
		p, closer, err := l.coordinates()
		pm.RecordModelLoad(metrics.LabelCoordinates, time.Since(start), err)
		if err != nil {
			log.Error("coordinate predictor not loaded", logger.Error(err))
			c.coordinatesErr = err
		} else {
			c.coordinates, c.coordinatesErr = p, nil
			c.closers = append(c.closers, closer)
			log.Info("coordinate predictor loaded",
				logger.String("backend", p.Backend()),
				logger.Int("n_steps", p.StepCount()),
				logger.Duration("elapsed", time.Since(start)))
		}
	}

	if settings.Biomass.Enabled {
		start := time.Now()
		p, closer, err := l.biomass()
		pm.RecordModelLoad(metrics.LabelBiomass, time.Since(start), err)
		if err != nil {
			log.Error("biomass predictor not loaded", logger.Error(err))
			c.biomassErr = err
		} else {
			c.biomass, c.biomassErr = p, nil
			c.closers = append(c.closers, closer)
			log.Info("biomass predictor loaded",
				logger.String("backend", p.Backend()),
				logger.Strings("features", p.Config().Features),
				logger.Duration("elapsed", time.Since(start)))
		}
	}

	if settings.Models.FailFast {
		if err := errors.Join(c.loadErrors()...); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

// loadErrors returns the load failures of enabled predictors.
func (c *Context) loadErrors() []error {
	var errs []error
	if c.coordinatesErr != nil && c.coordinatesErr != errNotConfigured {
		errs = append(errs, fmt.Errorf("coordinates: %w", c.coordinatesErr))
	}
	if c.biomassErr != nil && c.biomassErr != errNotConfigured {
		errs = append(errs, fmt.Errorf("biomass: %w", c.biomassErr))
	}
	return errs
}

// Coordinates returns the next-position predictor.
func (c *Context) Coordinates() (*predictor.SequencePredictor, error) {
	if c.coordinates == nil {
		return nil, notLoaded(metrics.LabelCoordinates, c.coordinatesErr)
	}
	return c.coordinates, nil
}

// Biomass returns the biomass predictor.
func (c *Context) Biomass() (*predictor.TabularPredictor, error) {
	if c.biomass == nil {
		return nil, notLoaded(metrics.LabelBiomass, c.biomassErr)
	}
	return c.biomass, nil
}

func notLoaded(name string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s %w", name, predictor.ErrNotLoaded)
	}
	return fmt.Errorf("%s %w: %v", name, predictor.ErrNotLoaded, cause)
}

// PredictCoordinates runs the next-position predictor, consulting the memo
// cache when enabled.
func (c *Context) PredictCoordinates(ctx context.Context, seq features.Sequence) (predictor.Coordinates, error) {
	p, err := c.Coordinates()
	if err != nil {
		return predictor.Coordinates{}, err
	}

	key, cacheable := c.key(metrics.LabelCoordinates, seq)
	if !cacheable {
		return p.Predict(ctx, seq)
	}
	if v, ok := c.memo.Get(key); ok {
		c.recordCache(metrics.LabelCoordinates, true)
		return v.(predictor.Coordinates), nil
	}
	c.recordCache(metrics.LabelCoordinates, false)

	v, err := c.shared(ctx, key, func(ctx context.Context) (any, error) {
		// a flight that finished after our lookup already stored the result
		if cached, ok := c.memo.Get(key); ok {
			return cached, nil
		}
		out, err := p.Predict(ctx, seq)
		if err != nil {
			return nil, err
		}
		c.memo.SetDefault(key, out)
		return out, nil
	})
	if err != nil {
		return predictor.Coordinates{}, err
	}
	return v.(predictor.Coordinates), nil
}

// PredictBiomass runs the biomass predictor, consulting the memo cache when
// enabled. Extra keys in v do not affect the cache key.
func (c *Context) PredictBiomass(ctx context.Context, v features.Vector) (float64, error) {
	p, err := c.Biomass()
	if err != nil {
		return 0, err
	}

	var key string
	var cacheable bool
	if v.Missing(p.Config().Features) == nil {
		key, cacheable = c.key(metrics.LabelBiomass, v.Row(p.Config().Features))
	}
	if !cacheable {
		return p.Predict(ctx, v)
	}
	if cached, ok := c.memo.Get(key); ok {
		c.recordCache(metrics.LabelBiomass, true)
		return cached.(float64), nil
	}
	c.recordCache(metrics.LabelBiomass, false)

	out, err := c.shared(ctx, key, func(ctx context.Context) (any, error) {
		if cached, ok := c.memo.Get(key); ok {
			return cached, nil
		}
		res, err := p.Predict(ctx, v)
		if err != nil {
			return nil, err
		}
		c.memo.SetDefault(key, res)
		return res, nil
	})
	if err != nil {
		return 0, err
	}
	return out.(float64), nil
}

// shared runs fn once per key across concurrent callers. fn gets a context
// detached from the caller's cancellation so one caller going away does not
// fail the others waiting on the same flight; each caller still stops
// waiting when its own ctx ends.
func (c *Context) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (any, error) {
		return fn(detached)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Context) key(model string, input any) (string, bool) {
	if c.memo == nil {
		return "", false
	}
	key, err := cacheKey(model, input)
	if err != nil {
		GetLogger().Debug("request not cacheable", logger.String("model", model), logger.Error(err))
		return "", false
	}
	return key, true
}

func (c *Context) recordCache(model string, hit bool) {
	if c.metrics != nil {
		c.metrics.Predictor.RecordCacheLookup(model, hit)
	}
}

// Metrics returns the metrics the context records into, or nil.
func (c *Context) Metrics() *observability.Metrics {
	return c.metrics
}

// Close releases model resources. It is safe to call more than once.
func (c *Context) Close() error {
	var errs []error
	c.closeOnce.Do(func() {
		for _, closer := range c.closers {
			if err := closer(); err != nil {
				errs = append(errs, err)
			}
		}
		if c.memo != nil {
			c.memo.Flush()
		}
	})
	return errors.Join(errs...)
}
