// Package discovery runs every configured scanner, filters each source on its
// own and derives the final site list.
package discovery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/sitediscovery/internal/clock/system"
	"github.com/JakeFAU/sitediscovery/internal/filter"
	"github.com/JakeFAU/sitediscovery/internal/id/uuid"
	"github.com/JakeFAU/sitediscovery/internal/metrics"
	"github.com/JakeFAU/sitediscovery/internal/scanner"
	"github.com/JakeFAU/sitediscovery/internal/site"
	"github.com/JakeFAU/sitediscovery/internal/vhost"
)

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Config is the per-run policy shared by all sources.
type Config struct {
	Filter       filter.Config
	IncludeWWW   bool
	ExcludeHTTP  bool
	PunycodeURLs bool
}

// SourceResult summarizes one scanner's contribution.
type SourceResult struct {
	Source   string `json:"source"`
	Scanned  int    `json:"scanned"`
	Retained int    `json:"retained"`
}

// Result is the outcome of a discovery run.
type Result struct {
	RunID    string         `json:"run_id"`
	Sources  []SourceResult `json:"sources"`
	Sites    []vhost.Site   `json:"sites"`
	Duration time.Duration  `json:"duration"`
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used to time runs.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides the run ID generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Service) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// Service orchestrates a discovery run. It is safe for concurrent use.
type Service struct {
	cfg      Config
	scanners []scanner.Scanner
	filters  []*filter.Filter
	deriver  *site.Deriver
	clock    Clock
	ids      IDGenerator
	logger   *zap.Logger
}

// New builds a Service. Each scanner gets its own filter compiled from the
// same policy, so an invalid ignore pattern fails here.
func New(cfg Config, scanners []scanner.Scanner, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:      cfg,
		scanners: scanners,
		clock:    system.New(),
		ids:      uuid.New(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	conv := vhost.DefaultConventions()
	s.filters = make([]*filter.Filter, len(scanners))
	for i, sc := range scanners {
		f, err := filter.New(cfg.Filter, conv,
			filter.WithLogger(s.logger.Named("filter").With(zap.String("source", sc.Source()))))
		if err != nil {
			return nil, fmt.Errorf("compile filter: %w", err)
		}
		s.filters[i] = f
	}
	s.deriver = site.NewDeriver(conv,
		site.WithLogger(s.logger.Named("site")),
		site.WithPunycodeURLs(cfg.PunycodeURLs),
	)
	return s, nil
}

// Run scans all sources concurrently, filters each independently, then
// concatenates them in scanner order and derives sites.
func (s *Service) Run(ctx context.Context) (Result, error) {
	start := s.clock.Now()
	runID, err := s.ids.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("run id: %w", err)
	}
	logger := s.logger.With(zap.String("run_id", runID))

	raw := make([][]vhost.VirtualHost, len(s.scanners))
	g, gctx := errgroup.WithContext(ctx)
	for i, sc := range s.scanners {
		g.Go(func() error {
			found, err := sc.Scan(gctx)
			if err != nil {
				return fmt.Errorf("scan %s: %w", sc.Source(), err)
			}
			raw[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		end := s.clock.Now()
		metrics.ObserveRun(metrics.StatusFailure, 0, end.Sub(start), end)
		logger.Error("discovery run failed", zap.Error(err))
		return Result{}, err
	}

	res := Result{RunID: runID, Sources: make([]SourceResult, len(s.scanners))}
	var retained []vhost.VirtualHost
	for i, sc := range s.scanners {
		kept := s.filters[i].Apply(raw[i])
		res.Sources[i] = SourceResult{Source: sc.Source(), Scanned: len(raw[i]), Retained: len(kept)}
		metrics.ObserveSource(sc.Source(), len(raw[i]), len(kept))
		logger.Debug("source filtered",
			zap.String("source", sc.Source()),
			zap.Int("scanned", len(raw[i])),
			zap.Int("retained", len(kept)),
		)
		retained = append(retained, kept...)
	}

	res.Sites = s.deriver.Derive(retained, s.cfg.IncludeWWW, s.cfg.ExcludeHTTP)
	end := s.clock.Now()
	res.Duration = end.Sub(start)
	metrics.ObserveRun(metrics.StatusSuccess, len(res.Sites), res.Duration, end)

	logger.Info("discovery run complete",
		zap.Int("sites", len(res.Sites)),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}
