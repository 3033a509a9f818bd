// Package analysis orchestrates usage checks: it builds a codebase with the
// configured store, tokenizes it, and scores entities against the corpus.
package analysis

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panbanda/janitor/internal/fileproc"
	"github.com/panbanda/janitor/internal/logging"
	"github.com/panbanda/janitor/pkg/cache"
	"github.com/panbanda/janitor/pkg/codebase"
	"github.com/panbanda/janitor/pkg/config"
	"github.com/panbanda/janitor/pkg/diag"
	"github.com/panbanda/janitor/pkg/models"
	"github.com/panbanda/janitor/pkg/usage"
)

// Service orchestrates usage analysis. One Service owns one token store, so
// repeated analyses of unchanged files hit it.
type Service struct {
	config  *config.Config
	logger  *slog.Logger
	matcher *usage.Matcher

	storeOnce sync.Once
	store     cache.Store
	storeErr  error
	// cacheDiags collects store failures until the next analysis reports them
	cacheDiags diag.List
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

// WithStore sets the token store instead of opening the configured one.
func WithStore(store cache.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logging.OrDiscard(l)
	}
}

// New creates a new analysis service.
func New(opts ...Option) *Service {
	s := &Service{
		config: config.DefaultConfig(),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.matcher = usage.NewMatcher(usage.WithLogger(s.logger))
	return s
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.config
}

// Store returns the token store, opening the configured backend on first use.
func (s *Service) Store() (cache.Store, error) {
	s.storeOnce.Do(func() {
		if s.store != nil {
			return
		}
		backend, err := cache.ParseBackend(s.config.Cache.Backend)
		if err != nil {
			s.storeErr = err
			return
		}
		s.store, s.storeErr = cache.Open(cache.Options{
			Backend:  backend,
			Dir:      s.config.Cache.Dir,
			Compress: s.config.Cache.Compress,
			Logger:   s.logger,
			OnError: func(key string, err error) {
				s.cacheDiags.Addf(diag.KindCache, "", "%s: %v", key, err)
			},
		})
	})
	return s.store, s.storeErr
}

// UsageOptions configures usage analysis.
type UsageOptions struct {
	// Thresholds overrides the configured verdict thresholds.
	Thresholds *models.Thresholds
	// OnDiscovered is called with the number of files before tokenization.
	OnDiscovered func(files int)
	// OnProgress is called once per tokenized file.
	OnProgress func()
}

// Codebase discovers root with the service's store and scan settings.
func (s *Service) Codebase(root string, onProgress func()) (*codebase.Codebase, error) {
	store, err := s.Store()
	if err != nil {
		return nil, err
	}
	return codebase.New(root,
		codebase.WithStore(store),
		codebase.WithLogger(s.logger),
		codebase.WithDiscoverOptions(codebase.DiscoverOptionsFromConfig(s.config)),
		codebase.WithWorkers(s.config.Scan.Workers),
		codebase.WithMaxFileSize(s.config.Scan.MaxFileSize),
		codebase.WithProgress(onProgress),
	)
}

// AnalyzeUsage scores entities against the files under root. Only an
// unusable root (or a cancelled ctx) is an error; everything else ends up
// in the analysis diagnostics.
func (s *Service) AnalyzeUsage(ctx context.Context, root string, entities []usage.Entity, opts UsageOptions) (*models.UsageAnalysis, error) {
	cb, err := s.Codebase(root, opts.OnProgress)
	if err != nil {
		return nil, err
	}
	if opts.OnDiscovered != nil {
		opts.OnDiscovered(len(cb.Files()))
	}
	return s.AnalyzeCodebase(ctx, cb, entities, opts)
}

// AnalyzeCodebase scores entities against an existing codebase. Callers that
// keep a Codebase across runs call Invalidate on it between them.
func (s *Service) AnalyzeCodebase(ctx context.Context, cb *codebase.Codebase, entities []usage.Entity, opts UsageOptions) (*models.UsageAnalysis, error) {
	corpus, err := cb.Tokenized(ctx)
	if err != nil {
		return nil, err
	}

	results, _ := fileproc.MapIndexed(ctx, entities, s.config.Scan.Workers,
		func(e usage.Entity) string { return e.Kind() + ":" + e.Identifier() },
		func(_ context.Context, e usage.Entity) (usage.Report, error) {
			return s.matcher.Evaluate(e, corpus), nil
		},
		nil,
	)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reports := make([]usage.Report, 0, len(results))
	for _, r := range results {
		if r.OK {
			reports = append(reports, r.Value)
		}
	}

	thresholds := models.Thresholds{Unused: s.config.Thresholds.Unused, Weak: s.config.Thresholds.Weak}
	if opts.Thresholds != nil {
		thresholds = *opts.Thresholds
	}

	result := models.NewUsageAnalysis(cb.Root(), reports, thresholds, len(corpus), corpus.TokenCount())
	result.Diagnostics = s.collectDiagnostics(cb.Diagnostics(), reports)

	s.logger.Info("usage analysis complete",
		"root", cb.Root(),
		"entities", result.Summary.TotalEntities,
		"unused", result.Summary.Unused,
		"diagnostics", len(result.Diagnostics))
	return result, nil
}

// ScoreNeedles scores ad-hoc needles against the files under root.
func (s *Service) ScoreNeedles(ctx context.Context, root string, needles []usage.Needle) (usage.Report, []diag.Diagnostic, error) {
	cb, err := s.Codebase(root, nil)
	if err != nil {
		return usage.Report{}, nil, err
	}
	corpus, err := cb.Tokenized(ctx)
	if err != nil {
		return usage.Report{}, nil, err
	}

	adhoc := adhocEntity{needles: needles}
	r := s.matcher.Evaluate(adhoc, corpus)
	return r, s.collectDiagnostics(cb.Diagnostics(), []usage.Report{r}), nil
}

type adhocEntity struct {
	needles []usage.Needle
}

func (adhocEntity) Kind() string                   { return "needles" }
func (adhocEntity) Name() string                   { return "ad-hoc" }
func (adhocEntity) Identifier() string             { return "ad-hoc" }
func (a adhocEntity) UsageNeedles() []usage.Needle { return a.needles }

func (s *Service) collectDiagnostics(files []diag.Diagnostic, reports []usage.Report) []diag.Diagnostic {
	out := append(s.cacheDiags.Drain(), files...)
	for _, r := range reports {
		out = append(out, r.Diagnostics...)
	}
	return out
}
