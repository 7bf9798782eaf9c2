// Package app assembles a pipeline process from configuration: upstream
// adapters, filter chain, output sink, publishers, scheduler and the
// health/metrics server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/civic-data-etl/internal/adapter/arcgis"
	"github.com/couchcryptid/civic-data-etl/internal/adapter/bulk"
	"github.com/couchcryptid/civic-data-etl/internal/adapter/csvexport"
	"github.com/couchcryptid/civic-data-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/civic-data-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/civic-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/civic-data-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/civic-data-etl/internal/adapter/upstream"
	"github.com/couchcryptid/civic-data-etl/internal/config"
	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/filter"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
	"github.com/couchcryptid/civic-data-etl/internal/pipeline"
	"github.com/couchcryptid/civic-data-etl/internal/scheduler"
	"github.com/couchcryptid/civic-data-etl/internal/source"
)

// Output file names under OUTPUT_DIR.
const (
	CrashFile  = "crashes.csv"
	GrantsFile = "grants.csv"
)

// Service is one pipeline process.
type Service struct {
	cfg     *config.Config
	runner  *pipeline.Runner
	closers []io.Closer
	logger  *slog.Logger
	clock   clockwork.Clock

	// startupFatal stops the process when the first scheduled run fails.
	startupFatal bool
}

// BuildCrash wires the crash pipeline: feature service first, CSV export as
// fallback, then jurisdiction, route and ownership filtering.
func BuildCrash(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*Service, error) {
	aliases := domain.DefaultAliases()
	client := upstream.NewClient("virginia-roads", cfg.UpstreamRateLimit, logger, metrics)

	var sources []source.Source
	if cfg.CrashAPIURL != "" {
		sources = append(sources, arcgis.NewClient(arcgis.Config{
			URL:          cfg.CrashAPIURL,
			PageSize:     cfg.CrashPageSize,
			Where:        CrashWhere(cfg.CrashJurisCode, cfg.CrashFIPS, cfg.CrashNamePatterns),
			CountTimeout: cfg.RequestTimeoutShort,
			PageTimeout:  cfg.RequestTimeoutLong,
		}, client, logger))
	}
	if cfg.CrashCSVURL != "" {
		sources = append(sources, csvexport.NewClient(cfg.CrashCSVURL, cfg.RequestTimeoutBulk, client, logger))
	}
	acquirer := source.NewCoordinator(pipeline.CrashName, sources, logger, metrics)

	chain := filter.NewChain(pipeline.CrashName, logger, metrics,
		filter.Stage{Step: filter.NewJurisdiction(cfg.CrashJurisCode, cfg.CrashFIPS, cfg.CrashNamePatterns, aliases.Groups), Mandatory: true},
		filter.Stage{Step: filter.NewRouteExclusion(aliases.Groups), Mandatory: true},
		filter.Stage{Step: filter.NewOwnership(cfg.CrashOwnershipMarker, aliases.Groups)},
	)

	sink := csvfile.NewWriter(filepath.Join(cfg.OutputDir, CrashFile), logger)
	p := pipeline.NewCrash(acquirer, chain, aliases.Mapping("crash"), sink, logger)
	return newService(cfg, p, true, logger, metrics)
}

// BuildGrants wires the grants pipeline: the static supplement set plus the
// dated bulk extract, filtered by topic and active window.
func BuildGrants(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*Service, error) {
	static, err := pipeline.StaticGrants()
	if err != nil {
		return nil, fmt.Errorf("load static grants: %w", err)
	}

	aliases := domain.DefaultAliases()
	client := upstream.NewClient("grants.gov", cfg.UpstreamRateLimit, logger, metrics)
	acquirer := source.NewCoordinator(pipeline.GrantsName, []source.Source{
		bulk.NewClient(bulk.Config{
			URLTemplate: cfg.GrantsURLTemplate,
			Lookback:    cfg.GrantsLookbackDays,
			Timeout:     cfg.RequestTimeoutBulk,
		}, client, logger),
	}, logger, metrics)

	chain := filter.NewChain(pipeline.GrantsName, logger, metrics,
		filter.Stage{Step: filter.NewTopic(filter.SafetyCFDACodes, filter.SafetyAgencies, filter.SafetyKeywords, aliases.Groups)},
		filter.Stage{Step: filter.NewActiveWindow(cfg.GrantsActiveWindowDays, aliases.Groups)},
	)

	sink := csvfile.NewWriter(filepath.Join(cfg.OutputDir, GrantsFile), logger)
	p := pipeline.NewGrants(static, acquirer, chain, aliases.Mapping("grants"), sink, logger)
	return newService(cfg, p, false, logger, metrics)
}

func newService(cfg *config.Config, p pipeline.Pipeline, startupFatal bool, logger *slog.Logger, metrics *observability.Metrics) (*Service, error) {
	var (
		publishers []pipeline.Publisher
		closers    []io.Closer
	)

	if cfg.ObjectStoreEndpoint != "" {
		pub, err := objectstore.NewPublisher(objectstore.Config{
			Endpoint:  cfg.ObjectStoreEndpoint,
			Bucket:    cfg.ObjectStoreBucket,
			AccessKey: cfg.ObjectStoreAccessKey,
			SecretKey: cfg.ObjectStoreSecretKey,
			UseSSL:    cfg.ObjectStoreUseSSL,
			Prefix:    cfg.ObjectStorePrefix,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("object store publisher: %w", err)
		}
		publishers = append(publishers, pub)
		logger.Info("object store publishing enabled", "endpoint", cfg.ObjectStoreEndpoint, "bucket", cfg.ObjectStoreBucket)
	}

	if len(cfg.KafkaBrokers) > 0 {
		notifier := kafkaadapter.NewNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		publishers = append(publishers, notifier)
		closers = append(closers, notifier)
		logger.Info("run notifications enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	return &Service{
		cfg:          cfg,
		runner:       pipeline.NewRunner(p, publishers, logger, metrics),
		closers:      closers,
		logger:       logger,
		clock:        clockwork.NewRealClock(),
		startupFatal: startupFatal,
	}, nil
}

// Run executes the pipeline. With scheduling disabled it runs once and
// returns the run's error. Otherwise it serves health endpoints and runs at
// startup and on every weekly trigger until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	defer s.close()

	if !s.cfg.ScheduleEnabled {
		_, err := s.runner.RunOnce(ctx)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if s.cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(s.cfg.HTTPAddr, s.runner, s.logger)
		g.Go(func() error {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("http server shutdown error", "error", err)
			}
			return nil
		})
	}

	sched := scheduler.New(s.runner.Name(), s.cfg.Schedule, s.job, s.clock, s.logger)
	g.Go(func() error {
		s.logger.Info("scheduler started", "pipeline", s.runner.Name(), "schedule", s.cfg.Schedule.String())
		return sched.Run(gctx, s.onStartup)
	})

	return g.Wait()
}

func (s *Service) job(ctx context.Context) error {
	_, err := s.runner.RunOnce(ctx)
	return err
}

func (s *Service) onStartup(err error) error {
	if err == nil {
		return nil
	}
	if s.startupFatal {
		return fmt.Errorf("startup run: %w", err)
	}
	s.logger.Warn("startup run failed, waiting for next trigger", "pipeline", s.runner.Name(), "error", err)
	return nil
}

func (s *Service) close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Error("close error", "error", err)
		}
	}
}

// CrashWhere builds the feature-service jurisdiction filters, most specific
// first: jurisdiction code, then name patterns, then county FIPS.
func CrashWhere(code, fips string, names []string) []string {
	var where []string
	if code != "" {
		clause := "Juris_Code = " + quote(code)
		if isDigits(code) {
			clause += " OR Juris_Code = " + code
		}
		where = append(where, clause)
	}

	var likes []string
	seen := make(map[string]bool)
	for _, name := range names {
		for _, v := range []string{strings.ToUpper(name), name} {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			likes = append(likes, "Physical_Juris_Name LIKE "+quote("%"+v+"%"))
		}
	}
	if len(likes) > 0 {
		where = append(where, strings.Join(likes, " OR "))
	}

	if fips != "" {
		where = append(where, fmt.Sprintf("COUNTYFP = %s OR FIPS = %s", quote(fips), quote(fips)))
	}
	return where
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
