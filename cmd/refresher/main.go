package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/screwyprof/oppfeed/feed"
	"github.com/screwyprof/oppfeed/pkg/logger"
	"github.com/screwyprof/oppfeed/pkg/pgxdb"
	"github.com/screwyprof/oppfeed/refresher"
	"github.com/screwyprof/oppfeed/refresher/config"
	"github.com/screwyprof/oppfeed/refresher/store/pgxstore"
	webconfig "github.com/screwyprof/oppfeed/web/config"
	webstore "github.com/screwyprof/oppfeed/web/store/pgxstore"
)

var (
	version = "dev"
	date    = "unknown"
)

func main() {
	_ = godotenv.Load()

	cfg := config.New()

	log := logger.NewFromConfig(logger.Config{
		LogLevel:         cfg.LogLevel,
		LogHumanFriendly: cfg.LogHumanFriendly,
	})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.InfoContext(ctx, "Rank refresher starting",
		slog.String("version", version),
		slog.String("date", date),
	)

	// The web service must score with the same weights or ranked and live pages diverge
	weights, err := webconfig.LoadWeights(cfg.WeightsFile)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load scoring weights", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := pgxdb.NewConnection(ctx, cfg.DatabaseURL, pgxdb.WithApplicationName("oppfeed-refresher"))
	if err != nil {
		log.ErrorContext(ctx, "Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}

	store, storeCloser := pgxstore.New(db)
	defer storeCloser()

	service := refresher.NewService(
		webstore.NewCatalog(db),
		feed.NewScoreCalculator(weights),
		store,
		refresher.WithInterval(cfg.Interval),
		refresher.WithRetainGenerations(cfg.RetainGenerations),
		refresher.WithCatalogCeiling(cfg.CatalogCeiling),
	)

	log.InfoContext(ctx, "Starting rank refresher service",
		slog.Duration("interval", cfg.Interval),
		slog.Int("retainGenerations", cfg.RetainGenerations),
	)
	events, done := service.Start(ctx)

	subCloser := setupEventLogging(ctx, events, log)
	defer subCloser()

	<-done
	log.InfoContext(ctx, "Rank refresher stopped gracefully")
}

// setupEventLogging configures event handlers using slog directly
func setupEventLogging(ctx context.Context, events <-chan refresher.Event, log *slog.Logger) func() {
	return refresher.NewSubscriber(events,
		refresher.OnRefreshStarted(func(event refresher.RefreshStarted) {
			log.DebugContext(ctx, "Refresh started",
				slog.String("startedAt", event.StartedAt.Format(logger.BritishTimeFormat)),
			)
		}),
		refresher.OnGenerationSaved(func(event refresher.GenerationSaved) {
			log.InfoContext(ctx, "Rank generation saved",
				slog.Int64("generationID", event.GenerationID),
				slog.String("refreshedAt", event.RefreshedAt.Format(logger.BritishTimeFormat)),
				slog.Int("items", event.Items),
				slog.Int64("pruned", event.Pruned),
				slog.Duration("duration", event.Duration),
			)
		}),
		refresher.OnRefreshError(func(event refresher.RefreshError) {
			log.ErrorContext(ctx, "Refresh failed", slog.Any("error", event.Err))
		}),
		refresher.OnScheduleStarted(func(event refresher.ScheduleStarted) {
			log.InfoContext(ctx, "Refresh schedule started", slog.Duration("interval", event.Interval))
		}),
		refresher.OnScheduleShutdown(func(event refresher.ScheduleShutdown) {
			log.InfoContext(ctx, "Refresh schedule stopped", slog.String("reason", event.Reason.Error()))
		}),
	)
}
