package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/screwyprof/oppfeed/feed"
	"github.com/screwyprof/oppfeed/feed/historycache"
	"github.com/screwyprof/oppfeed/pkg/logger"
	"github.com/screwyprof/oppfeed/pkg/pgxdb"
	"github.com/screwyprof/oppfeed/pkg/walletapi"
	"github.com/screwyprof/oppfeed/web/config"
	"github.com/screwyprof/oppfeed/web/handler"
	"github.com/screwyprof/oppfeed/web/metrics"
	"github.com/screwyprof/oppfeed/web/store/pgxstore"
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

	log.InfoContext(ctx, "Opportunity feed API starting",
		slog.String("version", version),
		slog.String("date", date),
	)

	weights, err := config.LoadWeights(cfg.WeightsFile)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load scoring weights", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := pgxdb.NewConnection(ctx, cfg.DatabaseURL,
		pgxdb.WithPoolSize(2, cfg.DBMaxConns),
		pgxdb.WithStatementTimeout(cfg.DBStatementTimeout),
		pgxdb.WithApplicationName("oppfeed-web"),
	)
	if err != nil {
		log.ErrorContext(ctx, "Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	recorder := metrics.NewRecorder()
	history := newHistoryProvider(cfg, db)
	paginator := feed.NewPaginator(
		newCandidateSource(cfg, db, weights, log),
		history,
		feed.NewCursorCodec([]byte(cfg.CursorSecret)),
		feed.WithOverFetch(cfg.OverFetch),
		feed.WithMaxRounds(cfg.MaxRounds),
		feed.WithSponsoredWindow(feed.NewSponsoredWindowFilter(cfg.SponsoredCap, cfg.SponsoredWindow)),
		feed.WithRecorder(recorder),
		feed.WithPaginatorLogger(log),
	)

	mux := http.NewServeMux()
	handler.NewGetOpportunities(paginator).AddRoutes(mux)
	handler.NewDeleteWalletHistory(history).AddRoutes(mux)
	handler.NewHealth(db).AddRoutes(mux)
	recorder.AddRoutes(mux)

	loggedMux := logger.NewMiddleware(log)(mux)

	addr := net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort)

	server := &http.Server{
		Addr:    addr,
		Handler: loggedMux,
	}

	go func() {
		log.InfoContext(ctx, "Server started", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorContext(ctx, "Server failed to start", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	log.InfoContext(ctx, "Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(ctx, "Server forced to shutdown", slog.Any("error", err))
		os.Exit(1)
	}

	log.InfoContext(ctx, "Server exited gracefully")
}

// newHistoryProvider reads wallet activity from the wallet API when configured and from Postgres otherwise
func newHistoryProvider(cfg config.Config, db *pgxpool.Pool) *feed.HistoryProvider {
	var store feed.HistoryStore = pgxstore.NewHistoryStore(db)
	if cfg.WalletAPIURL != "" {
		store = walletapi.NewClient(&http.Client{Timeout: cfg.WalletAPITimeout}, cfg.WalletAPIURL)
	}

	return feed.NewHistoryProvider(store,
		historycache.New(cfg.HistoryCacheSize, cfg.HistoryCacheTTL),
		feed.WithHistoryTimeout(cfg.HistoryTimeout),
		feed.WithHistoryLimit(cfg.HistoryLimit),
		feed.WithHistoryRateLimit(rate.Limit(cfg.HistoryRatePerSec), cfg.HistoryBurst),
	)
}

// newCandidateSource scores live and, when enabled, serves cold recommended sessions from rank generations
func newCandidateSource(cfg config.Config, db *pgxpool.Pool, weights feed.Weights, log *slog.Logger) feed.CandidateSource {
	live := feed.NewScoringSource(pgxstore.NewCatalog(db), feed.NewScoreCalculator(weights), cfg.CatalogCeiling, log)
	if !cfg.UseRankSnapshots {
		return live
	}
	return feed.NewRoutingSource(pgxstore.NewRankedSource(db), live, log)
}
