package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hive-corporation/nightwatch/internal/adapter/enrich"
	"github.com/hive-corporation/nightwatch/internal/adapter/handler"
	"github.com/hive-corporation/nightwatch/internal/adapter/notifier"
	"github.com/hive-corporation/nightwatch/internal/adapter/repository"
	"github.com/hive-corporation/nightwatch/internal/adapter/source"
	"github.com/hive-corporation/nightwatch/internal/adapter/summarizer"
	"github.com/hive-corporation/nightwatch/internal/config"
	"github.com/hive-corporation/nightwatch/internal/notification"
	"github.com/hive-corporation/nightwatch/internal/pipeline/dataleak"
	"github.com/hive-corporation/nightwatch/internal/pipeline/dnsfinder"
	"github.com/hive-corporation/nightwatch/internal/pipeline/sitemonitor"
	"github.com/hive-corporation/nightwatch/internal/pipeline/threatswatcher"
	"github.com/hive-corporation/nightwatch/internal/scheduler"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	zl, err := buildLogger()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	store := repository.NewStore(dbPool)
	if err := store.Ping(ctx); err != nil {
		logger.Fatalw("database not reachable", "error", err)
	}

	notification.InitMetrics()

	// Enrichers.
	resolver := enrich.NewDNSResolver(cfg.DNSResolver, logger)
	prober := enrich.NewWebProber(logger)
	enricher := enrich.NewEnricher(enrich.NewRDAPClient(logger), enrich.NewWHOISClient(logger))
	certs := enrich.NewCertChecker()
	extractor := enrich.NewNERExtractor(logger)

	// Sources.
	feeds := source.NewRSSFetcher()
	articles := source.NewArticleFetcher()
	searx := source.NewSearxClient(cfg.DataLeakSearxURL)
	pastebin := source.NewPastebinScraper()
	fuzzer := source.NewDNSTwistFuzzer(cfg.DNSTwistPath)
	stream := source.NewCertStreamClient(cfg.CertStreamURL, cfg.Proxy, logger)

	// Notification channels. A channel without credentials stays constructed
	// but disabled.
	slack := notifier.NewSlackNotifier(cfg.Slack)
	citadel := notifier.NewCitadelNotifier(cfg.Citadel)
	mail := notifier.NewEmailNotifier(cfg.Email)
	thehive := notifier.NewTheHiveNotifier(cfg.TheHive)
	misp := notifier.NewMISPNotifier(cfg.MISP)
	for name, enabled := range map[string]bool{
		"slack": slack.Enabled(), "citadel": citadel.Enabled(),
		"email": mail.Enabled(), "thehive": thehive.Enabled(), "misp": misp.Enabled(),
	} {
		logger.Infow("notification channel", "channel", name, "enabled", enabled)
	}

	ticketing := notification.NewTicketing(thehive, misp, store, store, logger)
	hub := notification.NewHub(cfg.WatcherURL, slack, citadel, mail, store, ticketing, logger)

	// Pipelines.
	digests := summarizer.New(cfg.Summary)
	trendPipe := threatswatcher.New(
		threatswatcher.Config{
			PostsDepth:            cfg.PostsDepth,
			WordsOccurrence:       cfg.WordsOccurrence,
			BreakingNewsThreshold: cfg.BreakingNewsThreshold,
		},
		store, store, store, store, feeds, extractor, articles, digests, hub, logger,
	)
	leakPipe := dataleak.New(store, store, store, searx, pastebin, hub, logger)
	sitePipe := sitemonitor.New(store, store, store, resolver, prober, enricher, certs, hub, logger)
	dnsPipe := dnsfinder.New(store, store, store, store, fuzzer, stream, hub, logger)

	sched := scheduler.New(logger, store.Ping)
	weeklySpec := fmt.Sprintf("0 %d * * %d", cfg.WeeklySummaryHour, cfg.WeeklySummaryDay)
	jobs := []struct {
		id   string
		spec string
		cap  int
		fn   scheduler.JobFunc
	}{
		{"data_leak_main", "@every 5m", 10, leakPipe.Run},
		{"data_leak_cleanup", "@every 2h", 1, leakPipe.Cleanup},
		{"threats_watcher_main", "@every 5m", 10, trendPipe.Run},
		{"threats_watcher_cleanup", "0 8 * * *", 1, trendPipe.Cleanup},
		{"weekly_summary", weeklySpec, 1, trendPipe.WeeklySummary},
		{"site_monitoring", "@every 15m", 10, sitePipe.Run},
		{"site_rdap_refresh", "@every 15m", 1, sitePipe.RefreshRDAP},
		{"dns_finder", "@every 2h", 10, dnsPipe.Run},
		{"legitimate_domains_rdap_refresh", "@every 30m", 1, sitePipe.RefreshLegitimateDomains},
		{"whois_discovery", "@every 30m", 10, sitePipe.DiscoverWHOIS},
	}
	for _, j := range jobs {
		if err := sched.Register(j.id, j.spec, j.cap, j.fn); err != nil {
			logger.Fatalw("failed to register job", "id", j.id, "error", err)
		}
	}
	sched.Start()

	// The certificate-transparency stream is a long-lived worker, not a
	// scheduled job.
	go dnsPipe.RunCertStream(ctx)

	rest := handler.NewRestHandler(store, store, store, logger)
	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      rest.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Infow("http server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("http server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("http shutdown failed", "error", err)
	}
	logger.Info("stopped")
}

func buildLogger() (*zap.Logger, error) {
	if os.Getenv("ENV") == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
