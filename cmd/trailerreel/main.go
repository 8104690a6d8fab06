package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"trailerreel/api"
	"trailerreel/config"
	"trailerreel/handlers"
	"trailerreel/internal/logging"
	"trailerreel/models"
	"trailerreel/services/catalog"
	"trailerreel/services/channel"
	"trailerreel/services/intros"
	"trailerreel/services/library"
	"trailerreel/services/metadata"
	"trailerreel/services/scheduler"
	"trailerreel/services/streams"
	"trailerreel/utils"
)

func main() {
	configPath := flag.String("config", envOr("TRAILERREEL_CONFIG", "config.yaml"), "path to the YAML settings file")
	once := flag.Bool("once", false, "run a single reconciliation pass and exit")
	flag.Parse()

	cfgManager := config.NewManager(*configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("[main] failed to load settings: %v", err)
	}

	logCloser := logging.Setup(settings.Logging)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, settings)
	if err != nil {
		log.Fatalf("[main] startup failed: %v", err)
	}
	defer app.library.Close()

	if *once {
		runCtx, cancel := context.WithTimeout(ctx, time.Duration(settings.Schedule.TimeoutMinutes)*time.Minute)
		defer cancel()
		result, err := app.intros.Reconcile(runCtx)
		if err != nil {
			log.Fatalf("[main] reconciliation failed: %v", err)
		}
		log.Printf("[main] reconciliation %s: %d cached, %d downloaded, %d deleted",
			result.RunID, len(result.CacheIDs), result.Downloaded, result.Deleted)
		return
	}

	if settings.Intros.Enabled {
		if err := app.scheduler.Start(ctx); err != nil {
			log.Fatalf("[main] scheduler failed to start: %v", err)
		}
	}

	limiter := api.NewPerMinuteLimiter(settings.Server.ReconcilePerMinute)
	if err := limiter.TrustProxies(settings.Server.TrustedProxies); err != nil {
		log.Fatalf("[main] invalid server.trusted_proxies: %v", err)
	}
	go limiter.Run(ctx)

	r := utils.NewRouter()
	handlers.Register(r,
		handlers.NewChannelHandler(app.channel),
		handlers.NewIntrosHandler(app.intros, app.scheduler),
		limiter.Middleware(),
	)

	srv := &http.Server{
		Addr:         settings.Server.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s", settings.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[main] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] http shutdown: %v", err)
	}
	if err := app.scheduler.Stop(shutdownCtx); err != nil {
		log.Printf("[main] scheduler shutdown: %v", err)
	}
}

type application struct {
	channel   *channel.Service
	intros    *intros.Service
	scheduler *scheduler.Service
	library   *library.Store
}

func build(ctx context.Context, settings config.Settings) (*application, error) {
	client := catalog.NewClient(settings.Catalog.APIKey,
		catalog.WithBaseURL(settings.Catalog.BaseURL),
		catalog.WithHTTPClient(&http.Client{Timeout: time.Duration(settings.Catalog.TimeoutSeconds) * time.Second}),
		catalog.WithRateLimit(settings.Catalog.RequestsPerSecond),
	)
	if !client.IsConfigured() {
		log.Println("[main] no TMDB API key configured; catalog requests will fail until one is set")
	}
	aggregator := catalog.NewAggregator(client, settings.Catalog.Language, settings.Catalog.Region)

	cache := metadata.NewCache(settings.CacheTTL(), time.Duration(settings.Cache.CleanupIntervalMinutes)*time.Minute)

	resolver := streams.NewResolver(settings.Resolver.MemoSize, time.Duration(settings.Resolver.MemoTTLMinutes)*time.Minute)
	resolver.Register(streams.SiteYouTube, streams.NewYouTube(settings.Resolver.YtDlpPath, time.Duration(settings.Resolver.TimeoutSeconds)*time.Second))

	var categories []models.Category
	for _, name := range settings.EnabledCategories() {
		if c, ok := models.ParseCategory(name); ok {
			categories = append(categories, c)
		}
	}
	channelSvc := channel.NewService(aggregator, client, channel.NewBuilder(cache, settings.Catalog.ImageBaseURL), cache, resolver, channel.Options{
		Categories:           categories,
		ItemLimit:            settings.Catalog.ItemLimit,
		MaxConcurrentLookups: settings.Catalog.MaxConcurrentLookups,
	})

	fsys := afero.NewOsFs()
	store, err := library.Open(ctx, settings.Library.DBPath, fsys)
	if err != nil {
		return nil, err
	}

	downloader := intros.NewFFmpegDownloader(settings.Download.FFmpegPath, time.Duration(settings.Download.TimeoutMinutes)*time.Minute, fsys)
	reconciler := intros.NewReconciler(channelSvc, cache, resolver, downloader, store, fsys, intros.ReconcilerOptions{
		CacheDir:                  settings.Intros.CacheDir,
		MarkFailedDownloadsCached: settings.Reconcile.MarkFailedDownloadsCached,
		Timeout:                   time.Duration(settings.Schedule.TimeoutMinutes) * time.Minute,
	})
	introSvc := intros.NewService(reconciler, settings.Intros.Enabled, settings.Intros.Count)

	sched, err := scheduler.NewService(introSvc, scheduler.Options{
		Spec:       settings.Schedule.ReconcileSpec,
		RunOnStart: settings.Schedule.RunOnStart,
		Timeout:    time.Duration(settings.Schedule.TimeoutMinutes) * time.Minute,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &application{channel: channelSvc, intros: introSvc, scheduler: sched, library: store}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
