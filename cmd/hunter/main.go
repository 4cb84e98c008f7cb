package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"DipHunter/internal/analysis"
	"DipHunter/internal/api"
	"DipHunter/internal/cache"
	"DipHunter/internal/collector"
	"DipHunter/internal/config"
	"DipHunter/internal/hunter"
	"DipHunter/internal/logger"
	"DipHunter/internal/metrics"
	"DipHunter/internal/notifier"
	"DipHunter/internal/recorder"
	"DipHunter/internal/scheduler"
	"DipHunter/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dip hunter: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync()
	log.Info("DipHunter starting", zap.String("config", cfgPath))

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.NewSQLiteStore(cfg.Database.SQLitePath, log.Named("store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.HistoryPath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.HistoryPath, log.Named("recorder"))
		if err != nil {
			log.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		} else {
			rec = sr
			defer sr.Close()
		}
	}

	var c cache.Cache = cache.NewMemoryCache()
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.Prefix)
		if err != nil {
			log.Warn("redis unavailable, using in-memory cache", zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
		} else {
			c = rc
		}
	}
	defer c.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	fetcher := collector.NewBinanceFetcher(cfg.DataSource.BaseURL, cfg.Proxy, cfg.DataSource.Timeout, cfg.DataSource.PageLimit)
	col := collector.NewCollector(fetcher, c, log.Named("collector"), cfg.DataSource.Retries, cfg.DataSource.RetryBackoff, cfg.Cache.KlinesTTL)
	col.OnRetry = func(source string, _ int, _ error) { m.RecordFetchRetry(source) }
	log.Info("data source", zap.String("name", fetcher.Name()), zap.String("base_url", cfg.DataSource.BaseURL))

	var (
		emailSender notifier.EmailSender
		chatSender  notifier.ChatSender
		tn          *notifier.TelegramNotifier
	)
	if cfg.Email.Host != "" {
		emailSender = notifier.NewEmailNotifier(cfg.Email.Host, cfg.Email.Port, cfg.Email.Username, cfg.Email.Password,
			cfg.Email.From, cfg.Email.Timeout, log.Named("email"))
	}
	if cfg.Telegram.BotToken != "" {
		tn, err = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Proxy, log.Named("telegram"))
		if err != nil {
			log.Warn("telegram disabled", zap.Error(err))
		} else {
			chatSender = tn
		}
	}
	dispatcher := notifier.NewDispatcher(emailSender, chatSender, log.Named("dispatch"))
	dispatcher.Retries = cfg.Notifications.Retries
	dispatcher.Backoff = cfg.Notifications.RetryBackoff
	dispatcher.OnFailure = func(channel string, _ error) { m.RecordDispatchFailure(channel) }

	runner := hunter.NewRunner(col, st, c, dispatcher, rec, m, log.Named("hunter"))
	runner.ZeroFill = cfg.ZeroFill
	runner.InputsTTL = cfg.Cache.InputsTTL

	refresher := analysis.NewRefresher(col, st, log.Named("analysis"))

	sched := scheduler.NewScheduler(ctx, runner, st, refresher, rec, m, log.Named("scheduler"))
	sched.AdminChatID = cfg.Telegram.AdminChatID
	if err := sched.RegisterAll(cfg.Schedule); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	srv := api.NewServer(cfg.HTTP.Addr, api.NewHandler(runner, st, cfg.Schedule.Intervals(), log.Named("api")), reg, log.Named("http"))
	srv.Start()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info("telegram polling started")
	}

	// Optional: run every cadence once on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Info("RUN_ON_START enabled, running all intervals now")
		go func() {
			for _, iv := range cfg.Schedule.Intervals() {
				sched.RunInterval(ctx, iv)
			}
			if _, err := refresher.RefreshAll(ctx); err != nil {
				log.Warn("analysis refresh", zap.Error(err))
			}
		}()
	}

	log.Info("DipHunter is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, stopping...")
	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	log.Info("DipHunter stopped")
	return nil
}
