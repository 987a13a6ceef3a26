package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"stocksync_api/config"
	"stocksync_api/internal/distributor"
	"stocksync_api/internal/mapping"
	"stocksync_api/internal/report"
	"stocksync_api/internal/storefront"
	syncsvc "stocksync_api/internal/sync"
	"stocksync_api/metrics"
	"stocksync_api/pkg/logger"
	"stocksync_api/pkg/transport"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the yaml config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	runFiles, err := logger.NewRunFiles(cfg.Logs.Dir)
	if err != nil {
		log.Fatalf("preparing log files: %v", err)
	}
	defer runFiles.Close()

	generalLog := logger.NewLogger(runFiles.General, "[sync]")
	crashLog := logger.NewLogger(runFiles.Crash, "[crash]")
	updateLog := logger.NewLogger(runFiles.Updates, "[update]")

	cleaner := logger.NewCleaner(cfg.Logs.Dir, cfg.Logs.RetentionDays, generalLog)
	if deleted, err := cleaner.CleanOldLogs(); err != nil {
		generalLog.Log("log cleanup failed: %v", err)
	} else if deleted > 0 {
		generalLog.Log("log cleanup removed %d expired files", deleted)
	}

	ctx := context.Background()

	var source mapping.Source
	if cfg.Mapping.Postgres != nil {
		source = mapping.NewPostgresSource(cfg.Mapping.Postgres)
	} else {
		source = mapping.NewFileSource(cfg.Mapping.File)
	}
	table, err := mapping.Load(ctx, source)
	if err != nil {
		crashLog.Log("loading sku mapping: %v", err)
		os.Exit(1)
	}

	rt := transport.Config{}
	dist := distributor.NewClient(cfg.Distributor, rt, generalLog, crashLog)
	governor := storefront.NewGovernor(storefront.GovernorConfig{}, generalLog)
	store := storefront.NewClient(cfg.Storefront, rt, storefront.Options{}, governor, generalLog, crashLog, updateLog)

	service := syncsvc.NewService(dist, store, table, generalLog, crashLog)
	stats, runErr := service.Run(ctx)

	metrics.ObserveRun(stats.CodesProcessed, stats.ProductsUpdated, stats.Errors, stats.Warnings, stats.Duration)
	if cfg.Metrics.PushURL != "" {
		if err := metrics.Push(cfg.Metrics.PushURL, cfg.Metrics.Job); err != nil {
			generalLog.Log("metrics push failed: %v", err)
		}
	}

	if cfg.Email.ApiKey != "" {
		sender := report.NewEmailSender(cfg.Email, cfg.Logs.Dir, generalLog)
		var sendErr error
		if errors.Is(runErr, distributor.ErrTokenLimitExceeded) {
			sendErr = sender.SendTokenLimit(stats)
		} else {
			sendErr = sender.SendCompletion(stats)
		}
		if sendErr != nil {
			crashLog.Log("%v", sendErr)
		}
	}

	if runErr != nil {
		crashLog.Log("run aborted: %v", runErr)
		os.Exit(1)
	}
}
