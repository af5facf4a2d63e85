package main

import (
	"context"
	"fmt"

	"resume-ats/internal/config"
	"resume-ats/internal/logger"
	"resume-ats/internal/pipeline"
	"resume-ats/internal/processor"
	"resume-ats/internal/scoring"
	"resume-ats/internal/storage"

	"github.com/spf13/cobra"
)

// app 命令行运行所需的组件
type app struct {
	cfg    *config.Config
	proc   *processor.DocumentProcessor
	engine *scoring.Engine
	pipe   *pipeline.Pipeline
	close  func()
}

func loadApp(cmd *cobra.Command, g *globalFlags) (*app, error) {
	cfg, err := config.LoadConfig(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.storeDir != "" {
		cfg.Store.Backend = config.StoreBackendFS
		cfg.Store.Dir = g.storeDir
	}
	if g.concurrency > 0 {
		cfg.Pipeline.Concurrency = g.concurrency
	}
	if g.logLevel != "" {
		cfg.Logger.Level = g.logLevel
	}

	log := logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
		Output:       cmd.ErrOrStderr(),
	})

	store, closeStore, err := openRecordStore(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	proc, _, err := processor.NewFromConfig(cmd.Context(), cfg, store, log.With().Str("component", "processor").Logger())
	if err != nil {
		closeStore()
		return nil, err
	}
	engine, err := scoring.New(cfg.Scoring)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("scoring 配置无效: %w", err)
	}

	return &app{
		cfg:    cfg,
		proc:   proc,
		engine: engine,
		pipe: pipeline.New(proc, engine,
			pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
			pipeline.WithLogger(log)),
		close: closeStore,
	}, nil
}

// openRecordStore 文件系统后端不连接任何外部服务，其余后端经由 storage.NewStorage 初始化
func openRecordStore(ctx context.Context, cfg *config.Config) (storage.RecordStore, func(), error) {
	if cfg.Store.Backend == config.StoreBackendFS {
		store, err := storage.NewFSRecordStore(cfg.Store.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}

	// 命令行不使用异步上传与去重
	cfg.RabbitMQ.URL = ""
	cfg.Redis.Address = ""
	s, err := storage.NewStorage(ctx, cfg, logger.Logger)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewRecordStore(cfg, s)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return store, s.Close, nil
}
