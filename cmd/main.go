package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resume-ats/internal/api/handler"
	"resume-ats/internal/api/router"
	"resume-ats/internal/config"
	"resume-ats/internal/constants"
	appCoreLogger "resume-ats/internal/logger"
	"resume-ats/internal/outbox"
	"resume-ats/internal/pipeline"
	"resume-ats/internal/processor"
	"resume-ats/internal/scoring"
	"resume-ats/internal/storage"
	"resume-ats/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"
)

var (
	version     = "1.0.0"      //nolint:gochecknoglobals
	serviceName = "resume-ats" //nolint:gochecknoglobals
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	initLogger(config.LoggerConfig{Level: "info", Format: "pretty"})

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}
	initLogger(cfg.Logger)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = serviceName
	}
	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing, version)
	if err != nil {
		glog.Fatalf("初始化链路追踪失败: %v", err)
	}

	storageManager, err := storage.NewStorage(ctx, cfg, appCoreLogger.Logger)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	recordStore, err := storage.NewRecordStore(cfg, storageManager)
	if err != nil {
		glog.Fatalf("初始化记录存储失败: %v", err)
	}

	proc, extractors, err := processor.NewFromConfig(ctx, cfg, recordStore, appCoreLogger.Component("processor"))
	if err != nil {
		glog.Fatalf("初始化文档处理器失败: %v", err)
	}
	engine, err := scoring.New(cfg.Scoring)
	if err != nil {
		glog.Fatalf("初始化评分引擎失败: %v", err)
	}
	pipe := pipeline.New(proc, engine,
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
		pipeline.WithLogger(appCoreLogger.Logger))
	glog.Infof("文档处理器初始化成功，支持的文件类型: %v", extractors.Extensions())

	resumeHandler := handler.NewResumeHandler(cfg, proc, pipe, engine,
		handler.DependenciesFromStorage(cfg, storageManager, extractors))

	stopConsumers := startUploadConsumers(cfg, storageManager, proc)
	stopRelay := startOutboxRelay(storageManager)

	tracer, tracingCfg := hertztracing.NewServerTracer()
	maxBody := int(cfg.MaxUploadBytes()) + 1<<20
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithMaxRequestBodySize(maxBody),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracingCfg))

	router.RegisterRoutes(h, resumeHandler, cfg.Server)
	glog.Info("HTTP路由注册成功")
	if len(cfg.Server.APIKeys) == 0 {
		glog.Warn("未配置 server.api_keys，API 不做认证")
	}

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	stopRelay()
	stopConsumers()
	glog.Info("上传消费者已停止")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(),
		config.GetDuration(cfg.Server.ShutdownTimeout, constants.DefaultShutdownTimeout))
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		glog.Warnf("关闭链路追踪失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// startUploadConsumers 异步上传可用时启动消费者，返回停止函数
func startUploadConsumers(cfg *config.Config, s *storage.Storage, proc *processor.DocumentProcessor) func() {
	if !s.AsyncEnabled() {
		glog.Info("未启用RabbitMQ，跳过上传消费者")
		return func() {}
	}

	opts := []processor.ConsumerOpt{processor.WithMessageTimeout(2 * time.Minute)}
	if s.Redis != nil {
		opts = append(opts, processor.WithDedup(s.Redis))
	}
	if s.MySQL != nil {
		opts = append(opts, processor.WithStatusTracker(s.MySQL))
	}
	consumer := processor.NewUploadConsumer(proc, s.MinIO, appCoreLogger.Logger, opts...)

	workers := cfg.RabbitMQ.ConsumerWorkers
	if workers < 1 {
		workers = 1
	}
	var stops []chan<- struct{}
	for i := 0; i < workers; i++ {
		stop, err := s.RabbitMQ.StartConsumer(cfg.RabbitMQ.UploadQueue, cfg.RabbitMQ.PrefetchCount, consumer.HandleMessage)
		if err != nil {
			glog.Fatalf("启动上传消费者失败: %v", err)
		}
		stops = append(stops, stop)
	}
	glog.Infof("启动上传消费者，工作线程数: %d, 队列: %s", workers, cfg.RabbitMQ.UploadQueue)

	return func() {
		for _, stop := range stops {
			close(stop)
		}
	}
}

// startOutboxRelay MySQL 与异步上传同时可用时启动发件箱中继
func startOutboxRelay(s *storage.Storage) func() {
	if !s.AsyncEnabled() || s.MySQL == nil {
		return func() {}
	}
	opts := []outbox.RelayOpt{outbox.WithStatusTracker(s.MySQL)}
	if s.Redis != nil {
		opts = append(opts, outbox.WithDedup(s.Redis))
	}
	relay := outbox.NewMessageRelay(s.MySQL.DB(), s.RabbitMQ, appCoreLogger.Logger, opts...)
	relay.Start()
	return relay.Stop
}

func initLogger(lc config.LoggerConfig) {
	appCoreLogger.Init(appCoreLogger.Config{
		Level:        lc.Level,
		Format:       lc.Format,
		TimeFormat:   lc.TimeFormat,
		ReportCaller: lc.ReportCaller,
		Output:       os.Stderr,
	})

	// hertz 的 glog 通过适配器复用同一个 zerolog 实例
	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
	if lc.Level == "debug" {
		glog.SetLevel(glog.LevelDebug)
	} else {
		glog.SetLevel(glog.LevelInfo)
	}
}
