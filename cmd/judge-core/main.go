package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"codejudge/internal/common/cache"
	commonmw "codejudge/internal/common/http/middleware"
	"codejudge/internal/common/mq"
	"codejudge/internal/judge/controller"
	"codejudge/internal/judge/repository"
	"codejudge/internal/judge/sandbox"
	"codejudge/internal/judge/sandbox/config"
	"codejudge/internal/judge/sandbox/engine"
	"codejudge/internal/judge/sandbox/observer"
	"codejudge/internal/judge/sandbox/runner"
	"codejudge/internal/judge/sandbox/verdict"
	"codejudge/internal/judge/sandbox/workspace"
	"codejudge/internal/judge/service"
	"codejudge/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConfigPath = "configs/judge_core.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(appCfg); err != nil {
		logger.Error(context.Background(), "judge core stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *AppConfig) error {
	bg := context.Background()

	var metrics observer.MetricsRecorder = observer.NoopMetricsRecorder{}
	if appCfg.Metrics.Enabled {
		recorder, err := observer.NewPrometheusRecorder(prometheus.DefaultRegisterer)
		if err != nil {
			return fmt.Errorf("init metrics failed: %w", err)
		}
		metrics = recorder
	}

	languages, err := config.NewLocalRepository(appCfg.Language.Languages)
	if err != nil {
		return fmt.Errorf("init languages failed: %w", err)
	}
	eng, err := engine.NewEngine(appCfg.Engine.toEngineConfig(appCfg.Judge.MaxOutputBytes))
	if err != nil {
		return fmt.Errorf("init engine failed: %w", err)
	}
	policy, err := verdict.ParsePolicy(appCfg.Judge.ComparePolicy)
	if err != nil {
		return err
	}
	jobRunner := runner.NewRunner(eng, runner.Options{
		CompileLimits: appCfg.Judge.compileLimits(),
		Comparer:      verdict.NewComparer(policy),
		Metrics:       metrics,
	})
	worker := sandbox.NewWorker(jobRunner)

	materializer, err := workspace.NewMaterializer(appCfg.Judge.WorkRoot)
	if err != nil {
		return fmt.Errorf("init workspace failed: %w", err)
	}

	svcCfg := service.Config{
		Worker:            worker,
		Languages:         languages,
		Materializer:      materializer,
		RequestLimits:     appCfg.Judge.requestLimits(),
		DefaultLimits:     appCfg.Judge.defaultLimits(),
		SubmissionTimeout: appCfg.Judge.SubmissionTimeout,
		AcquireTimeout:    appCfg.Worker.AcquireTimeout,
		StatusTimeout:     appCfg.Status.Timeout,
		WorkerPoolSize:    appCfg.Worker.PoolSize,
	}

	checks := map[string]pinger{}
	if appCfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
		if err != nil {
			return fmt.Errorf("init redis failed: %w", err)
		}
		defer func() {
			_ = redisCache.Close()
		}()
		svcCfg.StatusRepo = repository.NewStatusRepository(redisCache, appCfg.Status.TTL)
		checks["redis"] = redisCache
	}

	var mqClient *mq.KafkaQueue
	if appCfg.Kafka.Enabled() {
		mqClient, err = mq.NewKafkaQueue(appCfg.Kafka.KafkaConfig)
		if err != nil {
			return fmt.Errorf("init kafka failed: %w", err)
		}
		defer func() {
			_ = mqClient.Close()
		}()
		checks["kafka"] = mqClient
		svcCfg.Publisher = repository.NewMQRunEventPublisher(mqClient, appCfg.Kafka.ResultTopic)
		if appCfg.Kafka.RetryTopic != "" {
			svcCfg.RetryQueue = mqClient
			svcCfg.RetryTopic = appCfg.Kafka.RetryTopic
			svcCfg.DeadLetterTopic = appCfg.Kafka.DeadLetterTopic
			svcCfg.PoolRetryMax = appCfg.Kafka.PoolRetryMax
			svcCfg.PoolRetryBaseDelay = appCfg.Kafka.PoolRetryBaseDelay
			svcCfg.PoolRetryMaxDelay = appCfg.Kafka.PoolRetryMaxDelay
		}
	}

	judgeSvc, err := service.NewService(svcCfg)
	if err != nil {
		return fmt.Errorf("init judge service failed: %w", err)
	}

	if mqClient != nil {
		if err := subscribeKafka(bg, mqClient, appCfg, judgeSvc); err != nil {
			return err
		}
		defer func() {
			_ = mqClient.Stop()
		}()
	}

	httpServer := buildHTTPServer(appCfg, judgeSvc, checks)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("init http listener failed: %w", err)
	}

	shutdownCtx, stop := signal.NotifyContext(bg, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(shutdownCtx)
	g.Go(func() error {
		logger.Info(bg, "judge http server started",
			zap.String("addr", appCfg.Server.Addr),
			zap.Int("pool_size", appCfg.Worker.PoolSize),
			zap.Strings("languages", languages.Languages()),
		)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(bg, "shutdown signal received")
		ctx, cancel := context.WithTimeout(bg, defaultShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(ctx)
	})
	return g.Wait()
}

func subscribeKafka(ctx context.Context, mqClient *mq.KafkaQueue, appCfg *AppConfig, judgeSvc *service.Service) error {
	opts := &mq.SubscribeOptions{
		ConsumerGroup: appCfg.Kafka.ConsumerGroup,
		Concurrency:   appCfg.Kafka.Concurrency,
		MessageTTL:    appCfg.Kafka.MessageTTL,
		Limiter:       mq.NewTokenLimiter(appCfg.Worker.PoolSize),
	}
	topics := []string{appCfg.Kafka.RequestTopic}
	if appCfg.Kafka.RetryTopic != "" && appCfg.Kafka.RetryTopic != appCfg.Kafka.RequestTopic {
		topics = append(topics, appCfg.Kafka.RetryTopic)
	}
	for _, topic := range topics {
		if err := mqClient.Subscribe(ctx, topic, judgeSvc.HandleMessage, opts); err != nil {
			return fmt.Errorf("subscribe kafka topic %s failed: %w", topic, err)
		}
	}
	if err := mqClient.Start(); err != nil {
		return fmt.Errorf("start kafka consumer failed: %w", err)
	}
	logger.Info(ctx, "kafka intake started", zap.Strings("topics", topics))
	return nil
}

func buildHTTPServer(appCfg *AppConfig, judgeSvc controller.JudgeService, checks map[string]pinger) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())

	if appCfg.Metrics.Enabled {
		initGinMetrics(router)
		router.GET(appCfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}
	router.GET("/healthz", healthHandler(checks, defaultHealthTimeout))

	controller.NewJudgeController(judgeSvc).RegisterRoutes(router)

	return &http.Server{
		Addr:         appCfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
		IdleTimeout:  appCfg.Server.IdleTimeout,
	}
}

func initGinMetrics(r *gin.Engine) {
	p := ginprometheus.NewWithConfig(ginprometheus.Config{
		Subsystem:          "gin",
		DisableBodyReading: true,
	})
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		return c.FullPath()
	}
	r.Use(p.HandlerFunc())
}
