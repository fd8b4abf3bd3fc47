package main

import (
	"fmt"
	"os"
	"time"

	"codejudge/internal/common/cache"
	"codejudge/internal/common/mq"
	"codejudge/internal/judge/model"
	"codejudge/internal/judge/sandbox/config"
	"codejudge/internal/judge/sandbox/engine"
	"codejudge/internal/judge/sandbox/spec"
	"codejudge/internal/judge/sandbox/verdict"
	"codejudge/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr          = "0.0.0.0:8085"
	defaultReadTimeout       = 5 * time.Second
	defaultWriteTimeout      = 5 * time.Minute
	defaultIdleTimeout       = 60 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultWorkRoot          = "/tmp/codejudge"
	defaultCompileTimeout    = 10 * time.Second
	defaultTimeLimitMs       = 2000
	defaultMaxTimeLimitMs    = 10000
	defaultMemoryLimitMB     = 256
	defaultMaxMemoryMB       = 1024
	defaultMaxOutputBytes    = 64 * 1024
	defaultSubmissionTimeout = 2 * time.Minute
	defaultMaxTestCases      = 100
	defaultMaxSourceBytes    = 64 * 1024
	defaultAcquireTimeout    = 2 * time.Second
	defaultStatusTTL         = 10 * time.Minute
	defaultStatusTimeout     = time.Second
	defaultMetricsPath       = "/metrics"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// JudgeConfig holds per-submission limits and policies.
type JudgeConfig struct {
	WorkRoot          string        `yaml:"workRoot"`
	CompileTimeout    time.Duration `yaml:"compileTimeout"`
	DefaultTimeLimit  int64         `yaml:"defaultTimeLimitMs"`
	MaxTimeLimit      int64         `yaml:"maxTimeLimitMs"`
	MemoryLimitMB     int64         `yaml:"memoryLimitMB"`
	MaxMemoryMB       int64         `yaml:"maxMemoryMB"`
	MaxOutputBytes    int64         `yaml:"maxOutputBytes"`
	ComparePolicy     string        `yaml:"comparePolicy"`
	SubmissionTimeout time.Duration `yaml:"submissionTimeout"`
	MaxTestCases      int           `yaml:"maxTestCases"`
	MaxSourceBytes    int           `yaml:"maxSourceBytes"`
}

// WorkerConfig holds worker pool settings.
type WorkerConfig struct {
	PoolSize       int           `yaml:"poolSize"`
	AcquireTimeout time.Duration `yaml:"acquireTimeout"`
}

// EngineConfig holds process engine settings.
type EngineConfig struct {
	EnableCgroup bool   `yaml:"enableCgroup"`
	CgroupRoot   string `yaml:"cgroupRoot"`
	PathEnv      string `yaml:"pathEnv"`
}

// LanguageConfig holds language definitions.
type LanguageConfig struct {
	Languages []config.LanguageDefinition `yaml:"languages"`
}

// KafkaConfig holds optional Kafka intake settings.
type KafkaConfig struct {
	mq.KafkaConfig `yaml:",inline"`

	RequestTopic       string        `yaml:"requestTopic"`
	ResultTopic        string        `yaml:"resultTopic"`
	ConsumerGroup      string        `yaml:"consumerGroup"`
	Concurrency        int           `yaml:"concurrency"`
	RetryTopic         string        `yaml:"retryTopic"`
	DeadLetterTopic    string        `yaml:"deadLetterTopic"`
	PoolRetryMax       int           `yaml:"poolRetryMax"`
	PoolRetryBaseDelay time.Duration `yaml:"poolRetryBaseDelay"`
	PoolRetryMaxDelay  time.Duration `yaml:"poolRetryMaxDelay"`
	MessageTTL         time.Duration `yaml:"messageTTL"`
}

// Enabled reports whether Kafka intake is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// StatusConfig holds progress store settings.
type StatusConfig struct {
	TTL     time.Duration `yaml:"ttl"`
	Timeout time.Duration `yaml:"timeout"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// AppConfig holds judge-core config.
type AppConfig struct {
	Server   ServerConfig      `yaml:"server"`
	Logger   logger.Config     `yaml:"logger"`
	Judge    JudgeConfig       `yaml:"judge"`
	Worker   WorkerConfig      `yaml:"worker"`
	Engine   EngineConfig      `yaml:"engine"`
	Language LanguageConfig    `yaml:"language"`
	Redis    cache.RedisConfig `yaml:"redis"`
	Kafka    KafkaConfig       `yaml:"kafka"`
	Status   StatusConfig      `yaml:"status"`
	Metrics  MetricsConfig     `yaml:"metrics"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if _, err := verdict.ParsePolicy(cfg.Judge.ComparePolicy); err != nil {
		return nil, err
	}
	if cfg.Judge.DefaultTimeLimit > cfg.Judge.MaxTimeLimit {
		return nil, fmt.Errorf("defaultTimeLimitMs %d exceeds maxTimeLimitMs %d", cfg.Judge.DefaultTimeLimit, cfg.Judge.MaxTimeLimit)
	}
	if cfg.Kafka.Enabled() && cfg.Kafka.RequestTopic == "" {
		return nil, fmt.Errorf("kafka requestTopic is required when brokers are set")
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}

	j := &cfg.Judge
	if j.WorkRoot == "" {
		j.WorkRoot = defaultWorkRoot
	}
	if j.CompileTimeout == 0 {
		j.CompileTimeout = defaultCompileTimeout
	}
	if j.DefaultTimeLimit == 0 {
		j.DefaultTimeLimit = defaultTimeLimitMs
	}
	if j.MaxTimeLimit == 0 {
		j.MaxTimeLimit = defaultMaxTimeLimitMs
	}
	if j.MemoryLimitMB == 0 {
		j.MemoryLimitMB = defaultMemoryLimitMB
	}
	if j.MaxMemoryMB == 0 {
		j.MaxMemoryMB = defaultMaxMemoryMB
	}
	if j.MaxOutputBytes == 0 {
		j.MaxOutputBytes = defaultMaxOutputBytes
	}
	if j.SubmissionTimeout == 0 {
		j.SubmissionTimeout = defaultSubmissionTimeout
	}
	if j.MaxTestCases == 0 {
		j.MaxTestCases = defaultMaxTestCases
	}
	if j.MaxSourceBytes == 0 {
		j.MaxSourceBytes = defaultMaxSourceBytes
	}

	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = 1
	}
	if cfg.Worker.AcquireTimeout == 0 {
		cfg.Worker.AcquireTimeout = defaultAcquireTimeout
	}
	if len(cfg.Language.Languages) == 0 {
		cfg.Language.Languages = config.DefaultLanguages()
	}
	if cfg.Redis.Addr != "" {
		applyRedisDefaults(&cfg.Redis)
	}
	if cfg.Status.TTL == 0 {
		cfg.Status.TTL = defaultStatusTTL
	}
	if cfg.Status.Timeout == 0 {
		cfg.Status.Timeout = defaultStatusTimeout
	}
	if cfg.Kafka.Enabled() {
		if cfg.Kafka.ResultTopic == "" {
			cfg.Kafka.ResultTopic = "judge.run.result"
		}
		if cfg.Kafka.PoolRetryMax <= 0 {
			cfg.Kafka.PoolRetryMax = 5
		}
		if cfg.Kafka.PoolRetryBaseDelay == 0 {
			cfg.Kafka.PoolRetryBaseDelay = time.Second
		}
		if cfg.Kafka.PoolRetryMaxDelay == 0 {
			cfg.Kafka.PoolRetryMaxDelay = 30 * time.Second
		}
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaultMetricsPath
	}
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
}

func (j JudgeConfig) defaultLimits() spec.ResourceLimit {
	return spec.ResourceLimit{
		WallTimeMs:  j.DefaultTimeLimit,
		MemoryMB:    j.MemoryLimitMB,
		OutputBytes: j.MaxOutputBytes,
	}
}

func (j JudgeConfig) compileLimits() spec.ResourceLimit {
	return spec.ResourceLimit{
		WallTimeMs:  j.CompileTimeout.Milliseconds(),
		OutputBytes: j.MaxOutputBytes,
	}
}

func (j JudgeConfig) requestLimits() model.RequestLimits {
	return model.RequestLimits{
		MaxSourceBytes: j.MaxSourceBytes,
		MaxTestCases:   j.MaxTestCases,
		MaxTimeLimitMs: j.MaxTimeLimit,
		MaxMemoryMB:    j.MaxMemoryMB,
	}
}

func (e EngineConfig) toEngineConfig(maxOutput int64) engine.Config {
	return engine.Config{
		StdoutStderrMaxBytes: maxOutput,
		CgroupRoot:           e.CgroupRoot,
		EnableCgroup:         e.EnableCgroup,
		PathEnv:              e.PathEnv,
	}
}
