// Package config loads service settings from an optional .env file, an
// optional YAML file, and environment variables, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"

	"jumpnav/internal/logsink"
	"jumpnav/internal/route"
)

const DefaultPath = "config/planner.yaml"

type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Planner  PlannerConfig  `yaml:"planner" json:"planner"`
	Distance DistanceConfig `yaml:"distance" json:"distance"`
	Webhooks WebhookConfig  `yaml:"webhooks" json:"webhooks"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Tuning   route.Tuning   `yaml:"tuning" json:"tuning"`
}

type ServerConfig struct {
	Port              string        `yaml:"port" json:"port"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout" json:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
	RedisURL          string        `yaml:"redisUrl" json:"-"`
}

type PlannerConfig struct {
	Workers          int           `yaml:"workers" json:"workers"`
	QueueSize        int           `yaml:"queueSize" json:"queueSize"`
	RateRPS          float64       `yaml:"rateRps" json:"rateRps"`
	RateBurst        int           `yaml:"rateBurst" json:"rateBurst"`
	JobTimeout       time.Duration `yaml:"jobTimeout" json:"jobTimeout"`
	SyncTimeout      time.Duration `yaml:"syncTimeout" json:"syncTimeout"` // inline plans; zero falls back to JobTimeout
	JobRetention     time.Duration `yaml:"jobRetention" json:"jobRetention"`
	DefaultAlgorithm string        `yaml:"defaultAlgorithm" json:"defaultAlgorithm"`
	// SyncAlgorithms may be planned inline on POST /v1/plan; the rest must go through jobs.
	SyncAlgorithms []string `yaml:"syncAlgorithms" json:"syncAlgorithms"`
	MaxWaypoints   int      `yaml:"maxWaypoints" json:"maxWaypoints"`
}

type DistanceConfig struct {
	BenchmarkOnStart bool `yaml:"benchmarkOnStart" json:"benchmarkOnStart"`
	BenchmarkRounds  int  `yaml:"benchmarkRounds" json:"benchmarkRounds"`
}

type WebhookConfig struct {
	MaxAttempts int           `yaml:"maxAttempts" json:"maxAttempts"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

type LogConfig struct {
	Level     string `yaml:"level" json:"level"`
	QueueSize int    `yaml:"queueSize" json:"queueSize"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{Port: "8080", ReadHeaderTimeout: 5 * time.Second, ShutdownTimeout: 10 * time.Second},
		Planner: PlannerConfig{
			Workers:          2,
			QueueSize:        64,
			RateRPS:          5,
			RateBurst:        10,
			JobTimeout:       2 * time.Minute,
			SyncTimeout:      10 * time.Second,
			JobRetention:     time.Hour,
			DefaultAlgorithm: route.NameGreedy,
			SyncAlgorithms:   []string{route.NameGreedy, route.NameHeuristic, route.NameExact},
			MaxWaypoints:     2000,
		},
		Distance: DistanceConfig{BenchmarkOnStart: true, BenchmarkRounds: 200},
		Webhooks: WebhookConfig{MaxAttempts: 10, Timeout: 5 * time.Second},
		Log:      LogConfig{Level: "info", QueueSize: 1024},
		Tuning:   route.DefaultTuning(),
	}
}

// Load reads .env (if present), then the YAML file at path (if present), then
// environment overrides. An empty path means PLANNER_CONFIG or DefaultPath.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: .env not loaded: %v", err)
	}
	if path == "" {
		path = envOr("PLANNER_CONFIG", DefaultPath)
	}
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		log.Printf("config: %s not found, using defaults", path)
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.Tuning = route.DefaultTuning().Merge(cfg.Tuning)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = envOr("PORT", c.Server.Port)
	c.Server.RedisURL = envOr("REDIS_URL", c.Server.RedisURL)
	c.Planner.DefaultAlgorithm = envOr("PLANNER_DEFAULT_ALGORITHM", c.Planner.DefaultAlgorithm)
	c.Log.Level = envOr("LOG_LEVEL", c.Log.Level)
	if v := os.Getenv("PLANNER_SYNC_ALGORITHMS"); v != "" {
		c.Planner.SyncAlgorithms = splitList(v)
	}
	for _, p := range []struct {
		key string
		fn  func(string) error
	}{
		{"PLANNER_WORKERS", intInto(&c.Planner.Workers)},
		{"PLANNER_QUEUE_SIZE", intInto(&c.Planner.QueueSize)},
		{"PLANNER_RATE_BURST", intInto(&c.Planner.RateBurst)},
		{"PLANNER_MAX_WAYPOINTS", intInto(&c.Planner.MaxWaypoints)},
		{"WEBHOOK_MAX_ATTEMPTS", intInto(&c.Webhooks.MaxAttempts)},
		{"DISTANCE_BENCHMARK_ROUNDS", intInto(&c.Distance.BenchmarkRounds)},
		{"PLANNER_RATE_RPS", floatInto(&c.Planner.RateRPS)},
		{"PLANNER_JOB_TIMEOUT", durationInto(&c.Planner.JobTimeout)},
		{"PLANNER_SYNC_TIMEOUT", durationInto(&c.Planner.SyncTimeout)},
		{"PLANNER_JOB_RETENTION", durationInto(&c.Planner.JobRetention)},
		{"DISTANCE_BENCHMARK", boolInto(&c.Distance.BenchmarkOnStart)},
	} {
		v := os.Getenv(p.key)
		if v == "" {
			continue
		}
		if err := p.fn(v); err != nil {
			return fmt.Errorf("config: %s=%q: %w", p.key, v, err)
		}
	}
	return nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is empty"))
	}
	if c.Planner.Workers < 1 {
		errs = append(errs, errors.New("planner.workers must be at least 1"))
	}
	if c.Planner.QueueSize < 1 {
		errs = append(errs, errors.New("planner.queueSize must be at least 1"))
	}
	if c.Planner.RateRPS <= 0 || c.Planner.RateBurst < 1 {
		errs = append(errs, errors.New("planner.rateRps must be positive and planner.rateBurst at least 1"))
	}
	if c.Planner.JobTimeout <= 0 {
		errs = append(errs, errors.New("planner.jobTimeout must be positive"))
	}
	if c.Planner.SyncTimeout < 0 {
		errs = append(errs, errors.New("planner.syncTimeout must not be negative"))
	}
	if _, ok := route.Describe(c.Planner.DefaultAlgorithm); !ok {
		errs = append(errs, fmt.Errorf("planner.defaultAlgorithm %q is not registered", c.Planner.DefaultAlgorithm))
	}
	for _, name := range c.Planner.SyncAlgorithms {
		if _, ok := route.Describe(name); !ok {
			errs = append(errs, fmt.Errorf("planner.syncAlgorithms: %q is not registered", name))
		}
	}
	if c.Webhooks.MaxAttempts < 1 {
		errs = append(errs, errors.New("webhooks.maxAttempts must be at least 1"))
	}
	if _, err := logsink.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if err := c.Tuning.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Level is the parsed log level; Validate has already checked it.
func (c Config) Level() logsink.Level {
	l, _ := logsink.ParseLevel(c.Log.Level)
	return l
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func intInto(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			*dst = n
		}
		return err
	}
}

func floatInto(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			*dst = f
		}
		return err
	}
}

func durationInto(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err == nil {
			*dst = d
		}
		return err
	}
}

func boolInto(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err == nil {
			*dst = b
		}
		return err
	}
}
