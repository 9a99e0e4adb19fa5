package core

import (
	"os"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-yaml"
	_ "go.uber.org/automaxprocs" // tunes GOMAXPROCS to the container cgroup quota as a side effect
)

// Config is the ambient configuration surface for cmd/dispatchd and any
// other host process embedding this package, layered the same way
// KnightChaser-vrunq's internal/sched/config.go does: compiled-in defaults,
// then an optional YAML file, then environment variable overrides on top.
type Config struct {
	// PoolSize is the PoolExecutor worker count. Zero means "use
	// runtime.GOMAXPROCS(0)", which automaxprocs has already tuned to the
	// container's cgroup CPU quota by the time Load returns.
	PoolSize int `yaml:"pool_size" env:"DISPATCH_POOL_SIZE"`
	// DefaultQoS labels executors that don't set their own QoS explicitly.
	DefaultQoS string `yaml:"default_qos" env:"DISPATCH_DEFAULT_QOS"`
	// BreakerMaxConsecutiveFailures and BreakerCooldown configure the
	// optional per-executor CircuitBreaker; zero MaxConsecutiveFailures
	// disables the breaker entirely.
	BreakerMaxConsecutiveFailures uint32        `yaml:"breaker_max_consecutive_failures" env:"DISPATCH_BREAKER_MAX_FAILURES"`
	BreakerCooldown               time.Duration `yaml:"breaker_cooldown" env:"DISPATCH_BREAKER_COOLDOWN"`
	// HistoryCapacity bounds each executor's recent-execution ring buffer.
	HistoryCapacity int `yaml:"history_capacity" env:"DISPATCH_HISTORY_CAPACITY"`
	// DebugListenAddr is internal/httpapi's listen address; empty disables
	// the debug HTTP surface entirely.
	DebugListenAddr string `yaml:"debug_listen_addr" env:"DISPATCH_DEBUG_ADDR"`
}

// DefaultConfig returns the compiled-in baseline Load starts from before
// applying a YAML file or environment overrides.
func DefaultConfig() Config {
	return Config{
		PoolSize:                      0,
		DefaultQoS:                    QoSDefault.String(),
		BreakerMaxConsecutiveFailures: 0,
		BreakerCooldown:               30 * time.Second,
		HistoryCapacity:               defaultHistoryCapacity,
		DebugListenAddr:               "",
	}
}

// Load builds a Config by starting from DefaultConfig, applying yamlPath if
// it is non-empty and exists, then applying environment variable overrides.
// A missing yamlPath is not an error — callers that only want env-driven
// config can pass "".
func Load(yamlPath string) (Config, error) {
	cfg := DefaultConfig()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}

	if cfg.PoolSize <= 0 {
		cfg.PoolSize = runtime.GOMAXPROCS(0)
	}
	return cfg, nil
}
