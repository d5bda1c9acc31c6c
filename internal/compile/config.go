package compile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/loom-ml/loom/internal/optim"
	"github.com/loom-ml/loom/internal/parallel"
)

// Config controls one compilation. The zero value is not usable; start
// from DefaultConfig or LoadConfig.
type Config struct {
	// CacheDir roots the on-disk artifact cache. Empty disables
	// persistent caching and every kernel is assembled in memory.
	CacheDir string `yaml:"cache_dir"`

	// Locking takes a cross-process file lock around artifact builds,
	// so processes sharing CacheDir build each kernel once.
	Locking bool `yaml:"locking"`

	// Linker picks the lowering strategy: "fused", "dispatch", "check"
	// or "auto".
	Linker string `yaml:"linker"`

	// MaxIterations caps optimizer fixpoint rounds.
	MaxIterations int `yaml:"max_iterations"`

	// Optimize toggles the rewrite pipeline.
	Optimize bool `yaml:"optimize"`

	// Workers bounds kernel loop fan-out. 0 means one worker per CPU.
	Workers int `yaml:"workers"`

	Log *logrus.Logger `yaml:"-"`
}

// DefaultConfig returns the standard settings: optimizing, automatic
// linker choice, locked persistent cache under the user cache
// directory.
func DefaultConfig() Config {
	cacheDir := ""
	if base, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(base, "loom")
	}
	return Config{
		CacheDir:      cacheDir,
		Locking:       true,
		Linker:        "auto",
		MaxIterations: optim.DefaultMaxRounds,
		Optimize:      true,
	}
}

// FromEnv returns DefaultConfig with environment overrides applied.
// LOOM_CACHE_DIR moves the artifact cache and LOOM_LINKER forces a
// lowering strategy.
func FromEnv() Config {
	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg
}

// LoadConfig reads a YAML settings file over the defaults, then applies
// environment overrides. Keys absent from the file keep their default.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if dir := os.Getenv("LOOM_CACHE_DIR"); dir != "" {
		c.CacheDir = dir
	}
	if linker := os.Getenv("LOOM_LINKER"); linker != "" {
		c.Linker = linker
	}
}

func (c Config) logger() *logrus.Logger {
	if c.Log != nil {
		return c.Log
	}
	return logrus.StandardLogger()
}

func (c Config) parallel() parallel.Config {
	par := parallel.DefaultConfig()
	if c.Workers > 0 {
		par.NumWorkers = c.Workers
	}
	return par
}
