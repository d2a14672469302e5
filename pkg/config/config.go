package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	Prod = "prod"
	Dev  = "dev"
	Test = "test"
)

type Guard struct {
	Guard GuardBox `yaml:"guard"`
}

type GuardBox struct {
	Enabled bool    `yaml:"enabled"`
	Api     Api     `yaml:"api"`
	Stats   Stats   `yaml:"stats"`
	Metrics Metrics `yaml:"metrics"`
	Rules   Rules   `yaml:"rules"`
	Demo    Demo    `yaml:"demo"`
	K8S     K8S     `yaml:"k8s"`
}

type Api struct {
	Name string `yaml:"name"`
	Port string `yaml:"port"`
}

type Metrics struct {
	Enabled bool `yaml:"enabled"`
}

// Stats are the process-wide statistic knobs applied on startup
// (see ApplyStat); zero values fall back to the defaults.
type Stats struct {
	SampleCount    int           `yaml:"sample_count"`     // buckets per sliding window
	Interval       time.Duration `yaml:"interval"`         // total window span, e.g. "1s"
	OccupyTimeout  time.Duration `yaml:"occupy_timeout"`   // max priority-wait, e.g. "500ms"
	StatisticMaxRt time.Duration `yaml:"statistic_max_rt"` // ceiling for min-rt tracking
}

type Rules struct {
	Path string `yaml:"path"` // yaml file with flow/degrade rules
}

type Demo struct {
	SelfTraffic SelfTraffic `yaml:"self_traffic"`
	Users       Users       `yaml:"users"`
}

type SelfTraffic struct {
	Enabled bool `yaml:"enabled"`
	Rps     int  `yaml:"rps"`
}

type Users struct {
	CacheCounters int64 `yaml:"cache_counters"` // ristretto NumCounters
	CacheMaxCost  int64 `yaml:"cache_max_cost"`
}

type K8S struct {
	Probe Probe `yaml:"probe"`
}

type Probe struct {
	Timeout time.Duration `yaml:"timeout"`
}

const (
	configPath      = "/config/config.yaml"
	configPathLocal = "/config/config.local.yaml"
	configPathTest  = "/../../config/config.test.yaml"
)

func LoadConfig() (*Guard, error) {
	env := os.Getenv("APP_ENV")

	var path string
	switch {
	case env == Prod:
		path = configPath
	case env == Dev:
		path = configPathLocal
	case env == Test:
		path = configPathTest
	default:
		return nil, errors.New("unknown APP_ENV: '" + env + "'")
	}

	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	path, err = filepath.Abs(filepath.Clean(dir + path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute config filepath: %w", err)
	}

	if _, err = os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	cfg := &Guard{}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config yaml file %s: %w", path, err)
	}

	return cfg, nil
}
