package script

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oarkflow/bcl"
	"github.com/oarkflow/json"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/script/pkg/fetch"
)

type Config struct {
	Runtime RuntimeSettings `yaml:"runtime" json:"runtime"`
	Globals map[string]any  `yaml:"globals" json:"globals"`
	Fetch   FetchSettings   `yaml:"fetch" json:"fetch"`
	Host    HostSettings    `yaml:"host" json:"host"`
	Server  ServerSettings  `yaml:"server" json:"server"`
}

// RuntimeSettings overlays the process runtime config. Zero values keep
// the current setting.
type RuntimeSettings struct {
	ExecTimeout       string `yaml:"exec_timeout" json:"exec_timeout"`
	MaxCallDepth      int    `yaml:"max_call_depth" json:"max_call_depth"`
	MaxLoopIterations int    `yaml:"max_loop_iterations" json:"max_loop_iterations"`
	LogExecution      *bool  `yaml:"log_execution" json:"log_execution"`
}

type FetchSettings struct {
	Timeout  string            `yaml:"timeout" json:"timeout"`
	Headers  map[string]string `yaml:"headers" json:"headers"`
	Insecure bool              `yaml:"insecure" json:"insecure"`
}

type HostSettings struct {
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

type ServerSettings struct {
	Address string `yaml:"address" json:"address"`
	Version string `yaml:"version" json:"version"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := DetectConfigFormat(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// DetectConfigFormat tries JSON, then YAML, then BCL.
func DetectConfigFormat(input string) (Config, error) {
	trimmed := strings.TrimSpace(input)
	var cfg Config
	if json.Unmarshal([]byte(trimmed), &cfg) == nil {
		return cfg, nil
	}
	cfg = Config{}
	if yaml.Unmarshal([]byte(trimmed), &cfg) == nil {
		return cfg, nil
	}
	cfg = Config{}
	if _, err := bcl.Unmarshal([]byte(trimmed), &cfg); err == nil {
		return cfg, nil
	}
	return Config{}, fmt.Errorf("unable to detect config format, please provide valid JSON, YAML, or BCL")
}

// RuntimeConfig applies the runtime settings on top of base.
func (c Config) RuntimeConfig(base RuntimeConfig) (RuntimeConfig, error) {
	cfg := base
	if c.Runtime.ExecTimeout != "" {
		d, err := time.ParseDuration(c.Runtime.ExecTimeout)
		if err != nil {
			return base, fmt.Errorf("runtime.exec_timeout: %w", err)
		}
		cfg.ExecTimeout = d
	}
	if c.Runtime.MaxCallDepth != 0 {
		cfg.MaxCallDepth = c.Runtime.MaxCallDepth
	}
	if c.Runtime.MaxLoopIterations != 0 {
		cfg.MaxLoopIterations = c.Runtime.MaxLoopIterations
	}
	if c.Runtime.LogExecution != nil {
		cfg.LogExecution = *c.Runtime.LogExecution
	}
	return cfg, nil
}

// Options turns the fetch, host and globals sections into Exec and Host
// options.
func (c Config) Options() ([]Option, error) {
	var fetchOpts []fetch.Option
	if c.Fetch.Timeout != "" {
		d, err := time.ParseDuration(c.Fetch.Timeout)
		if err != nil {
			return nil, fmt.Errorf("fetch.timeout: %w", err)
		}
		fetchOpts = append(fetchOpts, fetch.WithTimeout(d))
	}
	if c.Fetch.Insecure {
		fetchOpts = append(fetchOpts, fetch.WithInsecureSkipVerify())
	}
	if len(c.Fetch.Headers) > 0 {
		fetchOpts = append(fetchOpts, fetch.WithHeaders(c.Fetch.Headers))
	}
	opts := []Option{WithFetchClient(fetch.New(fetchOpts...))}
	if c.Host.QueueSize > 0 {
		opts = append(opts, WithQueueSize(c.Host.QueueSize))
	}
	if len(c.Globals) > 0 {
		opts = append(opts, WithGlobals(c.Globals))
	}
	return opts, nil
}
