// Package config handles consensus configuration loading.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	cerrors "github.com/r3d91ll/consensus/pkg/errors"
	"github.com/r3d91ll/consensus/pkg/simulation"
)

// Config is the root configuration structure.
type Config struct {
	Simulation simulation.Config `yaml:"simulation"`
	Sweep      SweepConfig       `yaml:"sweep"`
	Server     ServerConfig      `yaml:"server"`
	Export     ExportConfig      `yaml:"export"`
	Logging    LoggingConfig     `yaml:"logging"`
}

// SweepConfig spans a grid of agent counts and sample sizes. A zero
// minimum leaves the dimension at the simulation value.
type SweepConfig struct {
	AgentCountMin  uint64 `yaml:"agent_count_min"`
	AgentCountMax  uint64 `yaml:"agent_count_max"`
	AgentCountStep uint64 `yaml:"agent_count_step"`
	SampleSizeMin  uint8  `yaml:"sample_size_min"`
	SampleSizeMax  uint8  `yaml:"sample_size_max"`
	SampleSizeStep uint8  `yaml:"sample_size_step"`
}

// ServerConfig holds the HTTP/websocket server settings.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// ExportConfig holds result persistence settings.
type ExportConfig struct {
	// OutputDir receives results files and CSV/LaTeX exports.
	OutputDir string `yaml:"output_dir"`
	// ResultsFile is the JSON file runs are merged into, relative to OutputDir.
	ResultsFile string `yaml:"results_file"`
	// ArchivePath is the sqlite run archive. Empty disables archiving.
	ArchivePath string `yaml:"archive_path"`
	// CSVDialect is one of standard, excel, tsv.
	CSVDialect string `yaml:"csv_dialect"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Simulation: simulation.DefaultConfig(),
		Server: ServerConfig{
			Host:        "localhost",
			Port:        8081,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Export: ExportConfig{
			OutputDir:   "./output",
			ResultsFile: "simulation.json",
			ArchivePath: "./output/runs.db",
			CSVDialect:  "standard",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a file, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cerrors.Config(cerrors.ErrConfigNotFound, "configuration file not found").
				WithContext("path", path)
		}
		return nil, cerrors.ConfigWrap(err, cerrors.ErrConfigReadFailed, "failed to read config").
			WithContext("path", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, cerrors.ConfigWrap(err, cerrors.ErrConfigParseFailed, "failed to parse config").
			WithContext("path", path)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		if ce, ok := cerrors.AsConsensusError(err); ok {
			ce.WithContext("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads config from path, or returns the default if the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	return Load(path)
}

// Validate checks the simulation parameters and the sweep ranges.
func (c *Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return err
	}
	if err := c.Sweep.Validate(); err != nil {
		return err
	}
	switch c.Export.CSVDialect {
	case "", "standard", "excel", "tsv":
	default:
		return cerrors.InvalidField("csv_dialect", "unknown csv dialect %q", c.Export.CSVDialect)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return cerrors.InvalidField("port", "port %d out of range", c.Server.Port)
	}
	return nil
}

// Validate checks that every non-empty range is well formed.
func (s SweepConfig) Validate() error {
	if s.AgentCountMin > 0 {
		if s.AgentCountMax < s.AgentCountMin {
			return cerrors.InvalidField("agent_count_max", "agent_count_max %d is below agent_count_min %d",
				s.AgentCountMax, s.AgentCountMin)
		}
		if s.AgentCountStep == 0 && s.AgentCountMax != s.AgentCountMin {
			return cerrors.InvalidField("agent_count_step", "agent_count_step must be positive")
		}
	}
	if s.SampleSizeMin > 0 {
		if s.SampleSizeMax < s.SampleSizeMin {
			return cerrors.InvalidField("sample_size_max", "sample_size_max %d is below sample_size_min %d",
				s.SampleSizeMax, s.SampleSizeMin)
		}
		if s.SampleSizeStep == 0 && s.SampleSizeMax != s.SampleSizeMin {
			return cerrors.InvalidField("sample_size_step", "sample_size_step must be positive")
		}
	}
	return nil
}

// Configs expands the grid around base. Points whose sample size is not
// below the agent count are skipped.
func (s SweepConfig) Configs(base simulation.Config) []simulation.Config {
	agentCounts := []uint64{base.AgentCount}
	if s.AgentCountMin > 0 {
		agentCounts = agentCounts[:0]
		for n := s.AgentCountMin; n <= s.AgentCountMax; n += s.AgentCountStep {
			agentCounts = append(agentCounts, n)
			if s.AgentCountStep == 0 {
				break
			}
		}
	}

	sampleSizes := []uint8{base.SampleSize}
	if s.SampleSizeMin > 0 {
		sampleSizes = sampleSizes[:0]
		for j := int(s.SampleSizeMin); j <= int(s.SampleSizeMax); j += int(s.SampleSizeStep) {
			sampleSizes = append(sampleSizes, uint8(j))
			if s.SampleSizeStep == 0 {
				break
			}
		}
	}

	var out []simulation.Config
	for _, n := range agentCounts {
		for _, j := range sampleSizes {
			if uint64(j) >= n {
				continue
			}
			cfg := base
			cfg.AgentCount = n
			cfg.SampleSize = j
			out = append(out, cfg)
		}
	}
	return out
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// ResultsPath returns the full path of the JSON results file.
func (e ExportConfig) ResultsPath() string {
	return filepath.Join(e.OutputDir, e.ResultsFile)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CONSENSUS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CONSENSUS_OUTPUT"); v != "" {
		cfg.Export.OutputDir = v
	}
	if v := os.Getenv("CONSENSUS_ARCHIVE"); v != "" {
		cfg.Export.ArchivePath = v
	}
	if v := os.Getenv("CONSENSUS_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Simulation.Seed = seed
		}
	}
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return cerrors.ConfigWrap(err, cerrors.ErrConfigWriteFailed, "failed to create config directory").
			WithContext("path", dir)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return cerrors.ConfigWrap(err, cerrors.ErrConfigWriteFailed, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return cerrors.ConfigWrap(err, cerrors.ErrConfigWriteFailed, "failed to write config file").
			WithContext("path", path)
	}
	return nil
}

// DefaultConfigPath returns the default config file path: config.yaml in
// the working directory if present, else ~/.consensus/config.yaml.
func DefaultConfigPath() string {
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".consensus", "config.yaml")
}

// InitConfig creates a default config file if it doesn't exist.
func InitConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return Default().Save(path)
}
