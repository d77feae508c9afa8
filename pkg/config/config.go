// Package config holds the settings of a file share instance.
package config

import (
	"fmt"
	"os"

	"github.com/i5heu/ouroboros-fileshare/pipeline"
	"github.com/i5heu/ouroboros-fileshare/pkg/spaceInformations"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConcurrency    = 8
	DefaultRSDataSlices   = 3
	DefaultRSParitySlices = 2
)

type Config struct {
	Paths            []string `yaml:"paths"`              // Paths to store the data; the first one holds the database
	MinimumFreeSpace int      `yaml:"minimum_free_space"` // Minimum free space in GB required on every path
	InMemory         bool     `yaml:"in_memory"`          // Keep everything in memory; Paths and MinimumFreeSpace are ignored

	Chunking  string `yaml:"chunking"`   // "fixed" or "buzhash"
	ChunkSize int64  `yaml:"chunk_size"` // Bytes per chunk for fixed chunking

	Concurrency    int   `yaml:"concurrency"` // Upper bound of parallel chunk ingests and resolves
	RSDataSlices   uint8 `yaml:"rs_data_slices"`
	RSParitySlices uint8 `yaml:"rs_parity_slices"`

	// Resolve every chunk before a record is published instead of only at reconstruction.
	VerifyChunksOnPublish bool `yaml:"verify_chunks_on_publish"`

	Logger     *logrus.Logger        `yaml:"-"`
	Registerer prometheus.Registerer `yaml:"-"` // Optional; nil leaves metrics unregistered, shared between file shares otherwise
}

// Load reads a YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
	if c.Chunking == "" {
		c.Chunking = string(pipeline.StrategyFixed)
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = pipeline.DefaultChunkSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.RSDataSlices == 0 {
		c.RSDataSlices = DefaultRSDataSlices
		if c.RSParitySlices == 0 {
			c.RSParitySlices = DefaultRSParitySlices
		}
	}
}

// Splitter returns the chunk splitter described by the config.
func (c *Config) Splitter() (pipeline.Splitter, error) {
	strategy, err := pipeline.ParseStrategy(c.Chunking)
	if err != nil {
		return pipeline.Splitter{}, err
	}
	return pipeline.Splitter{Strategy: strategy, ChunkSize: c.ChunkSize}, nil
}

// CheckConfig validates the config. Missing directories in Paths are created.
func (c *Config) CheckConfig() error {
	if _, err := pipeline.ParseStrategy(c.Chunking); err != nil {
		return err
	}
	if int(c.RSDataSlices)+int(c.RSParitySlices) > 256 {
		return fmt.Errorf("RSDataSlices + RSParitySlices must not exceed 256")
	}
	if c.InMemory {
		return nil
	}

	if len(c.Paths) == 0 {
		return fmt.Errorf("paths must not be empty")
	}

	for _, path := range c.Paths {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return fmt.Errorf("failed to create path %s: %w", path, err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to stat path %s: %w", path, err)
		} else if !info.IsDir() {
			return fmt.Errorf("path %s is not a directory", path)
		}

		free, err := spaceInformations.FreeBytes(path)
		if err != nil {
			return err
		}
		if c.MinimumFreeSpace > 0 && free/1e9 < uint64(c.MinimumFreeSpace) {
			return fmt.Errorf("path %s has %d GB free, %d GB required", path, free/1e9, c.MinimumFreeSpace)
		}
	}
	return nil
}
