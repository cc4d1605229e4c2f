package seqgan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the generation engine
type Config struct {
	Checkpoint    string
	TokenizerPath string
	MaxBatchSize  int
	MaxNewTokens  int
	MaxSrcLen     int
	PadID         int
	BosID         int
	EosID         int
	Seed          int64
	MemoCapacity  int
}

// ConfigOption is a functional option for Config
type ConfigOption func(*Config)

// NewConfig creates a new Config with default values. An empty checkpoint
// path is allowed for runners that do not load weights (mock, HTTP).
func NewConfig(checkpoint string, opts ...ConfigOption) *Config {
	c := &Config{
		Checkpoint:   checkpoint,
		MaxBatchSize: 16,
		MaxNewTokens: 128,
		MaxSrcLen:    512,
		PadID:        0,
		BosID:        1,
		EosID:        2,
		Seed:         42,
		MemoCapacity: 64,
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.validate(); err != nil {
		panic(err)
	}

	return c
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.Checkpoint != "" {
		if _, err := os.Stat(c.Checkpoint); os.IsNotExist(err) {
			return fmt.Errorf("checkpoint does not exist: %s", c.Checkpoint)
		}
	}
	if c.MaxBatchSize < 1 || c.MaxBatchSize > 1024 {
		return fmt.Errorf("max batch size must be between 1 and 1024, got %d", c.MaxBatchSize)
	}
	if c.MaxNewTokens < 1 {
		return fmt.Errorf("max new tokens must be positive, got %d", c.MaxNewTokens)
	}
	if c.MaxSrcLen < 1 {
		return fmt.Errorf("max source length must be positive, got %d", c.MaxSrcLen)
	}
	if c.MemoCapacity < 0 {
		return fmt.Errorf("memo capacity must be >= 0, got %d", c.MemoCapacity)
	}
	return nil
}

// WithTokenizerPath sets the tokenizer file path
func WithTokenizerPath(path string) ConfigOption {
	return func(c *Config) {
		c.TokenizerPath = path
	}
}

// WithMaxBatchSize sets the maximum lockstep batch size
func WithMaxBatchSize(n int) ConfigOption {
	return func(c *Config) {
		c.MaxBatchSize = n
	}
}

// WithDefaultMaxNewTokens sets the default generation length limit
func WithDefaultMaxNewTokens(n int) ConfigOption {
	return func(c *Config) {
		c.MaxNewTokens = n
	}
}

// WithMaxSrcLen sets the maximum accepted source length
func WithMaxSrcLen(n int) ConfigOption {
	return func(c *Config) {
		c.MaxSrcLen = n
	}
}

// WithSpecialTokens sets the pad, BOS and EOS token ids
func WithSpecialTokens(pad, bos, eos int) ConfigOption {
	return func(c *Config) {
		c.PadID = pad
		c.BosID = bos
		c.EosID = eos
	}
}

// WithSeed sets the RNG seed for weight init and sampling
func WithSeed(seed int64) ConfigOption {
	return func(c *Config) {
		c.Seed = seed
	}
}

// WithMemoCapacity sets the encoder memory memo capacity (0 disables it)
func WithMemoCapacity(n int) ConfigOption {
	return func(c *Config) {
		c.MemoCapacity = n
	}
}

// configFile mirrors the YAML layout of the training system's config file
type configFile struct {
	Model struct {
		Checkpoint string `yaml:"checkpoint"`
		Tokenizer  string `yaml:"tokenizer"`
	} `yaml:"model"`
	Generation struct {
		MaxBatchSize int   `yaml:"max_batch_size"`
		MaxNewTokens int   `yaml:"max_new_tokens"`
		MaxSrcLen    int   `yaml:"max_src_len"`
		Seed         int64 `yaml:"seed"`
		MemoCapacity int   `yaml:"memo_capacity"`
	} `yaml:"generation"`
	Tokens struct {
		PadID int `yaml:"pad_id"`
		BosID int `yaml:"bos_id"`
		EosID int `yaml:"eos_id"`
	} `yaml:"tokens"`
}

// LoadConfigFile reads an engine configuration from a YAML file. Fields not
// present keep their defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cf configFile
	cf.Generation.MaxBatchSize = 16
	cf.Generation.MaxNewTokens = 128
	cf.Generation.MaxSrcLen = 512
	cf.Generation.Seed = 42
	cf.Generation.MemoCapacity = 64
	cf.Tokens.PadID = 0
	cf.Tokens.BosID = 1
	cf.Tokens.EosID = 2

	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c := &Config{
		Checkpoint:    cf.Model.Checkpoint,
		TokenizerPath: cf.Model.Tokenizer,
		MaxBatchSize:  cf.Generation.MaxBatchSize,
		MaxNewTokens:  cf.Generation.MaxNewTokens,
		MaxSrcLen:     cf.Generation.MaxSrcLen,
		Seed:          cf.Generation.Seed,
		MemoCapacity:  cf.Generation.MemoCapacity,
		PadID:         cf.Tokens.PadID,
		BosID:         cf.Tokens.BosID,
		EosID:         cf.Tokens.EosID,
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}
