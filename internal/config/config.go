package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// OllamaConfig holds connection details for an Ollama server.
type OllamaConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// OpenAIConfig holds configuration for an OpenAI-compatible API.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// HashingConfig configures the offline feature-hashing embedder.
type HashingConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string         `yaml:"type"`
	Ollama  *OllamaConfig  `yaml:"ollama,omitempty"`
	OpenAI  *OpenAIConfig  `yaml:"openai,omitempty"`
	Hashing *HashingConfig `yaml:"hashing,omitempty"`

	// CacheSize bounds the query-embedding cache; 0 disables it.
	CacheSize    int     `yaml:"cache_size"`
	CacheTTLSecs int     `yaml:"cache_ttl_secs"`
	RateLimit    float64 `yaml:"rate_limit"`
	RateBurst    int     `yaml:"rate_burst"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// PipelineConfig tunes the batch embedder.
type PipelineConfig struct {
	BatchSize       int `yaml:"batch_size"`
	SubBatchSize    int `yaml:"sub_batch_size"`
	PauseMillis     int `yaml:"pause_ms"`
	ItemTimeoutSecs int `yaml:"item_timeout_secs"`
}

// S3Config locates a bucket and key prefix.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// CheckpointConfig selects where checkpoints live.
type CheckpointConfig struct {
	Backend string    `yaml:"backend"`
	Dir     string    `yaml:"dir"`
	S3      *S3Config `yaml:"s3,omitempty"`
}

// StoreConfig selects where the final store artifact is written.
type StoreConfig struct {
	Backend string    `yaml:"backend"`
	S3      *S3Config `yaml:"s3,omitempty"`
}

// LLMConfig selects and configures the answer generator.
type LLMConfig struct {
	Type         string        `yaml:"type"`
	Model        string        `yaml:"model"`
	Ollama       *OllamaConfig `yaml:"ollama,omitempty"`
	OpenAI       *OpenAIConfig `yaml:"openai,omitempty"`
	MaxSentences int           `yaml:"max_sentences"`
}

// RetrievalConfig configures query-time retrieval.
type RetrievalConfig struct {
	NumResults int `yaml:"num_results"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Store      StoreConfig      `yaml:"store"`
	LLM        LLMConfig        `yaml:"llm"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Log        LogConfig        `yaml:"log"`
}

// PauseDuration returns the pause between sub-batches.
func (p PipelineConfig) PauseDuration() time.Duration {
	return time.Duration(p.PauseMillis) * time.Millisecond
}

// ItemTimeout returns the per-item embedding timeout.
func (p PipelineConfig) ItemTimeout() time.Duration {
	return time.Duration(p.ItemTimeoutSecs) * time.Second
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/textbook-rag/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "textbook-rag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:   EmbedderConfig{Type: "ollama", CacheSize: 256, CacheTTLSecs: 600},
		Chunker:    ChunkerConfig{Type: "recursive", ChunkSize: 1000, ChunkOverlap: 200},
		Pipeline:   PipelineConfig{BatchSize: 8, SubBatchSize: 2, PauseMillis: 100, ItemTimeoutSecs: 120},
		Checkpoint: CheckpointConfig{Backend: "local", Dir: "checkpoints"},
		Store:      StoreConfig{Backend: "local"},
		LLM:        LLMConfig{Type: "ollama", Model: "llama3", MaxSentences: 5},
		Retrieval:  RetrievalConfig{NumResults: 5},
		Log:        LogConfig{Level: "info", Console: true},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	switch cfg.Embedder.Type {
	case "ollama":
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaConfig{}
		}
		applyOllamaDefaults(cfg.Embedder.Ollama, "all-minilm", 180)
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIConfig{}
		}
		applyOpenAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small", 30)
	case "hashing":
		if cfg.Embedder.Hashing == nil {
			cfg.Embedder.Hashing = &HashingConfig{}
		}
		if cfg.Embedder.Hashing.Dimension == 0 {
			cfg.Embedder.Hashing.Dimension = 384
		}
	}

	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "recursive"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}

	if cfg.Pipeline.BatchSize == 0 {
		cfg.Pipeline.BatchSize = 8
	}
	if cfg.Pipeline.SubBatchSize == 0 {
		cfg.Pipeline.SubBatchSize = 2
	}
	if cfg.Pipeline.ItemTimeoutSecs == 0 {
		cfg.Pipeline.ItemTimeoutSecs = 120
	}

	if cfg.Checkpoint.Backend == "" {
		cfg.Checkpoint.Backend = "local"
	}
	if cfg.Checkpoint.Dir == "" {
		cfg.Checkpoint.Dir = "checkpoints"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "local"
	}

	if cfg.LLM.Type == "" {
		cfg.LLM.Type = "ollama"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3"
	}
	switch cfg.LLM.Type {
	case "ollama":
		if cfg.LLM.Ollama == nil {
			cfg.LLM.Ollama = &OllamaConfig{}
		}
		applyOllamaDefaults(cfg.LLM.Ollama, cfg.LLM.Model, 300)
	case "openai":
		if cfg.LLM.OpenAI == nil {
			cfg.LLM.OpenAI = &OpenAIConfig{}
		}
		applyOpenAIDefaults(cfg.LLM.OpenAI, "gpt-4o-mini", 120)
	}

	if cfg.Retrieval.NumResults == 0 {
		cfg.Retrieval.NumResults = 5
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyOllamaDefaults(c *OllamaConfig, model string, timeoutSecs int) {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = timeoutSecs
	}
}

func applyOpenAIDefaults(c *OpenAIConfig, model string, timeoutSecs int) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = timeoutSecs
	}
}
