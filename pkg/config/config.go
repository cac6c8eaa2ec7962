// Package config defines the runtime configuration surface: server binding,
// LLM providers, checkpoint storage, vector memory and tool endpoints.
package config

import (
	"fmt"

	"github.com/teamh-ai/teamh/pkg/observability"
)

// Config is the top-level configuration document.
type Config struct {
	Server        ServerConfig          `yaml:"server,omitempty"`
	LLM           LLMConfig             `yaml:"llm,omitempty"`
	RouterLLM     *LLMConfig            `yaml:"router_llm,omitempty"`
	Embedder      EmbedderConfig        `yaml:"embedder,omitempty"`
	Checkpoint    CheckpointConfig      `yaml:"checkpoint,omitempty"`
	Memory        MemoryConfig          `yaml:"memory,omitempty"`
	Tools         ToolsConfig           `yaml:"tools,omitempty"`
	Team          TeamConfig            `yaml:"team,omitempty"`
	Observability *observability.Config `yaml:"observability,omitempty"`
	Logging       LoggingConfig         `yaml:"logging,omitempty"`
}

func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.LLM.SetDefaults()
	if c.RouterLLM != nil {
		c.RouterLLM.SetDefaults()
	}
	c.Embedder.SetDefaults()
	c.Checkpoint.SetDefaults()
	c.Memory.SetDefaults()
	c.Tools.SetDefaults()
	c.Team.SetDefaults()
	if c.Observability != nil {
		c.Observability.SetDefaults()
	}
	c.Logging.SetDefaults()
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if c.RouterLLM != nil {
		if err := c.RouterLLM.Validate(); err != nil {
			return fmt.Errorf("router_llm: %w", err)
		}
	}
	if err := c.Checkpoint.Validate(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := c.Memory.Validate(); err != nil {
		return fmt.Errorf("memory: %w", err)
	}
	if err := c.Team.Validate(); err != nil {
		return fmt.Errorf("team: %w", err)
	}
	return nil
}

// RouterLLMConfig returns the router model config, falling back to the
// primary model when no override is set.
func (c *Config) RouterLLMConfig() LLMConfig {
	if c.RouterLLM != nil {
		return *c.RouterLLM
	}
	return c.LLM
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`

	// ShutdownTimeout in seconds for graceful drain.
	ShutdownTimeout int `yaml:"shutdown_timeout,omitempty"`

	CORS *CORSConfig `yaml:"cors,omitempty"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	AllowedMethods []string `yaml:"allowed_methods,omitempty"`
	AllowedHeaders []string `yaml:"allowed_headers,omitempty"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 15
	}
	if c.CORS == nil {
		c.CORS = &CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		}
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Address returns the HTTP listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LLMConfig configures an OpenAI-compatible chat model.
// Ollama and vLLM are reached through BaseURL.
type LLMConfig struct {
	Provider    string  `yaml:"provider,omitempty"`
	Model       string  `yaml:"model,omitempty"`
	APIKey      string  `yaml:"api_key,omitempty"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`

	// Timeout in seconds for a single request.
	Timeout    int `yaml:"timeout,omitempty"`
	MaxRetries int `yaml:"max_retries,omitempty"`
}

func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 120
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case "openai", "ollama", "vllm":
	default:
		return fmt.Errorf("unknown provider %q (valid: openai, ollama, vllm)", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %f out of range [0, 2]", c.Temperature)
	}
	return nil
}

// EmbedderConfig configures the embeddings model used by vector memory.
type EmbedderConfig struct {
	Model      string `yaml:"model,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`
	Dimensions int    `yaml:"dimensions,omitempty"`
}

func (c *EmbedderConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Dimensions == 0 {
		c.Dimensions = 1536
	}
}

// CheckpointBackend identifies a checkpoint storage backend.
type CheckpointBackend string

const (
	CheckpointBackendMemory CheckpointBackend = "memory"
	CheckpointBackendSQL    CheckpointBackend = "sql"
)

// CheckpointConfig configures thread state persistence.
type CheckpointConfig struct {
	Backend CheckpointBackend `yaml:"backend,omitempty"`

	// Driver is the database/sql driver: postgres, sqlite or mysql.
	Driver string `yaml:"driver,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`

	MaxConns int `yaml:"max_conns,omitempty"`
	MaxIdle  int `yaml:"max_idle,omitempty"`

	// HistoryLimit caps retained checkpoints per thread. 0 keeps all.
	HistoryLimit int `yaml:"history_limit,omitempty"`
}

func (c *CheckpointConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = CheckpointBackendMemory
	}
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.MaxConns == 0 {
		c.MaxConns = 25
	}
	if c.MaxIdle == 0 {
		c.MaxIdle = 5
	}
}

func (c *CheckpointConfig) Validate() error {
	switch c.Backend {
	case CheckpointBackendMemory, CheckpointBackendSQL:
	default:
		return fmt.Errorf("invalid backend %q (valid: memory, sql)", c.Backend)
	}
	if c.Backend == CheckpointBackendSQL {
		switch c.Driver {
		case "postgres", "sqlite", "mysql":
		default:
			return fmt.Errorf("invalid driver %q (valid: postgres, sqlite, mysql)", c.Driver)
		}
		if c.DSN == "" {
			return fmt.Errorf("dsn is required when backend is sql")
		}
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must be non-negative")
	}
	return nil
}

// IsSQL reports whether checkpoints persist to a SQL database.
func (c *CheckpointConfig) IsSQL() bool {
	return c.Backend == CheckpointBackendSQL
}

// MemoryConfig configures long-term vector memory for the memory manager.
type MemoryConfig struct {
	// Provider: "chromem" (embedded, default) or "qdrant".
	Provider string `yaml:"provider,omitempty"`

	Collection string `yaml:"collection,omitempty"`
	TopK       int    `yaml:"top_k,omitempty"`

	Qdrant  *QdrantConfig  `yaml:"qdrant,omitempty"`
	Chromem *ChromemConfig `yaml:"chromem,omitempty"`
}

type QdrantConfig struct {
	Host   string `yaml:"host,omitempty"`
	Port   int    `yaml:"port,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
	UseTLS bool   `yaml:"use_tls,omitempty"`
}

type ChromemConfig struct {
	PersistPath string `yaml:"persist_path,omitempty"`
	Compress    bool   `yaml:"compress,omitempty"`
}

func (c *MemoryConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "chromem"
	}
	if c.Collection == "" {
		c.Collection = "teamh_memories"
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.Provider == "chromem" && c.Chromem == nil {
		c.Chromem = &ChromemConfig{PersistPath: ".teamh/vectors"}
	}
	if c.Provider == "qdrant" && c.Qdrant == nil {
		c.Qdrant = &QdrantConfig{}
	}
	if c.Qdrant != nil {
		if c.Qdrant.Host == "" {
			c.Qdrant.Host = "localhost"
		}
		if c.Qdrant.Port == 0 {
			c.Qdrant.Port = 6334
		}
	}
}

func (c *MemoryConfig) Validate() error {
	switch c.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("unknown provider %q (valid: chromem, qdrant)", c.Provider)
	}
	if c.TopK < 0 {
		return fmt.Errorf("top_k must be non-negative")
	}
	return nil
}

// ToolsConfig holds endpoints for the outbound tool integrations.
type ToolsConfig struct {
	Home     HomeAssistantConfig `yaml:"home,omitempty"`
	Search   SearchConfig        `yaml:"search,omitempty"`
	Calendar CalendarConfig      `yaml:"calendar,omitempty"`
}

// HomeAssistantConfig points at a Home Assistant style REST API.
type HomeAssistantConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`
	Token   string `yaml:"token,omitempty"`
	Timeout int    `yaml:"timeout,omitempty"`
}

// SearchConfig points at a web search REST API.
type SearchConfig struct {
	BaseURL    string `yaml:"base_url,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	MaxResults int    `yaml:"max_results,omitempty"`
}

// CalendarConfig points at a calendar REST API.
type CalendarConfig struct {
	BaseURL    string `yaml:"base_url,omitempty"`
	Token      string `yaml:"token,omitempty"`
	CalendarID string `yaml:"calendar_id,omitempty"`
}

func (c *ToolsConfig) SetDefaults() {
	if c.Home.BaseURL == "" {
		c.Home.BaseURL = "http://localhost:8123"
	}
	if c.Home.Timeout == 0 {
		c.Home.Timeout = 10
	}
	if c.Search.BaseURL == "" {
		c.Search.BaseURL = "https://api.tavily.com"
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = 5
	}
	if c.Calendar.CalendarID == "" {
		c.Calendar.CalendarID = "primary"
	}
}

// TeamConfig configures the agent team and graph bounds.
type TeamConfig struct {
	// Managers enables a subset of the team. Default: all of i, m, s, t.
	Managers []string `yaml:"managers,omitempty"`

	// MaxHandoffs caps delegations within a single run.
	MaxHandoffs int `yaml:"max_handoffs,omitempty"`

	// RecursionLimit caps LLM/tool iterations inside one agent turn.
	RecursionLimit int `yaml:"recursion_limit,omitempty"`

	// RecursionLimits overrides the limit per manager id.
	RecursionLimits map[string]int `yaml:"recursion_limits,omitempty"`

	// MaxContextTokens trims the oldest conversation history before each
	// model call. 0 disables trimming.
	MaxContextTokens int `yaml:"max_context_tokens,omitempty"`

	// DefaultUserID is used when a request omits user_id.
	DefaultUserID string `yaml:"default_user_id,omitempty"`
}

func (c *TeamConfig) SetDefaults() {
	if len(c.Managers) == 0 {
		c.Managers = []string{"i", "m", "s", "t"}
	}
	if c.MaxHandoffs == 0 {
		c.MaxHandoffs = 5
	}
	if c.RecursionLimit == 0 {
		c.RecursionLimit = 25
	}
	if c.RecursionLimits == nil {
		c.RecursionLimits = map[string]int{"m": 20}
	}
	if c.MaxContextTokens == 0 {
		c.MaxContextTokens = 24000
	}
	if c.DefaultUserID == "" {
		c.DefaultUserID = "default_user"
	}
}

func (c *TeamConfig) Validate() error {
	known := map[string]bool{"i": true, "m": true, "s": true, "t": true}
	for _, m := range c.Managers {
		if !known[m] {
			return fmt.Errorf("unknown manager %q (valid: i, m, s, t)", m)
		}
	}
	if c.MaxHandoffs < 1 {
		return fmt.Errorf("max_handoffs must be at least 1")
	}
	if c.RecursionLimit < 1 {
		return fmt.Errorf("recursion_limit must be at least 1")
	}
	return nil
}

// RecursionLimitFor returns the iteration cap for a manager.
func (c *TeamConfig) RecursionLimitFor(manager string) int {
	if limit, ok := c.RecursionLimits[manager]; ok && limit > 0 {
		return limit
	}
	return c.RecursionLimit
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
	File   string `yaml:"file,omitempty"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}
