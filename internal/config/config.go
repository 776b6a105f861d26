package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/DAMG7250-Team1/reportgen/internal/sources"
	"github.com/DAMG7250-Team1/reportgen/internal/synth"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Inference
	LLMProvider     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	EmbeddingModel  string
	AnthropicAPIKey string
	AnthropicModel  string

	// Sources
	TavilyAPIKey      string
	TavilyMaxResults  int
	PostgresDSN       string
	LiteratureDir     string
	LiteratureMaxDocs int

	// Compression
	ChunkWords        int
	RankTopK          int
	RankFallback      bool
	SourceBudgetWords int
	SummaryMaxDepth   int
	Compress          bool

	// Rate limiting
	RetryCount         int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	MaxConcurrentCalls int

	// Synthesis
	SynthStrategy string
	ReportTimeout time.Duration

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Job state
	JobTTL time.Duration

	// Layout
	LayoutPath string
	Layout     Layout
}

// Layout is the optional YAML file describing report sections and the
// statistics queries.
type Layout struct {
	Sections     []synth.SectionSpec  `yaml:"sections"`
	StatsQueries []sources.StatsQuery `yaml:"stats_queries"`
}

// DefaultLayout is used when no layout file is configured.
func DefaultLayout() Layout {
	return Layout{Sections: synth.DefaultSections(), StatsQueries: sources.DefaultStatsQueries()}
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory if one exists.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8000"),

		APIKey: os.Getenv("REPORTGEN_API_KEY"),

		LLMProvider:     strings.ToLower(envOr("LLM_PROVIDER", ProviderOpenAI)),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:     envOr("OPENAI_MODEL", "gpt-4o-mini"),
		EmbeddingModel:  envOr("EMBEDDING_MODEL", "text-embedding-3-small"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),

		TavilyAPIKey:      os.Getenv("TAVILY_API_KEY"),
		TavilyMaxResults:  envInt("TAVILY_MAX_RESULTS", 10),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		LiteratureDir:     os.Getenv("LITERATURE_DIR"),
		LiteratureMaxDocs: envInt("LITERATURE_MAX_DOCS", 3),

		ChunkWords:        envInt("CHUNK_WORDS", 300),
		RankTopK:          envInt("RANK_TOP_K", 8),
		RankFallback:      envBool("RANK_FALLBACK", false),
		SourceBudgetWords: envInt("SOURCE_BUDGET_WORDS", 1200),
		SummaryMaxDepth:   envInt("SUMMARY_MAX_DEPTH", 3),
		Compress:          envBool("COMPRESS", true),

		RetryCount:         envInt("RETRY_COUNT", 5),
		RetryBaseDelay:     envDuration("RETRY_BASE_DELAY", 1*time.Second),
		RetryMaxDelay:      envDuration("RETRY_MAX_DELAY", 60*time.Second),
		MaxConcurrentCalls: envInt("MAX_CONCURRENT_CALLS", 4),

		SynthStrategy: envOr("SYNTH_STRATEGY", synth.StrategyPerSection),
		ReportTimeout: envDuration("REPORT_TIMEOUT", 10*time.Minute),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 20),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		LayoutPath: os.Getenv("REPORT_CONFIG"),
	}

	if cfg.TavilyMaxResults <= 0 {
		cfg.TavilyMaxResults = 10
	}
	if cfg.LiteratureMaxDocs <= 0 {
		cfg.LiteratureMaxDocs = 3
	}
	if cfg.ChunkWords <= 0 {
		cfg.ChunkWords = 300
	}
	if cfg.SourceBudgetWords <= 0 {
		cfg.SourceBudgetWords = 1200
	}
	if cfg.SummaryMaxDepth < 0 {
		cfg.SummaryMaxDepth = 3
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 5
	}
	if cfg.MaxConcurrentCalls <= 0 {
		cfg.MaxConcurrentCalls = 4
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 20
	}
	if cfg.ReportTimeout <= 0 {
		cfg.ReportTimeout = 10 * time.Minute
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	layout, err := LoadLayout(cfg.LayoutPath)
	if err != nil {
		return cfg, err
	}
	cfg.Layout = layout
	return cfg, nil
}

// LoadLayout reads the layout file at path. An empty path or a missing file
// yields DefaultLayout; omitted lists fall back to their defaults.
func LoadLayout(path string) (Layout, error) {
	if path == "" {
		return DefaultLayout(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultLayout(), nil
		}
		return Layout{}, fmt.Errorf("read layout: %w", err)
	}
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("parse layout %s: %w", path, err)
	}
	if len(l.Sections) == 0 {
		l.Sections = synth.DefaultSections()
	}
	if len(l.StatsQueries) == 0 {
		l.StatsQueries = sources.DefaultStatsQueries()
	}
	for i, s := range l.Sections {
		if strings.TrimSpace(s.Name) == "" {
			return Layout{}, fmt.Errorf("layout section %d has no name", i+1)
		}
		if s.TokenBudget <= 0 {
			return Layout{}, fmt.Errorf("layout section %q needs a positive token_budget", s.Name)
		}
	}
	return l, nil
}

func (c Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required")
		}
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for embeddings")
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderAnthropic, c.LLMProvider)
	}
	switch c.SynthStrategy {
	case synth.StrategyPerSection, synth.StrategySinglePrompt:
	default:
		return fmt.Errorf("SYNTH_STRATEGY must be %q or %q, got %q", synth.StrategyPerSection, synth.StrategySinglePrompt, c.SynthStrategy)
	}
	if c.PostgresDSN == "" && c.LiteratureDir == "" && c.TavilyAPIKey == "" {
		return fmt.Errorf("at least one of POSTGRES_DSN, LITERATURE_DIR or TAVILY_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
