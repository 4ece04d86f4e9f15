package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Data     DataConfig     `mapstructure:"data"`
	Database DatabaseConfig `mapstructure:"database"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Profile  ProfileConfig  `mapstructure:"profile"`
	Chat     ChatConfig     `mapstructure:"chat"`
}

type TelegramConfig struct {
	Token    string  `mapstructure:"token"`
	AdminIDs []int64 `mapstructure:"admin_ids"`
}

type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	UseFiles bool   `mapstructure:"use_files"`
}

type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type MemoryConfig struct {
	MaxEntries   int    `mapstructure:"max_entries"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

type FetchConfig struct {
	ArxivBaseURL   string  `mapstructure:"arxiv_base_url"`
	SearchMaxHits  int     `mapstructure:"search_max_hits"`
	CrawlMaxChars  int     `mapstructure:"crawl_max_chars"`
	RequestsPerSec float64 `mapstructure:"requests_per_sec"`
}

type ProfileConfig struct {
	AnalysisInterval time.Duration `mapstructure:"analysis_interval"`
}

type ChatConfig struct {
	ChunkSize      int `mapstructure:"chunk_size"`
	HistoryDefault int `mapstructure:"history_default"`
}

const defaultSystemPrompt = `You are a helpful learning assistant. Be concise, accurate and encouraging.
When answering questions about papers, search results or web pages, ground your
answer in the provided content and say so when the content does not cover the question.`

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("data.dir", "data")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_files", true)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("openai.timeout", "60s")
	v.SetDefault("memory.max_entries", 50)
	v.SetDefault("memory.system_prompt", defaultSystemPrompt)
	v.SetDefault("fetch.arxiv_base_url", "http://export.arxiv.org/api/query")
	v.SetDefault("fetch.search_max_hits", 5)
	v.SetDefault("fetch.crawl_max_chars", 15000)
	v.SetDefault("fetch.requests_per_sec", 1)
	v.SetDefault("profile.analysis_interval", "30m")
	v.SetDefault("chat.chunk_size", 2000)
	v.SetDefault("chat.history_default", 1000)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		dbConfig.UseFiles = false
		config.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if baseURL := v.GetString("OPENAI_BASE_URL"); baseURL != "" {
		config.OpenAI.BaseURL = baseURL
	}

	if dataDir := v.GetString("DATA_DIR"); dataDir != "" {
		config.Data.Dir = dataDir
	}

	return &config, nil
}
