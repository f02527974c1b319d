package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	YouTube    YouTubeConfig    `yaml:"youtube"`
	Transcript TranscriptConfig `yaml:"transcript"`
	AI         AIConfig         `yaml:"ai"`
	Notion     NotionConfig     `yaml:"notion"`
	Slack      SlackConfig      `yaml:"slack"`
	Cooldown   CooldownConfig   `yaml:"cooldown"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Schedule   string           `yaml:"schedule"`
}

type YouTubeConfig struct {
	ClientID       string `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret   string `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	TokenFile      string `yaml:"token_file"`
	InputPlaylist  string `yaml:"input_playlist" env:"YOUTUBE_INPUT_PLAYLIST"`
	OutputPlaylist string `yaml:"output_playlist" env:"YOUTUBE_OUTPUT_PLAYLIST"`
}

type TranscriptConfig struct {
	APIKey  string `yaml:"api_key" env:"SUPADATA_API_KEY"`
	BaseURL string `yaml:"base_url"`
}

type AIConfig struct {
	GeminiAPIKey string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	Model        string `yaml:"model"`
}

type NotionConfig struct {
	APIKey     string `yaml:"api_key" env:"NOTION_API_KEY"`
	DatabaseID string `yaml:"database_id" env:"NOTION_DATABASE_ID"`
}

type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" env:"SLACK_WEBHOOK_URL"`
}

type CooldownConfig struct {
	StatePath string `yaml:"state_path"`
}

type MonitoringConfig struct {
	HealthPort int `yaml:"health_port"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnv fills secrets and identifiers from the environment when the yaml
// file leaves them empty. Secrets normally live in .env, not in config.yaml.
func (c *Config) applyEnv() {
	if c.YouTube.ClientID == "" {
		c.YouTube.ClientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if c.YouTube.ClientSecret == "" {
		c.YouTube.ClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	if c.YouTube.InputPlaylist == "" {
		c.YouTube.InputPlaylist = os.Getenv("YOUTUBE_INPUT_PLAYLIST")
	}
	if c.YouTube.OutputPlaylist == "" {
		c.YouTube.OutputPlaylist = os.Getenv("YOUTUBE_OUTPUT_PLAYLIST")
	}
	if c.Transcript.APIKey == "" {
		c.Transcript.APIKey = os.Getenv("SUPADATA_API_KEY")
	}
	if c.AI.GeminiAPIKey == "" {
		c.AI.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Notion.APIKey == "" {
		c.Notion.APIKey = os.Getenv("NOTION_API_KEY")
	}
	if c.Notion.DatabaseID == "" {
		c.Notion.DatabaseID = os.Getenv("NOTION_DATABASE_ID")
	}
	if c.Slack.WebhookURL == "" {
		c.Slack.WebhookURL = os.Getenv("SLACK_WEBHOOK_URL")
	}
	if c.Monitoring.HealthPort == 0 {
		if port, err := strconv.Atoi(os.Getenv("HEALTH_PORT")); err == nil {
			c.Monitoring.HealthPort = port
		}
	}
}

func (c *Config) applyDefaults() {
	if c.YouTube.TokenFile == "" {
		c.YouTube.TokenFile = "youtube_token.json"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.5-flash"
	}
	if c.Cooldown.StatePath == "" {
		c.Cooldown.StatePath = "data/cooldown_state.json"
	}
	if c.Monitoring.HealthPort == 0 {
		c.Monitoring.HealthPort = 8080
	}
	if c.Schedule == "" {
		c.Schedule = "0 0 */6 * * *" // Every 6 hours
	}
}

func (c *Config) validate() error {
	if c.YouTube.ClientID == "" {
		return fmt.Errorf("YouTube client ID is required (set GOOGLE_CLIENT_ID or youtube.client_id)")
	}
	if c.YouTube.ClientSecret == "" {
		return fmt.Errorf("YouTube client secret is required (set GOOGLE_CLIENT_SECRET or youtube.client_secret)")
	}
	if c.YouTube.InputPlaylist == "" {
		return fmt.Errorf("input playlist is required (set YOUTUBE_INPUT_PLAYLIST or youtube.input_playlist)")
	}
	if c.YouTube.OutputPlaylist == "" {
		return fmt.Errorf("output playlist is required (set YOUTUBE_OUTPUT_PLAYLIST or youtube.output_playlist)")
	}
	if c.Transcript.APIKey == "" {
		return fmt.Errorf("Supadata API key is required (set SUPADATA_API_KEY or transcript.api_key)")
	}
	if c.AI.GeminiAPIKey == "" {
		return fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY or ai.gemini_api_key)")
	}
	if c.Notion.APIKey == "" {
		return fmt.Errorf("Notion API key is required (set NOTION_API_KEY or notion.api_key)")
	}
	if c.Notion.DatabaseID == "" {
		return fmt.Errorf("Notion database ID is required (set NOTION_DATABASE_ID or notion.database_id)")
	}
	// Slack is optional: an empty webhook URL disables notifications.
	return nil
}
