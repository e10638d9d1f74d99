package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the triage service
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Mail      MailConfig      `mapstructure:"mail"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Delivery  DeliveryConfig  `mapstructure:"delivery"`
	Triage    TriageConfig    `mapstructure:"triage"`
	Routing   RoutingConfig   `mapstructure:"routing"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// MailConfig holds mailbox access configuration
type MailConfig struct {
	Accounts     []string `mapstructure:"accounts"`
	UseIMAP      bool     `mapstructure:"use_imap"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RefreshToken string   `mapstructure:"refresh_token"`
	IMAPHost     string   `mapstructure:"imap_host"`
	IMAPPort     int      `mapstructure:"imap_port"`
	IMAPUser     string   `mapstructure:"imap_user"`
	IMAPPassword string   `mapstructure:"imap_password"`
}

// OpenAIConfig holds the classification service endpoints. The backup
// endpoint is tried whenever the primary call fails.
type OpenAIConfig struct {
	APIKey        string `mapstructure:"api_key"`
	BaseURL       string `mapstructure:"base_url"`
	BackupAPIKey  string `mapstructure:"backup_api_key"`
	BackupBaseURL string `mapstructure:"backup_base_url"`
	Model         string `mapstructure:"model"`
	MiniModel     string `mapstructure:"mini_model"`
}

// SchedulerConfig holds the poll loop configuration
type SchedulerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchPause   time.Duration `mapstructure:"batch_pause"`
	SweepEvery   int           `mapstructure:"sweep_every"`
}

// DeliveryConfig holds retry/backoff parameters for forward and mark-read
type DeliveryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
}

// TriageConfig holds classification tuning values
type TriageConfig struct {
	MaxTextLen  int      `mapstructure:"max_text_len"`
	Priority    []string `mapstructure:"priority"`
	AutoRespond bool     `mapstructure:"auto_respond"`
}

// RoutingConfig maps final categories to department addresses
type RoutingConfig struct {
	Routes map[string]string `mapstructure:"routes"`
}

// LoadConfig loads configuration from a yaml file with environment
// variable overrides
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("mail.use_imap", false)
	viper.SetDefault("mail.imap_host", "imap.gmail.com")
	viper.SetDefault("mail.imap_port", 993)

	viper.SetDefault("openai.model", "gpt-4o")
	viper.SetDefault("openai.mini_model", "gpt-4o-mini")

	viper.SetDefault("scheduler.poll_interval", "30s")
	viper.SetDefault("scheduler.batch_size", 3)
	viper.SetDefault("scheduler.batch_pause", "1s")
	viper.SetDefault("scheduler.sweep_every", 5)

	viper.SetDefault("delivery.max_attempts", 3)
	viper.SetDefault("delivery.backoff_base", "2s")

	viper.SetDefault("triage.max_text_len", 300000)
	viper.SetDefault("triage.auto_respond", false)
	viper.SetDefault("triage.priority", DefaultPriority)
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	viper.BindEnv("mail.accounts", "MAIL_ACCOUNTS")
	viper.BindEnv("mail.use_imap", "MAIL_USE_IMAP")
	viper.BindEnv("mail.client_id", "MAIL_CLIENT_ID")
	viper.BindEnv("mail.client_secret", "MAIL_CLIENT_SECRET")
	viper.BindEnv("mail.refresh_token", "MAIL_REFRESH_TOKEN")
	viper.BindEnv("mail.imap_host", "MAIL_IMAP_HOST")
	viper.BindEnv("mail.imap_port", "MAIL_IMAP_PORT")
	viper.BindEnv("mail.imap_user", "MAIL_IMAP_USER")
	viper.BindEnv("mail.imap_password", "MAIL_IMAP_PASSWORD")

	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	viper.BindEnv("openai.backup_api_key", "OPENAI_BACKUP_API_KEY")
	viper.BindEnv("openai.backup_base_url", "OPENAI_BACKUP_BASE_URL")
	viper.BindEnv("openai.model", "OPENAI_MODEL")
	viper.BindEnv("openai.mini_model", "OPENAI_MINI_MODEL")

	viper.BindEnv("scheduler.poll_interval", "SCHEDULER_POLL_INTERVAL")
	viper.BindEnv("scheduler.batch_size", "SCHEDULER_BATCH_SIZE")
	viper.BindEnv("scheduler.sweep_every", "SCHEDULER_SWEEP_EVERY")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	if len(c.Mail.Accounts) == 0 {
		return fmt.Errorf("at least one mail account is required")
	}

	if c.Mail.UseIMAP {
		if c.Mail.IMAPUser == "" || c.Mail.IMAPPassword == "" {
			return fmt.Errorf("IMAP credentials are required when using IMAP")
		}
	}
	if c.Mail.ClientID == "" || c.Mail.ClientSecret == "" || c.Mail.RefreshToken == "" {
		return fmt.Errorf("mail OAuth2 credentials are required")
	}

	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai api key is required")
	}

	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler poll interval must be greater than 0")
	}
	if c.Scheduler.BatchSize <= 0 {
		return fmt.Errorf("scheduler batch size must be greater than 0")
	}

	if c.Delivery.MaxAttempts <= 0 {
		return fmt.Errorf("delivery max attempts must be greater than 0")
	}

	seen := make(map[string]bool, len(c.Triage.Priority))
	for _, cat := range c.Triage.Priority {
		if seen[cat] {
			return fmt.Errorf("duplicate category %q in priority list", cat)
		}
		seen[cat] = true
	}

	return nil
}

// DefaultPriority is the business priority ordering over categories,
// highest first. It is a deployment artifact: the resolver requires the
// list to be total over the configured routing table.
var DefaultPriority = []string{
	"assist",
	"bad service/experience",
	"vehicle tracking",
	"retentions",
	"amendments",
	"claims",
	"refund request",
	"online/app",
	"request for quote",
	"document request",
	"debit order switch",
	"other",
	"previous insurance checks/queries",
}
