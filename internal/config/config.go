package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Directus  DirectusConfig
	Keycloak  KeycloakConfig
	CPE       CPEConfig       `mapstructure:"cpe"`
	Content   ContentConfig   `mapstructure:"content"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志，由命令行设置
	ConfigPath   string `mapstructure:"-"`
	ForceMigrate bool   `mapstructure:"-"`
	MigrateOnly  bool   `mapstructure:"-"`
}

type ServerConfig struct {
	Port string
	Mode string
	// RandomSeed 为0时使用当前时间作为种子
	RandomSeed int64 `mapstructure:"random_seed"`
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	Charset     string
	ParseTime   bool `mapstructure:"parse_time"`
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type DirectusConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type KeycloakConfig struct {
	URL   string `mapstructure:"url"`
	Realm string `mapstructure:"realm"`
}

type CPEConfig struct {
	URL      string        `mapstructure:"url"`
	APIKey   string        `mapstructure:"api_key"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// SectionExtra 复合内容块中附带的列表集合
type SectionExtra struct {
	Collection string   `mapstructure:"collection"`
	Sort       []string `mapstructure:"sort"`
}

type SectionConfig struct {
	Collection string                  `mapstructure:"collection"`
	Extras     map[string]SectionExtra `mapstructure:"extras"`
}

type ContentConfig struct {
	Sections map[string]SectionConfig `mapstructure:"sections"`
}

// SectionKey 复合内容块里 singleton 本身的键名，不能再用作 extra 名称
const SectionKey = "section"

func ValidateSections(sections map[string]SectionConfig) error {
	for name, s := range sections {
		if s.Collection == "" {
			return fmt.Errorf("content.sections.%s: collection is required", name)
		}
		if _, ok := s.Extras[SectionKey]; ok {
			return fmt.Errorf("content.sections.%s: extra name %q is reserved", name, SectionKey)
		}
	}
	return nil
}

type NotifierConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	Collections []string      `mapstructure:"collections"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.port", 3306)
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parse_time", true)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("directus.timeout", 10*time.Second)
	v.SetDefault("cpe.cache_ttl", 24*time.Hour)

	v.SetDefault("notifier.enabled", true)
	v.SetDefault("notifier.interval", 30*time.Second)
	v.SetDefault("notifier.collections", []string{
		"results_text", "hero_insights", "level_insights", "category_summaries",
		"category_insights", "trails", "ctas", "courses", "questions", "categories",
	})

	v.SetDefault("rate_limit.max_requests", 600)
	v.SetDefault("rate_limit.window_minutes", 1)
}

func bindEnv(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	// Database
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Directus
	v.BindEnv("directus.url", "DIRECTUS_URL")
	v.BindEnv("directus.token", "DIRECTUS_TOKEN")

	// Keycloak / CPE
	v.BindEnv("keycloak.url", "KEYCLOAK_URL")
	v.BindEnv("keycloak.realm", "KEYCLOAK_REALM")
	v.BindEnv("cpe.url", "CPE_URL")
	v.BindEnv("cpe.api_key", "CPE_API_KEY")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("MATURITY")
	v.AutomaticEnv()

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if len(cfg.Content.Sections) == 0 {
		cfg.Content.Sections = DefaultSections()
	}
	if err := ValidateSections(cfg.Content.Sections); err != nil {
		return nil, err
	}

	if cfg.Server.Mode == "release" {
		if cfg.Directus.URL == "" || cfg.Directus.Token == "" {
			return nil, fmt.Errorf("directus url and token are required in release mode")
		}
	}

	return &cfg, nil
}

// DefaultSections 未在配置文件中声明 content.sections 时使用
func DefaultSections() map[string]SectionConfig {
	return map[string]SectionConfig{
		"home": {
			Collection: "home_section",
			Extras: map[string]SectionExtra{
				"benefits": {Collection: "benefits", Sort: []string{"sort"}},
				"steps":    {Collection: "steps", Sort: []string{"sort"}},
			},
		},
		"faq": {
			Collection: "faq_section",
			Extras: map[string]SectionExtra{
				"items": {Collection: "faq_items", Sort: []string{"sort"}},
			},
		},
		"quiz_intro": {
			Collection: "quiz_intro",
			Extras:     map[string]SectionExtra{},
		},
	}
}
