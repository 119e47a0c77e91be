package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type InvitationConfig struct {
	TTLDays      int `mapstructure:"ttl_days"`
	InitialQuota int `mapstructure:"initial_quota"`
}

// TTL is the fixed expiration horizon applied at issuance.
func (c InvitationConfig) TTL() time.Duration {
	return time.Duration(c.TTLDays) * 24 * time.Hour
}

type EmailConfig struct {
	From              string `mapstructure:"from"`
	SMTPHost          string `mapstructure:"smtp_host"`
	SMTPPort          int    `mapstructure:"smtp_port"`
	Username          string `mapstructure:"username"`
	Password          string `mapstructure:"password"`
	AcceptURLTemplate string `mapstructure:"accept_url_template"`
	SubjectTemplate   string `mapstructure:"subject_template"`
	MessageTemplate   string `mapstructure:"message_template"`
}

type EventsConfig struct {
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

type TemporalConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	HostPort    string `mapstructure:"host_port"`
	BatchSender string `mapstructure:"batch_sender"`
	BatchSize   int    `mapstructure:"batch_size"`
	BatchCron   string `mapstructure:"batch_cron"`
}

type Config struct {
	DatabaseURL string           `mapstructure:"database_url"`
	ServerPort  string           `mapstructure:"server_port"`
	JWTSecret   string           `mapstructure:"jwt_secret"`
	Invitations InvitationConfig `mapstructure:"invitations"`
	Email       EmailConfig      `mapstructure:"email"`
	Events      EventsConfig     `mapstructure:"events"`
	Temporal    TemporalConfig   `mapstructure:"temporal"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}
	if config.JWTSecret == "" {
		log.Fatal("JWT secret must be set in the config file")
	}

	if config.Invitations.TTLDays == 0 {
		config.Invitations.TTLDays = 14
	}
	if config.Invitations.InitialQuota == 0 {
		config.Invitations.InitialQuota = 10
	}

	if config.Email.SMTPPort == 0 {
		config.Email.SMTPPort = 587
	}
	if config.Email.AcceptURLTemplate == "" {
		config.Email.AcceptURLTemplate = "https://app.invitation.dev/invitations/accept?key=%s"
	}

	if config.Temporal.BatchSize == 0 {
		config.Temporal.BatchSize = 50
	}
	if config.Temporal.BatchCron == "" {
		// Daily backlog drain.
		config.Temporal.BatchCron = "0 6 * * *"
	}

	return &config
}
