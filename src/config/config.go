package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	aws_handler "reportscheduler/src/utils/aws"
)

type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Databases DatabasesConfig `mapstructure:"databases"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	AWS       AWSConfig       `mapstructure:"aws"`
}

type ServiceType string

const (
	API    ServiceType = "API"
	WORKER ServiceType = "WORKER"
)

type ServiceConfig struct {
	Type      ServiceType `mapstructure:"type"`
	Port      string      `mapstructure:"port"`
	JWTSecret string      `mapstructure:"jwtSecret"`
	LogLevel  string      `mapstructure:"logLevel"`
}

type DatabasesConfig struct {
	SQL SQLConfig `mapstructure:"sql"`
}

type SQLConfig struct {
	Host             string `mapstructure:"host"`
	Port             string `mapstructure:"port"`
	Username         string `mapstructure:"username"`
	Password         string `mapstructure:"password"`
	PasswordSecretID string `mapstructure:"passwordSecretId"`
	Database         string `mapstructure:"database"`
	ConnectionString string `mapstructure:"connection_string"`
	MaxConns         int32  `mapstructure:"maxConns"`
	MinConns         int32  `mapstructure:"minConns"`
}

type SMTPConfig struct {
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	From             string `mapstructure:"from"`
	Password         string `mapstructure:"password"`
	PasswordSecretID string `mapstructure:"passwordSecretId"`
}

type SchedulerConfig struct {
	PollSpec            string `mapstructure:"pollSpec"`
	BatchSize           int    `mapstructure:"batchSize"`
	StaleTimeoutMinutes int    `mapstructure:"staleTimeoutMinutes"`
}

// StaleTimeout is the window after which a claim held by a presumed-dead
// worker becomes reclaimable.
func (c SchedulerConfig) StaleTimeout() time.Duration {
	return time.Duration(c.StaleTimeoutMinutes) * time.Minute
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
}

// LoadConfig reads settings/appsettings.yaml, or appsettings.<ENV>.yaml when
// env is non-empty.
func LoadConfig(path, env string) (*Config, error) {
	var cfg Config

	configName := "appsettings"
	if env != "" {
		configName = fmt.Sprintf("appsettings.%s", env)
	}

	viper.AddConfigPath(path)
	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")

	viper.SetDefault("service.port", "8000")
	viper.SetDefault("databases.sql.maxConns", 5)
	viper.SetDefault("databases.sql.minConns", 1)
	viper.SetDefault("scheduler.pollSpec", "@every 1m")
	viper.SetDefault("scheduler.batchSize", 10)
	viper.SetDefault("scheduler.staleTimeoutMinutes", 15)

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ResolveSecrets replaces secret references in the config with values fetched
// from AWS Secrets Manager. A config without secret references is returned
// unchanged and no AWS session is created.
func (c *Config) ResolveSecrets() error {
	if c.Databases.SQL.PasswordSecretID == "" && c.SMTP.PasswordSecretID == "" {
		return nil
	}

	handler, err := aws_handler.NewAWSHandler(c.AWS.Region)
	if err != nil {
		return fmt.Errorf("failed to initialize AWS session: %w", err)
	}

	if c.Databases.SQL.PasswordSecretID != "" {
		secret, err := handler.SecretManager.GetSecretValue(c.Databases.SQL.PasswordSecretID)
		if err != nil {
			return fmt.Errorf("failed to resolve database password secret: %w", err)
		}
		c.Databases.SQL.Password = secret
	}

	if c.SMTP.PasswordSecretID != "" {
		secret, err := handler.SecretManager.GetSecretValue(c.SMTP.PasswordSecretID)
		if err != nil {
			return fmt.Errorf("failed to resolve SMTP password secret: %w", err)
		}
		c.SMTP.Password = secret
	}

	return nil
}
