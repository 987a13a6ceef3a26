package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type DistributorConfig struct {
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type StorefrontConfig struct {
	ShopURL     string `yaml:"shop_url"`
	AccessToken string `yaml:"access_token"`
	LocationID  int64  `yaml:"location_id"`
	ApiVersion  string `yaml:"api_version"`
}

type MappingConfig struct {
	File     string          `yaml:"file"`
	Postgres *PostgresConfig `yaml:"postgres"`
}

type EmailConfig struct {
	ApiKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	ToEmail   string `yaml:"to_email"`
}

type LogsConfig struct {
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

type MetricsConfig struct {
	PushURL string `yaml:"push_url"`
	Job     string `yaml:"job"`
}

type AppConfig struct {
	Distributor DistributorConfig `yaml:"distributor"`
	Storefront  StorefrontConfig  `yaml:"storefront"`
	Mapping     MappingConfig     `yaml:"mapping"`
	Email       EmailConfig       `yaml:"email"`
	Logs        LogsConfig        `yaml:"logs"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

func LoadConfig(filename string) (*AppConfig, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	config := &AppConfig{}
	if err := decoder.Decode(config); err != nil {
		return nil, err
	}
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Storefront.ApiVersion == "" {
		c.Storefront.ApiVersion = "2023-04"
	}
	if c.Logs.Dir == "" {
		c.Logs.Dir = "logs"
	}
	if c.Logs.RetentionDays == 0 {
		c.Logs.RetentionDays = 60
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = "stocksync"
	}
	c.Distributor.Username = getEnv("DISTRIBUTOR_USERNAME", c.Distributor.Username)
	c.Distributor.Password = getEnv("DISTRIBUTOR_PASSWORD", c.Distributor.Password)
	c.Storefront.AccessToken = getEnv("STOREFRONT_ACCESS_TOKEN", c.Storefront.AccessToken)
	c.Email.ApiKey = getEnv("SENDGRID_API_KEY", c.Email.ApiKey)
}

func (c *AppConfig) validate() error {
	if c.Distributor.BaseURL == "" {
		return fmt.Errorf("config: distributor base_url is required")
	}
	if c.Storefront.ShopURL == "" {
		return fmt.Errorf("config: storefront shop_url is required")
	}
	if c.Mapping.File == "" && c.Mapping.Postgres == nil {
		return fmt.Errorf("config: mapping needs either a file or a postgres source")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
