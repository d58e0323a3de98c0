// Package config loads the scraper configuration from the environment and an
// optional YAML file. Environment variables use the TRAIN_LIST_ prefix and
// override file values.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/aliawhy/train-list/publish"
)

const envPrefix = "TRAIN_LIST"

// ErrRepoURLMissing aborts startup before any network activity happens.
var ErrRepoURLMissing = errors.New("repository URL is not configured")

// DatasetConfig describes one published dataset.
type DatasetConfig struct {
	// Name is the dataset identifier, e.g. "gdcj-train-detail".
	Name string `mapstructure:"name" validate:"required"`

	// Ext selects the blob codec by extension.
	Ext string `mapstructure:"ext" validate:"required,oneof=json json.gz"`

	// RawAppend also appends the day's raw records to a date-partitioned
	// backup branch.
	RawAppend bool `mapstructure:"raw_append"`
}

// Config is the full process configuration.
type Config struct {
	// RepoURL is the HTTPS URL of the storage repository.
	RepoURL string `mapstructure:"repo_url" validate:"required,url"`

	// Token authenticates pushes. Empty means anonymous access.
	Token string `mapstructure:"token"`

	// TokenUser is the username the token is presented under.
	TokenUser string `mapstructure:"token_user"`

	// BaseBranch is the repository's main line.
	BaseBranch string `mapstructure:"base_branch" validate:"required"`

	AuthorName  string `mapstructure:"author_name" validate:"required"`
	AuthorEmail string `mapstructure:"author_email" validate:"required,email"`

	// APIBaseURL is the ticketing API endpoint.
	APIBaseURL string `mapstructure:"api_base_url" validate:"required,url"`

	// DataURLTemplate renders download URLs for version pointers, with
	// {branch} and {file} placeholders.
	DataURLTemplate string `mapstructure:"data_url_template"`

	LogLevel string `mapstructure:"log_level" validate:"required"`

	// MaxAttempts bounds each branch write.
	MaxAttempts int `mapstructure:"max_attempts" validate:"gte=1"`

	// HTTPTimeoutSeconds bounds each API request.
	HTTPTimeoutSeconds int `mapstructure:"http_timeout_seconds" validate:"gte=1"`

	Datasets []DatasetConfig `mapstructure:"datasets" validate:"min=1,dive"`
}

// HTTPTimeout returns the API request timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// PublishDatasets converts the configured datasets into publisher datasets.
func (c *Config) PublishDatasets() []publish.Dataset {
	out := make([]publish.Dataset, 0, len(c.Datasets))
	for _, ds := range c.Datasets {
		out = append(out, publish.Dataset{
			Name:            ds.Name,
			Ext:             ds.Ext,
			BaseBranch:      c.BaseBranch,
			DataURLTemplate: c.DataURLTemplate,
			MaxAttempts:     c.MaxAttempts,
		})
	}
	return out
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults register every key with viper so environment overrides are
	// picked up during Unmarshal.
	v.SetDefault("repo_url", "")
	v.SetDefault("token", "")
	v.SetDefault("token_user", "token")
	v.SetDefault("base_branch", "main")
	v.SetDefault("author_name", "train-list-bot")
	v.SetDefault("author_email", "train-list-bot@users.noreply.github.com")
	v.SetDefault("api_base_url", "https://api.rail.example.com")
	v.SetDefault("data_url_template", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("max_attempts", publish.DefaultMaxAttempts)
	v.SetDefault("http_timeout_seconds", 30)
	v.SetDefault("datasets", []map[string]any{
		{"name": "gdcj-train-detail", "ext": "json.gz"},
	})

	return v
}

// Load reads configuration from the environment and, when filePath is
// non-empty, from a YAML file. A missing repository URL fails before any
// network activity.
func Load(filePath string) (*Config, error) {
	v := newViper()

	if filePath != "" {
		v.SetConfigFile(filePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %q: %w", filePath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.RepoURL == "" {
		return nil, ErrRepoURLMissing
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return fmt.Errorf("validate config: %w", err)
		}

		var fields []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
		}
		return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
	}

	for _, ds := range cfg.Datasets {
		if err := publish.ValidateDatasetName(ds.Name); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}
