// config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port           string `yaml:"port" validate:"required,numeric"`
	DefaultCountry string `yaml:"default_country" validate:"required"`
	DaysShown      int    `yaml:"days_shown" validate:"gt=0"`
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" validate:"required_if=Enabled true"`
	Port     string `yaml:"port" validate:"required_if=Enabled true"`
	User     string `yaml:"user" validate:"required_if=Enabled true"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname" validate:"required_if=Enabled true"`
}

// SourcesConfig lists the upstream wide-format CSVs and the dataset page that
// announces their publication date.
type SourcesConfig struct {
	CasesCSV        string `yaml:"cases_csv" validate:"required,url"`
	DeathsCSV       string `yaml:"deaths_csv" validate:"required,url"`
	RecoveriesCSV   string `yaml:"recoveries_csv" validate:"required,url"`
	PageURL         string `yaml:"page_url" validate:"omitempty,url"`
	UpdatedSelector string `yaml:"updated_selector"`
}

type FetchConfig struct {
	TimeoutStr string        `yaml:"timeout"`
	UserAgent  string        `yaml:"user_agent"`
	Timeout    time.Duration `yaml:"-"` // Parsed duration
}

type RefreshConfig struct {
	Timezone         string         `yaml:"timezone"`
	RetryIntervalStr string         `yaml:"retry_interval"`
	HistorySize      int            `yaml:"history_size" validate:"gte=0"`
	RetryInterval    time.Duration  `yaml:"-"`
	Location         *time.Location `yaml:"-"`
}

type ChartConfig struct {
	Width  int     `yaml:"width" validate:"gte=200"`
	Height int     `yaml:"height" validate:"gte=150"`
	DPI    float64 `yaml:"dpi" validate:"gt=0"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Sources  SourcesConfig  `yaml:"sources"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Chart    ChartConfig    `yaml:"chart"`
}

var AppConfig Config

var validate = validator.New()

// Defaults returns the configuration used for any key the YAML file leaves out.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           "8080",
			DefaultCountry: "Spain",
			DaysShown:      28,
		},
		Sources: SourcesConfig{
			CasesCSV:      defaultBaseURL + "time_series_covid19_confirmed_global.csv&filename=time_series_covid19_confirmed_global.csv",
			DeathsCSV:     defaultBaseURL + "time_series_covid19_deaths_global.csv&filename=time_series_covid19_deaths_global.csv",
			RecoveriesCSV: defaultBaseURL + "time_series_covid19_recovered_global.csv&filename=time_series_covid19_recovered_global.csv",
		},
		Fetch: FetchConfig{
			TimeoutStr: "30s",
			UserAgent:  "coviddash/1.0",
		},
		Refresh: RefreshConfig{
			Timezone:         "Local",
			RetryIntervalStr: "5m",
			HistorySize:      50,
		},
		Chart: ChartConfig{
			Width:  800,
			Height: 500,
			DPI:    100,
		},
	}
}

const defaultBaseURL = "https://data.humdata.org/hxlproxy/api/data-preview.csv?url=https%3A%2F%2Fraw.githubusercontent.com%2FCSSEGISandData%2FCOVID-19%2Fmaster%2Fcsse_covid_19_data%2Fcsse_covid_19_time_series%2F"

// LoadConfig reads the YAML file at configPath, applies .env and COVIDASH_* environment
// overrides, validates the result and stores it in AppConfig.
func LoadConfig(configPath string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(file, os.LookupEnv)
	if err != nil {
		return err
	}

	AppConfig = cfg
	return nil
}

// Parse builds a Config from YAML bytes on top of Defaults. lookupEnv supplies the
// environment overrides; pass nil to ignore the environment.
func Parse(data []byte, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if lookupEnv != nil {
		if err := applyEnvOverrides(&cfg, lookupEnv); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.finalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config, lookupEnv func(string) (string, bool)) error {
	strs := map[string]*string{
		"COVIDASH_PORT":            &cfg.Server.Port,
		"COVIDASH_DEFAULT_COUNTRY": &cfg.Server.DefaultCountry,
		"COVIDASH_CASES_CSV":       &cfg.Sources.CasesCSV,
		"COVIDASH_DEATHS_CSV":      &cfg.Sources.DeathsCSV,
		"COVIDASH_RECOVERIES_CSV":  &cfg.Sources.RecoveriesCSV,
		"COVIDASH_FETCH_TIMEOUT":   &cfg.Fetch.TimeoutStr,
		"COVIDASH_TIMEZONE":        &cfg.Refresh.Timezone,
		"COVIDASH_DB_HOST":         &cfg.Database.Host,
		"COVIDASH_DB_PORT":         &cfg.Database.Port,
		"COVIDASH_DB_USER":         &cfg.Database.User,
		"COVIDASH_DB_PASSWORD":     &cfg.Database.Password,
		"COVIDASH_DB_NAME":         &cfg.Database.DBName,
	}
	for key, dst := range strs {
		if v, ok := lookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookupEnv("COVIDASH_DAYS_SHOWN"); ok && v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid COVIDASH_DAYS_SHOWN %q: %w", v, err)
		}
		cfg.Server.DaysShown = days
	}
	if v, ok := lookupEnv("COVIDASH_DB_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid COVIDASH_DB_ENABLED %q: %w", v, err)
		}
		cfg.Database.Enabled = enabled
	}
	return nil
}

// finalize parses the derived fields and reports every invalid setting at once.
func (c *Config) finalize() error {
	var result *multierror.Error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				result = multierror.Append(result, fmt.Errorf("config %s: failed %q check", fe.Namespace(), fe.Tag()))
			}
		} else {
			result = multierror.Append(result, err)
		}
	}

	var err error
	if c.Fetch.Timeout, err = parsePositiveDuration("fetch.timeout", c.Fetch.TimeoutStr); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Refresh.RetryInterval, err = parsePositiveDuration("refresh.retry_interval", c.Refresh.RetryIntervalStr); err != nil {
		result = multierror.Append(result, err)
	}

	tz := c.Refresh.Timezone
	if tz == "" {
		tz = "Local"
	}
	if c.Refresh.Location, err = time.LoadLocation(tz); err != nil {
		result = multierror.Append(result, fmt.Errorf("config refresh.timezone %q: %w", tz, err))
	}

	if c.Sources.PageURL != "" && c.Sources.UpdatedSelector == "" {
		log.Println("WARN Config: sources.page_url is set without sources.updated_selector; the whole page body will be searched.")
	}

	return result.ErrorOrNil()
}

func parsePositiveDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config %s %q: %w", name, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config %s must be positive, got %s", name, value)
	}
	return d, nil
}
