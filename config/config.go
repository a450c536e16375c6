// Package config loads the configuration of the grabber.
// Values are taken from the defaults, then the YAML file, then the GRABBER_* environment variables, then the command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/airbusgeo/modis-grabber/catalog"
	"github.com/airbusgeo/modis-grabber/service"
	"github.com/airbusgeo/modis-grabber/service/geometry"
	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of the environment variables
const EnvPrefix = "GRABBER_"

// Config of the grabber
type Config struct {
	WorkingDir  string             `yaml:"working_dir" env:"WORKING_DIR"`
	DataDir     string             `yaml:"data_dir" env:"DATA_DIR"`
	GeoMetaURL  string             `yaml:"geometa_url" env:"GEOMETA_URL"`
	ArchiveURL  string             `yaml:"archive_url" env:"ARCHIVE_URL"`
	Products    []string           `yaml:"products" env:"PRODUCTS" envSeparator:","`
	BoundingBox BoundingBox        `yaml:"bounding_box" envPrefix:"BBOX_"`
	AllHours    bool               `yaml:"all_hours" env:"ALL_HOURS"`
	TimeWindow  catalog.TimeWindow `yaml:"time_window" envPrefix:"TIME_WINDOW_"`
	DayTimeout  time.Duration      `yaml:"day_timeout" env:"DAY_TIMEOUT"`
	Transfer    Transfer           `yaml:"transfer" envPrefix:"TRANSFER_"`
	Log         Log                `yaml:"log" envPrefix:"LOG_"`
}

// BoundingBox of the region of interest, in degrees
type BoundingBox struct {
	North float64 `yaml:"north" env:"NORTH"`
	South float64 `yaml:"south" env:"SOUTH"`
	East  float64 `yaml:"east" env:"EAST"`
	West  float64 `yaml:"west" env:"WEST"`
}

// Geometry returns the bounding box as a geometry.BoundingBox
func (b BoundingBox) Geometry() geometry.BoundingBox {
	return geometry.NewBoundingBox(b.North, b.South, b.East, b.West)
}

// Transfer configures the access to the archive
type Transfer struct {
	Token             string        `yaml:"token" env:"TOKEN"` // LAADS DAAC app key (Bearer token)
	UseWget           bool          `yaml:"use_wget" env:"USE_WGET"`
	WgetBinary        string        `yaml:"wget_binary" env:"WGET_BINARY"`
	FTPUser           string        `yaml:"ftp_user" env:"FTP_USER"`
	FTPPassword       string        `yaml:"ftp_password" env:"FTP_PASSWORD"`
	S3Region          string        `yaml:"s3_region" env:"S3_REGION"`
	S3AccessKeyID     string        `yaml:"s3_access_key_id" env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string        `yaml:"s3_secret_access_key" env:"S3_SECRET_ACCESS_KEY"`
	S3RequestPayer    bool          `yaml:"s3_request_payer" env:"S3_REQUEST_PAYER"`
	Retries           int           `yaml:"retries" env:"RETRIES"`
	RetryBackoff      time.Duration `yaml:"retry_backoff" env:"RETRY_BACKOFF"`
	HTTPTimeout       time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT"`
}

// Log configures the logger
type Log struct {
	Level  string `yaml:"level" env:"LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" env:"FORMAT"` // console, json
}

// Default returns the default configuration:
// MOD05_L2 over the East China Sea (Kyushu) from the LAADS DAAC archive, acquired between 02:00 and 10:59 UTC
func Default() Config {
	return Config{
		WorkingDir: "../_data",
		DataDir:    "data",
		GeoMetaURL: "https://ladsweb.modaps.eosdis.nasa.gov/archive/geoMeta/61",
		ArchiveURL: "https://ladsweb.modaps.eosdis.nasa.gov/archive/allData/61",
		Products:   []string{"MOD05_L2"},
		BoundingBox: BoundingBox{
			North: 32.10,
			South: 31.00,
			East:  131.10,
			West:  129.99,
		},
		TimeWindow: catalog.DefaultTimeWindow,
		Transfer: Transfer{
			Retries:      3,
			RetryBackoff: 5 * time.Second,
			HTTPTimeout:  30 * time.Minute,
		},
		Log: Log{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromFile loads the YAML file over the defaults
func LoadFromFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty file is valid
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides the configuration with the GRABBER_* environment variables that are set
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

// Validate checks the configuration and returns all the errors
func (c Config) Validate() error {
	var errs []error
	if c.WorkingDir == "" {
		errs = append(errs, fmt.Errorf("missing working dir"))
	}
	if c.GeoMetaURL == "" {
		errs = append(errs, fmt.Errorf("missing geoMeta url"))
	}
	if c.ArchiveURL == "" {
		errs = append(errs, fmt.Errorf("missing archive url"))
	}
	if len(c.Products) == 0 {
		errs = append(errs, fmt.Errorf("missing products"))
	}
	for _, p := range c.Products {
		if p == "" {
			errs = append(errs, fmt.Errorf("empty product name"))
		}
	}
	if err := c.BoundingBox.Geometry().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.TimeWindow.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.DayTimeout < 0 {
		errs = append(errs, fmt.Errorf("negative day timeout: %v", c.DayTimeout))
	}
	if c.Transfer.Retries < 0 {
		errs = append(errs, fmt.Errorf("negative number of retries: %d", c.Transfer.Retries))
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q: expecting console or json", c.Log.Format))
	}
	if err := service.MergeErrors(true, nil, errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
