package config

import (
	"flag"
	"fmt"
	"strings"
	"time"
)

// flagSet binds the command-line flags to the configuration.
// Only the flags set on the command line are applied, after the file and the environment.
type flagSet struct {
	*flag.FlagSet
	configFile *string
	apply      map[string]func(*Config)
}

func (fs *flagSet) stringVar(name, value, usage string, set func(*Config, string)) {
	v := fs.String(name, value, usage)
	fs.apply[name] = func(c *Config) { set(c, *v) }
}

func (fs *flagSet) floatVar(name string, value float64, usage string, set func(*Config, float64)) {
	v := fs.Float64(name, value, usage)
	fs.apply[name] = func(c *Config) { set(c, *v) }
}

func (fs *flagSet) intVar(name string, value int, usage string, set func(*Config, int)) {
	v := fs.Int(name, value, usage)
	fs.apply[name] = func(c *Config) { set(c, *v) }
}

func (fs *flagSet) boolVar(name string, value bool, usage string, set func(*Config, bool)) {
	v := fs.Bool(name, value, usage)
	fs.apply[name] = func(c *Config) { set(c, *v) }
}

func (fs *flagSet) durationVar(name string, value time.Duration, usage string, set func(*Config, time.Duration)) {
	v := fs.Duration(name, value, usage)
	fs.apply[name] = func(c *Config) { set(c, *v) }
}

func newFlagSet(f *flag.FlagSet) *flagSet {
	d := Default()
	fs := &flagSet{FlagSet: f, apply: map[string]func(*Config){}}
	fs.configFile = fs.String("config", "", "YAML configuration file (optional). Environment variables "+EnvPrefix+"* and flags take precedence.")

	// Global config
	fs.stringVar("workdir", d.WorkingDir, "working directory where the day directories data-YYYY-M-D are created", func(c *Config, v string) { c.WorkingDir = v })
	fs.stringVar("data-dir", d.DataDir, "directory where the successful day directories are promoted", func(c *Config, v string) { c.DataDir = v })
	fs.stringVar("geometa-url", d.GeoMetaURL, "root of the geolocation metadata tables (http(s), ftp, s3, gs or local path)", func(c *Config, v string) { c.GeoMetaURL = v })
	fs.stringVar("archive-url", d.ArchiveURL, "root of the product archive (http(s), ftp, s3, gs or local path)", func(c *Config, v string) { c.ArchiveURL = v })
	fs.stringVar("products", strings.Join(d.Products, ","), "comma-separated list of products (e.g. MOD05_L2,MYD05_L2)", func(c *Config, v string) { c.Products = splitList(v) })

	// Selection
	fs.floatVar("north", d.BoundingBox.North, "north bound of the region of interest (degrees)", func(c *Config, v float64) { c.BoundingBox.North = v })
	fs.floatVar("south", d.BoundingBox.South, "south bound of the region of interest (degrees)", func(c *Config, v float64) { c.BoundingBox.South = v })
	fs.floatVar("east", d.BoundingBox.East, "east bound of the region of interest (degrees)", func(c *Config, v float64) { c.BoundingBox.East = v })
	fs.floatVar("west", d.BoundingBox.West, "west bound of the region of interest (degrees)", func(c *Config, v float64) { c.BoundingBox.West = v })
	fs.boolVar("all-hours", d.AllHours, "keep the granules acquired at any hour", func(c *Config, v bool) { c.AllHours = v })
	fs.intVar("min-hour", d.TimeWindow.MinHour, "first hour (UTC) of the acquisition time window", func(c *Config, v int) { c.TimeWindow.MinHour = v })
	fs.intVar("max-hour", d.TimeWindow.MaxHour, "last hour (UTC) of the acquisition time window (included)", func(c *Config, v int) { c.TimeWindow.MaxHour = v })
	fs.durationVar("day-timeout", d.DayTimeout, "maximum duration of the acquisition of a day (0: no timeout)", func(c *Config, v time.Duration) { c.DayTimeout = v })

	// Transfer
	fs.stringVar("token", d.Transfer.Token, "LAADS DAAC app key, sent as a Bearer token (optional, prefer "+EnvPrefix+"TRANSFER_TOKEN)", func(c *Config, v string) { c.Transfer.Token = v })
	fs.boolVar("wget", d.Transfer.UseWget, "download http(s) files with wget", func(c *Config, v bool) { c.Transfer.UseWget = v })
	fs.stringVar("wget-binary", d.Transfer.WgetBinary, "path of wget", func(c *Config, v string) { c.Transfer.WgetBinary = v })
	fs.stringVar("ftp-user", d.Transfer.FTPUser, "ftp user (default anonymous)", func(c *Config, v string) { c.Transfer.FTPUser = v })
	fs.stringVar("s3-region", d.Transfer.S3Region, "region of the s3 mirror", func(c *Config, v string) { c.Transfer.S3Region = v })
	fs.boolVar("s3-request-payer", d.Transfer.S3RequestPayer, "acknowledge the charges of a requester-pays s3 mirror", func(c *Config, v bool) { c.Transfer.S3RequestPayer = v })
	fs.intVar("retries", d.Transfer.Retries, "number of tries of a transfer on temporary failures", func(c *Config, v int) { c.Transfer.Retries = v })
	fs.durationVar("retry-backoff", d.Transfer.RetryBackoff, "initial wait between two tries (doubled at each try)", func(c *Config, v time.Duration) { c.Transfer.RetryBackoff = v })
	fs.durationVar("http-timeout", d.Transfer.HTTPTimeout, "timeout of a http request (0: no timeout)", func(c *Config, v time.Duration) { c.Transfer.HTTPTimeout = v })

	// Log
	fs.stringVar("log-level", d.Log.Level, "debug, info, warn or error", func(c *Config, v string) { c.Log.Level = v })
	fs.stringVar("log-format", d.Log.Format, "console or json", func(c *Config, v string) { c.Log.Format = v })
	return fs
}

func splitList(v string) []string {
	var list []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}
	return list
}

// Load parses the command-line arguments with the flags of the configuration and returns
// the validated configuration and the remaining arguments.
func Load(f *flag.FlagSet, args []string) (Config, []string, error) {
	fs := newFlagSet(f)
	if err := fs.Parse(args); err != nil {
		return Config{}, nil, err
	}

	cfg := Default()
	if *fs.configFile != "" {
		var err error
		if cfg, err = LoadFromFile(*fs.configFile); err != nil {
			return Config{}, nil, fmt.Errorf("config.Load: %w", err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, nil, fmt.Errorf("config.Load: %w", err)
	}
	fs.Visit(func(f *flag.Flag) {
		if apply, ok := fs.apply[f.Name]; ok {
			apply(&cfg)
		}
	})
	if err := cfg.Validate(); err != nil {
		return Config{}, nil, err
	}
	return cfg, fs.Args(), nil
}
