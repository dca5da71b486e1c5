// Package config loads the benchmark configuration from a TOML file.
package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/idealo/airbnb-benchmarking/internal/backend"
)

const (
	DefaultDatabase          = "airbnb"
	DefaultMetricsFile       = "result.csv"
	DefaultOutputDir         = "query_output"
	DefaultRepetitions       = 10
	DefaultJoinRepetitions   = 5
	DefaultListingsChunkSize = 1000
	DefaultReviewsChunkSize  = 25000
)

// Config is the whole benchmark run configuration.
type Config struct {
	// Backends is a comma-separated list of backend identifiers, e.g. "AWS,Azure".
	Backends string `toml:"backends"`
	Database string `toml:"database"`

	// Connections maps backend identifiers to connection strings.
	Connections map[string]string `toml:"connections"`

	MetricsFile     string `toml:"metrics_file"`
	OutputDir       string `toml:"output_dir"`
	Repetitions     int    `toml:"repetitions"`
	JoinRepetitions int    `toml:"join_repetitions"`

	Import  Import  `toml:"import"`
	Publish Publish `toml:"publish"`
}

type Import struct {
	Enabled           bool   `toml:"enabled"`
	ListingsFolder    string `toml:"listings_folder"`
	ReviewsFolder     string `toml:"reviews_folder"`
	ListingsChunkSize int    `toml:"listings_chunk_size"`
	ReviewsChunkSize  int    `toml:"reviews_chunk_size"`
}

// Publish configures the upload of results to S3. Publishing is off when Bucket is empty.
type Publish struct {
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	Prefix    string `toml:"prefix"`
	PathStyle bool   `toml:"path_style"`
}

// Default returns a configuration with every optional key set to its default.
func Default() *Config {
	return &Config{
		Database:        DefaultDatabase,
		Connections:     map[string]string{},
		MetricsFile:     DefaultMetricsFile,
		OutputDir:       DefaultOutputDir,
		Repetitions:     DefaultRepetitions,
		JoinRepetitions: DefaultJoinRepetitions,
		Import: Import{
			ListingsChunkSize: DefaultListingsChunkSize,
			ReviewsChunkSize:  DefaultReviewsChunkSize,
		},
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(backend.ErrConfiguration, "failed to read config file %s: %v", path, err)
	}
	return Parse(string(data))
}

// Parse decodes and validates a TOML document. Unknown keys are rejected.
func Parse(data string) (*Config, error) {
	c := Default()

	md, err := toml.Decode(data, c)
	if err != nil {
		return nil, errors.Wrapf(backend.ErrConfiguration, "failed to parse config: %v", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Wrapf(backend.ErrConfiguration, "unknown config key %q", undecoded[0].String())
	}

	if err = c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// BackendIDs returns the configured backend identifiers in order.
func (c *Config) BackendIDs() []string {
	var ids []string
	for _, id := range strings.Split(c.Backends, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Validate checks that every backend can be reached and that the run parameters are usable.
func (c *Config) Validate() error {
	ids := c.BackendIDs()
	if len(ids) == 0 {
		return errors.Wrap(backend.ErrConfiguration, "no backends configured")
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return errors.Wrapf(backend.ErrConfiguration, "backend %q listed twice", id)
		}
		seen[id] = true

		if strings.TrimSpace(c.Connections[id]) == "" {
			return errors.Wrapf(backend.ErrConfiguration, "no connection string for backend %q", id)
		}
	}

	switch {
	case c.MetricsFile == "":
		return errors.Wrap(backend.ErrConfiguration, "metrics_file must not be empty")
	case c.OutputDir == "":
		return errors.Wrap(backend.ErrConfiguration, "output_dir must not be empty")
	case c.Repetitions <= 0:
		return errors.Wrapf(backend.ErrConfiguration, "repetitions must be positive, got %d", c.Repetitions)
	case c.JoinRepetitions <= 0:
		return errors.Wrapf(backend.ErrConfiguration, "join_repetitions must be positive, got %d", c.JoinRepetitions)
	}

	return c.Import.validate()
}

func (im Import) validate() error {
	if im.ListingsChunkSize <= 0 || im.ReviewsChunkSize <= 0 {
		return errors.Wrapf(backend.ErrConfiguration, "chunk sizes must be positive, got %d and %d",
			im.ListingsChunkSize, im.ReviewsChunkSize)
	}
	if im.Enabled && (im.ListingsFolder == "" || im.ReviewsFolder == "") {
		return errors.Wrap(backend.ErrConfiguration, "import enabled without listings_folder and reviews_folder")
	}
	return nil
}
