package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the service. Values are read from
// STREAMPULSE_-prefixed environment variables.
type Config struct {
	// Port is the HTTP server port.
	Port int `envconfig:"PORT" default:"3000"`

	// DatabasePath is the SQLite database file.
	DatabasePath string `envconfig:"DATABASE_PATH" default:"data/streampulse.db"`

	// StreamURL is the upstream WebSocket feed endpoint.
	StreamURL string `envconfig:"STREAM_URL" required:"true"`

	// Keywords are the track terms the ingestion filter matches against
	// post text with word boundaries.
	Keywords []string `envconfig:"KEYWORDS" default:"corona virus,corona,covid19,covid-19"`

	// Langs restricts ingestion to posts tagged with one of these language
	// codes. Empty disables the language filter.
	Langs []string `envconfig:"LANGS" default:"en"`

	// GeoDataPath is the (place_name, region_code, canonical_name) CSV
	// produced by cmd/geoindex.
	GeoDataPath string `envconfig:"GEO_DATA_PATH" default:"data/regions.csv"`

	// WindowLength is the trailing window each aggregation covers.
	WindowLength time.Duration `envconfig:"WINDOW_LENGTH" default:"30m"`

	// BucketWidth is the time-series bucket size.
	BucketWidth time.Duration `envconfig:"BUCKET_WIDTH" default:"10s"`

	// TopK caps the tag and term frequency tables.
	TopK int `envconfig:"TOP_K" default:"10"`

	// MinTermLength is the minimum body-term length counted.
	MinTermLength int `envconfig:"MIN_TERM_LENGTH" default:"3"`

	// StopwordsPath optionally points at a newline-separated stopword
	// file; empty selects the built-in English list.
	StopwordsPath string `envconfig:"STOPWORDS_PATH" default:""`

	// TriggerInterval is the period of the aggregation trigger.
	TriggerInterval time.Duration `envconfig:"TRIGGER_INTERVAL" default:"50s"`

	// QueueDepth bounds the channel between the stream subscriber and the
	// ingestor.
	QueueDepth int `envconfig:"QUEUE_DEPTH" default:"1024"`

	// MaxAttempts bounds per-record retries against the scorer and store.
	MaxAttempts int `envconfig:"MAX_ATTEMPTS" default:"3"`

	// InitialBackoff is the first per-record retry delay.
	InitialBackoff time.Duration `envconfig:"INITIAL_BACKOFF" default:"200ms"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("STREAMPULSE", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks constraints that envconfig tags can't express.
func (c *Config) Validate() error {
	u, err := url.Parse(c.StreamURL)
	if err != nil {
		return fmt.Errorf("invalid stream URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("stream URL must use the ws or wss scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("stream URL is missing a host")
	}
	if c.WindowLength <= 0 || c.BucketWidth <= 0 {
		return fmt.Errorf("window length and bucket width must be positive")
	}
	if c.BucketWidth > c.WindowLength {
		return fmt.Errorf("bucket width %s exceeds window length %s", c.BucketWidth, c.WindowLength)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top-k must be positive")
	}
	if c.MinTermLength <= 0 {
		return fmt.Errorf("minimum term length must be positive")
	}
	if c.TriggerInterval <= 0 {
		return fmt.Errorf("trigger interval must be positive")
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("queue depth must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	return nil
}

// Stopwords returns the configured stopword list: the contents of
// StopwordsPath when set, otherwise nil to select the built-in default.
func (c *Config) Stopwords() ([]string, error) {
	if c.StopwordsPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.StopwordsPath)
	if err != nil {
		return nil, fmt.Errorf("read stopwords file: %w", err)
	}
	var words []string
	for _, line := range strings.Split(string(data), "\n") {
		if w := strings.TrimSpace(line); w != "" {
			words = append(words, w)
		}
	}
	return words, nil
}
