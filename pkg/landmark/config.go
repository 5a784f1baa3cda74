package landmark

import (
	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
	"github.com/himanishpuri/landmark/pkg/landmark/matcher"
)

const (
	// DefaultSampleRate matches librosa's default load rate.
	DefaultSampleRate = 22050
	DefaultDBPath     = "landmark.sqlite3"
	DefaultStoreKind  = StoreSQLite
)

// Store kinds accepted by OpenStore and WithStoreKind.
const (
	StoreSQLite = "sqlite"
	StoreBadger = "badger"
	StoreFile   = "file"
)

// QueryLimits bound the work a single identification may cause. Zero means
// unlimited.
type QueryLimits struct {
	MaxPeaks        int `json:"max_peaks"`
	MaxFingerprints int `json:"max_fingerprints"`
}

func DefaultQueryLimits() QueryLimits {
	return QueryLimits{
		MaxPeaks:        20000,
		MaxFingerprints: 50000,
	}
}

type Config struct {
	DBPath      string
	StoreKind   string
	TempDir     string
	SampleRate  int // 0 accepts any rate
	Logger      Logger
	Store       Store
	Spectrogram fingerprint.SpectrogramConfig
	Peaks       fingerprint.PeakConfig
	Generator   fingerprint.GeneratorConfig
	Matcher     matcher.Config
	Limits      QueryLimits
	AutoRestore bool
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithStoreKind picks the backend opened at DBPath when no Store is given:
// "sqlite", "badger" or "file".
func WithStoreKind(kind string) Option {
	return func(c *Config) {
		c.StoreKind = kind
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStore(store Store) Option {
	return func(c *Config) {
		c.Store = store
	}
}

func WithSpectrogramConfig(cfg fingerprint.SpectrogramConfig) Option {
	return func(c *Config) {
		c.Spectrogram = cfg
	}
}

func WithPeakConfig(cfg fingerprint.PeakConfig) Option {
	return func(c *Config) {
		c.Peaks = cfg
	}
}

func WithGeneratorConfig(cfg fingerprint.GeneratorConfig) Option {
	return func(c *Config) {
		c.Generator = cfg
	}
}

func WithMatcherConfig(cfg matcher.Config) Option {
	return func(c *Config) {
		c.Matcher = cfg
	}
}

// WithQueryLimits caps peaks and fingerprints for identification only;
// ingestion is never truncated.
func WithQueryLimits(limits QueryLimits) Option {
	return func(c *Config) {
		c.Limits = limits
	}
}

// WithAutoRestore loads the store into memory when the service starts.
func WithAutoRestore(on bool) Option {
	return func(c *Config) {
		c.AutoRestore = on
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:      DefaultDBPath,
		StoreKind:   DefaultStoreKind,
		TempDir:     "/tmp",
		SampleRate:  DefaultSampleRate,
		Spectrogram: fingerprint.DefaultSpectrogramConfig(),
		Peaks:       fingerprint.DefaultPeakConfig(),
		Generator:   fingerprint.DefaultGeneratorConfig(),
		Matcher:     matcher.DefaultConfig(),
		Limits:      DefaultQueryLimits(),
	}
}
