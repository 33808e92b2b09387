// Package config reads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Classifier backends.
const (
	ClassifierNone        = "none"
	ClassifierHTTP        = "http"
	ClassifierRekognition = "rekognition"
)

// Config holds every server setting.
type Config struct {
	Port        string
	APIKeys     string
	CORSOrigins string

	LocalCaloriesCSV string
	DataDir          string

	USDAAPIKey  string
	USDAURL     string
	USDATimeout time.Duration
	USDARPS     float64
	USDABurst   int

	Classifier            string
	ClassifierURL         string
	ClassifierTimeout     time.Duration
	ClassNamesFile        string
	ClassifierConcurrency int
	AWSRegion             string
	RekognitionMaxLabels  int32
	RekognitionMinConf    float32

	RateLimitRPS   float64
	RateLimitBurst int
	MaxUploadBytes int64
}

// LoadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// FromEnv builds a Config from environment variables, applying defaults.
func FromEnv() (*Config, error) {
	return parse(os.Getenv)
}

func parse(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}
	c := &Config{
		Port:        p.str("PORT", "8080"),
		APIKeys:     getenv("API_KEYS"),
		CORSOrigins: p.str("CORS_ORIGINS", "*"),

		LocalCaloriesCSV: p.str("LOCAL_CALORIES_CSV", "local_calories.csv"),
		DataDir:          getenv("DATA_DIR"),

		USDAAPIKey:  getenv("USDA_API_KEY"),
		USDAURL:     getenv("USDA_API_URL"),
		USDATimeout: p.duration("USDA_TIMEOUT", 10*time.Second),
		USDARPS:     p.float("USDA_RPS", 1),
		USDABurst:   p.int("USDA_BURST", 5),

		Classifier:            p.str("CLASSIFIER", ClassifierNone),
		ClassifierURL:         getenv("CLASSIFIER_URL"),
		ClassifierTimeout:     p.duration("CLASSIFIER_TIMEOUT", 30*time.Second),
		ClassNamesFile:        p.str("CLASS_NAMES_FILE", "class_names.txt"),
		ClassifierConcurrency: p.int("CLASSIFIER_CONCURRENCY", 1),
		AWSRegion:             getenv("AWS_REGION"),
		RekognitionMaxLabels:  int32(p.int("REKOGNITION_MAX_LABELS", 10)),
		RekognitionMinConf:    float32(p.float("REKOGNITION_MIN_CONFIDENCE", 50)),

		RateLimitRPS:   p.float("RATE_LIMIT_RPS", 100),
		RateLimitBurst: p.int("RATE_LIMIT_BURST", 20),
		MaxUploadBytes: int64(p.int("MAX_UPLOAD_BYTES", 10<<20)),
	}
	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.Classifier {
	case ClassifierNone:
	case ClassifierHTTP:
		if c.ClassifierURL == "" {
			return errors.New("CLASSIFIER_URL is required when CLASSIFIER=http")
		}
	case ClassifierRekognition:
		if c.AWSRegion == "" {
			return errors.New("AWS_REGION is required when CLASSIFIER=rekognition")
		}
	default:
		return fmt.Errorf("CLASSIFIER: unknown backend %q", c.Classifier)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) str(key, def string) string {
	if v := p.getenv(key); v != "" {
		return v
	}
	return def
}

func (p *parser) int(key string, def int) int {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
