// Package config loads the linking properties from an optional YAML file,
// with environment variables taking precedence over file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/gryn010/inception/pkg/linking"
	"github.com/gryn010/inception/pkg/linking/feature"
)

const (
	DefaultMentionContextSize    = linking.DefaultMentionContextSize
	DefaultCandidateDisplayLimit = linking.DefaultCandidateDisplayLimit
	DefaultMaxParallel           = linking.DefaultMaxParallel
	DefaultCacheTTL              = 10 * time.Minute
)

var (
	ErrInvalidContextSize  = errors.New("mention context size must not be negative")
	ErrInvalidDisplayLimit = errors.New("candidate display limit must be positive")
	ErrInvalidParallelism  = errors.New("max parallel must be positive")
	ErrInvalidCacheTTL     = errors.New("cache ttl must be positive")
)

// Generator overrides the registration of one feature generator.
type Generator struct {
	Priority *int `koanf:"priority"`
	Disabled bool `koanf:"disabled"`
}

// Linking holds the linking properties. Stopwords is a local path or an
// s3:// key; empty means no stopwords.
type Linking struct {
	MentionContextSize    int                  `koanf:"mention_context_size"`
	CandidateDisplayLimit int                  `koanf:"candidate_display_limit"`
	MaxParallel           int                  `koanf:"max_parallel"`
	Stopwords             string               `koanf:"stopwords"`
	CacheTTL              time.Duration        `koanf:"cache_ttl"`
	Generators            map[string]Generator `koanf:"generators"`
}

// Load reads the linking configuration. configFilePath may be empty. All
// problems are collected and returned together.
func Load(configFilePath string) (*Linking, []error) {
	k := koanf.New(".")
	var errs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	contextSize, err := envInt("LINKING_MENTION_CONTEXT_SIZE", k, "mention_context_size", DefaultMentionContextSize)
	errs = appendErr(errs, err)
	displayLimit, err := envInt("LINKING_CANDIDATE_DISPLAY_LIMIT", k, "candidate_display_limit", DefaultCandidateDisplayLimit)
	errs = appendErr(errs, err)
	maxParallel, err := envInt("LINKING_MAX_PARALLEL", k, "max_parallel", DefaultMaxParallel)
	errs = appendErr(errs, err)
	cacheTTL, err := envDuration("LINKING_CACHE_TTL", k, "cache_ttl", DefaultCacheTTL)
	errs = appendErr(errs, err)

	cfg := &Linking{
		MentionContextSize:    contextSize,
		CandidateDisplayLimit: displayLimit,
		MaxParallel:           maxParallel,
		Stopwords:             envString("LINKING_STOPWORDS", k, "stopwords"),
		CacheTTL:              cacheTTL,
		Generators:            make(map[string]Generator),
	}

	for _, name := range k.MapKeys("generators") {
		prefix := "generators." + name
		g := Generator{Disabled: k.Bool(prefix + ".disabled")}
		if k.Exists(prefix + ".priority") {
			p := k.Int(prefix + ".priority")
			g.Priority = &p
		}
		cfg.Generators[name] = g
	}

	errs = append(errs, cfg.Validate()...)
	if len(errs) > 0 {
		return nil, errs
	}
	return cfg, nil
}

func (c *Linking) Validate() []error {
	var errs []error
	if c.MentionContextSize < 0 {
		errs = append(errs, ErrInvalidContextSize)
	}
	if c.CandidateDisplayLimit <= 0 {
		errs = append(errs, ErrInvalidDisplayLimit)
	}
	if c.MaxParallel <= 0 {
		errs = append(errs, ErrInvalidParallelism)
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, ErrInvalidCacheTTL)
	}
	return errs
}

func (c *Linking) Properties() linking.Properties {
	return linking.Properties{
		MentionContextSize:    c.MentionContextSize,
		CandidateDisplayLimit: c.CandidateDisplayLimit,
		MaxParallel:           c.MaxParallel,
	}
}

func (c *Linking) GeneratorOverrides() map[string]feature.Override {
	out := make(map[string]feature.Override, len(c.Generators))
	for name, g := range c.Generators {
		out[name] = feature.Override{Priority: g.Priority, Disabled: g.Disabled}
	}
	return out
}

func appendErr(errs []error, err error) []error {
	if err != nil {
		return append(errs, err)
	}
	return errs
}

func envString(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

func envInt(envKey string, k *koanf.Koanf, koanfKey string, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return n, nil
	}
	if k.Exists(koanfKey) {
		return k.Int(koanfKey), nil
	}
	return defaultVal, nil
}

func envDuration(envKey string, k *koanf.Koanf, koanfKey string, defaultVal time.Duration) (time.Duration, error) {
	if val := os.Getenv(envKey); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid duration: %w", envKey, err)
		}
		return d, nil
	}
	if k.Exists(koanfKey) {
		return k.Duration(koanfKey), nil
	}
	return defaultVal, nil
}
