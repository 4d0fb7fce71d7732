// Package config loads and validates the nested configuration tree
// consumed by every other package in this module.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ContextBudget configures internal/budget.
type ContextBudget struct {
	BudgetRatio           float64            `koanf:"budgetRatio" validate:"gt=0,lte=1"`
	RecentTurnsAlwaysFull int                `koanf:"recentTurnsAlwaysFull" validate:"gte=0"`
	RecentTurnCharLimit   int                `koanf:"recentTurnCharLimit" validate:"gt=0"`
	MidTurnCharLimit      int                `koanf:"midTurnCharLimit" validate:"gt=0"`
	OlderTurnCharLimit    int                `koanf:"olderTurnCharLimit" validate:"gt=0"`
	PoolRatios            map[string]float64 `koanf:"poolRatios"`
}

// Anchors configures internal/anchors.
type Anchors struct {
	Enabled  bool                `koanf:"enabled"`
	MaxAge   string              `koanf:"maxAge"`
	MaxCount int                 `koanf:"maxCount" validate:"gte=0"`
	Keywords map[string][]string `koanf:"keywords"`
}

// TopicTracking configures internal/topics.
type TopicTracking struct {
	WindowSize        int      `koanf:"windowSize" validate:"gt=0"`
	FixationThreshold int      `koanf:"fixationThreshold" validate:"gt=0"`
	DecayFactor       float64  `koanf:"decayFactor"`
	MinWordLength     int      `koanf:"minWordLength" validate:"gt=0"`
	CustomPatterns    []string `koanf:"customPatterns"`
	StopWords         []string `koanf:"stopWords"`
}

// Compaction configures internal/compactor.
type Compaction struct {
	Threshold           float64 `koanf:"threshold" validate:"gt=0,lte=1"`
	FallbackMessages    int     `koanf:"fallbackMessages" validate:"gt=0"`
	TaskAwareCompaction bool    `koanf:"taskAwareCompaction"`
}

// TokenEstimation configures internal/tokenest.
type TokenEstimation struct {
	TokensPerWord          float64 `koanf:"tokensPerWord" validate:"gt=0"`
	SpecialCharTokenWeight float64 `koanf:"specialCharTokenWeight" validate:"gte=0"`
	DefaultMaxTokens       int     `koanf:"defaultMaxTokens" validate:"gt=0"`
}

// Archive configures internal/archive.
type Archive struct {
	ArchiveDir      string `koanf:"archiveDir"`
	RetentionDays   int    `koanf:"retentionDays" validate:"gt=0"`
	BatchIndexDelay string `koanf:"batchIndexDelay"`
	S3Bucket        string `koanf:"s3Bucket"`
	S3Prefix        string `koanf:"s3Prefix"`
}

// Embedding configures internal/embedding.
type Embedding struct {
	Model          string `koanf:"model"`
	DBFile         string `koanf:"dbFile"`
	Endpoint       string `koanf:"endpoint"`
	OllamaEndpoint string `koanf:"ollamaEndpoint"`
	Dimensions     int    `koanf:"dimensions" validate:"gte=0"`
}

// Search configures internal/search.
type Search struct {
	RecencyHalfLifeDays float64 `koanf:"recencyHalfLifeDays" validate:"gt=0"`
	RecencyWeight       float64 `koanf:"recencyWeight" validate:"gte=0"`
	RRFK                int     `koanf:"rrfK" validate:"gt=0"`
	RelevanceThreshold  float64 `koanf:"relevanceThreshold"`
}

// Maintenance configures internal/maintenance.
type Maintenance struct {
	Cron           string `koanf:"cron"`
	BatchSleepMS   int    `koanf:"batchSleepMs" validate:"gte=0"`
	MetricsEnabled bool   `koanf:"metricsEnabled"`
}

// Server configures cmd/server's HTTP surface.
type Server struct {
	Port   int    `koanf:"port" validate:"gt=0,lt=65536"`
	APIKey string `koanf:"apiKey"`
}

// Config is the full nested configuration tree, matching spec.md §6's
// "Configuration keys" list.
type Config struct {
	DataDir              string          `koanf:"dataDir"`
	ContextBudget        ContextBudget   `koanf:"contextBudget"`
	Anchors              Anchors         `koanf:"anchors"`
	TopicTracking        TopicTracking   `koanf:"topicTracking"`
	Compaction           Compaction      `koanf:"compaction"`
	TokenEstimation      TokenEstimation `koanf:"tokenEstimation"`
	Archive              Archive         `koanf:"archive"`
	Embedding            Embedding       `koanf:"embedding"`
	Search               Search          `koanf:"search"`
	Maintenance          Maintenance     `koanf:"maintenance"`
	Server               Server          `koanf:"server"`
	ContinuityIndicators []string        `koanf:"continuityIndicators"`
	LogLevel             string          `koanf:"logLevel"`
}

func defaults() map[string]any {
	return map[string]any{
		"dataDir": "./data",

		"contextBudget.budgetRatio":           0.65,
		"contextBudget.recentTurnsAlwaysFull": 3,
		"contextBudget.recentTurnCharLimit":   3000,
		"contextBudget.midTurnCharLimit":      1500,
		"contextBudget.olderTurnCharLimit":    500,
		"contextBudget.poolRatios.essential":  0.30,
		"contextBudget.poolRatios.high":       0.25,
		"contextBudget.poolRatios.medium":     0.25,
		"contextBudget.poolRatios.low":        0.15,
		"contextBudget.poolRatios.minimal":    0.05,

		"anchors.enabled":                true,
		"anchors.maxAge":                 "720h",
		"anchors.maxCount":               20,
		"anchors.keywords.identity":      []string{"my name is", "i am a", "i'm a", "i work as", "call me"},
		"anchors.keywords.contradiction": []string{"actually no", "i changed my mind", "that's wrong", "correction"},
		"anchors.keywords.tension":       []string{"i'm worried", "this is frustrating", "i'm stressed", "i'm angry"},

		"topicTracking.windowSize":        20,
		"topicTracking.fixationThreshold": 3,
		"topicTracking.decayFactor":       0.5,
		"topicTracking.minWordLength":     4,
		"topicTracking.stopWords":         []string{"this", "that", "with", "from", "have", "been", "were", "what", "when", "where"},

		"compaction.threshold":           0.80,
		"compaction.fallbackMessages":    20,
		"compaction.taskAwareCompaction": true,

		"tokenEstimation.tokensPerWord":          1.3,
		"tokenEstimation.specialCharTokenWeight": 0.5,
		"tokenEstimation.defaultMaxTokens":       8192,

		"archive.archiveDir":      "archive",
		"archive.retentionDays":   180,
		"archive.batchIndexDelay": "100ms",

		"embedding.model":          "embedding-default",
		"embedding.dbFile":         "continuity.db",
		"embedding.ollamaEndpoint": "",
		"embedding.dimensions":     0,

		"search.recencyHalfLifeDays": 14.0,
		"search.recencyWeight":       0.15,
		"search.rrfK":                60,
		"search.relevanceThreshold":  0.25,

		"maintenance.cron":           "*/5 * * * *",
		"maintenance.batchSleepMs":   100,
		"maintenance.metricsEnabled": true,

		"server.port": 8841,

		"continuityIndicators": []string{"remember", "recall", "you told", "last time", "before", "previously", "we discussed"},
		"logLevel":             "info",
	}
}

// Load builds the Config by layering defaults, an optional YAML file at
// configPath (ignored if absent), then CONTINUITY_-prefixed environment
// variables, and validates the result.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider("CONTINUITY_", ".", envKeyTransform), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	cfg.Archive.ArchiveDir = filepath.Clean(cfg.Archive.ArchiveDir)
	return &cfg, nil
}

// envKeyTransform turns CONTINUITY_CONTEXTBUDGET__BUDGETRATIO into the
// camelCase dotted key contextBudget.budgetRatio that defaults() and the
// struct's koanf tags actually use. koanf merges providers by exact map
// key, not case-insensitively, so a lowercased override landed as a
// sibling of the real key instead of replacing it. Keys not found in
// defaults() (a typo, or a key this config tree doesn't define) fall
// back to the lowercased form so Unmarshal still reports them as unused
// rather than silently merging into the wrong place.
func envKeyTransform(s string) string {
	s = strings.TrimPrefix(s, "CONTINUITY_")
	lower := strings.ReplaceAll(strings.ToLower(s), "__", ".")
	if canonical, ok := defaultKeyCasing()[lower]; ok {
		return canonical
	}
	return lower
}

// defaultKeyCasing maps every defaults() key, lowercased, back to its
// real camelCase form.
func defaultKeyCasing() map[string]string {
	d := defaults()
	out := make(map[string]string, len(d))
	for k := range d {
		out[strings.ToLower(k)] = k
	}
	return out
}

func validateConfig(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sum := 0.0
	for _, r := range cfg.ContextBudget.PoolRatios {
		sum += r
	}
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("contextBudget.poolRatios must sum to 1, got %f", sum)
	}
	return nil
}
