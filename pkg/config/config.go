package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of every environment override, e.g. WLE_FOREST_TREES.
const EnvPrefix = "WLE"

// Config represents the complete report configuration
type Config struct {
	Data       DataConfig       `yaml:"data" envconfig:"DATA"`
	Prune      PruneConfig      `yaml:"prune" envconfig:"PRUNE"`
	Forest     ForestConfig     `yaml:"forest" envconfig:"FOREST"`
	CV         CVConfig         `yaml:"cv" envconfig:"CV"`
	Selection  SelectionConfig  `yaml:"selection" envconfig:"SELECTION"`
	Validation ValidationConfig `yaml:"validation" envconfig:"VALIDATION"`
	Output     OutputConfig     `yaml:"output" envconfig:"OUTPUT"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// DataConfig locates the input files and names their special columns
type DataConfig struct {
	TrainPath   string   `yaml:"train_path" envconfig:"TRAIN_PATH" validate:"required"`
	TestPath    string   `yaml:"test_path" envconfig:"TEST_PATH" validate:"required"`
	LabelColumn string   `yaml:"label_column" envconfig:"LABEL_COLUMN" validate:"required"`
	IDColumn    string   `yaml:"id_column" envconfig:"ID_COLUMN" validate:"required"`
	NAStrings   []string `yaml:"na_strings" envconfig:"NA_STRINGS"`
}

// PruneConfig controls which columns survive before modelling
type PruneConfig struct {
	// MaxMissingRatio is the largest fraction of missing values a column may carry.
	MaxMissingRatio float64  `yaml:"max_missing_ratio" envconfig:"MAX_MISSING_RATIO" validate:"gte=0,lte=1"`
	DropPatterns    []string `yaml:"drop_patterns" envconfig:"DROP_PATTERNS"`
}

// ForestConfig holds the hyperparameters of the final random forest
type ForestConfig struct {
	Trees          int   `yaml:"trees" envconfig:"TREES" validate:"gte=1"`
	Mtry           int   `yaml:"mtry" envconfig:"MTRY" validate:"gte=0"`
	MinSamplesLeaf int   `yaml:"min_samples_leaf" envconfig:"MIN_SAMPLES_LEAF" validate:"gte=1"`
	MaxDepth       int   `yaml:"max_depth" envconfig:"MAX_DEPTH" validate:"gte=0"`
	Seed           int64 `yaml:"seed" envconfig:"SEED"`
	Workers        int   `yaml:"workers" envconfig:"WORKERS" validate:"gte=0"`
}

// CVConfig controls random-forest cross-validation
type CVConfig struct {
	Folds     int     `yaml:"folds" envconfig:"FOLDS" validate:"gte=2"`
	Step      float64 `yaml:"step" envconfig:"STEP" validate:"gt=0"`
	Scale     string  `yaml:"scale" envconfig:"SCALE" validate:"oneof=log step"`
	Recursive bool    `yaml:"recursive" envconfig:"RECURSIVE"`
	Trees     int     `yaml:"trees" envconfig:"TREES" validate:"gte=1"`
}

// SelectionConfig decides how many ranked features enter the final formula
type SelectionConfig struct {
	// Features fixes the count; 0 derives it from the cross-validation curve.
	Features  int     `yaml:"features" envconfig:"FEATURES" validate:"gte=0"`
	Tolerance float64 `yaml:"tolerance" envconfig:"TOLERANCE" validate:"gte=0,lte=1"`
}

// ValidationConfig enables an optional stratified holdout estimate
type ValidationConfig struct {
	Holdout float64 `yaml:"holdout" envconfig:"HOLDOUT" validate:"gte=0,lt=1"`
}

// OutputConfig selects the artefacts written to Dir
type OutputConfig struct {
	Dir         string `yaml:"dir" envconfig:"DIR" validate:"required"`
	HTML        bool   `yaml:"html" envconfig:"HTML"`
	Workbook    bool   `yaml:"workbook" envconfig:"WORKBOOK"`
	AnswerFiles bool   `yaml:"answer_files" envconfig:"ANSWER_FILES"`
	Model       bool   `yaml:"model" envconfig:"MODEL"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

// TelemetryConfig contains metrics and tracing configuration
type TelemetryConfig struct {
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
	Trace       bool   `yaml:"trace" envconfig:"TRACE"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Data: DataConfig{
			TrainPath:   "pml-training.csv",
			TestPath:    "pml-testing.csv",
			LabelColumn: "classe",
			IDColumn:    "problem_id",
			NAStrings:   []string{"NA", "", "#DIV/0!"},
		},
		Prune: PruneConfig{
			MaxMissingRatio: 0,
			DropPatterns:    []string{`^$`, `^X[0-9]*$`, `^user_name$`, `timestamp`, `window`},
		},
		Forest: ForestConfig{
			Trees:          200,
			MinSamplesLeaf: 1,
			Seed:           1234,
		},
		CV: CVConfig{
			Folds: 5,
			Step:  0.5,
			Scale: "log",
			Trees: 100,
		},
		Selection: SelectionConfig{
			Tolerance: 0.01,
		},
		Output: OutputConfig{
			Dir:         "report",
			HTML:        true,
			Workbook:    true,
			AnswerFiles: true,
			Model:       true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path
// and WLE_* environment variables, in that order of increasing precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Unset variables leave the field alone, so file values survive.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks struct constraints and the settings that depend on each other
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.CV.Scale == "log" && c.CV.Step >= 1 {
		return fmt.Errorf("cv step must be below 1 on the log scale, got %g", c.CV.Step)
	}
	if c.CV.Scale == "step" && c.CV.Step < 1 {
		return fmt.Errorf("cv step must be at least 1 on the step scale, got %g", c.CV.Step)
	}
	if c.Data.LabelColumn == c.Data.IDColumn {
		return errors.New("label and id column must differ")
	}
	return nil
}
