// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads perfcheck run configuration from YAML.
//
// A run file declares the comparison thresholds, the base and treatment
// URLs and the scenarios to measure. Each scenario is either an HTTP
// request ("http", the default) or an external command ("command").
//
// Thread Safety:
//
//	All exported functions are safe for concurrent use. A loaded File is
//	not modified by this package.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianPerf/services/perf/compare"
	"github.com/AleutianAI/AleutianPerf/services/perf/compare/executors"
	"github.com/AleutianAI/AleutianPerf/services/perf/stats"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxFileSize bounds the size of a run file (1MB).
	MaxFileSize = 1024 * 1024

	// KindHTTP measures one HTTP request per execution.
	KindHTTP = "http"

	// KindCommand runs one external command per execution.
	KindCommand = "command"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidConfig indicates the file failed parsing or validation.
	ErrInvalidConfig = errors.New("invalid run configuration")

	// ErrUnknownScenarioKind indicates a scenario kind other than http or command.
	ErrUnknownScenarioKind = errors.New("unknown scenario kind")
)

// =============================================================================
// Metrics
// =============================================================================

var configLoadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "perf_config_load_errors_total",
	Help: "Run configuration load failures by stage",
}, []string{"stage"})

// =============================================================================
// Validation
// =============================================================================

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("polarity", validatePolarity); err != nil {
		panic(fmt.Sprintf("registering polarity validator: %v", err))
	}
}

func validatePolarity(fl validator.FieldLevel) bool {
	_, err := stats.ParsePolarity(fl.Field().String())
	return err == nil
}

// =============================================================================
// Types
// =============================================================================

// File is the root of a run configuration file.
type File struct {
	Iterations            int           `yaml:"iterations" validate:"gte=2,lte=10000"`
	OutlierRemovalCount   int           `yaml:"outlier_removal_count" validate:"gte=0"`
	SignificanceThreshold float64       `yaml:"significance_threshold" validate:"gt=0,lte=1"`
	EffectSizeThreshold   float64       `yaml:"effect_size_threshold" validate:"gte=0"`
	ConfidenceLevel       float64       `yaml:"confidence_level" validate:"gt=0,lt=1"`
	RoundDelay            time.Duration `yaml:"round_delay" validate:"gte=0"`
	AnalysisParallelism   int           `yaml:"analysis_parallelism" validate:"gte=1,lte=64"`

	BaseURL      string `yaml:"base_url" validate:"omitempty,url"`
	TreatmentURL string `yaml:"treatment_url" validate:"omitempty,url"`

	// MetricPolarity maps metric names to "higher-is-worse" or
	// "lower-is-worse".
	MetricPolarity map[string]string `yaml:"metric_polarity,omitempty" validate:"dive,keys,required,endkeys,polarity"`

	HTTP HTTPSettings `yaml:"http"`

	Scenarios []Scenario `yaml:"scenarios" validate:"required,min=1,unique=Name,dive"`
}

// HTTPSettings apply to every http scenario.
type HTTPSettings struct {
	Method  string            `yaml:"method" validate:"omitempty,oneof=GET HEAD POST"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout time.Duration     `yaml:"timeout" validate:"gte=0"`
}

// Scenario is one entry of the scenarios list.
type Scenario struct {
	Name        string        `yaml:"name" validate:"required"`
	Description string        `yaml:"description,omitempty"`
	Kind        string        `yaml:"kind"`
	Path        string        `yaml:"path,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty" validate:"gte=0"`
	Command     []string      `yaml:"command,omitempty" validate:"required_if=Kind command"`
	WorkDir     string        `yaml:"work_dir,omitempty"`
}

// Default returns a File holding the comparison defaults and no scenarios.
func Default() File {
	d := compare.DefaultComparisonConfig()
	return File{
		Iterations:            d.Iterations,
		OutlierRemovalCount:   d.OutlierRemovalCount,
		SignificanceThreshold: d.SignificanceThreshold,
		EffectSizeThreshold:   d.EffectSizeThreshold,
		ConfidenceLevel:       d.ConfidenceLevel,
		RoundDelay:            d.RoundDelay,
		AnalysisParallelism:   d.AnalysisParallelism,
		HTTP: HTTPSettings{
			Method:  "GET",
			Timeout: 30 * time.Second,
		},
	}
}

// =============================================================================
// Loading
// =============================================================================

// Load reads and parses a run file.
//
// Inputs:
//
//	path - Path to a YAML file no larger than MaxFileSize.
//
// Outputs:
//
//	*File - The validated configuration.
//	error - Read failures, or ErrInvalidConfig / ErrUnknownScenarioKind.
func Load(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		configLoadErrors.WithLabelValues("read").Inc()
		return nil, fmt.Errorf("reading run config: %w", err)
	}
	if info.Size() > MaxFileSize {
		configLoadErrors.WithLabelValues("read").Inc()
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrInvalidConfig, path, info.Size(), MaxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		configLoadErrors.WithLabelValues("read").Inc()
		return nil, fmt.Errorf("reading run config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML. Unknown keys are rejected. Omitted
// values keep the defaults from Default.
func Parse(data []byte) (*File, error) {
	f := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		configLoadErrors.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	for i := range f.Scenarios {
		s := &f.Scenarios[i]
		s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
		if s.Kind == "" {
			s.Kind = KindHTTP
		}
	}
	f.HTTP.Method = strings.ToUpper(f.HTTP.Method)

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks struct tags and scenario kinds.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		configLoadErrors.WithLabelValues("validate").Inc()
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, s := range f.Scenarios {
		if s.Kind != KindHTTP && s.Kind != KindCommand {
			configLoadErrors.WithLabelValues("validate").Inc()
			return fmt.Errorf("%w: %q in scenario %s", ErrUnknownScenarioKind, s.Kind, s.Name)
		}
	}
	return nil
}

// =============================================================================
// Conversion
// =============================================================================

// ComparisonConfig converts the file into a compare.ComparisonConfig.
func (f *File) ComparisonConfig() (compare.ComparisonConfig, error) {
	cfg := compare.ComparisonConfig{
		Iterations:            f.Iterations,
		OutlierRemovalCount:   f.OutlierRemovalCount,
		SignificanceThreshold: f.SignificanceThreshold,
		EffectSizeThreshold:   f.EffectSizeThreshold,
		ConfidenceLevel:       f.ConfidenceLevel,
		RoundDelay:            f.RoundDelay,
		AnalysisParallelism:   f.AnalysisParallelism,
	}

	if len(f.MetricPolarity) > 0 {
		cfg.MetricPolarity = make(map[string]stats.Polarity, len(f.MetricPolarity))
		for metric, raw := range f.MetricPolarity {
			p, err := stats.ParsePolarity(raw)
			if err != nil {
				return compare.ComparisonConfig{}, fmt.Errorf("%w: metric %s: %v", ErrInvalidConfig, metric, err)
			}
			cfg.MetricPolarity[metric] = p
		}
	}

	for _, s := range f.Scenarios {
		cfg.Scenarios = append(cfg.Scenarios, compare.TestScenario{
			Name:        s.Name,
			Description: s.Description,
			Path:        s.Path,
			Timeout:     s.Timeout,
		})
	}
	return cfg, nil
}

// Executor builds the executor that measures every scenario of the file.
// HTTP scenarios share one executor; command scenarios get their own argv.
func (f *File) Executor(logger *slog.Logger) (compare.ScenarioExecutor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	httpOpts := []executors.HTTPOption{
		executors.WithMethod(f.HTTP.Method),
		executors.WithHTTPLogger(logger),
	}
	if f.HTTP.Timeout > 0 {
		httpOpts = append(httpOpts, executors.WithTimeout(f.HTTP.Timeout))
	}
	for k, v := range f.HTTP.Headers {
		httpOpts = append(httpOpts, executors.WithHeader(k, v))
	}

	routes := make(map[string]compare.ScenarioExecutor, len(f.Scenarios))
	var httpExec *executors.HTTPExecutor
	for _, s := range f.Scenarios {
		switch s.Kind {
		case KindHTTP:
			if httpExec == nil {
				httpExec = executors.NewHTTPExecutor(httpOpts...)
			}
			routes[s.Name] = httpExec
		case KindCommand:
			routes[s.Name] = executors.NewCommandExecutor(s.Command,
				executors.WithWorkDir(s.WorkDir),
				executors.WithCommandLogger(logger),
			)
		default:
			return nil, fmt.Errorf("%w: %q in scenario %s", ErrUnknownScenarioKind, s.Kind, s.Name)
		}
	}
	return executors.NewRouter(routes), nil
}
