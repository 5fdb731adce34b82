package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
)

type benchmarkFile struct {
	Benchmarks []benchmarkEntry `yaml:"benchmarks" validate:"required,min=1,dive"`
}

type benchmarkEntry struct {
	Code            string   `yaml:"code" validate:"required"`
	Name            string   `yaml:"name" validate:"required"`
	Category        string   `yaml:"category"`
	Platforms       []string `yaml:"platforms" validate:"required,min=1,unique,dive,required"`
	SearchQueries   []string `yaml:"searchQueries" validate:"required,min=1,dive,required"`
	PriceMin        float64  `yaml:"priceMin" validate:"gte=0"`
	PriceMax        float64  `yaml:"priceMax" validate:"gte=0"`
	ExcludeKeywords []string `yaml:"excludeKeywords"`
	ConditionFilter []string `yaml:"conditionFilter" validate:"dive,oneof=new refurbished used"`
	Methodology     string   `yaml:"methodology"`
	ExportName      string   `yaml:"exportName"`
}

// LoadBenchmarks returns the built-in benchmarks, or the ones defined in the
// YAML file at path when path is set
func LoadBenchmarks(path string) (*domain.BenchmarkSet, error) {
	if path == "" {
		return domain.NewBenchmarkSet(domain.DefaultBenchmarks())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read benchmarks file: %w", err)
	}

	return ParseBenchmarks(data)
}

// ParseBenchmarks decodes and validates a YAML benchmark definition
func ParseBenchmarks(data []byte) (*domain.BenchmarkSet, error) {
	var file benchmarkFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse benchmarks file: %w", err)
	}

	if err := validator.New().Struct(file); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("%w: %s failed on %q", domain.ErrInvalidBenchmark, verrs[0].Namespace(), verrs[0].Tag())
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidBenchmark, err)
	}

	configs := make([]domain.BenchmarkConfig, 0, len(file.Benchmarks))
	for _, entry := range file.Benchmarks {
		cfg, err := entry.toDomain()
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	return domain.NewBenchmarkSet(configs)
}

func (e benchmarkEntry) toDomain() (domain.BenchmarkConfig, error) {
	platforms := make([]domain.Platform, 0, len(e.Platforms))
	for _, p := range e.Platforms {
		platform, err := domain.ParsePlatform(p)
		if err != nil {
			return domain.BenchmarkConfig{}, fmt.Errorf("%w: %s: %v", domain.ErrInvalidBenchmark, e.Code, err)
		}
		platforms = append(platforms, platform)
	}

	conditions := make([]domain.Condition, 0, len(e.ConditionFilter))
	for _, c := range e.ConditionFilter {
		cond, err := domain.ParseCondition(c)
		if err != nil {
			return domain.BenchmarkConfig{}, fmt.Errorf("%w: %s: %v", domain.ErrInvalidBenchmark, e.Code, err)
		}
		conditions = append(conditions, cond)
	}

	return domain.BenchmarkConfig{
		Code:            e.Code,
		Name:            e.Name,
		Category:        e.Category,
		Platforms:       platforms,
		SearchQueries:   e.SearchQueries,
		PriceFilter:     domain.PriceBounds{Min: decimal.NewFromFloat(e.PriceMin), Max: decimal.NewFromFloat(e.PriceMax)},
		ExcludeKeywords: e.ExcludeKeywords,
		ConditionFilter: conditions,
		Methodology:     e.Methodology,
		ExportName:      e.ExportName,
	}, nil
}
