// Package features encodes raw applicant profiles into oracle-ready feature records.
package features

import (
	"fmt"
	"os"
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
	"gopkg.in/yaml.v3"
)

// CategoricalFields lists the fields encoded through the vocabulary, in schema order.
var CategoricalFields = []string{
	domain.FeatureAgeGroup,
	domain.FeatureGender,
	domain.FeatureRegion,
	domain.FeatureEmploymentStatus,
	domain.FeatureEducationGrade,
	domain.FeatureLearningAdaptability,
	domain.FeatureSupportServicesUsage,
	domain.FeaturePsychosocialSupport,
	domain.FeatureRepaymentHistory,
}

// Vocabulary holds one fixed label-to-code table per categorical field.
// It is immutable once built and safe for concurrent use.
type Vocabulary struct {
	tables map[string]map[string]int
}

// DefaultVocabulary returns the encoding the bundled model was trained with.
// Codes follow the lexicographic order of the training labels.
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{tables: map[string]map[string]int{
		domain.FeatureAgeGroup: {
			"18-24": 0, "25-34": 1, "35-44": 2, "45+": 3,
		},
		domain.FeatureGender: {
			"Female": 0, "Male": 1,
		},
		domain.FeatureRegion: {
			"Rural": 0, "Suburban": 1, "Urban": 2,
		},
		domain.FeatureEmploymentStatus: {
			"Full-time": 0, "Part-time": 1, "Self-employed": 2, "Unemployed": 3,
		},
		domain.FeatureEducationGrade: {
			"A": 0, "A-": 1, "B": 2, "B+": 3, "B-": 4, "C": 5,
			"C+": 6, "C-": 7, "D": 8, "D+": 9, "D-": 10, "E": 11,
		},
		domain.FeatureLearningAdaptability: {
			"High": 0, "Low": 1, "Moderate": 2,
		},
		domain.FeatureSupportServicesUsage: {
			"No": 0, "Yes": 1,
		},
		domain.FeaturePsychosocialSupport: {
			"High": 0, "Low": 1, "Moderate": 2,
		},
		domain.FeatureRepaymentHistory: {
			domain.RepaymentAverage: 0, domain.RepaymentGood: 1, domain.RepaymentPoor: 2,
		},
	}}
}

// LoadVocabulary reads a YAML vocabulary file. An empty path returns the default.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ConfigError("read vocabulary %s: %v", path, err)
	}
	return ParseVocabulary(data)
}

// ParseVocabulary decodes and validates a YAML vocabulary of the form
// field -> label -> code.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var raw map[string]map[string]int
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, domain.ConfigError("parse vocabulary: %v", err)
	}

	v := &Vocabulary{tables: make(map[string]map[string]int, len(CategoricalFields))}
	for _, field := range CategoricalFields {
		table, ok := raw[field]
		if !ok || len(table) == 0 {
			return nil, domain.ConfigError("vocabulary: field %s is missing", field)
		}
		seen := make(map[int]string, len(table))
		copied := make(map[string]int, len(table))
		for label, code := range table {
			if label == "" {
				return nil, domain.ConfigError("vocabulary: empty label in %s", field)
			}
			if code < 0 {
				return nil, domain.ConfigError("vocabulary: negative code %d for %s/%s", code, field, label)
			}
			if other, dup := seen[code]; dup {
				return nil, domain.ConfigError("vocabulary: %s and %s share code %d in %s", other, label, code, field)
			}
			seen[code] = label
			copied[label] = code
		}
		v.tables[field] = copied
	}

	for field := range raw {
		if _, ok := v.tables[field]; !ok {
			return nil, domain.ConfigError("vocabulary: unknown field %s", field)
		}
	}
	return v, nil
}

// Code returns the registered code of value for field.
func (v *Vocabulary) Code(field, value string) (int, error) {
	table, ok := v.tables[field]
	if !ok {
		return 0, fmt.Errorf("%w: no vocabulary for %s", domain.ErrConfiguration, field)
	}
	code, ok := table[value]
	if !ok {
		return 0, &domain.UnknownCategoryError{Field: field, Value: value}
	}
	return code, nil
}

// Labels returns the labels of field ordered by code.
func (v *Vocabulary) Labels(field string) []string {
	table := v.tables[field]
	labels := make([]string, 0, len(table))
	for label := range table {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		return table[labels[i]] < table[labels[j]]
	})
	return labels
}

// Snapshot returns every field's labels ordered by code.
func (v *Vocabulary) Snapshot() map[string][]string {
	out := make(map[string][]string, len(v.tables))
	for _, field := range CategoricalFields {
		out[field] = v.Labels(field)
	}
	return out
}
