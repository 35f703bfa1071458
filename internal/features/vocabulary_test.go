package features

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultVocabulary(t *testing.T) {
	v := DefaultVocabulary()

	assert.Equal(t, []string{"average", "good", "poor"}, v.Labels(domain.FeatureRepaymentHistory))
	assert.Equal(t, []string{"A", "A-", "B", "B+", "B-", "C", "C+", "C-", "D", "D+", "D-", "E"}, v.Labels(domain.FeatureEducationGrade))

	snap := v.Snapshot()
	assert.Len(t, snap, len(CategoricalFields))
}

func TestParseVocabulary(t *testing.T) {
	base := DefaultVocabulary()
	raw := make(map[string]map[string]int)
	for _, field := range CategoricalFields {
		raw[field] = base.tables[field]
	}

	t.Run("RoundTripsDefault", func(t *testing.T) {
		data, err := yaml.Marshal(raw)
		require.NoError(t, err)

		v, err := ParseVocabulary(data)
		require.NoError(t, err)
		code, err := v.Code(domain.FeatureRegion, "Urban")
		require.NoError(t, err)
		assert.Equal(t, 2, code)
	})

	t.Run("MissingField", func(t *testing.T) {
		_, err := ParseVocabulary([]byte("Gender:\n  Female: 0\n  Male: 1\n"))
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("DuplicateCode", func(t *testing.T) {
		broken := make(map[string]map[string]int)
		for k, v := range raw {
			broken[k] = v
		}
		broken[domain.FeatureGender] = map[string]int{"Female": 0, "Male": 0}
		data, err := yaml.Marshal(broken)
		require.NoError(t, err)

		_, err = ParseVocabulary(data)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("UnknownField", func(t *testing.T) {
		extra := make(map[string]map[string]int)
		for k, v := range raw {
			extra[k] = v
		}
		extra["Shoe_Size"] = map[string]int{"42": 0}
		data, err := yaml.Marshal(extra)
		require.NoError(t, err)

		_, err = ParseVocabulary(data)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("LoadFromFile", func(t *testing.T) {
		data, err := yaml.Marshal(raw)
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "vocab.yaml")
		require.NoError(t, os.WriteFile(path, data, 0o644))

		v, err := LoadVocabulary(path)
		require.NoError(t, err)
		assert.Equal(t, base.Snapshot(), v.Snapshot())
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadVocabulary(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}
