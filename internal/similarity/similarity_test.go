package similarity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a1b", Normalize(" A-1, B "))
	assert.Equal(t, Normalize("a1b"), Normalize(" A-1, B "))
	assert.Equal(t, "flat4bmgroad", Normalize("Flat 4B,\nM.G. Road"))
	assert.Equal(t, "", Normalize(" -,. "))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("Ravi Kumar", "ravi   kumar."))
	assert.Equal(t, 0.0, Ratio("", "Ravi"))
	assert.Equal(t, 0.0, Ratio("--", "Ravi"))
	assert.Less(t, Ratio("Ravi Kumar", "Suresh Iyer"), 0.3)

	r := Ratio("Ravi Kumar", "Ravi Kumaar")
	assert.Greater(t, r, 0.7)
	assert.LessOrEqual(t, r, 1.0)

	assert.Equal(t, Ratio("night", "nacht"), Ratio("nacht", "night"))
}

func TestClassifyThresholdIsExclusive(t *testing.T) {
	s := NewScorer(0.7)
	assert.Equal(t, Mismatch, s.Classify(0.7))
	assert.Equal(t, Match, s.Classify(0.71))
	assert.Equal(t, Mismatch, s.Classify(0))
	assert.Equal(t, Match, s.Classify(1))
}

func TestNewScorerDefaults(t *testing.T) {
	assert.Equal(t, DefaultMatchThreshold, NewScorer(0).MatchThreshold)
	assert.Equal(t, DefaultMatchThreshold, NewScorer(3).MatchThreshold)
	assert.Equal(t, 0.9, NewScorer(0.9).MatchThreshold)
}

func TestScore(t *testing.T) {
	s := NewScorer(DefaultMatchThreshold)
	tests := []struct {
		name      string
		user      string
		extracted string
		want      Verdict
	}{
		{"nothing extracted", "15000", "", NotFound},
		{"nothing at all", "", "", NotFound},
		{"extracted without user data", "", "15000", FoundOnly},
		{"whitespace user data", "   ", "15000", FoundOnly},
		{"exact", "15000", "15000", Match},
		{"formatting differs", "Ravi Kumar", "RAVI  KUMAR", Match},
		{"different value", "12000", "15000", Mismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Score(tt.user, tt.extracted))
		})
	}
}

func TestVerdictFails(t *testing.T) {
	assert.True(t, Mismatch.Fails(false))
	assert.True(t, Mismatch.Fails(true))
	assert.True(t, NotFound.Fails(true))
	assert.False(t, NotFound.Fails(false))
	assert.False(t, Match.Fails(true))
	assert.False(t, FoundOnly.Fails(false))
}

func TestVerdictJSON(t *testing.T) {
	b, err := json.Marshal(map[string]Verdict{"status": Match})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"✅ Match"}`, string(b))

	for v, want := range map[Verdict]string{
		Mismatch:  "❌ Mismatch",
		NotFound:  "❌ Not Found",
		FoundOnly: "ℹ️ Found",
	} {
		assert.Equal(t, want, v.String())
	}
}
