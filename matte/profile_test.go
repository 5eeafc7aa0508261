package matte

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRule_Match(t *testing.T) {
	t.Parallel()

	std := Standard().Direct
	agg := Aggressive().Direct

	tests := []struct {
		name    string
		rule    Rule
		r, g, b uint8
		want    bool
	}{
		{"pure white", std[0], 241, 241, 241, true},
		{"pure white boundary", std[0], 240, 255, 255, false},
		{"bright flat", std[1], 235, 230, 215, true},
		{"bright flat too colourful", std[1], 255, 240, 200, false},
		{"light gray", std[2], 210, 205, 200, true},
		{"light gray boundary brightness", std[2], 200, 200, 200, false},
		{"tinted white", std[3], 255, 235, 215, true},
		{"tinted white rg too far", std[3], 255, 229, 240, false},
		{"cream", agg[4], 240, 220, 180, true},
		{"cream not warm", agg[4], 180, 220, 240, false},
		{"pastel", agg[5], 250, 190, 200, true},
		{"pastel dark channel", agg[5], 255, 255, 150, false},
		{"empty rule matches everything", Rule{}, 0, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Match(tt.r, tt.g, tt.b))
		})
	}
}

func TestProfiles_AggressiveDominatesStandard(t *testing.T) {
	t.Parallel()

	std, agg := Standard(), Aggressive()
	require.GreaterOrEqual(t, len(agg.Direct), len(std.Direct))

	// 每条 standard 规则在 aggressive 中都有更宽松的对应规则
	for i, r := range std.Direct {
		a := agg.Direct[i]
		assert.Equal(t, r.Name, a.Name)
		assert.LessOrEqual(t, a.MinChannel, r.MinChannel)
		assert.LessOrEqual(t, a.MinBrightness, r.MinBrightness)
		assert.GreaterOrEqual(t, a.MaxRange, r.MaxRange)
		assert.GreaterOrEqual(t, a.MaxRG, r.MaxRG)
		assert.GreaterOrEqual(t, a.MaxGB, r.MaxGB)
	}
	assert.LessOrEqual(t, agg.Erosion[0].MinBrightness, std.Erosion[0].MinBrightness)
	assert.GreaterOrEqual(t, agg.Erosion[0].MaxRange, std.Erosion[0].MaxRange)
	assert.LessOrEqual(t, agg.FrameThreshold, std.FrameThreshold)
	assert.LessOrEqual(t, agg.RunFraction, std.RunFraction)
	assert.Equal(t, std.EdgeCutoff, agg.EdgeCutoff)
	assert.Equal(t, std.Cleanup, agg.Cleanup)
	assert.Nil(t, std.Sweep)
	assert.NotNil(t, agg.Sweep)
}

func TestProfileByName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"standard", StandardName, false},
		{"", StandardName, false},
		{"aggressive", AggressiveName, false},
		{"gentle", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ProfileByName(tt.name)
			if tt.wantErr {
				assert.EqualError(t, err, "unknown profile: "+tt.name)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name)
		})
	}

	assert.Equal(t, AggressiveName, ProfileFor(true).Name)
	assert.Equal(t, StandardName, ProfileFor(false).Name)
}
