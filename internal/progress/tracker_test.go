package progress

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes float64
		want  string
	}{
		{0, "0B"},
		{1, "1B"},
		{1023, "1023B"},
		{1024, "1kB"},
		{1536, "1.5kB"},
		{1024 * 1024, "1MB"},
		{1.25 * 1024 * 1024 * 1024, "1.25GB"},
		{123456789, "117.74MB"},
		{5 * math.Pow(1024, 4), "5TB"},
		{2048 * math.Pow(1024, 4), "2048TB"},
		{0.5, "0.5B"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSize(tt.bytes), "FormatSize(%v)", tt.bytes)
	}
}

func TestFormatSizeNotANumber(t *testing.T) {
	assert.Equal(t, "", FormatSize(math.NaN()))
	assert.Equal(t, "", FormatSize(math.Inf(1)))
}

func TestItemLabel(t *testing.T) {
	it := Item{FileID: "config.json", Total: math.NaN()}
	assert.Equal(t, "config.json", it.Label())

	it.Total = 1536
	assert.Equal(t, "config.json (1.5kB)", it.Label())

	it.Metadata = map[string]any{"name": "qwen3"}
	assert.Equal(t, "qwen3 config.json (1.5kB)", it.Label())
}

func TestTrackerLifecycle(t *testing.T) {
	var tr Tracker
	tr, err := tr.Initiate("a", nil)
	require.NoError(t, err)
	tr, err = tr.Initiate("b", map[string]any{"name": "model"})
	require.NoError(t, err)

	a, ok := tr.Get("a")
	require.True(t, ok)
	assert.Equal(t, 0.0, a.Progress)
	assert.True(t, math.IsNaN(a.Total))

	tr = tr.Update("b", 40, 2048)
	b, _ := tr.Get("b")
	assert.Equal(t, 40.0, b.Progress)
	assert.Equal(t, 2048.0, b.Total)
	assert.InDelta(t, 0.4, b.Fraction(), 1e-9)

	tr = tr.Complete("a")
	assert.Equal(t, 1, tr.Len())
	_, ok = tr.Get("a")
	assert.False(t, ok)
}

func TestTrackerDuplicateInitiate(t *testing.T) {
	tr, _ := Tracker{}.Initiate("a", nil)
	tr = tr.Update("a", 70, 100)

	next, err := tr.Initiate("a", nil)
	assert.ErrorIs(t, err, ErrDuplicateFile)
	assert.Equal(t, 1, next.Len())
	it, _ := next.Get("a")
	assert.Equal(t, 70.0, it.Progress)
}

func TestTrackerUnknownFile(t *testing.T) {
	tr, _ := Tracker{}.Initiate("a", nil)
	tr = tr.Update("a", 10, 100)

	for _, next := range []Tracker{tr.Update("zzz", 50, 10), tr.Complete("zzz")} {
		require.Equal(t, 1, next.Len())
		it, ok := next.Get("a")
		require.True(t, ok)
		assert.Equal(t, 10.0, it.Progress)
		_, ok = next.Get("zzz")
		assert.False(t, ok)
	}
}

func TestUpdateAfterCompleteStaysAbsent(t *testing.T) {
	tr, _ := Tracker{}.Initiate("a", nil)
	tr = tr.Complete("a").Update("a", 90, 100)
	_, ok := tr.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, tr.Len())
}

func TestTrackerIsImmutable(t *testing.T) {
	tr, _ := Tracker{}.Initiate("a", nil)
	updated := tr.Update("a", 50, 10)

	orig, _ := tr.Get("a")
	assert.Equal(t, 0.0, orig.Progress)

	items := updated.Items()
	items[0].Progress = 99
	cur, _ := updated.Get("a")
	assert.Equal(t, 50.0, cur.Progress)
}
