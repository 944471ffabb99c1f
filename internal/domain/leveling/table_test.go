package leveling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable_FlatProgression(t *testing.T) {
	table := Default()

	assert.Equal(t, Info{Level: 1, ExpIntoLevel: 0, ExpToNextLevel: 200}, table.Of(0))
	assert.Equal(t, Info{Level: 1, ExpIntoLevel: 199, ExpToNextLevel: 1}, table.Of(199))
	assert.Equal(t, Info{Level: 2, ExpIntoLevel: 0, ExpToNextLevel: 200}, table.Of(200))
	assert.Equal(t, Info{Level: 3, ExpIntoLevel: 50, ExpToNextLevel: 150}, table.Of(450))
}

func TestTable_NegativeExpClampsToZero(t *testing.T) {
	table := Default()
	assert.Equal(t, table.Of(0), table.Of(-500))
}

func TestTable_LargeExpUsesRecurringDelta(t *testing.T) {
	table := Default()

	info := table.Of(200*1_000_000 + 7)
	assert.Equal(t, 1_000_001, info.Level)
	assert.Equal(t, int64(7), info.ExpIntoLevel)
	assert.False(t, info.IsMax)
}

func TestTable_TieredCurveWithCap(t *testing.T) {
	table, err := NewTable([]int64{200, 300, 1000, 1500, 2000}, 36)
	require.NoError(t, err)

	assert.Equal(t, 2, table.Of(200).Level)
	assert.Equal(t, 3, table.Of(500).Level)
	assert.Equal(t, 4, table.Of(1500).Level)
	assert.Equal(t, 5, table.Of(3000).Level)
	assert.Equal(t, 6, table.Of(5000).Level)
	assert.Equal(t, int64(65000), table.Threshold(36))

	top := table.Of(65000)
	assert.Equal(t, 36, top.Level)
	assert.True(t, top.IsMax)
	assert.Equal(t, int64(0), top.ExpToNextLevel)

	beyond := table.Of(90000)
	assert.Equal(t, 36, beyond.Level)
	assert.Equal(t, int64(25000), beyond.ExpIntoLevel)
	assert.Equal(t, int64(0), beyond.ExpToNextLevel)

	below := table.Of(64999)
	assert.Equal(t, 35, below.Level)
	assert.Equal(t, int64(1), below.ExpToNextLevel)
}

func TestTable_IsMonotonic(t *testing.T) {
	table, err := NewTable([]int64{100, 250, 400}, 0)
	require.NoError(t, err)

	prev := table.Of(0).Level
	for exp := int64(0); exp <= 5000; exp += 17 {
		lvl := table.Of(exp).Level
		assert.GreaterOrEqual(t, lvl, prev, "exp=%d", exp)
		prev = lvl
	}
}

func TestTable_LeveledUp(t *testing.T) {
	table := Default()

	assert.True(t, table.LeveledUp(0, 200))
	assert.False(t, table.LeveledUp(0, 199))
	assert.False(t, table.LeveledUp(210, 390))
	assert.True(t, table.LeveledUp(390, 410))

	capped, err := NewTable([]int64{200, 300}, 3)
	require.NoError(t, err)
	assert.True(t, capped.LeveledUp(400, 500))
	assert.False(t, capped.LeveledUp(500, 10_000))
}

func TestTable_ThresholdMatchesOf(t *testing.T) {
	table, err := NewTable([]int64{100, 250, 400}, 0)
	require.NoError(t, err)

	for level := 1; level <= 12; level++ {
		at := table.Threshold(level)
		assert.Equal(t, level, table.Of(at).Level, "level=%d", level)
		if level > 1 {
			assert.Equal(t, level-1, table.Of(at-1).Level, "level=%d", level)
		}
	}
}

func TestNewTable_RejectsInvalidDeltas(t *testing.T) {
	_, err := NewTable(nil, 0)
	assert.Error(t, err)

	_, err = NewTable([]int64{200, 0}, 0)
	assert.Error(t, err)

	_, err = NewTable([]int64{200}, -1)
	assert.Error(t, err)
}

func TestParseDeltas(t *testing.T) {
	deltas, err := ParseDeltas(" 200, 300 ,,1000")
	require.NoError(t, err)
	assert.Equal(t, []int64{200, 300, 1000}, deltas)

	_, err = ParseDeltas("200,abc")
	assert.Error(t, err)
}
