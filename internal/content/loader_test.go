package content

import (
	"os"
	"path/filepath"
	"testing"

	"replaylab/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenario = `{
  "id": "s1",
  "symbol": "DEMO",
  "chart_timeframe": "1m",
  "bars": [
    {"time": 1716552000000, "open": 100, "high": 101, "low": 99, "close": 100.5, "volume": 1000},
    {"time": 1716552060000, "open": 100.5, "high": 102, "low": 100, "close": 101.5, "volume": 1200},
    {"time": 1716552120000, "open": 101.5, "high": 103, "low": 101, "close": 102.5, "volume": 900}
  ],
  "decision_point": {"index": 1, "correct_action": "long"}
}`

func TestParseScenarioValid(t *testing.T) {
	sc, err := ParseScenario([]byte(validScenario))
	require.NoError(t, err)
	assert.Equal(t, "s1", sc.ID)
	assert.Equal(t, 1, sc.DecisionPoint.Index)
	assert.Equal(t, market.ActionLong, sc.DecisionPoint.CorrectAction)
}

func TestParseScenarioTimeBasedDecisionPoint(t *testing.T) {
	raw := `{
	  "id": "s2",
	  "symbol": "DEMO",
	  "bars": [
	    {"time": 1716552000000, "open": 100, "high": 101, "low": 99, "close": 100.5, "volume": 1000},
	    {"time": 1716552060000, "open": 100.5, "high": 102, "low": 100, "close": 101.5, "volume": 1200}
	  ],
	  "decision_point": {"time": 1716552060000, "correct_action": "short"}
	}`
	sc, err := ParseScenario([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 1, sc.DecisionPoint.Index)
}

func TestParseScenarioSchemaRejection(t *testing.T) {
	// 缺少 bars
	_, err := ParseScenario([]byte(`{"id":"x","symbol":"D","decision_point":{"index":0,"correct_action":"long"}}`))
	assert.Error(t, err)

	// decision_point 缺少 index 与 time
	_, err = ParseScenario([]byte(`{
	  "id": "x", "symbol": "D",
	  "bars": [{"time": 1, "open": 1, "high": 1, "low": 1, "close": 1, "volume": 0}],
	  "decision_point": {"correct_action": "long"}
	}`))
	assert.Error(t, err)
}

func TestParseScenarioRejectsBadBars(t *testing.T) {
	raw := `{
	  "id": "s3",
	  "symbol": "DEMO",
	  "bars": [
	    {"time": 2000, "open": 100, "high": 101, "low": 99, "close": 100, "volume": 10},
	    {"time": 1000, "open": 100, "high": 101, "low": 99, "close": 100, "volume": 10}
	  ],
	  "decision_point": {"index": 0, "correct_action": "wait"}
	}`
	_, err := ParseScenario([]byte(raw))
	assert.ErrorIs(t, err, market.ErrInvalidBarSequence)
}

func TestLoadScenarioDirSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.json"), []byte(validScenario), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"nope":`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("skip me"), 0o644))

	list, err := LoadScenarioDir(dir)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].ID)
}

func TestLibraryGetAndList(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s1.json"), []byte(validScenario), 0o644))

	lib, err := NewLibrary(dir, false)
	require.NoError(t, err)
	defer lib.Close()

	sc, ok := lib.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "DEMO", sc.Symbol)
	assert.Len(t, lib.List(), 1)

	_, ok = lib.Get("missing")
	assert.False(t, ok)
}
