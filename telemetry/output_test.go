package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/prowl/config"
	"github.com/pthm-cable/prowl/systems"
)

func TestNewOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	require.NoError(t, err)
	assert.Nil(t, om)

	// A nil manager swallows every write
	assert.NoError(t, om.WriteTelemetry(WindowStats{}))
	assert.NoError(t, om.WriteEvents([]Event{{}}))
	assert.NoError(t, om.WriteRunInfo(RunInfo{}))
	assert.Equal(t, "", om.Dir())
	assert.NoError(t, om.Close())
}

func TestOutputManagerWritesCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	require.NoError(t, err)

	require.NoError(t, om.WriteTelemetry(WindowStats{WindowEndTick: 300, Sightings: 1}))
	require.NoError(t, om.WriteTelemetry(WindowStats{WindowEndTick: 600, NoiseAlerts: 2}))

	tr := systems.Transition{Reason: systems.CondHearNoise}
	require.NoError(t, om.WriteEvents([]Event{NewTransitionEvent(7, "guard_1", tr)}))
	require.NoError(t, om.WriteTrace([]TraceRecord{{Tick: 30, NPC: "guard_1", State: "Idle"}}))
	require.NoError(t, om.WriteBookmark(Bookmark{Type: BookmarkFirstSighting, Tick: 300}))
	require.NoError(t, om.Close())

	f, err := os.Open(filepath.Join(dir, "telemetry.csv"))
	require.NoError(t, err)
	defer f.Close()

	var rows []WindowStats
	require.NoError(t, gocsv.UnmarshalFile(f, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, 300, rows[0].WindowEndTick)
	assert.Equal(t, 2, rows[1].NoiseAlerts)

	events, err := os.ReadFile(filepath.Join(dir, "events.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(events)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "tick,type,npc"))
	assert.Contains(t, lines[1], "hear_noise")
}

func TestOutputManagerRunFiles(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	require.NoError(t, err)
	t.Cleanup(func() { om.Close() })

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.NoError(t, om.WriteConfig(cfg))

	info := NewRunInfo("storeroom", 3, 1000, cfg.Simulation.DT)
	_, err = uuid.Parse(info.ID)
	require.NoError(t, err, "run ID should be a UUID")
	require.NoError(t, om.WriteRunInfo(info))

	data, err := os.ReadFile(filepath.Join(dir, "run.yaml"))
	require.NoError(t, err)
	var got RunInfo
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, info.ID, got.ID)
	assert.Equal(t, 3, got.NPCs)
	assert.True(t, info.StartedAt.Equal(got.StartedAt))
	assert.WithinDuration(t, time.Now(), got.StartedAt, time.Minute)

	_, err = os.Stat(filepath.Join(dir, "config.yaml"))
	assert.NoError(t, err)

	require.NoError(t, om.WriteSummaries([]NPCSummary{{NPC: "guard_1", Archetype: "guard"}}))
	_, err = os.Stat(filepath.Join(dir, "npc_summary.csv"))
	assert.NoError(t, err)

	path, err := om.WriteSnapshot(testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "snapshots"), filepath.Dir(path))
}
