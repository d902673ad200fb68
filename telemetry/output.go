package telemetry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/prowl/config"
)

// RunInfo identifies one run in its output directory.
type RunInfo struct {
	ID        string    `yaml:"id"`
	Scenario  string    `yaml:"scenario"`
	StartedAt time.Time `yaml:"started_at"`
	NPCs      int       `yaml:"npcs"`
	MaxTicks  int       `yaml:"max_ticks"`
	DT        float64   `yaml:"dt"`
}

// NewRunInfo creates run metadata with a fresh run ID.
func NewRunInfo(scenario string, npcs, maxTicks int, dt float64) RunInfo {
	return RunInfo{
		ID:        uuid.NewString(),
		Scenario:  scenario,
		StartedAt: time.Now().UTC().Truncate(time.Second),
		NPCs:      npcs,
		MaxTicks:  maxTicks,
		DT:        dt,
	}
}

// csvFile appends records to a CSV file, writing the header once.
type csvFile struct {
	f             *os.File
	headerWritten bool
}

func (c *csvFile) write(records any) error {
	if !c.headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, c.f); err != nil {
			return err
		}
		c.headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, c.f)
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir       string
	telemetry csvFile
	events    csvFile
	trace     csvFile
	perf      csvFile
	bookmarks csvFile
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	files := []struct {
		name string
		dst  *csvFile
	}{
		{"telemetry.csv", &om.telemetry},
		{"events.csv", &om.events},
		{"trace.csv", &om.trace},
		{"perf.csv", &om.perf},
		{"bookmarks.csv", &om.bookmarks},
	}
	for _, file := range files {
		f, err := os.Create(filepath.Join(dir, file.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", file.name, err)
		}
		file.dst.f = f
	}

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteRunInfo saves run metadata to run.yaml.
func (om *OutputManager) WriteRunInfo(info RunInfo) error {
	if om == nil {
		return nil
	}
	data, err := yaml.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshaling run info: %w", err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, "run.yaml"), data, 0644); err != nil {
		return fmt.Errorf("writing run.yaml: %w", err)
	}
	return nil
}

// WriteTelemetry writes a window stats record to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats WindowStats) error {
	if om == nil {
		return nil
	}
	if err := om.telemetry.write([]WindowStats{stats}); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// WriteEvents writes events to events.csv.
func (om *OutputManager) WriteEvents(events []Event) error {
	if om == nil || len(events) == 0 {
		return nil
	}
	records := make([]EventRecord, len(events))
	for i, e := range events {
		records[i] = e.Record()
	}
	if err := om.events.write(records); err != nil {
		return fmt.Errorf("writing events: %w", err)
	}
	return nil
}

// WriteTrace writes sampled NPC rows to trace.csv.
func (om *OutputManager) WriteTrace(records []TraceRecord) error {
	if om == nil || len(records) == 0 {
		return nil
	}
	if err := om.trace.write(records); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int) error {
	if om == nil {
		return nil
	}
	if err := om.perf.write([]PerfStatsCSV{stats.ToCSV(windowEnd)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteBookmark writes a bookmark record to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	if err := om.bookmarks.write([]Bookmark{b}); err != nil {
		return fmt.Errorf("writing bookmark: %w", err)
	}
	return nil
}

// WriteSummaries writes per-NPC lifetime stats to npc_summary.csv.
func (om *OutputManager) WriteSummaries(summaries []NPCSummary) error {
	if om == nil || len(summaries) == 0 {
		return nil
	}
	f, err := os.Create(filepath.Join(om.dir, "npc_summary.csv"))
	if err != nil {
		return fmt.Errorf("creating npc_summary.csv: %w", err)
	}
	defer f.Close()

	if err := gocsv.Marshal(summaries, f); err != nil {
		return fmt.Errorf("writing npc summary: %w", err)
	}
	return nil
}

// WriteSnapshot saves a snapshot under the snapshots directory.
func (om *OutputManager) WriteSnapshot(snapshot *Snapshot) (string, error) {
	if om == nil || snapshot == nil {
		return "", nil
	}
	return SaveSnapshot(snapshot, filepath.Join(om.dir, "snapshots"))
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var errs []error
	for _, c := range []*csvFile{&om.telemetry, &om.events, &om.trace, &om.perf, &om.bookmarks} {
		if c.f == nil {
			continue
		}
		if err := c.f.Close(); err != nil {
			errs = append(errs, err)
		}
		c.f = nil
	}
	return errors.Join(errs...)
}
