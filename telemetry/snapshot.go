package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the observable state of a run at one tick.
type Snapshot struct {
	Version  int    `json:"version"`
	RunID    string `json:"run_id"`
	Scenario string `json:"scenario"`

	Tick int `json:"tick"`

	Player PlayerState `json:"player"`
	NPCs   []NPCState  `json:"npcs"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// PlayerState holds the player's state.
type PlayerState struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Mode   string  `json:"mode"`
	Noise  float64 `json:"noise"`
	Hiding bool    `json:"hiding"`
	Dead   bool    `json:"dead"`
}

// NPCState holds one NPC's state.
type NPCState struct {
	Name      string `json:"name"`
	Archetype string `json:"archetype"`

	// Position and movement
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	VelX        float64 `json:"vel_x"`
	VelY        float64 `json:"vel_y"`
	Facing      float64 `json:"facing"`
	FacingValid bool    `json:"facing_valid"`
	Animation   string  `json:"animation"`

	// Behavior
	State          string  `json:"state"`
	UsingAgent     bool    `json:"using_agent"`
	MoveTargetX    float64 `json:"move_target_x"`
	MoveTargetY    float64 `json:"move_target_y"`
	PatrolIndex    int     `json:"patrol_index"`
	HasHeardPlayer bool    `json:"has_heard_player"`
	PlayerInSight  bool    `json:"player_in_sight"`
	TargetIsDead   bool    `json:"target_is_dead"`

	Lifetime *LifetimeStats `json:"lifetime,omitempty"`
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}
	path := filepath.Join(dir, name+".json")

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}

	return &snapshot, nil
}
