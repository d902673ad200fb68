package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedScenario(t *testing.T) {
	sc, err := LoadScenario("")
	require.NoError(t, err)
	require.NoError(t, sc.Validate())

	assert.Equal(t, "storeroom", sc.Name)
	assert.NotEmpty(t, sc.Obstacles)
	assert.Len(t, sc.Routes["east_hall"], 4)
	assert.Len(t, sc.NPCs, 3)
	assert.Greater(t, sc.ScriptLength(), 0)

	cfg, err := Load("")
	require.NoError(t, err)
	for _, npc := range sc.NPCs {
		_, ok := cfg.Archetype(npc.Archetype)
		assert.True(t, ok, "npc %s uses unknown archetype %s", npc.Name, npc.Archetype)
	}
}

func TestScenarioValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr bool
	}{
		{"valid", func(*Scenario) {}, false},
		{"zero world", func(s *Scenario) { s.World.Width = 0 }, true},
		{"inverted box", func(s *Scenario) {
			s.Obstacles = append(s.Obstacles, ObstacleSpec{Name: "bad", Kind: ObstacleBox, Min: Point{2, 2}, Max: Point{1, 1}})
		}, true},
		{"unknown kind", func(s *Scenario) {
			s.Obstacles = append(s.Obstacles, ObstacleSpec{Name: "blob", Kind: "circle"})
		}, true},
		{"unknown route", func(s *Scenario) {
			s.NPCs = append(s.NPCs, NPCSpec{Name: "lost", Archetype: "guard", Route: "nowhere"})
		}, true},
		{"negative script", func(s *Scenario) {
			s.Player.Script = append(s.Player.Script, ScriptStep{Ticks: -1})
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := LoadScenario("")
			require.NoError(t, err)
			tt.mutate(sc)
			if tt.wantErr {
				assert.Error(t, sc.Validate())
			} else {
				assert.NoError(t, sc.Validate())
			}
		})
	}
}

func TestLoadScenarioFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.yaml")
	data := []byte(`
name: tiny
world: { width: 4, height: 4 }
routes:
  loop: [{ x: 1, y: 1 }, { x: 3, y: 3 }]
npcs:
  - { name: a, archetype: guard, position: { x: 1, y: 1 }, route: loop }
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	require.NoError(t, sc.Validate())
	assert.Equal(t, Point{3, 3}, sc.Routes["loop"][1])
	assert.Equal(t, 0, sc.ScriptLength())
}
