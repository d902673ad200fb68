package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFirstSighting BookmarkType = "first_sighting"
	BookmarkPlayerDown    BookmarkType = "player_down"
	BookmarkAlertSpike    BookmarkType = "alert_spike"
	BookmarkNavDegraded   BookmarkType = "nav_degraded"
	BookmarkAllClear      BookmarkType = "all_clear"
)

// calmWindows is how many quiet windows after an alert count as all clear.
const calmWindows = 5

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int          `csv:"tick"`
	Description string       `csv:"description"`
}

// LogValue implements slog.LogValuer for structured logging.
func (b Bookmark) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("type", string(b.Type)),
		slog.Int("tick", b.Tick),
		slog.String("description", b.Description),
	)
}

// BookmarkDetector detects notable moments in a run from window stats.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	sighted      bool
	playerDown   bool
	navDegraded  bool
	alertedSince bool // an alert happened since the last all clear
	calmCount    int  // consecutive windows without alerts or engagement
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 3 {
		historySize = 3 // minimum for a meaningful rolling average
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	for _, check := range []func(WindowStats) *Bookmark{
		bd.checkFirstSighting,
		bd.checkPlayerDown,
		bd.checkAlertSpike,
		bd.checkNavDegraded,
		bd.checkAllClear,
	} {
		if b := check(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkFirstSighting(stats WindowStats) *Bookmark {
	if bd.sighted || stats.Sightings == 0 {
		return nil
	}
	bd.sighted = true
	return &Bookmark{
		Type:        BookmarkFirstSighting,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Player first spotted (%d sightings in window)", stats.Sightings),
	}
}

func (bd *BookmarkDetector) checkPlayerDown(stats WindowStats) *Bookmark {
	if bd.playerDown || !stats.PlayerDead {
		return nil
	}
	bd.playerDown = true
	return &Bookmark{
		Type:        BookmarkPlayerDown,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Player dead, %d NPCs dropped pursuit", stats.TargetLost),
	}
}

func (bd *BookmarkDetector) checkAlertSpike(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total int
	for _, h := range history {
		total += h.Alerted()
	}
	avg := float64(total) / float64(len(history))

	current := stats.Alerted()
	if current >= 3 && float64(current) > avg*2.0 {
		return &Bookmark{
			Type:        BookmarkAlertSpike,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d alerts against a rolling average of %.1f", current, avg),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkNavDegraded(stats WindowStats) *Bookmark {
	degraded := stats.NavFallbacks >= 3 || (stats.PathFailed >= 3 && stats.PathFailed > stats.PathSolved)
	if !degraded {
		bd.navDegraded = false
		return nil
	}
	if bd.navDegraded {
		return nil
	}
	bd.navDegraded = true
	return &Bookmark{
		Type:        BookmarkNavDegraded,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d path failures, %d fallbacks to direct movement", stats.PathFailed, stats.NavFallbacks),
	}
}

func (bd *BookmarkDetector) checkAllClear(stats WindowStats) *Bookmark {
	if stats.Alerted() > 0 || stats.EngageShare > 0 {
		bd.alertedSince = true
		bd.calmCount = 0
		return nil
	}
	if !bd.alertedSince {
		return nil
	}

	bd.calmCount++
	if bd.calmCount < calmWindows {
		return nil
	}
	bd.alertedSince = false
	bd.calmCount = 0
	return &Bookmark{
		Type:        BookmarkAllClear,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("No alerts for %d windows", calmWindows),
	}
}
