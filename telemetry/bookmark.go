package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFlockFormed      BookmarkType = "flock_formed"
	BookmarkFlockScattered   BookmarkType = "flock_scattered"
	BookmarkContactSpike     BookmarkType = "contact_spike"
	BookmarkObstaclesRebuilt BookmarkType = "obstacles_rebuilt"
	BookmarkStableFlock      BookmarkType = "stable_flock"
)

// Thresholds for bookmark detection.
const (
	formedPolarization = 0.9
	stablePolarization = 0.8
	scatteredFraction  = 0.3
	stableWindows      = 5
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int32        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects notable changes in flock structure between
// stats windows.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	stableWindowsCount int // consecutive windows of steady alignment and spread
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for stable flock detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		for _, check := range []func(WindowStats) *Bookmark{
			bd.checkFlockFormed,
			bd.checkFlockScattered,
			bd.checkContactSpike,
			bd.checkObstaclesRebuilt,
			bd.checkStableFlock,
		} {
			if b := check(stats); b != nil {
				bookmarks = append(bookmarks, *b)
			}
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

// getHistory returns the stored windows oldest first.
func (bd *BookmarkDetector) getHistory() []WindowStats {
	if !bd.historyFull {
		return bd.history[:bd.historyIdx]
	}
	out := make([]WindowStats, 0, bd.historySize)
	out = append(out, bd.history[bd.historyIdx:]...)
	return append(out, bd.history[:bd.historyIdx]...)
}

func (bd *BookmarkDetector) previous() WindowStats {
	h := bd.getHistory()
	return h[len(h)-1]
}

func isolatedFraction(s WindowStats) float64 {
	if s.Agents == 0 {
		return 0
	}
	return float64(s.Isolated) / float64(s.Agents)
}

func (bd *BookmarkDetector) checkFlockFormed(stats WindowStats) *Bookmark {
	prev := bd.previous()
	if prev.Polarization >= formedPolarization || stats.Polarization < formedPolarization {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkFlockFormed,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Polarization rose from %.2f to %.2f", prev.Polarization, stats.Polarization),
	}
}

func (bd *BookmarkDetector) checkFlockScattered(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += isolatedFraction(h)
	}
	avg := total / float64(len(history))

	frac := isolatedFraction(stats)
	if frac > scatteredFraction && frac > avg*2 {
		return &Bookmark{
			Type:        BookmarkFlockScattered,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%.0f%% of agents isolated (average %.0f%%)", frac*100, avg*100),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkContactSpike(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 || stats.ProbeContacts < 3 {
		return nil
	}

	var total int
	for _, h := range history {
		total += h.ProbeContacts
	}
	avg := float64(total) / float64(len(history))

	if float64(stats.ProbeContacts) > avg*2 {
		return &Bookmark{
			Type:        BookmarkContactSpike,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d probe contacts, %.1fx average (%.1f)", stats.ProbeContacts, float64(stats.ProbeContacts)/max(avg, 1), avg),
		}
	}
	return nil
}

// checkObstaclesRebuilt reports reloads; the initial build falls in the
// first window, which is never checked.
func (bd *BookmarkDetector) checkObstaclesRebuilt(stats WindowStats) *Bookmark {
	if stats.IndexBuilds == 0 {
		return nil
	}
	prev := bd.previous()
	return &Bookmark{
		Type:        BookmarkObstaclesRebuilt,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Obstacle probes %d -> %d", prev.Probes, stats.Probes),
	}
}

func (bd *BookmarkDetector) checkStableFlock(stats WindowStats) *Bookmark {
	if stats.Agents == 0 || stats.Polarization < stablePolarization {
		bd.stableWindowsCount = 0
		return nil
	}

	history := bd.getHistory()
	if len(history) < 4 {
		return nil
	}

	recent := history[len(history)-4:]
	var sum float64
	for _, h := range recent {
		sum += h.Spread
	}
	mean := sum / 4

	var variance float64
	for _, h := range recent {
		d := h.Spread - mean
		variance += d * d
	}
	variance /= 4

	// CV^2 < 0.04 means CV < 0.2
	if mean > 0 && variance/(mean*mean) < 0.04 {
		bd.stableWindowsCount++
	} else {
		bd.stableWindowsCount = 0
	}

	if bd.stableWindowsCount == stableWindows { // trigger exactly once
		return &Bookmark{
			Type:        BookmarkStableFlock,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Aligned flock (polarization %.2f, spread %.2f) over %d+ windows", stats.Polarization, stats.Spread, stableWindows),
		}
	}
	return nil
}
