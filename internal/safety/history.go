package safety

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultHistoryCapacity = 1000

// Record is an immutable classification snapshot. Once appended it is
// owned by the History and never mutated.
type Record struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Level      Level     `json:"level"`
	Reading    Reading   `json:"reading"`
	Violations []string  `json:"violations"`
}

func NewRecord(level Level, reading Reading, violations []string) Record {
	copied := make([]string, len(violations))
	copy(copied, violations)
	return Record{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Level:      level,
		Reading:    reading.Clone(),
		Violations: copied,
	}
}

// Summary aggregates records over a time window. Percentages are 0.0
// when the window is empty.
type Summary struct {
	Total           int     `json:"total"`
	Normal          int     `json:"normal"`
	Warning         int     `json:"warning"`
	Danger          int     `json:"danger"`
	Critical        int     `json:"critical"`
	NormalPercent   float64 `json:"normal_percent"`
	WarningPercent  float64 `json:"warning_percent"`
	DangerPercent   float64 `json:"danger_percent"`
	CriticalPercent float64 `json:"critical_percent"`
}

// History is a bounded, append-only, chronological record store. When a
// Record would exceed the capacity the oldest entry is evicted, so the
// store behaves as a FIFO ring buffer. Record is the only mutating
// operation; Summary and RecentAlerts read a consistent snapshot.
type History struct {
	mu       sync.RWMutex
	capacity int
	records  []Record
	start    int
	size     int
	now      func() time.Time
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		capacity: capacity,
		records:  make([]Record, capacity),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (h *History) Record(rec Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.size == h.capacity {
		h.records[h.start] = rec
		h.start = (h.start + 1) % h.capacity
		return
	}
	h.records[(h.start+h.size)%h.capacity] = rec
	h.size++
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Snapshot returns all records oldest-first.
func (h *History) Snapshot() []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshotLocked()
}

func (h *History) snapshotLocked() []Record {
	out := make([]Record, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.records[(h.start+i)%h.capacity]
	}
	return out
}

func (h *History) Summary(window time.Duration) Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cutoff := h.now().Add(-window)
	var summary Summary
	for i := 0; i < h.size; i++ {
		rec := h.records[(h.start+i)%h.capacity]
		if rec.Timestamp.Before(cutoff) {
			continue
		}
		summary.Total++
		switch rec.Level {
		case LevelNormal:
			summary.Normal++
		case LevelWarning:
			summary.Warning++
		case LevelDanger:
			summary.Danger++
		case LevelCritical:
			summary.Critical++
		}
	}
	if summary.Total > 0 {
		total := float64(summary.Total)
		summary.NormalPercent = float64(summary.Normal) / total * 100
		summary.WarningPercent = float64(summary.Warning) / total * 100
		summary.DangerPercent = float64(summary.Danger) / total * 100
		summary.CriticalPercent = float64(summary.Critical) / total * 100
	}
	return summary
}

// RecentAlerts returns up to count non-normal records, newest first.
func (h *History) RecentAlerts(count int) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if count <= 0 {
		return nil
	}
	alerts := make([]Record, 0, count)
	for i := h.size - 1; i >= 0 && len(alerts) < count; i-- {
		rec := h.records[(h.start+i)%h.capacity]
		if rec.Level != LevelNormal {
			alerts = append(alerts, rec)
		}
	}
	return alerts
}
