package schedule

import (
	"sort"
	"sync"
)

// CalendarMarker receives day marks for display.
type CalendarMarker interface {
	Mark(date Date, label, tag string)
	ClearAll()
}

// Mark is one labeled, tagged calendar day.
type Mark struct {
	Date  Date   `json:"date"`
	Label string `json:"label"`
	Tag   string `json:"tag"`
}

// Calendar is an in-memory CalendarMarker.
type Calendar struct {
	mu    sync.RWMutex
	marks []Mark
}

func NewCalendar() *Calendar {
	return &Calendar{}
}

func (c *Calendar) Mark(date Date, label, tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marks = append(c.marks, Mark{Date: date, Label: label, Tag: tag})
}

func (c *Calendar) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marks = nil
}

// Marks returns the marks sorted by date, in insertion order within a day.
func (c *Calendar) Marks() []Mark {
	c.mu.RLock()
	out := make([]Mark, len(c.marks))
	copy(out, c.marks)
	c.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
