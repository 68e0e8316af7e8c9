package brightness

import (
	"github.com/rotisserie/eris"
)

// Level is one row of the brightness table: at or above Threshold lux the
// strip should run at Percent brightness.
type Level struct {
	Threshold float64
	Percent   uint8
}

// DefaultLevels mirrors the ambient bins the companion hardware ships with:
// very dark rooms get a faint glow, bright rooms get the full indoor level.
func DefaultLevels() []Level {
	return []Level{
		{Threshold: 0, Percent: 3},
		{Threshold: 20, Percent: 5},
		{Threshold: 50, Percent: 10},
		{Threshold: 100, Percent: 15},
		{Threshold: 200, Percent: 20},
	}
}

// Controller maps a smoothed light reading to a target brightness level.
// Lookups apply hysteresis so a reading hovering at a bin boundary does not
// flicker between levels, and output moves at most one level per tick.
type Controller struct {
	levels             []Level
	hysteresisFraction float64

	currentIdx  int
	lastDir     int
	initialized bool
}

// NewController validates the level table and constructs a Controller.
// The table is immutable after construction.
func NewController(levels []Level, hysteresisFraction float64) (*Controller, error) {
	if len(levels) == 0 {
		return nil, eris.New("brightness: level table is empty")
	}
	for i := 1; i < len(levels); i++ {
		if levels[i].Threshold <= levels[i-1].Threshold {
			return nil, eris.Errorf("brightness: thresholds not strictly increasing at index %d", i)
		}
		if levels[i].Percent <= levels[i-1].Percent {
			return nil, eris.Errorf("brightness: percents not strictly increasing at index %d", i)
		}
	}
	if hysteresisFraction <= 0 || hysteresisFraction >= 1 {
		hysteresisFraction = 0.1
	}

	table := make([]Level, len(levels))
	copy(table, levels)

	return &Controller{
		levels:             table,
		hysteresisFraction: hysteresisFraction,
	}, nil
}

// Target returns the brightness level for the supplied light reading,
// advancing the internal level by at most one step.
func (c *Controller) Target(light float64) Level {
	raw := c.lookup(light)
	if !c.initialized {
		c.currentIdx = raw
		c.initialized = true
		return c.levels[c.currentIdx]
	}

	switch {
	case raw > c.currentIdx:
		next := c.currentIdx + 1
		boundary := c.levels[next].Threshold
		if c.lastDir < 0 {
			boundary += c.margin(next)
		}
		if light >= boundary {
			c.currentIdx = next
			c.lastDir = 1
		}
	case raw < c.currentIdx:
		boundary := c.levels[c.currentIdx].Threshold
		if c.lastDir > 0 {
			boundary -= c.margin(c.currentIdx)
		}
		if light < boundary {
			c.currentIdx--
			c.lastDir = -1
		}
	}

	return c.levels[c.currentIdx]
}

// Current returns the active level without advancing it.
func (c *Controller) Current() Level {
	if !c.initialized {
		return c.levels[0]
	}
	return c.levels[c.currentIdx]
}

// lookup returns the index of the highest bin whose threshold the reading
// meets. Readings below the lowest threshold map to the lowest bin.
func (c *Controller) lookup(light float64) int {
	idx := 0
	for i := 1; i < len(c.levels); i++ {
		if light >= c.levels[i].Threshold {
			idx = i
		}
	}
	return idx
}

// margin is the reversal margin for the boundary below bin idx, sized as a
// fraction of that bin's width.
func (c *Controller) margin(idx int) float64 {
	var width float64
	if idx+1 < len(c.levels) {
		width = c.levels[idx+1].Threshold - c.levels[idx].Threshold
	} else {
		width = c.levels[idx].Threshold - c.levels[idx-1].Threshold
	}
	return width * c.hysteresisFraction
}
