package domain

import (
	"fmt"
	"sort"
)

// Default configuration values for the preparation pipeline.
const (
	DefaultWindowSize     = 60
	DefaultPredictionDays = 7
	DefaultVolumeWindow   = 7
)

// DefaultMovingAverageWindows returns the default moving-average lengths.
func DefaultMovingAverageWindows() []int {
	return []int{5, 20}
}

// PrepConfig configures the preparation pipeline.
type PrepConfig struct {
	// WindowSize is the number of rows per emitted window.
	WindowSize int
	// PredictionDays is the calendar-day lookahead for target labeling.
	PredictionDays int
	// MovingAverageWindows are the close-price moving-average lengths.
	MovingAverageWindows []int
	// VolumeWindow is the volume moving-average length.
	VolumeWindow int
}

// DefaultPrepConfig returns the default configuration.
func DefaultPrepConfig() PrepConfig {
	return PrepConfig{
		WindowSize:           DefaultWindowSize,
		PredictionDays:       DefaultPredictionDays,
		MovingAverageWindows: DefaultMovingAverageWindows(),
		VolumeWindow:         DefaultVolumeWindow,
	}
}

// Validate checks that every option is a positive integer and that the
// moving-average set is non-empty.
func (c PrepConfig) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("window_size must be positive, got %d", c.WindowSize)
	}
	if c.PredictionDays <= 0 {
		return fmt.Errorf("prediction_days must be positive, got %d", c.PredictionDays)
	}
	if len(c.MovingAverageWindows) == 0 {
		return fmt.Errorf("moving_average_windows must not be empty")
	}
	for _, w := range c.MovingAverageWindows {
		if w <= 0 {
			return fmt.Errorf("moving average window must be positive, got %d", w)
		}
	}
	if c.VolumeWindow <= 0 {
		return fmt.Errorf("volume_window must be positive, got %d", c.VolumeWindow)
	}
	return nil
}

// SortedMovingAverageWindows returns the moving-average lengths in
// ascending order without mutating the config.
func (c PrepConfig) SortedMovingAverageWindows() []int {
	out := make([]int, len(c.MovingAverageWindows))
	copy(out, c.MovingAverageWindows)
	sort.Ints(out)
	return out
}
