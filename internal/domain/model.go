package domain

import (
	"fmt"
	"strings"
	"time"
)

// Model identifies a numerical weather model held in the sounding archive.
type Model int

const (
	GFS Model = iota
	NAM
	NAM4KM
)

// Models returns every archived model in a stable order.
func Models() []Model {
	return []Model{GFS, NAM, NAM4KM}
}

// String returns the archive name of the model.
func (m Model) String() string {
	switch m {
	case GFS:
		return "gfs"
	case NAM:
		return "nam"
	case NAM4KM:
		return "nam4km"
	default:
		return fmt.Sprintf("model(%d)", int(m))
	}
}

// Horizon is how far past the reference time the model forecasts.
func (m Model) Horizon() time.Duration {
	const day = 24 * time.Hour
	switch m {
	case GFS:
		return 7 * day
	case NAM:
		return 4 * day
	case NAM4KM:
		return 3 * day
	default:
		return 0
	}
}

// ParseModel accepts archive names case-insensitively ("GFS", "nam4km").
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gfs":
		return GFS, nil
	case "nam":
		return NAM, nil
	case "nam4km":
		return NAM4KM, nil
	default:
		return 0, fmt.Errorf("parse model %q: %w", s, ErrUnknownModel)
	}
}
