package domain

import "time"

// Site describes a location with archived soundings.
type Site struct {
	ID         string `json:"id"`
	StationNum int    `json:"station_num"`
	Name       string `json:"name,omitempty"`
	State      string `json:"state,omitempty"`
	TimeZone   string `json:"time_zone,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// DisplayName returns the site name, falling back to its ID.
func (s Site) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// MetaData identifies what an ensemble covers. It is a value: derived series
// copy it unchanged.
type MetaData struct {
	Site  Site      `json:"site"`
	Model string    `json:"model"`
	Start time.Time `json:"start"`
	Now   time.Time `json:"now"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies in the closed window [Start, End].
func (m MetaData) Contains(t time.Time) bool {
	return !t.Before(m.Start) && !t.After(m.End)
}
