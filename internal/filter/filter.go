// Package filter narrows transaction listings by station, status, time window
// and free-text query.
package filter

import (
	"fmt"
	"strings"
	"time"

	"farewatch/internal/fraud"
	"farewatch/internal/storage"
)

// Wildcard values that mean "no constraint".
const (
	AllStations = "All Stations"
	All         = "all"
)

// Criteria describes one listing query. Empty fields do not constrain.
type Criteria struct {
	Station string
	Status  fraud.Status
	From    *time.Time
	To      *time.Time
	Query   string
}

// Params are raw, user-supplied filter values (query string or CLI flags).
type Params struct {
	Station string
	Status  string
	From    string
	To      string
	Query   string
}

// Parse validates params and normalises wildcards. Times accept RFC 3339 or a
// bare date; a bare "to" date covers the whole day.
func Parse(p Params) (Criteria, error) {
	var c Criteria

	c.Station = normaliseStation(p.Station)

	status := strings.TrimSpace(p.Status)
	if status != "" && !strings.EqualFold(status, All) {
		st, err := fraud.ParseStatus(status)
		if err != nil {
			return Criteria{}, err
		}
		c.Status = st
	}

	if p.From != "" {
		from, err := parseTime(p.From, false)
		if err != nil {
			return Criteria{}, fmt.Errorf("invalid from: %w", err)
		}
		c.From = &from
	}
	if p.To != "" {
		to, err := parseTime(p.To, true)
		if err != nil {
			return Criteria{}, fmt.Errorf("invalid to: %w", err)
		}
		c.To = &to
	}
	if c.From != nil && c.To != nil && c.To.Before(*c.From) {
		return Criteria{}, fmt.Errorf("to must not be before from")
	}

	c.Query = strings.TrimSpace(p.Query)
	return c, nil
}

func normaliseStation(station string) string {
	station = strings.TrimSpace(station)
	if strings.EqualFold(station, AllStations) || strings.EqualFold(station, All) {
		return ""
	}
	return station
}

func parseTime(v string, endOfDay bool) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	day, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", v)
	}
	if endOfDay {
		return day.Add(24*time.Hour - time.Nanosecond), nil
	}
	return day, nil
}

// Normalize maps wildcard station and status values to "no constraint" and
// trims the query.
func Normalize(c Criteria) Criteria {
	c.Station = normaliseStation(c.Station)
	if strings.EqualFold(string(c.Status), All) {
		c.Status = ""
	}
	c.Query = strings.TrimSpace(c.Query)
	return c
}

// IsZero reports whether c matches everything.
func (c Criteria) IsZero() bool {
	return c.Station == "" && c.Status == "" && c.From == nil && c.To == nil && c.Query == ""
}

// Match reports whether r satisfies every set criterion. Both ends of the
// time window are inclusive.
func (c Criteria) Match(r storage.Record) bool {
	if c.Station != "" && r.Station != c.Station {
		return false
	}
	if c.Status != "" && r.Status != c.Status {
		return false
	}
	if c.From != nil && r.Timestamp.Before(*c.From) {
		return false
	}
	if c.To != nil && r.Timestamp.After(*c.To) {
		return false
	}
	if c.Query != "" {
		q := strings.ToLower(c.Query)
		if !strings.Contains(strings.ToLower(r.TicketID), q) && !strings.Contains(strings.ToLower(r.Station), q) {
			return false
		}
	}
	return true
}

// Apply returns the records matching c, preserving order. The input slice is
// never modified.
func Apply(records []storage.Record, c Criteria) []storage.Record {
	c = Normalize(c)
	if c.IsZero() {
		return records
	}
	out := make([]storage.Record, 0, len(records))
	for _, r := range records {
		if c.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
