package ergast

import (
	"strconv"
	"strings"
)

var dnfReasons = []string{
	"Accident", "Engine", "Mechanical", "Transmission",
	"Hydraulics", "Brakes", "Electrical", "Retired",
}

// FormatStatus turns an upstream finishing status into a short label:
// "Finished" and lapped statuses ("+1 Lap") pass through, disqualifications
// become "DSQ" and everything else is a DNF with a reason.
func FormatStatus(status string) string {
	if status == "Finished" || strings.Contains(status, "+") {
		return status
	}
	for _, r := range dnfReasons {
		if strings.Contains(status, r) {
			return "DNF - " + r
		}
	}
	if strings.Contains(status, "Disqualified") {
		return "DSQ"
	}
	return "DNF - " + status
}

// LapSeconds parses "1:32.123" or "58.456" into seconds.
func LapSeconds(t string) (float64, bool) {
	t = strings.TrimSpace(t)
	if t == "" {
		return 0, false
	}
	mins, secs, found := strings.Cut(t, ":")
	if !found {
		s, err := strconv.ParseFloat(mins, 64)
		return s, err == nil
	}
	m, err := strconv.ParseFloat(mins, 64)
	if err != nil {
		return 0, false
	}
	s, err := strconv.ParseFloat(secs, 64)
	if err != nil {
		return 0, false
	}
	return m*60 + s, true
}

// LapDelta is current minus previous in seconds. ok is false when either
// time is missing or unparsable.
func LapDelta(current, previous string) (delta float64, ok bool) {
	c, ok1 := LapSeconds(current)
	p, ok2 := LapSeconds(previous)
	if !ok1 || !ok2 {
		return 0, false
	}
	return c - p, true
}
