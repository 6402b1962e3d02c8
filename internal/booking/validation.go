package booking

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"terrace-booking/internal/models"
)

const (
	MinPeople = 1
	MaxPeople = 24

	// Service window in minutes since midnight, both bounds inclusive.
	ServiceOpens  = 11 * 60
	ServiceCloses = 22*60 + 30

	DateLayout = "2006-01-02"
)

var clockPattern = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

// ParseClock converts "HH:MM" (single digit hours allowed) to minutes since
// midnight.
func ParseClock(s string) (int, bool) {
	if !clockPattern.MatchString(s) {
		return 0, false
	}
	hh, mm, _ := strings.Cut(s, ":")
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, false
	}
	return h*60 + m, true
}

// validRequest is a request that passed every rule that does not need the
// registry.
type validRequest struct {
	tables    []string
	people    int
	name      string
	startTime string
	endTime   string
}

// validateRequest applies the request-only rules in order and stops at the
// first violation.
func validateRequest(req models.BookingRequest) (validRequest, error) {
	tables := dedupe(req.Tables)
	if len(tables) == 0 {
		return validRequest{}, ErrNoTables
	}
	if req.People < MinPeople || req.People > MaxPeople {
		return validRequest{}, ErrPartySize
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return validRequest{}, ErrNameRequired
	}
	start, okStart := ParseClock(req.StartTime)
	end, okEnd := ParseClock(req.EndTime)
	if !okStart || !okEnd {
		return validRequest{}, ErrInvalidTime
	}
	if !inServiceWindow(start) || !inServiceWindow(end) {
		return validRequest{}, ErrOutsideServiceHours
	}
	if end <= start {
		return validRequest{}, ErrEndBeforeStart
	}
	return validRequest{
		tables:    tables,
		people:    req.People,
		name:      name,
		startTime: req.StartTime,
		endTime:   req.EndTime,
	}, nil
}

func inServiceWindow(minutes int) bool {
	return minutes >= ServiceOpens && minutes <= ServiceCloses
}

// resolveDate keeps a well-formed calendar date and otherwise falls back to
// today in loc.
func resolveDate(date string, now time.Time, loc *time.Location) string {
	if _, err := time.Parse(DateLayout, date); err == nil {
		return date
	}
	return now.In(loc).Format(DateLayout)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
