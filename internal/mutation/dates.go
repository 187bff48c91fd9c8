package mutation

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"irrigation-planner/internal/schedule"
)

var (
	dayNumberRe = regexp.MustCompile(`\bday\s*(\d+)`)
	dateTokenRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2}))?\b`)
)

// resolveTargets returns the sorted, de-duplicated schedule indices a command
// refers to. Dates that cannot be parsed or are outside the schedule are ignored.
func resolveTargets(lower string, days []schedule.DayPlan, now time.Time) []int {
	set := map[int]bool{}
	dates := make([]time.Time, len(days))
	valid := make([]bool, len(days))
	for i, d := range days {
		t, err := time.Parse(schedule.DateLayout, d.Date)
		if err != nil {
			continue
		}
		dates[i], valid[i] = t, true
		if strings.Contains(lower, strings.ToLower(t.Weekday().String())) {
			set[i] = true
		}
	}

	relative := map[string]time.Time{"today": now, "tomorrow": now.AddDate(0, 0, 1)}
	for word, when := range relative {
		if !strings.Contains(lower, word) {
			continue
		}
		for i := range days {
			if valid[i] && sameDay(dates[i], when.Year(), when.Month(), when.Day()) {
				set[i] = true
			}
		}
	}

	for _, m := range dayNumberRe.FindAllStringSubmatch(lower, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 && n <= len(days) {
			set[n-1] = true
		}
	}

	for _, m := range dateTokenRe.FindAllStringSubmatch(lower, -1) {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year := -1
		if m[3] != "" {
			yy, _ := strconv.Atoi(m[3])
			year = 2000 + yy
		}
		for i := range days {
			if valid[i] && sameDay(dates[i], year, time.Month(month), day) {
				set[i] = true
			}
		}
	}

	targets := make([]int, 0, len(set))
	for i := range set {
		targets = append(targets, i)
	}
	sort.Ints(targets)
	return targets
}

// sameDay compares calendar fields; year < 0 matches any year.
func sameDay(t time.Time, year int, month time.Month, day int) bool {
	if year >= 0 && t.Year() != year {
		return false
	}
	return t.Month() == month && t.Day() == day
}
