package mutation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"irrigation-planner/internal/schedule"
)

// Notes written onto edited days.
const (
	NoteSkipped = "User-skip"
	NotePaused  = "Paused by user"
)

var (
	timeShiftRe  = regexp.MustCompile(`(?:move|shift|change).*to\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	setToRe      = regexp.MustCompile(`\bset\b.*?\bto\s*(\d+(?:\.\d+)?)\s*(?:liters|litres|l\b)?`)
	setAmountRe  = regexp.MustCompile(`\bset\s*(\d+(?:\.\d+)?)\s*(?:liters|litres|l\b)`)
	pauseRe      = regexp.MustCompile(`pause.*?(\d+)\s*day`)
	constraintRe = regexp.MustCompile(`(?is)(?:add|update|change).*?constraints?:?\s*(.+)`)

	skipPhrases    = []string{"skip", "cancel", "don't water", "don’t water", "dont water", "do not water", "no watering"}
	revertPhrases  = []string{"revert", "reset schedule"}
	summaryPhrases = []string{"how much", "total", "my plan"}
)

// Rule is one entry of the ordered command table. Match decides whether the
// rule handles the command; Apply is only called after Match returns true.
type Rule struct {
	Name  string
	Match func(c *command) bool
	Apply func(c *command) Result
}

// DefaultRules returns the command table in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "time_shift", Match: matchTimeShift, Apply: applyTimeShift},
		{Name: "skip_or_set", Match: matchSkipOrSet, Apply: applySkipOrSet},
		{Name: "pause", Match: matchPause, Apply: applyPause},
		{Name: "revert", Match: matchRevert, Apply: applyRevert},
		{Name: "summary", Match: matchSummary, Apply: applySummary},
		{Name: "constraint", Match: matchConstraint, Apply: applyConstraint},
	}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func matchTimeShift(c *command) bool {
	return len(c.targets) > 0 && timeShiftRe.MatchString(c.lower)
}

func applyTimeShift(c *command) Result {
	m := timeShiftRe.FindStringSubmatch(c.lower)
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if hour < 1 || hour > 12 || minute > 59 {
		return Result{Outcome: OutcomeNothingToModify, ReplyText: "⚠️ That is not a valid time of day."}
	}
	if m[3] == "pm" && hour != 12 {
		hour += 12
	} else if m[3] == "am" && hour == 12 {
		hour = 0
	}
	newTime := schedule.FormatHour(hour, minute)

	updated := schedule.Clone(c.current)
	var lines []string
	for _, idx := range c.targets {
		updated[idx].OptimalTime = newTime
		updated[idx].Note = "Time moved to " + newTime
		lines = append(lines, fmt.Sprintf("✅ Shifted %s to %s.", updated[idx].Day, newTime))
	}
	return c.changed(updated, lines)
}

func matchSkipOrSet(c *command) bool {
	if len(c.targets) == 0 {
		return false
	}
	_, ok := setAmount(c.lower)
	return containsAny(c.lower, skipPhrases) || ok
}

func setAmount(lower string) (float64, bool) {
	for _, re := range []*regexp.Regexp{setToRe, setAmountRe} {
		if m := re.FindStringSubmatch(lower); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

func applySkipOrSet(c *command) Result {
	updated := schedule.Clone(c.current)
	var lines []string
	if containsAny(c.lower, skipPhrases) {
		for _, idx := range c.targets {
			updated[idx].Liters = 0
			updated[idx].Note = NoteSkipped
			lines = append(lines, fmt.Sprintf("✅ Skipped %s (%s): 0L.", updated[idx].Day, updated[idx].Date))
		}
		return c.changed(updated, lines)
	}

	liters, _ := setAmount(c.lower)
	for _, idx := range c.targets {
		updated[idx].Liters = liters
		updated[idx].Note = fmt.Sprintf("User-set to %gL", liters)
		lines = append(lines, fmt.Sprintf("✅ Set %gL on %s (%s).", liters, updated[idx].Day, updated[idx].Date))
	}
	return c.changed(updated, lines)
}

func matchPause(c *command) bool {
	m := pauseRe.FindStringSubmatch(c.lower)
	if m == nil {
		return false
	}
	n, err := strconv.Atoi(m[1])
	return err == nil && n > 0
}

func applyPause(c *command) Result {
	n, _ := strconv.Atoi(pauseRe.FindStringSubmatch(c.lower)[1])
	updated := schedule.Clone(c.current)
	var lines []string
	for i := 0; i < n && i < len(updated); i++ {
		updated[i].Liters = 0
		updated[i].Note = NotePaused
		lines = append(lines, fmt.Sprintf("⏸️ Paused watering on %s (%s).", updated[i].Day, updated[i].Date))
	}
	return c.changed(updated, lines)
}

func matchRevert(c *command) bool {
	return containsAny(c.lower, revertPhrases)
}

func applyRevert(c *command) Result {
	if len(c.original) == 0 {
		return Result{Outcome: OutcomeNothingToModify, ReplyText: "⚠️ No original schedule found to revert to."}
	}
	updated := schedule.Clone(c.original)
	edits := diff(c.current, updated)
	return Result{
		Outcome:         OutcomeReverted,
		ScheduleChanged: len(edits) > 0,
		UpdatedSchedule: updated,
		AppliedEdits:    edits,
		ReplyText:       "🔄 Reverted to the original schedule.",
	}
}

func matchSummary(c *command) bool {
	return containsAny(c.lower, summaryPhrases)
}

func applySummary(c *command) Result {
	total := schedule.TotalLiters(c.current)
	return Result{
		Outcome:   OutcomeSummary,
		ReplyText: fmt.Sprintf("📊 Your plan includes %g liters over %d days.", round2(total), len(c.current)),
	}
}

func matchConstraint(c *command) bool {
	if !strings.Contains(c.lower, "constraint") {
		return false
	}
	m := constraintRe.FindStringSubmatch(c.text)
	return m != nil && strings.TrimSpace(m[1]) != ""
}

func applyConstraint(c *command) Result {
	added := strings.TrimSpace(constraintRe.FindStringSubmatch(c.text)[1])
	return Result{
		Outcome:    OutcomeConstraint,
		Constraint: added,
		ReplyText:  fmt.Sprintf("✅ Constraint added: %s.", strings.TrimRight(added, ".")),
	}
}

// hasEditIntent reports whether a command asks to change or inspect the
// schedule, as opposed to a general question.
func hasEditIntent(lower string) bool {
	_, set := setAmount(lower)
	return set || timeShiftRe.MatchString(lower) || pauseRe.MatchString(lower) ||
		containsAny(lower, skipPhrases) || containsAny(lower, revertPhrases) || containsAny(lower, summaryPhrases)
}
