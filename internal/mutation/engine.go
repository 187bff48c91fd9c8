// Package mutation turns free-text farmer commands into schedule edits.
//
// Commands are matched against an ordered rule table and the first rule that
// applies wins. The engine is pure: it never persists anything, it only
// describes what changed so the caller can store it.
package mutation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"irrigation-planner/internal/schedule"
)

// Outcome classifies what the engine did with a command.
type Outcome string

const (
	OutcomeApplied         Outcome = "applied"
	OutcomeReverted        Outcome = "reverted"
	OutcomeSummary         Outcome = "summary"
	OutcomeConstraint      Outcome = "constraint"
	OutcomeNothingToModify Outcome = "nothing_to_modify"
	OutcomeFreeForm        Outcome = "free_form"
)

// ReplyNoSchedule answers edit commands for plots without a schedule.
const ReplyNoSchedule = "⚠️ There is no schedule to modify yet. Ask for your plan first."

// Edit is a single field change on one schedule day.
type Edit struct {
	Index    int    `json:"index"`
	Field    string `json:"field"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// Result describes the effect of one command.
type Result struct {
	Rule            string             `json:"rule"`
	Outcome         Outcome            `json:"outcome"`
	ScheduleChanged bool               `json:"schedule_changed"`
	UpdatedSchedule []schedule.DayPlan `json:"updated_schedule,omitempty"`
	AppliedEdits    []Edit             `json:"applied_edits,omitempty"`
	ReplyText       string             `json:"reply"`
	// Constraint is the text to append to the plot's constraints.
	Constraint string `json:"constraint,omitempty"`
}

// Command is a farmer's message together with the schedule it refers to.
type Command struct {
	Text     string
	Current  []schedule.DayPlan
	Original []schedule.DayPlan
	Now      time.Time
}

type command struct {
	text     string
	lower    string
	current  []schedule.DayPlan
	original []schedule.DayPlan
	targets  []int
}

// changed wraps an edited copy of the schedule into an applied Result.
func (c *command) changed(updated []schedule.DayPlan, lines []string) Result {
	edits := diff(c.current, updated)
	return Result{
		Outcome:         OutcomeApplied,
		ScheduleChanged: len(edits) > 0,
		UpdatedSchedule: updated,
		AppliedEdits:    edits,
		ReplyText:       strings.Join(lines, "\n"),
	}
}

// Engine evaluates commands against an ordered rule table.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine with the given rules, DefaultRules when none are passed.
func NewEngine(rules ...Rule) *Engine {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Engine{rules: rules}
}

// Apply runs the first matching rule. Commands no rule handles come back with
// OutcomeFreeForm and are meant for the narrative assistant.
func (e *Engine) Apply(cmd Command) Result {
	c := &command{
		text:     strings.TrimSpace(cmd.Text),
		lower:    strings.ToLower(strings.TrimSpace(cmd.Text)),
		current:  cmd.Current,
		original: cmd.Original,
	}
	c.targets = resolveTargets(c.lower, c.current, cmd.Now)

	if len(c.current) == 0 && hasEditIntent(c.lower) {
		return Result{Rule: "no_schedule", Outcome: OutcomeNothingToModify, ReplyText: ReplyNoSchedule}
	}

	for _, r := range e.rules {
		if !r.Match(c) {
			continue
		}
		res := r.Apply(c)
		res.Rule = r.Name
		return res
	}
	return Result{Rule: "free_form", Outcome: OutcomeFreeForm}
}

// diff lists field-level differences between two schedules of equal length.
func diff(before, after []schedule.DayPlan) []Edit {
	var edits []Edit
	for i := range after {
		if i >= len(before) {
			edits = append(edits, Edit{Index: i, Field: "day", NewValue: after[i].Day})
			continue
		}
		b, a := before[i], after[i]
		if b.Liters != a.Liters {
			edits = append(edits, Edit{Index: i, Field: "liters", OldValue: b.Liters, NewValue: a.Liters})
		}
		if b.OptimalTime != a.OptimalTime {
			edits = append(edits, Edit{Index: i, Field: "optimal_time", OldValue: b.OptimalTime, NewValue: a.OptimalTime})
		}
		if b.Note != a.Note {
			edits = append(edits, Edit{Index: i, Field: "note", OldValue: b.Note, NewValue: a.Note})
		}
		if b != a && b.Liters == a.Liters && b.OptimalTime == a.OptimalTime && b.Note == a.Note {
			edits = append(edits, Edit{Index: i, Field: "day", OldValue: b.Date, NewValue: a.Date})
		}
	}
	return edits
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Describe renders an edit for logs and chat replies.
func (e Edit) Describe() string {
	return fmt.Sprintf("Day %d %s: %v -> %v", e.Index+1, e.Field, e.OldValue, e.NewValue)
}
