package mutation

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"irrigation-planner/internal/schedule"
)

// Monday 10/19/26.
var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func fixture() []schedule.DayPlan {
	days := make([]schedule.DayPlan, schedule.Horizon)
	for i := range days {
		days[i] = schedule.DayPlan{
			Day:         "Day " + string(rune('1'+i)),
			Date:        testNow.AddDate(0, 0, i).Format(schedule.DateLayout),
			Liters:      float64(i+1) * 1.25,
			OptimalTime: "06:00 AM",
			Explanation: "ETc: 4.00mm, Rainfall: 0.00mm",
		}
	}
	return days
}

func apply(e *Engine, text string, current, original []schedule.DayPlan) Result {
	return e.Apply(Command{Text: text, Current: current, Original: original, Now: testNow})
}

func TestSkipDay(t *testing.T) {
	e := NewEngine()
	base := fixture()

	res := apply(e, "skip day 3", base, base)
	if res.Outcome != OutcomeApplied || !res.ScheduleChanged || res.Rule != "skip_or_set" {
		t.Fatalf("Unexpected result %+v", res)
	}
	for i, d := range res.UpdatedSchedule {
		if i == 2 {
			if d.Liters != 0 || d.Note != NoteSkipped {
				t.Errorf("Expected day 3 skipped, got %+v", d)
			}
			continue
		}
		if !reflect.DeepEqual(d, base[i]) {
			t.Errorf("Expected day %d unchanged, got %+v", i+1, d)
		}
	}
	if base[2].Liters == 0 {
		t.Error("Input schedule must not be modified")
	}

	t.Run("Idempotent", func(t *testing.T) {
		again := apply(e, "skip day 3", res.UpdatedSchedule, base)
		if !reflect.DeepEqual(again.UpdatedSchedule, res.UpdatedSchedule) {
			t.Error("Expected re-applying skip to produce the same schedule")
		}
		if again.ScheduleChanged || len(again.AppliedEdits) != 0 {
			t.Errorf("Expected no further edits, got %+v", again.AppliedEdits)
		}
	})
}

func TestPause(t *testing.T) {
	e := NewEngine()
	base := fixture()
	base[1].Liters = 0

	res := apply(e, "pause for 3 days", base, base)
	if res.Rule != "pause" {
		t.Fatalf("Expected pause rule, got %s", res.Rule)
	}
	for i := 0; i < 3; i++ {
		if res.UpdatedSchedule[i].Liters != 0 || res.UpdatedSchedule[i].Note != NotePaused {
			t.Errorf("Expected index %d paused, got %+v", i, res.UpdatedSchedule[i])
		}
	}
	if res.UpdatedSchedule[3].Liters != base[3].Liters {
		t.Error("Expected index 3 untouched")
	}

	long := apply(e, "pause watering 30 days", base, base)
	if len(long.UpdatedSchedule) != schedule.Horizon {
		t.Fatalf("Expected %d days, got %d", schedule.Horizon, len(long.UpdatedSchedule))
	}
	if schedule.TotalLiters(long.UpdatedSchedule) != 0 {
		t.Error("Expected every day paused")
	}
}

func TestRevert(t *testing.T) {
	e := NewEngine()
	original := fixture()

	current := original
	for _, cmd := range []string{"skip day 2", "set day 5 to 9 liters", "move tomorrow to 7:30 pm", "pause 2 days"} {
		res := apply(e, cmd, current, original)
		if !res.ScheduleChanged {
			t.Fatalf("Expected %q to change the schedule", cmd)
		}
		current = res.UpdatedSchedule
	}

	res := apply(e, "revert", current, original)
	if res.Outcome != OutcomeReverted || !res.ScheduleChanged {
		t.Fatalf("Unexpected result %+v", res)
	}
	if !reflect.DeepEqual(res.UpdatedSchedule, original) {
		t.Error("Expected revert to restore the original schedule exactly")
	}

	t.Run("NoOriginal", func(t *testing.T) {
		res := apply(e, "please reset schedule", current, nil)
		if res.ScheduleChanged || res.Outcome != OutcomeNothingToModify {
			t.Fatalf("Unexpected result %+v", res)
		}
		if !strings.Contains(res.ReplyText, "No original schedule found to revert to") {
			t.Errorf("Unexpected reply %q", res.ReplyText)
		}
	})
}

func TestSetAndShift(t *testing.T) {
	e := NewEngine()
	base := fixture()

	t.Run("SetLiters", func(t *testing.T) {
		res := apply(e, "Set day 4 to 2.5 liters", base, base)
		if got := res.UpdatedSchedule[3]; got.Liters != 2.5 || got.Note != "User-set to 2.5L" {
			t.Errorf("Unexpected day 4 %+v", got)
		}
	})

	t.Run("SetWithoutTo", func(t *testing.T) {
		res := apply(e, "set 3 liters on wednesday", base, base)
		if got := res.UpdatedSchedule[2]; got.Liters != 3 {
			t.Errorf("Expected wednesday (index 2) set to 3L, got %+v", got)
		}
	})

	t.Run("ShiftTime", func(t *testing.T) {
		res := apply(e, "move 10/21 to 7 pm", base, base)
		if res.Rule != "time_shift" {
			t.Fatalf("Expected time_shift, got %s", res.Rule)
		}
		if got := res.UpdatedSchedule[2]; got.OptimalTime != "07:00 PM" || got.Note != "Time moved to 07:00 PM" {
			t.Errorf("Unexpected day %+v", got)
		}
		if len(res.AppliedEdits) != 2 {
			t.Errorf("Expected time and note edits, got %+v", res.AppliedEdits)
		}
	})

	t.Run("ShiftWinsOverSkip", func(t *testing.T) {
		res := apply(e, "cancel the morning slot and move day 1 to 5am", base, base)
		if res.Rule != "time_shift" || res.UpdatedSchedule[0].Liters != base[0].Liters {
			t.Errorf("Expected time shift to take priority, got %+v", res)
		}
	})

	t.Run("InvalidTime", func(t *testing.T) {
		res := apply(e, "move day 1 to 13pm", base, base)
		if res.ScheduleChanged || res.Outcome != OutcomeNothingToModify {
			t.Errorf("Expected invalid time to be rejected, got %+v", res)
		}
	})
}

func TestDateResolution(t *testing.T) {
	days := fixture()
	cases := []struct {
		text string
		want []int
	}{
		{"skip tomorrow", []int{1}},
		{"skip today", []int{0}},
		{"skip friday and sunday", []int{4, 6}},
		{"skip day 1 and day 7", []int{0, 6}},
		{"skip day 9", []int{}},
		{"skip 10/25/26", []int{6}},
		{"skip 10/25/25", []int{}},
		{"skip 13/45", []int{}},
		{"skip 10/22", []int{3}},
		{"skip friday 10/23", []int{4}},
		{"skip friday 1/23", []int{4}},
		{"skip day3", []int{2}},
	}
	for _, tc := range cases {
		got := resolveTargets(strings.ToLower(tc.text), days, testNow)
		if len(got) != len(tc.want) || (len(got) > 0 && !reflect.DeepEqual(got, tc.want)) {
			t.Errorf("%q: expected %v, got %v", tc.text, tc.want, got)
		}
	}
}

func TestSummaryAndConstraint(t *testing.T) {
	e := NewEngine()
	base := fixture()

	res := apply(e, "How much water is in my plan?", base, base)
	if res.Outcome != OutcomeSummary || res.ScheduleChanged {
		t.Fatalf("Unexpected result %+v", res)
	}
	if !strings.Contains(res.ReplyText, "35 liters over 7 days") {
		t.Errorf("Unexpected reply %q", res.ReplyText)
	}

	res = apply(e, "Add constraint: No watering before 5 AM", base, base)
	if res.Outcome != OutcomeConstraint || res.Constraint != "No watering before 5 AM" {
		t.Errorf("Unexpected constraint result %+v", res)
	}
}

func TestFreeFormAndEmpty(t *testing.T) {
	e := NewEngine()

	res := apply(e, "Should I fertilize this week?", fixture(), nil)
	if res.Outcome != OutcomeFreeForm || res.ScheduleChanged || res.ReplyText != "" {
		t.Errorf("Expected free-form fallthrough, got %+v", res)
	}

	// A skip without any resolvable day is not an edit.
	res = apply(e, "skip the weekend", fixture(), nil)
	if res.Outcome != OutcomeFreeForm {
		t.Errorf("Expected unresolved skip to fall through, got %+v", res)
	}

	res = apply(e, "skip day 3", nil, nil)
	if res.Outcome != OutcomeNothingToModify || res.ReplyText != ReplyNoSchedule {
		t.Errorf("Expected nothing-to-modify reply, got %+v", res)
	}

	res = apply(e, "what grows well with tomatoes?", nil, nil)
	if res.Outcome != OutcomeFreeForm {
		t.Errorf("Expected general question to reach the assistant, got %+v", res)
	}
}
