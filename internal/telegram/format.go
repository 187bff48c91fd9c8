package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"irrigation-planner/internal/assistant"
	"irrigation-planner/internal/plot"
	"irrigation-planner/internal/schedule"
)

const helpText = `🌱 *Irrigation Assistant*

/plots - list your plots
/use <plot-id> - choose the plot to talk about
/plan - show the 7-day watering plan
/refresh - regenerate the plan with a fresh forecast
/water <minutes> - log a watering you just did

Anything else is read as a command for the plan, e.g.
"skip tomorrow", "set day 3 to 5 liters", "move Friday to 7am",
"pause for 2 days", "revert", or a question about your plot.`

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func formatScheduleMarkdown(name string, s *schedule.Schedule) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 *7-Day Plan: %s*\n\n", escapeMarkdown(name))
	for _, d := range s.Current {
		fmt.Fprintf(&sb, "*%s* (%s): %gL at %s", d.Day, d.Date, d.Liters, d.OptimalTime)
		if d.Note != "" {
			fmt.Fprintf(&sb, " _%s_", escapeMarkdown(d.Note))
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\n💧 *Total:* %gL\n", roundLiters(schedule.TotalLiters(s.Current)))
	if s.NarrativeSummary != "" {
		fmt.Fprintf(&sb, "\n%s\n", escapeMarkdown(s.NarrativeSummary))
	}
	return sb.String()
}

func formatPlotList(plots []plot.Plot, active string) string {
	if len(plots) == 0 {
		return "No plots registered yet."
	}
	var sb strings.Builder
	sb.WriteString("🌾 *Your plots*\n\n")
	for _, p := range plots {
		marker := "•"
		if p.ID == active {
			marker = "👉"
		}
		fmt.Fprintf(&sb, "%s *%s* (%s, %gm²)\n`%s`\n", marker, escapeMarkdown(p.Name), escapeMarkdown(p.Crop), p.AreaM2, p.ID)
	}
	return sb.String()
}

func formatChatReply(resp assistant.ChatResponse) string {
	if !resp.ScheduleUpdated || len(resp.Edits) == 0 {
		return resp.Reply
	}
	return fmt.Sprintf("%s\n\n(%d change(s) saved)", resp.Reply, len(resp.Edits))
}

// parseMinutes reads the argument of /water.
func parseMinutes(args string) (float64, error) {
	args = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(args), "min"))
	m, err := strconv.ParseFloat(args, 64)
	if err != nil || m <= 0 {
		return 0, fmt.Errorf("usage: /water <minutes>")
	}
	return m, nil
}

func roundLiters(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
