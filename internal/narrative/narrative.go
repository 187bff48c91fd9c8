// Package narrative turns schedules into text: a deterministic usage summary,
// a short model-written forecast summary and answers to free-form questions.
package narrative

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"

	"irrigation-planner/internal/agronomy"
	"irrigation-planner/internal/llm"
	"irrigation-planner/internal/schedule"
	"irrigation-planner/internal/shared"
)

//go:embed summary_prompt.md
var summaryPrompt string

//go:embed answer_prompt.md
var answerPrompt string

var (
	summaryTmpl = template.Must(template.New("summary").Parse(summaryPrompt))
	answerTmpl  = template.Must(template.New("answer").Parse(answerPrompt))
)

// SummaryInput describes the plan to summarize.
type SummaryInput struct {
	PlotName string
	Crop     string
	Lat      float64
	Lon      float64
	Days     []schedule.DayPlan
}

// Turn is one earlier chat exchange.
type Turn struct {
	Prompt string
	Reply  string
}

// AnswerInput carries the context for a free-form question.
type AnswerInput struct {
	Question    string
	PlotName    string
	Crop        string
	AgeMonths   float64
	AreaM2      float64
	Constraints string
	Days        []schedule.DayPlan
	LastWatered *time.Time
	Forecast    []agronomy.DailyForecast
	History     []Turn
}

// Narrator produces user-facing text. Output is opaque to callers.
type Narrator interface {
	Summarize(ctx context.Context, in SummaryInput) (string, error)
	Answer(ctx context.Context, in AnswerInput) (string, error)
}

// MetaRecorder receives the metadata of each model call.
type MetaRecorder interface {
	RecordMeta(meta shared.AgentMeta) error
}

// Summary is the deterministic water usage summary stored with every schedule.
func Summary(crop string, lat, lon float64, days []schedule.DayPlan) string {
	if len(days) == 0 {
		return fmt.Sprintf("🌾 Crop: %s\n💧 No schedule data available", crop)
	}

	total := schedule.TotalLiters(days)
	highest, lowest := days[0], days[0]
	for _, d := range days[1:] {
		if d.Liters > highest.Liters {
			highest = d
		}
		if d.Liters < lowest.Liters {
			lowest = d
		}
	}

	return fmt.Sprintf(
		"🌾 Crop: %s, Location: (%.4f, %.4f)\n"+
			"💧 Total water needed over %d days: %g liters\n"+
			"📈 Average per day: %g liters\n"+
			"🔺 Highest usage: %gL on %s\n"+
			"🔻 Lowest usage: %gL on %s",
		crop, lat, lon,
		len(days), round2(total),
		round2(total/float64(len(days))),
		highest.Liters, highest.Date,
		lowest.Liters, lowest.Date,
	)
}

// Template is the narrator used when no model is configured, and the fallback
// when a model call fails.
type Template struct{}

// Summarize writes a short plain summary of the plan.
func (Template) Summarize(_ context.Context, in SummaryInput) (string, error) {
	if len(in.Days) == 0 {
		return "No irrigation schedule found for this plot.", nil
	}
	total := schedule.TotalLiters(in.Days)
	var dry []string
	for _, d := range in.Days {
		if d.Liters == 0 {
			dry = append(dry, d.Day)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Your %s plot needs about %g liters over the next %d days.", in.Crop, round2(total), len(in.Days))
	if len(dry) > 0 {
		fmt.Fprintf(&sb, " No watering is planned on %s.", strings.Join(dry, ", "))
	}
	if next := nextWatering(in.Days); next != nil {
		fmt.Fprintf(&sb, " Next watering is %s at %s with %gL.", next.Day, next.OptimalTime, next.Liters)
	}
	return sb.String(), nil
}

// Answer replies with the plan facts it can state without a model.
func (Template) Answer(_ context.Context, in AnswerInput) (string, error) {
	if len(in.Days) == 0 {
		return fmt.Sprintf("I don't have a schedule for %s yet. Ask for a plan first and I can answer questions about it.", in.PlotName), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Your plan for %s includes %g liters over %d days.", in.PlotName, round2(schedule.TotalLiters(in.Days)), len(in.Days))
	if next := nextWatering(in.Days); next != nil {
		fmt.Fprintf(&sb, " Next watering: %s (%s) at %s, %gL.", next.Day, next.Date, next.OptimalTime, next.Liters)
	}
	if rain := rainyDays(in.Forecast); rain != "" {
		fmt.Fprintf(&sb, " Rain expected on %s.", rain)
	}
	sb.WriteString(" You can say things like \"skip tomorrow\", \"set day 3 to 5 liters\" or \"move Friday to 7am\".")
	return sb.String(), nil
}

// LLM narrates through a text generator and falls back to Template on error.
type LLM struct {
	gen      llm.TextGenerator
	recorder MetaRecorder
	fallback Template
}

// NewLLM creates a model-backed narrator. recorder may be nil.
func NewLLM(gen llm.TextGenerator, recorder MetaRecorder) *LLM {
	return &LLM{gen: gen, recorder: recorder}
}

// Summarize asks the model for a short forecast summary.
func (n *LLM) Summarize(ctx context.Context, in SummaryInput) (string, error) {
	if len(in.Days) == 0 {
		return n.fallback.Summarize(ctx, in)
	}
	prompt, err := render(summaryTmpl, in)
	if err != nil {
		return "", err
	}
	return n.generate(ctx, "GemSummary", prompt, func() (string, error) { return n.fallback.Summarize(ctx, in) })
}

type answerData struct {
	AnswerInput
	WateringSummary string
	WeatherSummary  string
}

// Answer asks the model to answer the farmer's question about the plot.
func (n *LLM) Answer(ctx context.Context, in AnswerInput) (string, error) {
	prompt, err := render(answerTmpl, answerData{
		AnswerInput:     in,
		WateringSummary: wateringSummary(in.LastWatered),
		WeatherSummary:  weatherSummary(in.Forecast),
	})
	if err != nil {
		return "", err
	}
	return n.generate(ctx, "FarmerBot", prompt, func() (string, error) { return n.fallback.Answer(ctx, in) })
}

func (n *LLM) generate(ctx context.Context, agent, prompt string, fallback func() (string, error)) (string, error) {
	start := time.Now()
	resp, err := n.gen.GenerateContent(ctx, prompt)
	meta := shared.AgentMeta{AgentName: agent, Usage: resp.Usage, Latency: time.Since(start)}
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		meta.Fallback = true
		n.record(meta)
		return fallback()
	}
	n.record(meta)
	return strings.TrimSpace(resp.Content), nil
}

func (n *LLM) record(meta shared.AgentMeta) {
	if n.recorder == nil {
		return
	}
	_ = n.recorder.RecordMeta(meta)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}

func wateringSummary(last *time.Time) string {
	if last == nil {
		return "No recent watering"
	}
	return "Last watered: " + last.Format("Jan 2 15:04")
}

// weatherSummary lists up to three forecast days.
func weatherSummary(days []agronomy.DailyForecast) string {
	var lines []string
	for _, d := range days {
		if len(lines) == 3 {
			break
		}
		w := d.Weather
		if w.TempC == nil {
			continue
		}
		line := fmt.Sprintf("%s: %.1f°C", d.Date.Format("Mon Jan 2"), *w.TempC)
		if pop := maxPop(d.Hourly); pop > 0 {
			line += fmt.Sprintf(", %.0f%% rain chance", pop*100)
		}
		if rain := w.Rainfall(); rain > 0 {
			line += fmt.Sprintf(", %.1fmm rain", rain)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "Weather data unavailable"
	}
	return strings.Join(lines, "\n")
}

func rainyDays(days []agronomy.DailyForecast) string {
	var names []string
	for _, d := range days {
		if d.Weather.Rainfall() >= 1 {
			names = append(names, d.Date.Format("Monday"))
		}
	}
	return strings.Join(names, ", ")
}

func maxPop(hours []agronomy.HourlySample) float64 {
	var m float64
	for _, h := range hours {
		m = math.Max(m, h.PrecipProb)
	}
	return m
}

func nextWatering(days []schedule.DayPlan) *schedule.DayPlan {
	for i := range days {
		if days[i].Liters > 0 {
			return &days[i]
		}
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
