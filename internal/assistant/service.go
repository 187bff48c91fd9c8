// Package assistant serves a plot's irrigation plan and chat commands on top
// of the scheduling core and the repositories.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"irrigation-planner/internal/chat"
	"irrigation-planner/internal/mutation"
	"irrigation-planner/internal/narrative"
	"irrigation-planner/internal/plot"
	"irrigation-planner/internal/schedule"
	"irrigation-planner/internal/watering"
	"irrigation-planner/internal/weather"
)

const (
	// DefaultReuseWindow is how long a stored schedule is served without regeneration.
	DefaultReuseWindow = 24 * time.Hour
	// DefaultSoilMoisture seeds plots that never had a moisture reading.
	DefaultSoilMoisture = 0.3

	maxConflictRetries = 3
	historyTurns       = 3
)

// Deps are the collaborators a Service needs.
type Deps struct {
	Plots     *plot.Repository
	Schedules *schedule.Repository
	Waterings *watering.Repository
	Chats     *chat.Repository
	Weather   weather.Provider
	Generator *schedule.Generator
	Engine    *mutation.Engine
	Narrator  narrative.Narrator
}

// Options tune the Service. Zero values select the defaults.
type Options struct {
	ReuseWindow     time.Duration
	DefaultMoisture float64
}

// Service coordinates plan generation, chat commands and watering logs.
// Work on a single plot is serialized.
type Service struct {
	Deps
	reuse           time.Duration
	defaultMoisture float64
	now             func() time.Time
	locks           plotLocks
}

// NewService creates a Service.
func NewService(deps Deps, opts Options) *Service {
	if opts.ReuseWindow <= 0 {
		opts.ReuseWindow = DefaultReuseWindow
	}
	if opts.DefaultMoisture <= 0 {
		opts.DefaultMoisture = DefaultSoilMoisture
	}
	if deps.Engine == nil {
		deps.Engine = mutation.NewEngine()
	}
	if deps.Narrator == nil {
		deps.Narrator = narrative.Template{}
	}
	return &Service{
		Deps:            deps,
		reuse:           opts.ReuseWindow,
		defaultMoisture: opts.DefaultMoisture,
		now:             time.Now,
	}
}

// plotLocks hands out one mutex per plot id.
type plotLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *plotLocks) lock(id string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// GetPlan returns the plot's schedule, regenerating it when forced, missing or
// older than the reuse window.
func (s *Service) GetPlan(ctx context.Context, plotID string, force bool) (*schedule.Schedule, error) {
	defer s.locks.lock(plotID)()

	p, err := s.Plots.Get(ctx, plotID)
	if err != nil {
		return nil, err
	}
	existing, err := s.Schedules.Get(ctx, plotID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if existing != nil && !force && !schedule.IsStale(existing.UpdatedAt, now, s.reuse) {
		return existing, nil
	}
	return s.generate(ctx, p, now)
}

func (s *Service) generate(ctx context.Context, p *plot.Plot, now time.Time) (*schedule.Schedule, error) {
	if err := s.locate(ctx, p); err != nil {
		return nil, err
	}

	forecast, err := s.Weather.Forecast(ctx, p.Lat, p.Lon)
	if err != nil {
		return nil, fmt.Errorf("failed to get weather for plot %s: %w", p.ID, err)
	}
	logs, err := s.Waterings.Recent(ctx, p.ID, watering.RecentLimit)
	if err != nil {
		return nil, err
	}

	moisture := s.defaultMoisture
	if p.SoilMoisture != nil {
		moisture = *p.SoilMoisture
	}

	days, err := s.Generator.Generate(schedule.Input{
		Plot:          p.Context(now),
		Forecast:      forecast,
		StartMoisture: moisture,
		Logs:          watering.Events(logs),
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	summary := narrative.Summary(p.Crop, p.Lat, p.Lon, days)
	gem, err := s.Narrator.Summarize(ctx, narrative.SummaryInput{
		PlotName: p.Name, Crop: p.Crop, Lat: p.Lat, Lon: p.Lon, Days: days,
	})
	if err != nil {
		log.Printf("Warning: narrative summary for plot %s failed: %v", p.ID, err)
		gem = ""
	}

	saved, err := s.Schedules.SaveGenerated(ctx, p.ID, days, summary, gem, now)
	if err != nil {
		return nil, err
	}
	log.Printf("Generated schedule for plot %s: %.2fL over %d days", p.ID, schedule.TotalLiters(days), len(days))
	return saved, nil
}

// locate fills in coordinates from the zip code when the plot has none.
func (s *Service) locate(ctx context.Context, p *plot.Plot) error {
	if p.Lat != 0 || p.Lon != 0 || p.ZipCode == "" {
		return nil
	}
	lat, lon, err := s.Weather.Geocode(ctx, p.ZipCode)
	if err != nil {
		return fmt.Errorf("failed to locate plot %s: %w", p.ID, err)
	}
	p.Lat, p.Lon = lat, lon
	if err := s.Plots.Update(ctx, p); err != nil {
		log.Printf("Warning: could not store coordinates for plot %s: %v", p.ID, err)
	}
	return nil
}

// ChatRequest is a farmer message about one plot.
type ChatRequest struct {
	PlotID    string `json:"plot_id"`
	SessionID string `json:"session_id"`
	Text      string `json:"prompt"`
}

// ChatResponse is the reply and, when the plan changed, the new plan.
type ChatResponse struct {
	Reply           string             `json:"reply"`
	Outcome         mutation.Outcome   `json:"outcome"`
	ScheduleUpdated bool               `json:"schedule_updated"`
	Schedule        []schedule.DayPlan `json:"schedule,omitempty"`
	Edits           []mutation.Edit    `json:"edits,omitempty"`
}

// HandleChat runs a message through the mutation engine and persists the
// outcome. Messages no rule handles are answered by the narrator.
func (s *Service) HandleChat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if req.Text == "" {
		return ChatResponse{}, errors.New("prompt is required")
	}
	defer s.locks.lock(req.PlotID)()

	p, err := s.Plots.Get(ctx, req.PlotID)
	if err != nil {
		return ChatResponse{}, err
	}

	var resp ChatResponse
	for attempt := 0; ; attempt++ {
		resp, err = s.handleOnce(ctx, p, req)
		if errors.Is(err, schedule.ErrConflict) && attempt < maxConflictRetries {
			log.Printf("Retrying chat command for plot %s after conflict", p.ID)
			continue
		}
		break
	}
	if err != nil {
		return ChatResponse{}, err
	}

	if err := s.Chats.Save(ctx, &chat.Message{
		PlotID: p.ID, SessionID: req.SessionID, Prompt: req.Text, Reply: resp.Reply, CreatedAt: s.now(),
	}); err != nil {
		log.Printf("Warning: failed to save chat log for plot %s: %v", p.ID, err)
	}
	return resp, nil
}

func (s *Service) handleOnce(ctx context.Context, p *plot.Plot, req ChatRequest) (ChatResponse, error) {
	now := s.now()
	sched, err := s.Schedules.Get(ctx, p.ID)
	if err != nil {
		return ChatResponse{}, err
	}
	var current, original []schedule.DayPlan
	var version int64
	if sched != nil {
		current, original, version = sched.Current, sched.Original, sched.Version
	}

	res := s.Engine.Apply(mutation.Command{Text: req.Text, Current: current, Original: original, Now: now})
	resp := ChatResponse{Reply: res.ReplyText, Outcome: res.Outcome}

	switch res.Outcome {
	case mutation.OutcomeApplied, mutation.OutcomeReverted:
		if res.ScheduleChanged {
			var rec *schedule.EditRecord
			if res.Outcome == mutation.OutcomeApplied {
				rec = &schedule.EditRecord{
					PlotID:      p.ID,
					Timestamp:   now,
					OldSchedule: current,
					NewSchedule: res.UpdatedSchedule,
					Reason:      req.Text,
				}
			}
			if err := s.Schedules.ApplyEdit(ctx, p.ID, version, res.UpdatedSchedule, rec, now); err != nil {
				return ChatResponse{}, err
			}
			resp.ScheduleUpdated = true
			resp.Edits = res.AppliedEdits
		}
		resp.Schedule = res.UpdatedSchedule

	case mutation.OutcomeConstraint:
		updated := plot.AppendConstraint(p.CustomConstraints, res.Constraint)
		if err := s.Plots.SetConstraints(ctx, p.ID, updated); err != nil {
			return ChatResponse{}, err
		}
		p.CustomConstraints = updated

	case mutation.OutcomeFreeForm:
		answer, err := s.Narrator.Answer(ctx, s.answerInput(ctx, p, req, current, now))
		if err != nil {
			return ChatResponse{}, fmt.Errorf("failed to answer: %w", err)
		}
		resp.Reply = answer
	}
	return resp, nil
}

func (s *Service) answerInput(ctx context.Context, p *plot.Plot, req ChatRequest, days []schedule.DayPlan, now time.Time) narrative.AnswerInput {
	in := narrative.AnswerInput{
		Question:    req.Text,
		PlotName:    p.Name,
		Crop:        p.Crop,
		AgeMonths:   p.AgeDays(now) / plot.DaysPerMonth,
		AreaM2:      p.AreaM2,
		Constraints: p.CustomConstraints,
		Days:        days,
	}

	if logs, err := s.Waterings.Recent(ctx, p.ID, 1); err == nil && len(logs) > 0 {
		in.LastWatered = &logs[0].WateredAt
	}
	if p.Lat != 0 || p.Lon != 0 {
		if forecast, err := s.Weather.Forecast(ctx, p.Lat, p.Lon); err == nil {
			in.Forecast = forecast
		} else {
			log.Printf("Warning: no forecast for chat context on plot %s: %v", p.ID, err)
		}
	}
	if msgs, err := s.Chats.Recent(ctx, p.ID, req.SessionID, historyTurns); err == nil {
		for _, m := range msgs {
			in.History = append(in.History, narrative.Turn{Prompt: truncate(m.Prompt, 100), Reply: truncate(m.Reply, 100)})
		}
	}
	return in
}

// WaterNow records a manual watering. liters may be zero to estimate it from minutes.
func (s *Service) WaterNow(ctx context.Context, plotID string, minutes, liters float64) (watering.Log, error) {
	if _, err := s.Plots.Get(ctx, plotID); err != nil {
		return watering.Log{}, err
	}
	l, err := watering.NewLog(plotID, s.now(), minutes, liters)
	if err != nil {
		return watering.Log{}, err
	}
	if err := s.Waterings.Record(ctx, l); err != nil {
		return watering.Log{}, err
	}
	return l, nil
}

// UpdatePlot applies edit to a fresh copy of the plot and stores it. It holds
// the plot's lock so chat commands that touch the plot are not overwritten.
func (s *Service) UpdatePlot(ctx context.Context, plotID string, edit func(p *plot.Plot) error) (*plot.Plot, error) {
	defer s.locks.lock(plotID)()

	existing, err := s.Plots.Get(ctx, plotID)
	if err != nil {
		return nil, err
	}
	p := *existing
	if err := edit(&p); err != nil {
		return nil, err
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	if err := s.Plots.Update(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Edits returns the plot's edit history in the order edits were applied.
func (s *Service) Edits(ctx context.Context, plotID string) ([]schedule.EditRecord, error) {
	if _, err := s.Plots.Get(ctx, plotID); err != nil {
		return nil, err
	}
	return s.Schedules.ListEdits(ctx, plotID)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
