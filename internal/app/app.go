// Package app wires the irrigation planner together from a Config and exposes
// the operations the command line tools run.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"irrigation-planner/internal/agronomy"
	"irrigation-planner/internal/assistant"
	"irrigation-planner/internal/backtest"
	"irrigation-planner/internal/chat"
	"irrigation-planner/internal/config"
	"irrigation-planner/internal/database"
	"irrigation-planner/internal/httpapi"
	"irrigation-planner/internal/llm"
	"irrigation-planner/internal/metrics"
	"irrigation-planner/internal/narrative"
	"irrigation-planner/internal/plot"
	"irrigation-planner/internal/schedule"
	"irrigation-planner/internal/storage"
	"irrigation-planner/internal/watering"
	"irrigation-planner/internal/weather"
)

// App holds the application's dependencies.
type App struct {
	cfg *config.Config
	db  *database.DB

	Model     *agronomy.Model
	Plots     *plot.Repository
	Schedules *schedule.Repository
	Metrics   *metrics.Store
	Service   *assistant.Service

	closers []llm.Closer
}

// New opens the database and builds every component from cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	client := weather.NewClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL, cfg.GeocodingBaseURL)
	return newApp(ctx, cfg, weather.NewCachedProvider(client, cfg.WeatherCacheTTL))
}

func newApp(ctx context.Context, cfg *config.Config, provider weather.Provider) (*App, error) {
	model, err := LoadModel(cfg)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{
		cfg:       cfg,
		db:        db,
		Model:     model,
		Plots:     plot.NewRepository(db.SQL),
		Schedules: schedule.NewRepository(db.SQL),
		Metrics:   metrics.NewStore(db.SQL),
	}

	narrator, err := a.newNarrator(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Service = assistant.NewService(assistant.Deps{
		Plots:     a.Plots,
		Schedules: a.Schedules,
		Waterings: watering.NewRepository(db.SQL),
		Chats:     chat.NewRepository(db.SQL),
		Weather:   provider,
		Generator: schedule.NewGenerator(model),
		Narrator:  narrator,
	}, assistant.Options{
		ReuseWindow:     cfg.ScheduleReuse,
		DefaultMoisture: cfg.DefaultSoilMoisture,
	})
	return a, nil
}

// LoadModel builds the agronomy model from the built-in parameters, overlaid
// with the optional YAML parameter file and crop table.
func LoadModel(cfg *config.Config) (*agronomy.Model, error) {
	params := agronomy.DefaultParams()
	var err error
	if cfg.AgronomyParamsPath != "" {
		if params, err = agronomy.LoadParams(cfg.AgronomyParamsPath); err != nil {
			return nil, err
		}
		log.Printf("Loaded agronomy parameters from %s", cfg.AgronomyParamsPath)
	}
	if cfg.CropTablePath != "" {
		if params, err = agronomy.LoadCropTable(params, cfg.CropTablePath); err != nil {
			return nil, err
		}
		log.Printf("Loaded crop table from %s", cfg.CropTablePath)
	}
	return agronomy.NewModel(params)
}

// newNarrator prefers Gemini, then Groq, then the template narrator.
func (a *App) newNarrator(ctx context.Context) (narrative.Narrator, error) {
	switch {
	case a.cfg.GeminiAPIKey != "":
		gemini, err := llm.NewGeminiClient(ctx, a.cfg.GeminiAPIKey, a.cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gemini)
		log.Printf("Narrator: Gemini")
		return narrative.NewLLM(gemini, a.Metrics), nil
	case a.cfg.GroqAPIKey != "":
		log.Printf("Narrator: Groq")
		return narrative.NewLLM(llm.NewGroqClient(a.cfg.GroqAPIKey, ""), a.Metrics), nil
	default:
		log.Printf("No LLM key configured, using template narrator")
		return narrative.Template{}, nil
	}
}

// DataDir is the directory holding the database.
func (a *App) DataDir() string {
	return filepath.Dir(a.cfg.DatabasePath)
}

// HTTPHandler builds the REST API.
func (a *App) HTTPHandler() *httpapi.Handler {
	return httpapi.NewHandler(a.Service, a.Plots, a.Model, a.DataDir())
}

// PrintSchedule writes the plot's plan to w, regenerating it when forced.
func (a *App) PrintSchedule(ctx context.Context, w io.Writer, plotID string, force bool) (*schedule.Schedule, error) {
	p, err := a.Plots.Get(ctx, plotID)
	if err != nil {
		return nil, err
	}
	sched, err := a.Service.GetPlan(ctx, plotID, force)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(w, "Irrigation plan for %s (%s, %.1f m²)\n", p.Name, p.Crop, p.AreaM2)
	fmt.Fprintf(w, "Updated %s, version %d\n\n", sched.UpdatedAt.Format(time.RFC3339), sched.Version)
	for _, d := range sched.Current {
		fmt.Fprintf(w, "%-6s %s  %6.2fL  %-8s  %s\n", d.Day, d.Date, d.Liters, d.OptimalTime, d.Explanation)
	}
	fmt.Fprintf(w, "\n%s\n", sched.Summary)
	if sched.NarrativeSummary != "" {
		fmt.Fprintf(w, "\n%s\n", sched.NarrativeSummary)
	}
	return sched, nil
}

// ExportSchedule writes a JSON snapshot of sched into dir.
func (a *App) ExportSchedule(sched *schedule.Schedule, dir string) (string, error) {
	store, err := storage.NewExportStore(dir)
	if err != nil {
		return "", err
	}
	return store.SaveSchedule(sched)
}

// BacktestOptions describes a synthetic backtest run.
type BacktestOptions struct {
	Crop      string
	AreaM2    float64
	AgeDays   float64
	Soil      string
	Days      int
	Seed      uint64
	ExportDir string
}

// RunBacktest compares the model against the threshold rule over synthetic
// history and writes the markdown report to w.
func (a *App) RunBacktest(w io.Writer, opts BacktestOptions) (backtest.Comparison, error) {
	if !(opts.AreaM2 > 0) {
		return backtest.Comparison{}, schedule.ErrInvalidArea
	}
	if opts.Days <= 0 {
		return backtest.Comparison{}, fmt.Errorf("days must be positive, got %d", opts.Days)
	}
	pc := agronomy.PlotContext{
		Crop:    agronomy.ParseCrop(opts.Crop),
		AreaM2:  opts.AreaM2,
		AgeDays: opts.AgeDays,
		Soil:    agronomy.ParseSoilType(opts.Soil),
	}
	now := time.Now()
	cmp := backtest.CompareSynthetic(a.Model, pc, opts.Seed, opts.Days, now)
	fmt.Fprint(w, cmp.Report())

	if opts.ExportDir != "" {
		store, err := storage.NewExportStore(opts.ExportDir)
		if err != nil {
			return cmp, err
		}
		jsonPath, mdPath, err := store.SaveBacktest(cmp, now)
		if err != nil {
			return cmp, err
		}
		log.Printf("Backtest exported to %s and %s", jsonPath, mdPath)
	}
	return cmp, nil
}

// CleanupMetrics removes metric records older than days.
func (a *App) CleanupMetrics(days int) (int64, error) {
	return a.Metrics.Cleanup(days)
}

// IssueToken signs a REST API bearer token for subject.
func (a *App) IssueToken(subject string, ttl time.Duration) (string, error) {
	if a.cfg.APIJWTSecret == "" {
		return "", fmt.Errorf("API_JWT_SECRET environment variable not set")
	}
	return httpapi.IssueToken(a.cfg.APIJWTSecret, subject, ttl)
}

// DB exposes the underlying database for components built outside the container.
func (a *App) DB() *database.DB {
	return a.db
}

// Close releases model clients and the database.
func (a *App) Close() error {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			log.Printf("Warning: failed to close model client: %v", err)
		}
	}
	return a.db.Close()
}
