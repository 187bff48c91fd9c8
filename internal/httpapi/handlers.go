package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"irrigation-planner/internal/agronomy"
	"irrigation-planner/internal/assistant"
	"irrigation-planner/internal/backtest"
	"irrigation-planner/internal/metrics"
	"irrigation-planner/internal/plot"
)

var errInvalid = errors.New("invalid request")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInvalid, fmt.Sprintf(format, args...))
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"system": metrics.GetSysHealth(h.dataDir),
	})
}

func (h *Handler) ListPlots(c echo.Context) error {
	plots, err := h.plots.List(c.Request().Context())
	if err != nil {
		return err
	}
	if plots == nil {
		plots = []plot.Plot{}
	}
	return c.JSON(http.StatusOK, plots)
}

func (h *Handler) CreatePlot(c echo.Context) error {
	var p plot.Plot
	if err := c.Bind(&p); err != nil {
		return invalid("malformed plot: %v", err)
	}
	p.ID = ""
	if err := p.Validate(); err != nil {
		return invalid("%v", err)
	}
	if err := h.plots.Create(c.Request().Context(), &p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPlot(c echo.Context) error {
	p, err := h.plots.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePlot(c echo.Context) error {
	p, err := h.svc.UpdatePlot(c.Request().Context(), c.Param("id"), func(p *plot.Plot) error {
		if err := c.Bind(p); err != nil {
			return invalid("malformed plot: %v", err)
		}
		if err := p.Validate(); err != nil {
			return invalid("%v", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePlot(c echo.Context) error {
	if err := h.plots.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetSchedule(c echo.Context) error {
	force, _ := strconv.ParseBool(c.QueryParam("force_refresh"))
	s, err := h.svc.GetPlan(c.Request().Context(), c.Param("id"), force)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListEdits(c echo.Context) error {
	edits, err := h.svc.Edits(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, edits)
}

type chatRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
}

func (h *Handler) Chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return invalid("malformed chat request: %v", err)
	}
	if req.Prompt == "" {
		return invalid("prompt is required")
	}
	if req.SessionID == "" {
		req.SessionID = "api"
	}
	resp, err := h.svc.HandleChat(c.Request().Context(), assistant.ChatRequest{
		PlotID: c.Param("id"), SessionID: req.SessionID, Text: req.Prompt,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

type waterRequest struct {
	DurationMinutes float64 `json:"duration_minutes"`
	Liters          float64 `json:"liters"`
}

func (h *Handler) Water(c echo.Context) error {
	var req waterRequest
	if err := c.Bind(&req); err != nil {
		return invalid("malformed watering request: %v", err)
	}
	if req.DurationMinutes < 0 || req.Liters < 0 || (req.DurationMinutes == 0 && req.Liters == 0) {
		return invalid("duration_minutes or liters must be positive")
	}
	l, err := h.svc.WaterNow(c.Request().Context(), c.Param("id"), req.DurationMinutes, req.Liters)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, l)
}

type backtestRequest struct {
	Crop     string  `json:"crop"`
	AreaM2   float64 `json:"area_m2"`
	AgeDays  float64 `json:"age_days"`
	Soil     string  `json:"soil_type"`
	Drainage string  `json:"drainage"`
	Days     int     `json:"days"`
	Seed     uint64  `json:"seed"`
}

type backtestResponse struct {
	backtest.Comparison
	Report string `json:"report"`
}

// maxBacktestDays bounds synthetic history requests.
const maxBacktestDays = 3650

func (h *Handler) Backtest(c echo.Context) error {
	req := backtestRequest{Crop: "tomato", AreaM2: 10, AgeDays: 30, Days: 90, Seed: 42}
	if err := c.Bind(&req); err != nil {
		return invalid("malformed backtest request: %v", err)
	}
	if !(req.AreaM2 > 0) {
		return invalid("area_m2 must be positive")
	}
	if req.Days <= 0 || req.Days > maxBacktestDays {
		return invalid("days must be between 1 and %d", maxBacktestDays)
	}

	pc := agronomy.PlotContext{
		Crop:     agronomy.ParseCrop(req.Crop),
		AreaM2:   req.AreaM2,
		AgeDays:  req.AgeDays,
		Soil:     agronomy.ParseSoilType(req.Soil),
		Drainage: agronomy.ParseDrainage(req.Drainage),
	}
	cmp := backtest.CompareSynthetic(h.model, pc, req.Seed, req.Days, time.Now())
	return c.JSON(http.StatusOK, backtestResponse{Comparison: cmp, Report: cmp.Report()})
}
