// Package httpapi exposes plots, schedules, chat and backtests over REST.
package httpapi

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"irrigation-planner/internal/agronomy"
	"irrigation-planner/internal/assistant"
	"irrigation-planner/internal/plot"
	"irrigation-planner/internal/schedule"
)

// Handler holds what the REST endpoints need.
type Handler struct {
	svc     *assistant.Service
	plots   *plot.Repository
	model   *agronomy.Model
	dataDir string
}

// NewHandler creates a Handler. dataDir is reported by the health endpoint.
func NewHandler(svc *assistant.Service, plots *plot.Repository, model *agronomy.Model, dataDir string) *Handler {
	return &Handler{svc: svc, plots: plots, model: model, dataDir: dataDir}
}

// New builds the echo server. When jwtSecret is empty the API is left open.
func New(h *Handler, jwtSecret string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errorHandler(e)

	e.GET("/health", h.Health)

	api := e.Group("/api")
	if jwtSecret != "" {
		api.Use(RequireJWT(jwtSecret))
	} else {
		log.Printf("Warning: API_JWT_SECRET not set, REST API is unauthenticated")
	}

	api.GET("/plots", h.ListPlots)
	api.POST("/plots", h.CreatePlot)
	api.GET("/plots/:id", h.GetPlot)
	api.PUT("/plots/:id", h.UpdatePlot)
	api.DELETE("/plots/:id", h.DeletePlot)

	api.GET("/plots/:id/schedule", h.GetSchedule)
	api.GET("/plots/:id/edits", h.ListEdits)
	api.POST("/plots/:id/chat", h.Chat)
	api.POST("/plots/:id/water", h.Water)

	api.POST("/backtest", h.Backtest)
	return e
}

// errorHandler maps domain errors to status codes before echo's default handling.
func errorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
		case errors.Is(err, plot.ErrPlotNotFound), errors.Is(err, schedule.ErrNoSchedule):
			err = echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, schedule.ErrConflict):
			err = echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, schedule.ErrInvalidArea), errors.Is(err, errInvalid):
			err = echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			log.Printf("Error handling %s %s: %v", c.Request().Method, c.Path(), err)
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
}
