package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"DipHunter/internal/collector"
	"DipHunter/internal/model"
	"DipHunter/internal/store"
)

// HunterRunner exposes hunter decision inputs and manual cycles.
type HunterRunner interface {
	Inputs(ctx context.Context, id int64) (*model.DecisionInputs, error)
	Trigger(ctx context.Context, id int64) (*model.DecisionInputs, error)
	Forget(ctx context.Context, id int64) error
}

// Handler serves the hunter API.
type Handler struct {
	runner    HunterRunner
	store     store.Store
	intervals map[string]bool
	logger    *zap.Logger
}

// NewHandler creates a Handler. Hunters may only use one of intervals,
// the set the scheduler runs.
func NewHandler(runner HunterRunner, st store.Store, intervals []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]bool, len(intervals))
	for _, iv := range intervals {
		allowed[iv] = true
	}
	return &Handler{runner: runner, store: st, intervals: allowed, logger: logger}
}

// RegisterRoutes mounts the API under /api.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/hunters", h.ListHunters)
	g.POST("/hunters", h.CreateHunter)
	g.PUT("/hunters/:id", h.UpdateHunter)
	g.PATCH("/hunters/:id", h.UpdateHunter)
	g.DELETE("/hunters/:id", h.DeleteHunter)
	g.GET("/hunters/:id/inputs", h.Inputs)
	g.POST("/hunters/:id/run", h.Run)
	g.POST("/users", h.CreateUser)
	g.GET("/users/:id/analysis", h.Analysis)
}

type createUserRequest struct {
	Username                string `json:"username" validate:"required,max=64"`
	Email                   string `json:"email" validate:"omitempty,email"`
	TelegramChatID          string `json:"telegram_chat_id" validate:"omitempty,numeric"`
	EmailSignalsReceiver    bool   `json:"email_signals_receiver"`
	TelegramSignalsReceiver bool   `json:"telegram_signals_receiver"`
}

type listHuntersRequest struct {
	UserID int64 `query:"user_id" validate:"required,gt=0"`
}

type hunterIDRequest struct {
	ID int64 `param:"id" validate:"required,gt=0"`
}

// createHunterRequest carries toggles and profile as partial overrides of the defaults.
type createHunterRequest struct {
	UserID   int64           `json:"user_id" validate:"required,gt=0"`
	Symbol   string          `json:"symbol" default:"BTCUSDC" validate:"required,alphanum,uppercase"`
	Interval string          `json:"interval" default:"1h" validate:"required"`
	Comment  string          `json:"comment" validate:"max=255"`
	Note     string          `json:"note"`
	Running  bool            `json:"running"`
	Toggles  json.RawMessage `json:"toggles"`
	Profile  json.RawMessage `json:"profile"`
}

// updateHunterRequest changes only the fields present in the body.
type updateHunterRequest struct {
	ID       int64           `param:"id" validate:"required,gt=0"`
	Symbol   *string         `json:"symbol" validate:"omitempty,alphanum,uppercase"`
	Interval *string         `json:"interval"`
	Comment  *string         `json:"comment" validate:"omitempty,max=255"`
	Note     *string         `json:"note"`
	Running  *bool           `json:"running"`
	Toggles  json.RawMessage `json:"toggles"`
	Profile  json.RawMessage `json:"profile"`
}

// analysisView is AnalysisSettings without the raw klines.
type analysisView struct {
	*model.AnalysisSettings
	KlineCount int `json:"kline_count"`
}

func (h *Handler) Health(c echo.Context) error {
	return success(c, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (h *Handler) ListHunters(c echo.Context) error {
	req := &listHuntersRequest{}
	if errs := bindAndValidate(c, req); errs != nil {
		return badRequest(c, errs)
	}
	hunters, err := h.store.HuntersByUser(c.Request().Context(), req.UserID)
	if err != nil {
		h.logger.Error("list hunters", zap.Int64("user_id", req.UserID), zap.Error(err))
		return errorResponse(c, err)
	}
	if hunters == nil {
		hunters = []*model.Hunter{}
	}
	return success(c, &ListData{Rows: hunters, Total: len(hunters)})
}

func (h *Handler) CreateHunter(c echo.Context) error {
	req := &createHunterRequest{}
	if errs := bindAndValidate(c, req); errs != nil {
		return badRequest(c, errs)
	}
	if fe := h.checkInterval(req.Interval); fe != nil {
		return badRequest(c, []FieldError{*fe})
	}

	hunter := model.NewHunter(req.UserID)
	hunter.Symbol = req.Symbol
	hunter.Interval = req.Interval
	hunter.Comment = req.Comment
	hunter.Note = req.Note
	hunter.Running = req.Running
	if fe := mergeSettings(hunter, req.Toggles, req.Profile); fe != nil {
		return badRequest(c, []FieldError{*fe})
	}
	if err := checkHunter(hunter); err != nil {
		return errorResponse(c, err)
	}

	ctx := c.Request().Context()
	if _, err := h.store.User(ctx, req.UserID); err != nil {
		return errorResponse(c, err)
	}
	id, err := h.store.CreateHunter(ctx, hunter)
	if err != nil {
		h.logger.Error("create hunter", zap.Error(err))
		return errorResponse(c, err)
	}
	hunter.ID = id
	return created(c, hunter)
}

func (h *Handler) UpdateHunter(c echo.Context) error {
	req := &updateHunterRequest{}
	if errs := bindAndValidate(c, req); errs != nil {
		return badRequest(c, errs)
	}
	ctx := c.Request().Context()
	hunter, err := h.store.Hunter(ctx, req.ID)
	if err != nil {
		return errorResponse(c, err)
	}

	if req.Symbol != nil {
		hunter.Symbol = *req.Symbol
	}
	if req.Interval != nil {
		if fe := h.checkInterval(*req.Interval); fe != nil {
			return badRequest(c, []FieldError{*fe})
		}
		hunter.Interval = *req.Interval
	}
	if req.Comment != nil {
		hunter.Comment = *req.Comment
	}
	if req.Note != nil {
		hunter.Note = *req.Note
	}
	if req.Running != nil {
		hunter.Running = *req.Running
	}
	if fe := mergeSettings(hunter, req.Toggles, req.Profile); fe != nil {
		return badRequest(c, []FieldError{*fe})
	}
	if err := checkHunter(hunter); err != nil {
		return errorResponse(c, err)
	}

	if err := h.store.UpdateHunter(ctx, hunter); err != nil {
		h.logger.Error("update hunter", zap.Int64("hunter_id", req.ID), zap.Error(err))
		return errorResponse(c, err)
	}
	h.forget(ctx, req.ID)
	return success(c, hunter)
}

func (h *Handler) DeleteHunter(c echo.Context) error {
	req := &hunterIDRequest{}
	if errs := bindAndValidate(c, req); errs != nil {
		return badRequest(c, errs)
	}
	ctx := c.Request().Context()
	if err := h.store.DeleteHunter(ctx, req.ID); err != nil {
		return errorResponse(c, err)
	}
	h.forget(ctx, req.ID)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) forget(ctx context.Context, id int64) {
	if err := h.runner.Forget(ctx, id); err != nil {
		h.logger.Warn("drop cached inputs", zap.Int64("hunter_id", id), zap.Error(err))
	}
}

func (h *Handler) checkInterval(iv string) *FieldError {
	if _, err := collector.ParseInterval(iv); err != nil {
		return &FieldError{Code: "ERR_INTERVAL", Field: "Interval", Message: err.Error()}
	}
	if !h.intervals[iv] {
		return &FieldError{Code: "ERR_INTERVAL", Field: "Interval", Message: fmt.Sprintf("interval %q is not scheduled", iv)}
	}
	return nil
}

// mergeSettings overlays partial toggles and profile JSON on the hunter's current values.
func mergeSettings(hunter *model.Hunter, toggles, profile json.RawMessage) *FieldError {
	if len(toggles) > 0 {
		if err := sonic.Unmarshal(toggles, &hunter.Toggles); err != nil {
			return &FieldError{Code: "ERR_TOGGLES", Field: "Toggles", Message: err.Error()}
		}
	}
	if len(profile) > 0 {
		if err := sonic.Unmarshal(profile, &hunter.Profile); err != nil {
			return &FieldError{Code: "ERR_PROFILE", Field: "Profile", Message: err.Error()}
		}
	}
	return nil
}

func checkHunter(hunter *model.Hunter) error {
	if err := hunter.Profile.Validate(); err != nil {
		return err
	}
	return hunter.Validate()
}

func (h *Handler) CreateUser(c echo.Context) error {
	req := &createUserRequest{}
	if errs := bindAndValidate(c, req); errs != nil {
		return badRequest(c, errs)
	}
	u := &model.User{
		Username:                req.Username,
		Email:                   req.Email,
		TelegramChatID:          req.TelegramChatID,
		EmailSignalsReceiver:    req.EmailSignalsReceiver,
		TelegramSignalsReceiver: req.TelegramSignalsReceiver,
	}
	ctx := c.Request().Context()
	id, err := h.store.CreateUser(ctx, u)
	if err != nil {
		h.logger.Error("create user", zap.String("username", req.Username), zap.Error(err))
		return errorResponse(c, err)
	}
	stored, err := h.store.User(ctx, id)
	if err != nil {
		return errorResponse(c, err)
	}
	return created(c, stored)
}

func (h *Handler) Inputs(c echo.Context) error {
	req := &hunterIDRequest{}
	if errs := bindAndValidate(c, req); errs != nil {
		return badRequest(c, errs)
	}
	in, err := h.runner.Inputs(c.Request().Context(), req.ID)
	if err != nil {
		return errorResponse(c, err)
	}
	return success(c, in)
}

func (h *Handler) Run(c echo.Context) error {
	req := &hunterIDRequest{}
	if errs := bindAndValidate(c, req); errs != nil {
		return badRequest(c, errs)
	}
	in, err := h.runner.Trigger(c.Request().Context(), req.ID)
	if err != nil {
		h.logger.Warn("manual run failed", zap.Int64("hunter_id", req.ID), zap.Error(err))
		return errorResponse(c, err)
	}
	return success(c, in)
}

func (h *Handler) Analysis(c echo.Context) error {
	req := &hunterIDRequest{}
	if errs := bindAndValidate(c, req); errs != nil {
		return badRequest(c, errs)
	}
	a, err := h.store.AnalysisSettings(c.Request().Context(), req.ID)
	if err != nil {
		return errorResponse(c, err)
	}
	return success(c, &analysisView{AnalysisSettings: a, KlineCount: len(a.Klines)})
}
