package http

import (
	"net/http"
	"poseidon/internal/dto"
	"strings"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupSignals(base *echo.Group) {
	v1 := base.Group("/v1")
	{
		v1.POST("/signals/evaluate", h.evaluateSignal)
		v1.GET("/bot/active", h.getBotActive)
		v1.POST("/bot/active", h.setBotActive)
		v1.GET("/feed", h.recentFeed)
		v1.GET("/journal", h.tradeJournal)
	}
}

func (h *HttpAPIHandler) evaluateSignal(c echo.Context) error {
	req := new(dto.EvaluateRequest)
	if err := h.bind(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	record := h.service.SignalPipeline.Evaluate(c.Request().Context(), req.Symbol, dto.EvaluateOptions{Manual: req.Manual})
	if record == nil {
		return c.JSON(http.StatusUnprocessableEntity, dto.NewBaseResponse(http.StatusUnprocessableEntity, "symbol rejected", nil))
	}
	msg := "candidate"
	if record.Skipped {
		msg = "skipped: " + record.SkipReason
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse(msg, record))
}

func (h *HttpAPIHandler) getBotActive(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", map[string]bool{"active": h.service.SignalPipeline.Active()}))
}

func (h *HttpAPIHandler) setBotActive(c echo.Context) error {
	req := new(dto.BotActiveRequest)
	if err := h.bind(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}
	h.service.SignalPipeline.SetActive(*req.Active)
	msg := "scanner paused"
	if *req.Active {
		msg = "scanner activated"
	}
	h.service.FeedService.Emit(dto.FeedEvent{Kind: dto.FeedInfo, Level: dto.LevelInfo, Msg: msg})
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", map[string]bool{"active": *req.Active}))
}

func (h *HttpAPIHandler) recentFeed(c echo.Context) error {
	req := new(dto.FeedQuery)
	if err := h.bind(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}
	limit := req.Limit
	if limit == 0 {
		limit = 100
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", h.service.FeedService.Recent(limit)))
}

func (h *HttpAPIHandler) tradeJournal(c echo.Context) error {
	req := new(dto.JournalQuery)
	if err := h.bind(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Limit == 0 {
		req.Limit = 50
	}
	entries, err := h.service.TradeService.Journal(c.Request().Context(), *req)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", entries))
}
