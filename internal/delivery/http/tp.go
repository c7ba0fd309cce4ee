package http

import (
	"net/http"
	"poseidon/internal/dto"
	"strings"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupTp(base *echo.Group) {
	v1 := base.Group("/v1/tp")
	{
		v1.GET("", h.listTp)
		v1.GET("/config", h.getTpConfig)
		v1.PUT("/config", h.putTpConfig)
		v1.POST("/open", h.openTp)
		v1.POST("/tick", h.tickTp)
		v1.GET("/:symbol", h.getTp)
		v1.POST("/:symbol/exit", h.exitTp)
		v1.DELETE("/:symbol", h.resetTp)
	}
}

func (h *HttpAPIHandler) listTp(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", h.service.Tracker.List()))
}

func (h *HttpAPIHandler) getTp(c echo.Context) error {
	st := h.service.Tracker.GetStatus(symbolParam(c))
	if st == nil {
		return h.errorResponse(c, dto.ErrNotTracked)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", st))
}

func (h *HttpAPIHandler) openTp(c echo.Context) error {
	req := new(dto.PositionOpen)
	if err := h.bind(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))

	if !h.service.Tracker.Init(c.Request().Context(), *req) {
		return c.JSON(http.StatusConflict, dto.NewBaseResponse(http.StatusConflict, "symbol already tracked", nil))
	}
	return c.JSON(http.StatusCreated, dto.NewBaseResponse(http.StatusCreated, "tracking", h.service.Tracker.GetStatus(req.Symbol)))
}

func (h *HttpAPIHandler) tickTp(c echo.Context) error {
	req := new(dto.PriceTick)
	if err := h.bind(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))

	if h.service.Tracker.GetStatus(req.Symbol) == nil {
		return h.errorResponse(c, dto.ErrNotTracked)
	}
	if err := h.service.Tracker.Update(c.Request().Context(), *req); err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", h.service.Tracker.GetStatus(req.Symbol)))
}

func (h *HttpAPIHandler) exitTp(c echo.Context) error {
	req := new(dto.TpExitRequest)
	if c.Request().ContentLength > 0 {
		if err := h.bind(c, req); err != nil {
			return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
		}
	}
	symbol := symbolParam(c)
	if err := h.service.Tracker.MarkExited(c.Request().Context(), symbol, req.Reason); err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("exited", h.service.Tracker.GetStatus(symbol)))
}

func (h *HttpAPIHandler) resetTp(c echo.Context) error {
	if !h.service.Tracker.Reset(c.Request().Context(), symbolParam(c)) {
		return h.errorResponse(c, dto.ErrNotTracked)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("reset", nil))
}

func (h *HttpAPIHandler) getTpConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", h.service.Tracker.Config()))
}

func (h *HttpAPIHandler) putTpConfig(c echo.Context) error {
	req := new(dto.TpConfig)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid request body"))
	}
	// SetConfig fills defaults before validating
	if err := h.service.Tracker.SetConfig(*req); err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("updated", h.service.Tracker.Config()))
}

func symbolParam(c echo.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
}
