package http

import (
	"errors"
	"net/http"
	"poseidon/internal/dto"
	"poseidon/internal/strategy"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupJobs(base *echo.Group) {
	v1 := base.Group("/v1/jobs")
	{
		v1.GET("", h.listJobs)
		v1.POST("/:name/run", h.runJob)
		v1.GET("/:name/history", h.jobHistory)
	}
}

func (h *HttpAPIHandler) listJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", h.service.SchedulerService.Jobs()))
}

// runJob runs the job synchronously. A failed run still reports its result.
func (h *HttpAPIHandler) runJob(c echo.Context) error {
	result, err := h.service.SchedulerService.RunJob(c.Request().Context(), c.Param("name"))
	switch {
	case errors.Is(err, dto.ErrJobNotFound), errors.Is(err, dto.ErrJobRunning):
		return h.errorResponse(c, err)
	case err != nil:
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), result))
	}
	code := http.StatusOK
	if result.ExitCode == strategy.JOB_EXIT_CODE_PARTIAL_SUCCESS {
		code = http.StatusPartialContent
	}
	return c.JSON(code, dto.NewBaseResponse(code, "job finished", result))
}

func (h *HttpAPIHandler) jobHistory(c echo.Context) error {
	req := new(dto.JobHistoryQuery)
	if err := h.bind(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}
	limit := req.Limit
	if limit == 0 {
		limit = 20
	}
	history, err := h.service.SchedulerService.History(c.Request().Context(), c.Param("name"), limit)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", history))
}
