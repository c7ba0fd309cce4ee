package http

import (
	"context"
	"errors"
	"net/http"
	"poseidon/internal/dto"
	"poseidon/internal/service"
	"poseidon/pkg/logger"
	"poseidon/pkg/metrics"
	"poseidon/pkg/middleware"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type HttpAPIHandler struct {
	ctx       context.Context
	echo      *echo.Echo
	validator *goValidator.Validate
	service   *service.Service
	metrics   *metrics.Metrics
	log       *logger.Logger
}

func NewHttpAPIHandler(ctx context.Context, echo *echo.Echo, validator *goValidator.Validate, service *service.Service, m *metrics.Metrics, log *logger.Logger) *HttpAPIHandler {
	return &HttpAPIHandler{
		ctx:       ctx,
		echo:      echo,
		validator: validator,
		service:   service,
		metrics:   m,
		log:       log,
	}
}

func (h *HttpAPIHandler) SetupRoutes() {
	h.echo.Use(middleware.NewRateLimiterMiddleware(middleware.DefaultRateLimitConfig()))

	if h.metrics != nil {
		h.echo.GET("/metrics", echo.WrapHandler(h.metrics.Handler()))
	}
	h.echo.GET("/ws/feed", h.streamFeed)

	base := h.echo.Group("/api")
	h.SetupTp(base)
	h.SetupSignals(base)
	h.SetupJobs(base)
}

// bind decodes and validates a request into req. The error text is safe to return to the client.
func (h *HttpAPIHandler) bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errors.New("invalid request body")
	}
	return h.validator.Struct(req)
}

func (h *HttpAPIHandler) errorResponse(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, dto.ErrNotTracked), errors.Is(err, dto.ErrJobNotFound):
		code = http.StatusNotFound
	case errors.Is(err, dto.ErrInvalidConfig):
		code = http.StatusBadRequest
	case errors.Is(err, dto.ErrJobRunning), errors.Is(err, dto.ErrAlreadyExited):
		code = http.StatusConflict
	}
	if code == http.StatusInternalServerError {
		h.log.ErrorContext(c.Request().Context(), "Request failed", logger.StringField("path", c.Path()), logger.ErrorField(err))
	}
	return c.JSON(code, dto.NewBaseResponse(code, err.Error(), nil))
}
