package dto

import "net/http"

type BaseResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func NewBaseResponse(code int, message string, data interface{}) *BaseResponse {
	return &BaseResponse{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

func NewBadRequestResponse(message string) *BaseResponse {
	return NewBaseResponse(http.StatusBadRequest, message, nil)
}

func NewSuccessResponse(message string, data interface{}) *BaseResponse {
	return NewBaseResponse(http.StatusOK, message, data)
}

type EvaluateRequest struct {
	Symbol string `json:"symbol" validate:"required,max=32"`
	Manual bool   `json:"manual"`
}

type BotActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type FeedQuery struct {
	Limit int `query:"limit" validate:"gte=0,lte=500"`
}

type TpExitRequest struct {
	Reason ExitReason `json:"reason" validate:"omitempty,max=32"`
}

type JobHistoryQuery struct {
	Limit int `query:"limit" validate:"gte=0,lte=100"`
}
