package dto

import "time"

type FeedKind string

const (
	FeedTPStatus        FeedKind = "tp_status"
	FeedTPStep          FeedKind = "tp_step"
	FeedTPExit          FeedKind = "tp_exit"
	FeedTPError         FeedKind = "tp_error"
	FeedSignalCandidate FeedKind = "signal_candidate"
	FeedSignalSkip      FeedKind = "signal_skip"
	FeedSignalReject    FeedKind = "signal_reject"
	FeedOrderPlaced     FeedKind = "order_placed"
	FeedOrderError      FeedKind = "order_error"
	FeedInfo            FeedKind = "info"
)

type FeedLevel string

const (
	LevelInfo  FeedLevel = "info"
	LevelWarn  FeedLevel = "warn"
	LevelError FeedLevel = "error"
)

type FeedEvent struct {
	ID     string                 `json:"id"`
	Kind   FeedKind               `json:"kind"`
	Level  FeedLevel              `json:"level"`
	Symbol string                 `json:"symbol"`
	Msg    string                 `json:"msg"`
	Ts     time.Time              `json:"ts"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// Discrete reports kinds that are delivered to alert channels.
func (k FeedKind) Discrete() bool {
	switch k {
	case FeedTPStep, FeedTPExit, FeedTPError, FeedOrderPlaced, FeedOrderError:
		return true
	}
	return false
}
