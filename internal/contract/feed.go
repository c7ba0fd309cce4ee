package contract

import (
	"poseidon/internal/dto"
	"time"
)

// FeedSink is fire-and-forget; implementations must not block the caller.
type FeedSink interface {
	Emit(event dto.FeedEvent)
}

type ThrottledFeedSink interface {
	FeedSink
	EmitThrottled(key string, cooldown time.Duration, event dto.FeedEvent) bool
}
