package ocr

import (
	"context"
	"image"
	"sync"

	"golang.org/x/sync/semaphore"
)

var (
	limiterMu  sync.RWMutex
	ocrLimiter *semaphore.Weighted
)

// SetConcurrencyLimit bounds how many OCR subprocess invocations may run at
// once across all in-flight requests. max<=0 disables the limit.
func SetConcurrencyLimit(max int64) {
	limiterMu.Lock()
	defer limiterMu.Unlock()
	if max <= 0 {
		ocrLimiter = nil
		return
	}
	ocrLimiter = semaphore.NewWeighted(max)
}

// LimitedAdapter wraps an Adapter so every Run call acquires the global OCR
// concurrency semaphore before delegating.
type LimitedAdapter struct {
	Inner Adapter
}

func (l LimitedAdapter) Run(ctx context.Context, img image.Image) ([]RawBlock, map[string]any) {
	limiterMu.RLock()
	limiter := ocrLimiter
	limiterMu.RUnlock()

	if limiter == nil {
		return l.Inner.Run(ctx, img)
	}

	if err := limiter.Acquire(ctx, 1); err != nil {
		return nil, map[string]any{"ocr": "concurrency_limit_timeout"}
	}
	defer limiter.Release(1)

	return l.Inner.Run(ctx, img)
}
