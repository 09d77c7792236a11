package vlm

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"math/rand/v2"
	"time"
)

const MaxRetries = 3

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// ConvertWithRetry calls c until it succeeds, fails permanently, or
// MaxRetries attempts are used up.
func ConvertWithRetry(ctx context.Context, c Converter, img image.Image, page int, log *slog.Logger) (string, error) {
	return convertWithRetry(ctx, c, img, page, log, Backoff)
}

func convertWithRetry(ctx context.Context, c Converter, img image.Image, page int, log *slog.Logger, backoff func(int) time.Duration) (string, error) {
	var markup string
	var lastErr error
	for attempt := range MaxRetries {
		markup, lastErr = c.ConvertPage(ctx, img, page)
		if lastErr == nil || !IsRetryable(lastErr) {
			return markup, lastErr
		}
		if attempt == MaxRetries-1 {
			break
		}
		log.Warn("retryable conversion error", "page", page+1, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}
