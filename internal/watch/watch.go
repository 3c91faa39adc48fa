// Package watch provides polling helpers for observing linkboard slots when
// a caller wants a synchronous answer rather than a subscription.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/example/dashlink/pkg/linkboard"
)

// PollForFeedback polls a link's feedback slot until it carries news (an
// error or a valid verdict) or the timeout elapses. "No news" feedback is
// skipped, matching the signal semantics submitters apply.
// Polls every 200ms for the specified timeout duration.
func PollForFeedback(ctx context.Context, client *linkboard.Client, linkID string, timeout time.Duration) (linkboard.Feedback, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return linkboard.Feedback{}, ctx.Err()

		case <-timeoutCh:
			return linkboard.Feedback{}, fmt.Errorf("timeout waiting for feedback after %v", timeout)

		case <-ticker.C:
			fb, err := client.GetFeedback(ctx, linkID)
			if err != nil {
				if linkboard.IsNotFound(err) {
					// No verdict yet, continue polling
					continue
				}
				return linkboard.Feedback{}, fmt.Errorf("failed to query feedback: %w", err)
			}

			if fb.Empty() {
				continue
			}

			return fb, nil
		}
	}
}

// PollForSettled polls a link's reconcile state until validation settles it
// to active or invalid, or the timeout elapses. This is the synchronous
// answer to "did my submission render": a first-time success settles to
// active without ever writing feedback, so waiting on the feedback slot
// alone would never return.
func PollForSettled(ctx context.Context, client *linkboard.Client, linkID string, timeout time.Duration) (*linkboard.ReconcileState, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for settled state after %v", timeout)

		case <-ticker.C:
			state, err := client.GetState(ctx, linkID)
			if err != nil {
				if linkboard.IsNotFound(err) {
					continue
				}
				return nil, fmt.Errorf("failed to query state: %w", err)
			}

			if state.Status == linkboard.StatusPending {
				continue
			}

			return state, nil
		}
	}
}
