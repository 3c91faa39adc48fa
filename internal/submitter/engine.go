package submitter

import (
	"context"
	"fmt"
	"log"

	"github.com/example/dashlink/pkg/linkboard"
)

// Run blocks processing inbound feedback events until the context is
// cancelled. Each notification is a level trigger: the feedback slot is
// re-read and the current verdict dispatched through HandleFeedback.
// Non-leaders observe events but raise no signals.
func (s *Submitter) Run(ctx context.Context) error {
	sub, err := s.client.SubscribeFeedbackEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to feedback events: %w", err)
	}
	defer sub.Close()

	log.Printf("[Submitter] Watching feedback for application '%s'", s.identity.Application)

	for {
		select {
		case <-ctx.Done():
			return nil

		case linkID, ok := <-sub.Events():
			if !ok {
				log.Printf("[Submitter] Feedback subscription closed")
				return nil
			}
			if !s.leader() {
				continue
			}

			fb, err := s.client.GetFeedback(ctx, linkID)
			if linkboard.IsNotFound(err) {
				continue
			}
			if err != nil {
				log.Printf("[Submitter] Error reading feedback for link %s: %v", linkID, err)
				continue
			}

			s.HandleFeedback(fb)
		}
	}
}
