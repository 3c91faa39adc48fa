// Package submitter implements the publishing side of a dashboard link: it
// packages a template with addressing metadata into a record, writes it to
// the link's outbound slot, and surfaces the renderer's feedback as local
// status changes.
package submitter

import (
	"context"
	"fmt"
	"log"
	"unicode"

	"github.com/google/uuid"

	"github.com/example/dashlink/pkg/linkboard"
)

// MsgWaitingForMonitoring is the local status reason emitted when no
// monitoring peer has published an identity yet. Recoverable: resubmit once
// the peer appears.
const MsgWaitingForMonitoring = "Waiting for a monitoring peer to send dashboard data"

// StatusFunc receives local validity changes for this submitter's
// dashboards. errorMessage is empty when valid is true.
type StatusFunc func(valid bool, errorMessage string)

// Submitter publishes dashboard records on behalf of one application.
//
// Every mutating operation is gated on the leadership capability: when this
// instance is not the designated writer the operation is a silent no-op,
// since a sibling instance holds the pen. The submitter owns only its own
// outbound records and the feedback it receives; the renderer's state is
// never touched from this side.
type Submitter struct {
	client      *linkboard.Client
	identity    linkboard.Identity
	defaultLink string
	leader      func() bool
	onStatus    StatusFunc
}

// New creates a Submitter for the given application identity. defaultLink
// is used when an operation does not name a link. leader supplies the
// write-leadership capability check; onStatus may be nil.
func New(client *linkboard.Client, identity linkboard.Identity, defaultLink string, leader func() bool, onStatus StatusFunc) (*Submitter, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	if defaultLink == "" {
		return nil, fmt.Errorf("default link cannot be empty")
	}
	if leader == nil {
		return nil, fmt.Errorf("leadership check cannot be nil")
	}

	return &Submitter{
		client:      client,
		identity:    identity,
		defaultLink: defaultLink,
		leader:      leader,
		onStatus:    onStatus,
	}, nil
}

// Submit packages a template into a record and writes it to the link's
// outbound slot, mirroring it into durable local state for restart
// recovery.
//
// The target identifier comes from the monitoring peer's published
// identity; without one, a local invalid status is raised and nothing is
// written upstream. Each submission carries a fresh nonce so the transport
// treats even an unchanged template as a new write.
func (s *Submitter) Submit(ctx context.Context, template, linkID string) error {
	if !s.leader() {
		return nil
	}
	linkID = s.resolveLink(linkID)

	peer, err := s.client.GetIdentity(ctx)
	if linkboard.IsNotFound(err) {
		s.notifyStatus(false, MsgWaitingForMonitoring)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read monitoring identity: %w", err)
	}

	blob, err := linkboard.EncodeTemplate(template)
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}

	record := &linkboard.DashboardRecord{
		LinkID:           linkID,
		Template:         blob,
		TargetIdentifier: peer.TargetIdentifier(),
		TargetLabel: fmt.Sprintf("%s [ %s / %s ]",
			capitalize(s.identity.Application), s.identity.Environment, s.identity.EnvironmentUUID),
		TargetQuery: fmt.Sprintf("environment='%s',environment_uuid='%s',application='%s'",
			s.identity.Environment, s.identity.EnvironmentUUID, s.identity.Application),
		Nonce: uuid.New().String(),
	}

	if err := s.client.PublishRecord(ctx, record); err != nil {
		return fmt.Errorf("failed to publish record for link %s: %w", linkID, err)
	}

	if err := s.client.SaveSubmitted(ctx, record); err != nil {
		return fmt.Errorf("failed to mirror record for link %s: %w", linkID, err)
	}

	return nil
}

// Retract withdraws the link's dashboard: the mirrored record is re-sent
// with the removed flag set and the local bookkeeping for the link is
// dropped. Retracting a link that never submitted is a no-op.
func (s *Submitter) Retract(ctx context.Context, linkID string) error {
	if !s.leader() {
		return nil
	}
	linkID = s.resolveLink(linkID)

	record, err := s.client.GetSubmitted(ctx, linkID)
	if linkboard.IsNotFound(err) {
		log.Printf("[Submitter] Nothing to retract for link %s", linkID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read submitted record for link %s: %w", linkID, err)
	}

	record.Removed = true
	record.Nonce = uuid.New().String()

	if err := s.client.PublishRecord(ctx, record); err != nil {
		return fmt.Errorf("failed to publish retraction for link %s: %w", linkID, err)
	}

	if err := s.client.DeleteSubmitted(ctx, linkID); err != nil {
		return fmt.Errorf("failed to drop bookkeeping for link %s: %w", linkID, err)
	}

	return nil
}

// Invalidate marks the link's dashboard invalid with the given reason and
// re-sends it. The renderer treats this as informational state from the
// submitter, purges any active artifact, and echoes the reason back through
// feedback.
func (s *Submitter) Invalidate(ctx context.Context, reason, linkID string) error {
	if !s.leader() {
		return nil
	}
	linkID = s.resolveLink(linkID)

	record, err := s.client.GetSubmitted(ctx, linkID)
	if linkboard.IsNotFound(err) {
		return fmt.Errorf("no submitted dashboard for link %s", linkID)
	}
	if err != nil {
		return fmt.Errorf("failed to read submitted record for link %s: %w", linkID, err)
	}

	record.Invalidated = true
	record.InvalidatedReason = reason
	record.Nonce = uuid.New().String()

	if err := s.client.PublishRecord(ctx, record); err != nil {
		return fmt.Errorf("failed to publish invalidation for link %s: %w", linkID, err)
	}

	if err := s.client.SaveSubmitted(ctx, record); err != nil {
		return fmt.Errorf("failed to mirror record for link %s: %w", linkID, err)
	}

	return nil
}

// Submitted returns the mirrored last-sent record for a link.
func (s *Submitter) Submitted(ctx context.Context, linkID string) (*linkboard.DashboardRecord, error) {
	return s.client.GetSubmitted(ctx, s.resolveLink(linkID))
}

// HandleFeedback translates a feedback message into a local status change.
// Non-empty errors always surface as invalid; a valid verdict surfaces as
// recovered; feedback with neither carries no news and raises nothing.
func (s *Submitter) HandleFeedback(fb linkboard.Feedback) {
	if fb.Errors != "" {
		s.notifyStatus(false, fb.Errors)
		return
	}

	if fb.Valid {
		s.notifyStatus(true, "")
	}
}

// DefaultLink returns the link used when operations do not name one.
func (s *Submitter) DefaultLink() string {
	return s.defaultLink
}

func (s *Submitter) resolveLink(linkID string) string {
	if linkID == "" {
		return s.defaultLink
	}
	return linkID
}

func (s *Submitter) notifyStatus(valid bool, errorMessage string) {
	if s.onStatus != nil {
		s.onStatus(valid, errorMessage)
	}
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
