package reconciler

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/example/dashlink/pkg/linkboard"
)

// Validation failure reasons reported back to submitters. These strings
// travel over the feedback slot and surface directly in peer status, so
// they stay human-readable.
const (
	MsgNoDatasources = "Cannot add Grafana dashboard. No configured datasources"
	MsgNoMatch       = "Cannot find a Grafana datasource matching the dashboard"
	MsgBadTemplate   = "Cannot add Grafana dashboard. Template is not valid"
)

// Reconciler is the renderer-side state machine. It owns the per-link
// reconcile state exclusively: every inbound record, resource set change,
// and link teardown funnels through it, and each transition is persisted to
// the linkboard so a restart resumes from stored state alone.
//
// The reconciler performs no internal locking. The host guarantees a single
// mutator: one trigger is processed to completion before the next.
type Reconciler struct {
	client    *linkboard.Client
	resources []linkboard.Resource
	states    map[string]*linkboard.ReconcileState
	onChanged func()
}

// NewReconciler creates a reconciler backed by the given linkboard client.
// onChanged fires whenever the set of rendered dashboards actually changed:
// a new or updated artifact was stored, or a stale artifact was purged.
// It may be nil.
func NewReconciler(client *linkboard.Client, onChanged func()) *Reconciler {
	return &Reconciler{
		client:    client,
		resources: []linkboard.Resource{},
		states:    make(map[string]*linkboard.ReconcileState),
		onChanged: onChanged,
	}
}

// Resume loads all tracked link states and the active resource set from the
// linkboard. Called once at startup, before any trigger is processed.
func (r *Reconciler) Resume(ctx context.Context) error {
	states, err := r.client.ListStates(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore link states: %w", err)
	}

	r.states = make(map[string]*linkboard.ReconcileState, len(states))
	for _, state := range states {
		r.states[state.LinkID] = state
	}

	sources, err := r.client.GetSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore resource set: %w", err)
	}
	r.resources = sources

	log.Printf("[Reconciler] Resumed %d tracked links, %d datasources", len(r.states), len(r.resources))
	return nil
}

// Reconcile re-evaluates one link against the current resource set.
//
// Malformed records are protocol violations: logged and dropped without
// feedback, since the link id itself cannot be trusted. Every other failure
// is recorded as invalid state and reported to the submitter; validation is
// never fatal.
func (r *Reconciler) Reconcile(ctx context.Context, record *linkboard.DashboardRecord) error {
	if err := record.Validate(); err != nil {
		log.Printf("[Reconciler] Dropping malformed record: %v", err)
		return nil
	}

	// The nonce only exists to force a transport write; nothing past this
	// point may see it, or snapshot comparison would never match.
	rec := record.StripNonce()
	linkID := rec.LinkID

	if rec.Removed {
		return r.dropLink(ctx, linkID, false)
	}

	// First contact creates the link's state; validation below settles it.
	if _, tracked := r.states[linkID]; !tracked {
		r.states[linkID] = &linkboard.ReconcileState{
			LinkID: linkID,
			Status: linkboard.StatusPending,
			Record: &rec,
		}
	}

	if rec.Invalidated {
		return r.setInvalid(ctx, rec, rec.InvalidatedReason)
	}

	if len(r.resources) == 0 {
		return r.setInvalid(ctx, rec, MsgNoDatasources)
	}

	source, ok := MatchResource(rec.TargetIdentifier, r.resources)
	if !ok {
		return r.setInvalid(ctx, rec, MsgNoMatch)
	}

	rendered, err := renderDashboard(rec, source.SourceName)
	if err != nil {
		log.Printf("[Reconciler] Render failed for link %s: %v", linkID, err)
		return r.setInvalid(ctx, rec, MsgBadTemplate)
	}

	artifact := &linkboard.RenderedArtifact{
		TargetAddress: rec.TargetIdentifier,
		Dashboard:     rendered,
		Source:        rec,
	}

	prev := r.states[linkID]
	wasInvalid := prev.Status == linkboard.StatusInvalid
	unchanged := prev.Status == linkboard.StatusActive &&
		prev.Artifact != nil && prev.Artifact.Source.Equal(rec)

	state := &linkboard.ReconcileState{
		LinkID:   linkID,
		Status:   linkboard.StatusActive,
		Record:   &rec,
		Artifact: artifact,
	}
	r.states[linkID] = state
	if err := r.client.SaveState(ctx, state); err != nil {
		return fmt.Errorf("failed to persist active state for link %s: %w", linkID, err)
	}

	// Recovery must be announced even when the re-rendered artifact is
	// byte-identical to the one that was active before the link went bad.
	if wasInvalid {
		if err := r.client.WriteFeedback(ctx, linkID, linkboard.Feedback{Errors: "", Valid: true}); err != nil {
			return fmt.Errorf("failed to send recovery feedback for link %s: %w", linkID, err)
		}
	}

	if !unchanged {
		r.notifyChanged()
	}

	return nil
}

// RenewResources replaces the resource set wholesale, then re-validates
// every tracked link: an added datasource can rescue an invalid record, a
// removed one can break an active dashboard. Total work is one reconcile
// per tracked link.
//
// Per-link failures during the sweep are logged and do not stop it.
func (r *Reconciler) RenewResources(ctx context.Context, sources []linkboard.Resource) error {
	r.resources = append([]linkboard.Resource(nil), sources...)

	// Snapshot before sweeping: Reconcile rewrites the state map.
	tracked := make([]*linkboard.ReconcileState, 0, len(r.states))
	for _, state := range r.states {
		if state.Status == linkboard.StatusInvalid || state.Status == linkboard.StatusActive {
			tracked = append(tracked, state)
		}
	}
	sort.Slice(tracked, func(i, j int) bool { return tracked[i].LinkID < tracked[j].LinkID })

	for _, state := range tracked {
		record := r.recordForResweep(state)
		if record == nil {
			continue
		}

		if err := r.Reconcile(ctx, record); err != nil {
			log.Printf("[Reconciler] Error re-validating link %s: %v", state.LinkID, err)
		}
	}

	return nil
}

// recordForResweep picks the record a renewal sweep re-validates: invalid
// links re-use their stored record, active links the snapshot that produced
// the artifact. The transport only shows the latest write, so stored state
// is the only history there is.
func (r *Reconciler) recordForResweep(state *linkboard.ReconcileState) *linkboard.DashboardRecord {
	switch state.Status {
	case linkboard.StatusInvalid:
		return state.Record
	case linkboard.StatusActive:
		if state.Artifact == nil {
			return nil
		}
		snapshot := state.Artifact.Source
		return &snapshot
	default:
		return nil
	}
}

// LinkBroken handles an external link teardown: state is dropped without
// feedback (the peer is gone), and the host is told to re-read dashboards.
func (r *Reconciler) LinkBroken(ctx context.Context, linkID string) error {
	return r.dropLink(ctx, linkID, true)
}

// Dashboards returns the rendered artifacts of all active links, ordered by
// link id. The host re-reads this snapshot whenever onChanged fires.
func (r *Reconciler) Dashboards() []linkboard.RenderedArtifact {
	artifacts := make([]linkboard.RenderedArtifact, 0, len(r.states))
	for _, state := range r.states {
		if state.Status == linkboard.StatusActive && state.Artifact != nil {
			artifacts = append(artifacts, *state.Artifact)
		}
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Source.LinkID < artifacts[j].Source.LinkID
	})
	return artifacts
}

// Resources returns a copy of the active resource set.
func (r *Reconciler) Resources() []linkboard.Resource {
	return append([]linkboard.Resource(nil), r.resources...)
}

// setInvalid records a validation failure: any stale active artifact is
// purged first, the invalid state (with its record, for later renewal
// sweeps) is persisted, and the reason is reported to the submitter.
func (r *Reconciler) setInvalid(ctx context.Context, rec linkboard.DashboardRecord, reason string) error {
	linkID := rec.LinkID
	r.purgeDeadDashboard(linkID)

	state := &linkboard.ReconcileState{
		LinkID: linkID,
		Status: linkboard.StatusInvalid,
		Reason: reason,
		Record: &rec,
	}
	r.states[linkID] = state
	if err := r.client.SaveState(ctx, state); err != nil {
		return fmt.Errorf("failed to persist invalid state for link %s: %w", linkID, err)
	}

	log.Printf("[Reconciler] Link %s invalid: %s", linkID, reason)

	if err := r.client.WriteFeedback(ctx, linkID, linkboard.Feedback{Errors: reason, Valid: false}); err != nil {
		return fmt.Errorf("failed to send feedback for link %s: %w", linkID, err)
	}

	return nil
}

// purgeDeadDashboard announces the removal of a stale active artifact
// exactly once, so a dashboard that just went invalid never stays visible.
// The artifact itself is removed by the state overwrite that follows.
func (r *Reconciler) purgeDeadDashboard(linkID string) {
	if prev, ok := r.states[linkID]; ok && prev.Status == linkboard.StatusActive && prev.Artifact != nil {
		r.notifyChanged()
	}
}

// dropLink removes all state for a link, including any lingering feedback
// verdict. Voluntary retraction is silent; external teardown notifies the
// host when the link was tracked.
func (r *Reconciler) dropLink(ctx context.Context, linkID string, notify bool) error {
	_, tracked := r.states[linkID]
	delete(r.states, linkID)

	if err := r.client.DeleteState(ctx, linkID); err != nil {
		return fmt.Errorf("failed to delete state for link %s: %w", linkID, err)
	}

	if err := r.client.DeleteFeedback(ctx, linkID); err != nil {
		return fmt.Errorf("failed to clear feedback for link %s: %w", linkID, err)
	}

	if notify && tracked {
		r.notifyChanged()
	}

	return nil
}

func (r *Reconciler) notifyChanged() {
	if r.onChanged != nil {
		r.onChanged()
	}
}
