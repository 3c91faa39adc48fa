package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/dashlink/internal/watch"
	"github.com/example/dashlink/pkg/linkboard"
)

// testHarness bundles a reconciler with its backing store and a counter
// tracking how many times the rendered dashboard set changed.
type testHarness struct {
	client  *linkboard.Client
	rec     *Reconciler
	changed int
}

func setupHarness(t *testing.T) *testHarness {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := linkboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	h := &testHarness{client: client}
	h.rec = NewReconciler(client, func() { h.changed++ })
	return h
}

func dashboardRecord(t *testing.T, linkID, body string) *linkboard.DashboardRecord {
	t.Helper()
	return &linkboard.DashboardRecord{
		LinkID:           linkID,
		Template:         encodedTemplate(t, body),
		TargetIdentifier: "prod_abc123_metricsd",
		TargetLabel:      "Metricsd [ prod / metricsd ]",
		TargetQuery:      "environment='prod'",
		Nonce:            uuid.New().String(),
	}
}

func prodResources() []linkboard.Resource {
	return []linkboard.Resource{
		{SourceName: "prometheus - prod_abc123_metricsd"},
	}
}

func (h *testHarness) feedback(t *testing.T, linkID string) linkboard.Feedback {
	t.Helper()
	fb, err := h.client.GetFeedback(context.Background(), linkID)
	require.NoError(t, err)
	return fb
}

func TestReconcileValidRecord(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	require.NoError(t, h.rec.RenewResources(ctx, prodResources()))

	record := dashboardRecord(t, "grafana", `{"datasource":"{{.Datasource}}"}`)
	require.NoError(t, h.rec.Reconcile(ctx, record))

	t.Run("state becomes active with an artifact", func(t *testing.T) {
		state, err := h.client.GetState(ctx, "grafana")
		require.NoError(t, err)
		assert.Equal(t, linkboard.StatusActive, state.Status)
		require.NotNil(t, state.Artifact)
		assert.Equal(t, "prod_abc123_metricsd", state.Artifact.TargetAddress)

		body, err := linkboard.DecodeTemplate(state.Artifact.Dashboard)
		require.NoError(t, err)
		assert.Equal(t, `{"datasource":"prometheus - prod_abc123_metricsd"}`, body)
	})

	t.Run("artifact snapshot has no nonce", func(t *testing.T) {
		state, err := h.client.GetState(ctx, "grafana")
		require.NoError(t, err)
		assert.Empty(t, state.Artifact.Source.Nonce)
	})

	t.Run("dashboard set changed exactly once", func(t *testing.T) {
		assert.Equal(t, 1, h.changed)
	})

	t.Run("no feedback written on first-time success", func(t *testing.T) {
		// Feedback only carries failures and recoveries; a link that was
		// never invalid gets no verdict at all.
		_, err := h.client.GetFeedback(ctx, "grafana")
		assert.True(t, linkboard.IsNotFound(err))
	})

	t.Run("artifact is visible in the dashboard set", func(t *testing.T) {
		dashboards := h.rec.Dashboards()
		require.Len(t, dashboards, 1)
		assert.Equal(t, "grafana", dashboards[0].Source.LinkID)
	})
}

func TestReconcileIdempotence(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	require.NoError(t, h.rec.RenewResources(ctx, prodResources()))

	record := dashboardRecord(t, "grafana", `{"datasource":"{{.Datasource}}"}`)
	require.NoError(t, h.rec.Reconcile(ctx, record))
	require.Equal(t, 1, h.changed)

	// Same content, fresh nonce: the transport sees a new write but the
	// dashboard set must not be re-announced.
	resend := *record
	resend.Nonce = uuid.New().String()
	require.NoError(t, h.rec.Reconcile(ctx, &resend))
	assert.Equal(t, 1, h.changed)

	// Genuinely different content is announced again.
	updated := dashboardRecord(t, "grafana", `{"datasource":"{{.Datasource}}","v":2}`)
	require.NoError(t, h.rec.Reconcile(ctx, updated))
	assert.Equal(t, 2, h.changed)
}

func TestReconcileNoDatasources(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()

	record := dashboardRecord(t, "grafana", `{"datasource":"{{.Datasource}}"}`)
	require.NoError(t, h.rec.Reconcile(ctx, record))

	state, err := h.client.GetState(ctx, "grafana")
	require.NoError(t, err)
	assert.Equal(t, linkboard.StatusInvalid, state.Status)
	assert.Equal(t, "Cannot add Grafana dashboard. No configured datasources", state.Reason)
	assert.Nil(t, state.Artifact)

	fb := h.feedback(t, "grafana")
	assert.Equal(t, "Cannot add Grafana dashboard. No configured datasources", fb.Errors)
	assert.False(t, fb.Valid)

	assert.Zero(t, h.changed, "an invalid record never changes the dashboard set")
}

func TestReconcileNoMatchingDatasource(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	require.NoError(t, h.rec.RenewResources(ctx, []linkboard.Resource{
		{SourceName: "prometheus - staging_zzz_other"},
	}))

	record := dashboardRecord(t, "grafana", `{"datasource":"{{.Datasource}}"}`)
	require.NoError(t, h.rec.Reconcile(ctx, record))

	state, err := h.client.GetState(ctx, "grafana")
	require.NoError(t, err)
	assert.Equal(t, linkboard.StatusInvalid, state.Status)
	assert.Equal(t, "Cannot find a Grafana datasource matching the dashboard", state.Reason)

	fb := h.feedback(t, "grafana")
	assert.Equal(t, "Cannot find a Grafana datasource matching the dashboard", fb.Errors)
	assert.False(t, fb.Valid)
}

func TestReconcileBadTemplate(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	require.NoError(t, h.rec.RenewResources(ctx, prodResources()))

	record := dashboardRecord(t, "grafana", `{{.Datasource`)
	require.NoError(t, h.rec.Reconcile(ctx, record))

	state, err := h.client.GetState(ctx, "grafana")
	require.NoError(t, err)
	assert.Equal(t, linkboard.StatusInvalid, state.Status)
	assert.Equal(t, "Cannot add Grafana dashboard. Template is not valid", state.Reason)

	fb := h.feedback(t, "grafana")
	assert.Equal(t, "Cannot add Grafana dashboard. Template is not valid", fb.Errors)
}

func TestReconcileSubmitterInvalidated(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	require.NoError(t, h.rec.RenewResources(ctx, prodResources()))

	record := dashboardRecord(t, "grafana", `{"datasource":"{{.Datasource}}"}`)
	record.Invalidated = true
	record.InvalidatedReason = "submitter is reconfiguring"
	require.NoError(t, h.rec.Reconcile(ctx, record))

	state, err := h.client.GetState(ctx, "grafana")
	require.NoError(t, err)
	assert.Equal(t, linkboard.StatusInvalid, state.Status)
	assert.Equal(t, "submitter is reconfiguring", state.Reason)

	fb := h.feedback(t, "grafana")
	assert.Equal(t, "submitter is reconfiguring", fb.Errors)
}

func TestRecoveryAnnouncesFeedback(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()

	// Goes invalid first: no datasources at all.
	record := dashboardRecord(t, "grafana", `{"datasource":"{{.Datasource}}"}`)
	require.NoError(t, h.rec.Reconcile(ctx, record))
	require.False(t, h.feedback(t, "grafana").Valid)
	require.Zero(t, h.changed)

	// A datasource arriving rescues the stored record.
	require.NoError(t, h.rec.RenewResources(ctx, prodResources()))

	state, err := h.client.GetState(ctx, "grafana")
	require.NoError(t, err)
	assert.Equal(t, linkboard.StatusActive, state.Status)

	fb := h.feedback(t, "grafana")
	assert.True(t, fb.Valid)
	assert.Empty(t, fb.Errors)

	assert.Equal(t, 1, h.changed)
}

func TestResourceLossPurgesDashboard(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	require.NoError(t, h.rec.RenewResources(ctx, prodResources()))

	record := dashboardRecord(t, "grafana", `{"datasource":"{{.Datasource}}"}`)
	require.NoError(t, h.rec.Reconcile(ctx, record))
	require.Equal(t, 1, h.changed)

	// The last datasource disappearing breaks the active dashboard.
	require.NoError(t, h.rec.RenewResources(ctx, nil))

	state, err := h.client.GetState(ctx, "grafana")
	require.NoError(t, err)
	assert.Equal(t, linkboard.StatusInvalid, state.Status)
	assert.Equal(t, "Cannot add Grafana dashboard. No configured datasources", state.Reason)
	assert.Nil(t, state.Artifact)

	assert.Equal(t, 2, h.changed, "the purge announces exactly one change")
	assert.Empty(t, h.rec.Dashboards())

	// Going invalid again for a different reason must not re-announce.
	require.NoError(t, h.rec.RenewResources(ctx, []linkboard.Resource{
		{SourceName: "prometheus - unrelated"},
	}))
	assert.Equal(t, 2, h.changed)
}

func TestRetractionIsSilent(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	require.NoError(t, h.rec.RenewResources(ctx, prodResources()))

	record := dashboardRecord(t, "grafana", `{"datasource":"{{.Datasource}}"}`)
	require.NoError(t, h.rec.Reconcile(ctx, record))
	require.Equal(t, 1, h.changed)

	retraction := &linkboard.DashboardRecord{
		LinkID:  "grafana",
		Removed: true,
		Nonce:   uuid.New().String(),
	}
	require.NoError(t, h.rec.Reconcile(ctx, retraction))

	_, err := h.client.GetState(ctx, "grafana")
	assert.True(t, linkboard.IsNotFound(err))
	assert.Empty(t, h.rec.Dashboards())
	assert.Equal(t, 1, h.changed, "voluntary retraction raises no change signal")
}

func TestFirstSubmissionWaitSettles(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	require.NoError(t, h.rec.RenewResources(ctx, prodResources()))

	// A fresh valid record settles to active without any feedback, so a
	// caller waiting for the verdict must observe the state, not the
	// feedback slot.
	record := dashboardRecord(t, "grafana", `{"datasource":"{{.Datasource}}"}`)
	require.NoError(t, h.rec.Reconcile(ctx, record))

	_, err := h.client.GetFeedback(ctx, "grafana")
	require.True(t, linkboard.IsNotFound(err))

	state, err := watch.PollForSettled(ctx, h.client, "grafana", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, linkboard.StatusActive, state.Status)
}

func TestDropLinkClearsFeedback(t *testing.T) {
	t.Run("retraction clears the stale verdict", func(t *testing.T) {
		h := setupHarness(t)
		ctx := context.Background()

		// No datasources: the link goes invalid and a verdict is written.
		record := dashboardRecord(t, "grafana", `{"datasource":"{{.Datasource}}"}`)
		require.NoError(t, h.rec.Reconcile(ctx, record))
		require.False(t, h.feedback(t, "grafana").Valid)

		retraction := &linkboard.DashboardRecord{
			LinkID:  "grafana",
			Removed: true,
			Nonce:   uuid.New().String(),
		}
		require.NoError(t, h.rec.Reconcile(ctx, retraction))

		_, err := h.client.GetFeedback(ctx, "grafana")
		assert.True(t, linkboard.IsNotFound(err), "a dead link's verdict must not linger")
	})

	t.Run("teardown clears the stale verdict", func(t *testing.T) {
		h := setupHarness(t)
		ctx := context.Background()

		record := dashboardRecord(t, "grafana", `{"datasource":"{{.Datasource}}"}`)
		require.NoError(t, h.rec.Reconcile(ctx, record))
		require.False(t, h.feedback(t, "grafana").Valid)

		require.NoError(t, h.rec.LinkBroken(ctx, "grafana"))

		_, err := h.client.GetFeedback(ctx, "grafana")
		assert.True(t, linkboard.IsNotFound(err))
	})
}

func TestLinkBroken(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	require.NoError(t, h.rec.RenewResources(ctx, prodResources()))

	t.Run("tracked link teardown notifies", func(t *testing.T) {
		record := dashboardRecord(t, "grafana", `{"datasource":"{{.Datasource}}"}`)
		require.NoError(t, h.rec.Reconcile(ctx, record))
		before := h.changed

		require.NoError(t, h.rec.LinkBroken(ctx, "grafana"))

		_, err := h.client.GetState(ctx, "grafana")
		assert.True(t, linkboard.IsNotFound(err))
		assert.Equal(t, before+1, h.changed)
	})

	t.Run("unknown link teardown is a no-op", func(t *testing.T) {
		before := h.changed
		require.NoError(t, h.rec.LinkBroken(ctx, "never-seen"))
		assert.Equal(t, before, h.changed)
	})
}

func TestMalformedRecordIsDropped(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	require.NoError(t, h.rec.RenewResources(ctx, prodResources()))

	t.Run("missing template", func(t *testing.T) {
		record := &linkboard.DashboardRecord{
			LinkID:           "grafana",
			TargetIdentifier: "prod_abc123_metricsd",
		}
		require.NoError(t, h.rec.Reconcile(ctx, record))
	})

	t.Run("garbage nonce", func(t *testing.T) {
		record := dashboardRecord(t, "grafana", `{}`)
		record.Nonce = "not-a-uuid"
		require.NoError(t, h.rec.Reconcile(ctx, record))
	})

	// No state, no feedback, no change signal for either.
	_, err := h.client.GetState(ctx, "grafana")
	assert.True(t, linkboard.IsNotFound(err))
	_, err = h.client.GetFeedback(ctx, "grafana")
	assert.True(t, linkboard.IsNotFound(err))
	assert.Zero(t, h.changed)
}

func TestResumeFromStoredState(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := linkboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()

	// First life: one active, one invalid link.
	first := NewReconciler(client, nil)
	require.NoError(t, client.SaveSources(ctx, prodResources()))
	require.NoError(t, first.RenewResources(ctx, prodResources()))

	active := dashboardRecord(t, "grafana", `{"datasource":"{{.Datasource}}"}`)
	require.NoError(t, first.Reconcile(ctx, active))

	orphan := dashboardRecord(t, "orphan", `{}`)
	orphan.TargetIdentifier = "nowhere_to_be_found"
	require.NoError(t, first.Reconcile(ctx, orphan))

	// Second life: a fresh reconciler resumes from the store alone.
	var changed int
	second := NewReconciler(client, func() { changed++ })
	require.NoError(t, second.Resume(ctx))

	dashboards := second.Dashboards()
	require.Len(t, dashboards, 1)
	assert.Equal(t, "grafana", dashboards[0].Source.LinkID)
	assert.Equal(t, prodResources(), second.Resources())

	// The resumed invalid link is rescued by a matching datasource.
	require.NoError(t, second.RenewResources(ctx, []linkboard.Resource{
		{SourceName: "prometheus - prod_abc123_metricsd"},
		{SourceName: "loki - nowhere_to_be_found"},
	}))

	state, err := client.GetState(ctx, "orphan")
	require.NoError(t, err)
	assert.Equal(t, linkboard.StatusActive, state.Status)
	assert.Equal(t, 1, changed, "only the rescued link changes the set")
}

func TestDashboardsOrdering(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	require.NoError(t, h.rec.RenewResources(ctx, prodResources()))

	for _, linkID := range []string{"zeta", "alpha", "mike"} {
		record := dashboardRecord(t, linkID, `{"datasource":"{{.Datasource}}"}`)
		require.NoError(t, h.rec.Reconcile(ctx, record))
	}

	dashboards := h.rec.Dashboards()
	require.Len(t, dashboards, 3)
	assert.Equal(t, "alpha", dashboards[0].Source.LinkID)
	assert.Equal(t, "mike", dashboards[1].Source.LinkID)
	assert.Equal(t, "zeta", dashboards[2].Source.LinkID)
}
