package linkboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-instance", client.instanceName)
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)

	err := client.Ping(context.Background())
	assert.NoError(t, err)
}

func TestRecordLifecycle(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("publish and read back", func(t *testing.T) {
		rec := validRecord()
		require.NoError(t, client.PublishRecord(ctx, &rec))

		got, err := client.GetRecord(ctx, rec.LinkID)
		require.NoError(t, err)
		assert.Equal(t, &rec, got)
	})

	t.Run("publish rejects invalid record", func(t *testing.T) {
		rec := validRecord()
		rec.TargetIdentifier = ""
		err := client.PublishRecord(ctx, &rec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid record")
	})

	t.Run("last write wins", func(t *testing.T) {
		first := validRecord()
		first.LinkID = "lww"
		require.NoError(t, client.PublishRecord(ctx, &first))

		second := first
		second.TargetLabel = "replacement"
		require.NoError(t, client.PublishRecord(ctx, &second))

		got, err := client.GetRecord(ctx, "lww")
		require.NoError(t, err)
		assert.Equal(t, "replacement", got.TargetLabel)
	})

	t.Run("missing slot returns not found", func(t *testing.T) {
		_, err := client.GetRecord(ctx, "no-such-link")
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("delete clears the slot", func(t *testing.T) {
		rec := validRecord()
		rec.LinkID = "doomed"
		require.NoError(t, client.PublishRecord(ctx, &rec))
		require.NoError(t, client.DeleteRecord(ctx, "doomed"))

		_, err := client.GetRecord(ctx, "doomed")
		assert.True(t, IsNotFound(err))
	})
}

func TestFeedbackLifecycle(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("write and read back", func(t *testing.T) {
		fb := Feedback{Errors: "Cannot add Grafana dashboard. No configured datasources", Valid: false}
		require.NoError(t, client.WriteFeedback(ctx, "grafana", fb))

		got, err := client.GetFeedback(ctx, "grafana")
		require.NoError(t, err)
		assert.Equal(t, fb, got)
	})

	t.Run("overwrite replaces the verdict", func(t *testing.T) {
		require.NoError(t, client.WriteFeedback(ctx, "grafana", Feedback{Valid: true}))

		got, err := client.GetFeedback(ctx, "grafana")
		require.NoError(t, err)
		assert.True(t, got.Valid)
		assert.Empty(t, got.Errors)
	})

	t.Run("missing slot returns not found", func(t *testing.T) {
		_, err := client.GetFeedback(ctx, "silent-link")
		assert.True(t, IsNotFound(err))
	})

	t.Run("delete clears the verdict", func(t *testing.T) {
		require.NoError(t, client.WriteFeedback(ctx, "doomed", Feedback{Valid: true}))
		require.NoError(t, client.DeleteFeedback(ctx, "doomed"))

		_, err := client.GetFeedback(ctx, "doomed")
		assert.True(t, IsNotFound(err))
	})

	t.Run("deleting an empty slot is a no-op", func(t *testing.T) {
		assert.NoError(t, client.DeleteFeedback(ctx, "never-written"))
	})
}

func TestSubmittedMirror(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	rec := validRecord()
	require.NoError(t, client.SaveSubmitted(ctx, &rec))

	got, err := client.GetSubmitted(ctx, rec.LinkID)
	require.NoError(t, err)
	assert.Equal(t, &rec, got)

	require.NoError(t, client.DeleteSubmitted(ctx, rec.LinkID))
	_, err = client.GetSubmitted(ctx, rec.LinkID)
	assert.True(t, IsNotFound(err))
}

func TestStateLifecycle(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	source := validRecord().StripNonce()
	active := &ReconcileState{
		LinkID: "grafana",
		Status: StatusActive,
		Artifact: &RenderedArtifact{
			TargetAddress: source.TargetIdentifier,
			Dashboard:     "eJwDAAAAAAE=",
			Source:        source,
		},
	}

	t.Run("save and read back", func(t *testing.T) {
		require.NoError(t, client.SaveState(ctx, active))

		got, err := client.GetState(ctx, "grafana")
		require.NoError(t, err)
		assert.Equal(t, active, got)
	})

	t.Run("rewrite clears stale fields", func(t *testing.T) {
		invalid := &ReconcileState{
			LinkID: "grafana",
			Status: StatusInvalid,
			Reason: "Cannot find a Grafana datasource matching the dashboard",
			Record: &source,
		}
		require.NoError(t, client.SaveState(ctx, invalid))

		got, err := client.GetState(ctx, "grafana")
		require.NoError(t, err)
		assert.Equal(t, StatusInvalid, got.Status)
		assert.Nil(t, got.Artifact, "artifact from the prior active state must not linger")
	})

	t.Run("save rejects inconsistent state", func(t *testing.T) {
		err := client.SaveState(ctx, &ReconcileState{LinkID: "grafana", Status: StatusActive})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid state")
	})

	t.Run("list returns every tracked link", func(t *testing.T) {
		other := &ReconcileState{LinkID: "second", Status: StatusPending}
		require.NoError(t, client.SaveState(ctx, other))

		states, err := client.ListStates(ctx)
		require.NoError(t, err)
		assert.Len(t, states, 2)
	})

	t.Run("delete untracks the link", func(t *testing.T) {
		require.NoError(t, client.DeleteState(ctx, "second"))

		_, err := client.GetState(ctx, "second")
		assert.True(t, IsNotFound(err))

		states, err := client.ListStates(ctx)
		require.NoError(t, err)
		assert.Len(t, states, 1)
	})
}

func TestSources(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("empty before any publish", func(t *testing.T) {
		sources, err := client.GetSources(ctx)
		require.NoError(t, err)
		assert.Empty(t, sources)
	})

	t.Run("set is replaced wholesale", func(t *testing.T) {
		first := []Resource{{SourceName: "prometheus - prod_abc_metrics"}, {SourceName: "loki - prod_abc_logs"}}
		require.NoError(t, client.SaveSources(ctx, first))

		second := []Resource{{SourceName: "prometheus - staging_def_metrics"}}
		require.NoError(t, client.SaveSources(ctx, second))

		got, err := client.GetSources(ctx)
		require.NoError(t, err)
		assert.Equal(t, second, got)
	})

	t.Run("nil set reads back as empty slice", func(t *testing.T) {
		require.NoError(t, client.SaveSources(ctx, nil))

		got, err := client.GetSources(ctx)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestIdentity(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("missing identity returns not found", func(t *testing.T) {
		_, err := client.GetIdentity(ctx)
		assert.True(t, IsNotFound(err))
	})

	t.Run("set and read back", func(t *testing.T) {
		id := Identity{Environment: "prod", EnvironmentUUID: "abc-123", Application: "metricsd"}
		require.NoError(t, client.SetIdentity(ctx, id))

		got, err := client.GetIdentity(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	t.Run("rejects incomplete identity", func(t *testing.T) {
		err := client.SetIdentity(ctx, Identity{Environment: "prod"})
		assert.Error(t, err)
	})
}

func TestSubscribeRecordEvents(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("receives link id on publish", func(t *testing.T) {
		sub, err := client.SubscribeRecordEvents(ctx)
		require.NoError(t, err)
		defer sub.Close()

		rec := validRecord()
		require.NoError(t, client.PublishRecord(ctx, &rec))

		select {
		case received := <-sub.Events():
			assert.Equal(t, rec.LinkID, received)
		case <-time.After(1 * time.Second):
			t.Fatal("timeout waiting for record event")
		}
	})

	t.Run("receives link id on delete", func(t *testing.T) {
		sub, err := client.SubscribeRecordEvents(ctx)
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, client.DeleteRecord(ctx, "torn-down"))

		select {
		case received := <-sub.Events():
			assert.Equal(t, "torn-down", received)
		case <-time.After(1 * time.Second):
			t.Fatal("timeout waiting for record event")
		}
	})

	t.Run("close stops the event channel", func(t *testing.T) {
		sub, err := client.SubscribeRecordEvents(ctx)
		require.NoError(t, err)

		require.NoError(t, sub.Close())
		require.NoError(t, sub.Close(), "double close must be safe")

		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok, "events channel should be closed")
		case <-time.After(1 * time.Second):
			t.Fatal("timeout waiting for channel close")
		}
	})
}

func TestSubscribeFeedbackEvents(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeFeedbackEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, client.WriteFeedback(ctx, "grafana", Feedback{Valid: true}))

	select {
	case received := <-sub.Events():
		assert.Equal(t, "grafana", received)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for feedback event")
	}
}

func TestSubscribeSourceEvents(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeSourceEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, client.SaveSources(ctx, []Resource{{SourceName: "prometheus"}}))

	select {
	case <-sub.Events():
		// Payload is a constant marker; the re-read carries the data
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for source event")
	}
}

func TestSubscriptionContextCancel(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := client.SubscribeRecordEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	cancel()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok, "events channel should close on context cancel")
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for channel close")
	}
}

func TestInstanceIsolation(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	alpha, err := NewClient(&redis.Options{Addr: mr.Addr()}, "alpha")
	require.NoError(t, err)
	t.Cleanup(func() { alpha.Close() })

	beta, err := NewClient(&redis.Options{Addr: mr.Addr()}, "beta")
	require.NoError(t, err)
	t.Cleanup(func() { beta.Close() })

	ctx := context.Background()
	rec := validRecord()
	require.NoError(t, alpha.PublishRecord(ctx, &rec))

	_, err = beta.GetRecord(ctx, rec.LinkID)
	assert.True(t, IsNotFound(err), "instances must not see each other's slots")
}
