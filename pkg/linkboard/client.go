package linkboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the linkboard.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new linkboard client for the specified instance.
// The client automatically namespaces all keys and channels with the
// instance name. Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PublishRecord writes a record to its link's slot and publishes a change
// notification. The slot is fully replaced: every field is always written,
// so a plain HSET overwrite gives last-write-wins semantics.
//
// Validates the record before writing. Slot readers only ever observe the
// latest record; intermediate writes may never be seen.
func (c *Client) PublishRecord(ctx context.Context, record *DashboardRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	key := RecordKey(c.instanceName, record.LinkID)
	if err := c.rdb.HSet(ctx, key, RecordToHash(record)).Err(); err != nil {
		return fmt.Errorf("failed to write record to Redis: %w", err)
	}

	channel := RecordEventsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, record.LinkID).Err(); err != nil {
		return fmt.Errorf("failed to publish record event: %w", err)
	}

	return nil
}

// GetRecord retrieves the latest record for a link.
// Returns (nil, redis.Nil) if the slot is empty. Use IsNotFound() to check.
func (c *Client) GetRecord(ctx context.Context, linkID string) (*DashboardRecord, error) {
	key := RecordKey(c.instanceName, linkID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read record from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	record, err := HashToRecord(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize record: %w", err)
	}

	return record, nil
}

// DeleteRecord clears a link's record slot and publishes a change
// notification. Subscribers that re-read the slot and find it empty treat
// the link as torn down.
func (c *Client) DeleteRecord(ctx context.Context, linkID string) error {
	key := RecordKey(c.instanceName, linkID)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete record from Redis: %w", err)
	}

	channel := RecordEventsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, linkID).Err(); err != nil {
		return fmt.Errorf("failed to publish record event: %w", err)
	}

	return nil
}

// WriteFeedback writes the renderer's verdict to a link's feedback slot and
// publishes a change notification.
func (c *Client) WriteFeedback(ctx context.Context, linkID string, fb Feedback) error {
	payload, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}

	key := FeedbackKey(c.instanceName, linkID)
	if err := c.rdb.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to write feedback to Redis: %w", err)
	}

	channel := FeedbackEventsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, linkID).Err(); err != nil {
		return fmt.Errorf("failed to publish feedback event: %w", err)
	}

	return nil
}

// GetFeedback retrieves the latest feedback for a link.
// Returns (Feedback{}, redis.Nil) if the slot is empty.
func (c *Client) GetFeedback(ctx context.Context, linkID string) (Feedback, error) {
	key := FeedbackKey(c.instanceName, linkID)

	payload, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Feedback{}, redis.Nil
		}
		return Feedback{}, fmt.Errorf("failed to read feedback from Redis: %w", err)
	}

	var fb Feedback
	if err := json.Unmarshal([]byte(payload), &fb); err != nil {
		return Feedback{}, fmt.Errorf("failed to unmarshal feedback: %w", err)
	}

	return fb, nil
}

// DeleteFeedback clears a link's feedback slot. Called when a link's state
// is dropped so a dead link's last verdict does not linger as current.
func (c *Client) DeleteFeedback(ctx context.Context, linkID string) error {
	key := FeedbackKey(c.instanceName, linkID)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete feedback from Redis: %w", err)
	}
	return nil
}

// SaveSubmitted mirrors a submitter's last-sent record into durable state so
// a restarted submitter can recover what it last wrote upstream.
func (c *Client) SaveSubmitted(ctx context.Context, record *DashboardRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	key := SubmittedKey(c.instanceName, record.LinkID)
	if err := c.rdb.HSet(ctx, key, RecordToHash(record)).Err(); err != nil {
		return fmt.Errorf("failed to write submitted record to Redis: %w", err)
	}

	return nil
}

// GetSubmitted retrieves a submitter's mirrored record for a link.
// Returns (nil, redis.Nil) if nothing was ever submitted.
func (c *Client) GetSubmitted(ctx context.Context, linkID string) (*DashboardRecord, error) {
	key := SubmittedKey(c.instanceName, linkID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read submitted record from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	record, err := HashToRecord(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize submitted record: %w", err)
	}

	return record, nil
}

// DeleteSubmitted drops a submitter's mirrored record for a link.
func (c *Client) DeleteSubmitted(ctx context.Context, linkID string) error {
	key := SubmittedKey(c.instanceName, linkID)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete submitted record from Redis: %w", err)
	}
	return nil
}

// SaveState persists the renderer's reconcile state for a link and adds the
// link to the tracked set. The slot is deleted before rewriting so cleared
// fields (a purged artifact, a resolved reason) do not linger.
func (c *Client) SaveState(ctx context.Context, state *ReconcileState) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("invalid state: %w", err)
	}

	hash, err := StateToHash(state)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	key := StateKey(c.instanceName, state.LinkID)
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, hash)
	pipe.SAdd(ctx, LinksKey(c.instanceName), state.LinkID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write state to Redis: %w", err)
	}

	return nil
}

// GetState retrieves the renderer's reconcile state for a link.
// Returns (nil, redis.Nil) if the link is not tracked.
func (c *Client) GetState(ctx context.Context, linkID string) (*ReconcileState, error) {
	key := StateKey(c.instanceName, linkID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read state from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	state, err := HashToState(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize state: %w", err)
	}

	return state, nil
}

// DeleteState drops a link's reconcile state and removes it from the
// tracked set.
func (c *Client) DeleteState(ctx context.Context, linkID string) error {
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, StateKey(c.instanceName, linkID))
	pipe.SRem(ctx, LinksKey(c.instanceName), linkID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete state from Redis: %w", err)
	}
	return nil
}

// ListStates retrieves reconcile state for every tracked link.
// Links whose state slot vanished between the set read and the fetch are
// skipped rather than treated as errors.
func (c *Client) ListStates(ctx context.Context) ([]*ReconcileState, error) {
	linkIDs, err := c.rdb.SMembers(ctx, LinksKey(c.instanceName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked links: %w", err)
	}

	states := make([]*ReconcileState, 0, len(linkIDs))
	for _, linkID := range linkIDs {
		state, err := c.GetState(ctx, linkID)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		states = append(states, state)
	}

	return states, nil
}

// SaveSources replaces the active resource set wholesale and publishes a
// change notification. There is no incremental add/remove; callers always
// supply the complete set.
func (c *Client) SaveSources(ctx context.Context, sources []Resource) error {
	payload, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	key := SourcesKey(c.instanceName)
	if err := c.rdb.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to write sources to Redis: %w", err)
	}

	channel := SourceEventsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, "sources").Err(); err != nil {
		return fmt.Errorf("failed to publish source event: %w", err)
	}

	return nil
}

// GetSources retrieves the active resource set.
// Returns an empty slice if no set was ever published.
func (c *Client) GetSources(ctx context.Context) ([]Resource, error) {
	key := SourcesKey(c.instanceName)

	payload, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Resource{}, nil
		}
		return nil, fmt.Errorf("failed to read sources from Redis: %w", err)
	}

	var sources []Resource
	if err := json.Unmarshal([]byte(payload), &sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
	}

	if sources == nil {
		sources = []Resource{}
	}

	return sources, nil
}

// SetIdentity publishes the monitoring peer identity submitters use to
// derive their target identifier.
func (c *Client) SetIdentity(ctx context.Context, id Identity) error {
	if err := id.Validate(); err != nil {
		return fmt.Errorf("invalid identity: %w", err)
	}

	payload, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}

	key := IdentityKey(c.instanceName)
	if err := c.rdb.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to write identity to Redis: %w", err)
	}

	return nil
}

// GetIdentity retrieves the monitoring peer identity.
// Returns (Identity{}, redis.Nil) if no peer has published one yet.
func (c *Client) GetIdentity(ctx context.Context) (Identity, error) {
	key := IdentityKey(c.instanceName)

	payload, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Identity{}, redis.Nil
		}
		return Identity{}, fmt.Errorf("failed to read identity from Redis: %w", err)
	}

	var id Identity
	if err := json.Unmarshal([]byte(payload), &id); err != nil {
		return Identity{}, fmt.Errorf("failed to unmarshal identity: %w", err)
	}

	return id, nil
}

// Subscription represents an active Pub/Sub subscription to slot change
// notifications. Each event is the link id whose slot changed; subscribers
// must re-read the slot, since notifications are at-most-once and coalesce
// under load. Caller must call Close() when done.
type Subscription struct {
	events <-chan string
	cancel func()
	once   sync.Once
}

// Events returns the channel of link ids whose slots changed.
// The channel is closed when the subscription is closed or the context is
// cancelled.
func (s *Subscription) Events() <-chan string {
	return s.events
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeRecordEvents subscribes to record slot change notifications for
// this instance. Caller must call subscription.Close() when done. Context
// cancellation also stops the subscription.
func (c *Client) SubscribeRecordEvents(ctx context.Context) (*Subscription, error) {
	return c.subscribe(ctx, RecordEventsChannel(c.instanceName))
}

// SubscribeFeedbackEvents subscribes to feedback slot change notifications
// for this instance. Caller must call subscription.Close() when done.
func (c *Client) SubscribeFeedbackEvents(ctx context.Context) (*Subscription, error) {
	return c.subscribe(ctx, FeedbackEventsChannel(c.instanceName))
}

// SubscribeSourceEvents subscribes to resource set replacement notifications
// for this instance. Caller must call subscription.Close() when done.
func (c *Client) SubscribeSourceEvents(ctx context.Context) (*Subscription, error) {
	return c.subscribe(ctx, SourceEventsChannel(c.instanceName))
}

func (c *Client) subscribe(ctx context.Context, channel string) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, channel)

	// Buffered to absorb bursts; Redis Pub/Sub is at-most-once regardless
	eventsChan := make(chan string, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				select {
				case eventsChan <- msg.Payload:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error
// (redis.Nil). Use this to check if a slot read returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
