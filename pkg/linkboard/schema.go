package linkboard

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to
// enable multiple dashlink instances to safely coexist on a single Redis
// server.
//
// Key pattern: dashlink:{instance_name}:{entity}:{link_id}
// Channel pattern: dashlink:{instance_name}:{event_type}_events

// RecordKey returns the Redis key for a link's record slot.
// Pattern: dashlink:{instance_name}:record:{link_id}
func RecordKey(instanceName, linkID string) string {
	return fmt.Sprintf("dashlink:%s:record:%s", instanceName, linkID)
}

// FeedbackKey returns the Redis key for a link's feedback slot.
// Pattern: dashlink:{instance_name}:feedback:{link_id}
func FeedbackKey(instanceName, linkID string) string {
	return fmt.Sprintf("dashlink:%s:feedback:%s", instanceName, linkID)
}

// SubmittedKey returns the Redis key for a submitter's durable mirror of its
// own last submission.
// Pattern: dashlink:{instance_name}:submitted:{link_id}
func SubmittedKey(instanceName, linkID string) string {
	return fmt.Sprintf("dashlink:%s:submitted:%s", instanceName, linkID)
}

// StateKey returns the Redis key for the renderer's reconcile state slot.
// Pattern: dashlink:{instance_name}:state:{link_id}
func StateKey(instanceName, linkID string) string {
	return fmt.Sprintf("dashlink:%s:state:%s", instanceName, linkID)
}

// LinksKey returns the Redis key for the set of links the renderer tracks.
// Pattern: dashlink:{instance_name}:links
func LinksKey(instanceName string) string {
	return fmt.Sprintf("dashlink:%s:links", instanceName)
}

// SourcesKey returns the Redis key for the active resource set.
// Pattern: dashlink:{instance_name}:sources
func SourcesKey(instanceName string) string {
	return fmt.Sprintf("dashlink:%s:sources", instanceName)
}

// IdentityKey returns the Redis key for the monitoring peer identity slot.
// Pattern: dashlink:{instance_name}:monitoring:identity
func IdentityKey(instanceName string) string {
	return fmt.Sprintf("dashlink:%s:monitoring:identity", instanceName)
}

// RecordEventsChannel returns the Pub/Sub channel name for record slot
// change notifications. Payload is the link id whose slot changed.
// Pattern: dashlink:{instance_name}:record_events
func RecordEventsChannel(instanceName string) string {
	return fmt.Sprintf("dashlink:%s:record_events", instanceName)
}

// FeedbackEventsChannel returns the Pub/Sub channel name for feedback slot
// change notifications. Payload is the link id whose slot changed.
// Pattern: dashlink:{instance_name}:feedback_events
func FeedbackEventsChannel(instanceName string) string {
	return fmt.Sprintf("dashlink:%s:feedback_events", instanceName)
}

// SourceEventsChannel returns the Pub/Sub channel name for resource set
// replacement notifications. Payload is ignored; subscribers re-read the
// sources slot.
// Pattern: dashlink:{instance_name}:source_events
func SourceEventsChannel(instanceName string) string {
	return fmt.Sprintf("dashlink:%s:source_events", instanceName)
}
