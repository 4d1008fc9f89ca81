package events

// Topic constants for domain events emitted by the platform.
const (
	TopicSessionOpened     = "session.opened"
	TopicSessionClosed     = "session.closed"
	TopicFeeComputed       = "fee.computed"
	TopicValidationGranted = "validation.granted"
	TopicParkerRegistered  = "parker.registered"
)

// DefaultTopics returns the canonical list of topics webhook endpoints may
// subscribe to.
func DefaultTopics() []string {
	return []string{
		TopicSessionOpened,
		TopicSessionClosed,
		TopicFeeComputed,
		TopicValidationGranted,
		TopicParkerRegistered,
	}
}
