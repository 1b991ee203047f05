package enums

// OutboxDLQErrorReason records why an outbox event stopped being retried.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	// OutboxDLQReasonUnroutable marks rows whose event type has no topic or
	// payload decoder registered.
	OutboxDLQReasonUnroutable OutboxDLQErrorReason = "unroutable"
)

var dlqReasons = newSet("outbox dlq reason", OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable, OutboxDLQReasonUnroutable)

func (r OutboxDLQErrorReason) String() string { return string(r) }

func (r OutboxDLQErrorReason) IsValid() bool { return dlqReasons.contains(r) }

func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	return dlqReasons.parse(value)
}
