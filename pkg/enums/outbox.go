package enums

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateCart  OutboxAggregateType = "cart"
	AggregateOrder OutboxAggregateType = "order"
)

var aggregateTypes = set[OutboxAggregateType]{AggregateCart, AggregateOrder}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse("aggregate type", value)
}

// OutboxEventType names a domain event written through the outbox.
type OutboxEventType string

const (
	EventCartMerged   OutboxEventType = "cart_merged"
	EventOrderCreated OutboxEventType = "order_created"

	EventOrderStatusChanged OutboxEventType = "order_status_changed"
)

var eventTypes = set[OutboxEventType]{EventCartMerged, EventOrderCreated, EventOrderStatusChanged}

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return eventTypes.parse("event type", value)
}

// OutboxDLQErrorReason explains why an event was parked in the dead-letter table.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var dlqReasons = set[OutboxDLQErrorReason]{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}

func (r OutboxDLQErrorReason) IsValid() bool { return dlqReasons.has(r) }
