package events

// Priority ranks subscribers within one event type's dispatch pass. Lower
// values run earlier. Subscribers sharing a priority run in subscription
// order.
type Priority int

const (
	// PriorityCritical runs before everything else.
	PriorityCritical Priority = iota
	// PriorityHigh runs after critical subscribers.
	PriorityHigh
	// PriorityNormal is the default for subscriptions that do not set one.
	PriorityNormal
	// PriorityLow runs after the normal band.
	PriorityLow
	// PriorityBackground runs last.
	PriorityBackground
)

// String returns the lowercase name used in logs and metric labels.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityBackground:
		return "background"
	default:
		return "unknown"
	}
}

func (p Priority) valid() bool {
	return p >= PriorityCritical && p <= PriorityBackground
}
