package order

// statusRank orders the linear fulfilment states. Cancelled sits outside the
// line and is handled separately.
func statusRank(status Status) int {
	switch status {
	case StatusPending:
		return 0
	case StatusConfirmed:
		return 1
	case StatusInProduction:
		return 2
	case StatusShipped:
		return 3
	case StatusDelivered:
		return 4
	default:
		return -1
	}
}

// IsValidStatus reports whether the value names a known state.
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusInProduction, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from one state to the
// next. Forward moves advance exactly one step; cancellation is allowed only
// before production starts.
func CanTransition(from, to Status) bool {
	if to == StatusCancelled {
		return from == StatusPending || from == StatusConfirmed
	}
	fromRank := statusRank(from)
	toRank := statusRank(to)
	if fromRank < 0 || toRank < 0 {
		return false
	}
	return toRank == fromRank+1
}
