package store

const (
	OrderTypeDineIn   = "DINE_IN"
	OrderTypePickup   = "PICKUP"
	OrderTypeDelivery = "DELIVERY"
)

const (
	StatusPending        = "pending"
	StatusAccepted       = "accepted"
	StatusPreparing      = "preparing"
	StatusReady          = "ready"
	StatusOutForDelivery = "out_for_delivery"
	StatusDelivered      = "delivered"
	StatusCompleted      = "completed"
	StatusCancelled      = "cancelled"
)

// allowedTransitions is the forward-only lifecycle. Cancellation is
// reachable from every non-terminal status; terminal statuses have no
// exits.
var allowedTransitions = map[string][]string{
	StatusPending:        {StatusAccepted, StatusCancelled},
	StatusAccepted:       {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReady, StatusCancelled},
	StatusReady:          {StatusDelivered, StatusCompleted, StatusOutForDelivery, StatusCancelled},
	StatusOutForDelivery: {StatusDelivered, StatusCancelled},
	StatusDelivered:      {},
	StatusCompleted:      {},
	StatusCancelled:      {},
}

// occupyingStatuses are the statuses during which a dine-in order
// keeps its table locked. Delivered, completed and cancelled release
// the table.
var occupyingStatuses = map[string]struct{}{
	StatusPending:        {},
	StatusAccepted:       {},
	StatusPreparing:      {},
	StatusReady:          {},
	StatusOutForDelivery: {},
}

// terminalForEditing blocks item edits once the order has been handed
// over. Cancelled is terminal for transitions but not for edits.
var terminalForEditing = map[string]struct{}{
	StatusDelivered: {},
	StatusCompleted: {},
}

func CanTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsKnownStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func OccupiesTable(status string) bool {
	_, ok := occupyingStatuses[status]
	return ok
}

func IsTerminalForEditing(status string) bool {
	_, ok := terminalForEditing[status]
	return ok
}
