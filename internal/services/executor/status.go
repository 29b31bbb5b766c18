package executor

import "github.com/vadiminshakov/pulsgram/internal/services/binance"

// OrderStatus is the closed set of execution outcomes derived from exchange
// order status strings.
type OrderStatus int

const (
	StatusNew OrderStatus = iota
	StatusPartiallyFilled
	StatusFilled
	StatusCanceled
	StatusRejected
	StatusExpired
	StatusUnknown
)

func (s OrderStatus) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCanceled:
		return "CANCELED"
	case StatusRejected:
		return "REJECTED"
	case StatusExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further fills can arrive for this status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// ExecutionStatus is the typed outcome of an order placement. Fill details
// are set only for StatusFilled; Raw holds the original status string only
// for StatusUnknown.
type ExecutionStatus struct {
	Status   OrderStatus
	OrderID  int64
	Qty      string
	AvgPrice string
	Raw      string
}

// StatusFromResponse maps the exchange's order status string onto the typed
// outcome set. Unrecognized strings are preserved, not guessed at.
func StatusFromResponse(resp *binance.OrderResponse) ExecutionStatus {
	switch resp.Status {
	case "NEW":
		return ExecutionStatus{Status: StatusNew}
	case "PARTIALLY_FILLED":
		return ExecutionStatus{Status: StatusPartiallyFilled}
	case "FILLED":
		return ExecutionStatus{
			Status:   StatusFilled,
			OrderID:  resp.OrderID,
			Qty:      resp.ExecutedQty,
			AvgPrice: resp.AvgPrice,
		}
	case "CANCELED":
		return ExecutionStatus{Status: StatusCanceled}
	case "REJECTED":
		return ExecutionStatus{Status: StatusRejected}
	case "EXPIRED", "EXPIRED_IN_MATCH":
		return ExecutionStatus{Status: StatusExpired}
	default:
		return ExecutionStatus{Status: StatusUnknown, Raw: resp.Status}
	}
}
