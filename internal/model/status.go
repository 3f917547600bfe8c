package model

// OrderStatus is the closed set of order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"
	OrderStatusInPreparation OrderStatus = "in_preparation"
	OrderStatusShipped       OrderStatus = "shipped"
	OrderStatusDelivered     OrderStatus = "delivered"
	OrderStatusCancelled     OrderStatus = "cancelled"
)

// OrderStatuses lists every valid order state, used for validation messages.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusInPreparation,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusInPreparation, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// PaymentStatus is the domain-side payment state vocabulary.
type PaymentStatus string

const (
	PaymentStatusApproved    PaymentStatus = "approved"
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusInProcess   PaymentStatus = "in_process"
	PaymentStatusRejected    PaymentStatus = "rejected"
	PaymentStatusCancelled   PaymentStatus = "cancelled"
	PaymentStatusRefunded    PaymentStatus = "refunded"
	PaymentStatusInMediation PaymentStatus = "in_mediation"
)

// PaymentStatusFromGateway maps the gateway's status vocabulary onto ours.
// Anything unmapped lands on pending so an unknown gateway status can never
// approve or cancel an order.
func PaymentStatusFromGateway(gatewayStatus string) PaymentStatus {
	switch gatewayStatus {
	case "approved":
		return PaymentStatusApproved
	case "pending":
		return PaymentStatusPending
	case "in_process":
		return PaymentStatusInProcess
	case "rejected":
		return PaymentStatusRejected
	case "cancelled":
		return PaymentStatusCancelled
	case "refunded":
		return PaymentStatusRefunded
	case "in_mediation":
		return PaymentStatusInMediation
	default:
		return PaymentStatusPending
	}
}

// ManualPaymentStatuses is the narrower set an admin may set by hand.
func ManualPaymentStatuses() []PaymentStatus {
	return []PaymentStatus{
		PaymentStatusApproved,
		PaymentStatusPending,
		PaymentStatusCancelled,
	}
}

func (s PaymentStatus) ValidManual() bool {
	switch s {
	case PaymentStatusApproved, PaymentStatusPending, PaymentStatusCancelled:
		return true
	}
	return false
}
