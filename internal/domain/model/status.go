package model

// 支払いトラックの遷移表。
// PENDING → PAID → REFUND_INITIATED。CANCELLED へはキャンセル処理からのみ入る。
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusCancelled},
	PaymentStatusPaid:    {PaymentStatusRefundInitiated, PaymentStatusCancelled},
	//REFUND_INITIATED / CANCELLED は終端
}

// 配送トラックの遷移表。
// SHIPPED / DELIVERED まで進んだら前の状態には戻れない。
var shippingTransitions = map[ShippingStatus][]ShippingStatus{
	ShippingStatusPending:    {ShippingStatusProcessing, ShippingStatusShipped, ShippingStatusCancelled},
	ShippingStatusProcessing: {ShippingStatusShipped, ShippingStatusCancelled},
	ShippingStatusShipped:    {ShippingStatusDelivered},
	//DELIVERED / CANCELLED は終端
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, s := range paymentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func CanTransitionShipping(from, to ShippingStatus) bool {
	for _, s := range shippingTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// キャンセル確定前の配送側チェック
func (s ShippingStatus) Cancellable() bool {
	return s != ShippingStatusShipped && s != ShippingStatusDelivered && s != ShippingStatusCancelled
}
