package enums

// EventType tags a store event. The set is open: write paths may introduce new
// values without a code change, so only the types the metrics engine reads are
// declared here.
type EventType string

const (
	EventCreateProduct   EventType = "create_product"
	EventUpdateProduct   EventType = "update_product"
	EventOrderCreated    EventType = "order_created"
	EventMarkShipped     EventType = "mark_shipped"
	EventMarkDelivered   EventType = "mark_delivered"
	EventOrderCanceled   EventType = "order_canceled"
	EventCreateCoupon    EventType = "create_coupon"
	EventRedeemCoupon    EventType = "redeem_coupon"
	EventCreatePromotion EventType = "create_promotion"
	EventCreateReview    EventType = "create_review"
	EventSendMessage     EventType = "send_message"
)

// String implements fmt.Stringer.
func (e EventType) String() string {
	return string(e)
}

// IsZero reports whether the type is unset.
func (e EventType) IsZero() bool {
	return e == ""
}
