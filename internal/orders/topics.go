package orders

import "strconv"

const (
	TopicOrderPlaced       = "market.order.placed"
	TopicOrderShipped      = "market.order.shipped"
	TopicOrderCompleted    = "market.order.completed"
	TopicReviewCreated     = "market.review.created"
	TopicDeliveryConfirmed = "market.delivery.confirmed"
)

// Partition key = order_id, so every event of one order keeps its order.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }
