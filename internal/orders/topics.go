package orders

// Semua event order lewat satu topic.
const TopicOrderStatus = "esim.order.status"

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
