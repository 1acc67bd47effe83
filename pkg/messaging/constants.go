package messaging

const (
	ExchangeName        = "notifications"
	BulkEmailRoutingKey = "email.bulk"
	BulkEmailQueueName  = "email_bulk_queue"
)
