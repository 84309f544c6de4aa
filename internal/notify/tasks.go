package notify

// Asynq task type names. The api binary enqueues, the worker binary consumes.
const (
	TaskOrderCreated = "order:created"
)

// OrderCreatedPayload is the wire shape of an order:created task. It carries
// identifiers only; the worker re-reads the user so a stale email address is
// never baked into the queue.
type OrderCreatedPayload struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	UserID      string `json:"userId"`
	Total       int64  `json:"total"`
	Currency    string `json:"currency"`
}
