package store

// WebhookDelivery is one pending or attempted delivery of a run event to a
// subscribed endpoint.
type WebhookDelivery struct {
	ID             string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string // pending, retry, delivered, failed
	Attempts       int
}
