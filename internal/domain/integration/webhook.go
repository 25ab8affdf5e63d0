package integration

// ---------------------------------------------------------------------------
// Storefront webhooks
// ---------------------------------------------------------------------------

// Webhook resources
const (
	WebhookResourceOrder   = "order"
	WebhookResourceProduct = "product"
	WebhookResourceVariant = "variant"
)

// WebhookChange is a decoded storefront delivery. Either Order or Products
// is set unless the delivery is ignored; a product delivery expands to one
// row per variant SKU.
type WebhookChange struct {
	Resource    string
	Event       string
	DeliveryKey string
	Order       *Order
	Products    []Product
	Ignored     bool
	Reason      string
}

// WebhookDecoder turns a raw delivery into a change. Unknown resources and
// events decode to an ignored change, not an error.
type WebhookDecoder interface {
	Decode(resource, event string, payload []byte) (*WebhookChange, error)
}

// AckStatus is the outcome reported back for a delivery. The sender always
// gets a 200; the status only feeds logs and the response body.
type AckStatus string

const (
	AckProcessed AckStatus = "processed"
	AckDuplicate AckStatus = "duplicate"
	AckIgnored   AckStatus = "ignored"
	AckFailed    AckStatus = "failed"
)

// WebhookAck acknowledges a delivery
type WebhookAck struct {
	Status   AckStatus `json:"status"`
	Resource string    `json:"resource"`
	Event    string    `json:"event"`
	Message  string    `json:"message,omitempty"`
}
