package vnda

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oliehub/backend/internal/domain/integration"
)

// Webhook events after alias folding
const (
	EventCreated   = "created"
	EventUpdated   = "updated"
	EventConfirmed = "confirmed"
	EventCanceled  = "canceled"
	EventShipped   = "shipped"
	EventPaid      = "paid"
)

// eventAliases folds the spellings the storefront uses onto one event
var eventAliases = map[string]string{
	"created":   EventCreated,
	"create":    EventCreated,
	"updated":   EventUpdated,
	"update":    EventUpdated,
	"confirmed": EventConfirmed,
	"confirm":   EventConfirmed,
	"canceled":  EventCanceled,
	"cancelled": EventCanceled,
	"cancel":    EventCanceled,
	"shipped":   EventShipped,
	"ship":      EventShipped,
	"paid":      EventPaid,
}

// statusEvents carry the order status in the event name itself
var statusEvents = map[string]bool{
	EventConfirmed: true,
	EventCanceled:  true,
	EventShipped:   true,
	EventPaid:      true,
}

// Decoder normalizes storefront webhook deliveries
type Decoder struct{}

// NewDecoder creates a Decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode reads a delivery. resource and event default to the payload's
// own fields when empty. Unknown resources and events are returned as
// ignored changes.
func (d *Decoder) Decode(resource, event string, payload []byte) (*integration.WebhookChange, error) {
	var header delivery
	if err := json.Unmarshal(payload, &header); err != nil {
		return nil, fmt.Errorf("%w: webhook payload: %v", integration.ErrValidationFailure, err)
	}
	if strings.TrimSpace(resource) == "" {
		resource = header.Resource
	}
	if strings.TrimSpace(event) == "" {
		event = header.Event
	}
	resource = strings.ToLower(strings.TrimSpace(resource))
	rawEvent := strings.ToLower(strings.TrimSpace(event))

	change := &integration.WebhookChange{
		Resource:    resource,
		Event:       rawEvent,
		DeliveryKey: header.key(resource, rawEvent),
	}

	normalized, ok := eventAliases[rawEvent]
	if !ok {
		change.Ignored = true
		change.Reason = "unknown event"
		return change, nil
	}
	change.Event = normalized
	change.DeliveryKey = header.key(resource, normalized)

	switch resource {
	case integration.WebhookResourceOrder:
		var o Order
		if err := json.Unmarshal(payload, &o); err != nil {
			return nil, fmt.Errorf("%w: order payload: %v", integration.ErrValidationFailure, err)
		}
		if strings.TrimSpace(o.Status) == "" && statusEvents[normalized] {
			o.Status = normalized
		}
		order := MapOrder(o)
		change.Order = &order

	case integration.WebhookResourceProduct:
		var p Product
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("%w: product payload: %v", integration.ErrValidationFailure, err)
		}
		change.Products = MapProduct(p)

	case integration.WebhookResourceVariant:
		var v Variant
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("%w: variant payload: %v", integration.ErrValidationFailure, err)
		}
		change.Products = []integration.Product{MapVariant(v)}

	default:
		change.Ignored = true
		change.Reason = "unknown resource"
	}
	return change, nil
}

var _ integration.WebhookDecoder = (*Decoder)(nil)

// SecretMatches checks a delivery's shared secret in constant time. An
// empty expected secret disables the check.
func SecretMatches(expected, provided string) bool {
	if expected == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
