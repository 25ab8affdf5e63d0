package vnda

import (
	"strings"

	"github.com/oliehub/backend/internal/infrastructure/ecommerce"
)

// Order is a storefront order as returned by the REST API and carried in
// order webhooks
type Order struct {
	ID          ecommerce.Text   `json:"id"`
	Code        string           `json:"code"`
	Status      string           `json:"status"`
	Total       ecommerce.Amount `json:"total"`
	Email       string           `json:"email"`
	FirstName   string           `json:"first_name"`
	LastName    string           `json:"last_name"`
	PhoneArea   string           `json:"phone_area"`
	Phone       string           `json:"phone"`
	Items       []OrderItem      `json:"items"`
	ReceivedAt  string           `json:"received_at"`
	UpdatedAt   string           `json:"updated_at"`
	ConfirmedAt string           `json:"confirmed_at,omitempty"`
}

// OrderItem is one storefront order line. Customizations arrive as free
// key/value pairs in extra.
type OrderItem struct {
	SKU         string            `json:"sku"`
	ProductName string            `json:"product_name"`
	VariantName string            `json:"variant_name"`
	Quantity    ecommerce.Amount  `json:"quantity"`
	Price       ecommerce.Amount  `json:"price"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Product is a storefront product with its sellable variants
type Product struct {
	ID        ecommerce.Text   `json:"id"`
	Name      string           `json:"name"`
	Reference string           `json:"reference"`
	Price     ecommerce.Amount `json:"price"`
	ImageURL  string           `json:"image_url"`
	Variants  []Variant        `json:"variants"`
	UpdatedAt string           `json:"updated_at"`
}

// Variant is the SKU-level unit; its SKU is the catalog join key
type Variant struct {
	ID        ecommerce.Text   `json:"id"`
	SKU       string           `json:"sku"`
	Name      string           `json:"name"`
	Price     ecommerce.Amount `json:"price"`
	Stock     ecommerce.Amount `json:"stock"`
	ImageURL  string           `json:"image_url"`
	ProductID ecommerce.Text   `json:"product_id"`
	UpdatedAt string           `json:"updated_at"`
}

// delivery is the common webhook header
type delivery struct {
	Resource  string         `json:"resource"`
	Event     string         `json:"event"`
	ID        ecommerce.Text `json:"id"`
	UpdatedAt string         `json:"updated_at"`
}

// key identifies a delivery for dedup: a redelivery of the same change
// carries the same id and updated_at
func (d delivery) key(resource, event string) string {
	return strings.Join([]string{resource, event, d.ID.String(), d.UpdatedAt}, ":")
}

// pagination is the X-Pagination response header
type pagination struct {
	TotalPages  int `json:"total_pages"`
	CurrentPage int `json:"current_page"`
}

// Customer is a storefront client record
type Customer struct {
	ID        ecommerce.Text `json:"id"`
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Email     string         `json:"email"`
	PhoneArea string         `json:"phone_area"`
	Phone     string         `json:"phone"`
	Tags      []string       `json:"tags"`
	UpdatedAt string         `json:"updated_at"`
}
