package vnda

import (
	"fmt"
	"strings"
	"time"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/ecommerce"
)

// Customization keys understood in OrderItem.Extra
const (
	extraColor           = "cor"
	extraHardware        = "metais"
	extraPersonalization = "personalizacao"
)

// MapOrder converts a storefront order. The public order code is the
// external id because it is what the ERP records as numero_ecommerce.
func MapOrder(o Order) integration.Order {
	externalID := strings.TrimSpace(o.Code)
	if externalID == "" {
		externalID = o.ID.String()
	}
	var check ecommerce.FieldCheck

	order := integration.Order{
		Source:        integration.SourceVnda,
		ExternalID:    externalID,
		CustomerName:  strings.TrimSpace(o.FirstName + " " + o.LastName),
		CustomerEmail: o.Email,
		CustomerPhone: o.PhoneArea + o.Phone,
		Status:        o.Status,
		TotalValue:    check.Decimal("total_value", o.Total),
		Items:         make([]integration.OrderItem, 0, len(o.Items)),
		CreatedAt:     parseTime(o.ReceivedAt),
		UpdatedAt:     parseTime(o.UpdatedAt),
	}
	for i, it := range o.Items {
		path := fmt.Sprintf("items/%d", i)
		name := it.ProductName
		if it.VariantName != "" {
			name += " - " + it.VariantName
		}
		order.Items = append(order.Items, integration.OrderItem{
			Name:      name,
			SKU:       strings.TrimSpace(it.SKU),
			Quantity:  check.Int(path+"/quantity", it.Quantity),
			UnitPrice: check.Decimal(path+"/unit_price", it.Price),
			Configuration: integration.ItemConfiguration{
				Color:           it.Extra[extraColor],
				Hardware:        it.Extra[extraHardware],
				Personalization: it.Extra[extraPersonalization],
			},
		})
	}
	order.Lifecycle = integration.VndaLifecycle(order.Status)
	order.Unparsed = check.Fields()

	order.Normalize()
	return order
}

// MapProduct converts a storefront product into one canonical row per
// variant SKU. A product without variants is keyed on its reference.
func MapProduct(p Product) []integration.Product {
	if len(p.Variants) == 0 {
		var check ecommerce.FieldCheck
		product := integration.Product{
			SKU:       p.Reference,
			Name:      p.Name,
			BasePrice: check.Decimal("base_price", p.Price),
			ImageURL:  optional(p.ImageURL),
			Source:    integration.SourceVnda,
			UpdatedAt: parseTime(p.UpdatedAt),
			Unparsed:  check.Fields(),
		}
		product.Normalize()
		return []integration.Product{product}
	}

	products := make([]integration.Product, 0, len(p.Variants))
	for _, v := range p.Variants {
		products = append(products, mapVariant(v, p.Name, p.ImageURL))
	}
	return products
}

// MapVariant converts a variant delivered on its own
func MapVariant(v Variant) integration.Product {
	return mapVariant(v, "", "")
}

func mapVariant(v Variant, productName, productImage string) integration.Product {
	name := v.Name
	if productName != "" && name != "" && name != productName {
		name = productName + " - " + name
	} else if name == "" {
		name = productName
	}
	image := v.ImageURL
	if image == "" {
		image = productImage
	}
	var check ecommerce.FieldCheck
	product := integration.Product{
		SKU:        v.SKU,
		Name:       name,
		BasePrice:  check.Decimal("base_price", v.Price),
		StockLevel: check.Int("stock_level", v.Stock),
		ImageURL:   optional(image),
		Source:     integration.SourceVnda,
		UpdatedAt:  parseTime(v.UpdatedAt),
		Unparsed:   check.Fields(),
	}
	product.Normalize()
	return product
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// parseTime accepts RFC 3339 timestamps; anything else is left zero and
// defaulted by Normalize
func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}
	}
	return t
}

// MapCustomer converts a storefront client record
func MapCustomer(c Customer) integration.Customer {
	customer := integration.Customer{
		FullName:  strings.TrimSpace(c.FirstName + " " + c.LastName),
		Email:     c.Email,
		Phone:     c.PhoneArea + c.Phone,
		VndaID:    c.ID.String(),
		Tags:      c.Tags,
		Source:    integration.SourceVnda,
		UpdatedAt: parseTime(c.UpdatedAt),
	}
	customer.Normalize()
	return customer
}
