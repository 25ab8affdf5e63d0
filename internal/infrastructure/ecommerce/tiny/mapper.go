package tiny

import (
	"fmt"
	"strings"
	"time"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/ecommerce"
)

// dateLayout is the ERP's dd/mm/yyyy date format
const dateLayout = "02/01/2006"

// MapPedido converts an ERP order into the canonical shape. The raw status
// is kept verbatim; stage and lifecycle are derived later through the
// status translation table. Amounts the ERP sent as non-numbers are listed
// in Unparsed so validation rejects the order.
func MapPedido(p Pedido) integration.Order {
	var check ecommerce.FieldCheck
	total := check.Decimal("total_value", p.TotalPedido)
	if total.IsZero() && !p.TotalPedido.Unreadable() {
		total = check.Decimal("total_value", p.Valor)
	}

	order := integration.Order{
		Source:         integration.SourceTiny,
		ExternalID:     p.ID.String(),
		CrossReference: p.NumeroEcommerce.String(),
		CustomerName:   p.Nome,
		Status:         p.Situacao,
		TotalValue:     total,
		Items:          make([]integration.OrderItem, 0, len(p.Itens)),
	}
	if p.Cliente != nil {
		if p.Cliente.Nome != "" {
			order.CustomerName = p.Cliente.Nome
		}
		order.CustomerEmail = p.Cliente.Email
		order.CustomerPhone = firstNonEmpty(p.Cliente.Celular, p.Cliente.Fone)
	}
	for i, w := range p.Itens {
		order.Items = append(order.Items, mapItem(w.Item, fmt.Sprintf("items/%d", i), &check))
	}
	if created, err := time.Parse(dateLayout, strings.TrimSpace(p.DataPedido)); err == nil {
		order.CreatedAt = created
	}
	order.Unparsed = check.Fields()

	order.Normalize()
	return order
}

func mapItem(it Item, path string, check *ecommerce.FieldCheck) integration.OrderItem {
	return integration.OrderItem{
		Name:      it.Descricao,
		SKU:       strings.TrimSpace(it.Codigo),
		Quantity:  check.Int(path+"/quantity", it.Quantidade),
		UnitPrice: check.Decimal(path+"/unit_price", it.ValorUnitario),
		Configuration: integration.ItemConfiguration{
			Color:           it.Cor,
			Hardware:        it.Metais,
			Personalization: firstNonEmpty(it.Personalizacao, it.InformacaoAdicional),
		},
	}
}

// MapProduto converts an ERP catalog entry. The ERP allows negative stock
// balances; they are kept as sent and fail validation.
func MapProduto(p Produto) integration.Product {
	var check ecommerce.FieldCheck
	product := integration.Product{
		SKU:        p.Codigo,
		Name:       p.Nome,
		BasePrice:  check.Decimal("base_price", p.Preco),
		StockLevel: check.Int("stock_level", p.Saldo),
		Source:     integration.SourceTiny,
	}
	product.Unparsed = check.Fields()
	product.Normalize()
	return product
}

// MapContato converts an ERP contact. The mobile number is preferred as
// the dedup key.
func MapContato(c Contato) integration.Customer {
	customer := integration.Customer{
		FullName:      firstNonEmpty(c.Nome, c.Fantasia),
		Email:         c.Email,
		Phone:         firstNonEmpty(c.Celular, c.Fone),
		TinyContactID: c.ID.String(),
		Source:        integration.SourceTiny,
	}
	customer.Normalize()
	return customer
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
