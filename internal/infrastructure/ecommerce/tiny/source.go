package tiny

import (
	"context"
	"net/url"
	"strconv"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Page is one page of a paginated search
type Page[T any] struct {
	Items    []T
	Page     int
	NumPages int
}

// ---------------------------------------------------------------------------
// Typed calls
// ---------------------------------------------------------------------------

// SearchOrders returns one page of order summaries
func (c *Client) SearchOrders(ctx context.Context, page int) (Page[Pedido], error) {
	return searchPage(ctx, c, "pedidos.pesquisa", page, url.Values{}, func(body pedidosPage) []Pedido {
		out := make([]Pedido, 0, len(body.Pedidos))
		for _, w := range body.Pedidos {
			out = append(out, w.Pedido)
		}
		return out
	})
}

// GetOrder loads one order with customer and items
func (c *Client) GetOrder(ctx context.Context, id string) (*Pedido, error) {
	res, err := c.Call(ctx, "pedido.obter", url.Values{"id": {id}})
	if err != nil {
		return nil, err
	}
	if res.IsEmpty() {
		return nil, integration.ErrOrderNotFound
	}
	var body pedidoDetail
	if err := res.Decode(&body); err != nil {
		return nil, err
	}
	return &body.Pedido, nil
}

// SearchProducts returns one page of catalog entries
func (c *Client) SearchProducts(ctx context.Context, page int) (Page[Produto], error) {
	return searchPage(ctx, c, "produtos.pesquisa", page, url.Values{"pesquisa": {""}}, func(body produtosPage) []Produto {
		out := make([]Produto, 0, len(body.Produtos))
		for _, w := range body.Produtos {
			out = append(out, w.Produto)
		}
		return out
	})
}

// SearchContacts returns one page of contacts
func (c *Client) SearchContacts(ctx context.Context, page int) (Page[Contato], error) {
	return searchPage(ctx, c, "contatos.pesquisa", page, url.Values{"pesquisa": {""}}, func(body contatosPage) []Contato {
		out := make([]Contato, 0, len(body.Contatos))
		for _, w := range body.Contatos {
			out = append(out, w.Contato)
		}
		return out
	})
}

func searchPage[B any, T any](ctx context.Context, c *Client, endpoint string, page int, params url.Values, unwrap func(B) []T) (Page[T], error) {
	params.Set("pagina", strconv.Itoa(page))
	res, err := c.Call(ctx, endpoint, params)
	if err != nil {
		return Page[T]{}, err
	}
	if res.IsEmpty() {
		return Page[T]{Items: []T{}, Page: page, NumPages: 0}, nil
	}
	var body B
	if err := res.Decode(&body); err != nil {
		return Page[T]{}, err
	}
	return Page[T]{Items: unwrap(body), Page: page, NumPages: res.NumPages}, nil
}

// fetchAll walks pages until numero_paginas or the configured page cap
func fetchAll[T any](ctx context.Context, c *Client, endpoint string, search func(context.Context, int) (Page[T], error)) ([]T, error) {
	all := make([]T, 0)
	for page := 1; ; page++ {
		p, err := search(ctx, page)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Items...)

		if len(p.Items) == 0 || page >= p.NumPages {
			return all, nil
		}
		if page >= c.cfg.MaxPages {
			c.logger.Warn("page cap reached, remaining pages skipped",
				zap.String("endpoint", endpoint),
				zap.Int("max_pages", c.cfg.MaxPages),
				zap.Int("num_pages", p.NumPages),
			)
			return all, nil
		}
	}
}

// ---------------------------------------------------------------------------
// Source ports
// ---------------------------------------------------------------------------

// FetchOrders returns every ERP order mapped to the canonical shape
func (c *Client) FetchOrders(ctx context.Context) ([]integration.Order, error) {
	pedidos, err := fetchAll(ctx, c, "pedidos.pesquisa", c.SearchOrders)
	if err != nil {
		return nil, err
	}

	orders := make([]integration.Order, 0, len(pedidos))
	for _, p := range pedidos {
		if c.cfg.FetchDetails {
			detail, err := c.GetOrder(ctx, p.ID.String())
			if err != nil {
				return nil, err
			}
			p = *detail
		}
		orders = append(orders, MapPedido(p))
	}
	return orders, nil
}

// FetchProducts returns the ERP catalog
func (c *Client) FetchProducts(ctx context.Context) ([]integration.Product, error) {
	produtos, err := fetchAll(ctx, c, "produtos.pesquisa", c.SearchProducts)
	if err != nil {
		return nil, err
	}
	products := make([]integration.Product, 0, len(produtos))
	for _, p := range produtos {
		products = append(products, MapProduto(p))
	}
	return products, nil
}

// FetchPrices returns the ERP price of every SKU
func (c *Client) FetchPrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	products, err := c.FetchProducts(ctx)
	if err != nil {
		return nil, err
	}
	prices := make(map[string]decimal.Decimal, len(products))
	for _, p := range products {
		if p.SKU != "" && p.PriceKnown() {
			prices[p.SKU] = p.BasePrice
		}
	}
	return prices, nil
}

// FetchCustomers returns ERP contacts
func (c *Client) FetchCustomers(ctx context.Context) ([]integration.Customer, error) {
	contatos, err := fetchAll(ctx, c, "contatos.pesquisa", c.SearchContacts)
	if err != nil {
		return nil, err
	}
	customers := make([]integration.Customer, 0, len(contatos))
	for _, ct := range contatos {
		customers = append(customers, MapContato(ct))
	}
	return customers, nil
}

var (
	_ integration.OrderSource    = (*Client)(nil)
	_ integration.ProductSource  = (*Client)(nil)
	_ integration.CustomerSource = (*Client)(nil)
	_ integration.PriceSource    = (*Client)(nil)
	_ integration.HealthChecker  = (*Client)(nil)
)
