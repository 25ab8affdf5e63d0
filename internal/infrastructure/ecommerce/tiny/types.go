package tiny

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/oliehub/backend/internal/infrastructure/ecommerce"
)

var errMissingRetorno = errors.New("tiny: response has no retorno object")

// ---------------------------------------------------------------------------
// Envelope
// ---------------------------------------------------------------------------

type envelope struct {
	Retorno json.RawMessage `json:"retorno"`
}

type retornoHeader struct {
	Status              string           `json:"status"`
	StatusProcessamento ecommerce.Text   `json:"status_processamento"`
	CodigoErro          ecommerce.Text   `json:"codigo_erro"`
	Erros               []retornoErro    `json:"erros"`
	Pagina              ecommerce.Amount `json:"pagina"`
	NumeroPaginas       ecommerce.Amount `json:"numero_paginas"`
}

type retornoErro struct {
	Codigo ecommerce.Text `json:"codigo"`
	Erro   string         `json:"erro"`
}

// noRecords reports the "no records" code, which the ERP sends either as
// codigo_erro or on an entry of erros
func (h retornoHeader) noRecords() bool {
	if h.CodigoErro.String() == codeNoRecords {
		return true
	}
	for _, e := range h.Erros {
		if e.Codigo.String() == codeNoRecords {
			return true
		}
	}
	return false
}

// code returns the first error code the ERP reported
func (h retornoHeader) code() string {
	if c := h.CodigoErro.String(); c != "" {
		return c
	}
	for _, e := range h.Erros {
		if c := e.Codigo.String(); c != "" {
			return c
		}
	}
	return ""
}

// messages joins the upstream error messages verbatim
func (h retornoHeader) messages() string {
	msgs := make([]string, 0, len(h.Erros))
	for _, e := range h.Erros {
		if msg := strings.TrimSpace(e.Erro); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	if len(msgs) == 0 {
		return "request rejected"
	}
	return strings.Join(msgs, "; ")
}

// ---------------------------------------------------------------------------
// Orders (pedidos.pesquisa / pedido.obter)
// ---------------------------------------------------------------------------

// Pedido is an ERP order as returned by the search and detail endpoints.
// The search endpoint fills only the summary fields.
type Pedido struct {
	ID              ecommerce.Text   `json:"id"`
	Numero          ecommerce.Text   `json:"numero"`
	NumeroEcommerce ecommerce.Text   `json:"numero_ecommerce"`
	DataPedido      string           `json:"data_pedido"`
	Nome            string           `json:"nome"`
	Valor           ecommerce.Amount `json:"valor"`
	TotalPedido     ecommerce.Amount `json:"total_pedido"`
	Situacao        string           `json:"situacao"`
	Cliente         *Cliente         `json:"cliente,omitempty"`
	Itens           []ItemWrapper    `json:"itens,omitempty"`
	Obs             string           `json:"obs,omitempty"`
}

// Cliente is the customer block of an order detail
type Cliente struct {
	Nome    string         `json:"nome"`
	Email   string         `json:"email"`
	Fone    string         `json:"fone"`
	Celular string         `json:"celular"`
	Codigo  ecommerce.Text `json:"codigo"`
}

// ItemWrapper mirrors the ERP's {"item": {...}} list element
type ItemWrapper struct {
	Item Item `json:"item"`
}

// Item is one order line
type Item struct {
	Codigo              string           `json:"codigo"`
	Descricao           string           `json:"descricao"`
	Quantidade          ecommerce.Amount `json:"quantidade"`
	ValorUnitario       ecommerce.Amount `json:"valor_unitario"`
	InformacaoAdicional string           `json:"informacao_adicional,omitempty"`
	Cor                 string           `json:"cor,omitempty"`
	Metais              string           `json:"metais,omitempty"`
	Personalizacao      string           `json:"personalizacao,omitempty"`
}

type pedidoWrapper struct {
	Pedido Pedido `json:"pedido"`
}

type pedidosPage struct {
	Pedidos []pedidoWrapper `json:"pedidos"`
}

type pedidoDetail struct {
	Pedido Pedido `json:"pedido"`
}

// ---------------------------------------------------------------------------
// Products (produtos.pesquisa)
// ---------------------------------------------------------------------------

// Produto is an ERP catalog entry
type Produto struct {
	ID               ecommerce.Text   `json:"id"`
	Codigo           string           `json:"codigo"`
	Nome             string           `json:"nome"`
	Preco            ecommerce.Amount `json:"preco"`
	PrecoPromocional ecommerce.Amount `json:"preco_promocional"`
	Saldo            ecommerce.Amount `json:"saldo"`
	Situacao         string           `json:"situacao"`
}

type produtoWrapper struct {
	Produto Produto `json:"produto"`
}

type produtosPage struct {
	Produtos []produtoWrapper `json:"produtos"`
}

// ---------------------------------------------------------------------------
// Contacts (contatos.pesquisa)
// ---------------------------------------------------------------------------

// Contato is an ERP contact
type Contato struct {
	ID       ecommerce.Text `json:"id"`
	Codigo   ecommerce.Text `json:"codigo"`
	Nome     string         `json:"nome"`
	Fantasia string         `json:"fantasia"`
	Email    string         `json:"email"`
	Fone     string         `json:"fone"`
	Celular  string         `json:"celular"`
	Situacao string         `json:"situacao"`
}

type contatoWrapper struct {
	Contato Contato `json:"contato"`
}

type contatosPage struct {
	Contatos []contatoWrapper `json:"contatos"`
}
