// Package ecommerce holds what the upstream adapters share: HTTP failure
// classification and lenient decoding of loosely typed JSON fields.
package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/shopspring/decimal"
)

// MaxResponseSize is the maximum upstream response body read (10MB)
const MaxResponseSize = 10 * 1024 * 1024

// ---------------------------------------------------------------------------
// Failure classification
// ---------------------------------------------------------------------------

// TransportError classifies a failed round trip. Deadlines surface as
// timeouts, everything else as an unavailable upstream.
func TransportError(source integration.Source, err error) *integration.UpstreamError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return integration.NewUpstreamError(source, integration.KindTimeout, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return integration.NewUpstreamError(source, integration.KindUnavailable, "request canceled", err)
	}
	return integration.NewUpstreamError(source, integration.KindUnavailable, "request failed", err)
}

// StatusError reports a non-2xx response, or nil for a 2xx one
func StatusError(source integration.Source, resp *http.Response) *integration.UpstreamError {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	e := integration.NewUpstreamError(source, integration.KindRejected,
		fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)), nil)
	e.Code = fmt.Sprintf("%d", resp.StatusCode)
	return e
}

// ReadBody reads at most MaxResponseSize bytes of the response
func ReadBody(source integration.Source, resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, TransportError(source, err)
	}
	return body, nil
}

// InvalidResponse reports a body that could not be decoded
func InvalidResponse(source integration.Source, err error) *integration.UpstreamError {
	return integration.NewUpstreamError(source, integration.KindInvalidResponse, "could not decode response", err)
}

// CheckToken validates presence and minimum length of a credential
// without ever echoing it
func CheckToken(source integration.Source, name, token string, minLength int) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return integration.NewConfigurationError(source, name, "is missing")
	}
	if len(token) < minLength {
		return integration.NewConfigurationError(source, name, fmt.Sprintf("is shorter than %d characters", minLength))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Lenient JSON fields
// ---------------------------------------------------------------------------

// ParseDecimal parses an upstream amount. Both "489.00" and the Brazilian
// "1.250,50" are accepted; a blank value is zero.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	return decimal.NewFromString(s)
}

// Text decodes a JSON string, number or null into a string. Upstreams
// send ids as either.
type Text string

// UnmarshalJSON implements json.Unmarshaler
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("text field: %w", err)
	}
	*t = Text(n.String())
	return nil
}

// String returns the decoded value
func (t Text) String() string {
	return string(t)
}

// Amount decodes a JSON string, number or null into a decimal. A value
// that is not a number leaves the amount zero and marks it unreadable, so
// the mapped row can be rejected instead of stored as zero.
type Amount struct {
	decimal.Decimal
	raw        string
	unreadable bool
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(data []byte) error {
	var t Text
	if err := t.UnmarshalJSON(data); err != nil {
		return err
	}
	d, err := ParseDecimal(t.String())
	*a = Amount{Decimal: d, raw: t.String(), unreadable: err != nil}
	if err != nil {
		a.Decimal = decimal.Zero
	}
	return nil
}

// Unreadable reports whether the upstream sent something that is not a number
func (a Amount) Unreadable() bool {
	return a.unreadable
}

// Raw returns the value as received
func (a Amount) Raw() string {
	return a.raw
}

// Int returns the integer part, used for quantities and stock levels
func (a Amount) Int() int {
	return int(a.IntPart())
}

// FieldCheck collects the canonical names of fields whose upstream value
// could not be read. Mappers store it on the row; the canonical schemas
// reject any row that carries one.
type FieldCheck []string

// Decimal returns the amount, recording field when it is unreadable
func (c *FieldCheck) Decimal(field string, a Amount) decimal.Decimal {
	if a.unreadable {
		*c = append(*c, field)
	}
	return a.Decimal
}

// Int returns the integer part of the amount, recording field when it is
// unreadable
func (c *FieldCheck) Int(field string, a Amount) int {
	if a.unreadable {
		*c = append(*c, field)
	}
	return a.Int()
}

// Fields returns the recorded field names, nil when every field was read
func (c FieldCheck) Fields() []string {
	if len(c) == 0 {
		return nil
	}
	return []string(c)
}
