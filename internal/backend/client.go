// Package backend is the client for the remote commerce API. It submits
// orders and payments and reads the product and customer catalogs. The wire
// format belongs to the backend; this package only preserves its semantics.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gero-pdv/caisse/internal/resilience"
)

// ErrUnavailable wraps transport-level failures: the backend could not be
// reached or kept failing after retries. Callers use it to decide whether an
// order can be captured offline.
var ErrUnavailable = errors.New("backend unavailable")

// ValidationError carries backend field-level validation messages so the
// caller can map them back onto input fields.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "backend rejected the request"
}

// Client talks to the commerce API with retry and circuit-breaking applied.
type Client struct {
	BaseURL string
	Token   string
	HTTP    resilience.Client
}

// CreateVente submits an order.
func (c *Client) CreateVente(ctx context.Context, req VenteRequest) (VenteResponse, error) {
	var out VenteResponse
	if err := c.call(ctx, http.MethodPost, "/ventes", nil, req, &out); err != nil {
		return VenteResponse{}, err
	}
	return out, nil
}

// AddPayment attaches an additional payment to an existing order.
func (c *Client) AddPayment(ctx context.Context, venteID string, p Paiement) error {
	payload := struct {
		VenteID string `json:"vente_id"`
		Paiement
	}{VenteID: venteID, Paiement: p}
	return c.call(ctx, http.MethodPost, "/ventes-ajouter-paiement", nil, payload, nil)
}

// Ticket fetches the printable receipt document for an order.
func (c *Client) Ticket(ctx context.Context, venteID string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.call(ctx, http.MethodGet, "/ventes-ticket/"+url.PathEscape(venteID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Articles returns one page of the product catalog.
func (c *Client) Articles(ctx context.Context, page int) ([]Article, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{"page": {strconv.Itoa(page)}}
	var out []Article
	if err := c.call(ctx, http.MethodGet, "/articles-all", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchClients queries the customer directory.
func (c *Client) SearchClients(ctx context.Context, search string) ([]ClientRecord, error) {
	q := url.Values{"search": {search}}
	var out []ClientRecord
	if err := c.call(ctx, http.MethodGet, "/clients-liste", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateClient quick-adds a customer and returns the created record.
func (c *Client) CreateClient(ctx context.Context, nom string) (ClientRecord, error) {
	var out ClientRecord
	payload := map[string]string{"nom": nom}
	if err := c.call(ctx, http.MethodPost, "/clients", nil, payload, &out); err != nil {
		return ClientRecord{}, err
	}
	return out, nil
}

// Comptes lists the payment accounts.
func (c *Client) Comptes(ctx context.Context) ([]Compte, error) {
	var out []Compte
	if err := c.call(ctx, http.MethodGet, "/comptes", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MethodesPaiement lists the payment methods.
func (c *Client) MethodesPaiement(ctx context.Context) ([]MethodePaiement, error) {
	var out []MethodePaiement
	if err := c.call(ctx, http.MethodGet, "/methodes-paiement", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// call performs one API request. Successful payloads arrive wrapped in a
// {"data": ...} envelope; some endpoints add a top-level message.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := strings.TrimRight(c.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrUnavailable, path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	return decodeEnvelope(data, out)
}

// decodeEnvelope unwraps {"data": ...} responses, merging sibling fields
// (message, id, total, ticket) into struct targets when present.
func decodeEnvelope(data []byte, out any) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
		// Fields like "message" live beside "data"; fill them in too.
		if _, raw := out.(*json.RawMessage); !raw {
			_ = json.Unmarshal(data, out)
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, data []byte) error {
	var payload struct {
		Error   string              `json:"error"`
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
	}
	_ = json.Unmarshal(data, &payload)

	message := payload.Error
	if message == "" {
		message = payload.Message
	}
	if len(payload.Errors) > 0 || message != "" {
		fields := make(map[string]string, len(payload.Errors))
		for field, msgs := range payload.Errors {
			if len(msgs) > 0 {
				fields[field] = msgs[0]
			}
		}
		return &ValidationError{Message: message, Fields: fields}
	}
	if status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrUnavailable, status)
	}
	return &ValidationError{Message: http.StatusText(status)}
}
