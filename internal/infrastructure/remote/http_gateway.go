package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldsales/ledgersync/internal/domain/ledger"
	"github.com/fieldsales/ledgersync/internal/domain/shared/valueobject"
	"github.com/fieldsales/ledgersync/internal/infrastructure/config"
)

const (
	invoicesPath        = "/api/v1/documents/invoices"
	receiptsPath        = "/api/v1/documents/receipts"
	balancesPath        = "/api/v1/balances"
	partnerBalancesPath = "/api/v1/balances/partner/%s"
	partnersPath        = "/api/v1/partners"
	productsPath        = "/api/v1/products"
)

// HTTPGateway implements ledger.RemoteGateway against the accounting
// system's HTTP API.
type HTTPGateway struct {
	cfg        *config.RemoteConfig
	httpClient *http.Client
}

// NewHTTPGateway creates a new HTTP gateway from remote configuration
func NewHTTPGateway(cfg *config.RemoteConfig) (*HTTPGateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("remote base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid remote base URL: %w", err)
	}

	return &HTTPGateway{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// errorResponse is the API's error envelope
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// invoicePayload is the wire form of a submitted invoice
type invoicePayload struct {
	Number      int64                `json:"number"`
	Series      string               `json:"series"`
	PartnerID   uuid.UUID            `json:"partner_id"`
	PartnerName string               `json:"partner_name"`
	LocationID  uuid.UUID            `json:"location_id"`
	IssuedAt    time.Time            `json:"issued_at"`
	Notes       string               `json:"notes,omitempty"`
	Items       []invoiceItemPayload `json:"items"`
}

type invoiceItemPayload struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	VATRate     decimal.Decimal `json:"vat_rate"`
}

// documentAck is the API's acknowledgement of an accepted document
type documentAck struct {
	DocumentID string `json:"document_id"`
}

// PushInvoice submits one invoice for acceptance
func (g *HTTPGateway) PushInvoice(ctx context.Context, invoice *ledger.Invoice) (*ledger.PushInvoiceResponse, error) {
	payload := invoicePayload{
		Number:      invoice.Number,
		Series:      invoice.Series,
		PartnerID:   invoice.PartnerID,
		PartnerName: invoice.PartnerName,
		LocationID:  invoice.LocationID,
		IssuedAt:    invoice.CreatedAt,
		Notes:       invoice.Notes,
		Items:       make([]invoiceItemPayload, 0, len(invoice.Items)),
	}
	for i := range invoice.Items {
		item := &invoice.Items[i]
		payload.Items = append(payload.Items, invoiceItemPayload{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Unit:        item.Unit,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			VATRate:     item.VATRate,
		})
	}

	var ack documentAck
	if err := g.doJSON(ctx, http.MethodPost, invoicesPath, payload, &ack); err != nil {
		return nil, err
	}
	if ack.DocumentID == "" {
		return nil, fmt.Errorf("%w: acceptance without a document ID", ledger.ErrGatewayRejected)
	}
	return &ledger.PushInvoiceResponse{RemoteDocID: ack.DocumentID}, nil
}

// receiptPayload is the wire form of a submitted receipt group
type receiptPayload struct {
	GroupID       uuid.UUID            `json:"group_id"`
	ReceiptSeries string               `json:"receipt_series"`
	ReceiptNumber string               `json:"receipt_number"`
	PartnerID     uuid.UUID            `json:"partner_id"`
	PartnerName   string               `json:"partner_name"`
	Lines         []receiptLinePayload `json:"lines"`
}

type receiptLinePayload struct {
	Series       string          `json:"series,omitempty"`
	Number       string          `json:"number,omitempty"`
	ExternalCode string          `json:"external_code,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	CollectedAt  time.Time       `json:"collected_at"`
}

// PushReceiptGroup submits a whole receipt group for settlement
func (g *HTTPGateway) PushReceiptGroup(ctx context.Context, group *ledger.ReceiptGroup) (*ledger.PushReceiptResponse, error) {
	payload := receiptPayload{
		GroupID:       group.GroupID,
		ReceiptSeries: group.ReceiptSeries,
		ReceiptNumber: group.ReceiptNumber,
		PartnerID:     group.PartnerID,
		PartnerName:   group.PartnerName,
		Lines:         make([]receiptLinePayload, 0, len(group.Members)),
	}
	for i := range group.Members {
		m := &group.Members[i]
		payload.Lines = append(payload.Lines, receiptLinePayload{
			Series:       m.InvoiceRef.Series,
			Number:       m.InvoiceRef.Number,
			ExternalCode: m.InvoiceRef.ExternalCode,
			Amount:       m.Amount,
			CollectedAt:  m.CollectedAt,
		})
	}

	var ack documentAck
	if err := g.doJSON(ctx, http.MethodPost, receiptsPath, payload, &ack); err != nil {
		return nil, err
	}
	return &ledger.PushReceiptResponse{RemoteDocID: ack.DocumentID}, nil
}

// balanceLinePayload is the wire form of one open-items line
type balanceLinePayload struct {
	PartnerID    uuid.UUID       `json:"partner_id"`
	PartnerName  string          `json:"partner_name"`
	FiscalCode   string          `json:"fiscal_code"`
	DocumentType string          `json:"document_type"`
	Series       string          `json:"series"`
	Number       string          `json:"number"`
	ExternalCode string          `json:"external_code"`
	Total        decimal.Decimal `json:"total"`
	Rest         decimal.Decimal `json:"rest"`
	Currency     string          `json:"currency"`
	IssuedAt     *time.Time      `json:"issued_at"`
	DueAt        *time.Time      `json:"due_at"`
}

func (p *balanceLinePayload) toDomain(syncedAt time.Time) ledger.RemoteBalanceLine {
	currency := valueobject.Currency(p.Currency)
	if p.Currency == "" {
		currency = valueobject.DefaultCurrency
	}
	return ledger.RemoteBalanceLine{
		ID:           uuid.New(),
		PartnerID:    p.PartnerID,
		PartnerName:  p.PartnerName,
		FiscalCode:   p.FiscalCode,
		DocumentType: p.DocumentType,
		Ref: ledger.DocumentRef{
			Series:       p.Series,
			Number:       p.Number,
			ExternalCode: p.ExternalCode,
		},
		Total:    p.Total,
		Rest:     p.Rest,
		Currency: currency,
		IssuedAt: p.IssuedAt,
		DueAt:    p.DueAt,
		SyncedAt: syncedAt,
	}
}

// PullBalances fetches the full open-items snapshot
func (g *HTTPGateway) PullBalances(ctx context.Context) ([]ledger.RemoteBalanceLine, error) {
	return g.pullBalances(ctx, balancesPath)
}

// PullPartnerBalances fetches the open-items snapshot for one partner
func (g *HTTPGateway) PullPartnerBalances(ctx context.Context, fiscalCode string) ([]ledger.RemoteBalanceLine, error) {
	return g.pullBalances(ctx, fmt.Sprintf(partnerBalancesPath, url.PathEscape(fiscalCode)))
}

func (g *HTTPGateway) pullBalances(ctx context.Context, path string) ([]ledger.RemoteBalanceLine, error) {
	var payloads []balanceLinePayload
	if err := g.doJSON(ctx, http.MethodGet, path, nil, &payloads); err != nil {
		return nil, err
	}

	now := time.Now()
	lines := make([]ledger.RemoteBalanceLine, 0, len(payloads))
	for i := range payloads {
		lines = append(lines, payloads[i].toDomain(now))
	}
	return lines, nil
}

// partnerPayload is the wire form of one partner with its locations
type partnerPayload struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	FiscalCode      string            `json:"fiscal_code"`
	RegistryCode    string            `json:"registry_code"`
	ExternalCode    string            `json:"external_code"`
	PaymentTermDays *int              `json:"payment_term_days"`
	CreditLimit     decimal.Decimal   `json:"credit_limit"`
	Currency        string            `json:"currency"`
	Blocked         bool              `json:"blocked"`
	Inactive        bool              `json:"inactive"`
	Locations       []locationPayload `json:"locations"`
}

type locationPayload struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	ExternalSiteID string    `json:"external_site_id"`
	Inactive       bool      `json:"inactive"`
}

// PullPartners fetches the partner catalog with delivery locations
func (g *HTTPGateway) PullPartners(ctx context.Context) ([]ledger.Partner, []ledger.Location, error) {
	var payloads []partnerPayload
	if err := g.doJSON(ctx, http.MethodGet, partnersPath, nil, &payloads); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	partners := make([]ledger.Partner, 0, len(payloads))
	locations := make([]ledger.Location, 0)
	for i := range payloads {
		p := &payloads[i]
		partners = append(partners, ledger.Partner{
			ID:              p.ID,
			Name:            p.Name,
			FiscalCode:      p.FiscalCode,
			RegistryCode:    p.RegistryCode,
			ExternalCode:    p.ExternalCode,
			PaymentTermDays: p.PaymentTermDays,
			CreditLimit:     p.CreditLimit,
			Currency:        p.Currency,
			Blocked:         p.Blocked,
			Inactive:        p.Inactive,
			SyncedAt:        now,
		})
		for j := range p.Locations {
			l := &p.Locations[j]
			locations = append(locations, ledger.Location{
				ID:             l.ID,
				PartnerID:      p.ID,
				Name:           l.Name,
				Address:        l.Address,
				ExternalSiteID: l.ExternalSiteID,
				Inactive:       l.Inactive,
			})
		}
	}
	return partners, locations, nil
}

// productPayload is the wire form of one product with negotiated prices
type productPayload struct {
	ID        uuid.UUID           `json:"id"`
	Name      string              `json:"name"`
	Unit      string              `json:"unit"`
	ListPrice decimal.Decimal     `json:"list_price"`
	VATRate   decimal.Decimal     `json:"vat_rate"`
	Offers    []offerPricePayload `json:"offers"`
}

type offerPricePayload struct {
	PartnerID uuid.UUID       `json:"partner_id"`
	Price     decimal.Decimal `json:"price"`
}

// PullProducts fetches the product catalog with negotiated prices
func (g *HTTPGateway) PullProducts(ctx context.Context) ([]ledger.Product, []ledger.OfferPrice, error) {
	var payloads []productPayload
	if err := g.doJSON(ctx, http.MethodGet, productsPath, nil, &payloads); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	products := make([]ledger.Product, 0, len(payloads))
	offers := make([]ledger.OfferPrice, 0)
	for i := range payloads {
		p := &payloads[i]
		products = append(products, ledger.Product{
			ID:        p.ID,
			Name:      p.Name,
			Unit:      p.Unit,
			ListPrice: p.ListPrice,
			VATRate:   p.VATRate,
			SyncedAt:  now,
		})
		for j := range p.Offers {
			offers = append(offers, ledger.OfferPrice{
				ID:        uuid.New(),
				ProductID: p.ID,
				PartnerID: p.Offers[j].PartnerID,
				Price:     p.Offers[j].Price,
			})
		}
	}
	return products, offers, nil
}

// doJSON performs one API call, retrying transient failures on idempotent
// pulls only. Rejections (4xx) are never retried: the payload will not
// become acceptable by resending it.
func (g *HTTPGateway) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("remote: failed to marshal request: %w", err)
		}
	}

	// Document submissions get exactly one attempt. The remote does not
	// deduplicate, and a timed-out POST may already have been accepted, so
	// resending it can file the same document twice. Failed pushes stay
	// pending and go through the duplicate check again on the next cycle.
	attempts := 1
	if method == http.MethodGet {
		attempts = g.cfg.RetryAttempts
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ledger.ErrGatewayUnavailable, ctx.Err())
			case <-time.After(g.cfg.RetryDelay):
			}
		}

		lastErr = g.doOnce(ctx, method, path, body, out)
		if lastErr == nil || !ledger.IsGatewayUnavailable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (g *HTTPGateway) doOnce(ctx context.Context, method, path string, body []byte, out any) error {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("remote: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}
	if g.cfg.AgentCode != "" {
		req.Header.Set("X-Agent-Code", g.cfg.AgentCode)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", ledger.ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			return fmt.Errorf("%w: %s - %s", ledger.ErrGatewayRejected, errResp.Code, errResp.Message)
		}
		return fmt.Errorf("%w: HTTP %d", ledger.ErrGatewayRejected, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("remote: failed to parse response: %w", err)
	}
	return nil
}
