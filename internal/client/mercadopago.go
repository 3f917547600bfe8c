package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"ambos-norte-backend/internal/config"
)

// MercadoPagoClient covers the two gateway calls this system makes:
// creating a checkout preference and looking a payment up by id.
type MercadoPagoClient interface {
	CreatePreference(ctx context.Context, pref *PreferenceRequest) (*PreferenceResult, error)
	GetPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
}

type mercadoPagoClientImpl struct {
	httpClient  *http.Client
	baseApiURL  string
	accessToken string
}

func NewMercadoPagoClient(mpCfg *config.MercadoPago) MercadoPagoClient {
	return &mercadoPagoClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL:  mpCfg.BaseApiURL,
		accessToken: mpCfg.AccessToken,
	}
}

type PreferenceItem struct {
	Title      string          `json:"title"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	CurrencyID string          `json:"currency_id"`
}

type PreferenceBackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type PreferencePhone struct {
	AreaCode string `json:"area_code"`
	Number   string `json:"number"`
}

type PreferencePayer struct {
	Name    string          `json:"name"`
	Surname string          `json:"surname"`
	Email   string          `json:"email"`
	Phone   PreferencePhone `json:"phone"`
}

type PreferenceRequest struct {
	Items               []PreferenceItem   `json:"items"`
	BackURLs            PreferenceBackURLs `json:"back_urls"`
	AutoReturn          string             `json:"auto_return"`
	ExternalReference   string             `json:"external_reference"`
	NotificationURL     string             `json:"notification_url"`
	StatementDescriptor string             `json:"statement_descriptor"`
	Payer               PreferencePayer    `json:"payer"`
}

type PreferenceResult struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// GatewayPayment is the subset of the gateway's payment representation the
// reconciliation engine consumes.
type GatewayPayment struct {
	ID                int64           `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	PaymentMethodID   string          `json:"payment_method_id"`
	PaymentTypeID     string          `json:"payment_type_id"`
	Installments      int             `json:"installments"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
	Order struct {
		ID int64 `json:"id"`
	} `json:"order"`
}

func (c *mercadoPagoClientImpl) CreatePreference(ctx context.Context, pref *PreferenceRequest) (*PreferenceResult, error) {
	body, err := json.Marshal(pref)
	if err != nil {
		return nil, fmt.Errorf("marshal preference payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/checkout/preferences",
		bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mercadopago error %d: %s", resp.StatusCode, string(b))
	}

	var result PreferenceResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode preference response: %w", err)
	}

	return &result, nil
}

func (c *mercadoPagoClientImpl) GetPayment(ctx context.Context, paymentID string) (*GatewayPayment, error) {
	url := fmt.Sprintf("%s/v1/payments/%s", c.baseApiURL, paymentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mercadopago error %d: %s", resp.StatusCode, string(b))
	}

	var result GatewayPayment
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode payment response: %w", err)
	}

	return &result, nil
}
