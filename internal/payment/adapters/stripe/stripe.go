package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	paymentdomain "github.com/stagewire/stagewire/internal/payment/domain"
)

const apiBase = "https://api.stripe.com/v1"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "stripe"
}

func (f *Factory) New(config map[string]string) (paymentdomain.Provider, error) {
	apiKey := strings.TrimSpace(config["api_key"])
	if apiKey == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}

	return &Provider{
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type Provider struct {
	apiKey string
	client *http.Client
}

func (p *Provider) Name() string {
	return "stripe"
}

func (p *Provider) Transfer(ctx context.Context, req paymentdomain.TransferRequest) (string, error) {
	if strings.TrimSpace(req.Destination) == "" {
		return "", paymentdomain.ErrInvalidDestination
	}
	if req.Amount <= 0 {
		return "", paymentdomain.ErrInvalidAmount
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("destination", req.Destination)
	for key, value := range req.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := p.post(ctx, "/transfers", req.IdempotencyKey, form, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", paymentdomain.ErrTransient
	}
	return resp.ID, nil
}

func (p *Provider) Refund(ctx context.Context, chargeID, idempotencyKey string) (string, error) {
	if strings.TrimSpace(chargeID) == "" {
		return "", paymentdomain.ErrInvalidCharge
	}

	form := url.Values{}
	form.Set("charge", chargeID)

	var resp struct {
		ID string `json:"id"`
	}
	if err := p.post(ctx, "/refunds", idempotencyKey, form, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", paymentdomain.ErrTransient
	}
	return resp.ID, nil
}

func (p *Provider) post(ctx context.Context, path, idempotencyKey string, form url.Values, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", paymentdomain.ErrTransient, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 500 || httpResp.StatusCode == http.StatusTooManyRequests {
		return paymentdomain.ErrTransient
	}
	if httpResp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(httpResp.Body).Decode(&apiErr)
		return fmt.Errorf("stripe %s: %s", apiErr.Error.Type, apiErr.Error.Message)
	}

	return json.NewDecoder(httpResp.Body).Decode(out)
}
