package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"backlot/contexts/finance-core/settlement-engine/domain/entities"
)

// Client talks to the external payment facilitator. It answers exactly one
// question, whether the authorization signature recovers to the payer
// address, and executes wallet transfers. Business rules never live here.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

type verifyRequestBody struct {
	Version     int    `json:"version"`
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
	PayTo       string `json:"pay_to"`
	From        string `json:"from"`
	Value       string `json:"value"`
	ValidAfter  int64  `json:"valid_after"`
	ValidBefore int64  `json:"valid_before"`
	Nonce       string `json:"nonce"`
	Signature   string `json:"signature"`
}

type verifyResponseBody struct {
	Valid bool `json:"valid"`
}

func (c Client) VerifySignature(ctx context.Context, authorization entities.PaymentAuthorization) (bool, error) {
	body, err := json.Marshal(verifyRequestBody{
		Version:     authorization.Version,
		Scheme:      authorization.Scheme,
		Network:     authorization.Network,
		PayTo:       authorization.PayTo,
		From:        authorization.From,
		Value:       authorization.Value,
		ValidAfter:  authorization.ValidAfter.Unix(),
		ValidBefore: authorization.ValidBefore.Unix(),
		Nonce:       authorization.Nonce,
		Signature:   authorization.Signature,
	})
	if err != nil {
		return false, err
	}

	payload, status, err := c.post(ctx, "/v1/verify", body)
	if err != nil {
		return false, err
	}
	if status != http.StatusOK {
		return false, fmt.Errorf("facilitator verify returned status %d", status)
	}

	var decoded verifyResponseBody
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return false, fmt.Errorf("malformed facilitator verify response: %w", err)
	}
	return decoded.Valid, nil
}

type transferRequestBody struct {
	Wallet      string `json:"wallet"`
	AmountCents int64  `json:"amount_cents"`
	Reference   string `json:"reference"`
}

type transferResponseBody struct {
	TransferHash string `json:"transfer_hash"`
	Error        string `json:"error,omitempty"`
}

// Transfer moves settled value to a recipient wallet. The reference is the
// payout id, which lets the facilitator deduplicate a retried transfer.
func (c Client) Transfer(ctx context.Context, wallet string, amountCents int64, reference string) (string, error) {
	body, err := json.Marshal(transferRequestBody{
		Wallet:      wallet,
		AmountCents: amountCents,
		Reference:   reference,
	})
	if err != nil {
		return "", err
	}

	payload, status, err := c.post(ctx, "/v1/transfer", body)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("facilitator transfer returned status %d", status)
	}

	var decoded transferResponseBody
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("malformed facilitator transfer response: %w", err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("facilitator transfer failed: %s", decoded.Error)
	}
	if decoded.TransferHash == "" {
		return "", fmt.Errorf("facilitator transfer returned no hash")
	}
	return decoded.TransferHash, nil
}

func (c Client) post(ctx context.Context, path string, body []byte) ([]byte, int, error) {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	response, err := c.httpClient().Do(httpRequest)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = response.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return nil, 0, err
	}
	return payload, response.StatusCode, nil
}

func (c Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}
