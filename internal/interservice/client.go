// Package interservice implements the Registry<->Collector HTTP
// contract (§4.I): validate, available-symbols, unload. Both services
// can run in one process or split; either way they talk over plain
// local HTTP, and every call here is treated as non-fatal to the
// Registry's own persistence — the database remains the source of
// truth and the Collector reconciles to it on its own schedule.
package interservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/quasarhq/quasar/internal/model"
)

type validateWireBody struct {
	FilePath    string            `json:"file_path"`
	Preferences map[string]any    `json:"preferences"`
	Secrets     map[string]string `json:"secrets"`
}

// Client calls the Collector's provider-lifecycle endpoints from the
// Registry.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client targeting the Collector at baseURL (no
// trailing slash).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

// ValidateError distinguishes a non-200 JSON error response (returned by
// the Collector in the ordinary rejection path) from a transport-level
// failure or a non-JSON response body.
type ValidateError struct {
	StatusCode int
	Message    string
}

func (e *ValidateError) Error() string {
	return fmt.Sprintf("interservice: validate rejected: %d %s", e.StatusCode, e.Message)
}

// ValidateRequest describes the not-yet-persisted registration the
// Collector should attempt to construct (§4.H upload step 5).
type ValidateRequest struct {
	ClassName   string
	ClassType   model.ClassType
	FilePath    string
	Preferences map[string]any
	Secrets     map[string]string
}

// Validate asks the Collector to construct className from the
// just-uploaded file and report whether it is acceptable. A non-200
// JSON response yields *ValidateError; a non-200, non-JSON response is
// a transport-shaped error the caller should treat as a 502.
func (c *Client) Validate(ctx context.Context, vr ValidateRequest) error {
	url := fmt.Sprintf("%s/internal/%s/%s/validate", c.baseURL, vr.ClassType, vr.ClassName)

	body, err := json.Marshal(validateWireBody{FilePath: vr.FilePath, Preferences: vr.Preferences, Secrets: vr.Secrets})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("interservice: calling validate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	var errBody struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &errBody) != nil {
		return fmt.Errorf("interservice: validate returned non-JSON status %d", resp.StatusCode)
	}
	return &ValidateError{StatusCode: resp.StatusCode, Message: errBody.Message}
}

// AvailableSymbols fetches the provider's symbol list from the
// Collector (§4.H update-assets). The caller distinguishes 404/501 from
// other failures via StatusCode on the returned error.
func (c *Client) AvailableSymbols(ctx context.Context, className string) ([]model.SymbolInfo, error) {
	url := fmt.Sprintf("%s/internal/providers/%s/available-symbols", c.baseURL, className)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("interservice: calling available-symbols: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ValidateError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("available-symbols returned %d", resp.StatusCode)}
	}

	var symbols []model.SymbolInfo
	if err := json.NewDecoder(resp.Body).Decode(&symbols); err != nil {
		return nil, fmt.Errorf("interservice: decoding available-symbols response: %w", err)
	}
	return symbols, nil
}

// Unload asks the Collector to drop its cached instance of className,
// best-effort (§4.H secrets PATCH). Callers should log failures and
// proceed rather than fail the caller's own operation.
func (c *Client) Unload(ctx context.Context, className string) error {
	url := fmt.Sprintf("%s/internal/providers/%s/unload", c.baseURL, className)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("interservice: calling unload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("interservice: unload returned %d", resp.StatusCode)
	}
	return nil
}
