package lnbits

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/i2y/lnbits-mcp/internal/domain"
)

var lightningAddressRe = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)

// WellKnownURLFunc maps the parts of a Lightning address to its LNURL-pay endpoint.
type WellKnownURLFunc func(user, domain string) string

// DefaultWellKnownURL follows LUD-16.
func DefaultWellKnownURL(user, domain string) string {
	return "https://" + domain + "/.well-known/lnurlp/" + user
}

// payParamsFields must all be present in a LNURL-pay response.
var payParamsFields = []string{"callback", "minSendable", "maxSendable"}

// PayLightningAddress resolves address, requests an invoice for amountSats and pays it from the wallet.
func (c *Client) PayLightningAddress(ctx context.Context, address string, amountSats int64, comment string) (any, error) {
	log := c.logger.With(slog.String("lightning_address", address), slog.Int64("amount_sats", amountSats))

	callback, err := c.resolveLightningAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if callback == "" {
		return nil, &domain.LightningAddressError{Message: "Failed to resolve lightning address: " + address}
	}

	invoice := c.fetchInvoice(ctx, callback, amountSats*1000, comment)
	if invoice == "" {
		return nil, &domain.LightningAddressError{Message: "Failed to get invoice for: " + address}
	}

	log.Info("Paying Lightning address invoice")
	return c.Request(ctx, http.MethodPost, "/api/v1/payments", nil, map[string]any{
		"out":    true,
		"bolt11": invoice,
	}, nil)
}

// resolveLightningAddress returns the LNURL-pay callback, or "" when the address cannot be resolved.
func (c *Client) resolveLightningAddress(ctx context.Context, address string) (string, error) {
	if !lightningAddressRe.MatchString(address) {
		return "", &domain.LightningAddressError{Message: "Invalid lightning address format: " + address}
	}
	user, host, _ := strings.Cut(address, "@")

	var params map[string]any
	if err := c.getJSON(ctx, c.lnurlp(user, host), &params); err != nil {
		c.logger.Error("Error resolving lightning address", slog.String("address", address), slog.Any("error", err))
		return "", nil
	}
	for _, field := range payParamsFields {
		if _, ok := params[field]; !ok {
			c.logger.Warn("LNURL-pay response is missing a required field",
				slog.String("address", address), slog.String("field", field))
			return "", nil
		}
	}
	return cast.ToString(params["callback"]), nil
}

// fetchInvoice asks the LNURL-pay callback for a BOLT11 invoice. It returns "" on any failure.
func (c *Client) fetchInvoice(ctx context.Context, callback string, amountMsats int64, comment string) string {
	u, err := url.Parse(callback)
	if err != nil {
		c.logger.Error("Invalid LNURL-pay callback", slog.String("callback", callback), slog.Any("error", err))
		return ""
	}
	q := u.Query()
	q.Set("amount", strconv.FormatInt(amountMsats, 10))
	if comment != "" {
		q.Set("comment", comment)
	}
	u.RawQuery = q.Encode()

	var resp map[string]any
	if err := c.getJSON(ctx, u.String(), &resp); err != nil {
		c.logger.Error("Error getting LNURL-pay invoice", slog.Any("error", err))
		return ""
	}
	if _, failed := resp["reason"]; failed {
		c.logger.Warn("LNURL-pay callback refused", slog.Any("reason", resp["reason"]))
		return ""
	}
	return cast.ToString(resp["pr"])
}

func (c *Client) getJSON(ctx context.Context, target string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, target)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", target, err)
	}
	return nil
}
