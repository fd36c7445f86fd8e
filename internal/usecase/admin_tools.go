package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/xeipuuv/gojsonschema"

	"github.com/i2y/lnbits-mcp/internal/domain"
)

// AdminTool is one of the fixed administrative tools served next to the discovered ones.
type AdminTool string

const (
	AdminConfigure           AdminTool = "configure_lnbits"
	AdminTestConnection      AdminTool = "test_connection"
	AdminGetConfiguration    AdminTool = "get_configuration"
	AdminRefreshTools        AdminTool = "refresh_tools"
	AdminListExtensions      AdminTool = "list_extensions"
	AdminPayLightningAddress AdminTool = "pay_lightning_address"
)

// adminTools lists the administrative tools in the order they are served.
var adminTools = []AdminTool{
	AdminConfigure,
	AdminTestConnection,
	AdminGetConfiguration,
	AdminRefreshTools,
	AdminListExtensions,
	AdminPayLightningAddress,
}

// ParseAdminTool reports whether name is a reserved administrative tool name.
func ParseAdminTool(name string) (AdminTool, bool) {
	for _, t := range adminTools {
		if string(t) == name {
			return t, true
		}
	}
	return "", false
}

func emptyObject() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// Definition returns the tool description and input schema.
func (t AdminTool) Definition() domain.Tool {
	switch t {
	case AdminConfigure:
		return domain.Tool{
			Name:        string(t),
			Description: "Configure LNbits connection parameters at runtime.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"lnbits_url": map[string]any{
						"type":        "string",
						"description": "Base URL for LNbits instance (e.g. https://demo.lnbits.com)",
					},
					"api_key": map[string]any{
						"type":        "string",
						"description": "API key for LNbits authentication",
					},
					"bearer_token": map[string]any{
						"type":        "string",
						"description": "Bearer token for authentication (alternative to api_key)",
					},
					"oauth2_token": map[string]any{
						"type":        "string",
						"description": "OAuth2 token for authentication (alternative to api_key)",
					},
					"access_token": map[string]any{
						"type":        "string",
						"description": "User access token sent as Bearer to user-scoped endpoints",
					},
					"auth_method": map[string]any{
						"type":        "string",
						"description": "Authentication method",
						"enum":        []any{"api_key_header", "api_key_query", "http_bearer", "oauth2"},
					},
					"timeout": map[string]any{
						"type":        "integer",
						"description": "Request timeout in seconds",
						"minimum":     1,
						"maximum":     300,
					},
					"rate_limit_per_minute": map[string]any{
						"type":        "integer",
						"description": "Rate limit per minute",
						"minimum":     1,
						"maximum":     1000,
					},
				},
				"additionalProperties": false,
			},
		}
	case AdminTestConnection:
		return domain.Tool{
			Name:        string(t),
			Description: "Test the current LNbits connection by making a test API call.",
			InputSchema: emptyObject(),
		}
	case AdminGetConfiguration:
		return domain.Tool{
			Name:        string(t),
			Description: "Show current LNbits configuration with masked API keys.",
			InputSchema: emptyObject(),
		}
	case AdminRefreshTools:
		return domain.Tool{
			Name: string(t),
			Description: "Re-fetch the OpenAPI spec from LNbits and rebuild the tool list. " +
				"Use after enabling/disabling extensions.",
			InputSchema: emptyObject(),
		}
	case AdminListExtensions:
		return domain.Tool{
			Name:        string(t),
			Description: "Show all discovered extensions and their tool counts.",
			InputSchema: emptyObject(),
		}
	case AdminPayLightningAddress:
		return domain.Tool{
			Name: string(t),
			Description: "Send sats to a Lightning address (user@domain.com). " +
				"Resolves the address via LNURL-pay, fetches an invoice, and pays it. " +
				"Amount is in sats, NOT msats.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"lightning_address": map[string]any{
						"type":        "string",
						"description": "Lightning address (e.g. user@domain.com)",
						"pattern":     `^[^@]+@[^@]+\.[^@]+$`,
					},
					"amount_sats": map[string]any{
						"type":        "integer",
						"description": "Amount to pay in satoshis",
						"minimum":     1,
					},
					"comment": map[string]any{
						"type":        "string",
						"description": "Optional comment for the payment",
					},
				},
				"required": []any{"lightning_address", "amount_sats"},
			},
		}
	}
	return domain.Tool{Name: string(t), InputSchema: emptyObject()}
}

// AdminTools returns the definitions of every administrative tool.
func AdminTools() []domain.Tool {
	tools := make([]domain.Tool, 0, len(adminTools))
	for _, t := range adminTools {
		tools = append(tools, t.Definition())
	}
	return tools
}

// adminValidator checks administrative tool arguments against their input schemas.
type adminValidator map[AdminTool]*gojsonschema.Schema

func newAdminValidator() (adminValidator, error) {
	v := make(adminValidator, len(adminTools))
	for _, t := range adminTools {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(t.Definition().InputSchema))
		if err != nil {
			return nil, fmt.Errorf("failed to compile input schema for %s: %w", t, err)
		}
		v[t] = schema
	}
	return v, nil
}

func (v adminValidator) validate(t AdminTool, args map[string]any) error {
	schema, ok := v[t]
	if !ok {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("failed to validate arguments for %s: %w", t, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid arguments for %s: %s", t, strings.Join(msgs, "; "))
}

// connectionUpdate converts validated configure_lnbits arguments.
func connectionUpdate(args map[string]any) (ConnectionUpdate, error) {
	var upd ConnectionUpdate
	str := func(key string) *string {
		v, ok := args[key]
		if !ok || v == nil {
			return nil
		}
		s := cast.ToString(v)
		return &s
	}
	upd.URL = str("lnbits_url")
	upd.APIKey = str("api_key")
	upd.BearerToken = str("bearer_token")
	upd.OAuth2Token = str("oauth2_token")
	upd.AccessToken = str("access_token")
	upd.AuthMethod = str("auth_method")

	for key, dst := range map[string]**int{
		"timeout":               &upd.TimeoutSeconds,
		"rate_limit_per_minute": &upd.RateLimitPerMinute,
	} {
		v, ok := args[key]
		if !ok || v == nil {
			continue
		}
		n, err := cast.ToIntE(v)
		if err != nil {
			return ConnectionUpdate{}, fmt.Errorf("%s must be an integer: %w", key, err)
		}
		*dst = &n
	}
	return upd, nil
}

// renderJSON encodes v with two-space indentation and without HTML escaping.
func renderJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
