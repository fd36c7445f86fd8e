package openapi_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/i2y/lnbits-mcp/internal/adapter/outbound/openapi"
	"github.com/i2y/lnbits-mcp/internal/domain"
)

func TestNamingRules_BaseName(t *testing.T) {
	rules := openapi.DefaultNamingRules()

	tests := []struct {
		tag, method, path string
		want              string
	}{
		{"Wallet", "get", "/api/v1/wallet", "wallet_get_wallet"},
		{"Payments", "get", "/api/v1/payments", "payments_list_payments"},
		{"Payments", "get", "/api/v1/payments/{payment_hash}", "payments_get_payments"},
		{"Payments", "post", "/api/v1/payments", "payments_create_payments"},
		{"lnurlp", "get", "/lnurlp/api/v1/links", "lnurlp_list_links"},
		{"lnurlp", "PATCH", "/lnurlp/api/v1/links/{id}", "lnurlp_update_links"},
		{"lnurlp", "delete", "/lnurlp/api/v1/links/{id}", "lnurlp_delete_links"},
		{"Extension Managment", "get", "/api/v1/extension", "extension_managment_list_extension"},
		{"Admin UI", "get", "/{id}", "admin_ui_get_resource"},
		{"  hello!  ", "put", "/api/v1/user-settings", "hello_update_user_settings"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.BaseName(tt.tag, tt.method, tt.path))
		})
	}
}

func TestNamingRules_KeepGetResourcesIsData(t *testing.T) {
	rules := openapi.NamingRules{}
	assert.Equal(t, "wallet_list_wallet", rules.BaseName("Wallet", "get", "/api/v1/wallet"))

	rules.KeepGetResources = []string{"wallet", "balance"}
	assert.Equal(t, "wallet_get_balance", rules.BaseName("Wallet", "get", "/api/v1/balance"))
}

// Parsing any generated document twice yields the same names, and names are unique within a pass.
func TestProperty_Parser_NamesDeterministicAndUnique(t *testing.T) {
	segments := []string{"api", "v1", "wallet", "payments", "links", "{id}", "{hash}", "lnurlp", "decode", "payments_2"}
	methods := []string{"get", "post", "put", "patch", "delete"}
	tags := []string{"Wallet", "Payments", "lnurlp", "Core", "payments"}

	rapid.Check(t, func(rt *rapid.T) {
		paths := map[string]any{}
		numPaths := rapid.IntRange(1, 25).Draw(rt, "numPaths")
		for i := 0; i < numPaths; i++ {
			depth := rapid.IntRange(1, 5).Draw(rt, fmt.Sprintf("depth_%d", i))
			path := ""
			for d := 0; d < depth; d++ {
				path += "/" + rapid.SampledFrom(segments).Draw(rt, fmt.Sprintf("seg_%d_%d", i, d))
			}
			item := map[string]any{}
			for _, m := range methods {
				if rapid.Bool().Draw(rt, fmt.Sprintf("has_%d_%s", i, m)) {
					item[m] = map[string]any{"tags": []any{rapid.SampledFrom(tags).Draw(rt, fmt.Sprintf("tag_%d_%s", i, m))}}
				}
			}
			paths[path] = item
		}
		raw, err := json.Marshal(map[string]any{"paths": paths})
		require.NoError(rt, err)

		p := openapi.NewParser(openapi.DefaultNamingRules(), testLogger())
		first, err := p.Parse(domain.APISchema{RawData: raw})
		require.NoError(rt, err)
		second, err := p.Parse(domain.APISchema{RawData: raw})
		require.NoError(rt, err)

		require.Len(rt, second, len(first))
		seen := make(map[string]bool, len(first))
		for i := range first {
			assert.Equal(rt, first[i].ToolName, second[i].ToolName)
			assert.False(rt, seen[first[i].ToolName], "duplicate name %s", first[i].ToolName)
			seen[first[i].ToolName] = true
		}
	})
}
