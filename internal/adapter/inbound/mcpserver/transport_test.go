package mcpserver_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRPC sends one JSON-RPC request and returns the response with the same id.
// The transport may answer with plain JSON or with an SSE stream.
func postRPC(t *testing.T, url string, id int, method string, params any) map[string]any {
	t.Helper()
	body, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": id, "method": method, "params": params})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		var msg map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
		return msg
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, ok := strings.CutPrefix(strings.TrimRight(line, "\r\n"), "data: ")
		if !ok {
			continue
		}
		var msg map[string]any
		if json.Unmarshal([]byte(data), &msg) == nil && msg["id"] == float64(id) {
			return msg
		}
	}
	t.Fatalf("no response with id %d", id)
	return nil
}

func TestStreamableHTTP_ListAndCall(t *testing.T) {
	h := newHarness(t, true)
	ts := httptest.NewServer(h.server.StreamableHTTP())
	t.Cleanup(ts.Close)
	endpoint := ts.URL + "/mcp"

	t.Run("list tools", func(t *testing.T) {
		msg := postRPC(t, endpoint, 1, "tools/list", map[string]any{})
		result, ok := msg["result"].(map[string]any)
		require.True(t, ok, "unexpected response: %v", msg)
		tools, ok := result["tools"].([]any)
		require.True(t, ok)

		var names []string
		for _, tool := range tools {
			names = append(names, tool.(map[string]any)["name"].(string))
		}
		assert.Contains(t, names, "get_configuration")
		assert.Contains(t, names, "wallet_get_wallet")
	})

	t.Run("call wallet tool", func(t *testing.T) {
		msg := postRPC(t, endpoint, 2, "tools/call", map[string]any{
			"name":      "wallet_get_wallet",
			"arguments": map[string]any{},
		})
		result, ok := msg["result"].(map[string]any)
		require.True(t, ok, "unexpected response: %v", msg)
		content, ok := result["content"].([]any)
		require.True(t, ok)
		require.Len(t, content, 1)

		text, ok := content[0].(map[string]any)["text"].(string)
		require.True(t, ok)
		assert.Contains(t, text, `"balance"`)
	})
}
