package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ObserveToolCall(t *testing.T) {
	c := NewCollector("lnbits_mcp", prometheus.NewRegistry())

	c.ObserveToolCall("wallet_get_wallet", "success", 120*time.Millisecond)
	c.ObserveToolCall("wallet_get_wallet", "success", 80*time.Millisecond)
	c.ObserveToolCall("wallet_get_wallet", "error", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.toolCallsTotal.WithLabelValues("wallet_get_wallet", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.toolCallsTotal.WithLabelValues("wallet_get_wallet", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.toolCallDuration))
}

func TestCollector_ObserveDiscovery(t *testing.T) {
	c := NewCollector("lnbits_mcp", prometheus.NewRegistry())

	c.ObserveDiscovery("success", 42)
	c.ObserveDiscovery("failure", 42)

	assert.Equal(t, 42.0, testutil.ToFloat64(c.discoveredTools))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.discoveriesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.discoveriesTotal.WithLabelValues("failure")))
}

func TestCollector_Exposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("lnbits_mcp", reg)
	c.ObserveDiscovery("success", 3)

	expected := `
# HELP lnbits_mcp_discovered_tools Number of tools in the registry
# TYPE lnbits_mcp_discovered_tools gauge
lnbits_mcp_discovered_tools 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "lnbits_mcp_discovered_tools"))
}

func TestCollector_RegistersOncePerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector("lnbits_mcp", reg)
	assert.Panics(t, func() { NewCollector("lnbits_mcp", reg) })
}
