package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

func newTestSetup(handler http.Handler) (*Handlers, func()) {
	ts := httptest.NewServer(handler)
	cfg := Config{
		APIURL:       ts.URL,
		OwnerAddress: "0xowner",
	}
	client := NewScreamClient(cfg)
	h := NewHandlers(client)
	return h, ts.Close
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

// ============================================================
// Client tests
// ============================================================

func TestClient_DoRequest_HTTPError_WithAPIMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "trigger_rejected",
			"message": "Trigger was not accepted",
		})
	}))
	defer ts.Close()

	client := NewScreamClient(Config{APIURL: ts.URL})
	_, err := client.Trigger(context.Background(), "0x1", "secret", "0xbad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "Trigger was not accepted")
}

func TestClient_DoRequest_HTTPError_NonJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	}))
	defer ts.Close()

	client := NewScreamClient(Config{APIURL: ts.URL})
	_, err := client.GetStatus(context.Background(), "0x1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream timeout")
}

// ============================================================
// Handler tests
// ============================================================

func TestHandleGetProtectionStatus(t *testing.T) {
	h, closeFn := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/protection/0xowner", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"config": map[string]any{
				"contacts":          []string{"0xc1", "0xc2", "0xc3"},
				"recoveryThreshold": 2,
				"timeLockSeconds":   3600,
				"triggered":         false,
			},
			"vault":        map[string]any{"address": "0xvault"},
			"vaultBalance": "5.000000000",
			"state":        "armed",
		})
	}))
	defer closeFn()

	result, err := h.HandleGetProtectionStatus(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "State: armed")
	assert.Contains(t, text, "5.000000000")
	assert.Contains(t, text, "threshold 2")
}

func TestHandlePanicTrigger(t *testing.T) {
	h, closeFn := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/panic", r.URL.Path)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "0xowner", body["owner"])
		assert.Equal(t, "help me", body["secret"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "triggered",
			"result": map[string]any{
				"swept":           "9.990000000",
				"decoySent":       "0.100000000",
				"lockedUntil":     1700003600,
				"contactsAlerted": 3,
			},
		})
	}))
	defer closeFn()

	result, err := h.HandlePanicTrigger(context.Background(), makeRequest(map[string]any{
		"secret":    "help me",
		"aggressor": "0xbad",
	}))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "Swept into vault: 9.990000000")
	assert.Contains(t, text, "Contacts alerted: 3")
}

func TestHandlePanicTrigger_MissingArgs(t *testing.T) {
	h, closeFn := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should reach the API")
	}))
	defer closeFn()

	result, err := h.HandlePanicTrigger(context.Background(), makeRequest(map[string]any{
		"aggressor": "0xbad",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleCheckAggressor_NotFlagged(t *testing.T) {
	h, closeFn := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "not_found",
			"message": "Address is not flagged",
		})
	}))
	defer closeFn()

	result, err := h.HandleCheckAggressor(context.Background(), makeRequest(map[string]any{
		"address": "0xclean",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not in the aggressor registry")
}

func TestHandleListAggressors(t *testing.T) {
	h, closeFn := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"flags": []map[string]any{
				{"address": "0xbad1", "reportedBy": "0xv1", "flaggedAt": "2026-08-01T00:00:00Z"},
				{"address": "0xbad2", "reportedBy": "0xv2", "flaggedAt": "2026-07-01T00:00:00Z"},
			},
		})
	}))
	defer closeFn()

	result, err := h.HandleListAggressors(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "0xbad1")
	assert.Contains(t, text, "0xbad2")
}

func TestHandleApproveRecovery_ThresholdMet(t *testing.T) {
	h, closeFn := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/protection/0xowner/recovery/approve", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"approvals":    2,
			"threshold":    2,
			"thresholdMet": true,
		})
	}))
	defer closeFn()

	result, err := h.HandleApproveRecovery(context.Background(), makeRequest(map[string]any{
		"owner":   "0xowner",
		"contact": "0xc1",
	}))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "2 of 2")
	assert.Contains(t, text, "Threshold met")
}
