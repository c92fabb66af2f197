package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *ScreamClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *ScreamClient) *Handlers {
	return &Handlers{client: client}
}

func (h *Handlers) owner(req mcp.CallToolRequest) string {
	return req.GetString("owner", h.client.cfg.OwnerAddress)
}

// HandleGetProtectionStatus reports the lifecycle state of a wallet.
func (h *Handlers) HandleGetProtectionStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner := h.owner(req)
	if owner == "" {
		return mcp.NewToolResultError("owner is required"), nil
	}

	raw, err := h.client.GetStatus(ctx, owner)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get status: %v", err)), nil
	}

	text, err := formatStatus(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse status: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandlePanicTrigger fires the duress cascade.
func (h *Handlers) HandlePanicTrigger(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner := h.owner(req)
	secret := req.GetString("secret", "")
	aggressor := req.GetString("aggressor", "")

	if owner == "" {
		return mcp.NewToolResultError("owner is required"), nil
	}
	if secret == "" {
		return mcp.NewToolResultError("secret is required"), nil
	}
	if aggressor == "" {
		return mcp.NewToolResultError("aggressor is required"), nil
	}

	raw, err := h.client.Trigger(ctx, owner, secret, aggressor)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Trigger failed: %v", err)), nil
	}

	var resp struct {
		Result struct {
			Swept           string `json:"swept"`
			DecoySent       string `json:"decoySent"`
			LockedUntil     int64  `json:"lockedUntil"`
			ContactsAlerted int    `json:"contactsAlerted"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultText(formatJSON(raw)), nil
	}

	var sb strings.Builder
	sb.WriteString("Panic cascade executed.\n\n")
	fmt.Fprintf(&sb, "Swept into vault: %s\n", resp.Result.Swept)
	fmt.Fprintf(&sb, "Decoy sent to aggressor: %s\n", resp.Result.DecoySent)
	fmt.Fprintf(&sb, "Contacts alerted: %d\n", resp.Result.ContactsAlerted)
	fmt.Fprintf(&sb, "Vault locked until: %s\n",
		time.Unix(resp.Result.LockedUntil, 0).UTC().Format(time.RFC3339))
	sb.WriteString("\nThe aggressor address is now publicly flagged.")

	return mcp.NewToolResultText(sb.String()), nil
}

// HandleCheckBalance returns the ledger balance of an address.
func (h *Handlers) HandleCheckBalance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address := req.GetString("address", h.client.cfg.OwnerAddress)
	if address == "" {
		return mcp.NewToolResultError("address is required"), nil
	}

	raw, err := h.client.GetBalance(ctx, address)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check balance: %v", err)), nil
	}

	var resp struct {
		Balance struct {
			Address   string `json:"address"`
			Available string `json:"available"`
			TotalIn   string `json:"totalIn"`
			TotalOut  string `json:"totalOut"`
		} `json:"balance"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultText(formatJSON(raw)), nil
	}

	text := fmt.Sprintf("Balance for %s\n\nAvailable: %s\nTotal in: %s\nTotal out: %s",
		resp.Balance.Address, resp.Balance.Available, resp.Balance.TotalIn, resp.Balance.TotalOut)
	return mcp.NewToolResultText(text), nil
}

// HandleListAggressors lists flagged aggressor addresses.
func (h *Handlers) HandleListAggressors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 0)

	raw, err := h.client.ListAggressors(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list aggressors: %v", err)), nil
	}

	var resp struct {
		Flags []struct {
			Address    string    `json:"address"`
			ReportedBy string    `json:"reportedBy"`
			FlaggedAt  time.Time `json:"flaggedAt"`
		} `json:"flags"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultText(formatJSON(raw)), nil
	}

	if len(resp.Flags) == 0 {
		return mcp.NewToolResultText("No aggressors flagged."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d flagged aggressor(s):\n\n", len(resp.Flags))
	for _, a := range resp.Flags {
		fmt.Fprintf(&sb, "- %s (reported by %s on %s)\n",
			a.Address, a.ReportedBy, a.FlaggedAt.Format("2006-01-02"))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleCheckAggressor looks up one address in the aggressor registry.
func (h *Handlers) HandleCheckAggressor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address := req.GetString("address", "")
	if address == "" {
		return mcp.NewToolResultError("address is required"), nil
	}

	raw, err := h.client.GetAggressor(ctx, address)
	if err != nil {
		if strings.Contains(err.Error(), "(404)") {
			return mcp.NewToolResultText(fmt.Sprintf("%s is not in the aggressor registry.", address)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Lookup failed: %v", err)), nil
	}

	return mcp.NewToolResultText(
		fmt.Sprintf("WARNING: %s is a flagged aggressor.\n\n%s", address, formatJSON(raw))), nil
}

// HandleCheckCompromised checks a wallet against the compromised registry.
func (h *Handlers) HandleCheckCompromised(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner := h.owner(req)
	if owner == "" {
		return mcp.NewToolResultError("owner is required"), nil
	}

	raw, err := h.client.GetCompromised(ctx, owner)
	if err != nil {
		if strings.Contains(err.Error(), "(404)") {
			return mcp.NewToolResultText(fmt.Sprintf("%s is not flagged as compromised.", owner)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Lookup failed: %v", err)), nil
	}

	var resp struct {
		Flag struct {
			FlaggedAt time.Time `json:"flaggedAt"`
			Resolved  bool      `json:"resolved"`
		} `json:"flag"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultText(formatJSON(raw)), nil
	}

	if resp.Flag.Resolved {
		return mcp.NewToolResultText(fmt.Sprintf(
			"%s was flagged compromised on %s, since resolved.",
			owner, resp.Flag.FlaggedAt.Format("2006-01-02"))), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"WARNING: %s is flagged as compromised (since %s). Its funds are under duress.",
		owner, resp.Flag.FlaggedAt.Format("2006-01-02"))), nil
}

// HandleInitiateRecovery starts recovery for a triggered wallet.
func (h *Handlers) HandleInitiateRecovery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner := h.owner(req)
	if owner == "" {
		return mcp.NewToolResultError("owner is required"), nil
	}

	if _, err := h.client.InitiateRecovery(ctx, owner); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Recovery initiation failed: %v", err)), nil
	}
	return mcp.NewToolResultText(
		"Recovery initiated. Contacts can now approve; the vault unlocks once the threshold is met."), nil
}

// HandleApproveRecovery records a contact approval.
func (h *Handlers) HandleApproveRecovery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner := req.GetString("owner", "")
	contact := req.GetString("contact", "")
	if owner == "" || contact == "" {
		return mcp.NewToolResultError("owner and contact are required"), nil
	}

	raw, err := h.client.ApproveRecovery(ctx, owner, contact)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Approval failed: %v", err)), nil
	}

	var resp struct {
		Approvals    int  `json:"approvals"`
		Threshold    int  `json:"threshold"`
		ThresholdMet bool `json:"thresholdMet"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultText(formatJSON(raw)), nil
	}

	text := fmt.Sprintf("Approval recorded: %d of %d.", resp.Approvals, resp.Threshold)
	if resp.ThresholdMet {
		text += " Threshold met; the owner can claim once the time-lock expires."
	}
	return mcp.NewToolResultText(text), nil
}

// formatStatus renders the protection status view as readable text.
func formatStatus(raw json.RawMessage) (string, error) {
	var view struct {
		Config struct {
			Contacts          []string `json:"contacts"`
			RecoveryThreshold int      `json:"recoveryThreshold"`
			TimeLockSeconds   int64    `json:"timeLockSeconds"`
			Triggered         bool     `json:"triggered"`
		} `json:"config"`
		Vault struct {
			Address           string `json:"address"`
			LockedUntil       int64  `json:"lockedUntil"`
			RecoveryInitiated bool   `json:"recoveryInitiated"`
			Approvals         int    `json:"approvals"`
		} `json:"vault"`
		VaultBalance string `json:"vaultBalance"`
		State        string `json:"state"`
	}
	if err := json.Unmarshal(raw, &view); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "State: %s\n", view.State)
	fmt.Fprintf(&sb, "Vault: %s (balance %s)\n", view.Vault.Address, view.VaultBalance)
	fmt.Fprintf(&sb, "Contacts: %d, threshold %d\n", len(view.Config.Contacts), view.Config.RecoveryThreshold)

	if view.Config.Triggered {
		if view.Vault.LockedUntil > 0 {
			fmt.Fprintf(&sb, "Time-lock expires: %s\n",
				time.Unix(view.Vault.LockedUntil, 0).UTC().Format(time.RFC3339))
		}
		fmt.Fprintf(&sb, "Recovery initiated: %t, approvals %d of %d\n",
			view.Vault.RecoveryInitiated, view.Vault.Approvals, view.Config.RecoveryThreshold)
	} else {
		fmt.Fprintf(&sb, "Time-lock on trigger: %s\n",
			(time.Duration(view.Config.TimeLockSeconds) * time.Second).String())
	}
	return sb.String(), nil
}

// formatJSON pretty-prints raw JSON as a fallback rendering.
func formatJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
