package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the scream MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolGetProtectionStatus = mcp.NewTool("get_protection_status",
	mcp.WithDescription(
		"Get the protection status of a wallet: armed, triggered, in recovery, or claimed. "+
			"Shows the vault balance, recovery approvals collected so far, and the time-lock deadline."),
	mcp.WithString("owner",
		mcp.Description("Owner address to inspect. Defaults to the configured owner.")),
)

var ToolPanicTrigger = mcp.NewTool("panic_trigger",
	mcp.WithDescription(
		"Fire the duress cascade for a protected wallet: sweep holdings into the time-locked "+
			"vault, send the decoy payment to the aggressor, alert recovery contacts, and flag "+
			"the aggressor in the public registry. Requires the duress secret. "+
			"This is irreversible and fires at most once per wallet — only use it when the "+
			"owner is being coerced into handing over funds."),
	mcp.WithString("secret",
		mcp.Required(),
		mcp.Description("The duress secret configured at setup")),
	mcp.WithString("aggressor",
		mcp.Required(),
		mcp.Description("Address the coercer demanded payment to (e.g. '0x1234...')")),
	mcp.WithString("owner",
		mcp.Description("Owner address. Defaults to the configured owner.")),
)

var ToolCheckBalance = mcp.NewTool("check_balance",
	mcp.WithDescription(
		"Check the ledger balance of an address, including lifetime totals in and out."),
	mcp.WithString("address",
		mcp.Description("Address to check. Defaults to the configured owner.")),
)

var ToolListAggressors = mcp.NewTool("list_aggressors",
	mcp.WithDescription(
		"List addresses flagged as aggressors by panic triggers, newest first. "+
			"Check a counterparty against this list before transacting with them."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of flags to return (default 50)")),
)

var ToolCheckAggressor = mcp.NewTool("check_aggressor",
	mcp.WithDescription(
		"Look up a single address in the aggressor registry. "+
			"Returns the flag record if the address was ever named in a panic trigger."),
	mcp.WithString("address",
		mcp.Required(),
		mcp.Description("Address to look up (e.g. '0x1234...')")),
)

var ToolCheckCompromised = mcp.NewTool("check_compromised",
	mcp.WithDescription(
		"Check whether a wallet is flagged as compromised, meaning its panic trigger "+
			"fired and its funds should be treated as under duress until resolved."),
	mcp.WithString("owner",
		mcp.Description("Owner address to check. Defaults to the configured owner.")),
)

var ToolInitiateRecovery = mcp.NewTool("initiate_recovery",
	mcp.WithDescription(
		"Start the recovery process for a triggered wallet. "+
			"Only works after the time-lock has elapsed; contacts then approve the recovery."),
	mcp.WithString("owner",
		mcp.Description("Owner address. Defaults to the configured owner.")),
)

var ToolApproveRecovery = mcp.NewTool("approve_recovery",
	mcp.WithDescription(
		"Record a recovery contact's approval for an owner's vault claim. "+
			"The claim unlocks once the configured M-of-N threshold of contacts has approved."),
	mcp.WithString("owner",
		mcp.Required(),
		mcp.Description("Owner address whose recovery is being approved")),
	mcp.WithString("contact",
		mcp.Required(),
		mcp.Description("The approving contact's address")),
)
