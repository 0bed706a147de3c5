package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the dunning MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolScoreCustomer = mcp.NewTool("score_customer",
	mcp.WithDescription(
		"Evaluate a customer's payment-default risk from their receivables snapshot. "+
			"Returns the rule-based risk level, a default probability with per-factor "+
			"contributions, the signal tier (LOW/MEDIUM/HIGH/CRITICAL), and a "+
			"recommended collections action."),
	mcp.WithString("customer_key",
		mcp.Required(),
		mcp.Description("The customer identifier to score")),
	mcp.WithNumber("total_outstanding",
		mcp.Required(),
		mcp.Description("Total outstanding receivables amount")),
	mcp.WithNumber("overdue_amount",
		mcp.Required(),
		mcp.Description("Amount currently past due")),
	mcp.WithNumber("overdue_ratio",
		mcp.Required(),
		mcp.Description("Fraction of outstanding that is overdue, in [0,1]")),
	mcp.WithNumber("max_days_past_due",
		mcp.Required(),
		mcp.Description("Days past due of the oldest open invoice")),
	mcp.WithNumber("late_count",
		mcp.Required(),
		mcp.Description("Number of invoices paid late in the lookback window")),
)

var ToolListAssessments = mcp.NewTool("list_assessments",
	mcp.WithDescription(
		"Get the recent risk assessment history for a customer, most recent first. "+
			"Use this to see how a customer's risk has evolved over time."),
	mcp.WithString("customer_key",
		mcp.Required(),
		mcp.Description("The customer identifier")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of assessments to return (default 10)")),
)

var ToolListRules = mcp.NewTool("list_rules",
	mcp.WithDescription(
		"List the configured rule-based classification rules. "+
			"Each rule has thresholds on days past due, overdue ratio, and late "+
			"payment count, plus the risk level it assigns when it matches."),
)

var ToolGetActiveModel = mcp.NewTool("get_active_model",
	mcp.WithDescription(
		"Get the currently active learned risk model: its coefficients, "+
			"feature names, training sample count, and when it was trained. "+
			"Returns an error if no model has been activated yet."),
)

var ToolModelScore = mcp.NewTool("model_score",
	mcp.WithDescription(
		"Score a customer snapshot with the active learned model instead of the "+
			"fixed-weight scorer. Returns the model's default probability and "+
			"signal tier. Fails if no model is active."),
	mcp.WithString("customer_key",
		mcp.Required(),
		mcp.Description("The customer identifier to score")),
	mcp.WithNumber("total_outstanding",
		mcp.Required(),
		mcp.Description("Total outstanding receivables amount")),
	mcp.WithNumber("overdue_amount",
		mcp.Required(),
		mcp.Description("Amount currently past due")),
	mcp.WithNumber("overdue_ratio",
		mcp.Required(),
		mcp.Description("Fraction of outstanding that is overdue, in [0,1]")),
	mcp.WithNumber("max_days_past_due",
		mcp.Required(),
		mcp.Description("Days past due of the oldest open invoice")),
	mcp.WithNumber("late_count",
		mcp.Required(),
		mcp.Description("Number of invoices paid late in the lookback window")),
	mcp.WithString("as_of",
		mcp.Description("Snapshot date as YYYY-MM-DD (defaults to today)")),
)

var ToolListTrainingRuns = mcp.NewTool("list_training_runs",
	mcp.WithDescription(
		"List recent model training runs with their evaluation metrics "+
			"(accuracy, precision, recall, F1, AUC, Brier score)."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of runs to return (default 10)")),
)
