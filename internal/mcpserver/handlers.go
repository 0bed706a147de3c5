package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *DunningClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *DunningClient) *Handlers {
	return &Handlers{client: client}
}

// metricsFromRequest extracts the receivables snapshot fields shared by the
// scoring tools.
func metricsFromRequest(req mcp.CallToolRequest) map[string]any {
	return map[string]any{
		"totalOutstanding": req.GetFloat("total_outstanding", 0),
		"overdueAmount":    req.GetFloat("overdue_amount", 0),
		"overdueRatio":     req.GetFloat("overdue_ratio", 0),
		"maxDaysPastDue":   req.GetInt("max_days_past_due", 0),
		"lateCount":        req.GetInt("late_count", 0),
	}
}

// HandleScoreCustomer runs a full rule-plus-score evaluation.
func (h *Handlers) HandleScoreCustomer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customerKey := req.GetString("customer_key", "")
	if customerKey == "" {
		return mcp.NewToolResultError("customer_key is required"), nil
	}

	raw, err := h.client.ScoreCustomer(ctx, customerKey, metricsFromRequest(req))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to score customer: %v", err)), nil
	}

	text, err := formatAssessment(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse assessment: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListAssessments returns a customer's assessment history.
func (h *Handlers) HandleListAssessments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customerKey := req.GetString("customer_key", "")
	if customerKey == "" {
		return mcp.NewToolResultError("customer_key is required"), nil
	}
	limit := req.GetInt("limit", 10)

	raw, err := h.client.ListAssessments(ctx, customerKey, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list assessments: %v", err)), nil
	}

	text, err := formatAssessmentList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse assessments: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListRules lists the classification rules.
func (h *Handlers) HandleListRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.ListRules(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list rules: %v", err)), nil
	}

	text, err := formatRuleList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse rules: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetActiveModel returns the active learned model.
func (h *Handlers) HandleGetActiveModel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetActiveModel(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get active model: %v", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleModelScore scores a snapshot with the active learned model.
func (h *Handlers) HandleModelScore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customerKey := req.GetString("customer_key", "")
	if customerKey == "" {
		return mcp.NewToolResultError("customer_key is required"), nil
	}
	asOf := req.GetString("as_of", "")

	raw, err := h.client.ModelScore(ctx, customerKey, metricsFromRequest(req), asOf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Model scoring failed: %v", err)), nil
	}

	text, err := formatModelScore(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse model score: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListTrainingRuns lists recent training runs.
func (h *Handlers) HandleListTrainingRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)

	raw, err := h.client.ListTrainingRuns(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list training runs: %v", err)), nil
	}

	text, err := formatRunList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse training runs: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// --- Formatting helpers ---

type assessmentInfo struct {
	CustomerKey    string           `json:"customerKey"`
	Level          string           `json:"level"`
	Probability    float64          `json:"probability"`
	Signal         string           `json:"signal"`
	Recommendation string           `json:"recommendation"`
	EvaluatedAt    string           `json:"evaluatedAt"`
	Factors        []map[string]any `json:"factors"`
}

func formatAssessment(raw json.RawMessage) (string, error) {
	var resp struct {
		Assessment *assessmentInfo `json:"assessment"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Assessment == nil {
		// Try as a bare assessment object
		var a assessmentInfo
		if err := json.Unmarshal(raw, &a); err != nil {
			return "", fmt.Errorf("unexpected assessment response format")
		}
		resp.Assessment = &a
	}
	a := resp.Assessment

	var sb strings.Builder
	fmt.Fprintf(&sb, "Customer: %s\n", a.CustomerKey)
	fmt.Fprintf(&sb, "Rule level: %s\n", a.Level)
	fmt.Fprintf(&sb, "Default probability: %.4f (%s)\n", a.Probability, a.Signal)
	if a.Recommendation != "" {
		fmt.Fprintf(&sb, "Recommended action: %s\n", a.Recommendation)
	}

	if len(a.Factors) > 0 {
		sb.WriteString("\nFactor contributions:\n")
		for _, f := range a.Factors {
			label := getString(f, "label", "code")
			contribution, _ := getFloat(f, "contribution")
			weight, _ := getFloat(f, "weight")
			fmt.Fprintf(&sb, "  %s: %.4f (weight %.2f)\n", label, contribution, weight)
		}
	}

	return sb.String(), nil
}

func formatAssessmentList(raw json.RawMessage) (string, error) {
	var resp struct {
		Assessments []assessmentInfo `json:"assessments"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected assessments response format")
	}
	if len(resp.Assessments) == 0 {
		return "No assessments recorded for this customer.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d assessment(s), most recent first:\n\n", len(resp.Assessments))
	for i, a := range resp.Assessments {
		fmt.Fprintf(&sb, "%d. %s | level %s | probability %.4f (%s)\n",
			i+1, a.EvaluatedAt, a.Level, a.Probability, a.Signal)
	}
	return sb.String(), nil
}

func formatRuleList(raw json.RawMessage) (string, error) {
	var resp struct {
		Rules []map[string]any `json:"rules"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected rules response format")
	}
	if len(resp.Rules) == 0 {
		return "No classification rules configured.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d rule(s):\n\n", len(resp.Rules))
	for i, r := range resp.Rules {
		name := getString(r, "name")
		level := getString(r, "level")
		mode := getString(r, "matchMode")
		days, _ := getFloat(r, "minDaysPastDue")
		ratio, _ := getFloat(r, "minOverdueRatio")
		late, _ := getFloat(r, "minLateCount")

		fmt.Fprintf(&sb, "%d. %s -> %s\n", i+1, name, level)
		fmt.Fprintf(&sb, "   Match %s of: days past due >= %.0f, overdue ratio >= %.2f, late count >= %.0f\n",
			mode, days, ratio, late)
		if active, ok := r["active"].(bool); ok && !active {
			sb.WriteString("   (inactive)\n")
		}
	}
	return sb.String(), nil
}

func formatModelScore(raw json.RawMessage) (string, error) {
	var resp struct {
		CustomerKey string `json:"customer_key"`
		Score       *struct {
			ModelID     string  `json:"modelId"`
			Probability float64 `json:"probability"`
			Signal      string  `json:"signal"`
		} `json:"score"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Score == nil {
		return "", fmt.Errorf("unexpected model score response format")
	}

	return fmt.Sprintf(
		"Customer: %s\nModel: %s\nDefault probability: %.4f (%s)",
		resp.CustomerKey, resp.Score.ModelID, resp.Score.Probability, resp.Score.Signal), nil
}

func formatRunList(raw json.RawMessage) (string, error) {
	var resp struct {
		Runs []map[string]any `json:"runs"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected training runs response format")
	}
	if len(resp.Runs) == 0 {
		return "No training runs recorded.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d training run(s), most recent first:\n\n", len(resp.Runs))
	for i, r := range resp.Runs {
		status := getString(r, "status")
		samples, _ := getFloat(r, "sampleCount")
		fmt.Fprintf(&sb, "%d. %s | %s | %.0f samples\n", i+1, getString(r, "id"), status, samples)

		if m, ok := r["metrics"].(map[string]any); ok {
			acc, _ := getFloat(m, "accuracy")
			auc, _ := getFloat(m, "auc")
			f1, _ := getFloat(m, "f1")
			fmt.Fprintf(&sb, "   accuracy %.3f | AUC %.3f | F1 %.3f\n", acc, auc, f1)
		}
		if errMsg := getString(r, "error"); errMsg != "" {
			fmt.Fprintf(&sb, "   error: %s\n", errMsg)
		}
	}
	return sb.String(), nil
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map, trying multiple key names.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
