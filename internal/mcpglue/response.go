// Package mcpglue exposes the ledger's operations as MCP tools: a thin
// translation layer between mcp.CallToolRequest/Result and the typed
// ledger.Ledger API, with no domain logic of its own.
package mcpglue

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/slicegraph/slicegraph/internal/errs"
)

// jsonResult marshals data into a single text content block.
func jsonResult(data any) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling tool response: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
	}, nil
}

// errorResult reports a ledger failure as a tool-level error result rather
// than a transport error, carrying the Kind and (for policy denials) the
// retry hint a caller needs to recover.
func errorResult(operation string, err error) (*mcp.CallToolResult, error) {
	payload := map[string]any{
		"success":   false,
		"operation": operation,
		"error":     err.Error(),
	}
	if le, ok := err.(*errs.LedgerError); ok {
		payload["kind"] = string(le.Kind)
		if le.NextBestAction != "" {
			payload["nextBestAction"] = le.NextBestAction
		}
	}
	result, marshalErr := jsonResult(payload)
	if marshalErr != nil {
		return nil, marshalErr
	}
	result.IsError = true
	return result, nil
}
