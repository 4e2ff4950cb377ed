package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// page is the window requested by a listing tool.
type page struct {
	limit  int
	offset int
}

// pageArgs reads limit and offset, falling back to the default page size and
// capping the size at maxListLimit.
func pageArgs(request mcp.CallToolRequest) page {
	p := page{
		limit:  request.GetInt("limit", defaultListLimit),
		offset: request.GetInt("offset", 0),
	}
	switch {
	case p.limit < 1:
		p.limit = 1
	case p.limit > maxListLimit:
		p.limit = maxListLimit
	}
	if p.offset < 0 {
		p.offset = 0
	}
	return p
}

// stringArg returns a required, non-blank string argument.
func stringArg(request mcp.CallToolRequest, key string) (string, error) {
	val, err := request.RequireString(key)
	if err != nil || strings.TrimSpace(val) == "" {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	return val, nil
}

// jsonResult renders v as the text content of a tool result.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError reports a failure to the agent as a result, keeping the session
// open.
func toolError(format string, args ...interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...)), nil
}

// storeError logs a storage failure and reports only a generic message, so
// driver and SQL details stay out of agent transcripts.
func (s *MCPServer) storeError(ctx context.Context, op, collection string, err error) (*mcp.CallToolResult, error) {
	s.logger.ErrorContext(ctx, "mcp store error", "op", op, "collection", collection, "error", err)
	return toolError("internal error reading %s", collection)
}
