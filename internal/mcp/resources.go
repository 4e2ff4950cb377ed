package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// registerResources adds the static catalogue resources.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			"kindfund://collections",
			"Public collections",
			mcp.WithResourceDescription("Collections readable without an admin session and the operations open on each"),
			mcp.WithMIMEType("application/json"),
		),
		s.handleCollectionsResource,
	)

	srv.AddResource(
		mcp.NewResource(
			"kindfund://policy",
			"Access policy",
			mcp.WithResourceDescription("The full resource and operation access table enforced by the HTTP API"),
			mcp.WithMIMEType("application/json"),
		),
		s.handlePolicyResource,
	)
}

func (s *MCPServer) handleCollectionsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out := make([]collectionInfo, 0)
	for _, name := range s.publicCollections() {
		out = append(out, collectionInfo{
			Name: name,
			List: s.listable(name),
			Get:  s.readable(name),
		})
	}
	return jsonResource(request.Params.URI, out)
}

func (s *MCPServer) handlePolicyResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	table := make(map[string]map[string]string, len(s.policy))
	for _, name := range s.policy.Resources() {
		rules := make(map[string]string)
		for op, access := range s.policy[name] {
			rules[string(op)] = access.String()
		}
		table[name] = rules
	}
	return jsonResource(request.Params.URI, table)
}

func jsonResource(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
