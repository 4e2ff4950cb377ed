package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kindfund/kindfund/internal/config"
	"github.com/kindfund/kindfund/internal/model"
)

const (
	defaultListLimit = 25
	maxListLimit     = 100
)

// registerTools adds the read-only catalogue tools to the MCP server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {
	srv.AddTool(
		mcp.NewTool("kindfund_list_collections",
			mcp.WithDescription("List the content collections that can be read without an admin session, with their document counts."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListCollections,
	)

	srv.AddTool(
		mcp.NewTool("kindfund_list_documents",
			mcp.WithDescription("List documents of a public collection, newest first."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("collection",
				mcp.Required(),
				mcp.Description("Collection name, e.g. causes, events or blogs"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of documents to return (default 25, max 100)"),
			),
			mcp.WithNumber("offset",
				mcp.Description("Number of documents to skip"),
			),
		),
		s.handleListDocuments,
	)

	srv.AddTool(
		mcp.NewTool("kindfund_get_document",
			mcp.WithDescription("Fetch a single document from a public collection by ID."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("collection",
				mcp.Required(),
				mcp.Description("Collection name"),
			),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Document ID"),
			),
		),
		s.handleGetDocument,
	)

	srv.AddTool(
		mcp.NewTool("kindfund_cause_progress",
			mcp.WithDescription("Report how much a cause has raised against its goal."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Cause ID"),
			),
		),
		s.handleCauseProgress,
	)
}

type collectionInfo struct {
	Name  string `json:"name"`
	List  bool   `json:"list"`
	Get   bool   `json:"get"`
	Count int64  `json:"count"`
}

func (s *MCPServer) handleListCollections(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var out []collectionInfo
	for _, name := range s.publicCollections() {
		_, total, err := s.store.ListDocuments(ctx, name, 1, 0)
		if err != nil {
			return s.storeError(ctx, "count", name, err)
		}
		out = append(out, collectionInfo{
			Name:  name,
			List:  s.listable(name),
			Get:   s.readable(name),
			Count: total,
		})
	}
	return jsonResult(map[string]interface{}{
		"collections": out,
	})
}

func (s *MCPServer) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection, err := stringArg(request, "collection")
	if err != nil {
		return toolError("%v", err)
	}
	if !s.listable(collection) {
		return toolError("collection %q is not publicly listable", collection)
	}

	p := pageArgs(request)
	docs, total, err := s.store.ListDocuments(ctx, collection, p.limit, p.offset)
	if err != nil {
		return s.storeError(ctx, "list", collection, err)
	}
	if docs == nil {
		docs = []json.RawMessage{}
	}
	return jsonResult(model.ListResponse{
		Resource: docs,
		Meta: &model.ResponseMeta{
			Count:  len(docs),
			Total:  total,
			Limit:  p.limit,
			Offset: p.offset,
		},
	})
}

func (s *MCPServer) handleGetDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection, err := stringArg(request, "collection")
	if err != nil {
		return toolError("%v", err)
	}
	id, err := stringArg(request, "id")
	if err != nil {
		return toolError("%v", err)
	}
	if !s.readable(collection) {
		return toolError("collection %q is not publicly readable", collection)
	}

	doc, err := model.NewDocument(collection)
	if err != nil {
		return toolError("%v", err)
	}
	if err := s.store.GetDocument(ctx, collection, id, doc); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return toolError("no document %q in %s", id, collection)
		}
		return s.storeError(ctx, "get", collection, err)
	}
	return jsonResult(doc)
}

type causeProgress struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	GoalAmount   float64 `json:"goal_amount"`
	RaisedAmount float64 `json:"raised_amount"`
	Remaining    float64 `json:"remaining"`
	Percent      float64 `json:"percent"`
	Currency     string  `json:"currency"`
	Active       bool    `json:"active"`
}

func (s *MCPServer) handleCauseProgress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := stringArg(request, "id")
	if err != nil {
		return toolError("%v", err)
	}
	if !s.readable(model.CollectionCauses) {
		return toolError("causes are not publicly readable")
	}

	var cause model.Cause
	if err := s.store.GetDocument(ctx, model.CollectionCauses, id, &cause); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return toolError("no cause %q", id)
		}
		return s.storeError(ctx, "get", model.CollectionCauses, err)
	}
	return jsonResult(progressOf(&cause))
}

func progressOf(c *model.Cause) causeProgress {
	p := causeProgress{
		ID:           c.ID,
		Title:        c.Title,
		GoalAmount:   c.GoalAmount,
		RaisedAmount: c.RaisedAmount,
		Remaining:    math.Max(c.GoalAmount-c.RaisedAmount, 0),
		Currency:     c.Currency,
		Active:       c.Active,
	}
	if c.GoalAmount > 0 {
		p.Percent = math.Round(c.RaisedAmount/c.GoalAmount*10000) / 100
	}
	return p
}
