package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/melkeydev/mcp-tablegen/config"
	"github.com/melkeydev/mcp-tablegen/databases"
	"github.com/melkeydev/mcp-tablegen/engine"
	"github.com/melkeydev/mcp-tablegen/plan"
	"github.com/melkeydev/mcp-tablegen/session"
	"github.com/melkeydev/mcp-tablegen/types"
)

type ToolHandler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// GenerateHandler creates a handler for the generate_table tool
func GenerateHandler(s *session.Session, defaults config.GenerationConfig) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		root, err := buildTable(ctx, s, defaults, request)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid table description: %v", err)), nil
		}

		start := time.Now()
		before := s.Usage()
		parallel := request.GetBool("parallel", false)
		out, err := s.Materialize(ctx, root, parallel)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Generation failed: %v", err)), nil
		}
		after := s.Usage()

		result := types.GeneratedTable{
			ID:      uuid.NewString(),
			Name:    root.Logical().Name,
			Columns: columns(out.Schema().Attributes()),
			Rows:    out.Records(),
			Plan:    root.ExplainString(),
			Usage: types.Usage{
				Calls:        after.Calls - before.Calls,
				InputTokens:  after.InputTokens - before.InputTokens,
				OutputTokens: after.OutputTokens - before.OutputTokens,
			},
			Elapsed: time.Since(start).Round(time.Millisecond).String(),
		}
		return jsonResult(result)
	}
}

// ExplainHandler creates a handler for the explain_table tool
func ExplainHandler(s *session.Session, defaults config.GenerationConfig) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		root, err := buildTable(ctx, s, defaults, request)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid table description: %v", err)), nil
		}
		return mcp.NewToolResultText(root.ExplainString()), nil
	}
}

// ListSourcesHandler creates a handler for the list_sources tool
func ListSourcesHandler(registry *engine.Registry) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(registry.Sources())
	}
}

// SampleHandler creates a handler for the sample_table tool. Registered
// sources are sampled first; other names are read from the database.
func SampleHandler(registry *engine.Registry, db databases.Database) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := request.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Missing table parameter: %v", err)), nil
		}

		limit := request.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}

		if _, err := registry.Schema(table); err == nil {
			t, err := registry.Scan(ctx, table)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Sample failed: %v", err)), nil
			}
			return jsonResult(t.Slice(0, limit).Records())
		}
		if db == nil {
			return mcp.NewToolResultError(fmt.Sprintf("Sample failed: source %q is not registered", table)), nil
		}

		results, err := db.Sample(ctx, table, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Sample failed: %v", err)), nil
		}
		return jsonResult(results)
	}
}

// QueryHandler creates a handler for the query_database tool
func QueryHandler(db databases.Database) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Missing query parameter: %v", err)), nil
		}

		results, err := db.Query(ctx, query)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Query failed: %v", err)), nil
		}
		return jsonResult(results)
	}
}

// ScanHandler creates a handler for the scan_database tool
func ScanHandler(db databases.Database) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables, err := db.Scan(ctx, stringList(request, "tables"))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Scan failed: %v", err)), nil
		}
		return jsonResult(tables)
	}
}

func buildTable(ctx context.Context, s *session.Session, defaults config.GenerationConfig, request mcp.CallToolRequest) (*plan.PhysicalTable, error) {
	content, err := request.RequireString("content")
	if err != nil {
		return nil, err
	}
	schemaSpec, err := request.RequireString("schema")
	if err != nil {
		return nil, err
	}
	mode, err := session.ParseMode(request.GetString("mode", ""))
	if err != nil {
		return nil, err
	}
	layout, err := plan.ParseLayout(request.GetString("layout", defaults.Layout))
	if err != nil {
		return nil, err
	}

	b := s.TableBuilder().
		SetTableName(request.GetString("name", "generated")).
		SetContent(content).
		SetSchema(schemaSpec).
		SetMode(mode).
		SetLayout(layout).
		SetChunkSize(request.GetInt("chunk_size", defaults.ChunkSize))
	if args, ok := request.Params.Arguments.(map[string]any); ok {
		if crawl, ok := args["crawl"].(bool); ok {
			b.SetCrawl(crawl)
		}
	}
	if cols := stringList(request, "base_columns"); len(cols) > 0 {
		b.SetBaseColumns(cols...)
	}
	if ops := stringList(request, "operators"); len(ops) > 0 {
		b.SetOperators(ops...)
	}
	if src := request.GetString("data_source", ""); src != "" {
		b.SetDataSource(src)
	}
	for _, link := range stringList(request, "links") {
		b.AddLink(link)
	}
	b.AddImages(stringList(request, "images")...)
	b.AddDocuments(stringList(request, "documents")...)
	return b.Build(ctx)
}

// stringList reads an argument given either as a JSON array of strings or as
// a comma separated string.
func stringList(request mcp.CallToolRequest, key string) []string {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil
	}
	var out []string
	switch v := args[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
