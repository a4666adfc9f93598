package mcp

import (
	goMCP "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/melkeydev/mcp-tablegen/config"
	"github.com/melkeydev/mcp-tablegen/databases"
	"github.com/melkeydev/mcp-tablegen/handlers"
	"github.com/melkeydev/mcp-tablegen/session"
)

// tableOptions are the arguments shared by generate_table and explain_table.
func tableOptions(description string) []goMCP.ToolOption {
	return []goMCP.ToolOption{
		goMCP.WithDescription(description),
		goMCP.WithString("content",
			goMCP.Required(),
			goMCP.Description("Natural language description of the table"),
		),
		goMCP.WithString("schema",
			goMCP.Required(),
			goMCP.Description(`Columns and types, e.g. "name string, population int"`),
		),
		goMCP.WithString("name",
			goMCP.Description("Table name"),
		),
		goMCP.WithString("mode",
			goMCP.Description("Generation mode (default: llm)"),
			goMCP.Enum("llm", "search", "document", "image", "dataset", "operators", "planner"),
		),
		goMCP.WithString("base_columns",
			goMCP.Description("Comma separated columns joining generated rows to the input rows"),
		),
		goMCP.WithString("operators",
			goMCP.Description("Comma separated operators for operators mode, in execution order"),
		),
		goMCP.WithString("data_source",
			goMCP.Description("Registered source used as input data"),
		),
		goMCP.WithString("links",
			goMCP.Description("Comma separated pages to crawl instead of searching"),
		),
		goMCP.WithString("images",
			goMCP.Description("Comma separated image files or directories"),
		),
		goMCP.WithString("documents",
			goMCP.Description("Comma separated document paths (.txt, .md, .html, .pdf)"),
		),
		goMCP.WithNumber("chunk_size",
			goMCP.Description("Input rows per partition"),
		),
		goMCP.WithString("layout",
			goMCP.Description("Answer layout requested from the model"),
			goMCP.Enum("row", "column"),
		),
		goMCP.WithBoolean("crawl",
			goMCP.Description("Fetch search result pages instead of using snippets"),
		),
	}
}

func RegisterTools(s *server.MCPServer, sess *session.Session, generation config.GenerationConfig, db databases.Database) {
	generateTool := goMCP.NewTool("generate_table", append(tableOptions("Generate a table from a description and a schema"),
		goMCP.WithBoolean("parallel",
			goMCP.Description("Process input partitions concurrently, dropping failed ones"),
		),
	)...)

	explainTool := goMCP.NewTool("explain_table", tableOptions("Show the operator chain that would generate a table")...)

	listSourcesTool := goMCP.NewTool("list_sources",
		goMCP.WithDescription("List the registered data sources and their columns"),
	)

	sampleTool := goMCP.NewTool("sample_table",
		goMCP.WithDescription("Get sample rows from a registered source or a database table"),
		goMCP.WithString("table",
			goMCP.Required(),
			goMCP.Description("Name of the source or table to sample"),
		),
		goMCP.WithNumber("limit",
			goMCP.Description("Number of rows to return (default: 10)"),
		),
	)

	s.AddTool(generateTool, server.ToolHandlerFunc(handlers.GenerateHandler(sess, generation)))
	s.AddTool(explainTool, server.ToolHandlerFunc(handlers.ExplainHandler(sess, generation)))
	s.AddTool(listSourcesTool, server.ToolHandlerFunc(handlers.ListSourcesHandler(sess.Registry())))
	s.AddTool(sampleTool, server.ToolHandlerFunc(handlers.SampleHandler(sess.Registry(), db)))

	if db == nil {
		return
	}

	queryTool := goMCP.NewTool("query_database",
		goMCP.WithDescription("Execute a read-only SQL query on the database"),
		goMCP.WithString("query",
			goMCP.Required(),
			goMCP.Description("SQL query to execute (SELECT statements only)"),
		),
	)

	scanTool := goMCP.NewTool("scan_database",
		goMCP.WithDescription("Discover database tables and their structure"),
		goMCP.WithString("tables",
			goMCP.Description("Optional comma separated table names to scan. If empty, scans all tables"),
		),
	)

	s.AddTool(queryTool, server.ToolHandlerFunc(handlers.QueryHandler(db)))
	s.AddTool(scanTool, server.ToolHandlerFunc(handlers.ScanHandler(db)))
}
