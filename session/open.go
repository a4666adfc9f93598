package session

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/melkeydev/mcp-tablegen/config"
	"github.com/melkeydev/mcp-tablegen/databases"
	"github.com/melkeydev/mcp-tablegen/engine"
	"github.com/melkeydev/mcp-tablegen/llm"
)

// Open wires a session from a configuration file: the chat client, the
// optional database and every configured source. The close function releases
// the database.
func Open(ctx context.Context, cfg *config.Config) (*Session, func() error, error) {
	creds, err := config.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		return nil, nil, err
	}

	client, err := llm.NewChatClient(llm.Options{
		Provider:          cfg.LLM.Provider,
		Model:             cfg.LLM.Model,
		APIKey:            creds.Resolve(cfg.LLM.APIKey, config.OpenAIAPIKey),
		BaseURL:           cfg.LLM.BaseURL,
		Temperature:       cfg.LLM.Temperature,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create llm client")
	}

	var db databases.Database
	closeFn := func() error { return nil }
	if cfg.Database != nil {
		connStr, err := cfg.Database.GetConnectionString()
		if err != nil {
			return nil, nil, err
		}
		db, err = databases.NewConnector(cfg.Database.DBType, connStr)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to create connector")
		}
		closeFn = db.Close
	}

	registry := engine.NewRegistry()
	for _, src := range cfg.Sources {
		switch src.Kind {
		case "csv":
			err = registry.RegisterCSV(src.Name, src.Path)
		case "parquet":
			err = registry.RegisterParquet(ctx, src.Name, src.Path)
		case "database":
			err = registry.RegisterDatabase(ctx, src.Name, db, src.Table)
		default:
			err = errors.Newf("source %q: unsupported kind %q", src.Name, src.Kind)
		}
		if err != nil {
			_ = closeFn()
			return nil, nil, err
		}
	}

	opts := []Option{
		WithRegistry(registry),
		WithCredentials(creds),
		WithSearchRequestsPerSecond(cfg.Search.RequestsPerSecond),
		WithCrawl(cfg.Search.Crawl),
	}
	if db != nil {
		opts = append(opts, WithDatabase(db))
	}
	if cfg.Generation.Parallelism > 0 {
		opts = append(opts, WithParallelism(cfg.Generation.Parallelism))
	}
	s, err := New(client, opts...)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return s, closeFn, nil
}
