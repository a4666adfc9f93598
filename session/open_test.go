package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/melkeydev/mcp-tablegen/config"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "geo.db")
	seed, err := sqlx.Open("sqlite3", dbPath)
	require.NoError(t, err)
	seed.MustExec(`CREATE TABLE states (name TEXT, population INTEGER)`)
	seed.MustExec(`INSERT INTO states VALUES ('Alabama', 5024279), ('Alaska', 733391)`)
	require.NoError(t, seed.Close())

	csvPath := filepath.Join(dir, "capitals.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("state,capital\nAlabama,Montgomery\n"), 0o644))

	cfg := config.Default()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.Model = "llama3"
	cfg.CredentialsFile = filepath.Join(dir, "credentials.yaml")
	cfg.Search.Crawl = true
	cfg.Database = &config.DatabaseConfig{DBType: "sqlite", File: dbPath}
	cfg.Sources = []config.SourceConfig{
		{Name: "capitals", Kind: "csv", Path: csvPath},
		{Name: "states", Kind: "database", Table: "states"},
	}
	require.NoError(t, cfg.Validate())

	ctx := context.Background()
	s, closeFn, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, closeFn()) }()

	require.NotNil(t, s.Database())
	require.Equal(t, []string{"capitals", "states"}, s.Registry().Names())
	require.True(t, s.TableBuilder().Meta().Crawl)

	states, err := s.Registry().Scan(ctx, "states")
	require.NoError(t, err)
	require.Equal(t, 2, states.NumRows())
	require.Equal(t, "name string, population int", states.Schema().String())
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.OpenAIAPIKey, "")

	cfg := config.Default()
	cfg.CredentialsFile = filepath.Join(dir, "credentials.yaml")
	_, _, err := Open(context.Background(), cfg)
	require.ErrorContains(t, err, "API key is required")

	cfg.LLM.Provider = "ollama"
	cfg.Sources = []config.SourceConfig{{Name: "missing", Kind: "csv", Path: filepath.Join(dir, "missing.csv")}}
	_, _, err = Open(context.Background(), cfg)
	require.Error(t, err)
}
