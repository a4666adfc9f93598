package types

type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Source describes one registered data source.
type Source struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Origin  string   `json:"origin"`
	Columns []Column `json:"columns"`
}

// GeneratedTable is the result of a table generation request.
type GeneratedTable struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Columns []Column         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Plan    string           `json:"plan"`
	Usage   Usage            `json:"usage"`
	Elapsed string           `json:"elapsed"`
}

type Usage struct {
	Calls        int64 `json:"calls"`
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}
