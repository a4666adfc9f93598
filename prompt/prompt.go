// Package prompt renders the prompts sent to the language model.
package prompt

import (
	"embed"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/cockroachdb/errors"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(
	template.New("").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/*.tmpl"),
)

// Table is the input of the table generation prompt.
type Table struct {
	Description string
	Columns     []string
	// Data is rendered verbatim as the source material of the table.
	Data string
	// Layout is "row" or "column".
	Layout string
}

// RenderTable renders the prompt asking the model for the table rows.
func RenderTable(t Table) (string, error) {
	if t.Layout == "" {
		t.Layout = "row"
	}
	row := make([]string, len(t.Columns))
	cols := make(map[string][]string, len(t.Columns))
	for i, c := range t.Columns {
		row[i] = "<" + c + ">"
		cols[c] = []string{"<" + c + " 1>", "<" + c + " 2>"}
	}
	rowExample, err := marshal(row)
	if err != nil {
		return "", err
	}
	colExample, err := marshal(cols)
	if err != nil {
		return "", err
	}
	return render("table.tmpl", struct {
		Table
		RowExample    string
		ColumnExample string
	}{t, rowExample, colExample})
}

// SearchQueries is the input of the prompt asking for search engine queries.
type SearchQueries struct {
	Description string
	Columns     []string
	Data        string
}

func RenderSearchQueries(q SearchQueries) (string, error) {
	return render("search_queries.tmpl", q)
}

// Plan is the input of the prompt asking the model to pick operators.
type Plan struct {
	Description string
	Columns     []string
	BaseColumns []string
	Tables      []string
	Operators   []string
}

func RenderPlan(p Plan) (string, error) {
	return render("plan.tmpl", p)
}

// marshal encodes v without escaping the angle brackets of placeholders.
func marshal(v any) (string, error) {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSpace(sb.String()), nil
}

func render(name string, data any) (string, error) {
	var sb strings.Builder
	if err := templates.ExecuteTemplate(&sb, name, data); err != nil {
		return "", errors.Wrapf(err, "rendering %s", name)
	}
	return sb.String(), nil
}
