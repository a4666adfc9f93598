package handlers

import (
	"github.com/melkeydev/mcp-tablegen/schema"
	"github.com/melkeydev/mcp-tablegen/types"
)

func columns(attrs []schema.Attribute) []types.Column {
	out := make([]types.Column, len(attrs))
	for i, a := range attrs {
		out[i] = types.Column{Name: a.Name, Type: string(a.Type), Nullable: true}
	}
	return out
}
