package schema

import (
	"strings"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/cockroachdb/errors"
)

// Type is the primitive type of an attribute.
type Type string

const (
	String Type = "string"
	Int    Type = "int"
	Float  Type = "float"
	Bool   Type = "bool"
)

var typeAliases = map[string]Type{
	"string":  String,
	"str":     String,
	"text":    String,
	"varchar": String,
	"int":     Int,
	"integer": Int,
	"int64":   Int,
	"bigint":  Int,
	"float":   Float,
	"float64": Float,
	"double":  Float,
	"real":    Float,
	"number":  Float,
	"bool":    Bool,
	"boolean": Bool,
}

// ParseType resolves a type name, accepting the common SQL and Python spellings.
func ParseType(s string) (Type, error) {
	t, ok := typeAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", errors.Newf("unsupported attribute type %q", s)
	}
	return t, nil
}

type Attribute struct {
	Name string `json:"name" yaml:"name"`
	Type Type   `json:"type" yaml:"type"`
}

// Schema is an ordered list of uniquely named attributes. Order matters: row
// layout responses are positional.
type Schema struct {
	attrs []Attribute
}

// New builds a schema from an explicit attribute list.
func New(attrs ...Attribute) (Schema, error) {
	seen := make(map[string]struct{}, len(attrs))
	out := make([]Attribute, 0, len(attrs))
	for _, a := range attrs {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return Schema{}, errors.New("attribute name must not be empty")
		}
		if _, dup := seen[name]; dup {
			return Schema{}, errors.Newf("duplicate attribute %q", name)
		}
		if _, ok := typeAliases[string(a.Type)]; !ok {
			return Schema{}, errors.Newf("attribute %q has unsupported type %q", name, a.Type)
		}
		seen[name] = struct{}{}
		out = append(out, Attribute{Name: name, Type: typeAliases[string(a.Type)]})
	}
	return Schema{attrs: out}, nil
}

// MustNew is New for statically known schemas; it panics on error.
func MustNew(attrs ...Attribute) Schema {
	s, err := New(attrs...)
	if err != nil {
		panic(err)
	}
	return s
}

// FromString parses a comma separated spec such as "name string, capital str".
// An attribute without a type is a string.
func FromString(spec string) (Schema, error) {
	var attrs []Attribute
	for _, part := range strings.Split(spec, ",") {
		fields := strings.Fields(part)
		switch len(fields) {
		case 0:
			continue
		case 1:
			attrs = append(attrs, Attribute{Name: fields[0], Type: String})
		case 2:
			t, err := ParseType(fields[1])
			if err != nil {
				return Schema{}, errors.Wrapf(err, "attribute %q", fields[0])
			}
			attrs = append(attrs, Attribute{Name: fields[0], Type: t})
		default:
			return Schema{}, errors.Newf("cannot parse attribute %q", strings.TrimSpace(part))
		}
	}
	if len(attrs) == 0 {
		return Schema{}, errors.New("schema must declare at least one attribute")
	}
	return New(attrs...)
}

func (s Schema) Len() int { return len(s.attrs) }

func (s Schema) Empty() bool { return len(s.attrs) == 0 }

// Attributes returns a copy of the attribute list.
func (s Schema) Attributes() []Attribute {
	return append([]Attribute(nil), s.attrs...)
}

func (s Schema) Attribute(i int) Attribute { return s.attrs[i] }

func (s Schema) Names() []string {
	names := make([]string, len(s.attrs))
	for i, a := range s.attrs {
		names[i] = a.Name
	}
	return names
}

// Index returns the position of the named attribute, or -1.
func (s Schema) Index(name string) int {
	for i, a := range s.attrs {
		if a.Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) Lookup(name string) (Attribute, bool) {
	if i := s.Index(name); i >= 0 {
		return s.attrs[i], true
	}
	return Attribute{}, false
}

// Equal reports whether both schemas have the same attributes in the same order.
func (s Schema) Equal(o Schema) bool {
	if len(s.attrs) != len(o.attrs) {
		return false
	}
	for i := range s.attrs {
		if s.attrs[i] != o.attrs[i] {
			return false
		}
	}
	return true
}

// SameNames reports whether both schemas declare the same set of names,
// regardless of order and type.
func (s Schema) SameNames(names []string) bool {
	if len(names) != len(s.attrs) {
		return false
	}
	for _, n := range names {
		if s.Index(n) < 0 {
			return false
		}
	}
	return true
}

// Select returns the sub-schema with the given names, in the given order.
func (s Schema) Select(names ...string) (Schema, error) {
	out := make([]Attribute, 0, len(names))
	for _, n := range names {
		a, ok := s.Lookup(n)
		if !ok {
			return Schema{}, errors.Newf("column %q not found in schema %s", n, s)
		}
		out = append(out, a)
	}
	return New(out...)
}

// String renders the schema back into FromString syntax.
func (s Schema) String() string {
	parts := make([]string, len(s.attrs))
	for i, a := range s.attrs {
		parts[i] = a.Name + " " + string(a.Type)
	}
	return strings.Join(parts, ", ")
}

// ToArrow converts the schema to an Arrow schema. Every field is nullable
// because generated values may be missing.
func (s Schema) ToArrow() *arrow.Schema {
	fields := make([]arrow.Field, len(s.attrs))
	for i, a := range s.attrs {
		fields[i] = arrow.Field{Name: a.Name, Type: a.Type.ArrowType(), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// FromArrow converts an Arrow schema, widening integer and floating point
// widths to Int and Float.
func FromArrow(as *arrow.Schema) (Schema, error) {
	attrs := make([]Attribute, 0, len(as.Fields()))
	for _, f := range as.Fields() {
		t, err := typeFromArrow(f.Type)
		if err != nil {
			return Schema{}, errors.Wrapf(err, "field %q", f.Name)
		}
		attrs = append(attrs, Attribute{Name: f.Name, Type: t})
	}
	return New(attrs...)
}

func (t Type) ArrowType() arrow.DataType {
	switch t {
	case Int:
		return arrow.PrimitiveTypes.Int64
	case Float:
		return arrow.PrimitiveTypes.Float64
	case Bool:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.BinaryTypes.String
	}
}

func typeFromArrow(dt arrow.DataType) (Type, error) {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return String, nil
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return Int, nil
	case arrow.FLOAT32, arrow.FLOAT64:
		return Float, nil
	case arrow.BOOL:
		return Bool, nil
	default:
		return "", errors.Newf("unsupported arrow type %s", dt)
	}
}
