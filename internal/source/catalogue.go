package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"db-ferry/internal/schema"
)

// catalogue is the subset of the OpenAPI document the source serves at its root.
type catalogue struct {
	Definitions map[string]definition `json:"definitions"`
}

type definition struct {
	Required   []string        `json:"required"`
	Properties json.RawMessage `json:"properties"`
}

type property struct {
	Type        string   `json:"type"`
	Format      string   `json:"format"`
	Description string   `json:"description"`
	MaxLength   int      `json:"maxLength"`
	Enum        []string `json:"enum"`
	Default     any      `json:"default"`
}

// ListTables returns the tables published in the catalogue, sorted by name.
func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	cat, err := c.loadCatalogue(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(cat.Definitions)), nil
}

// Describe builds a TableSpec from the declared catalogue. A table missing
// from the catalogue yields an empty spec and no error.
func (c *Client) Describe(ctx context.Context, table string) (*schema.TableSpec, error) {
	cat, err := c.loadCatalogue(ctx)
	if err != nil {
		return nil, err
	}
	def, ok := cat.Definitions[table]
	if !ok {
		return &schema.TableSpec{Name: table}, nil
	}
	return def.spec(table)
}

func (c *Client) loadCatalogue(ctx context.Context) (*catalogue, error) {
	c.mu.Lock()
	cached := c.catalog
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	resp, err := c.do(ctx, http.MethodGet, c.base.String()+"/", map[string]string{"Accept": "application/openapi+json, application/json"})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	cat := &catalogue{}
	if err := json.NewDecoder(resp.Body).Decode(cat); err != nil {
		return nil, fmt.Errorf("decode catalogue: %w", err)
	}
	if len(cat.Definitions) == 0 {
		return nil, fmt.Errorf("catalogue has no table definitions")
	}

	c.mu.Lock()
	c.catalog = cat
	c.mu.Unlock()
	return cat, nil
}

func (d definition) spec(table string) (*schema.TableSpec, error) {
	spec := &schema.TableSpec{Name: table}
	if len(d.Properties) == 0 {
		return spec, nil
	}

	// Property order is column order, so the object is walked token by token.
	dec := json.NewDecoder(bytes.NewReader(d.Properties))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("definition %s: %w", table, err)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := tok.(string)
		var p property
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("definition %s.%s: %w", table, name, err)
		}
		col := p.column(name)
		col.Nullable = !slices.Contains(d.Required, name)
		if col.PrimaryKey {
			col.Nullable = false
			spec.PrimaryKey = append(spec.PrimaryKey, name)
		}
		spec.Columns = append(spec.Columns, col)
	}
	return spec, nil
}

func (p property) column(name string) schema.ColumnSpec {
	col := schema.ColumnSpec{
		Name:       name,
		PrimaryKey: strings.Contains(p.Description, "<pk/>"),
		Default:    defaultString(p.Default),
	}

	switch {
	case len(p.Enum) > 0:
		col.Declared = "USER-DEFINED"
		col.Type = schema.TypeShortText
	case p.Type == "array" || strings.HasSuffix(p.Format, "[]"):
		col.Declared = p.Format
		col.Type = schema.TypeJSON
	case p.Format != "" && !strings.Contains(p.Format, "."):
		col.Declared = p.Format
		if p.MaxLength > 0 && (p.Format == "character varying" || p.Format == "character") {
			col.Declared = fmt.Sprintf("%s(%d)", p.Format, p.MaxLength)
		}
		col.Type = schema.TypeOfDeclared(p.Format)
	default:
		col.Type = jsonSchemaType(p.Type)
	}
	return col
}

func jsonSchemaType(t string) schema.Type {
	switch t {
	case "boolean":
		return schema.TypeBoolean
	case "integer":
		return schema.TypeInteger
	case "number":
		return schema.TypeDecimal
	case "string":
		return schema.TypeShortText
	case "array", "object":
		return schema.TypeJSON
	}
	return schema.TypeUnknown
}

func defaultString(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case string:
		return d
	case bool:
		if d {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(d)
	}
}
