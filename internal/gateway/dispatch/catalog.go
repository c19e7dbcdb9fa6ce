package dispatch

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/latticehq/lattice/internal/common/apperrors"
	"github.com/latticehq/lattice/pkg/api"
)

//go:embed catalog.yaml
var catalogManifest []byte

// toolSpec is one tool entry in the manifest.
type toolSpec struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Effect      api.Effect     `yaml:"effect"`
	Resource    string         `yaml:"resource"`
	InputSchema map[string]any `yaml:"input_schema"`
}

// resourceSpec is one resource entry in the manifest.
type resourceSpec struct {
	ID       string `yaml:"id"`
	MimeType string `yaml:"mime_type"`
}

type manifest struct {
	Tools     []toolSpec     `yaml:"tools"`
	Resources []resourceSpec `yaml:"resources"`
}

// Tool is a catalog entry with its compiled argument schema.
type Tool struct {
	Info     api.ToolInfo
	Resource *api.ResourceMeta
	schema   *jsonschema.Schema
}

// Catalog is the fixed set of tools the gateway exposes. It is built once
// at startup from the embedded manifest and never changes afterwards.
type Catalog struct {
	tools     []*Tool
	index     map[string]*Tool
	resources []*api.ResourceMeta
}

// loadCatalog parses the embedded manifest and compiles every input schema.
// A descriptor without a registered handler, or a handler without a
// descriptor, fails the build.
func loadCatalog(handlers map[string]handlerFunc) (*Catalog, apperrors.Error) {
	var m manifest
	if err := yaml.Unmarshal(catalogManifest, &m); err != nil {
		return nil, ErrCatalogInvalid.MsgErr("manifest parse failed", err)
	}

	resources := make(map[string]*api.ResourceMeta, len(m.Resources))
	c := &Catalog{index: make(map[string]*Tool, len(m.Tools))}
	for _, r := range m.Resources {
		meta := &api.ResourceMeta{
			ID:       r.ID,
			URI:      "/" + r.ID + ".html",
			MimeType: r.MimeType,
		}
		resources[r.ID] = meta
		c.resources = append(c.resources, meta)
	}
	for _, spec := range m.Tools {
		if _, ok := handlers[spec.Name]; !ok {
			return nil, ErrCatalogInvalid.Msg(fmt.Sprintf("tool %q has no handler", spec.Name))
		}
		if _, dup := c.index[spec.Name]; dup {
			return nil, ErrCatalogInvalid.Msg(fmt.Sprintf("duplicate tool %q", spec.Name))
		}

		schemaJSON, err := json.Marshal(spec.InputSchema)
		if err != nil {
			return nil, ErrCatalogInvalid.MsgErr(fmt.Sprintf("tool %q schema", spec.Name), err)
		}
		compiled, err := compileSchema(string(schemaJSON))
		if err != nil {
			return nil, ErrCatalogInvalid.MsgErr(fmt.Sprintf("tool %q schema", spec.Name), err)
		}

		var resource *api.ResourceMeta
		if spec.Resource != "" {
			r, ok := resources[spec.Resource]
			if !ok {
				return nil, ErrCatalogInvalid.Msg(fmt.Sprintf("tool %q binds unknown resource %q", spec.Name, spec.Resource))
			}
			resource = r
		}

		tool := &Tool{
			Info: api.ToolInfo{
				Name:        spec.Name,
				Description: spec.Description,
				InputSchema: schemaJSON,
				Effect:      spec.Effect,
			},
			Resource: resource,
			schema:   compiled,
		}
		if resource != nil {
			tool.Info.ResourceID = resource.ID
		}
		c.tools = append(c.tools, tool)
		c.index[spec.Name] = tool
	}

	for name := range handlers {
		if _, ok := c.index[name]; !ok {
			return nil, ErrCatalogInvalid.Msg(fmt.Sprintf("handler %q has no catalog entry", name))
		}
	}
	return c, nil
}

// Tools returns all catalog entries in manifest order.
func (c *Catalog) Tools() []*Tool {
	return c.tools
}

// Get looks up a tool by name.
func (c *Catalog) Get(name string) (*Tool, bool) {
	t, ok := c.index[name]
	return t, ok
}

// Resources returns the resource descriptors the catalog binds.
func (c *Catalog) Resources() []*api.ResourceMeta {
	return c.resources
}

// Validate checks call arguments against the tool's compiled schema.
func (t *Tool) Validate(args map[string]any) apperrors.Error {
	if err := t.schema.Validate(anyMap(args)); err != nil {
		return ErrValidation.MsgErr("arguments do not match tool schema", err)
	}
	return nil
}

// anyMap normalizes a nil argument map to an empty object.
func anyMap(args map[string]any) any {
	if args == nil {
		return map[string]any{}
	}
	return args
}

// compileSchema compiles a JSON schema string into a jsonschema.Schema.
// It validates the schema is valid JSON and handles self-referential schemas.
func compileSchema(schema string) (*jsonschema.Schema, error) {
	if !gjson.Valid(schema) {
		return nil, fmt.Errorf("invalid JSON schema")
	}

	compiler := jsonschema.NewCompiler()
	// Allow schemas with $id to refer to themselves
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		if url == "inline://schema" {
			return io.NopCloser(bytes.NewReader([]byte(schema))), nil
		}
		return nil, fmt.Errorf("unsupported schema ref: %s", url)
	}
	if err := compiler.AddResource("inline://schema", bytes.NewReader([]byte(schema))); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	compiledSchema, err := compiler.Compile("inline://schema")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return compiledSchema, nil
}
