// -----------------------------------------------------------------------
// Template Instantiation - Manifest entry binding a template to a context
// -----------------------------------------------------------------------

package models

// TemplateSuffix is the suffix marking renderable templates. A template is
// named "<base>.<suffix>.tmpl" and renders to "<base>.<suffix>" inside the
// generated tree.
const TemplateSuffix = ".tmpl"

// TemplateSpec is one manifest [[templates]] entry: which template file to
// instantiate and with what data. A template file without a spec renders
// once with an empty context; a file with several specs renders once per
// spec, and each must rename the output to avoid colliding.
type TemplateSpec struct {
	File    string                 `toml:"file" json:"file" validate:"required"` // Template file name inside the templates tree
	Context string                 `toml:"context" json:"context,omitempty"`     // Optional YAML context file path
	Params  map[string]interface{} `toml:"params" json:"params,omitempty"`       // Inline parameters, override context file values
	Rename  string                 `toml:"rename" json:"rename,omitempty"`       // Optional output name override, may reference {param}
}

// TemplateContext is the flat parameter mapping supplied to one template
// invocation. Template plus context is a pure function: identical inputs
// must yield byte-identical output.
type TemplateContext map[string]interface{}

// Merge returns a new context with overrides layered on top of the base.
func (c TemplateContext) Merge(overrides map[string]interface{}) TemplateContext {
	merged := make(TemplateContext, len(c)+len(overrides))
	for k, v := range c {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
