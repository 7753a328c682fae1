// -----------------------------------------------------------------------
// Template Renderer - Instantiates templates into the generated tree
// -----------------------------------------------------------------------

package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/fabrica/internal/common"
	"github.com/ternarybob/fabrica/internal/models"
)

// Renderer turns template files plus manifest contexts into generated
// sources. A template named "<base>.<suffix>.tmpl" renders to
// "<base>.<suffix>" inside the generated tree, unless a [[templates]] entry
// renames it. Rendering writes to the generated tree only and refuses any
// output name already taken by a hand-written source.
type Renderer struct {
	config *common.Config
	logger arbor.ILogger
}

// New creates a renderer
func New(config *common.Config, logger arbor.ILogger) *Renderer {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Renderer{
		config: config,
		logger: logger,
	}
}

// RenderAll instantiates every discovered template and returns the produced
// sources. A template without a [[templates]] entry renders once with an
// empty context; a template with several entries renders once per entry, and
// each entry must rename its output. All failures are TemplateErrors raised
// before the build graph is constructed.
func (r *Renderer) RenderAll(templatePaths []string, written []models.SourceFile) ([]models.SourceFile, error) {
	writtenPaths := make(map[string]string, len(written))
	for _, f := range written {
		writtenPaths[f.Name] = f.Path
	}

	specsByFile := make(map[string][]models.TemplateSpec)
	for _, spec := range r.config.Templates {
		specsByFile[spec.File] = append(specsByFile[spec.File], spec)
	}

	if len(templatePaths) > 0 {
		if err := os.MkdirAll(r.config.Directories.Generated, 0755); err != nil {
			return nil, fmt.Errorf("cannot create generated directory: %w", err)
		}
	}

	var produced []models.SourceFile
	producedBy := make(map[string]string) // output name -> template that claimed it
	seen := make(map[string]bool)

	for _, path := range templatePaths {
		base := filepath.Base(path)
		seen[base] = true

		tmpl, err := r.parse(path)
		if err != nil {
			return nil, err
		}

		specs := specsByFile[base]
		if len(specs) == 0 {
			specs = []models.TemplateSpec{{File: base}}
		}

		multiple := len(specs) > 1
		for _, spec := range specs {
			if multiple && spec.Rename == "" {
				return nil, &models.TemplateError{
					Template: base,
					Reason:   "multiple instantiations of one template each need a rename",
				}
			}

			output, err := r.renderOne(tmpl, base, spec, writtenPaths, producedBy)
			if err != nil {
				return nil, err
			}
			producedBy[output.Name] = base
			produced = append(produced, output)
		}
	}

	// A [[templates]] entry naming a file the templates tree does not hold
	// is a manifest error, not a silent no-op.
	for _, spec := range r.config.Templates {
		if !seen[spec.File] {
			return nil, &models.TemplateError{
				Template: spec.File,
				Reason:   "template file not found in templates directory",
			}
		}
	}

	return produced, nil
}

func (r *Renderer) renderOne(tmpl *template.Template, base string, spec models.TemplateSpec, writtenPaths, producedBy map[string]string) (models.SourceFile, error) {
	context, err := r.contextFor(base, spec)
	if err != nil {
		return models.SourceFile{}, err
	}

	outputName, err := r.outputName(base, spec, context)
	if err != nil {
		return models.SourceFile{}, err
	}

	// Collision checks happen before execution, so no file is touched on the
	// failure path
	if writtenPath, ok := writtenPaths[outputName]; ok {
		return models.SourceFile{}, &models.TemplateError{
			Template: base,
			Output:   outputName,
			Reason:   fmt.Sprintf("output collides with hand-written source %s", writtenPath),
		}
	}
	if other, ok := producedBy[outputName]; ok {
		return models.SourceFile{}, &models.TemplateError{
			Template: base,
			Output:   outputName,
			Reason:   fmt.Sprintf("output already produced by template %s", other),
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]interface{}(context)); err != nil {
		return models.SourceFile{}, &models.TemplateError{
			Template: base,
			Output:   outputName,
			Reason:   "execution failed",
			Err:      err,
		}
	}

	outputPath := filepath.Join(r.config.Directories.Generated, outputName)
	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return models.SourceFile{}, &models.TemplateError{
			Template: base,
			Output:   outputName,
			Reason:   "cannot write output",
			Err:      err,
		}
	}

	r.logger.Info().
		Str("template", base).
		Str("output", outputName).
		Int("bytes", buf.Len()).
		Msg("Rendered template")

	return models.NewSourceFile(outputPath, models.OriginGenerated), nil
}

func (r *Renderer) parse(path string) (*template.Template, error) {
	base := filepath.Base(path)

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &models.TemplateError{Template: base, Reason: "cannot read template", Err: err}
	}

	tmpl, err := template.New(base).Option("missingkey=error").Funcs(Funcs()).Parse(string(content))
	if err != nil {
		return nil, &models.TemplateError{Template: base, Reason: "parse failed", Err: err}
	}
	return tmpl, nil
}

// contextFor loads the manifest entry's YAML context file, when any, and
// layers the inline params over it
func (r *Renderer) contextFor(base string, spec models.TemplateSpec) (models.TemplateContext, error) {
	context := models.TemplateContext{}

	if spec.Context != "" {
		loaded, err := loadContextFile(spec.Context)
		if err != nil {
			return nil, &models.TemplateError{
				Template: base,
				Reason:   fmt.Sprintf("cannot load context %s", spec.Context),
				Err:      err,
			}
		}
		context = loaded
	}

	if len(spec.Params) > 0 {
		context = context.Merge(spec.Params)
	}
	return context, nil
}

// outputName resolves where a rendered template lands. The default strips
// the template suffix; a rename may reference {param} placeholders against
// the context's scalar values. The result must stay a bare file name so
// rendering cannot escape the generated tree.
func (r *Renderer) outputName(base string, spec models.TemplateSpec, context models.TemplateContext) (string, error) {
	name := strings.TrimSuffix(base, models.TemplateSuffix)

	if spec.Rename != "" {
		expanded, err := common.ExpandString(spec.Rename, scalarStrings(context))
		if err != nil {
			return "", &models.TemplateError{
				Template: base,
				Output:   spec.Rename,
				Reason:   "cannot expand rename",
				Err:      err,
			}
		}
		name = expanded
	}

	if name == "" || name != filepath.Base(name) {
		return "", &models.TemplateError{
			Template: base,
			Output:   name,
			Reason:   "output must be a bare file name",
		}
	}
	return name, nil
}

func loadContextFile(path string) (models.TemplateContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	context := models.TemplateContext{}
	if err := yaml.Unmarshal(data, &context); err != nil {
		return nil, err
	}
	return context, nil
}

// scalarStrings extracts the context entries usable inside a rename pattern
func scalarStrings(context models.TemplateContext) map[string]string {
	scalars := make(map[string]string, len(context))
	for key, value := range context {
		switch value.(type) {
		case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			scalars[key] = fmt.Sprintf("%v", value)
		}
	}
	return scalars
}
