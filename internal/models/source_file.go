// -----------------------------------------------------------------------
// Source File - One discovered input to the build pipeline
// -----------------------------------------------------------------------

package models

import (
	"path/filepath"
	"strings"
)

// SourceOrigin identifies where a discovered source came from.
type SourceOrigin string

const (
	// OriginWritten marks a hand-written file under the source tree.
	OriginWritten SourceOrigin = "written"
	// OriginGenerated marks a file rendered from a template this run.
	OriginGenerated SourceOrigin = "generated"
)

// SourceFile is one discovered input to the pipeline. Immutable once
// discovered. Generated files persist on disk between runs but are fully
// regenerable and never hand-edited; they are recreated from their template
// each run before discovery admits them.
type SourceFile struct {
	Path   string       `json:"path"`   // Path on disk
	Name   string       `json:"name"`   // Base name, e.g. "main.c"
	Suffix string       `json:"suffix"` // Suffix including the dot, e.g. ".c"
	Origin SourceOrigin `json:"origin"` // written or generated
}

// NewSourceFile builds a SourceFile from a path, deriving name and suffix.
func NewSourceFile(path string, origin SourceOrigin) SourceFile {
	name := filepath.Base(path)
	return SourceFile{
		Path:   path,
		Name:   name,
		Suffix: SuffixOf(name),
		Origin: origin,
	}
}

// SuffixOf returns the trailing suffix of a file name including the dot,
// or "" when the name has none. "player.c" -> ".c".
func SuffixOf(name string) string {
	ext := filepath.Ext(name)
	if ext == name {
		// Dotfile like ".gitignore" has no meaningful suffix here.
		return ""
	}
	return ext
}

// BaseName returns the file name with its suffix removed.
// "player.c" -> "player".
func BaseName(name string) string {
	return strings.TrimSuffix(name, SuffixOf(name))
}
