package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/fabrica/internal/common"
	"github.com/ternarybob/fabrica/internal/models"
)

func testService(t *testing.T) (*Service, *common.Config) {
	t.Helper()
	root := t.TempDir()
	config := common.NewDefaultConfig()
	config.Directories.Source = filepath.Join(root, "src")
	config.Directories.Generated = filepath.Join(root, "target", "generated")
	config.Directories.Templates = filepath.Join(root, "templates")
	config.Directories.Build = filepath.Join(root, "target", "build")
	return NewService(config, nil), config
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func names(files []models.SourceFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Name)
	}
	return out
}

func TestWritten_SortedAndFiltered(t *testing.T) {
	service, config := testService(t)
	touch(t, filepath.Join(config.Directories.Source, "util.s"))
	touch(t, filepath.Join(config.Directories.Source, "main.c"))
	touch(t, filepath.Join(config.Directories.Source, ".main.c.swp"))
	touch(t, filepath.Join(config.Directories.Source, "Makefile"))
	touch(t, filepath.Join(config.Directories.Source, "stray.c.tmpl"))

	files, err := service.Written()
	require.NoError(t, err)

	assert.Equal(t, []string{"main.c", "util.s"}, names(files))
	for _, f := range files {
		assert.Equal(t, models.OriginWritten, f.Origin)
	}
}

func TestWritten_WalksSubdirectories(t *testing.T) {
	service, config := testService(t)
	touch(t, filepath.Join(config.Directories.Source, "audio", "sfx.s"))
	touch(t, filepath.Join(config.Directories.Source, "main.c"))
	touch(t, filepath.Join(config.Directories.Source, ".git", "blob.c"))

	files, err := service.Written()
	require.NoError(t, err)
	assert.Equal(t, []string{"sfx.s", "main.c"}, names(files))
}

func TestWritten_MissingTreeIsEmpty(t *testing.T) {
	service, _ := testService(t)

	files, err := service.Written()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestWritten_UnknownSuffixStillDiscovered(t *testing.T) {
	service, config := testService(t)
	touch(t, filepath.Join(config.Directories.Source, "music.wav"))

	// Discovery admits the file; rejecting unclaimed suffixes is the graph
	// builder's job, reported once per file.
	files, err := service.Written()
	require.NoError(t, err)
	assert.Equal(t, []string{"music.wav"}, names(files))
}

func TestGenerated_ExcludesOrphans(t *testing.T) {
	service, config := testService(t)
	touch(t, filepath.Join(config.Directories.Generated, "palette.c"))
	touch(t, filepath.Join(config.Directories.Generated, "old_table.c"))

	files, err := service.Generated(map[string]bool{"palette.c": true})
	require.NoError(t, err)

	assert.Equal(t, []string{"palette.c"}, names(files))
	assert.Equal(t, models.OriginGenerated, files[0].Origin)
}

func TestGenerated_MissingTreeIsEmpty(t *testing.T) {
	service, _ := testService(t)

	files, err := service.Generated(nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestTemplates_SortedTmplOnly(t *testing.T) {
	service, config := testService(t)
	touch(t, filepath.Join(config.Directories.Templates, "sprites.s.tmpl"))
	touch(t, filepath.Join(config.Directories.Templates, "palette.c.tmpl"))
	touch(t, filepath.Join(config.Directories.Templates, "notes.md"))

	paths, err := service.Templates()
	require.NoError(t, err)

	require.Len(t, paths, 2)
	assert.Equal(t, "palette.c.tmpl", filepath.Base(paths[0]))
	assert.Equal(t, "sprites.s.tmpl", filepath.Base(paths[1]))
}

func TestTemplates_MissingTreeIsEmpty(t *testing.T) {
	service, _ := testService(t)

	paths, err := service.Templates()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestValidateLayout_Disjoint(t *testing.T) {
	service, _ := testService(t)
	assert.NoError(t, service.ValidateLayout())
}

func TestValidateLayout_GeneratedInsideSource(t *testing.T) {
	service, config := testService(t)
	config.Directories.Generated = filepath.Join(config.Directories.Source, "generated")

	err := service.ValidateLayout()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlaps")
}

func TestValidateLayout_SameDirectory(t *testing.T) {
	service, config := testService(t)
	config.Directories.Build = config.Directories.Source

	err := service.ValidateLayout()
	require.Error(t, err)
}

func TestValidateLayout_SiblingPrefixIsNotOverlap(t *testing.T) {
	service, config := testService(t)
	// "src-extra" shares a name prefix with "src" but is a sibling tree
	config.Directories.Build = config.Directories.Source + "-extra"

	assert.NoError(t, service.ValidateLayout())
}
