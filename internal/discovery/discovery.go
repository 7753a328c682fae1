// -----------------------------------------------------------------------
// Source Discovery - Deterministic enumeration of buildable inputs
// -----------------------------------------------------------------------

package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabrica/internal/common"
	"github.com/ternarybob/fabrica/internal/models"
)

// Service walks the project trees and produces the discoverable source set.
// Results are sorted by path, so the graph assembled from them is
// reproducible across platforms and runs.
type Service struct {
	config *common.Config
	logger arbor.ILogger
}

// NewService creates a discovery service
func NewService(config *common.Config, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Service{
		config: config,
		logger: logger,
	}
}

// ValidateLayout rejects layouts where the source, generated, or build trees
// overlap. Overlapping trees would double-count files on discovery or let
// stage outputs shadow hand-written sources.
func (s *Service) ValidateLayout() error {
	trees := []struct {
		name string
		dir  string
	}{
		{"source", s.config.Directories.Source},
		{"generated", s.config.Directories.Generated},
		{"build", s.config.Directories.Build},
	}

	for i, a := range trees {
		for _, b := range trees[i+1:] {
			if treesOverlap(a.dir, b.dir) {
				return fmt.Errorf("%s directory %q overlaps %s directory %q", a.name, a.dir, b.name, b.dir)
			}
		}
	}
	return nil
}

// Written returns every hand-written source under the source tree
func (s *Service) Written() ([]models.SourceFile, error) {
	return s.walk(s.config.Directories.Source, models.OriginWritten, nil)
}

// Generated returns rendered sources under the generated tree. Files a prior
// run left behind that no current template produces are orphans: logged and
// excluded from the build, but never deleted.
func (s *Service) Generated(produced map[string]bool) ([]models.SourceFile, error) {
	return s.walk(s.config.Directories.Generated, models.OriginGenerated, produced)
}

// Templates returns the template file paths inside the templates tree, sorted
func (s *Service) Templates() ([]string, error) {
	root := s.config.Directories.Templates

	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		// Projects without templates build from written sources alone
		s.logger.Debug().Str("dir", root).Msg("No templates directory")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read templates directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("templates path %s is not a directory", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := entry.Name()
		if entry.IsDir() {
			if strings.HasPrefix(name, ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, models.TemplateSuffix) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking templates directory %s: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}

func (s *Service) walk(root string, origin models.SourceOrigin, produced map[string]bool) ([]models.SourceFile, error) {
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		s.logger.Debug().Str("dir", root).Str("origin", string(origin)).Msg("Tree absent, nothing to discover")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var files []models.SourceFile
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := entry.Name()
		if entry.IsDir() {
			if strings.HasPrefix(name, ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		suffix := models.SuffixOf(name)
		if suffix == "" || suffix == models.TemplateSuffix {
			// Suffix-less names and stray templates cannot route through
			// any stage
			s.logger.Debug().Str("file", path).Msg("Skipping non-source file")
			return nil
		}
		if produced != nil && !produced[name] {
			s.logger.Warn().Str("file", path).Msg("Orphaned generated file excluded, no current template produces it")
			return nil
		}

		files = append(files, models.NewSourceFile(path, origin))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	// WalkDir visits lexically already; the explicit sort keeps the contract
	// independent of walk internals.
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	s.logger.Debug().Str("dir", root).Int("files", len(files)).Msg("Discovered sources")
	return files, nil
}

// treesOverlap reports whether one directory contains the other or both name
// the same directory.
func treesOverlap(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return false
	}
	return containsPath(absA, absB) || containsPath(absB, absA)
}

func containsPath(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
