// Package testfile loads natural-language test suites from YAML or JSON files.
package testfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"cbrowser/internal/logging"
	"cbrowser/internal/step"
)

// maxConcurrentLoads bounds LoadFiles.
const maxConcurrentLoads = 4

// File is the on-disk suite format. A file either lists Tests or, for a
// single test, carries Steps at the top level.
type File struct {
	Name        string     `json:"name,omitempty" yaml:"name,omitempty" jsonschema:"description=Suite name; defaults to the file name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []string   `json:"steps,omitempty" yaml:"steps,omitempty" jsonschema:"description=Instructions of a single-test file"`
	Tests       []TestSpec `json:"tests,omitempty" yaml:"tests,omitempty"`
}

// TestSpec is one test inside a suite file.
type TestSpec struct {
	Name        string   `json:"name,omitempty" yaml:"name,omitempty" jsonschema:"description=Test name; defaults to <file>#<n>"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []string `json:"steps" yaml:"steps" jsonschema:"required,minItems=1,description=One natural-language instruction per entry"`
}

// Suite is a parsed suite file.
type Suite struct {
	Name  string          `json:"name"`
	Path  string          `json:"path,omitempty"`
	Tests []step.TestCase `json:"tests"`
}

// LoadFile reads a suite file (YAML or JSON) and parses every step.
// Format is detected by extension (.yaml/.yml → YAML, .json → JSON) or by
// content (first non-whitespace char).
func LoadFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load suite %s: %w", path, err)
	}
	s, err := Load(data, filepath.Ext(path), strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("load suite %s: %w", path, err)
	}
	s.Path = path
	logging.New("testfile").Debug("suite loaded", "path", path, "tests", len(s.Tests))
	return s, nil
}

// Load parses a suite from bytes. ext is the file extension used as a format
// hint (empty = detect from content); source names the suite when the file
// does not.
func Load(data []byte, ext, source string) (*Suite, error) {
	f, err := decode(data, ext)
	if err != nil {
		return nil, err
	}
	return f.build(source)
}

// LoadFiles loads several files concurrently. Results keep the order of
// paths; the first error cancels the remaining loads.
func LoadFiles(ctx context.Context, paths []string) ([]*Suite, error) {
	suites := make([]*Suite, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := LoadFile(p)
			if err != nil {
				return err
			}
			suites[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return suites, nil
}

// Tests flattens the tests of every suite in order.
func Tests(suites []*Suite) []step.TestCase {
	var out []step.TestCase
	for _, s := range suites {
		out = append(out, s.Tests...)
	}
	return out
}

// SuiteName names a run over suites: the single suite's name, or a joined
// list when several files were given.
func SuiteName(suites []*Suite) string {
	names := make([]string, len(suites))
	for i, s := range suites {
		names[i] = s.Name
	}
	return strings.Join(names, "+")
}

// Schema returns the JSON schema of the suite file format.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	schema := r.Reflect(&File{})
	schema.Title = "cbrowser test suite"
	return json.MarshalIndent(schema, "", "  ")
}

func decode(data []byte, ext string) (*File, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" {
		// JSON when the document starts with {, else YAML.
		if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
			ext = ".json"
		} else {
			ext = ".yaml"
		}
	}

	var f File
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse suite json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse suite yaml: %w", err)
		}
	}
	return &f, nil
}

func (f *File) build(source string) (*Suite, error) {
	name := f.Name
	if name == "" {
		name = source
	}
	specs := f.Tests
	switch {
	case len(f.Steps) > 0 && len(f.Tests) > 0:
		return nil, errors.New("suite has both top-level steps and tests")
	case len(f.Steps) > 0:
		specs = []TestSpec{{Name: name, Description: f.Description, Steps: f.Steps}}
	case len(f.Tests) == 0:
		return nil, errors.New("suite has no tests")
	}

	s := &Suite{Name: name, Tests: make([]step.TestCase, 0, len(specs))}
	for i, spec := range specs {
		tc := step.TestCase{Name: spec.Name, Description: spec.Description}
		if tc.Name == "" {
			tc.Name = fmt.Sprintf("%s#%d", source, i+1)
		}
		for _, line := range spec.Steps {
			if strings.TrimSpace(line) == "" {
				continue
			}
			tc.Steps = append(tc.Steps, step.Parse(line))
		}
		if len(tc.Steps) == 0 {
			return nil, fmt.Errorf("test %q has no steps", tc.Name)
		}
		s.Tests = append(s.Tests, tc)
	}
	return s, nil
}
