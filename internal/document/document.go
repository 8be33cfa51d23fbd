// Package document reads and writes declarative schema documents in YAML.
//
// A document is either a single file or a directory of *.yaml/*.yml files
// whose top-level schema sections are merged, so one schema can be split
// across several files.
package document

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapschema/pkg/dbobject"
)

const (
	schemaPrefix = "schema "
	domainPrefix = "domain "
	castPrefix   = "cast "
)

// ConflictError reports an object declared in more than one file.
type ConflictError struct {
	Key   string
	Files []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s is declared in both %s", e.Key, strings.Join(e.Files, " and "))
}

// Load reads a document from a file or a directory.
func Load(path string) (map[string]any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if !info.IsDir() {
		return loadFile(path)
	}
	return loadDir(path)
}

// LoadCatalog reads a document and builds a linked catalog from it.
// extraTypes lists type names, other than built-ins, that base types may
// refer to.
func LoadCatalog(path string, extraTypes []string) (*dbobject.TypeCatalog, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	c, err := Catalog(doc, extraTypes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Catalog builds a linked catalog from a loaded document.
func Catalog(doc map[string]any, extraTypes []string) (*dbobject.TypeCatalog, error) {
	c, err := dbobject.FromMap(doc)
	if err != nil {
		return nil, err
	}
	return c.LinkRefs(nil, extraTypes)
}

// Filter keeps the schema sections named in include, whether keyed
// "schema <name>" or by the bare name. Casts belong to no schema and are
// always kept. An empty include keeps everything. The qualified names of
// domains in dropped sections are returned so that kept domains and casts
// may still refer to them.
func Filter(doc map[string]any, include []string) (kept map[string]any, excluded []string) {
	if len(include) == 0 {
		return doc, nil
	}
	want := make(map[string]bool, len(include))
	for _, s := range include {
		want[s] = true
	}

	kept = make(map[string]any, len(doc))
	for _, key := range sortedKeys(doc) {
		schema := strings.TrimSpace(strings.TrimPrefix(key, schemaPrefix))
		if strings.HasPrefix(key, castPrefix) || want[schema] {
			kept[key] = doc[key]
			continue
		}
		section, _ := doc[key].(map[string]any)
		for _, objKey := range sortedKeys(section) {
			if name, isDomain := strings.CutPrefix(objKey, domainPrefix); isDomain {
				excluded = append(excluded, dbobject.TypeName(schema, strings.TrimSpace(name)))
			}
		}
	}
	return kept, excluded
}

// Decode parses one YAML document. An empty input is an empty document.
func Decode(r io.Reader) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// Encode writes doc as YAML with two-space indentation. Map keys come out
// sorted, so the same catalog always produces the same bytes.
func Encode(w io.Writer, doc map[string]any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return enc.Close()
}

// Write encodes doc to path, replacing any existing file.
func Write(path string, doc map[string]any) error {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

func loadFile(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	defer f.Close()

	doc, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, nil
}

func loadDir(dir string) (map[string]any, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(files)

	merged := map[string]any{}
	origin := map[string]string{} // "schema/object" -> file
	for _, path := range files {
		doc, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		if err := merge(merged, origin, doc, path); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// merge folds the schema sections of doc into dst. Schema sections may
// repeat across files; objects inside them, and casts, may not.
func merge(dst map[string]any, origin map[string]string, doc map[string]any, file string) error {
	for _, schemaKey := range sortedKeys(doc) {
		if strings.HasPrefix(schemaKey, castPrefix) {
			if prev, dup := origin[schemaKey]; dup {
				return &ConflictError{Key: schemaKey, Files: []string{prev, file}}
			}
			origin[schemaKey] = file
			dst[schemaKey] = doc[schemaKey]
			continue
		}

		section, ok := doc[schemaKey].(map[string]any)
		if !ok || section == nil {
			if _, exists := dst[schemaKey]; !exists {
				dst[schemaKey] = doc[schemaKey]
			}
			continue
		}

		target, ok := dst[schemaKey].(map[string]any)
		if !ok {
			target = map[string]any{}
			dst[schemaKey] = target
		}
		for _, objKey := range sortedKeys(section) {
			id := schemaKey + "/" + objKey
			if prev, dup := origin[id]; dup {
				return &ConflictError{Key: schemaKey + " " + objKey, Files: []string{prev, file}}
			}
			origin[id] = file
			target[objKey] = section[objKey]
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
