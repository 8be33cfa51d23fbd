package commands

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

//go:embed all:templates
var templateFS embed.FS

// copyTemplate writes an embedded project template into targetDir.
// Existing files are kept unless force is set.
func copyTemplate(templateName, targetDir string, force bool) error {
	root := path.Join("templates", templateName)

	return fs.WalkDir(templateFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
		if rel == "" {
			return nil
		}
		target := filepath.Join(targetDir, filepath.FromSlash(dotfileName(rel)))

		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		if !force {
			if _, err := os.Stat(target); err == nil {
				return nil
			}
		}
		content, err := templateFS.ReadFile(p)
		if err != nil {
			return err
		}
		return os.WriteFile(target, content, 0o600)
	})
}

// dotfileName maps "gitignore" to ".gitignore".
func dotfileName(rel string) string {
	if path.Base(rel) == "gitignore" {
		return path.Join(path.Dir(rel), ".gitignore")
	}
	return rel
}

// listTemplateFiles returns the slash-separated paths a template creates.
func listTemplateFiles(templateName string) ([]string, error) {
	var files []string
	root := path.Join("templates", templateName)

	err := fs.WalkDir(templateFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, dotfileName(strings.TrimPrefix(p, root+"/")))
		}
		return nil
	})
	return files, err
}
