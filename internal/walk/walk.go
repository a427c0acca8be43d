// Package walk expands `add`'s directory arguments into a flat list of
// C source files, honoring .gitignore the way the teacher's directory
// scan does, before handing the list to the frontend.
package walk

import (
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Expand turns args (a mix of file and directory paths) into a flat list
// of .c/.h files. A file argument passes through unchanged; a directory
// argument is walked recursively, skipping anything matched by a
// .gitignore found at its root plus the usual VCS/build directories.
func Expand(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}

		gi := loadGitignore(arg)
		err = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			rel, relErr := filepath.Rel(arg, path)
			if relErr != nil {
				return relErr
			}

			if info.IsDir() {
				name := info.Name()
				if name == ".git" || name == ".svn" || name == "build" {
					return filepath.SkipDir
				}
				if gi != nil && gi.MatchesPath(rel+"/") {
					return filepath.SkipDir
				}
				return nil
			}

			if gi != nil && gi.MatchesPath(rel) {
				return nil
			}
			if isSource(path) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func isSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".c", ".h":
		return true
	default:
		return false
	}
}

// loadGitignore compiles the .gitignore at the root of a walked
// directory argument, or nil if there is none.
func loadGitignore(root string) *ignore.GitIgnore {
	content, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}

	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if len(patterns) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(patterns...)
}
