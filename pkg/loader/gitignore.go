package loader

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const gitignoreComment = "# checktree local state"

// EnsureIgnored makes sure dir (relative to projectDir, e.g. ".checktree") is
// listed in the project's .gitignore, creating the file if needed. It is
// idempotent and preserves existing content.
func EnsureIgnored(projectDir, dir string) error {
	if projectDir == "" {
		var err error
		projectDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}
	name := strings.Trim(filepath.ToSlash(dir), "/")
	if name == "" || name == "." {
		return fmt.Errorf("ensure ignored: empty directory name")
	}

	path := filepath.Join(projectDir, ".gitignore")
	present, err := isIgnored(path, name)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if present {
		return nil
	}
	if err := appendToGitignore(path, name+"/"); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	return nil
}

// isIgnored reports whether a non-comment line of the .gitignore at path
// already covers name.
func isIgnored(path, name string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if matchesDirPattern(line, name) {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// matchesDirPattern reports whether a gitignore line covers the directory
// name: name, name/, name/*, name/** or name/**/*, optionally rooted with /.
func matchesDirPattern(line, name string) bool {
	normalized := strings.TrimPrefix(line, "/")
	rest, ok := strings.CutPrefix(normalized, name)
	if !ok {
		return false
	}
	switch rest {
	case "", "/", "/*", "/**", "/**/*":
		return true
	}
	return false
}

// appendToGitignore appends pattern under a comment, creating the file if it
// doesn't exist and separating it from existing content by a blank line.
func appendToGitignore(path string, pattern string) error {
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	var toWrite string
	if len(content) == 0 {
		toWrite = gitignoreComment + "\n" + pattern + "\n"
	} else {
		if content[len(content)-1] != '\n' {
			toWrite = "\n"
		}
		toWrite += "\n" + gitignoreComment + "\n" + pattern + "\n"
	}
	_, err = file.WriteString(toWrite)
	return err
}
