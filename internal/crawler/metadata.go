package crawler

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// Subfolder returns the directory containing filePath relative to root, with
// "/" separators. Files directly under root map to "/". A path outside root
// falls back to its raw parent directory.
func Subfolder(root, filePath string) string {
	parent := filepath.Dir(filePath)
	rel, err := filepath.Rel(root, parent)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return strings.ReplaceAll(filepath.ToSlash(parent), `\`, "/")
	}
	if rel == "." || rel == "" {
		return "/"
	}
	return filepath.ToSlash(rel)
}

// Extension returns the lowercase extension of name without the dot.
// Dotfiles such as ".bashrc" and names ending in "." have no extension.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// fileTimes returns the created and modified timestamps of info. Either may be
// nil when the platform or file system does not provide it.
func fileTimes(info fs.FileInfo) (created, modified *time.Time) {
	if mt := info.ModTime(); !mt.IsZero() {
		m := mt.UTC()
		modified = &m
	}
	if ct, ok := createdTime(info); ok {
		c := ct.UTC()
		created = &c
	}
	return created, modified
}
