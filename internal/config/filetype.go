package config

import (
	"path/filepath"
	"strings"
)

var contextsByExt = map[string]string{
	".c":    "C",
	".h":    "C",
	".cc":   "C++",
	".cpp":  "C++",
	".hpp":  "C++",
	".go":   "Go",
	".java": "JAVA",
	".js":   "JavaScript",
	".json": "JSON",
	".kt":   "Kotlin",
	".kts":  "Kotlin",
	".md":   "Markdown",
	".py":   "Python",
	".rb":   "Ruby",
	".rs":   "Rust",
	".sh":   "Shell Script",
	".toml": "TOML",
	".ts":   "TypeScript",
	".txt":  "PLAIN_TEXT",
	".yaml": "YAML",
	".yml":  "YAML",
}

// ContextForPath derives a buffer context token from a file name. Unknown
// extensions yield the empty context, which only wildcard mappings match.
func ContextForPath(path string) string {
	return contextsByExt[strings.ToLower(filepath.Ext(path))]
}
