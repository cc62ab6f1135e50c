package discovery

import "path/filepath"

// languageByExtension maps file extensions (and a few exact filenames) to
// the language tag stored on model.File.Language. Only languages with an
// Analyzer implementation are meaningful to the parse pipeline, but
// discovery tags every recognized file so the query surface can filter by
// language regardless of analysis support.
var languageByExtension = map[string]string{
	".go":    "go",
	".py":    "python",
	".pyw":   "python",
	".pyi":   "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".kt":    "kotlin",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cc":    "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".php":   "php",
	".scala": "scala",
}

var languageByFileName = map[string]string{
	"Dockerfile":  "dockerfile",
	"Makefile":    "makefile",
	"GNUmakefile": "makefile",
}

// DetectLanguage tags a file by its extension, falling back to well-known
// exact file names. Returns "" for files with no recognized language.
func DetectLanguage(path string) string {
	base := filepath.Base(path)
	if lang, ok := languageByFileName[base]; ok {
		return lang
	}
	ext := filepath.Ext(path)
	return languageByExtension[ext]
}
