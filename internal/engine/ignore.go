package engine

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/openmined/syftbackup/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName is read from the root of the source folder when present.
const IgnoreFileName = ".syftbackupignore"

var defaultIgnoreLines = []string{
	// OS-specific
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
}

// IgnoreList filters the source walk with gitignore rules. A nil list ignores nothing.
type IgnoreList struct {
	baseDir string
	extra   []string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string, extra ...string) *IgnoreList {
	return &IgnoreList{baseDir: baseDir, extra: extra}
}

// Load compiles the default rules, the extra rules and the rules of the ignore file.
func (s *IgnoreList) Load() {
	lines := append([]string{}, defaultIgnoreLines...)
	lines = append(lines, s.extra...)

	ignorePath := filepath.Join(s.baseDir, IgnoreFileName)
	if utils.FileExists(ignorePath) {
		lines = append(lines, readIgnoreFile(ignorePath)...)
	}

	s.ignore = gitignore.CompileIgnoreLines(lines...)
}

func readIgnoreFile(path string) []string {
	file, err := os.Open(path)
	if err != nil {
		slog.Warn("Failed to open ignore file", "path", path, "error", err)
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("Error reading ignore file", "path", path, "error", err)
	} else {
		slog.Info("Loaded ignore file", "path", path, "rules", len(lines))
	}
	return lines
}

// ShouldIgnore matches a relative slash path.
func (s *IgnoreList) ShouldIgnore(rel string) bool {
	if s == nil || s.ignore == nil {
		return false
	}
	return s.ignore.MatchesPath(rel)
}

// ShouldIgnoreDir matches a relative folder path, honouring folder-only rules such as "build/".
func (s *IgnoreList) ShouldIgnoreDir(rel string) bool {
	return s.ShouldIgnore(rel) || s.ShouldIgnore(rel+"/")
}
