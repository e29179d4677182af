package sync

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/pairsync/pairsync/internal/utils"
	"github.com/pairsync/pairsync/internal/workspace"
)

const ignoreFileName = ".pairsyncignore"

var defaultIgnoreLines = []string{
	// pairsync internals
	workspace.MetaDirName + "/",
	ignoreFileName,
	"*.psync.tmp.*",
	// general excludes
	".git/",
	"*.tmp",
	"*.swp",
	// OS litter
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
}

// IgnoreList filters local entries out of scans, gitignore style. The
// defaults always apply; a .pairsyncignore file at the pair's local root
// adds to them.
type IgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string) *IgnoreList {
	return &IgnoreList{baseDir: baseDir}
}

func (l *IgnoreList) Load() {
	ignorePath := filepath.Join(l.baseDir, ignoreFileName)
	ignoreLines := defaultIgnoreLines

	if utils.FileExists(ignorePath) {
		file, err := os.Open(ignorePath)
		if err != nil {
			slog.Warn("failed to open ignore file", "path", ignorePath, "error", err)
		} else {
			defer file.Close()
			rules := 0
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				line := scanner.Text()
				if line == "" {
					continue
				}
				ignoreLines = append(ignoreLines, line)
				rules++
			}
			slog.Debug("loaded ignore file", "path", ignorePath, "rules", rules)
		}
	}

	l.ignore = gitignore.CompileIgnoreLines(ignoreLines...)
}

func (l *IgnoreList) ShouldIgnore(relPath string, isDir bool) bool {
	if l.ignore == nil {
		l.Load()
	}
	if isDir {
		relPath += "/"
	}
	return l.ignore.MatchesPath(relPath)
}
