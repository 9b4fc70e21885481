package lint

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/lua"
)

// scriptExts are the file extensions treated as scripts.
var scriptExts = map[string]bool{
	".lua": true,
}

var (
	grammar     *sitter.Language
	grammarOnce sync.Once
)

// Grammar returns the tree-sitter Lua grammar, initialised on first use.
func Grammar() *sitter.Language {
	grammarOnce.Do(func() {
		grammar = lua.GetLanguage()
	})
	return grammar
}

// IsScript reports whether path has a script extension.
func IsScript(path string) bool {
	return scriptExts[strings.ToLower(filepath.Ext(path))]
}
