// Package cc implements the C/C++ compile and link rules of spec.md
// §4.10 — the canonical instance of internal/core's Rule interface.
//
// HeaderScanner is grounded directly on the teacher's
// internal/parser.TreeSitterParser.setupCpp (standardbeagle/lci): same
// tree-sitter-cpp grammar, same NewParser/NewLanguage/SetLanguage setup
// and NewQueryCursor().Matches(query, root, content) query-match loop,
// repurposed from symbol/import extraction for source indexing to
// dynamic header-dependency extraction for the compile rule — a direct,
// safer analogue of build2's preprocessing-less cpp::parser header scan
// (spec.md §4.10: "extracts header dependencies by running the compiler
// in preprocess mode" in the original; here we parse instead of
// preprocessing, so macro-conditional includes are over-approximated
// rather than expanded).
package cc

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
)

// Include is one #include directive found in a translation unit.
type Include struct {
	Path   string
	Angled bool // true for <...>, false for "..."
}

// ModuleRef is one `import`/`export import`/`export module` declaration
// (spec.md §4.10: "C++ module BMIs participate as prerequisites").
type ModuleRef struct {
	Name     string
	Exported bool
	IsExport bool // true for `export module name;` (this TU's own module)
}

// ScanResult is everything HeaderScanner.Scan extracted from one
// translation unit.
type ScanResult struct {
	Includes []Include
	Modules  []ModuleRef
}

// HeaderScanner wraps one tree-sitter-cpp parser+query pair. A single
// instance is safe for sequential reuse across files from one worker;
// CompileRule hands them out from a sync.Pool to avoid contending on the
// same *tree_sitter.Parser across goroutines (tree-sitter parsers are not
// safe for concurrent Parse calls).
type HeaderScanner struct {
	parser *tree_sitter.Parser
	query  *tree_sitter.Query
	names  []string
}

const cppQuery = `
(preproc_include path: (string_literal) @include.quoted)
(preproc_include path: (system_lib_string) @include.angled)
(module_declaration) @module.decl
`

// NewHeaderScanner constructs a scanner over the real C++ grammar,
// mirroring setupCpp's parser/query pair but with a query aimed at
// #include and module declarations instead of symbol/class/function
// extraction.
func NewHeaderScanner() (*HeaderScanner, error) {
	parser := tree_sitter.NewParser()
	language := tree_sitter.NewLanguage(tree_sitter_cpp.Language())
	if err := parser.SetLanguage(language); err != nil {
		return nil, err
	}
	query, err := tree_sitter.NewQuery(language, cppQuery)
	if err != nil {
		return nil, err
	}
	return &HeaderScanner{parser: parser, query: query, names: query.CaptureNames()}, nil
}

// Close releases the underlying tree-sitter parser and query.
func (h *HeaderScanner) Close() {
	if h.query != nil {
		h.query.Close()
	}
	if h.parser != nil {
		h.parser.Close()
	}
}

// Scan parses source and extracts its #include and module declarations.
func (h *HeaderScanner) Scan(source []byte) (ScanResult, error) {
	tree := h.parser.Parse(source, nil)
	if tree == nil {
		return ScanResult{}, nil
	}
	defer tree.Close()

	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()
	matches := qc.Matches(h.query, tree.RootNode(), source)

	var result ScanResult
	for {
		m := matches.Next()
		if m == nil {
			break
		}
		for _, c := range m.Captures {
			name := h.names[c.Index]
			text := string(source[c.Node.StartByte():c.Node.EndByte()])
			switch name {
			case "include.quoted":
				result.Includes = append(result.Includes, Include{Path: trimQuotes(text, '"', '"'), Angled: false})
			case "include.angled":
				result.Includes = append(result.Includes, Include{Path: trimQuotes(text, '<', '>'), Angled: true})
			case "module.decl":
				if ref, ok := parseModuleDecl(text); ok {
					result.Modules = append(result.Modules, ref)
				}
			}
		}
	}
	return result, nil
}

func trimQuotes(s string, open, close byte) string {
	if len(s) >= 2 && s[0] == open && s[len(s)-1] == close {
		return s[1 : len(s)-1]
	}
	return s
}

// parseModuleDecl recognizes the three module-declaration shapes the
// query's module.decl capture can match: `module name;`, `import name;`
// and `export module name;` / `export import name;`.
func parseModuleDecl(text string) (ModuleRef, bool) {
	exported := false
	rest := text
	if hasPrefixWord(rest, "export") {
		exported = true
		rest = trimLeadingWord(rest, "export")
	}
	switch {
	case hasPrefixWord(rest, "module"):
		name := trimLeadingWord(rest, "module")
		return ModuleRef{Name: cleanModuleName(name), Exported: exported, IsExport: true}, true
	case hasPrefixWord(rest, "import"):
		name := trimLeadingWord(rest, "import")
		return ModuleRef{Name: cleanModuleName(name), Exported: exported}, true
	}
	return ModuleRef{}, false
}

func hasPrefixWord(s, word string) bool {
	s = trimSpace(s)
	return len(s) >= len(word) && s[:len(word)] == word
}

func trimLeadingWord(s, word string) string {
	s = trimSpace(s)
	return trimSpace(s[len(word):])
}

func cleanModuleName(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ';' {
			break
		}
		out = append(out, c)
	}
	return trimSpace(string(out))
}

func trimSpace(s string) string {
	i, j := 0, len(s)
	for i < j && isSpace(s[i]) {
		i++
	}
	for j > i && isSpace(s[j-1]) {
		j--
	}
	return s[i:j]
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
