// Package lint statically checks scripts before they run. It parses them
// with tree-sitter and reports syntax errors and references to operations
// the API namespace does not define, so a typo is caught without starting a
// session.
package lint

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Kind classifies a Finding.
type Kind string

const (
	KindSyntax    Kind = "syntax"
	KindUnknownOp Kind = "unknown-op"
)

// Finding is one problem in a script. Line and Column are 1-based.
type Finding struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Kind    Kind   `json:"kind"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

func (f Finding) String() string {
	loc := fmt.Sprintf("%d:%d", f.Line, f.Column)
	if f.File != "" {
		loc = f.File + ":" + loc
	}
	return fmt.Sprintf("%s: %s: %s", loc, f.Kind, f.Message)
}

// Checker validates scripts against one namespace and its operation names.
type Checker struct {
	namespace string
	known     map[string]bool
}

// NewChecker returns a Checker for namespace ns exposing names.
func NewChecker(ns string, names []string) *Checker {
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}
	return &Checker{namespace: ns, known: known}
}

// Check parses src and returns its findings ordered by position.
func (c *Checker) Check(ctx context.Context, src []byte) ([]Finding, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(Grammar())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("lint: parse: %w", err)
	}
	defer tree.Close()

	var findings []Finding
	walk(tree.RootNode(), func(n *sitter.Node) {
		switch {
		case n.IsError():
			findings = append(findings, syntaxFinding(n, "unexpected "+quoteSnippet(n.Content(src))))
		case n.IsMissing():
			findings = append(findings, syntaxFinding(n, "missing "+n.Type()))
		default:
			findings = append(findings, c.members(n, src)...)
		}
	})

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Line != findings[j].Line {
			return findings[i].Line < findings[j].Line
		}
		return findings[i].Column < findings[j].Column
	})
	return findings, nil
}

// members reports ns.Name and ns:Name accesses among n's direct children
// where Name is not a known operation. Matching child triples keeps this
// independent of how the grammar names its index expressions.
func (c *Checker) members(n *sitter.Node, src []byte) []Finding {
	count := int(n.ChildCount())
	var out []Finding
	for i := 0; i+2 < count; i++ {
		obj, sep, field := n.Child(i), n.Child(i+1), n.Child(i+2)
		if obj.Type() != "identifier" || obj.Content(src) != c.namespace {
			continue
		}
		if st := sep.Type(); st != "." && st != ":" {
			continue
		}
		if !strings.HasSuffix(field.Type(), "identifier") {
			continue
		}
		name := field.Content(src)
		if c.known[name] {
			continue
		}
		p := field.StartPoint()
		out = append(out, Finding{
			Line:    int(p.Row) + 1,
			Column:  int(p.Column) + 1,
			Kind:    KindUnknownOp,
			Name:    name,
			Message: fmt.Sprintf("%s.%s is not a known operation", c.namespace, name),
		})
	}
	return out
}

func syntaxFinding(n *sitter.Node, msg string) Finding {
	p := n.StartPoint()
	return Finding{
		Line:    int(p.Row) + 1,
		Column:  int(p.Column) + 1,
		Kind:    KindSyntax,
		Message: msg,
	}
}

func quoteSnippet(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > 24 {
		s = string(r[:24]) + "..."
	}
	return fmt.Sprintf("%q", s)
}

// walk visits n and all of its descendants depth-first.
func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}
