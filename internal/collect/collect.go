// Package collect finds the Go tests of a module and the marks they carry.
//
// A test is marked with a directive in its doc comment:
//
//	//filemarker:mark db slow
//	func TestQuery(t *testing.T) { ... }
//
// Directives placed above the package clause mark every test in the file.
package collect

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"filemarker/internal/logging"

	"golang.org/x/sync/errgroup"
)

// Directive is the comment prefix that attaches marks to tests.
const Directive = "//filemarker:mark"

// Item is one collected test function.
type Item struct {
	Package string   `json:"package"` // "./"-relative import pattern of the package directory
	Dir     string   `json:"dir"`
	File    string   `json:"file"`
	Line    int      `json:"line"`
	Name    string   `json:"name"`
	Marks   []string `json:"marks,omitempty"`
}

// ID returns a stable identifier such as "internal/db/query_test.go::TestQuery".
func (it Item) ID() string {
	rel := strings.TrimPrefix(it.Package, "./")
	if rel == "." {
		rel = ""
	}
	return pathJoin(rel, filepath.Base(it.File)) + "::" + it.Name
}

// HasMark reports whether the item carries name.
func (it Item) HasMark(name string) bool {
	for _, m := range it.Marks {
		if m == name {
			return true
		}
	}
	return false
}

// Collector walks package patterns relative to a module root.
type Collector struct {
	root    string
	workers int
}

// NewCollector returns a Collector rooted at root.
func NewCollector(root string, workers int) *Collector {
	if workers < 1 {
		workers = 1
	}
	return &Collector{root: root, workers: workers}
}

// Collect expands patterns ("./...", "./internal/db", "internal/...") into
// package directories and returns their tests ordered by package, file and line.
func (c *Collector) Collect(ctx context.Context, patterns []string) ([]Item, error) {
	timer := logging.StartTimer(logging.CategoryCollect, "Test collection")
	defer timer.Stop()

	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	dirs, err := c.expand(patterns)
	if err != nil {
		return nil, err
	}

	perDir := make([][]Item, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, dir := range dirs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			items, err := c.collectDir(dir)
			if err != nil {
				return err
			}
			perDir[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var items []Item
	for _, batch := range perDir {
		items = append(items, batch...)
	}
	logging.Collect("Collected %d tests from %d packages", len(items), len(dirs))
	return items, nil
}

// expand resolves patterns to a sorted, de-duplicated list of directories.
func (c *Collector) expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	for _, pattern := range patterns {
		recursive := false
		base := pattern
		if base == "..." {
			base, recursive = ".", true
		} else if strings.HasSuffix(base, "/...") {
			base, recursive = strings.TrimSuffix(base, "/..."), true
		}
		if base == "" {
			base = "."
		}
		dir := base
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(c.root, filepath.FromSlash(base))
		}

		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("package pattern %q: %w", pattern, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("package pattern %q: not a directory", pattern)
		}
		if !recursive {
			add(dir)
			continue
		}

		err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != dir && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", dir, err)
		}
	}

	sort.Strings(dirs)
	return dirs, nil
}

// skipDir mirrors the go tool: ./... never descends into these.
func skipDir(name string) bool {
	return name == "vendor" || name == "testdata" ||
		strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

func (c *Collector) collectDir(dir string) ([]Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	pkg := c.packagePattern(dir)
	var items []Item
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, "_test.go") ||
			strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		fileItems, err := ParseFile(filepath.Join(dir, name), nil)
		if err != nil {
			return nil, err
		}
		for i := range fileItems {
			fileItems[i].Package = pkg
		}
		items = append(items, fileItems...)
	}
	if len(items) > 0 {
		logging.CollectDebug("%s: %d tests", pkg, len(items))
	}
	return items, nil
}

func (c *Collector) packagePattern(dir string) string {
	rel, err := filepath.Rel(c.root, dir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return dir
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return "."
	}
	return "./" + rel
}

// ParseFile returns the tests declared in one _test.go file. When src is nil
// the file is read from disk.
func ParseFile(path string, src []byte) ([]Item, error) {
	fset := token.NewFileSet()
	var source interface{}
	if src != nil {
		source = src
	}
	f, err := parser.ParseFile(fset, path, source, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	testingName := testingImportName(f)
	if testingName == "" {
		return nil, nil
	}

	var fileMarks []string
	for _, cg := range f.Comments {
		if cg.End() >= f.Package {
			break
		}
		fileMarks = append(fileMarks, directiveMarks(cg)...)
	}

	var items []Item
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || !isTestName(fn.Name.Name) || !takesTestingT(fn, testingName) {
			continue
		}
		marks := append(append([]string(nil), fileMarks...), directiveMarks(fn.Doc)...)
		items = append(items, Item{
			Dir:   filepath.Dir(path),
			File:  path,
			Line:  fset.Position(fn.Pos()).Line,
			Name:  fn.Name.Name,
			Marks: dedupe(marks),
		})
	}
	return items, nil
}

// isTestName matches the go tool's rule: "Test" followed by nothing or a
// non-lowercase rune. TestMain is the harness entry point, not a test.
func isTestName(name string) bool {
	if !strings.HasPrefix(name, "Test") || name == "TestMain" {
		return false
	}
	if len(name) == 4 {
		return true
	}
	r, _ := utf8.DecodeRuneInString(name[4:])
	return !unicode.IsLower(r)
}

func takesTestingT(fn *ast.FuncDecl, testingName string) bool {
	params := fn.Type.Params
	if fn.Type.TypeParams != nil || params == nil || len(params.List) != 1 || len(params.List[0].Names) > 1 {
		return false
	}
	if fn.Type.Results != nil && len(fn.Type.Results.List) > 0 {
		return false
	}
	star, ok := params.List[0].Type.(*ast.StarExpr)
	if !ok {
		return false
	}
	sel, ok := star.X.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "T" {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && pkg.Name == testingName
}

// testingImportName returns the local name of the "testing" import, or "".
func testingImportName(f *ast.File) string {
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil || path != "testing" {
			continue
		}
		if imp.Name != nil {
			if imp.Name.Name == "_" || imp.Name.Name == "." {
				return ""
			}
			return imp.Name.Name
		}
		return "testing"
	}
	return ""
}

// directiveMarks extracts mark names from //filemarker:mark lines.
func directiveMarks(cg *ast.CommentGroup) []string {
	if cg == nil {
		return nil
	}
	var marks []string
	for _, c := range cg.List {
		rest, ok := strings.CutPrefix(c.Text, Directive)
		if !ok || (rest != "" && rest[0] != ' ' && rest[0] != '\t') {
			continue
		}
		marks = append(marks, strings.FieldsFunc(rest, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		})...)
	}
	return marks
}

func dedupe(marks []string) []string {
	if len(marks) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(marks))
	out := marks[:0]
	for _, m := range marks {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

func pathJoin(dir, file string) string {
	if dir == "" {
		return file
	}
	return dir + "/" + file
}
