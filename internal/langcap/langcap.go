// Package langcap is the per-language capability set consulted by the
// parser pool and the block extractor: which tree-sitter grammar backs an
// extension, which node kinds count as an "acceptable parent" block
// boundary, and which nodes are test code (§4.7–§4.9).
package langcap

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_c_sharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
)

// Tier classifies how central a language is to the retrieved corpus (§4.7),
// used only to decide pre-warming priority in the parser pool.
type Tier int

const (
	TierCritical Tier = iota
	TierCommon
	TierSpecialised
)

// Capability describes one supported language.
type Capability struct {
	Name             string
	Tier             Tier
	Extensions       []string
	acceptableParent map[string]bool
	functionKinds    map[string]bool
	testFileHints    []string
	testNodeNames    map[string]bool
}

func (c *Capability) GetGrammar() *tree_sitter.Language {
	return grammarFor(c.Name)
}

// IsAcceptableParent reports whether a tree-sitter node kind is a valid
// block boundary for this language, per spec.md §4.8.
func (c *Capability) IsAcceptableParent(nodeKind string) bool {
	return c.acceptableParent[nodeKind]
}

// IsFunctionKind reports whether a node kind is one of this language's
// function/method declaration kinds, as opposed to a type-level construct
// (struct, class, enum, ...).
func (c *Capability) IsFunctionKind(nodeKind string) bool {
	return c.functionKinds[nodeKind]
}

// FindParentFunction walks node's ancestors and returns the nearest one
// whose kind is a function/method declaration, or nil if node has no such
// ancestor. Grounded on original_source/src/language/parser.rs's use of
// find_parent_function to attach enclosing-function context to a struct
// block defined inside a function body.
func (c *Capability) FindParentFunction(node *tree_sitter.Node) *tree_sitter.Node {
	for current := node.Parent(); current != nil; current = current.Parent() {
		if c.functionKinds[current.Kind()] {
			return current
		}
	}
	return nil
}

// IsTestNode reports whether a node (identified by its declaration-name
// text, if any) or its source path looks like test code, per spec.md §4.9.
func (c *Capability) IsTestNode(declName string, path string) bool {
	lowerName := strings.ToLower(declName)
	if c.testNodeNames[lowerName] {
		return true
	}
	// Languages that snake_case test names (Python/Rust) use test_<name>;
	// languages that PascalCase them (Java/C#/Go) use Test<Name>. Bare
	// "test" alone isn't a declaration name worth flagging.
	if strings.HasPrefix(lowerName, "test_") || (strings.HasPrefix(lowerName, "test") && len(lowerName) > 4) {
		return true
	}
	lowerPath := strings.ToLower(path)
	for _, hint := range c.testFileHints {
		if strings.Contains(lowerPath, hint) {
			return true
		}
	}
	return false
}

var registry = map[string]*Capability{}
var extToLanguage = map[string]string{}

func register(c *Capability) {
	registry[c.Name] = c
	for _, ext := range c.Extensions {
		extToLanguage[ext] = c.Name
	}
}

// ForExtension returns the Capability for a file extension (without the
// leading dot), or nil if unsupported.
func ForExtension(ext string) *Capability {
	name, ok := extToLanguage[strings.ToLower(strings.TrimPrefix(ext, "."))]
	if !ok {
		return nil
	}
	return registry[name]
}

// ForLanguage returns the Capability by canonical language name.
func ForLanguage(name string) *Capability {
	return registry[strings.ToLower(name)]
}

// All returns every registered Capability, in no particular order.
func All() []*Capability {
	out := make([]*Capability, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	return out
}

func grammarFor(name string) *tree_sitter.Language {
	switch name {
	case "rust":
		return tree_sitter.NewLanguage(tree_sitter_rust.Language())
	case "javascript":
		return tree_sitter.NewLanguage(tree_sitter_javascript.Language())
	case "typescript":
		return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	case "python":
		return tree_sitter.NewLanguage(tree_sitter_python.Language())
	case "go":
		return tree_sitter.NewLanguage(tree_sitter_go.Language())
	case "java":
		return tree_sitter.NewLanguage(tree_sitter_java.Language())
	case "cpp":
		return tree_sitter.NewLanguage(tree_sitter_cpp.Language())
	case "csharp":
		return tree_sitter.NewLanguage(tree_sitter_c_sharp.Language())
	case "php":
		return tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP())
	case "zig":
		return tree_sitter.NewLanguage(tree_sitter_zig.Language())
	default:
		return nil
	}
}

func init() {
	register(&Capability{
		Name: "rust", Tier: TierCritical,
		Extensions: []string{"rs"},
		acceptableParent: set(
			"function_item", "struct_item", "impl_item", "trait_item",
			"enum_item", "mod_item", "macro_definition",
		),
		functionKinds: set("function_item"),
		testFileHints: []string{"/tests/", "_test.rs"},
		testNodeNames: set(),
	})
	register(&Capability{
		Name: "javascript", Tier: TierCritical,
		Extensions: []string{"js", "jsx", "mjs", "cjs"},
		acceptableParent: set(
			"function_declaration", "method_definition", "class_declaration",
			"arrow_function", "function", "export_statement",
			"variable_declaration", "lexical_declaration",
		),
		functionKinds: set("function_declaration", "method_definition", "arrow_function", "function"),
		testFileHints: []string{".test.", ".spec.", "__tests__/"},
	})
	register(&Capability{
		Name: "typescript", Tier: TierCritical,
		// .tsx shares the same grammar entry point the teacher uses
		// (LanguageTypescript handles both dialects).
		Extensions: []string{"ts", "tsx"},
		acceptableParent: set(
			"function_declaration", "method_definition", "class_declaration",
			"arrow_function", "function", "export_statement",
			"variable_declaration", "lexical_declaration",
			"interface_declaration", "type_alias_declaration",
		),
		functionKinds: set("function_declaration", "method_definition", "arrow_function", "function"),
		testFileHints: []string{".test.", ".spec.", "__tests__/"},
	})
	register(&Capability{
		Name: "python", Tier: TierCritical,
		Extensions: []string{"py", "pyi", "pyw"},
		acceptableParent: set(
			"function_definition", "class_definition",
		),
		functionKinds: set("function_definition"),
		testFileHints: []string{"test_", "_test.py", "/tests/"},
	})
	register(&Capability{
		Name: "go", Tier: TierCritical,
		Extensions: []string{"go"},
		acceptableParent: set(
			"function_declaration", "method_declaration", "type_declaration",
			"struct_type", "interface_type", "const_declaration",
			"var_declaration", "const_spec", "var_spec",
			"short_var_declaration", "type_spec",
		),
		functionKinds: set("function_declaration", "method_declaration"),
		testFileHints: []string{"_test.go"},
	})
	register(&Capability{
		Name: "java", Tier: TierCritical,
		Extensions: []string{"java"},
		acceptableParent: set(
			"method_declaration", "class_declaration", "interface_declaration",
			"enum_declaration", "constructor_declaration",
		),
		functionKinds: set("method_declaration", "constructor_declaration"),
		testFileHints: []string{"/test/", "Test.java", "Tests.java"},
	})
	register(&Capability{
		Name: "cpp", Tier: TierCommon,
		// .c/.h fold into the cpp grammar: the corpus carries no
		// dedicated tree-sitter-c package, and the teacher's own parser
		// pool registers .c/.h against setupCpp for the same reason.
		Extensions: []string{"cpp", "cxx", "cc", "hpp", "hxx", "c", "h"},
		acceptableParent: set(
			"function_definition", "declaration", "struct_specifier",
			"class_specifier", "enum_specifier", "namespace_definition",
		),
		functionKinds: set("function_definition"),
		testFileHints: []string{"_test.cpp", "_test.c", "/tests/"},
	})
	register(&Capability{
		Name: "csharp", Tier: TierCommon,
		Extensions: []string{"cs"},
		acceptableParent: set(
			"method_declaration", "class_declaration", "interface_declaration",
			"struct_declaration", "enum_declaration", "constructor_declaration",
			"property_declaration",
		),
		functionKinds: set("method_declaration", "constructor_declaration"),
		testFileHints: []string{"Tests.cs", "Test.cs"},
	})
	register(&Capability{
		Name: "php", Tier: TierCommon,
		Extensions: []string{"php", "phtml"},
		acceptableParent: set(
			"function_definition", "method_declaration", "class_declaration",
			"interface_declaration", "trait_declaration",
		),
		functionKinds: set("function_definition", "method_declaration"),
		testFileHints: []string{"Test.php", "/tests/"},
	})
	// Ruby has no tree-sitter grammar anywhere in the retrieved pack's
	// go.mod, so it is not registered here: .rb files are still
	// discoverable and content-matchable, but block extraction for them
	// falls back to the context_lines line range rather than an AST node.
	register(&Capability{
		Name: "zig", Tier: TierSpecialised,
		Extensions: []string{"zig"},
		acceptableParent: set(
			"FnProto", "TestDecl", "ContainerDecl", "VarDecl",
		),
		functionKinds: set("FnProto"),
		testFileHints: []string{"_test.zig", "test.zig"},
	})
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}
