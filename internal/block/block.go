// Package block implements the Block Extractor of spec.md §4.8: it maps
// matched source lines to the smallest enclosing "acceptable" syntactic
// construct, merges doc comments with the construct they document, and
// deduplicates overlapping spans. Grounded on the line-to-node map algorithm
// of original_source/src/language/parser.rs's process_node /
// parse_file_for_code_blocks, reworked against internal/langcap's
// Capability and internal/parserpool's Parser Pool.
package block

import (
	"sort"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codeprobe/internal/langcap"
	"github.com/standardbeagle/codeprobe/internal/parserpool"
)

// CodeBlock is one extracted syntactic span, per spec.md §3.
type CodeBlock struct {
	StartRow       int
	EndRow         int
	StartByte      uint
	EndByte        uint
	NodeType       string
	ParentNodeType string
	ParentStartRow int
	ParentEndRow   int
	HasParent      bool
}

// nodeInfo is the per-line entry of the line-to-node map.
type nodeInfo struct {
	node        *tree_sitter.Node
	isComment   bool
	contextNode *tree_sitter.Node
	specificity int
}

var commentKinds = map[string]bool{
	"comment": true, "line_comment": true, "block_comment": true,
	"doc_comment": true, "//": true,
}

func isCommentKind(kind string) bool {
	return commentKinds[kind]
}

// Extract parses content with the parser pool (using cache for repeated
// calls on unchanged content) and returns CodeBlocks covering every line in
// lineNumbers. When noMerge is true, the overlap-dedup of step 7 is skipped
// entirely: every acceptable-parent match is returned as its own block even
// if it overlaps another, per the already-public no_merge parameter.
func Extract(cache *parserpool.TreeCache, path, language string, content []byte, lineNumbers map[int]bool, allowTests, noMerge bool) ([]CodeBlock, error) {
	lc := langcap.ForLanguage(language)
	if lc == nil {
		return nil, nil
	}

	tree, err := parserpool.Parse(cache, path, language, content)
	if err != nil {
		return nil, err
	}

	lineCount := countLines(content)
	lineMap := make([]*nodeInfo, lineCount)
	walk(tree.RootNode(), lineMap, lc, content, path, allowTests)

	return collectBlocks(lineMap, lineNumbers, lc, content, path, allowTests, noMerge), nil
}

func countLines(content []byte) int {
	n := 1
	for _, b := range content {
		if b == '\n' {
			n++
		}
	}
	return n
}

// walk performs the single depth-first traversal building the line-to-node
// map, mirroring process_node's specificity-based replacement rule.
func walk(node *tree_sitter.Node, lineMap []*nodeInfo, lc *langcap.Capability, content []byte, path string, allowTests bool) {
	startRow := int(node.StartPosition().Row)
	endRow := int(node.EndPosition().Row)
	if startRow >= len(lineMap) {
		return
	}

	isComment := isCommentKind(node.Kind())
	lineSpan := endRow - startRow + 1
	byteSpan := int(node.EndByte() - node.StartByte())
	specificity := lineSpan*1000 + byteSpan/100

	var contextNode *tree_sitter.Node
	if isComment {
		contextNode = findCommentContext(node, lc)
	} else if !lc.IsAcceptableParent(node.Kind()) {
		contextNode = findNearestAcceptableAncestor(node, lc)
	}

	for line := startRow; line <= endRow && line < len(lineMap); line++ {
		if shouldUpdate(lineMap[line], node, isComment, contextNode, specificity) {
			lineMap[line] = &nodeInfo{node: node, isComment: isComment, contextNode: contextNode, specificity: specificity}
		}
	}

	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		child := node.Child(i)
		if child != nil {
			walk(child, lineMap, lc, content, path, allowTests)
		}
	}
}

func shouldUpdate(current *nodeInfo, node *tree_sitter.Node, isComment bool, contextNode *tree_sitter.Node, specificity int) bool {
	if current == nil {
		return true
	}
	if current.isComment && current.contextNode != nil && sameNode(current.contextNode, node) {
		return false
	}
	if isComment && contextNode != nil && sameNode(contextNode, current.node) {
		return true
	}
	return specificity < current.specificity
}

func sameNode(a, b *tree_sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Kind() == b.Kind()
}

func findNearestAcceptableAncestor(node *tree_sitter.Node, lc *langcap.Capability) *tree_sitter.Node {
	if lc.IsAcceptableParent(node.Kind()) {
		return node
	}
	current := node
	for {
		parent := current.Parent()
		if parent == nil {
			return nil
		}
		if lc.IsAcceptableParent(parent.Kind()) {
			return parent
		}
		current = parent
	}
}

func findAcceptableChild(node *tree_sitter.Node, lc *langcap.Capability) *tree_sitter.Node {
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if lc.IsAcceptableParent(child.Kind()) {
			return child
		}
		if found := findAcceptableChild(child, lc); found != nil {
			return found
		}
	}
	return nil
}

func findImmediateNextNode(node *tree_sitter.Node) *tree_sitter.Node {
	if next := node.NextSibling(); next != nil {
		return next
	}
	if parent := node.Parent(); parent != nil {
		if next := parent.NextSibling(); next != nil {
			return next
		}
	}
	return nil
}

// findCommentContext implements the four-strategy search of
// find_comment_context_node: next acceptable sibling, then (only if the
// comment has no next sibling at all) previous sibling, then nearest
// acceptable ancestor, then the immediate next node or its first acceptable
// descendant.
func findCommentContext(comment *tree_sitter.Node, lc *langcap.Capability) *tree_sitter.Node {
	sibling := comment.NextSibling()
	for sibling != nil {
		if isCommentKind(sibling.Kind()) {
			sibling = sibling.NextSibling()
			continue
		}
		if lc.IsAcceptableParent(sibling.Kind()) {
			return sibling
		}
		if child := findAcceptableChild(sibling, lc); child != nil {
			return child
		}
		sibling = sibling.NextSibling()
	}

	if comment.NextSibling() == nil {
		if prev := comment.PrevSibling(); prev != nil {
			if lc.IsAcceptableParent(prev.Kind()) {
				return prev
			}
			if child := findAcceptableChild(prev, lc); child != nil {
				return child
			}
		}
	}

	current := comment
	for {
		parent := current.Parent()
		if parent == nil {
			break
		}
		if lc.IsAcceptableParent(parent.Kind()) {
			return parent
		}
		current = parent
	}

	if next := findImmediateNextNode(comment); next != nil {
		if lc.IsAcceptableParent(next.Kind()) {
			return next
		}
		if child := findAcceptableChild(next, lc); child != nil {
			return child
		}
	}
	return nil
}

type spanKey struct{ start, end int }

// collectBlocks walks lineNumbers against the precomputed line map,
// producing merged comment+context blocks, lifted acceptable-ancestor
// blocks, and dropping test nodes when allowTests is false — then applies
// the dedup/sort pass of spec.md §4.8 step 7, unless noMerge skips it.
func collectBlocks(lineMap []*nodeInfo, lineNumbers map[int]bool, lc *langcap.Capability, content []byte, path string, allowTests, noMerge bool) []CodeBlock {
	seen := map[spanKey]bool{}
	var comments, others []CodeBlock

	sortedLines := make([]int, 0, len(lineNumbers))
	for l := range lineNumbers {
		sortedLines = append(sortedLines, l)
	}
	sort.Ints(sortedLines)

	for _, line := range sortedLines {
		idx := line - 1
		if idx < 0 || idx >= len(lineMap) || lineMap[idx] == nil {
			continue
		}
		info := lineMap[idx]
		target := info.node
		key := spanKey{int(target.StartPosition().Row), int(target.EndPosition().Row)}
		if seen[key] {
			continue
		}

		if info.isComment {
			if info.contextNode != nil {
				ctx := info.contextNode
				ctxKey := spanKey{int(ctx.StartPosition().Row), int(ctx.EndPosition().Row)}
				if !allowTests && declNameOf(ctx, content) != "" && lc.IsTestNode(declNameOf(ctx, content), path) {
					seen[key] = true
					continue
				}
				seen[key] = true
				seen[ctxKey] = true
				comments = append(comments, mergedBlock(target, ctx, lc))
				continue
			}
			seen[key] = true
			comments = append(comments, blockFromNode(target, lc))
			continue
		}

		if !allowTests && lc.IsTestNode(declNameOf(target, content), path) {
			seen[key] = true
			continue
		}

		seen[key] = true
		if info.contextNode != nil {
			ctx := info.contextNode
			ctxKey := spanKey{int(ctx.StartPosition().Row), int(ctx.EndPosition().Row)}
			if !allowTests && lc.IsTestNode(declNameOf(ctx, content), path) {
				continue
			}
			seen[ctxKey] = true
			others = append(others, blockFromNode(ctx, lc))
			continue
		}

		others = append(others, blockFromNode(target, lc))
	}

	return dedupeAndSort(comments, others, noMerge)
}

// declNameOf extracts a best-effort declaration name via the "name" field,
// used only as IsTestNode's declName hint.
func declNameOf(node *tree_sitter.Node, content []byte) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	start, end := nameNode.StartByte(), nameNode.EndByte()
	if int(end) > len(content) || start > end {
		return ""
	}
	return string(content[start:end])
}

func blockFromNode(node *tree_sitter.Node, lc *langcap.Capability) CodeBlock {
	kind := node.Kind()
	if kind == "" {
		kind = "unknown_node"
	}
	b := CodeBlock{
		StartRow:  int(node.StartPosition().Row),
		EndRow:    int(node.EndPosition().Row),
		StartByte: node.StartByte(),
		EndByte:   node.EndByte(),
		NodeType:  kind,
	}
	attachParentFunction(&b, node, lc)
	return b
}

func mergedBlock(comment, context *tree_sitter.Node, lc *langcap.Capability) CodeBlock {
	startRow := int(comment.StartPosition().Row)
	if r := int(context.StartPosition().Row); r < startRow {
		startRow = r
	}
	endRow := int(comment.EndPosition().Row)
	if r := int(context.EndPosition().Row); r > endRow {
		endRow = r
	}
	startByte := comment.StartByte()
	if b := context.StartByte(); b < startByte {
		startByte = b
	}
	endByte := comment.EndByte()
	if b := context.EndByte(); b > endByte {
		endByte = b
	}
	kind := context.Kind()
	if kind == "" {
		kind = "unknown_node"
	}
	block := CodeBlock{StartRow: startRow, EndRow: endRow, StartByte: startByte, EndByte: endByte, NodeType: kind}
	attachParentFunction(&block, context, lc)
	return block
}

// attachParentFunction fills b's Parent* fields when b's own node isn't
// itself a function/method (e.g. a Go struct_type) but is nested inside
// one, per spec.md §3's optional parent-node data. Grounded on
// original_source/src/language/parser.rs's struct_type special case, which
// attaches find_parent_function's result the same way.
func attachParentFunction(b *CodeBlock, node *tree_sitter.Node, lc *langcap.Capability) {
	if lc == nil || lc.IsFunctionKind(b.NodeType) {
		return
	}
	parent := lc.FindParentFunction(node)
	if parent == nil {
		return
	}
	b.ParentNodeType = parent.Kind()
	b.ParentStartRow = int(parent.StartPosition().Row)
	b.ParentEndRow = int(parent.EndPosition().Row)
	b.HasParent = true
}

// dedupeAndSort keeps every comment block, then adds non-comment blocks only
// if they do not overlap an already-kept non-comment block, finally sorting
// by start row — spec.md §4.8 step 7. noMerge skips the overlap filter,
// keeping every non-comment block regardless of overlap.
func dedupeAndSort(comments, others []CodeBlock, noMerge bool) []CodeBlock {
	sort.SliceStable(others, func(i, j int) bool {
		return others[i].StartRow < others[j].StartRow
	})

	keptOthers := others
	if !noMerge {
		keptOthers = nil
		for _, b := range others {
			overlaps := false
			for _, k := range keptOthers {
				if blocksOverlap(b, k) {
					overlaps = true
					break
				}
			}
			if !overlaps {
				keptOthers = append(keptOthers, b)
			}
		}
	}

	kept := append(append([]CodeBlock(nil), comments...), keptOthers...)
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].StartRow < kept[j].StartRow
	})
	return kept
}

func blocksOverlap(a, b CodeBlock) bool {
	return a.StartRow <= b.EndRow && b.StartRow <= a.EndRow
}
