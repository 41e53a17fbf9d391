package content

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/davbaghdasaryann/ehvm2/internal/app/domain/catalog"
	"github.com/davbaghdasaryann/ehvm2/internal/notion"
)

// ChildLister fetches the immediate children of a block.
type ChildLister interface {
	ListBlockChildren(ctx context.Context, blockID string) ([]notion.Block, error)
}

// DefaultConcurrency bounds the sibling fan-out of the block-tree walk.
const DefaultConcurrency = 3

// pageTree is the result of flattening a page: every block in depth-first
// order, toggle question/answer pairs, and the normalized content tree.
type pageTree struct {
	Blocks     []parsedBlock
	FAQs       []catalog.FAQ
	PageBlocks []catalog.ContentBlock
}

// branch is what one subtree walk yields.
type branch struct {
	blocks    []parsedBlock
	faqs      []catalog.FAQ
	textParts []string
	pageBlock *catalog.ContentBlock
}

// flattenPage walks the whole block tree of a page. Top-level blocks inherit
// the text of the closest preceding heading_1 as their section; a heading's
// own section is the heading that preceded it, not itself. Siblings are
// traversed concurrently but results keep document order.
func flattenPage(ctx context.Context, lister ChildLister, pageID string, concurrency int) (*pageTree, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	topLevel, err := lister.ListBlockChildren(ctx, pageID)
	if err != nil {
		return nil, err
	}

	sections := make([]string, len(topLevel))
	current := ""
	for i, block := range topLevel {
		sections[i] = current
		if block.Type == "heading_1" {
			if parsed := parseBlock(block); parsed.Text != "" {
				current = parsed.Text
			}
		}
	}

	branches, err := mapConcurrent(ctx, topLevel, concurrency, func(ctx context.Context, i int, block notion.Block) (branch, error) {
		return traverseBlock(ctx, lister, block, sections[i], concurrency)
	})
	if err != nil {
		return nil, err
	}

	tree := &pageTree{}
	for _, b := range branches {
		tree.Blocks = append(tree.Blocks, b.blocks...)
		tree.FAQs = append(tree.FAQs, b.faqs...)
		if b.pageBlock != nil {
			tree.PageBlocks = append(tree.PageBlocks, *b.pageBlock)
		}
	}
	return tree, nil
}

// traverseBlock flattens one subtree. The block itself is emitted before its
// descendants; children of a heading_1 switch to that heading's section.
func traverseBlock(ctx context.Context, lister ChildLister, block notion.Block, section string, concurrency int) (branch, error) {
	parsed := parseBlock(block)

	out := branch{
		blocks: []parsedBlock{{
			Type:     block.Type,
			Section:  section,
			Text:     parsed.Text,
			Links:    parsed.Links,
			ImageURL: parsed.ImageURL,
		}},
	}

	var childrenText []string
	var childPageBlocks []catalog.ContentBlock
	if block.HasChildren {
		nextSection := section
		if block.Type == "heading_1" && parsed.Text != "" {
			nextSection = parsed.Text
		}

		children, err := lister.ListBlockChildren(ctx, block.ID)
		if err != nil {
			return branch{}, err
		}

		childBranches, err := mapConcurrent(ctx, children, concurrency, func(ctx context.Context, _ int, child notion.Block) (branch, error) {
			return traverseBlock(ctx, lister, child, nextSection, concurrency)
		})
		if err != nil {
			return branch{}, err
		}

		for _, child := range childBranches {
			childrenText = append(childrenText, child.textParts...)
			out.blocks = append(out.blocks, child.blocks...)
			out.faqs = append(out.faqs, child.faqs...)
			if child.pageBlock != nil {
				childPageBlocks = append(childPageBlocks, *child.pageBlock)
			}
		}
	}

	if parsed.Text != "" {
		out.textParts = append(out.textParts, parsed.Text)
	}
	out.textParts = append(out.textParts, childrenText...)

	// A toggle reads as a question; its descendant text joined in order is
	// the answer.
	if block.Type == "toggle" && parsed.Text != "" {
		out.faqs = append(out.faqs, catalog.FAQ{
			Question: parsed.Text,
			Answer:   NormalizeSpacing(strings.Join(childrenText, " ")),
		})
	}

	out.pageBlock = toPageBlock(block, parsed, childPageBlocks)
	return out, nil
}

// mapConcurrent applies fn to every item with at most limit goroutines,
// preserving input order in the result slice. The first error cancels the
// remaining work.
func mapConcurrent[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if limit > len(items) {
		limit = len(items)
	}
	if limit < 1 {
		limit = 1
	}

	results := make([]R, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			out, err := fn(ctx, i, item)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
