package content

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davbaghdasaryann/ehvm2/internal/app/domain/catalog"
	"github.com/davbaghdasaryann/ehvm2/internal/notion"
)

func mustBlock(t *testing.T, raw string) notion.Block {
	t.Helper()
	var block notion.Block
	require.NoError(t, json.Unmarshal([]byte(raw), &block))
	return block
}

func TestParseBlockRichText(t *testing.T) {
	block := mustBlock(t, `{"id": "b1", "type": "paragraph", "paragraph": {"rich_text": [
		{"plain_text": "Visit the  "},
		{"plain_text": "listing", "href": "https://example.com/listing"}
	]}}`)

	parsed := parseBlock(block)
	assert.Equal(t, "Visit the listing", parsed.Text)
	assert.Equal(t, []string{"https://example.com/listing"}, parsed.Links)
}

func TestParseBlockToDoPrefixesCheckbox(t *testing.T) {
	checked := mustBlock(t, `{"id": "b1", "type": "to_do", "to_do": {
		"checked": true, "rich_text": [{"plain_text": "Ship v2"}]
	}}`)
	assert.Equal(t, "☑ Ship v2", parseBlock(checked).Text)

	unchecked := mustBlock(t, `{"id": "b2", "type": "to_do", "to_do": {
		"checked": false, "rich_text": [{"plain_text": "Write docs"}]
	}}`)
	assert.Equal(t, "☐ Write docs", parseBlock(unchecked).Text)

	empty := mustBlock(t, `{"id": "b3", "type": "to_do", "to_do": {"checked": true, "rich_text": []}}`)
	assert.Equal(t, "", parseBlock(empty).Text)
}

func TestParseBlockTableRowJoinsCells(t *testing.T) {
	block := mustBlock(t, `{"id": "b1", "type": "table_row", "table_row": {"cells": [
		[{"plain_text": "Country"}],
		[],
		[{"plain_text": "US", "href": "https://example.com/us"}]
	]}}`)

	parsed := parseBlock(block)
	assert.Equal(t, "Country | US", parsed.Text)
	assert.Equal(t, []string{"https://example.com/us"}, parsed.Links)
}

func TestParseBlockImage(t *testing.T) {
	external := mustBlock(t, `{"id": "b1", "type": "image", "image": {
		"type": "external", "external": {"url": "https://img.example.com/a.png"}
	}}`)
	assert.Equal(t, "https://img.example.com/a.png", parseBlock(external).ImageURL)

	hosted := mustBlock(t, `{"id": "b2", "type": "image", "image": {
		"type": "file", "file": {"url": "https://files.example.com/b.png"}
	}}`)
	assert.Equal(t, "https://files.example.com/b.png", parseBlock(hosted).ImageURL)
}

func TestParseBlockFileLikeTypes(t *testing.T) {
	pdf := mustBlock(t, `{"id": "b1", "type": "pdf", "pdf": {
		"file": {"url": "https://files.example.com/deck.pdf"}
	}}`)
	parsed := parseBlock(pdf)
	assert.Equal(t, "https://files.example.com/deck.pdf", parsed.Text)
	assert.Equal(t, []string{"https://files.example.com/deck.pdf"}, parsed.Links)
}

func TestParseBlockUnknownTypeSniffsRichText(t *testing.T) {
	block := mustBlock(t, `{"id": "b1", "type": "template", "template": {
		"rich_text": [{"plain_text": "Template body"}]
	}}`)
	assert.Equal(t, "Template body", parseBlock(block).Text)
}

func TestParseBlockUnknownTypeSniffsLooseText(t *testing.T) {
	block := mustBlock(t, `{"id": "b1", "type": "equation", "equation": {
		"expression": "see https://example.com/math for details"
	}}`)
	parsed := parseBlock(block)
	assert.Equal(t, "see https://example.com/math for details", parsed.Text)
	assert.Equal(t, []string{"https://example.com/math"}, parsed.Links)
}

func TestToPageBlockNormalizesTypes(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		parsed   blockContent
		wantType string
	}{
		{
			"to_do becomes bullet",
			`{"id": "b", "type": "to_do"}`,
			blockContent{Text: "☑ Done"},
			"bulleted_list_item",
		},
		{
			"code becomes quote",
			`{"id": "b", "type": "code"}`,
			blockContent{Text: "SELECT 1"},
			"quote",
		},
		{
			"table_row becomes paragraph",
			`{"id": "b", "type": "table_row"}`,
			blockContent{Text: "a | b"},
			"paragraph",
		},
		{
			"child_page becomes heading_3",
			`{"id": "b", "type": "child_page"}`,
			blockContent{Text: "Subpage"},
			"heading_3",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			node := toPageBlock(mustBlock(t, tc.raw), tc.parsed, nil)
			require.NotNil(t, node)
			assert.Equal(t, tc.wantType, node.Type)
		})
	}
}

func TestToPageBlockDropsEmptyNodes(t *testing.T) {
	node := toPageBlock(mustBlock(t, `{"id": "b", "type": "paragraph"}`), blockContent{}, nil)
	assert.Nil(t, node)

	node = toPageBlock(mustBlock(t, `{"id": "b", "type": "image"}`), blockContent{}, nil)
	assert.Nil(t, node)

	node = toPageBlock(mustBlock(t, `{"id": "b", "type": "column"}`), blockContent{}, nil)
	assert.Nil(t, node)
}

func TestToPageBlockFileLikeBecomesBookmark(t *testing.T) {
	node := toPageBlock(
		mustBlock(t, `{"id": "b", "type": "video"}`),
		blockContent{Text: "https://example.com/v.mp4"},
		nil,
	)
	require.NotNil(t, node)
	assert.Equal(t, "bookmark", node.Type)
	assert.Equal(t, "https://example.com/v.mp4", node.URL)
}

func TestToPageBlockUnknownContainerCollapses(t *testing.T) {
	only := []catalog.ContentBlock{{Type: "paragraph", Value: "inner"}}
	node := toPageBlock(mustBlock(t, `{"id": "b", "type": "synced_block"}`), blockContent{}, only)
	require.NotNil(t, node)
	assert.Equal(t, "paragraph", node.Type)
	assert.Equal(t, "inner", node.Value)

	several := []catalog.ContentBlock{
		{Type: "paragraph", Value: "one"},
		{Type: "paragraph", Value: "two"},
	}
	node = toPageBlock(mustBlock(t, `{"id": "b", "type": "synced_block"}`), blockContent{}, several)
	require.NotNil(t, node)
	assert.Equal(t, "column", node.Type)
	assert.Len(t, node.Children, 2)
}

func TestNormalizeSpacing(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeSpacing("  a  b\n\tc  "))
	assert.Equal(t, "", NormalizeSpacing("   "))
}
