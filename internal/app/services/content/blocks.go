package content

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/davbaghdasaryann/ehvm2/internal/app/domain/catalog"
	"github.com/davbaghdasaryann/ehvm2/internal/notion"
)

// parsedBlock is the flat projection of one block: its text content, the
// links it carries, and the heading section it appeared under.
type parsedBlock struct {
	Type     string
	Section  string
	Text     string
	Links    []string
	ImageURL string
}

// blockContent is the section-independent part of a parsed block.
type blockContent struct {
	Text     string
	Links    []string
	ImageURL string
}

var urlPattern = regexp.MustCompile(`https?://[^\s)]+`)

// richTextKinds are the block types whose payload is a plain rich_text array.
var richTextKinds = map[string]bool{
	"paragraph":          true,
	"heading_1":          true,
	"heading_2":          true,
	"heading_3":          true,
	"code":               true,
	"quote":              true,
	"bulleted_list_item": true,
	"numbered_list_item": true,
	"toggle":             true,
	"callout":            true,
}

// parseBlock extracts the text, links, and image URL of a single block.
func parseBlock(block notion.Block) blockContent {
	payload := block.Payload()

	switch {
	case richTextKinds[block.Type]:
		var body struct {
			RichText []notion.RichText `json:"rich_text"`
		}
		_ = json.Unmarshal(payload, &body)
		text, links := parseRichText(body.RichText)
		return blockContent{Text: text, Links: links}

	case block.Type == "to_do":
		var body struct {
			RichText []notion.RichText `json:"rich_text"`
			Checked  bool              `json:"checked"`
		}
		_ = json.Unmarshal(payload, &body)
		text, links := parseRichText(body.RichText)
		if text != "" {
			box := "☐"
			if body.Checked {
				box = "☑"
			}
			text = box + " " + text
		}
		return blockContent{Text: text, Links: links}

	case block.Type == "table_row":
		var body struct {
			Cells [][]notion.RichText `json:"cells"`
		}
		_ = json.Unmarshal(payload, &body)
		var parts []string
		var links []string
		for _, cell := range body.Cells {
			text, cellLinks := parseRichText(cell)
			if text == "" {
				continue
			}
			parts = append(parts, text)
			links = append(links, cellLinks...)
		}
		return blockContent{Text: strings.Join(parts, " | "), Links: links}

	case block.Type == "child_page" || block.Type == "child_database":
		var body struct {
			Title string `json:"title"`
		}
		_ = json.Unmarshal(payload, &body)
		return blockContent{Text: NormalizeSpacing(body.Title)}

	case block.Type == "embed" || block.Type == "bookmark":
		var body struct {
			URL string `json:"url"`
		}
		_ = json.Unmarshal(payload, &body)
		if body.URL == "" {
			return blockContent{}
		}
		return blockContent{Text: body.URL, Links: []string{body.URL}}

	case block.Type == "image":
		var body notion.File
		_ = json.Unmarshal(payload, &body)
		return blockContent{ImageURL: body.URL()}

	case block.Type == "file" || block.Type == "pdf" ||
		block.Type == "audio" || block.Type == "video":
		url := fileLikeURL(payload)
		if url == "" {
			return blockContent{}
		}
		return blockContent{Text: url, Links: []string{url}}

	default:
		return parseUnknownBlock(block)
	}
}

// parseUnknownBlock sniffs the payload of an unrecognized block type: a
// rich_text array wins, otherwise any loose text/title/expression string.
func parseUnknownBlock(block notion.Block) blockContent {
	payload := block.PayloadResult()
	if !payload.Exists() {
		return blockContent{}
	}

	if rich := payload.Get("rich_text"); rich.IsArray() {
		var spans []notion.RichText
		_ = json.Unmarshal([]byte(rich.Raw), &spans)
		text, links := parseRichText(spans)
		return blockContent{Text: text, Links: links}
	}

	for _, key := range []string{"text", "title", "expression"} {
		value := payload.Get(key)
		if !value.Exists() {
			continue
		}
		text := NormalizeSpacing(value.String())
		if text == "" {
			continue
		}
		return blockContent{Text: text, Links: extractURLs(text)}
	}
	return blockContent{}
}

// fileLikeURL resolves the download URL of a file-carrying payload.
func fileLikeURL(payload json.RawMessage) string {
	var body struct {
		External *notion.FileRef `json:"external"`
		File     *notion.FileRef `json:"file"`
		URL      string          `json:"url"`
	}
	_ = json.Unmarshal(payload, &body)
	if body.External != nil && body.External.URL != "" {
		return body.External.URL
	}
	if body.File != nil && body.File.URL != "" {
		return body.File.URL
	}
	return body.URL
}

// parseRichText joins the plain text of the spans and collects their links.
func parseRichText(spans []notion.RichText) (string, []string) {
	var b strings.Builder
	var links []string
	for _, span := range spans {
		b.WriteString(span.PlainText)
		if span.Href != "" {
			links = append(links, span.Href)
		} else if span.Text != nil && span.Text.Link != nil && span.Text.Link.URL != "" {
			links = append(links, span.Text.Link.URL)
		}
	}
	return NormalizeSpacing(b.String()), links
}

// toPageBlock normalizes a raw block into the rendered content-tree node.
// Unsupported types degrade to the closest supported shape; empty nodes are
// dropped (nil return).
func toPageBlock(block notion.Block, parsed blockContent, children []catalog.ContentBlock) *catalog.ContentBlock {
	textual := func(kind string) *catalog.ContentBlock {
		if parsed.Text == "" && len(children) == 0 {
			return nil
		}
		return &catalog.ContentBlock{
			Type:     kind,
			Value:    parsed.Text,
			Links:    parsed.Links,
			Children: children,
		}
	}

	switch block.Type {
	case "paragraph", "heading_1", "heading_2", "heading_3", "quote",
		"bulleted_list_item", "numbered_list_item", "toggle", "callout":
		return textual(block.Type)
	case "to_do":
		return textual("bulleted_list_item")
	case "code":
		return textual("quote")
	case "table_row":
		return textual("paragraph")
	case "child_page", "child_database":
		if parsed.Text == "" && len(children) == 0 {
			return nil
		}
		return &catalog.ContentBlock{Type: "heading_3", Value: parsed.Text, Children: children}
	case "embed", "bookmark":
		if parsed.Text == "" {
			return nil
		}
		return &catalog.ContentBlock{Type: block.Type, URL: parsed.Text}
	case "image":
		if parsed.ImageURL == "" {
			return nil
		}
		return &catalog.ContentBlock{Type: "image", Src: parsed.ImageURL}
	case "file", "pdf", "audio", "video":
		if parsed.Text == "" {
			return nil
		}
		return &catalog.ContentBlock{Type: "bookmark", URL: parsed.Text}
	case "divider":
		return &catalog.ContentBlock{Type: "divider"}
	case "column":
		if len(children) == 0 {
			return nil
		}
		return &catalog.ContentBlock{Type: "column", Children: children}
	case "column_list":
		if len(children) == 0 {
			return nil
		}
		return &catalog.ContentBlock{Type: "column_list", Children: children}
	default:
		// Unknown containers collapse: a single child floats up, several are
		// grouped as a column.
		if len(children) == 1 {
			child := children[0]
			return &child
		}
		if len(children) > 1 {
			return &catalog.ContentBlock{Type: "column", Children: children}
		}
		return nil
	}
}

var spacePattern = regexp.MustCompile(`\s+`)

// NormalizeSpacing collapses all runs of whitespace (non-breaking spaces
// included) into single spaces and trims the ends.
func NormalizeSpacing(value string) string {
	value = strings.ReplaceAll(value, "\u00a0", " ")
	return strings.TrimSpace(spacePattern.ReplaceAllString(value, " "))
}

// extractURLs returns every http(s) URL embedded in the text.
func extractURLs(value string) []string {
	return urlPattern.FindAllString(value, -1)
}
