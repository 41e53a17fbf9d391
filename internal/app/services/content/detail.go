package content

import (
	"regexp"
	"strings"

	"github.com/davbaghdasaryann/ehvm2/internal/app/domain/catalog"
)

var (
	detailStartPattern = regexp.MustCompile(`(?i)(acquisition|main geos|user growth|channels?)`)
	detailStopPattern  = regexp.MustCompile(`(?i)(opportunit|faq|have more questions)`)
)

// buildDetailBlocks carves the acquisition-focused slice out of a flattened
// page: everything between the first heading that opens an acquisition-style
// section and the heading that begins the opportunities, FAQ, or contact
// material, reduced to display primitives.
func buildDetailBlocks(blocks []parsedBlock) []catalog.DetailBlock {
	var out []catalog.DetailBlock
	inSection := false

	for _, block := range blocks {
		text := NormalizeSpacing(block.Text)
		isHeading := strings.HasPrefix(block.Type, "heading_")

		if isHeading && (detailStartPattern.MatchString(text) ||
			detailStartPattern.MatchString(strings.ToLower(block.Section))) {
			inSection = true
		}
		if !inSection {
			continue
		}
		if isHeading && detailStopPattern.MatchString(text) {
			break
		}

		switch {
		case isHeading && text != "":
			out = append(out, catalog.DetailBlock{Type: "heading", Value: text})
		case block.Type == "divider":
			out = append(out, catalog.DetailBlock{Type: "divider"})
		case block.Type == "image" && block.ImageURL != "":
			out = append(out, catalog.DetailBlock{Type: "image", Src: block.ImageURL})
		case (block.Type == "quote" || block.Type == "callout") && text != "":
			out = append(out, catalog.DetailBlock{Type: "quote", Value: text})
		case (block.Type == "paragraph" || block.Type == "bulleted_list_item" ||
			block.Type == "numbered_list_item") && text != "" && text != "/":
			out = append(out, catalog.DetailBlock{Type: "text", Value: text})
		}
	}

	return compactDetailBlocks(out)
}

// compactDetailBlocks removes immediate repeats: back-to-back dividers and
// duplicated values or images collapse to one.
func compactDetailBlocks(blocks []catalog.DetailBlock) []catalog.DetailBlock {
	var compacted []catalog.DetailBlock
	for _, block := range blocks {
		if len(compacted) > 0 {
			previous := compacted[len(compacted)-1]
			if block.Type == "divider" && previous.Type == "divider" {
				continue
			}
			if block.Type == previous.Type && block.Value != "" && block.Value == previous.Value {
				continue
			}
			if block.Type == "image" && previous.Type == "image" &&
				block.Src != "" && block.Src == previous.Src {
				continue
			}
		}
		compacted = append(compacted, block)
	}
	return compacted
}
