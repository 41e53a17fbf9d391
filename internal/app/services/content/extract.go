package content

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/davbaghdasaryann/ehvm2/internal/app/domain/catalog"
	"github.com/davbaghdasaryann/ehvm2/internal/app/metrics"
)

const maxPaidChannels = 5

var (
	appStorePattern     = regexp.MustCompile(`(?i)apps\.apple\.com`)
	playStorePattern    = regexp.MustCompile(`(?i)play\.google\.com`)
	ndaLinkPattern      = regexp.MustCompile(`(?i)docuseal|nda`)
	httpPattern         = regexp.MustCompile(`^https?://`)
	httpPatternCI       = regexp.MustCompile(`(?i)^https?://`)
	opportunityPattern  = regexp.MustCompile(`(?i)opportunit`)
	acquisitionPattern  = regexp.MustCompile(`(?i)user acquisition`)
	channelsHeaderLine  = regexp.MustCompile(`(?i)^(active paid channels)$`)
	currencyPattern     = regexp.MustCompile(`[$€£]`)
	ratingHintPattern   = regexp.MustCompile(`⭐|\b[0-5](?:\.\d+)?\b`)
	ratingLabelPattern  = regexp.MustCompile(`(?i)rating`)
	ratingValuePattern  = regexp.MustCompile(`([0-4](?:\.\d+)?|5(?:\.0+)?)`)
	headingMetricPrefix = regexp.MustCompile(`^[^$€£\d]+`)
	metricPattern       = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?x\s*ROAS|\$\d+(?:\.\d+)?\s*CPI|\d+(?:\.\d+)?%[^,.]*)`)
	profitablePattern   = regexp.MustCompile(`(?i)profitable`)
	ndaMetricPattern    = regexp.MustCompile(`(?i)nda|sign nda`)
	mailtoPattern       = regexp.MustCompile(`(?i)^mailto:`)
	emailPattern        = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	phonePattern        = regexp.MustCompile(`\+\d[\d\s().-]{7,}\d`)
)

const contactSectionKey = "have more questions"

// Parse walks a page's block tree and extracts every listing detail the body
// can contribute: narrative copy, store links, acquisition channels, FAQ
// pairs, the detail strip, and the rendered content tree.
func Parse(ctx context.Context, lister ChildLister, pageID string, concurrency int) (catalog.ParsedContent, error) {
	started := time.Now()

	tree, err := flattenPage(ctx, lister, pageID, concurrency)
	if err != nil {
		return catalog.ParsedContent{}, err
	}

	parsed := extract(tree)
	metrics.RecordParse(time.Since(started))
	return parsed, nil
}

func extract(tree *pageTree) catalog.ParsedContent {
	blocks := tree.Blocks

	var linkCandidates []string
	for _, block := range blocks {
		linkCandidates = append(linkCandidates, block.Links...)
	}
	for _, block := range blocks {
		linkCandidates = append(linkCandidates, extractURLs(block.Text)...)
	}
	linkPool := uniqueStrings(linkCandidates)

	out := catalog.ParsedContent{
		AppStoreLink:  firstMatching(linkPool, appStorePattern),
		PlayStoreLink: firstMatching(linkPool, playStorePattern),
		FAQs:          tree.FAQs,
		PageBlocks:    tree.PageBlocks,
		DetailBlocks:  buildDetailBlocks(blocks),
		Opportunities: sectionLines(blocks, opportunityPattern, nil),
	}

	for _, block := range blocks {
		if block.Type == "paragraph" && block.Section == "" && isNarrativeText(block.Text) {
			out.About = block.Text
			break
		}
	}

	for _, block := range blocks {
		if block.Type == "image" && block.Section == "" && block.ImageURL != "" {
			out.ScreenshotsImage = block.ImageURL
			break
		}
	}
	if out.ScreenshotsImage == "" {
		for _, block := range blocks {
			if block.Type == "image" && block.ImageURL != "" {
				out.ScreenshotsImage = block.ImageURL
				break
			}
		}
	}

	acquisitionLines := sectionLines(blocks, acquisitionPattern, channelsHeaderLine)
	ndaLink := firstMatching(linkPool, ndaLinkPattern)
	if ndaLink == "" {
		ndaLink = firstMatching(linkPool, httpPattern)
	}
	if len(acquisitionLines) > 0 {
		paid := make([]catalog.Channel, 0, maxPaidChannels)
		for i, line := range acquisitionLines {
			if i >= maxPaidChannels {
				break
			}
			channel := inferChannel(line, i)
			channel.Subtitle = "Paid"
			channel.Metric = inferMetric(line)
			channel.Link = ndaLink
			paid = append(paid, channel)
		}
		out.UserAcquisition = &catalog.UserAcquisition{Paid: paid, Organic: []catalog.Channel{}}
	}

	for _, block := range blocks {
		if block.Type == "heading_1" && currencyPattern.MatchString(block.Text) {
			out.HighlightsMRR = cleanHeadingMetric(block.Text)
			break
		}
	}

	for _, block := range blocks {
		if block.Type == "heading_1" && ratingHintPattern.MatchString(block.Text) {
			if rating, ok := parseRating(block.Text); ok {
				out.Rating = &rating
				out.HighlightsRating = formatRating(rating)
			}
			break
		}
	}

	for _, block := range blocks {
		if block.Type == "paragraph" && block.Section == "" && ratingLabelPattern.MatchString(block.Text) {
			out.RatingLabel = block.Text
			break
		}
	}

	for _, block := range blocks {
		if block.Type == "heading_1" &&
			strings.Contains(strings.ToLower(block.Section), contactSectionKey) &&
			!strings.Contains(strings.ToLower(block.Text), contactSectionKey) {
			out.ContactName = block.Text
			break
		}
	}
	for _, block := range blocks {
		if block.Type == "image" &&
			strings.Contains(strings.ToLower(block.Section), contactSectionKey) &&
			block.ImageURL != "" {
			out.ContactImage = block.ImageURL
			break
		}
	}

	var allText strings.Builder
	for i, block := range blocks {
		if i > 0 {
			allText.WriteString(" \n ")
		}
		allText.WriteString(block.Text)
	}
	if mailto := firstMatching(linkPool, mailtoPattern); mailto != "" {
		out.ContactEmail = strings.TrimSpace(mailtoPattern.ReplaceAllString(mailto, ""))
	}
	if out.ContactEmail == "" {
		out.ContactEmail = emailPattern.FindString(allText.String())
	}
	out.ContactPhone = strings.TrimSpace(phonePattern.FindString(allText.String()))

	return out
}

// sectionLines collects the unique narrative lines of textual blocks whose
// section matches the pattern, skipping lines matched by exclude.
func sectionLines(blocks []parsedBlock, pattern, exclude *regexp.Regexp) []string {
	var lines []string
	for _, block := range blocks {
		if !pattern.MatchString(block.Section) {
			continue
		}
		switch block.Type {
		case "quote", "paragraph", "bulleted_list_item", "numbered_list_item":
		default:
			continue
		}
		text := NormalizeSpacing(block.Text)
		if !isNarrativeText(text) {
			continue
		}
		if exclude != nil && exclude.MatchString(text) {
			continue
		}
		lines = append(lines, text)
	}
	return uniqueStrings(lines)
}

// isNarrativeText reports whether a line reads as prose rather than a stray
// link, arrow caption, or fragment.
func isNarrativeText(value string) bool {
	text := NormalizeSpacing(value)
	if len([]rune(text)) < 18 {
		return false
	}
	if httpPatternCI.MatchString(text) {
		return false
	}
	if strings.HasPrefix(text, "↗") {
		return false
	}
	return true
}

// inferChannel guesses the acquisition network behind a free-form line by
// keyword. Unrecognized lines become generic numbered channels.
func inferChannel(line string, index int) catalog.Channel {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "apple") || strings.Contains(lower, "asa") ||
		strings.Contains(lower, "app store") || strings.Contains(lower, "ios"):
		return catalog.Channel{Name: "Apple Search Ads", Icon: "/images/Icons/app-store.svg", MetricStyle: "dark"}
	case strings.Contains(lower, "google") || strings.Contains(lower, "play") ||
		strings.Contains(lower, "admob") || strings.Contains(lower, "android"):
		return catalog.Channel{Name: "Google Ads", Icon: "/images/Icons/google-play.svg", MetricStyle: "light"}
	case strings.Contains(lower, "instagram"):
		return catalog.Channel{Name: "Instagram", Icon: "/images/Icons/instagram.svg", MetricStyle: "light"}
	case strings.Contains(lower, "meta") || strings.Contains(lower, "facebook"):
		return catalog.Channel{Name: "Meta Ads", Icon: "/images/Icons/meta-ads.svg", MetricStyle: "light"}
	case strings.Contains(lower, "tiktok"):
		return catalog.Channel{Name: "TikTok Ads", Icon: "/images/Icons/tiktok.svg", MetricStyle: "dark"}
	}
	return catalog.Channel{
		Name:        "Channel " + strconv.Itoa(index+1),
		Icon:        "/images/Icons/meta-ads.svg",
		MetricStyle: "light",
	}
}

// inferMetric pulls the headline figure out of a channel line: a ROAS
// multiple, a CPI price, or a percentage clause win in that order, then the
// profitability and NDA markers, then the truncated line itself.
func inferMetric(line string) string {
	normalized := NormalizeSpacing(line)
	if match := metricPattern.FindString(normalized); match != "" {
		return match
	}
	if profitablePattern.MatchString(normalized) {
		return "Profitable"
	}
	if ndaMetricPattern.MatchString(normalized) {
		return "Metrics (NDA)"
	}
	if runes := []rune(normalized); len(runes) > 36 {
		return string(runes[:33]) + "..."
	}
	return normalized
}

// parseRating reads the first rating-like number out of the text, capped at
// the 0-5 scale.
func parseRating(value string) (float64, bool) {
	match := ratingValuePattern.FindString(value)
	if match == "" {
		return 0, false
	}
	rating, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return rating, true
}

// cleanHeadingMetric drops any leading decoration before the first currency
// symbol or digit.
func cleanHeadingMetric(value string) string {
	return NormalizeSpacing(headingMetricPrefix.ReplaceAllString(value, ""))
}

func formatRating(rating float64) string {
	return strconv.FormatFloat(rating, 'f', -1, 64)
}

func firstMatching(values []string, pattern *regexp.Regexp) string {
	for _, value := range values {
		if pattern.MatchString(value) {
			return value
		}
	}
	return ""
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
