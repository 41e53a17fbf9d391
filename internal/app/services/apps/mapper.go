package apps

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	gosimpleslug "github.com/gosimple/slug"

	"github.com/davbaghdasaryann/ehvm2/internal/app/domain/catalog"
	"github.com/davbaghdasaryann/ehvm2/internal/app/services/content"
	"github.com/davbaghdasaryann/ehvm2/internal/notion"
)

const (
	defaultIcon        = "/images/EHVM_Icon.png"
	defaultScreenshots = "/images/app-screenshots.png"
	untitledName       = "Untitled App"
	placeholderValue   = "—"
)

var defaultContact = catalog.Contact{
	Name:  "Evelin Herrera",
	Image: "/images/evelin.png",
	Email: "hi@evelinherrera.com",
	Phone: "+1 415 798 1766",
}

// excludedFieldNames are columns already surfaced through dedicated summary
// fields; they never show up in the generic field list.
var excludedFieldNames = map[string]bool{
	"Name":                true,
	"Slug":                true,
	"Icon":                true,
	"PaidChannelsJSON":    true,
	"OrganicChannelsJSON": true,
	"FAQsJSON":            true,
	"ContactImage":        true,
	"Screenshots":         true,
}

var (
	mrrCardPattern       = regexp.MustCompile(`(\d+(?:\.\d+)?\s*[kKmM]?)`)
	mrrSpacePattern      = regexp.MustCompile(`\s+`)
	subtitleSeparator    = regexp.MustCompile(`[:\-·](.+)$`)
	webPlatformPattern   = regexp.MustCompile(`(?i)\bweb\b`)
	platformLabelPrefix  = regexp.MustCompile(`^[^A-Za-z0-9]+`)
	multilineSplitToLine = regexp.MustCompile(`\r?\n`)
)

// mapPageToApp builds a listing summary out of a database page. Sold pages
// map to nil and disappear from the catalog.
func mapPageToApp(page notion.Page) *catalog.App {
	props := page.Properties

	if isSoldPage(page) {
		return nil
	}

	name := content.Title(props["Name"])
	if name == "" {
		name = untitledName
	}

	rawMRR := content.Text(props["MRR"])
	mrr := parseMRRForCard(rawMRR)
	if mrr == "" {
		mrr = placeholderValue
	}

	rating, _ := content.Number(props["Rating"])

	category := content.NormalizeSpacing(content.Text(props["Category"]))
	if category == "" {
		category = "Other"
	}

	subtitle := content.Text(props["Subtitle"])
	if subtitle == "" {
		subtitle = deriveSubtitle(name)
	}

	followers := content.Text(props["Followers"])
	featured, _ := content.Checkbox(props["Featured"])
	platform, platformEmoji := parsePlatform(content.MultiSelectNames(props["OS"]))

	icon := content.FileURL(props["Icon"])
	if icon == "" {
		icon = page.Icon.URL()
	}
	if icon == "" {
		icon = defaultIcon
	}

	about := content.Text(props["About"])
	if about == "" {
		about = name + " is listed for acquisition on EHVM."
	}

	screenshots := content.FileURL(props["Screenshots"])
	if screenshots == "" {
		screenshots = defaultScreenshots
	}

	highlights := catalog.Highlights{
		MRR:            content.Text(props["HighlightsMRR"]),
		Rating:         content.Text(props["HighlightsRating"]),
		RatingLabel:    content.Text(props["HighlightsRatingLabel"]),
		Followers:      content.Text(props["HighlightsFollowers"]),
		FollowersLabel: content.Text(props["HighlightsFollowersLabel"]),
	}
	if highlights.MRR == "" {
		if mrr != placeholderValue {
			highlights.MRR = "$" + mrr
		} else {
			highlights.MRR = placeholderValue
		}
	}
	if highlights.Rating == "" {
		if rating > 0 {
			highlights.Rating = strconv.FormatFloat(rating, 'f', -1, 64)
		} else {
			highlights.Rating = placeholderValue
		}
	}
	if highlights.RatingLabel == "" {
		highlights.RatingLabel = "Rating"
	}
	if highlights.Followers == "" {
		highlights.Followers = followers
	}
	if highlights.Followers == "" {
		highlights.Followers = placeholderValue
	}
	if highlights.FollowersLabel == "" {
		highlights.FollowersLabel = "Followers"
	}

	contact := catalog.Contact{
		Name:  content.Text(props["ContactName"]),
		Image: content.FileURL(props["ContactImage"]),
		Email: content.Text(props["ContactEmail"]),
		Phone: content.Text(props["ContactPhone"]),
	}
	if contact.Name == "" {
		contact.Name = defaultContact.Name
	}
	if contact.Image == "" {
		contact.Image = defaultContact.Image
	}
	if contact.Email == "" {
		contact.Email = defaultContact.Email
	}
	if contact.Phone == "" {
		contact.Phone = defaultContact.Phone
	}

	developerCountry := content.Text(props["DeveloperCountry"])
	if developerCountry == "" {
		developerCountry = "Unknown"
	}
	developerFlag := content.Text(props["DeveloperFlag"])
	if developerFlag == "" {
		developerFlag = "🌍"
	}

	return &catalog.App{
		NotionPageID:        page.ID,
		Slug:                pageSlug(page),
		Name:                name,
		Subtitle:            subtitle,
		Icon:                icon,
		MRR:                 mrr,
		Platform:            platform,
		PlatformEmoji:       platformEmoji,
		MonetizationType:    content.Text(props["Monetization type"]),
		HearingOffersStatus: content.StatusName(props["Hearing offers"]),
		Rating:              rating,
		Followers:           followers,
		Category:            category,
		About:               about,
		Highlights:          highlights,
		ScreenshotsImage:    screenshots,
		AppStoreLink:        content.URLValue(props["AppStoreLink"]),
		PlayStoreLink:       content.URLValue(props["PlayStoreLink"]),
		UserAcquisition: catalog.UserAcquisition{
			Paid:    parseChannelsJSON(content.Text(props["PaidChannelsJSON"]), "Paid", "/images/Icons/meta-ads.svg", true),
			Organic: parseChannelsJSON(content.Text(props["OrganicChannelsJSON"]), "", "/images/Icons/app-store.svg", false),
		},
		Opportunities:    parseMultiline(content.Text(props["Opportunities"])),
		DeveloperCountry: developerCountry,
		DeveloperFlag:    developerFlag,
		FAQs:             parseFAQsJSON(content.Text(props["FAQsJSON"])),
		Contact:          contact,
		Featured:         featured,
		Fields:           decodeFields(props),
	}
}

// pageSlug picks the listing slug: the Slug column wins, then the slugified
// name, then the dashless page ID.
func pageSlug(page notion.Page) string {
	if s := slugify(content.Text(page.Properties["Slug"])); s != "" {
		return s
	}
	if s := slugify(content.Title(page.Properties["Name"])); s != "" {
		return s
	}
	return strings.ReplaceAll(page.ID, "-", "")
}

func slugify(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return gosimpleslug.Make(value)
}

func isSoldPage(page notion.Page) bool {
	status := content.StatusName(page.Properties["Hearing offers"])
	return strings.EqualFold(status, "sold")
}

// decodeFields renders the remaining database columns as generic label/value
// rows, sorted by label for a stable order.
func decodeFields(props map[string]notion.Property) []catalog.Field {
	labels := make([]string, 0, len(props))
	for label := range props {
		if excludedFieldNames[label] {
			continue
		}
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var fields []catalog.Field
	for _, label := range labels {
		field, ok := content.DecodeField(props[label])
		if !ok {
			continue
		}
		field.Label = label
		fields = append(fields, field)
	}
	return fields
}

// parseMRRForCard reduces a free-form revenue string to its compact figure,
// e.g. "around 12.5 k per month" becomes "12.5K".
func parseMRRForCard(raw string) string {
	normalized := content.NormalizeSpacing(raw)
	match := mrrCardPattern.FindString(normalized)
	if match == "" {
		return ""
	}
	return strings.ToUpper(mrrSpacePattern.ReplaceAllString(match, ""))
}

// parsePlatform folds the OS column values into a display platform label.
func parsePlatform(rawValues []string) (string, string) {
	values := make([]string, 0, len(rawValues))
	for _, value := range rawValues {
		values = append(values, content.NormalizeSpacing(value))
	}

	hasIOS := false
	hasAndroid := false
	hasWeb := false
	for _, value := range values {
		lower := strings.ToLower(value)
		if strings.Contains(lower, "ios") {
			hasIOS = true
		}
		if strings.Contains(lower, "android") {
			hasAndroid = true
		}
		if webPlatformPattern.MatchString(value) {
			hasWeb = true
		}
	}

	switch {
	case hasIOS && hasAndroid:
		return "iOS + Android", "📱"
	case hasIOS:
		return "iOS", "🔵"
	case hasAndroid:
		return "Android", "🟢"
	case hasWeb:
		return "Web", "💻"
	}

	if len(values) > 0 {
		var parts []string
		for _, value := range values {
			cleaned := strings.TrimSpace(platformLabelPrefix.ReplaceAllString(value, ""))
			if cleaned != "" {
				parts = append(parts, cleaned)
			}
		}
		if label := strings.Join(parts, " + "); label != "" {
			return label, "📱"
		}
	}

	return "iOS", "📱"
}

// deriveSubtitle takes the tail of a "Name: Subtitle" style title.
func deriveSubtitle(name string) string {
	match := subtitleSeparator.FindStringSubmatch(name)
	if len(match) == 2 {
		return strings.TrimSpace(match[1])
	}
	return ""
}

func parseMultiline(value string) []string {
	if strings.TrimSpace(value) == "" {
		return []string{}
	}
	var parts []string
	for _, line := range multilineSplitToLine.Split(value, -1) {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if parts == nil {
		return []string{}
	}
	return parts
}

// parseChannelsJSON reads a curated channel list out of a JSON column.
// Malformed input yields an empty list rather than an error; editors fix the
// column, the page keeps rendering.
func parseChannelsJSON(raw, defaultSubtitle, defaultIconPath string, styled bool) []catalog.Channel {
	if strings.TrimSpace(raw) == "" {
		return []catalog.Channel{}
	}

	var wire []struct {
		Name        string `json:"name"`
		Subtitle    string `json:"subtitle"`
		Icon        string `json:"icon"`
		Metric      string `json:"metric"`
		MetricStyle string `json:"metricStyle"`
		Link        string `json:"link"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return []catalog.Channel{}
	}

	channels := make([]catalog.Channel, 0, len(wire))
	for _, item := range wire {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		channel := catalog.Channel{
			Name:     name,
			Subtitle: strings.TrimSpace(item.Subtitle),
			Icon:     strings.TrimSpace(item.Icon),
			Metric:   strings.TrimSpace(item.Metric),
			Link:     strings.TrimSpace(item.Link),
		}
		if channel.Subtitle == "" {
			channel.Subtitle = defaultSubtitle
		}
		if channel.Icon == "" {
			channel.Icon = defaultIconPath
		}
		if channel.Metric == "" {
			channel.Metric = "N/A"
		}
		if styled {
			if item.MetricStyle == "dark" {
				channel.MetricStyle = "dark"
			} else {
				channel.MetricStyle = "light"
			}
		}
		channels = append(channels, channel)
	}
	return channels
}

func parseFAQsJSON(raw string) []catalog.FAQ {
	if strings.TrimSpace(raw) == "" {
		return []catalog.FAQ{}
	}

	var wire []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return []catalog.FAQ{}
	}

	faqs := make([]catalog.FAQ, 0, len(wire))
	for _, item := range wire {
		question := strings.TrimSpace(item.Question)
		if question == "" {
			continue
		}
		faqs = append(faqs, catalog.FAQ{Question: question, Answer: strings.TrimSpace(item.Answer)})
	}
	return faqs
}
