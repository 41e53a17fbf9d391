// Package catalog defines the listing domain model: app summaries served by
// the catalog API and the block structures parsed out of listing pages.
package catalog

// App is one marketplace listing.
type App struct {
	NotionPageID        string          `json:"notionPageId,omitempty"`
	Slug                string          `json:"slug"`
	Name                string          `json:"name"`
	Subtitle            string          `json:"subtitle"`
	Icon                string          `json:"icon"`
	MRR                 string          `json:"mrr"`
	Platform            string          `json:"platform"`
	PlatformEmoji       string          `json:"platformEmoji"`
	MonetizationType    string          `json:"monetizationType,omitempty"`
	HearingOffersStatus string          `json:"hearingOffersStatus,omitempty"`
	Rating              float64         `json:"rating"`
	Followers           string          `json:"followers,omitempty"`
	Category            string          `json:"category"`
	About               string          `json:"about"`
	Highlights          Highlights      `json:"highlights"`
	ScreenshotsImage    string          `json:"screenshotsImage"`
	AppStoreLink        string          `json:"appStoreLink,omitempty"`
	PlayStoreLink       string          `json:"playStoreLink,omitempty"`
	UserAcquisition     UserAcquisition `json:"userAcquisition"`
	Opportunities       []string        `json:"opportunities"`
	DeveloperCountry    string          `json:"developerCountry"`
	DeveloperFlag       string          `json:"developerFlag"`
	FAQs                []FAQ           `json:"faqs"`
	Contact             Contact         `json:"contact"`
	Featured            bool            `json:"featured,omitempty"`
	Fields              []Field         `json:"notionDbFields,omitempty"`
	DetailBlocks        []DetailBlock   `json:"notionDetailBlocks,omitempty"`
	PageBlocks          []ContentBlock  `json:"notionPageBlocks,omitempty"`
}

// Highlights are the headline figures shown on a listing card.
type Highlights struct {
	MRR            string `json:"mrr"`
	Rating         string `json:"rating"`
	RatingLabel    string `json:"ratingLabel"`
	Followers      string `json:"followers"`
	FollowersLabel string `json:"followersLabel"`
}

// UserAcquisition groups the acquisition channels of a listing.
type UserAcquisition struct {
	Paid    []Channel `json:"paid"`
	Organic []Channel `json:"organic"`
}

// Channel is one acquisition channel. MetricStyle is only meaningful for paid
// channels and is either "dark" or "light".
type Channel struct {
	Name        string `json:"name"`
	Subtitle    string `json:"subtitle"`
	Icon        string `json:"icon"`
	Metric      string `json:"metric"`
	MetricStyle string `json:"metricStyle,omitempty"`
	Link        string `json:"link,omitempty"`
}

// FAQ is one question with an optional answer.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
}

// Contact is the listing contact card.
type Contact struct {
	Name  string `json:"name"`
	Image string `json:"image"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Field is one generic database column rendered as a label/value row.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
	URL   string `json:"url,omitempty"`
}

// DetailBlock is one entry of the flattened acquisition-detail strip. Type is
// one of "heading", "text", "quote", "image", "divider".
type DetailBlock struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
	Src   string `json:"src,omitempty"`
}

// ContentBlock is one node of the normalized page-content tree.
type ContentBlock struct {
	Type     string         `json:"type"`
	Value    string         `json:"value,omitempty"`
	Src      string         `json:"src,omitempty"`
	URL      string         `json:"url,omitempty"`
	Links    []string       `json:"links,omitempty"`
	Children []ContentBlock `json:"children,omitempty"`
}

// ParsedContent is everything extracted from a listing's page body. Zero-value
// fields mean the page did not yield that piece; the mapper keeps the property
// driven value in that case.
type ParsedContent struct {
	About            string
	AppStoreLink     string
	PlayStoreLink    string
	ScreenshotsImage string
	Opportunities    []string
	FAQs             []FAQ
	UserAcquisition  *UserAcquisition
	DetailBlocks     []DetailBlock
	PageBlocks       []ContentBlock
	ContactName      string
	ContactImage     string
	ContactEmail     string
	ContactPhone     string
	HighlightsMRR    string
	HighlightsRating string
	RatingLabel      string
	Rating           *float64
}
