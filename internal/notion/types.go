package notion

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Page is one record of a workspace database.
type Page struct {
	Object     string              `json:"object"`
	ID         string              `json:"id"`
	Icon       *Icon               `json:"icon"`
	Properties map[string]Property `json:"properties"`
}

// Icon is a page icon; only file-backed variants carry a URL.
type Icon struct {
	Type        string   `json:"type"`
	External    *FileRef `json:"external"`
	File        *FileRef `json:"file"`
	CustomEmoji *FileRef `json:"custom_emoji"`
}

// URL returns the icon image URL, if the icon has one.
func (i *Icon) URL() string {
	if i == nil {
		return ""
	}
	switch i.Type {
	case "file":
		if i.File != nil {
			return i.File.URL
		}
	case "external":
		if i.External != nil {
			return i.External.URL
		}
	case "custom_emoji":
		if i.CustomEmoji != nil {
			return i.CustomEmoji.URL
		}
	}
	return ""
}

// FileRef is a hosted or external file reference.
type FileRef struct {
	URL string `json:"url"`
}

// RichText is one span of formatted text.
type RichText struct {
	Type      string        `json:"type"`
	PlainText string        `json:"plain_text"`
	Href      string        `json:"href"`
	Text      *RichTextText `json:"text"`
}

// RichTextText is the literal payload of a text-typed span.
type RichTextText struct {
	Content string `json:"content"`
	Link    *Link  `json:"link"`
}

// Link is a hyperlink target.
type Link struct {
	URL string `json:"url"`
}

// SelectOption is a select/multi-select/status option.
type SelectOption struct {
	Name string `json:"name"`
}

// DateValue is a date or date range.
type DateValue struct {
	Start string  `json:"start"`
	End   *string `json:"end"`
}

// File is one entry of a files property.
type File struct {
	Name     string   `json:"name"`
	External *FileRef `json:"external"`
	File     *FileRef `json:"file"`
}

// URL returns the file's download URL regardless of hosting.
func (f File) URL() string {
	if f.External != nil {
		return f.External.URL
	}
	if f.File != nil {
		return f.File.URL
	}
	return ""
}

// User is a workspace member or bot reference.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UniqueID is a sequential identifier property value.
type UniqueID struct {
	Prefix *string `json:"prefix"`
	Number int64   `json:"number"`
}

// Formula is a resolved formula value, tagged by its result type.
type Formula struct {
	Type    string     `json:"type"`
	String  *string    `json:"string"`
	Number  *float64   `json:"number"`
	Boolean *bool      `json:"boolean"`
	Date    *DateValue `json:"date"`
}

// Rollup is a resolved rollup value. Array payloads reuse Property since the
// item shapes are a subset of the property union.
type Rollup struct {
	Type   string     `json:"type"`
	Number *float64   `json:"number"`
	Date   *DateValue `json:"date"`
	Array  []Property `json:"array"`
}

// Property is one value of the page property union. The wire format tags the
// variant in Type and nests its payload under the matching key; unused fields
// stay zero.
type Property struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Title          []RichText     `json:"title"`
	RichText       []RichText     `json:"rich_text"`
	Number         *float64       `json:"number"`
	Select         *SelectOption  `json:"select"`
	MultiSelect    []SelectOption `json:"multi_select"`
	Status         *SelectOption  `json:"status"`
	URL            *string        `json:"url"`
	Email          *string        `json:"email"`
	PhoneNumber    *string        `json:"phone_number"`
	Checkbox       *bool          `json:"checkbox"`
	Date           *DateValue     `json:"date"`
	Files          []File         `json:"files"`
	People         []User         `json:"people"`
	Relation       []User         `json:"relation"`
	Formula        *Formula       `json:"formula"`
	Rollup         *Rollup        `json:"rollup"`
	CreatedTime    string         `json:"created_time"`
	LastEditedTime string         `json:"last_edited_time"`
	CreatedBy      *User          `json:"created_by"`
	LastEditedBy   *User          `json:"last_edited_by"`
	UniqueID       *UniqueID      `json:"unique_id"`
}

// Block is one content node of a page. The type-keyed payload is kept raw
// because the union is open-ended; known shapes are decoded on demand and
// unknown ones are sniffed with gjson.
type Block struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	HasChildren bool   `json:"has_children"`

	raw json.RawMessage
}

// UnmarshalJSON keeps the full raw message alongside the envelope fields.
func (b *Block) UnmarshalJSON(data []byte) error {
	type envelope Block
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*b = Block(env)
	b.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON restores the original wire form when available.
func (b Block) MarshalJSON() ([]byte, error) {
	if len(b.raw) > 0 {
		return b.raw, nil
	}
	type envelope Block
	return json.Marshal(envelope(b))
}

// Payload returns the raw JSON nested under the block's type key, or nil when
// absent.
func (b Block) Payload() json.RawMessage {
	if len(b.raw) == 0 || b.Type == "" {
		return nil
	}
	res := gjson.GetBytes(b.raw, escapeGJSONPath(b.Type))
	if !res.Exists() {
		return nil
	}
	return json.RawMessage(res.Raw)
}

// PayloadResult returns the type-keyed payload as a gjson result for loose
// field sniffing on unknown block types.
func (b Block) PayloadResult() gjson.Result {
	if len(b.raw) == 0 || b.Type == "" {
		return gjson.Result{}
	}
	return gjson.GetBytes(b.raw, escapeGJSONPath(b.Type))
}

func escapeGJSONPath(key string) string {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '*', '?', '\\':
			out = append(out, '\\')
		}
		out = append(out, key[i])
	}
	return string(out)
}

// Database is the schema metadata of a workspace database.
type Database struct {
	ID         string                  `json:"id"`
	Properties map[string]PropertyMeta `json:"properties"`
}

// PropertyMeta describes one schema column.
type PropertyMeta struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// queryResponse is one page of database query results.
type queryResponse struct {
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// childrenResponse is one page of block children.
type childrenResponse struct {
	Results    []Block `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}
