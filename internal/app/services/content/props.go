// Package content turns raw workspace pages into listing content: it decodes
// property values, walks and flattens block trees, and applies the heuristics
// that recover listing fields from free-form page text.
package content

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/davbaghdasaryann/ehvm2/internal/app/domain/catalog"
	"github.com/davbaghdasaryann/ehvm2/internal/notion"
)

// Title returns the concatenated plain text of a title property.
func Title(prop notion.Property) string {
	if prop.Type != "title" {
		return ""
	}
	return joinPlainText(prop.Title)
}

// Text returns the plain text of a rich_text, title, or select property.
// Other property types yield an empty string.
func Text(prop notion.Property) string {
	switch prop.Type {
	case "rich_text":
		return joinPlainText(prop.RichText)
	case "title":
		return joinPlainText(prop.Title)
	case "select":
		if prop.Select != nil {
			return prop.Select.Name
		}
	}
	return ""
}

// FileURL returns the URL of the first file of a files property.
func FileURL(prop notion.Property) string {
	if prop.Type != "files" || len(prop.Files) == 0 {
		return ""
	}
	return prop.Files[0].URL()
}

// URLValue returns the value of a url property.
func URLValue(prop notion.Property) string {
	if prop.Type != "url" || prop.URL == nil {
		return ""
	}
	return *prop.URL
}

// Number returns the value of a number property.
func Number(prop notion.Property) (float64, bool) {
	if prop.Type != "number" || prop.Number == nil {
		return 0, false
	}
	return *prop.Number, true
}

// Checkbox returns the value of a checkbox property.
func Checkbox(prop notion.Property) (bool, bool) {
	if prop.Type != "checkbox" || prop.Checkbox == nil {
		return false, false
	}
	return *prop.Checkbox, true
}

// StatusName returns the selected status option name.
func StatusName(prop notion.Property) string {
	if prop.Type != "status" || prop.Status == nil {
		return ""
	}
	return prop.Status.Name
}

// MultiSelectNames returns the option names of a multi_select property; a
// plain select counts as a single-option list.
func MultiSelectNames(prop notion.Property) []string {
	switch prop.Type {
	case "multi_select":
		names := make([]string, 0, len(prop.MultiSelect))
		for _, option := range prop.MultiSelect {
			if option.Name != "" {
				names = append(names, option.Name)
			}
		}
		return names
	case "select":
		if prop.Select != nil && prop.Select.Name != "" {
			return []string{prop.Select.Name}
		}
	}
	return nil
}

// DecodeField renders an arbitrary property as a label-less display field.
// Empty or unsupported values report false.
func DecodeField(prop notion.Property) (catalog.Field, bool) {
	switch prop.Type {
	case "title":
		return richTextField(prop.Title)
	case "rich_text":
		return richTextField(prop.RichText)
	case "number":
		if prop.Number == nil {
			return catalog.Field{}, false
		}
		return catalog.Field{Value: formatNumber(*prop.Number)}, true
	case "select":
		if prop.Select == nil || prop.Select.Name == "" {
			return catalog.Field{}, false
		}
		return catalog.Field{Value: prop.Select.Name}, true
	case "multi_select":
		names := make([]string, 0, len(prop.MultiSelect))
		for _, option := range prop.MultiSelect {
			if option.Name != "" {
				names = append(names, option.Name)
			}
		}
		if len(names) == 0 {
			return catalog.Field{}, false
		}
		return catalog.Field{Value: strings.Join(names, ", ")}, true
	case "status":
		if prop.Status == nil || prop.Status.Name == "" {
			return catalog.Field{}, false
		}
		return catalog.Field{Value: prop.Status.Name}, true
	case "url":
		if prop.URL == nil || *prop.URL == "" {
			return catalog.Field{}, false
		}
		return catalog.Field{Value: *prop.URL, URL: *prop.URL}, true
	case "email":
		if prop.Email == nil || *prop.Email == "" {
			return catalog.Field{}, false
		}
		return catalog.Field{Value: *prop.Email, URL: "mailto:" + *prop.Email}, true
	case "phone_number":
		if prop.PhoneNumber == nil || *prop.PhoneNumber == "" {
			return catalog.Field{}, false
		}
		return catalog.Field{Value: *prop.PhoneNumber, URL: "tel:" + *prop.PhoneNumber}, true
	case "checkbox":
		if prop.Checkbox == nil {
			return catalog.Field{}, false
		}
		return catalog.Field{Value: yesNo(*prop.Checkbox)}, true
	case "date":
		value := formatDateRange(prop.Date)
		if value == "" {
			return catalog.Field{}, false
		}
		return catalog.Field{Value: value}, true
	case "files":
		if len(prop.Files) == 0 {
			return catalog.Field{}, false
		}
		url := prop.Files[0].URL()
		if url == "" {
			return catalog.Field{}, false
		}
		value := "Open file"
		if len(prop.Files) > 1 {
			value = fmt.Sprintf("%d files", len(prop.Files))
		}
		return catalog.Field{Value: value, URL: url}, true
	case "people":
		if len(prop.People) == 0 {
			return catalog.Field{}, false
		}
		names := userNames(prop.People)
		if len(names) > 0 {
			return catalog.Field{Value: strings.Join(names, ", ")}, true
		}
		return catalog.Field{Value: fmt.Sprintf("%d people", len(prop.People))}, true
	case "relation":
		if len(prop.Relation) == 0 {
			return catalog.Field{}, false
		}
		return catalog.Field{Value: fmt.Sprintf("%d related", len(prop.Relation))}, true
	case "formula":
		return formulaField(prop.Formula)
	case "rollup":
		return rollupField(prop.Rollup)
	case "created_time":
		if prop.CreatedTime == "" {
			return catalog.Field{}, false
		}
		return catalog.Field{Value: formatTimestamp(prop.CreatedTime)}, true
	case "last_edited_time":
		if prop.LastEditedTime == "" {
			return catalog.Field{}, false
		}
		return catalog.Field{Value: formatTimestamp(prop.LastEditedTime)}, true
	case "created_by":
		return userField(prop.CreatedBy)
	case "last_edited_by":
		return userField(prop.LastEditedBy)
	case "unique_id":
		if prop.UniqueID == nil {
			return catalog.Field{}, false
		}
		prefix := ""
		if prop.UniqueID.Prefix != nil {
			prefix = *prop.UniqueID.Prefix
		}
		return catalog.Field{Value: fmt.Sprintf("%s%d", prefix, prop.UniqueID.Number)}, true
	}
	return catalog.Field{}, false
}

func richTextField(spans []notion.RichText) (catalog.Field, bool) {
	value := joinPlainText(spans)
	if value == "" {
		return catalog.Field{}, false
	}
	return catalog.Field{Value: value, URL: firstLink(spans)}, true
}

func formulaField(formula *notion.Formula) (catalog.Field, bool) {
	if formula == nil {
		return catalog.Field{}, false
	}
	switch formula.Type {
	case "string":
		if formula.String == nil || *formula.String == "" {
			return catalog.Field{}, false
		}
		return catalog.Field{Value: *formula.String}, true
	case "number":
		if formula.Number == nil {
			return catalog.Field{}, false
		}
		return catalog.Field{Value: formatNumber(*formula.Number)}, true
	case "boolean":
		value := false
		if formula.Boolean != nil {
			value = *formula.Boolean
		}
		return catalog.Field{Value: yesNo(value)}, true
	case "date":
		value := formatDateRange(formula.Date)
		if value == "" {
			return catalog.Field{}, false
		}
		return catalog.Field{Value: value}, true
	}
	return catalog.Field{}, false
}

func rollupField(rollup *notion.Rollup) (catalog.Field, bool) {
	if rollup == nil {
		return catalog.Field{}, false
	}
	switch rollup.Type {
	case "number":
		if rollup.Number == nil {
			return catalog.Field{}, false
		}
		return catalog.Field{Value: formatNumber(*rollup.Number)}, true
	case "date":
		value := formatDateRange(rollup.Date)
		if value == "" {
			return catalog.Field{}, false
		}
		return catalog.Field{Value: value}, true
	case "array":
		if len(rollup.Array) == 0 {
			return catalog.Field{}, false
		}
		parts := make([]string, 0, len(rollup.Array))
		for _, item := range rollup.Array {
			if value := rollupItemValue(item); value != "" {
				parts = append(parts, value)
			}
		}
		if len(parts) > 0 {
			return catalog.Field{Value: strings.Join(parts, ", ")}, true
		}
		return catalog.Field{Value: fmt.Sprintf("%d items", len(rollup.Array))}, true
	}
	return catalog.Field{}, false
}

// rollupItemValue renders one rollup array element. The item shapes reuse the
// property union, so this is a reduced DecodeField without link handling.
func rollupItemValue(item notion.Property) string {
	switch item.Type {
	case "number":
		if item.Number == nil {
			return ""
		}
		return formatNumber(*item.Number)
	case "checkbox":
		if item.Checkbox == nil {
			return "No"
		}
		return yesNo(*item.Checkbox)
	case "url":
		if item.URL == nil {
			return ""
		}
		return *item.URL
	case "email":
		if item.Email == nil {
			return ""
		}
		return *item.Email
	case "phone_number":
		if item.PhoneNumber == nil {
			return ""
		}
		return *item.PhoneNumber
	case "select":
		if item.Select == nil {
			return ""
		}
		return item.Select.Name
	case "status":
		if item.Status == nil {
			return ""
		}
		return item.Status.Name
	case "multi_select":
		names := make([]string, 0, len(item.MultiSelect))
		for _, option := range item.MultiSelect {
			if option.Name != "" {
				names = append(names, option.Name)
			}
		}
		return strings.Join(names, ", ")
	case "rich_text":
		return joinPlainText(item.RichText)
	case "title":
		return joinPlainText(item.Title)
	case "date":
		return formatDateRange(item.Date)
	}
	return ""
}

func userField(user *notion.User) (catalog.Field, bool) {
	if user == nil || strings.TrimSpace(user.Name) == "" {
		return catalog.Field{}, false
	}
	return catalog.Field{Value: strings.TrimSpace(user.Name)}, true
}

func userNames(users []notion.User) []string {
	names := make([]string, 0, len(users))
	for _, user := range users {
		if name := strings.TrimSpace(user.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func joinPlainText(spans []notion.RichText) string {
	var b strings.Builder
	for _, span := range spans {
		b.WriteString(span.PlainText)
	}
	return strings.TrimSpace(b.String())
}

// firstLink returns the first hyperlink carried by any span, preferring the
// resolved href over the authored link.
func firstLink(spans []notion.RichText) string {
	for _, span := range spans {
		if span.Href != "" {
			return span.Href
		}
		if span.Text != nil && span.Text.Link != nil && span.Text.Link.URL != "" {
			return span.Text.Link.URL
		}
	}
	return ""
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func yesNo(value bool) string {
	if value {
		return "Yes"
	}
	return "No"
}

// formatDateRange renders a date or date range as "start" or "start -> end".
func formatDateRange(value *notion.DateValue) string {
	if value == nil || value.Start == "" {
		return ""
	}
	if value.End == nil || *value.End == "" {
		return value.Start
	}
	return value.Start + " -> " + *value.End
}

// formatTimestamp truncates an RFC 3339 timestamp to its date part; malformed
// input passes through unchanged.
func formatTimestamp(value string) string {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return parsed.UTC().Format("2006-01-02")
}
