package hashtag

import (
	"strings"
	"unicode"

	"github.com/crisisdesk/alertdeck/server/backend"
)

// Generate creates formatted hashtag text for an alert notification.
//
// Order of hashtags:
// 1. Urgency tier (#Critical, #Medium, #Low)
// 2. Places (up to 3, countries and states spelled out)
// 3. Needs
//
// Returns formatted string (e.g., "🏷️ #Critical, #Kyiv, #Ukraine, #Medical")
func Generate(alert backend.Alert) string {
	var allTags []string

	allTags = append(allTags, tierTag(alert.Tier()))
	allTags = append(allTags, locationTags(alert.Location)...)
	allTags = append(allTags, needTags(alert.Needs)...)

	return formatHashtagText(deduplicateTags(allTags))
}

// tierTag returns the hashtag for an urgency tier
func tierTag(tier backend.Tier) string {
	return "#" + camelCase(string(tier))
}

// deduplicateTags removes duplicate tags (case-insensitive) while preserving order.
func deduplicateTags(tags []string) []string {
	seen := make(map[string]bool)
	var uniqueTags []string

	for _, tag := range tags {
		if tag == "" || tag == "#" {
			continue
		}
		tagLower := strings.ToLower(tag)
		if !seen[tagLower] {
			uniqueTags = append(uniqueTags, tag)
			seen[tagLower] = true
		}
	}

	return uniqueTags
}

// formatHashtagText formats hashtags as comma-separated text with emoji prefix.
func formatHashtagText(tags []string) string {
	if len(tags) == 0 {
		return ""
	}

	return "🏷️ " + strings.Join(tags, ", ")
}

// camelCase joins the words of text with each first letter upper-cased.
// Characters that cannot appear in a hashtag are dropped.
func camelCase(text string) string {
	var result strings.Builder

	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		runes := []rune(word)
		result.WriteRune(unicode.ToUpper(runes[0]))
		result.WriteString(string(runes[1:]))
	}

	return result.String()
}
