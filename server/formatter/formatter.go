package formatter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mattermost/mattermost/server/public/model"

	"github.com/crisisdesk/alertdeck/server/backend"
)

// Tier colors
const (
	ColorCritical = "#D24B4E" // Red 🔴
	ColorMedium   = "#FF9900" // Orange 🟠
	ColorLow      = "#3DB887" // Green 🟢
)

// Tier emojis
const (
	EmojiCritical = "🔴"
	EmojiMedium   = "🟠"
	EmojiLow      = "🟢"
)

const (
	maxMessageLength     = 500
	maxResourceLogLength = 1000
)

// FormatAlert converts a stored alert into a Mattermost SlackAttachment
// color coded by urgency tier.
func FormatAlert(alert backend.Alert) *model.SlackAttachment {
	tier := alert.Tier()

	attachment := &model.SlackAttachment{
		Fallback: fmt.Sprintf("%s urgency alert (%d): %s", tier, alert.UrgencyScore, truncateText(alert.Message, 140)),
		Color:    getTierColor(tier),
		Text:     fmt.Sprintf("#### %s %s\n%s", getTierEmoji(tier), Title(alert), truncateText(alert.Message, maxMessageLength)),
	}

	var fields []*model.SlackAttachmentField

	// Score and received time side by side
	fields = append(fields,
		&model.SlackAttachmentField{
			Title: "Urgency Score",
			Value: strconv.Itoa(alert.UrgencyScore),
			Short: true,
		},
		&model.SlackAttachmentField{
			Title: "Received",
			Value: formatTime(alert.ReceivedAt),
			Short: true,
		},
	)

	if alert.HasLocation() {
		fields = append(fields, &model.SlackAttachmentField{
			Title: "Location",
			Value: formatLocation(alert),
			Short: true,
		})
	}

	if alert.PeopleAffected != nil {
		fields = append(fields, &model.SlackAttachmentField{
			Title: "People Affected",
			Value: strconv.Itoa(*alert.PeopleAffected),
			Short: true,
		})
	}

	if len(alert.Needs) > 0 {
		fields = append(fields, &model.SlackAttachmentField{
			Title: "Needs",
			Value: strings.Join(alert.Needs, ", "),
			Short: false,
		})
	}

	if len(alert.UrgencyReasons) > 0 {
		fields = append(fields, &model.SlackAttachmentField{
			Title: "Urgency Reasons",
			Value: formatBulletList(alert.UrgencyReasons),
			Short: false,
		})
	}

	if len(alert.MatchedResources) > 0 {
		fields = append(fields, &model.SlackAttachmentField{
			Title: "Matched Resources",
			Value: formatResources(alert.MatchedResources),
			Short: false,
		})
	}

	if alert.ResourceLog != "" {
		fields = append(fields, &model.SlackAttachmentField{
			Title: "Resource Log",
			Value: truncateText(alert.ResourceLog, maxResourceLogLength),
			Short: false,
		})
	}

	attachment.Fields = fields
	attachment.Footer = fmt.Sprintf("AlertDeck | %s | %s", tier, alert.ID)

	return attachment
}

// Title is a one-line summary used as the attachment heading
func Title(alert backend.Alert) string {
	title := fmt.Sprintf("%s urgency", capitalize(string(alert.Tier())))
	if alert.HasLocation() {
		title += " in " + strings.Join(alert.Location, ", ")
	}
	return title
}

// getTierColor returns the color code for a tier
func getTierColor(tier backend.Tier) string {
	switch tier {
	case backend.TierCritical:
		return ColorCritical
	case backend.TierMedium:
		return ColorMedium
	default:
		return ColorLow
	}
}

// getTierEmoji returns the emoji for a tier
func getTierEmoji(tier backend.Tier) string {
	switch tier {
	case backend.TierCritical:
		return EmojiCritical
	case backend.TierMedium:
		return EmojiMedium
	default:
		return EmojiLow
	}
}

// formatTime formats a time.Time to a readable string
func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05 MST")
}

// formatLocation joins the place names and appends the confidence when known
func formatLocation(alert backend.Alert) string {
	location := strings.Join(alert.Location, ", ")
	if alert.LocationConfidence != "" {
		location += fmt.Sprintf(" (%s confidence)", alert.LocationConfidence)
	}
	return location
}

// formatResources renders one bullet per resource: name, type, ETA and status
func formatResources(resources []backend.Resource) string {
	lines := make([]string, len(resources))
	for i, resource := range resources {
		line := fmt.Sprintf("**%s**", resource.Name)
		if resource.Type != "" {
			line += fmt.Sprintf(" (%s)", resource.Type)
		}
		if resource.ETA != "" {
			line += fmt.Sprintf(" ETA %s", resource.ETA)
		}
		if resource.Status != "" {
			line += fmt.Sprintf(" [%s]", resource.Status)
		}
		lines[i] = "• " + line
	}
	return strings.Join(lines, "\n")
}

// formatBulletList formats a slice of strings as a bulleted list
func formatBulletList(items []string) string {
	bullets := make([]string, len(items))
	for i, item := range items {
		bullets[i] = fmt.Sprintf("• %s", item)
	}
	return strings.Join(bullets, "\n")
}

// truncateText truncates text to maxLen runes, adding "..." if truncated
func truncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
