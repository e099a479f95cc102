// Package notify builds bundled summary notifications and emits them through
// a pluggable sink.
package notify

import (
	"fmt"
	"hash/fnv"

	"github.com/floreteng/bundld/internal/models"
)

const (
	// ChannelID identifies the delivery channel summaries are posted on.
	ChannelID = "bundl_delivery_channel"
	// ChannelName is the user-visible channel name.
	ChannelName = "Bundled Notifications"

	// maxDetailLines caps the expanded line list in one summary.
	maxDetailLines = 5
	// maxLineTextLen caps the body excerpt in one detail line.
	maxLineTextLen = 50
)

// Summary is one bundled notification for a single source application.
type Summary struct {
	ID         int      `json:"id"`          // Deterministic per-package notification identifier.
	AppPackage string   `json:"app_package"` // Source application package.
	AppName    string   `json:"app_name"`    // Display name.
	Count      int      `json:"count"`       // Number of bundled items.
	Title      string   `json:"title"`       // "AppName (N)".
	Text       string   `json:"text"`        // Collapsed one-line body.
	Lines      []string `json:"lines"`       // Expanded detail lines, oldest first.
	Tail       string   `json:"tail"`        // "+ K more" when lines were capped.
}

// SummaryID derives the stable notification identifier for a package, so
// re-delivery for the same app updates the existing summary instead of
// posting a new one.
func SummaryID(pkg string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(pkg))
	return int(h.Sum32() & 0x7fffffff)
}

// BuildSummary composes the summary for one app group. Notifications must be
// ordered oldest first; an empty group returns a zero Summary with Count 0.
func BuildSummary(pkg string, appName string, group []models.CapturedNotification) Summary {
	if len(group) == 0 {
		return Summary{AppPackage: pkg, AppName: appName}
	}
	if appName == "" {
		appName = group[0].AppName
	}

	s := Summary{
		ID:         SummaryID(pkg),
		AppPackage: pkg,
		AppName:    appName,
		Count:      len(group),
		Title:      fmt.Sprintf("%s (%d)", appName, len(group)),
		Text:       collapsedText(group),
	}

	for i := range group {
		if i == maxDetailLines {
			break
		}
		s.Lines = append(s.Lines, detailLine(&group[i]))
	}
	if len(group) > maxDetailLines {
		s.Tail = fmt.Sprintf("+ %d more", len(group)-maxDetailLines)
	}
	return s
}

// collapsedText builds the one-line body shown in the collapsed summary.
func collapsedText(group []models.CapturedNotification) string {
	first := headline(&group[0])
	switch len(group) {
	case 1:
		return first
	case 2:
		return fmt.Sprintf("%s, %s", first, headline(&group[1]))
	default:
		return fmt.Sprintf("%s and %d more", first, len(group)-1)
	}
}

// headline picks the best single-line description of one notification.
func headline(n *models.CapturedNotification) string {
	if title := n.TitleOrEmpty(); title != "" {
		return title
	}
	if text := n.TextOrEmpty(); text != "" {
		return text
	}
	return "New notification"
}

// detailLine renders one expanded line: "title: text" with the text excerpt
// capped.
func detailLine(n *models.CapturedNotification) string {
	title := n.TitleOrEmpty()
	if title == "" {
		title = "Notification"
	}
	text := n.TextOrEmpty()
	if text == "" {
		return title
	}
	if len(text) > maxLineTextLen {
		text = text[:maxLineTextLen]
	}
	return fmt.Sprintf("%s: %s", title, text)
}
