package feed

import (
	"fmt"
	"html"
)

// Placeholders used when a feed entry omits a field. Formatting never fails.
const (
	noTitle       = "No title!"
	noDescription = "No description!"
	noLink        = "No link!"
)

// FormatPost renders an item as the Telegram HTML payload:
// bold title, description, link.
func FormatPost(it Item) string {
	title := it.Title
	if title == "" {
		title = noTitle
	}
	description := it.Description
	if description == "" {
		description = noDescription
	}
	link := it.Link
	if link == "" {
		link = noLink
	}
	return fmt.Sprintf("<b>%s</b>:\n%s\n%s", html.EscapeString(title), description, link)
}
