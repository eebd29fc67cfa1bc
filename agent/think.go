package agent

import "strings"

const thinkClose = "</think>"

// StripThinkTags drops reasoning markup: everything up to and including the
// first closing think tag. Text without a closing tag is returned unchanged.
func StripThinkTags(s string) string {
	_, after, found := strings.Cut(s, thinkClose)
	if !found {
		return s
	}
	return strings.TrimSpace(after)
}
