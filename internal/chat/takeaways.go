package chat

import (
	"strings"
	"unicode"
)

const maxTakeaways = 5

// ExtractTakeaways pulls the bullet points that follow a "Key takeaways"
// heading out of a reply. Replies without the heading yield nil.
func ExtractTakeaways(reply string) []string {
	lines := strings.Split(reply, "\n")
	start := -1
	for i, l := range lines {
		h := strings.ToLower(strings.Trim(strings.TrimSpace(l), "#*: "))
		if strings.HasPrefix(h, "key takeaways") {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}

	var out []string
	for _, l := range lines[start:] {
		l = strings.TrimSpace(l)
		if l == "" {
			if len(out) > 0 {
				break
			}
			continue
		}
		item, ok := bullet(l)
		if !ok {
			break
		}
		if item != "" {
			out = append(out, item)
		}
		if len(out) == maxTakeaways {
			break
		}
	}
	return out
}

// bullet strips "-", "*", "•" or "1." / "1)" markers.
func bullet(l string) (string, bool) {
	for _, p := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(l, p) {
			return strings.TrimSpace(l[len(p):]), true
		}
	}
	i := 0
	for i < len(l) && unicode.IsDigit(rune(l[i])) {
		i++
	}
	if i > 0 && i < len(l) && (l[i] == '.' || l[i] == ')') {
		return strings.TrimSpace(l[i+1:]), true
	}
	return "", false
}
