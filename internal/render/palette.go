package render

import "strings"

const DefaultColor = "#00ff00"

// Palette is the set of stroke colours a walker can choose from.
var Palette = []string{"#00ff00", "#ff0000", "#0000ff", "#ffff00", "#ff00ff"}

// CanonicalColor lower-cases c and reports whether it belongs to Palette.
func CanonicalColor(c string) (string, bool) {
	c = strings.ToLower(strings.TrimSpace(c))
	for _, p := range Palette {
		if p == c {
			return c, true
		}
	}
	return "", false
}
