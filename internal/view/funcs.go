package view

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

// FuncMap returns the helpers available to every template.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"icon":      Icon,
		"iconLabel": IconLabel,
		"year":      func() int { return time.Now().Year() },
		"join":      strings.Join,
		"lower":     strings.ToLower,
		"heightClass": func(h any) string {
			switch v := strings.ToLower(strings.TrimSpace(fmt.Sprint(h))); v {
			case "tall", "short":
				return "card-" + v
			default:
				return "card-medium"
			}
		},
	}
}
