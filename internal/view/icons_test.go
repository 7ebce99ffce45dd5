package view

import (
	"strings"
	"testing"
)

func TestIconFallsBackToDefault(t *testing.T) {
	if IconSVG("unknown") != defaultIcon.SVG {
		t.Fatalf("expected default icon for unknown key")
	}
	if IconSVG(" GitHub ") == defaultIcon.SVG {
		t.Fatalf("expected github icon to resolve case-insensitively")
	}
	if !HasIcon("warning") || HasIcon("nope") {
		t.Fatalf("unexpected HasIcon result")
	}
	if IconLabel("linkedin") != "LinkedIn" {
		t.Fatalf("unexpected label %q", IconLabel("linkedin"))
	}
}

func TestEveryIconIsSVG(t *testing.T) {
	for _, icon := range iconDefinitions {
		if !strings.HasPrefix(icon.SVG, "<svg") || !strings.HasSuffix(icon.SVG, "</svg>") {
			t.Fatalf("icon %s is not a single svg element", icon.Key)
		}
	}
}

func TestHeightClass(t *testing.T) {
	fn := FuncMap()["heightClass"].(func(any) string)
	if got := fn("tall"); got != "card-tall" {
		t.Fatalf("got %q", got)
	}
	if got := fn("weird"); got != "card-medium" {
		t.Fatalf("got %q", got)
	}
}
