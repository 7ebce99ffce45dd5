package gallery

import "strings"

// Assets maps short keys to images bundled with the site.
type Assets map[string]string

// DefaultAssets lists the designs shipped under web/static/designs.
func DefaultAssets() Assets {
	return Assets{
		"brand-identity":      "/static/designs/brand-identity.svg",
		"social-campaign":     "/static/designs/social-campaign.svg",
		"poster-design":       "/static/designs/poster-design.svg",
		"logo-collection":     "/static/designs/logo-collection.svg",
		"ui-mockups":          "/static/designs/ui-mockups.svg",
		"marketing-materials": "/static/designs/marketing-materials.svg",
	}
}

// Resolve turns an entry image reference into something a browser can load.
// URLs and site paths pass through; known keys map to their bundled path;
// anything else is returned unchanged.
func (a Assets) Resolve(image string) string {
	image = strings.TrimSpace(image)
	if image == "" || IsURL(image) || strings.HasPrefix(image, "/") {
		return image
	}
	if path, ok := a[image]; ok {
		return path
	}
	return image
}

// IsURL reports whether ref is an absolute http(s) or data URL.
func IsURL(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "data:")
}
