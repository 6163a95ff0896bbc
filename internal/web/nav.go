package web

import (
	"strings"

	"github.com/NaveenV-27/MangaKart-ui/internal/platform/requestctx"
)

// NavItem is a rendered top-level navigation entry.
type NavItem struct {
	Href   string
	Label  string
	Active bool
}

type navEntry struct {
	path      string
	label     string
	adminOnly bool
}

var mainNav = []navEntry{
	{path: "/manga", label: "Manga"},
	{path: "/genres", label: "Genres"},
	{path: "/admin", label: "Admin", adminOnly: true},
	{path: "/profile", label: "Profile"},
}

// BuildNav renders the navigation for the current path. Admin entries are
// only shown to sessions carrying the admin cookie.
func BuildNav(currentPath string, s requestctx.Session) []NavItem {
	if currentPath == "" {
		currentPath = "/"
	}
	items := make([]NavItem, 0, len(mainNav))
	for _, it := range mainNav {
		if it.adminOnly && !s.IsAdmin() {
			continue
		}
		items = append(items, NavItem{
			Href:   it.path,
			Label:  it.label,
			Active: isActive(it.path, currentPath),
		})
	}
	return items
}

func isActive(itemPath, currentPath string) bool {
	if itemPath == "/" {
		return currentPath == "/"
	}
	return currentPath == itemPath || strings.HasPrefix(currentPath, itemPath+"/")
}
