package site

import (
	"fmt"
	"strings"
)

// GalleryPageURL builds the url for one page of a user's gallery listing
func GalleryPageURL(baseURL, username string, page int) string {
	return fmt.Sprintf("%s/gallery/%s/%d/", strings.TrimRight(baseURL, "/"), username, page)
}

// ScrapsPageURL builds the url for one page of a user's scraps listing
func ScrapsPageURL(baseURL, username string, page int) string {
	return fmt.Sprintf("%s/scraps/%s/%d/", strings.TrimRight(baseURL, "/"), username, page)
}

// FavoritesURL builds the url for a user's favorites listing. cursor is the
// next-page href from the previous page, or empty for the first page.
func FavoritesURL(baseURL, username, cursor string) string {
	base := strings.TrimRight(baseURL, "/")
	if cursor == "" {
		return fmt.Sprintf("%s/favorites/%s/", base, username)
	}
	if strings.HasPrefix(cursor, "http://") || strings.HasPrefix(cursor, "https://") {
		return cursor
	}
	return base + cursor
}
