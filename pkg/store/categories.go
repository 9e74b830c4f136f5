package store

// thumbnailCategories are the content categories whose detail page embeds an
// inline preview image distinct from the content file itself. Textual and
// audio works render a cover thumbnail; visual works are their own preview.
var thumbnailCategories = []string{
	"Story",
	"Poetry",
	"Prose",
	"Music",
}

// ThumbnailCategories returns the categories eligible for thumbnail downloads
func ThumbnailCategories() []string {
	out := make([]string, len(thumbnailCategories))
	copy(out, thumbnailCategories)
	return out
}

// NeedsThumbnail reports whether a submission's category downloads a separate
// thumbnail file
func NeedsThumbnail(category string) bool {
	for _, c := range thumbnailCategories {
		if c == category {
			return true
		}
	}
	return false
}
