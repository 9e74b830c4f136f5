// Package layout computes the canonical on-disk locations for archived files.
//
// The filesystem root is organized as root/ownerUsername/{gallery|scraps|
// favorites}/filename, with thumbnails under a thumbnail/ subfolder of the
// same owner directory. Freshly downloaded content lands flat in the root and
// is moved into place by the reconciler.
package layout

import (
	"path/filepath"
	"strings"

	"furarchiver/pkg/store"
)

// DownloadPath is where the content worker first writes a file, before the
// reconciler moves it to its canonical location.
func DownloadPath(root, contentName string) string {
	return filepath.Join(root, contentName)
}

// ContentDir resolves the canonical directory for a submission's content from
// its owner and category subfolder.
func ContentDir(root string, sub *store.Submission) string {
	switch {
	case sub.IsFavorite && sub.FavoriteUsername != "":
		return filepath.Join(root, sub.FavoriteUsername, "favorites")
	case sub.IsScrap:
		return filepath.Join(root, ownerOf(sub), "scraps")
	default:
		return filepath.Join(root, ownerOf(sub), "gallery")
	}
}

// ContentPath resolves the canonical full path for a submission's content file
func ContentPath(root string, sub *store.Submission) string {
	return filepath.Join(ContentDir(root, sub), sub.ContentName)
}

// ThumbnailDir resolves the thumbnail directory nested under the owner
func ThumbnailDir(root string, sub *store.Submission) string {
	return filepath.Join(root, ownerOf(sub), "thumbnail")
}

// ThumbnailPath resolves the full path for a submission's thumbnail file
func ThumbnailPath(root string, sub *store.Submission) string {
	return filepath.Join(ThumbnailDir(root, sub), sub.ThumbnailName)
}

// ValidName reports whether a recorded filename can exist on disk. Empty
// names and names with a trailing dot are artifacts of broken harvests.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	if strings.HasSuffix(name, ".") {
		return false
	}
	return true
}

func ownerOf(sub *store.Submission) string {
	if sub.AccountName != "" {
		return sub.AccountName
	}
	return strings.ToLower(sub.Username)
}
