package site

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "furarchiver/pkg/errors"
)

// ErrDeleted is returned when a detail page reports that the submission no
// longer exists on the site.
var ErrDeleted = errs.New(errs.ErrorTypeNotFound, "submission no longer exists")

// notFoundPhrase is the message the site renders on a dead submission page
const notFoundPhrase = "not in our database"

// SubmissionFields is the structured metadata extracted from a detail page
type SubmissionFields struct {
	SubmissionID  int64
	Title         string
	Description   string
	Tags          string
	Username      string
	AccountName   string
	ContentURL    string
	ContentName   string
	ThumbnailURL  string
	ThumbnailName string
	DateUploaded  string
	Rating        string
	Category      string
}

// Map converts the fields into the store's metadata update shape
func (f *SubmissionFields) Map() map[string]interface{} {
	return map[string]interface{}{
		"submission_id":  f.SubmissionID,
		"title":          f.Title,
		"description":    f.Description,
		"tags":           f.Tags,
		"username":       f.Username,
		"account_name":   f.AccountName,
		"content_url":    f.ContentURL,
		"content_name":   f.ContentName,
		"thumbnail_url":  f.ThumbnailURL,
		"thumbnail_name": f.ThumbnailName,
		"date_uploaded":  f.DateUploaded,
		"rating":         f.Rating,
		"category":       f.Category,
	}
}

// Comment is one comment extracted from a detail page
type Comment struct {
	AnchorID    string
	Username    string
	Description string
	DatePosted  string
}

// ParseSubmissionPage extracts structured fields from a submission detail
// page. Returns ErrDeleted when the page body carries the site's not-found
// message.
func ParseSubmissionPage(doc *goquery.Document, pageURL string) (*SubmissionFields, error) {
	if strings.Contains(doc.Find("section.notice-message, div.section-body").Text(), notFoundPhrase) {
		return nil, ErrDeleted
	}

	fields := &SubmissionFields{
		SubmissionID: SubmissionIDFromURL(pageURL),
	}

	fields.Title = strings.TrimSpace(doc.Find("div.submission-title h2").First().Text())
	fields.Description = strings.TrimSpace(doc.Find("div.submission-description").First().Text())

	var tags []string
	doc.Find("section.tags-row a").Each(func(_ int, sel *goquery.Selection) {
		if tag := strings.TrimSpace(sel.Text()); tag != "" {
			tags = append(tags, tag)
		}
	})
	fields.Tags = strings.Join(tags, " ")

	owner := doc.Find("div.submission-id-sub-container a strong").First()
	fields.Username = strings.TrimSpace(owner.Text())
	if href, ok := owner.Parent().Attr("href"); ok {
		fields.AccountName = accountFromUserHref(href)
	}
	if fields.AccountName == "" {
		fields.AccountName = strings.ToLower(fields.Username)
	}

	if href, ok := doc.Find("div.download a").First().Attr("href"); ok {
		fields.ContentURL = NormalizeURL(href)
		fields.ContentName = FilenameFromURL(fields.ContentURL)
	}

	if src, ok := doc.Find("img#submissionImg").First().Attr("data-preview-src"); ok {
		fields.ThumbnailURL = NormalizeURL(src)
		fields.ThumbnailName = FilenameFromURL(fields.ThumbnailURL)
	}

	info := doc.Find("section.info.text")
	fields.Category = strings.TrimSpace(info.Find("span.category-name").First().Text())
	fields.Rating = strings.TrimSpace(doc.Find("span.rating-box").First().Text())
	if date, ok := doc.Find("span.popup_date").First().Attr("title"); ok {
		fields.DateUploaded = strings.TrimSpace(date)
	} else {
		fields.DateUploaded = strings.TrimSpace(doc.Find("span.popup_date").First().Text())
	}

	if fields.SubmissionID == 0 {
		return nil, errs.Newf(errs.ErrorTypeParsing, "no submission id in %s", pageURL)
	}
	if fields.ContentURL == "" {
		return nil, errs.Newf(errs.ErrorTypeParsing, "no download link on %s", pageURL)
	}

	return fields, nil
}

// ParseGalleryPage extracts submission links from a gallery or scraps listing
// page. An empty result means the listing is exhausted.
func ParseGalleryPage(doc *goquery.Document, baseURL string) []string {
	var links []string
	doc.Find("figure figcaption a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !strings.Contains(href, "/view/") {
			return
		}
		links = append(links, absoluteURL(baseURL, href))
	})
	return links
}

// ParseFavoritesPage extracts submission links plus the next-page cursor from
// a favorites listing. An empty cursor means the listing is exhausted.
func ParseFavoritesPage(doc *goquery.Document, baseURL string) ([]string, string) {
	links := ParseGalleryPage(doc, baseURL)

	next := ""
	doc.Find("a.button.standard.right").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(sel.Text()), "next") {
			return true
		}
		if href, ok := sel.Attr("href"); ok {
			next = href
			return false
		}
		return true
	})

	return links, next
}

// ParseComments extracts the comment thread from a detail page. Comments are
// keyed by their page-local cid anchor.
func ParseComments(doc *goquery.Document) []Comment {
	var comments []Comment
	doc.Find("div.comment_container").Each(func(_ int, sel *goquery.Selection) {
		anchor, ok := sel.Find("a[id^='cid:']").First().Attr("id")
		if !ok {
			return
		}
		comments = append(comments, Comment{
			AnchorID:    strings.TrimPrefix(anchor, "cid:"),
			Username:    strings.TrimSpace(sel.Find("strong.comment_username").First().Text()),
			Description: strings.TrimSpace(sel.Find("div.comment_text").First().Text()),
			DatePosted:  strings.TrimSpace(sel.Find("span.popup_date").First().Text()),
		})
	})
	return comments
}

// NormalizeURL converts protocol-relative urls to absolute https urls
func NormalizeURL(raw string) string {
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return raw
}

// SubmissionIDFromURL parses the numeric id out of a /view/<id>/ url
func SubmissionIDFromURL(pageURL string) int64 {
	idx := strings.Index(pageURL, "/view/")
	if idx < 0 {
		return 0
	}
	rest := strings.Trim(pageURL[idx+len("/view/"):], "/")
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		rest = rest[:slash]
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// FilenameFromURL returns the last path segment of a url
func FilenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	path := strings.TrimRight(u.Path, "/")
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

func absoluteURL(baseURL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return strings.TrimRight(baseURL, "/") + href
}

func accountFromUserHref(href string) string {
	href = strings.Trim(href, "/")
	if idx := strings.LastIndexByte(href, '/'); idx >= 0 {
		return href[idx+1:]
	}
	return href
}
