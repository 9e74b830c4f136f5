package site

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

const submissionPageHTML = `
<html><body>
<div class="submission-title"><h2>Sunset Over The Ridge</h2></div>
<div class="submission-id-sub-container">
  <a href="/user/somecreator/"><strong>SomeCreator</strong></a>
</div>
<div class="submission-description">
  A quick painting from last weekend.
</div>
<section class="tags-row">
  <a href="/search/@keywords landscape">landscape</a>
  <a href="/search/@keywords painting">painting</a>
</section>
<div class="download"><a href="//d.example.net/art/somecreator/1700000000/1700000000.somecreator_sunset.png">Download</a></div>
<img id="submissionImg" data-preview-src="//t.example.net/55555555@400-1700000000.jpg" src="//t.example.net/55555555@600-1700000000.jpg">
<section class="info text">
  <span class="category-name">Artwork</span>
</section>
<span class="rating-box">General</span>
<span class="popup_date" title="Nov 14, 2023 08:00 PM">2 years ago</span>
</body></html>`

func TestParseSubmissionPage(t *testing.T) {
	doc := docFromHTML(t, submissionPageHTML)

	fields, err := ParseSubmissionPage(doc, "https://www.example.com/view/55555555/")
	require.NoError(t, err)

	assert.Equal(t, int64(55555555), fields.SubmissionID)
	assert.Equal(t, "Sunset Over The Ridge", fields.Title)
	assert.Equal(t, "A quick painting from last weekend.", fields.Description)
	assert.Equal(t, "landscape painting", fields.Tags)
	assert.Equal(t, "SomeCreator", fields.Username)
	assert.Equal(t, "somecreator", fields.AccountName)
	assert.Equal(t, "https://d.example.net/art/somecreator/1700000000/1700000000.somecreator_sunset.png", fields.ContentURL)
	assert.Equal(t, "1700000000.somecreator_sunset.png", fields.ContentName)
	assert.Equal(t, "https://t.example.net/55555555@400-1700000000.jpg", fields.ThumbnailURL)
	assert.Equal(t, "55555555@400-1700000000.jpg", fields.ThumbnailName)
	assert.Equal(t, "Artwork", fields.Category)
	assert.Equal(t, "General", fields.Rating)
	assert.Equal(t, "Nov 14, 2023 08:00 PM", fields.DateUploaded)
}

func TestParseSubmissionPageFieldsMatchStoreColumns(t *testing.T) {
	doc := docFromHTML(t, submissionPageHTML)

	fields, err := ParseSubmissionPage(doc, "https://www.example.com/view/55555555/")
	require.NoError(t, err)

	m := fields.Map()
	assert.Equal(t, int64(55555555), m["submission_id"])
	assert.Equal(t, "Sunset Over The Ridge", m["title"])
	assert.Equal(t, "somecreator", m["account_name"])
}

func TestParseSubmissionPageDeleted(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
<section class="notice-message">
  The submission you are trying to find is not in our database.
</section>
</body></html>`)

	_, err := ParseSubmissionPage(doc, "https://www.example.com/view/123/")
	assert.ErrorIs(t, err, ErrDeleted)
}

func TestParseSubmissionPageMissingDownloadLink(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
<div class="submission-title"><h2>Broken</h2></div>
</body></html>`)

	_, err := ParseSubmissionPage(doc, "https://www.example.com/view/123/")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDeleted)
}

func TestParseSubmissionPageNoID(t *testing.T) {
	doc := docFromHTML(t, submissionPageHTML)

	_, err := ParseSubmissionPage(doc, "https://www.example.com/journal/42/")
	require.Error(t, err)
}

func TestParseGalleryPage(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
<figure><figcaption><a href="/view/111/">one</a></figcaption></figure>
<figure><figcaption><a href="/view/222/">two</a></figcaption></figure>
<figure><figcaption><a href="/user/somecreator/">profile</a></figcaption></figure>
</body></html>`)

	links := ParseGalleryPage(doc, "https://www.example.com/")
	assert.Equal(t, []string{
		"https://www.example.com/view/111/",
		"https://www.example.com/view/222/",
	}, links)
}

func TestParseGalleryPageEmpty(t *testing.T) {
	doc := docFromHTML(t, `<html><body><div id="no-images">There are no submissions to list</div></body></html>`)
	assert.Empty(t, ParseGalleryPage(doc, "https://www.example.com"))
}

func TestParseFavoritesPage(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
<figure><figcaption><a href="/view/333/">three</a></figcaption></figure>
<a class="button standard right" href="/favorites/collector/1234567890/next">Next 72</a>
</body></html>`)

	links, next := ParseFavoritesPage(doc, "https://www.example.com")
	assert.Equal(t, []string{"https://www.example.com/view/333/"}, links)
	assert.Equal(t, "/favorites/collector/1234567890/next", next)
}

func TestParseFavoritesPageLast(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
<figure><figcaption><a href="/view/444/">four</a></figcaption></figure>
<a class="button standard right" href="/favorites/collector/">Back</a>
</body></html>`)

	links, next := ParseFavoritesPage(doc, "https://www.example.com")
	assert.Len(t, links, 1)
	assert.Empty(t, next)
}

func TestParseComments(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
<div class="comment_container">
  <a id="cid:91001"></a>
  <strong class="comment_username">alice</strong>
  <div class="comment_text">Love the colors!</div>
  <span class="popup_date">Nov 15, 2023</span>
</div>
<div class="comment_container">
  <a id="cid:91002"></a>
  <strong class="comment_username">bob</strong>
  <div class="comment_text">Great work.</div>
  <span class="popup_date">Nov 16, 2023</span>
</div>
<div class="comment_container">
  <div class="comment_text">orphan without anchor</div>
</div>
</body></html>`)

	comments := ParseComments(doc)
	require.Len(t, comments, 2)
	assert.Equal(t, "91001", comments[0].AnchorID)
	assert.Equal(t, "alice", comments[0].Username)
	assert.Equal(t, "Love the colors!", comments[0].Description)
	assert.Equal(t, "Nov 16, 2023", comments[1].DatePosted)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://d.example.net/a.png", NormalizeURL("//d.example.net/a.png"))
	assert.Equal(t, "https://d.example.net/a.png", NormalizeURL("https://d.example.net/a.png"))
	assert.Equal(t, "/view/1/", NormalizeURL("/view/1/"))
}

func TestSubmissionIDFromURL(t *testing.T) {
	assert.Equal(t, int64(123), SubmissionIDFromURL("https://www.example.com/view/123/"))
	assert.Equal(t, int64(123), SubmissionIDFromURL("https://www.example.com/view/123"))
	assert.Equal(t, int64(123), SubmissionIDFromURL("https://www.example.com/view/123/extra/"))
	assert.Zero(t, SubmissionIDFromURL("https://www.example.com/journal/123/"))
	assert.Zero(t, SubmissionIDFromURL("https://www.example.com/view/abc/"))
}

func TestFilenameFromURL(t *testing.T) {
	assert.Equal(t, "a.png", FilenameFromURL("https://d.example.net/art/user/a.png"))
	assert.Equal(t, "a.png", FilenameFromURL("https://d.example.net/art/user/a.png?x=1"))
	assert.Equal(t, "", FilenameFromURL("https://d.example.net/"))
}

func TestGalleryEndpoints(t *testing.T) {
	base := "https://www.example.com"
	assert.Equal(t, "https://www.example.com/gallery/somecreator/3/", GalleryPageURL(base, "somecreator", 3))
	assert.Equal(t, "https://www.example.com/scraps/somecreator/1/", ScrapsPageURL(base, "somecreator", 1))
	assert.Equal(t, "https://www.example.com/favorites/somecreator/", FavoritesURL(base, "somecreator", ""))
	assert.Equal(t, "https://www.example.com/favorites/somecreator/123/next",
		FavoritesURL(base, "somecreator", "/favorites/somecreator/123/next"))
}
