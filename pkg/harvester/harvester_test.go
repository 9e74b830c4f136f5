package harvester

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furarchiver/pkg/config"
	errs "furarchiver/pkg/errors"
	"furarchiver/pkg/logger"
	"furarchiver/pkg/store"
)

type mockStore struct {
	pending  []store.Submission
	metadata map[string]map[string]interface{}
	comments map[int64][]store.Comment
	deleted  []string
}

func newMockStore(urls ...string) *mockStore {
	m := &mockStore{
		metadata: make(map[string]map[string]interface{}),
		comments: make(map[int64][]store.Comment),
	}
	for _, url := range urls {
		m.pending = append(m.pending, store.Submission{URL: url})
	}
	return m
}

func (m *mockStore) UnharvestedSubmissions(ctx context.Context) ([]store.Submission, error) {
	return m.pending, nil
}

func (m *mockStore) UpdateMetadata(ctx context.Context, url string, fields map[string]interface{}) error {
	m.metadata[url] = fields
	return nil
}

func (m *mockStore) UpsertComments(ctx context.Context, submissionID int64, comments []store.Comment) error {
	m.comments[submissionID] = comments
	return nil
}

func (m *mockStore) DeleteSubmission(ctx context.Context, url string) error {
	m.deleted = append(m.deleted, url)
	return nil
}

type mockFetcher struct {
	pages map[string][]interface{}
	calls map[string]int
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		pages: make(map[string][]interface{}),
		calls: make(map[string]int),
	}
}

func (m *mockFetcher) serve(url string, outcomes ...interface{}) {
	m.pages[url] = outcomes
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	outcomes := m.pages[url]
	idx := m.calls[url]
	m.calls[url]++
	if idx >= len(outcomes) {
		idx = len(outcomes) - 1
	}

	switch v := outcomes[idx].(type) {
	case error:
		return nil, v
	case string:
		return goquery.NewDocumentFromReader(strings.NewReader(v))
	}
	panic("unsupported canned outcome")
}

func detailHTML(id int) string {
	return fmt.Sprintf(`<html><body>
<div class="submission-title"><h2>Piece %d</h2></div>
<div class="submission-id-sub-container"><a href="/user/creator/"><strong>Creator</strong></a></div>
<div class="submission-description">desc</div>
<div class="download"><a href="//d.example.net/art/creator/%d.png">Download</a></div>
<section class="info text"><span class="category-name">Artwork</span></section>
<span class="rating-box">General</span>
<div class="comment_container">
  <a id="cid:%d1"></a>
  <strong class="comment_username">fan</strong>
  <div class="comment_text">great</div>
</div>
</body></html>`, id, id, id)
}

const deletedHTML = `<html><body>
<section class="notice-message">The submission you are trying to find is not in our database.</section>
</body></html>`

func viewURL(id int) string {
	return fmt.Sprintf("https://www.example.com/view/%d/", id)
}

func testHarvestConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Walk.MaxFetchRetries = 4 // harvester budget becomes 2
	cfg.Walk.RetryStep = time.Millisecond
	cfg.Harvest.Delay = 0
	cfg.Harvest.DelayEvery = 100
	return cfg
}

func TestHarvestPersistsMetadataAndComments(t *testing.T) {
	st := newMockStore(viewURL(1))
	f := newMockFetcher()
	f.serve(viewURL(1), detailHTML(1))

	h := New(st, f, testHarvestConfig(), logger.NewTestLogger())
	report, err := h.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Harvested)
	assert.Zero(t, report.Skipped)

	fields := st.metadata[viewURL(1)]
	require.NotNil(t, fields)
	assert.Equal(t, int64(1), fields["submission_id"])
	assert.Equal(t, "Piece 1", fields["title"])
	assert.Equal(t, "creator", fields["account_name"])

	require.Len(t, st.comments[1], 1)
	assert.Equal(t, "fan", st.comments[1][0].Username)
}

func TestHarvestCommentsDisabled(t *testing.T) {
	st := newMockStore(viewURL(1))
	f := newMockFetcher()
	f.serve(viewURL(1), detailHTML(1))

	cfg := testHarvestConfig()
	cfg.Harvest.Comments = false
	h := New(st, f, cfg, logger.NewTestLogger())
	_, err := h.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, st.comments)
}

func TestHarvestRemovesDeadLinks(t *testing.T) {
	st := newMockStore(viewURL(1), viewURL(2))
	f := newMockFetcher()
	f.serve(viewURL(1), deletedHTML)
	f.serve(viewURL(2), detailHTML(2))

	h := New(st, f, testHarvestConfig(), logger.NewTestLogger())
	report, err := h.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, 1, report.Harvested)
	assert.Equal(t, []string{viewURL(1)}, st.deleted)
	assert.NotContains(t, st.metadata, viewURL(1))
}

func TestHarvestSkipsFailingItemAndContinues(t *testing.T) {
	st := newMockStore(viewURL(1), viewURL(2))
	f := newMockFetcher()
	f.serve(viewURL(1), errs.New(errs.ErrorTypeNetwork, "timeout"))
	f.serve(viewURL(2), detailHTML(2))

	h := New(st, f, testHarvestConfig(), logger.NewTestLogger())
	report, err := h.Run(context.Background())
	require.NoError(t, err)

	// The bad item burns its halved retry budget, then the queue advances.
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Harvested)
	assert.Equal(t, 2, f.calls[viewURL(1)])
	assert.Contains(t, st.metadata, viewURL(2))
}

func TestHarvestRecoversWithinBudget(t *testing.T) {
	st := newMockStore(viewURL(1))
	f := newMockFetcher()
	f.serve(viewURL(1),
		errs.New(errs.ErrorTypeNetwork, "timeout"),
		detailHTML(1))

	h := New(st, f, testHarvestConfig(), logger.NewTestLogger())
	report, err := h.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Harvested)
	assert.Zero(t, report.Skipped)
}

func TestHarvestSkipsUnparseablePage(t *testing.T) {
	st := newMockStore(viewURL(1))
	f := newMockFetcher()
	f.serve(viewURL(1), `<html><body><p>layout change</p></body></html>`)

	h := New(st, f, testHarvestConfig(), logger.NewTestLogger())
	report, err := h.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, st.metadata)
}

func TestHarvestStopsOnCancelledContext(t *testing.T) {
	st := newMockStore(viewURL(1), viewURL(2))
	f := newMockFetcher()
	f.serve(viewURL(1), detailHTML(1))
	f.serve(viewURL(2), detailHTML(2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := New(st, f, testHarvestConfig(), logger.NewTestLogger())
	_, err := h.Run(ctx)
	require.Error(t, err)
	assert.Zero(t, f.calls[viewURL(1)])
}
