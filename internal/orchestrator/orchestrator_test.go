package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furarchiver/pkg/config"
	errs "furarchiver/pkg/errors"
	"furarchiver/pkg/layout"
	"furarchiver/pkg/logger"
	"furarchiver/pkg/site"
	"furarchiver/pkg/store"
)

type mockStore struct {
	mu       sync.Mutex
	content  []store.Submission
	thumbs   []store.Submission
	saved    map[string]bool
	missing  map[string]bool
	tsaved   map[string]bool
	tmissing map[string]bool
}

func newMockStore() *mockStore {
	return &mockStore{
		saved:    make(map[string]bool),
		missing:  make(map[string]bool),
		tsaved:   make(map[string]bool),
		tmissing: make(map[string]bool),
	}
}

func (m *mockStore) UnsavedContent(ctx context.Context) ([]store.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Submission
	for _, sub := range m.content {
		if !m.saved[sub.URL] && !m.missing[sub.URL] {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (m *mockStore) UnsavedThumbnails(ctx context.Context) ([]store.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Submission
	for _, sub := range m.thumbs {
		if !m.tsaved[sub.URL] && !m.tmissing[sub.URL] {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (m *mockStore) MarkContentSaved(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[url] = true
	return nil
}

func (m *mockStore) MarkContentMissing(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missing[url] = true
	return nil
}

func (m *mockStore) MarkThumbnailSaved(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tsaved[url] = true
	return nil
}

func (m *mockStore) MarkThumbnailMissing(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tmissing[url] = true
	return nil
}

func (m *mockStore) isSaved(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[url]
}

func (m *mockStore) isMissing(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.missing[url]
}

type mockProber struct {
	mu      sync.Mutex
	present map[string]bool
	active  bool
}

func (m *mockProber) Exists(ctx context.Context, url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.present[url]
}

func (m *mockProber) SiteActive(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

type mockDownloader struct {
	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
}

func newMockDownloader() *mockDownloader {
	return &mockDownloader{
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

func (m *mockDownloader) Download(ctx context.Context, url, dest string, progress site.ProgressFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[url]++
	if m.calls[url] <= m.failures[url] {
		return errs.New(errs.ErrorTypeNetwork, "transfer failed")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	if progress != nil {
		progress(4, 4)
	}
	return os.WriteFile(dest, []byte("data"), 0644)
}

func (m *mockDownloader) callCount(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[url]
}

func contentItem(id string) store.Submission {
	return store.Submission{
		URL:         "https://www.example.com/view/" + id + "/",
		Username:    "creator",
		AccountName: "creator",
		ContentURL:  "https://d.example.net/" + id + ".png",
		ContentName: id + ".png",
	}
}

func thumbItem(id string) store.Submission {
	return store.Submission{
		URL:           "https://www.example.com/view/" + id + "/",
		Username:      "creator",
		AccountName:   "creator",
		Category:      "Story",
		ThumbnailURL:  "https://t.example.net/" + id + ".jpg",
		ThumbnailName: id + ".jpg",
	}
}

func testOrchestrator(t *testing.T, st *mockStore, p *mockProber, dl *mockDownloader) *Orchestrator {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Output.RootDirectory = t.TempDir()
	cfg.Download.ContentRetries = 3
	cfg.Download.ThumbnailRetries = 2
	cfg.Download.ContentDelayMin = 0
	cfg.Download.ContentDelayMax = 0
	cfg.Download.ThumbnailDelayMin = 0
	cfg.Download.ThumbnailDelayMax = 0
	return New(st, p, dl, cfg, logger.NewTestLogger())
}

func TestRunDrainsBothQueues(t *testing.T) {
	st := newMockStore()
	st.content = []store.Submission{contentItem("1"), contentItem("2")}
	st.thumbs = []store.Submission{thumbItem("3")}

	p := &mockProber{active: true, present: map[string]bool{
		"https://d.example.net/1.png": true,
		"https://d.example.net/2.png": true,
		"https://t.example.net/3.jpg": true,
	}}
	dl := newMockDownloader()

	o := testOrchestrator(t, st, p, dl)
	require.NoError(t, o.Run(context.Background()))

	assert.True(t, st.isSaved("https://www.example.com/view/1/"))
	assert.True(t, st.isSaved("https://www.example.com/view/2/"))
	st.mu.Lock()
	assert.True(t, st.tsaved["https://www.example.com/view/3/"])
	st.mu.Unlock()

	// Content lands flat in the root, thumbnails go straight to the owner dir.
	assert.FileExists(t, filepath.Join(o.root, "1.png"))
	assert.FileExists(t, filepath.Join(o.root, "creator", "thumbnail", "3.jpg"))
}

func TestFailedProbeOnActiveSiteIsSticky(t *testing.T) {
	st := newMockStore()
	st.content = []store.Submission{contentItem("1")}

	p := &mockProber{active: true, present: map[string]bool{}}
	dl := newMockDownloader()

	o := testOrchestrator(t, st, p, dl)
	require.NoError(t, o.Run(context.Background()))

	assert.True(t, st.isMissing("https://www.example.com/view/1/"))
	assert.False(t, st.isSaved("https://www.example.com/view/1/"))
	assert.Zero(t, dl.callCount("https://d.example.net/1.png"))
}

func TestFailedProbeOnDeadSiteHaltsEverything(t *testing.T) {
	st := newMockStore()
	st.content = []store.Submission{contentItem("1"), contentItem("2")}

	p := &mockProber{active: false, present: map[string]bool{}}
	dl := newMockDownloader()

	o := testOrchestrator(t, st, p, dl)
	err := o.Run(context.Background())
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.ErrorTypeSiteDown, e.Type)

	// An outage marks nothing: the items stay eligible for the next run.
	assert.False(t, st.isMissing("https://www.example.com/view/1/"))
	assert.False(t, st.isMissing("https://www.example.com/view/2/"))
}

func TestImmediateRetriesWithinBudget(t *testing.T) {
	st := newMockStore()
	st.content = []store.Submission{contentItem("1")}

	p := &mockProber{active: true, present: map[string]bool{
		"https://d.example.net/1.png": true,
	}}
	dl := newMockDownloader()
	dl.failures["https://d.example.net/1.png"] = 2 // third attempt succeeds

	o := testOrchestrator(t, st, p, dl)
	require.NoError(t, o.Run(context.Background()))

	assert.True(t, st.isSaved("https://www.example.com/view/1/"))
	assert.Equal(t, 3, dl.callCount("https://d.example.net/1.png"))
}

func TestExhaustedBudgetLeavesItemUnsaved(t *testing.T) {
	st := newMockStore()
	st.content = []store.Submission{contentItem("1")}

	p := &mockProber{active: true, present: map[string]bool{
		"https://d.example.net/1.png": true,
	}}
	dl := newMockDownloader()
	dl.failures["https://d.example.net/1.png"] = 100

	o := testOrchestrator(t, st, p, dl)
	require.NoError(t, o.Run(context.Background()))

	// Abandoned, not missing: the item stays eligible for the next run.
	assert.False(t, st.isSaved("https://www.example.com/view/1/"))
	assert.False(t, st.isMissing("https://www.example.com/view/1/"))
	assert.Equal(t, 3, dl.callCount("https://d.example.net/1.png"))
}

func TestPreexistingFileCountsAsSaved(t *testing.T) {
	st := newMockStore()
	item := contentItem("1")
	st.content = []store.Submission{item}

	p := &mockProber{active: true, present: map[string]bool{}}
	dl := newMockDownloader()

	o := testOrchestrator(t, st, p, dl)
	require.NoError(t, os.WriteFile(layout.DownloadPath(o.root, item.ContentName), []byte("x"), 0644))

	require.NoError(t, o.Run(context.Background()))

	assert.True(t, st.isSaved(item.URL))
	assert.Zero(t, dl.callCount(item.ContentURL))
}

func TestInvalidContentNameIsSkipped(t *testing.T) {
	st := newMockStore()
	item := contentItem("1")
	item.ContentName = ""
	st.content = []store.Submission{item}

	p := &mockProber{active: true, present: map[string]bool{}}
	dl := newMockDownloader()

	o := testOrchestrator(t, st, p, dl)
	require.NoError(t, o.Run(context.Background()))

	assert.False(t, st.isSaved(item.URL))
	assert.False(t, st.isMissing(item.URL))
	assert.Zero(t, dl.callCount(item.ContentURL))
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	st := newMockStore()
	st.content = []store.Submission{contentItem("1")}

	p := &mockProber{active: true, present: map[string]bool{
		"https://d.example.net/1.png": true,
	}}
	dl := newMockDownloader()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := testOrchestrator(t, st, p, dl)
	err := o.Run(ctx)
	require.Error(t, err)
	assert.False(t, st.isSaved("https://www.example.com/view/1/"))
}
