package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	pages   map[string]*Page
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, address string) (*Page, error) {
	f.fetched = append(f.fetched, address)
	page, ok := f.pages[address]
	if !ok {
		return nil, errors.New("404 not found")
	}
	return page, nil
}

type fakeSearch struct {
	results []SearchResult
	err     error
	queries []string
}

func (s *fakeSearch) Search(_ context.Context, query string, _ int) ([]SearchResult, error) {
	s.queries = append(s.queries, query)
	return s.results, s.err
}

const findContent = "alpha beta gamma delta alpha omega "

func newTestBrowser(t *testing.T, viewport int, pages map[string]*Page, opts ...Option) *TextBrowser {
	t.Helper()
	opts = append([]Option{WithFetcher(&fakeFetcher{pages: pages})}, opts...)
	b, err := New(context.Background(), Config{ViewportSize: viewport}, opts...)
	require.NoError(t, err)
	return b
}

func TestNewStartsOnBlankPage(t *testing.T) {
	b := newTestBrowser(t, 0, nil)

	assert.Equal(t, BlankPage, b.Address())
	title, ok := b.Title()
	assert.False(t, ok)
	assert.Empty(t, title)
	assert.Empty(t, b.PageContent())
	assert.Empty(t, b.Viewport())
	assert.Equal(t, 1, b.PageCount())
	assert.Equal(t, 0, b.CurrentPage())
	require.Len(t, b.History(), 1)
}

func TestSplitPagesEndOnWhitespace(t *testing.T) {
	pages := map[string]*Page{
		"https://example.com/": {Title: "Example", Content: "aaaa bbbb cccc dddd"},
	}
	b := newTestBrowser(t, 7, pages)
	require.NoError(t, b.VisitPage(context.Background(), "https://example.com/"))

	require.Equal(t, 2, b.PageCount())
	assert.Equal(t, "aaaa bbbb ", b.Viewport())

	b.PageDown()
	assert.Equal(t, "cccc dddd", b.Viewport())

	b.PageDown()
	assert.Equal(t, 1, b.CurrentPage(), "page down stops at the last page")

	b.PageUp()
	b.PageUp()
	assert.Equal(t, 0, b.CurrentPage(), "page up stops at the first page")
}

func TestPagesCoverContent(t *testing.T) {
	content := "one two three four five six seven eight nine ten eleven twelve"
	pages := map[string]*Page{"https://example.com/": {Content: content}}
	b := newTestBrowser(t, 9, pages)
	require.NoError(t, b.VisitPage(context.Background(), "https://example.com/"))

	var joined string
	for i := 0; i < b.PageCount(); i++ {
		joined += b.Viewport()
		b.PageDown()
	}
	assert.Equal(t, content, joined)
}

func TestVisitResetsViewportAndFind(t *testing.T) {
	pages := map[string]*Page{
		"https://example.com/a": {Title: "A", Content: findContent},
		"https://example.com/b": {Title: "B", Content: findContent},
	}
	b := newTestBrowser(t, 10, pages)
	ctx := context.Background()

	require.NoError(t, b.VisitPage(ctx, "https://example.com/a"))
	require.NotNil(t, b.FindOnPage("omega"))
	assert.Equal(t, 2, b.CurrentPage())

	require.NoError(t, b.VisitPage(ctx, "https://example.com/b"))
	assert.Equal(t, 0, b.CurrentPage())
	assert.Nil(t, b.FindNext(), "find state is cleared by navigation")
}

func TestRelativeAddressResolvesAgainstPrevious(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*Page{
		"https://example.com/docs/index.html": {Title: "Index", Content: "index"},
		"https://example.com/docs/guide.html": {Title: "Guide", Content: "guide"},
	}}
	b, err := New(context.Background(), Config{}, WithFetcher(fetcher))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.VisitPage(ctx, "https://example.com/docs/index.html"))
	require.NoError(t, b.VisitPage(ctx, "guide.html"))

	assert.Equal(t, "https://example.com/docs/guide.html", b.Address())
	history := b.History()
	assert.Equal(t, "https://example.com/docs/guide.html", history[len(history)-1].Address)
	assert.Equal(t, []string{
		"https://example.com/docs/index.html",
		"https://example.com/docs/guide.html",
	}, fetcher.fetched)
}

func TestHistoryRecordsVisitTimes(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pages := map[string]*Page{"https://example.com/": {Title: "Example", Content: "x"}}
	b := newTestBrowser(t, 0, pages, WithClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	}))

	require.NoError(t, b.VisitPage(context.Background(), "https://example.com/"))

	history := b.History()
	require.Len(t, history, 2)
	assert.Equal(t, BlankPage, history[0].Address)
	assert.Equal(t, "https://example.com/", history[1].Address)
	assert.Equal(t, time.Minute, history[1].Time.Sub(history[0].Time))
}

func TestFetchErrorShowsErrorPage(t *testing.T) {
	b := newTestBrowser(t, 0, nil)

	err := b.VisitPage(context.Background(), "https://missing.example.com/")
	require.Error(t, err)

	var browserErr *BrowserError
	require.True(t, errors.As(err, &browserErr))
	assert.Equal(t, ErrCodeNavigation, browserErr.Code)

	title, ok := b.Title()
	assert.True(t, ok)
	assert.Equal(t, "Error", title)
	assert.Contains(t, b.PageContent(), "404 not found")
	assert.Equal(t, "https://missing.example.com/", b.Address())
}

func TestBlockedAddressShowsErrorPage(t *testing.T) {
	b := newTestBrowser(t, 0, nil)

	err := b.VisitPage(context.Background(), "file:///etc/passwd")
	require.Error(t, err)

	title, _ := b.Title()
	assert.Equal(t, "Error", title)
	assert.Contains(t, b.PageContent(), "file:// URLs are not allowed")
}

func TestSearchAddressRendersResults(t *testing.T) {
	search := &fakeSearch{results: []SearchResult{
		{Title: "Go", URL: "https://go.dev", Content: "The Go language"},
		{Title: "Tour", URL: "https://go.dev/tour", Content: "A tour"},
	}}
	b := newTestBrowser(t, 0, nil, WithSearchEngine(search))

	require.NoError(t, b.VisitPage(context.Background(), "search: golang"))

	title, ok := b.Title()
	assert.True(t, ok)
	assert.Equal(t, "golang - Search", title)
	assert.Equal(t, []string{"golang"}, search.queries)
	assert.Equal(t,
		"A web search for 'golang' found 2 results:\n\n## Web Results\n"+
			"1. [Go](https://go.dev)\nThe Go language\n\n"+
			"2. [Tour](https://go.dev/tour)\nA tour",
		b.PageContent())
	assert.Equal(t, "search: golang", b.Address())
}

func TestSearchWithoutEngineFails(t *testing.T) {
	b := newTestBrowser(t, 0, nil)

	err := b.VisitPage(context.Background(), "search:golang")
	require.Error(t, err)
	title, _ := b.Title()
	assert.Equal(t, "Error", title)
}

func TestSearchEngineError(t *testing.T) {
	b := newTestBrowser(t, 0, nil, WithSearchEngine(&fakeSearch{err: errors.New("engine down")}))

	err := b.VisitPage(context.Background(), "search:golang")
	require.Error(t, err)
	assert.Contains(t, b.PageContent(), "engine down")
}

func findBrowser(t *testing.T) *TextBrowser {
	t.Helper()
	pages := map[string]*Page{"https://example.com/": {Title: "Greek", Content: findContent}}
	b := newTestBrowser(t, 10, pages)
	require.NoError(t, b.VisitPage(context.Background(), "https://example.com/"))
	require.Equal(t, 3, b.PageCount())
	return b
}

func TestFindOnPage(t *testing.T) {
	b := findBrowser(t)

	m := b.FindOnPage("delta")
	require.NotNil(t, m)
	assert.Equal(t, 1, m.Page)
	assert.Equal(t, "gamma delta ", m.Viewport)
	assert.Equal(t, 1, b.CurrentPage())
}

func TestFindOnPageIsCaseInsensitive(t *testing.T) {
	b := findBrowser(t)

	m := b.FindOnPage("OMEGA")
	require.NotNil(t, m)
	assert.Equal(t, 2, m.Page)
}

func TestFindOnPageMatchesWholeWords(t *testing.T) {
	b := findBrowser(t)
	assert.Nil(t, b.FindOnPage("alph"))
}

func TestFindOnPageWildcard(t *testing.T) {
	b := findBrowser(t)

	m := b.FindOnPage("gam*lta")
	require.NotNil(t, m)
	assert.Equal(t, 1, m.Page)
}

func TestFindOnPageMissKeepsViewport(t *testing.T) {
	b := findBrowser(t)
	b.PageDown()

	assert.Nil(t, b.FindOnPage("zeta"))
	assert.Equal(t, 1, b.CurrentPage())
	assert.Nil(t, b.FindNext())
}

func TestFindOnPageBlankQuery(t *testing.T) {
	b := findBrowser(t)
	assert.Nil(t, b.FindOnPage("  "))
}

func TestRepeatedFindAdvances(t *testing.T) {
	b := findBrowser(t)

	m := b.FindOnPage("alpha")
	require.NotNil(t, m)
	assert.Equal(t, 0, m.Page)

	m = b.FindOnPage("alpha")
	require.NotNil(t, m)
	assert.Equal(t, 2, m.Page)
}

func TestFindNextWraps(t *testing.T) {
	b := findBrowser(t)

	require.NotNil(t, b.FindOnPage("alpha"))

	m := b.FindNext()
	require.NotNil(t, m)
	assert.Equal(t, 2, m.Page)

	m = b.FindNext()
	require.NotNil(t, m)
	assert.Equal(t, 0, m.Page)
}

func TestFindNextWithoutQuery(t *testing.T) {
	b := findBrowser(t)
	assert.Nil(t, b.FindNext())
}

func TestFindStartsAtCurrentPage(t *testing.T) {
	b := findBrowser(t)
	b.PageDown()
	b.PageDown()

	m := b.FindOnPage("alpha")
	require.NotNil(t, m)
	assert.Equal(t, 2, m.Page)
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"Hello, World!", " hello world "},
		{"foo*", " foo.* "},
		{"foo * bar", " foo.* bar "},
		{"  ", "  "},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeQuery(tt.query))
		})
	}
}
