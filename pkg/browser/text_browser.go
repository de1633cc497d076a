package browser

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/harun/websurfer/internal/observability"
	"github.com/rs/zerolog"
)

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// TextBrowser is a text-only browsing session. Content is split into
// viewport pages that end on whitespace; the history records every visit.
type TextBrowser struct {
	mu sync.RWMutex

	viewportSize int
	maxResults   int

	fetcher   PageFetcher
	search    SearchEngine
	validator *SecurityValidator
	now       func() time.Time
	logger    zerolog.Logger

	history     []Visit
	title       string
	hasTitle    bool
	content     string
	pages       [][2]int
	currentPage int

	findQuery      string
	findActive     bool
	findLastResult int // -1 when the last search missed
}

// Option configures a TextBrowser
type Option func(*TextBrowser)

// WithFetcher sets how http(s) and file addresses are loaded
func WithFetcher(f PageFetcher) Option {
	return func(b *TextBrowser) {
		b.fetcher = f
	}
}

// WithSearchEngine sets the engine answering search: addresses
func WithSearchEngine(s SearchEngine) Option {
	return func(b *TextBrowser) {
		b.search = s
	}
}

// WithClock overrides the clock used for history timestamps
func WithClock(now func() time.Time) Option {
	return func(b *TextBrowser) {
		b.now = now
	}
}

// WithLogger sets the browser logger
func WithLogger(logger zerolog.Logger) Option {
	return func(b *TextBrowser) {
		b.logger = logger
	}
}

// New creates a browser and visits the configured start page
func New(ctx context.Context, cfg Config, opts ...Option) (*TextBrowser, error) {
	if cfg.ViewportSize <= 0 {
		cfg.ViewportSize = DefaultViewportSize
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultConfig().MaxResults
	}
	if cfg.StartPage == "" {
		cfg.StartPage = BlankPage
	}

	b := &TextBrowser{
		viewportSize:   cfg.ViewportSize,
		maxResults:     cfg.MaxResults,
		validator:      NewSecurityValidator(cfg.Security),
		now:            time.Now,
		logger:         zerolog.Nop(),
		findLastResult: -1,
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := b.VisitPage(ctx, cfg.StartPage); err != nil {
		return nil, fmt.Errorf("failed to open start page: %w", err)
	}
	return b, nil
}

// Address returns the current address
func (b *TextBrowser) Address() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.address()
}

func (b *TextBrowser) address() string {
	if len(b.history) == 0 {
		return ""
	}
	return b.history[len(b.history)-1].Address
}

// Title returns the page title and whether the page has one
func (b *TextBrowser) Title() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.title, b.hasTitle
}

// PageContent returns the full text of the current page
func (b *TextBrowser) PageContent() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.content
}

// Viewport returns the text of the current viewport page
func (b *TextBrowser) Viewport() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.viewport()
}

func (b *TextBrowser) viewport() string {
	bounds := b.pages[b.currentPage]
	return b.content[bounds[0]:bounds[1]]
}

// CurrentPage returns the zero-based viewport index
func (b *TextBrowser) CurrentPage() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.currentPage
}

// PageCount returns the number of viewport pages
func (b *TextBrowser) PageCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.pages)
}

// History returns a copy of the visit history, oldest first
func (b *TextBrowser) History() []Visit {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Visit(nil), b.history...)
}

// VisitPage navigates to address. Relative addresses resolve against the
// previous address. On failure the session shows an error page and the
// error is returned.
func (b *TextBrowser) VisitPage(ctx context.Context, address string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	address = strings.TrimSpace(address)
	b.history = append(b.history, Visit{Address: address, Time: b.now()})
	b.currentPage = 0
	b.findQuery = ""
	b.findActive = false
	b.findLastResult = -1

	switch {
	case address == BlankPage:
		b.setPage("", false, "")
		return nil

	case strings.HasPrefix(address, SearchScheme):
		return b.searchPage(ctx, strings.TrimSpace(strings.TrimPrefix(address, SearchScheme)))

	default:
		if !hasFetchScheme(address) && len(b.history) > 1 {
			address = b.resolve(b.history[len(b.history)-2].Address, address)
			b.history[len(b.history)-1].Address = address
		}
		return b.fetchPage(ctx, address)
	}
}

func hasFetchScheme(address string) bool {
	return strings.HasPrefix(address, "http:") ||
		strings.HasPrefix(address, "https:") ||
		strings.HasPrefix(address, "file:")
}

func (b *TextBrowser) resolve(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

func (b *TextBrowser) fetchPage(ctx context.Context, address string) error {
	if err := b.validator.ValidateURL(address); err != nil {
		b.setPage("Error", true, err.Error())
		return err
	}
	if b.fetcher == nil {
		err := &BrowserError{Code: ErrCodeConfiguration, Message: "no page fetcher configured"}
		b.setPage("Error", true, err.Error())
		return err
	}

	start := time.Now()
	page, err := b.fetcher.Fetch(ctx, address)
	observability.RecordPageFetch(time.Since(start), err == nil)
	if err != nil {
		b.logger.Warn().Err(err).Str("address", address).Msg("Page fetch failed")
		b.setPage("Error", true, err.Error())
		return &BrowserError{
			Code:    ErrCodeNavigation,
			Message: fmt.Sprintf("Failed to load %s: %v", address, err),
		}
	}

	b.setPage(page.Title, page.Title != "", page.Content)
	return nil
}

func (b *TextBrowser) searchPage(ctx context.Context, query string) error {
	if b.search == nil {
		err := &BrowserError{Code: ErrCodeConfiguration, Message: "no search engine configured"}
		b.setPage("Error", true, err.Error())
		return err
	}

	results, err := b.search.Search(ctx, query, b.maxResults)
	if err != nil {
		b.logger.Warn().Err(err).Str("query", query).Msg("Search failed")
		b.setPage("Error", true, err.Error())
		return &BrowserError{
			Code:    ErrCodeSearch,
			Message: fmt.Sprintf("Search for %q failed: %v", query, err),
		}
	}

	b.setPage(query+" - Search", true, RenderSearchResults(query, results))
	return nil
}

// RenderSearchResults formats search hits as a markdown page
func RenderSearchResults(query string, results []SearchResult) string {
	snippets := make([]string, 0, len(results))
	for i, r := range results {
		snippets = append(snippets, fmt.Sprintf("%d. [%s](%s)\n%s", i+1, r.Title, r.URL, r.Content))
	}
	return fmt.Sprintf("A web search for '%s' found %d results:\n\n## Web Results\n", query, len(results)) +
		strings.Join(snippets, "\n\n")
}

func (b *TextBrowser) setPage(title string, hasTitle bool, content string) {
	b.title = title
	b.hasTitle = hasTitle
	b.content = content
	b.splitPages()
	if b.currentPage >= len(b.pages) {
		b.currentPage = len(b.pages) - 1
	}
}

// splitPages cuts content into viewport-sized pages, extending each page
// until it ends on whitespace. Empty content is one empty page.
func (b *TextBrowser) splitPages() {
	if len(b.content) == 0 {
		b.pages = [][2]int{{0, 0}}
		return
	}

	b.pages = nil
	start := 0
	for start < len(b.content) {
		end := start + b.viewportSize
		if end > len(b.content) {
			end = len(b.content)
		}
		for end < len(b.content) && !isSpace(b.content[end-1]) {
			end++
		}
		b.pages = append(b.pages, [2]int{start, end})
		start = end
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// PageDown moves the viewport down one page, stopping at the last page
func (b *TextBrowser) PageDown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.currentPage < len(b.pages)-1 {
		b.currentPage++
	}
}

// PageUp moves the viewport up one page, stopping at the first page
func (b *TextBrowser) PageUp() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.currentPage > 0 {
		b.currentPage--
	}
}

// FindOnPage moves the viewport to the first page matching query, starting
// at the current page and wrapping around. '*' matches any run of text.
// Repeating the last query while still on its match continues with FindNext.
func (b *TextBrowser) FindOnPage(query string) *Match {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.findActive && query == b.findQuery && b.currentPage == b.findLastResult {
		return b.findNext()
	}

	b.findQuery = query
	b.findActive = true
	return b.moveToMatch(b.findNextViewport(query, b.currentPage))
}

// FindNext moves the viewport to the next page matching the last query
func (b *TextBrowser) FindNext() *Match {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.findNext()
}

func (b *TextBrowser) findNext() *Match {
	if !b.findActive {
		return nil
	}

	start := 0
	if b.findLastResult >= 0 {
		start = b.findLastResult + 1
		if start >= len(b.pages) {
			start = 0
		}
	}
	return b.moveToMatch(b.findNextViewport(b.findQuery, start))
}

func (b *TextBrowser) moveToMatch(page int) *Match {
	if page < 0 {
		b.findLastResult = -1
		return nil
	}
	b.currentPage = page
	b.findLastResult = page
	return &Match{Page: page, Viewport: b.viewport()}
}

// findNextViewport returns the first page at or after start (wrapping)
// whose normalized text matches the normalized query, or -1.
func (b *TextBrowser) findNextViewport(query string, start int) int {
	pattern := normalizeQuery(query)
	if strings.TrimSpace(pattern) == "" {
		return -1
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return -1
	}

	for n := 0; n < len(b.pages); n++ {
		i := (start + n) % len(b.pages)
		bounds := b.pages[i]
		if re.MatchString(normalizeText(b.content[bounds[0]:bounds[1]])) {
			return i
		}
	}
	return -1
}

func normalizeQuery(query string) string {
	q := strings.ReplaceAll(query, "*", "__STAR__")
	q = " " + strings.TrimSpace(strings.Join(nonWordRe.Split(q, -1), " ")) + " "
	q = strings.ReplaceAll(q, " __STAR__ ", "__STAR__ ")
	q = strings.ReplaceAll(q, "__STAR__", ".*")
	return strings.ToLower(q)
}

func normalizeText(text string) string {
	return " " + strings.ToLower(strings.TrimSpace(strings.Join(nonWordRe.Split(text, -1), " "))) + " "
}
