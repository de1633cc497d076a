package surfer

import (
	"context"

	"github.com/harun/websurfer/pkg/browser"
)

// Session is the browsing state the tools operate on.
// *browser.TextBrowser implements it.
type Session interface {
	VisitPage(ctx context.Context, address string) error
	PageUp()
	PageDown()
	FindOnPage(query string) *browser.Match
	FindNext() *browser.Match

	Address() string
	Title() (string, bool)
	PageContent() string
	Viewport() string
	CurrentPage() int
	PageCount() int
	History() []browser.Visit
}

var _ Session = (*browser.TextBrowser)(nil)
