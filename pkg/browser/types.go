package browser

import (
	"context"
	"time"
)

const (
	// DefaultViewportSize is the viewport length in characters
	DefaultViewportSize = 8 * 1024
	// BlankPage is the address of the empty page
	BlankPage = "about:blank"
	// SearchScheme prefixes addresses answered by the search engine
	SearchScheme = "search:"
)

// Visit is one entry of the navigation history
type Visit struct {
	Address string    `json:"address"`
	Time    time.Time `json:"time"`
}

// Match reports the viewport a find operation moved to
type Match struct {
	Page     int    `json:"page"`
	Viewport string `json:"viewport"`
}

// Page is the text rendition of a fetched document
type Page struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// PageFetcher retrieves the visible text of an address
type PageFetcher interface {
	Fetch(ctx context.Context, address string) (*Page, error)
}

// SearchResult is a single web search hit
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Engine  string  `json:"engine"`
	Score   float64 `json:"score"`
}

// SearchEngine answers web search queries
type SearchEngine interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// Config configures a TextBrowser
type Config struct {
	StartPage    string         `json:"start_page" mapstructure:"start_page"`
	ViewportSize int            `json:"viewport_size" mapstructure:"viewport_size"`
	MaxResults   int            `json:"max_results" mapstructure:"max_results"`
	Security     SecurityConfig `json:"security" mapstructure:"security"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowFileUrls      bool     `json:"allow_file_urls" mapstructure:"allow_file_urls"`
	AllowLocalhostUrls bool     `json:"allow_localhost_urls" mapstructure:"allow_localhost_urls"`
	AllowedDomains     []string `json:"allowed_domains,omitempty" mapstructure:"allowed_domains"`
	BlockedDomains     []string `json:"blocked_domains,omitempty" mapstructure:"blocked_domains"`
}

// ChromeConfig configures the headless Chrome used by RodFetcher
type ChromeConfig struct {
	Headless    bool   `json:"headless" mapstructure:"headless"`
	NoSandbox   bool   `json:"no_sandbox" mapstructure:"no_sandbox"`
	ChromePath  string `json:"chrome_path,omitempty" mapstructure:"chrome_path"`
	UserDataDir string `json:"user_data_dir,omitempty" mapstructure:"user_data_dir"`
	ControlURL  string `json:"control_url,omitempty" mapstructure:"control_url"`
	// Timeout bounds a single page load, in seconds
	Timeout int `json:"timeout" mapstructure:"timeout"`
}

// DefaultConfig returns the default browser configuration
func DefaultConfig() Config {
	return Config{
		StartPage:    BlankPage,
		ViewportSize: DefaultViewportSize,
		MaxResults:   10,
	}
}

// DefaultChromeConfig returns the default Chrome configuration
func DefaultChromeConfig() ChromeConfig {
	return ChromeConfig{
		Headless: true,
		Timeout:  30,
	}
}

// Error types
type BrowserError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *BrowserError) Error() string {
	return e.Message
}

// Error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNavigation    = "NAVIGATION_ERROR"
	ErrCodeTimeout       = "TIMEOUT_ERROR"
	ErrCodeSecurity      = "SECURITY_ERROR"
	ErrCodeBrowserCrash  = "BROWSER_CRASH"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeSearch        = "SEARCH_ERROR"
)
