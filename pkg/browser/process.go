package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// chromeProcess owns a launched (or attached) Chrome instance
type chromeProcess struct {
	cfg      ChromeConfig
	launcher *launcher.Launcher
	browser  *rod.Browser
	mu       sync.Mutex
}

func newChromeProcess(cfg ChromeConfig) *chromeProcess {
	return &chromeProcess{cfg: cfg}
}

// connect launches Chrome unless a control URL is configured, then
// connects over CDP. Repeated calls return the same browser.
func (p *chromeProcess) connect() (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.browser != nil {
		return p.browser, nil
	}

	controlURL := p.cfg.ControlURL
	if controlURL == "" {
		if err := p.ensureUserDataDir(); err != nil {
			return nil, &BrowserError{
				Code:    ErrCodeConfiguration,
				Message: fmt.Sprintf("Failed to create user data directory: %v", err),
			}
		}

		l := p.buildLauncher()
		u, err := l.Launch()
		if err != nil {
			return nil, &BrowserError{
				Code:    ErrCodeBrowserCrash,
				Message: fmt.Sprintf("Failed to launch Chrome: %v", err),
			}
		}
		p.launcher = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		p.killLocked()
		return nil, &BrowserError{
			Code:    ErrCodeBrowserCrash,
			Message: fmt.Sprintf("Failed to connect to CDP: %v", err),
		}
	}

	p.browser = b
	return b, nil
}

func (p *chromeProcess) buildLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(p.cfg.Headless).
		UserDataDir(p.cfg.UserDataDir)

	if p.cfg.NoSandbox {
		l = l.NoSandbox(true)
	}
	if p.cfg.ChromePath != "" {
		l = l.Bin(p.cfg.ChromePath)
	}
	return l
}

func (p *chromeProcess) ensureUserDataDir() error {
	if p.cfg.UserDataDir == "" {
		p.cfg.UserDataDir = filepath.Join(os.TempDir(), "websurfer-chrome")
	}
	return os.MkdirAll(p.cfg.UserDataDir, 0755)
}

// close disconnects and kills a launched Chrome. Attached instances are
// only disconnected.
func (p *chromeProcess) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.browser != nil {
		err = p.browser.Close()
		p.browser = nil
	}
	p.killLocked()
	return err
}

func (p *chromeProcess) killLocked() {
	if p.launcher != nil {
		p.launcher.Kill()
		p.launcher = nil
	}
}

func (p *chromeProcess) running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.browser != nil
}
