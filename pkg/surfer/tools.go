package surfer

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/harun/websurfer/internal/observability"
	"github.com/harun/websurfer/pkg/agent"
	"github.com/harun/websurfer/pkg/browser"
	"github.com/harun/websurfer/pkg/toolexecutor"
)

// Tool names offered to the planner, in advertised order
const (
	ToolInformationalSearch = "informational_web_search"
	ToolNavigationalSearch  = "navigational_web_search"
	ToolVisitPage           = "visit_page"
	ToolDownloadFile        = "download_file"
	ToolPageUp              = "page_up"
	ToolPageDown            = "page_down"
	ToolFindOnPage          = "find_on_page_ctrl_f"
	ToolFindNext            = "find_next"
	ToolReadPageAndAnswer   = "read_page_and_answer"
	ToolSummarizePage       = "summarize_page"
)

const (
	summarizerSystemPrompt = "You are a helpful assistant that can summarize long documents to answer question."
	nothingToSummarize     = "Nothing to summarize."
)

var firstLinkRe = regexp.MustCompile(`\[.*?\]\((http.*?)\)`)

// Completer runs one model call. *agent.Client implements it.
type Completer interface {
	Complete(ctx context.Context, req agent.CompletionRequest) (*agent.LLMResponse, error)
}

// CompleterFunc adapts a function to Completer
type CompleterFunc func(ctx context.Context, req agent.CompletionRequest) (*agent.LLMResponse, error)

func (f CompleterFunc) Complete(ctx context.Context, req agent.CompletionRequest) (*agent.LLMResponse, error) {
	return f(ctx, req)
}

// browserTools binds the tool handlers to one session
type browserTools struct {
	session    Session
	summarizer Completer
	tokenLimit int
	headroom   int
	now        func() time.Time
}

// register adds every tool to exec. The summarization tools are only
// added when a summarizer is available.
func (t *browserTools) register(exec *toolexecutor.ToolExecutor) error {
	defs := []toolexecutor.ToolDefinition{
		{
			Name:        ToolInformationalSearch,
			Description: "Perform an INFORMATIONAL web search query then return the search results.",
			Parameters: []toolexecutor.ToolParameter{
				{Name: "query", Type: "string", Description: "The informational web search query to perform.", Required: true},
			},
			Handler: t.informationalSearch,
		},
		{
			Name: ToolNavigationalSearch,
			Description: "Perform a NAVIGATIONAL web search query then immediately navigate to the top result. " +
				"Useful, for example, to navigate to a particular Wikipedia article or other known destination. " +
				"Equivalent to Google's \"I'm Feeling Lucky\" button.",
			Parameters: []toolexecutor.ToolParameter{
				{Name: "query", Type: "string", Description: "The navigational web search query to perform.", Required: true},
			},
			Handler: t.navigationalSearch,
		},
		{
			Name:        ToolVisitPage,
			Description: "Visit a webpage at a given URL and return its text.",
			Parameters: []toolexecutor.ToolParameter{
				{Name: "url", Type: "string", Description: "The relative or absolute url of the webapge to visit.", Required: true},
			},
			Handler: t.visitPage,
		},
		{
			Name:        ToolDownloadFile,
			Description: "Download a file at a given URL and, if possible, return its text.",
			Parameters: []toolexecutor.ToolParameter{
				{Name: "url", Type: "string", Description: "The relative or absolute url of the file to be downloaded.", Required: true},
			},
			Handler: t.visitPage,
		},
		{
			Name:        ToolPageUp,
			Description: "Scroll the viewport UP one page-length in the current webpage and return the new viewport content.",
			Handler:     t.pageUp,
		},
		{
			Name:        ToolPageDown,
			Description: "Scroll the viewport DOWN one page-length in the current webpage and return the new viewport content.",
			Handler:     t.pageDown,
		},
		{
			Name:        ToolFindOnPage,
			Description: "Scroll the viewport to the first occurrence of the search string. This is equivalent to Ctrl+F.",
			Parameters: []toolexecutor.ToolParameter{
				{Name: "search_string", Type: "string", Description: "The string to search for on the page. This search string supports wildcards like '*'", Required: true},
			},
			Handler: t.findOnPage,
		},
		{
			Name:        ToolFindNext,
			Description: "Scroll the viewport to next occurrence of the search string.",
			Handler:     t.findNext,
		},
	}

	if t.summarizer != nil {
		defs = append(defs,
			toolexecutor.ToolDefinition{
				Name:        ToolReadPageAndAnswer,
				Description: "Uses AI to read the page and directly answer a given question based on the content.",
				Parameters: []toolexecutor.ToolParameter{
					{Name: "question", Type: "string", Description: "The question to directly answer."},
					{Name: "url", Type: "string", Description: "[Optional] The url of the page. (Defaults to the current page)"},
				},
				Handler: t.readPageAndAnswer,
			},
			toolexecutor.ToolDefinition{
				Name:        ToolSummarizePage,
				Description: "Uses AI to summarize the content found at a given url. If the url is not provided, the current page is summarized.",
				Parameters: []toolexecutor.ToolParameter{
					{Name: "url", Type: "string", Description: "[Optional] The url of the page to summarize. (Defaults to current page)"},
				},
				Handler: t.summarizePage,
			},
		)
	}

	for _, def := range defs {
		if err := exec.RegisterTool(def); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", def.Name, err)
		}
	}
	return nil
}

func stringParam(params map[string]interface{}, name string) (string, bool) {
	v, ok := params[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// reply renders the current viewport under the state header
func (t *browserTools) reply() string {
	header, viewport := browserState(t.session, t.now())
	return formatReply(header, viewport)
}

func (t *browserTools) visit(ctx context.Context, address string) error {
	if err := t.session.VisitPage(ctx, address); err != nil {
		return fmt.Errorf("failed to visit %s: %w", address, err)
	}
	return nil
}

func (t *browserTools) informationalSearch(ctx context.Context, params map[string]interface{}) (string, error) {
	query, _ := stringParam(params, "query")
	if err := t.visit(ctx, browser.SearchScheme+" "+query); err != nil {
		return "", err
	}
	return t.reply(), nil
}

func (t *browserTools) navigationalSearch(ctx context.Context, params map[string]interface{}) (string, error) {
	query, _ := stringParam(params, "query")
	if err := t.visit(ctx, browser.SearchScheme+" "+query); err != nil {
		return "", err
	}

	if m := firstLinkRe.FindStringSubmatch(t.session.PageContent()); m != nil {
		if err := t.visit(ctx, m[1]); err != nil {
			return "", err
		}
	}
	return t.reply(), nil
}

func (t *browserTools) visitPage(ctx context.Context, params map[string]interface{}) (string, error) {
	url, _ := stringParam(params, "url")
	if err := t.visit(ctx, url); err != nil {
		return "", err
	}
	return t.reply(), nil
}

func (t *browserTools) pageUp(_ context.Context, _ map[string]interface{}) (string, error) {
	t.session.PageUp()
	return t.reply(), nil
}

func (t *browserTools) pageDown(_ context.Context, _ map[string]interface{}) (string, error) {
	t.session.PageDown()
	return t.reply(), nil
}

func (t *browserTools) findOnPage(_ context.Context, params map[string]interface{}) (string, error) {
	query, _ := stringParam(params, "search_string")
	match := t.session.FindOnPage(query)
	header, viewport := browserState(t.session, t.now())
	if match == nil {
		return formatReply(header, "The search string '"+query+"' was not found on this page."), nil
	}
	return formatReply(header, viewport), nil
}

func (t *browserTools) findNext(_ context.Context, _ map[string]interface{}) (string, error) {
	match := t.session.FindNext()
	header, viewport := browserState(t.session, t.now())
	if match == nil {
		return formatReply(header, "The search string was not found on this page."), nil
	}
	return formatReply(header, viewport), nil
}

func (t *browserTools) readPageAndAnswer(ctx context.Context, params map[string]interface{}) (string, error) {
	if url, ok := stringParam(params, "url"); ok && url != "" && url != t.session.Address() {
		if err := t.visit(ctx, url); err != nil {
			return "", err
		}
	}

	buffer := summaryBuffer(t.session.PageContent(), t.tokenLimit, t.headroom)
	if buffer == "" {
		return nothingToSummarize, nil
	}

	prompt := "Please summarize the following into one or two paragraph:\n\n" + buffer
	if question, ok := stringParam(params, "question"); ok {
		prompt = fmt.Sprintf("Please summarize the following into one or two paragraphs with respect to '%s':\n\n%s", question, buffer)
	}

	observability.RecordSummarization(agent.EstimateTextTokens(buffer))

	resp, err := t.summarizer.Complete(ctx, agent.CompletionRequest{
		SystemPrompt: summarizerSystemPrompt,
		Messages: []agent.Message{
			{Role: agent.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return resp.Content, nil
}

func (t *browserTools) summarizePage(ctx context.Context, params map[string]interface{}) (string, error) {
	forwarded := map[string]interface{}{}
	if url, ok := params["url"]; ok {
		forwarded["url"] = url
	}
	return t.readPageAndAnswer(ctx, forwarded)
}
