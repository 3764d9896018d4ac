package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// CallbackCompleter finishes a login from the provider's redirect query. [*session.Facade] is one.
type CallbackCompleter interface {
	CompleteLogin(ctx context.Context, query url.Values) error
}

// OAuthResult is the outcome of the one callback an [OAuthHandler] processes.
type OAuthResult struct {
	Err error
}

// OAuthHandler serves the redirect URI path.
//
// Only the first callback after construction or [OAuthHandler.Reset] is processed; later ones
// get 400. The outcome is sent once on [OAuthHandler.Result].
type OAuthHandler struct {
	completer CallbackCompleter
	path      string
	timeout   time.Duration

	mu          sync.Mutex
	resultChan  chan OAuthResult
	callbackHit bool
	sent        bool
}

// NewOAuthHandler creates a handler for the path of redirectURI.
func NewOAuthHandler(completer CallbackCompleter, redirectURI string) (*OAuthHandler, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI %q: %w", redirectURI, err)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return &OAuthHandler{
		completer:  completer,
		path:       path,
		timeout:    30 * time.Second,
		resultChan: make(chan OAuthResult, 1),
	}, nil
}

func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	// The exchange must outlive a browser that closes the tab early.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()

	err := h.completer.CompleteLogin(ctx, r.URL.Query())
	h.Send(OAuthResult{Err: err})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := resultPage{Title: "Authorization Successful", Message: "You can close this window and return to vinyl."}
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		page = resultPage{Title: "Authorization Failed", Message: err.Error(), Failed: true}
	}
	resultTemplate.Execute(w, page)
}

// Send delivers result unless one was already sent.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sent {
		return
	}
	h.sent = true
	h.resultChan <- result
	close(h.resultChan)
}

// Result receives exactly one result and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resultChan
}

// Reset arms the handler for another login.
func (h *OAuthHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbackHit = false
	h.sent = false
	h.resultChan = make(chan OAuthResult, 1)
}

type resultPage struct {
	Title   string
	Message string
	Failed  bool
}

var resultTemplate = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: {{if .Failed}}#e22134{{else}}#1DB954{{end}}; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{if .Failed}}✗{{else}}✓{{end}} {{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))
