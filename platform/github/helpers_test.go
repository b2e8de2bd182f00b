package github_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ghplat "github.com/toptaldev92/renovate/platform/github"
)

type call struct {
	Method        string
	Path          string
	Query         url.Values
	Body          string
	Accept        string
	Authorization string
}

type reply struct {
	status int
	body   string
	header http.Header
}

// fakeHost serves canned GitHub API replies keyed by
// method and path. Replies queued for one key are served
// in order, the last one repeating.
type fakeHost struct {
	mu     sync.Mutex
	routes map[string][]reply
	calls  []call
	server *httptest.Server
}

func newFakeHost(t *testing.T) *fakeHost {
	t.Helper()

	h := &fakeHost{routes: make(map[string][]reply)}
	h.server = httptest.NewServer(h)
	t.Cleanup(h.server.Close)

	return h
}

func (h *fakeHost) on(
	method string,
	path string,
	status int,
	body string,
) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := method + " " + path
	h.routes[key] = append(h.routes[key], reply{
		status: status,
		body:   body,
	})
}

// onWithHeader queues a reply carrying extra response
// headers.
func (h *fakeHost) onWithHeader(
	method string,
	path string,
	status int,
	body string,
	header http.Header,
) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := method + " " + path
	h.routes[key] = append(h.routes[key], reply{
		status: status,
		body:   body,
		header: header,
	})
}

func (h *fakeHost) ServeHTTP(
	w http.ResponseWriter,
	r *http.Request,
) {
	body, _ := io.ReadAll(r.Body)

	h.mu.Lock()
	h.calls = append(h.calls, call{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.Query(),
		Body:          string(body),
		Accept:        r.Header.Get("Accept"),
		Authorization: r.Header.Get("Authorization"),
	})

	key := r.Method + " " + r.URL.Path
	queue := h.routes[key]

	rep := reply{
		status: http.StatusNotFound,
		body:   `{"message":"Not Found"}`,
	}

	if len(queue) > 0 {
		rep = queue[0]
		if len(queue) > 1 {
			h.routes[key] = queue[1:]
		}
	}
	h.mu.Unlock()

	for k, vs := range rep.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	_, _ = io.WriteString(w, rep.body)
}

func (h *fakeHost) recorded() []call {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]call(nil), h.calls...)
}

func (h *fakeHost) callsTo(method, path string) []call {
	var out []call

	for _, c := range h.recorded() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}

	return out
}

// indexOf returns the position of the first call to
// method and path, or -1.
func (h *fakeHost) indexOf(method, path string) int {
	for i, c := range h.recorded() {
		if c.Method == method && c.Path == path {
			return i
		}
	}

	return -1
}

func noBackoff(ghplat.Retry) time.Duration { return 0 }

func newClient(
	t *testing.T,
	h *fakeHost,
	cfg ghplat.Config,
	opts ...ghplat.Option,
) *ghplat.Client {
	t.Helper()

	if cfg.Token == "" && cfg.HTTPClient == nil {
		cfg.Token = "token"
	}

	cfg.Endpoint = h.server.URL + "/"

	opts = append(
		[]ghplat.Option{ghplat.WithBackoff(noBackoff)},
		opts...,
	)

	client, err := ghplat.New(cfg, opts...)
	require.NoError(t, err)

	return client
}

// serveRepo registers the replies Init needs for
// some/repo with master at 1234 and tree 5678.
func serveRepo(h *fakeHost, repoJSON string) {
	h.on(http.MethodGet, "/repos/some/repo", 200, repoJSON)
	h.on(
		http.MethodGet,
		"/repos/some/repo/git/refs/heads/master",
		200,
		`{"ref":"refs/heads/master","object":{"sha":"1234"}}`,
	)
	h.on(
		http.MethodGet,
		"/repos/some/repo/git/commits/1234",
		200,
		`{"sha":"1234","tree":{"sha":"5678"}}`,
	)
}

const defaultRepoJSON = `{
  "owner": {"login": "theowner"},
  "default_branch": "master",
  "allow_rebase_merge": true,
  "allow_squash_merge": true,
  "allow_merge_commit": true
}`

// initClient returns a client with an open session on
// some/repo.
func initClient(
	t *testing.T,
	repoJSON string,
	opts ...ghplat.Option,
) (*fakeHost, *ghplat.Client) {
	t.Helper()

	h := newFakeHost(t)
	serveRepo(h, repoJSON)

	client := newClient(t, h, ghplat.Config{}, opts...)

	_, err := client.Init(context.Background(), "some/repo")
	require.NoError(t, err)

	return h, client
}
