package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const pageHTML = `<html><head><title>Page</title>
<meta property="og:title" content="Open Graph Title">
</head><body><article><p>Readable body text.</p></article></body></html>`

type cliFixture struct {
	db     string
	server *httptest.Server
	dump   string
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(pageHTML))
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	t.Setenv("LINKDUMP_CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("LINKDUMP_CACHE_BACKEND", "fs")
	t.Setenv("LINKDUMP_PRETTY_LOG", "false")

	dump := filepath.Join(dir, "20240301-links.md")
	content := fmt.Sprintf(`- Authored Title: %s/post
  - tags: go, web
  - via: @alice
- %s/other
  - tags: misc
`, server.URL, server.URL)
	if err := os.WriteFile(dump, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	return &cliFixture{db: filepath.Join(dir, "links.db"), server: server, dump: dump}
}

func (f *cliFixture) run(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--db", f.db, "--log-level", "error"}, args...))

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestImportAndShow(t *testing.T) {
	f := newCLIFixture(t)
	post := f.server.URL + "/post"

	out := f.run(t, "import", f.dump)
	if !strings.Contains(out, fmt.Sprintf("processed %q", f.dump)) {
		t.Errorf("import output = %q", out)
	}

	out = f.run(t, "show")
	if !strings.Contains(out, post) || !strings.Contains(out, f.server.URL+"/other") {
		t.Errorf("show output = %q", out)
	}

	out = f.run(t, "show", "-m", "attributions", "-t", "g*")
	if strings.TrimSpace(out) != "[authored-title]: "+post {
		t.Errorf("attributions = %q", out)
	}

	out = f.run(t, "show", "-m", "text", "*/post")
	if !strings.Contains(out, "Readable body text.") {
		t.Errorf("text = %q", out)
	}

	out = f.run(t, "show", "-m", "metadata", "*/post")
	for _, want := range []string{
		"url: " + post,
		"from: ",
		"tags: [go, web]",
		"friend, @alice",
		"og:title",
		"Open Graph Title",
		"content-type: text/html",
		"fetched",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metadata missing %q:\n%s", want, out)
		}
	}

	out = f.run(t, "tags")
	if out != "go\nmisc\nweb\n" {
		t.Errorf("tags = %q", out)
	}
}

func TestRefetchSkipsCachedAndHide(t *testing.T) {
	f := newCLIFixture(t)
	post := f.server.URL + "/post"

	f.run(t, "import", f.dump)

	out := f.run(t, "refetch", "*/post")
	if strings.TrimSpace(out) != post+"... skip!" {
		t.Errorf("refetch = %q", out)
	}

	out = f.run(t, "refetch", "--all", "*/post")
	if strings.TrimSpace(out) != post+"... done!" {
		t.Errorf("refetch --all = %q", out)
	}

	out = f.run(t, "rebuild")
	if strings.Count(out, "done!") != 2 {
		t.Errorf("rebuild = %q", out)
	}

	f.run(t, "hide", post)
	out = f.run(t, "list", "--hidden")
	if !strings.Contains(out, post) || !strings.Contains(strings.ToLower(out), "1 of 1") {
		t.Errorf("list --hidden = %q", out)
	}

	out = f.run(t, "list")
	if strings.Contains(out, post) {
		t.Errorf("hidden link listed: %q", out)
	}
}

func TestHideUnknownURL(t *testing.T) {
	f := newCLIFixture(t)

	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--db", f.db, "--log-level", "error", "hide", "https://nowhere.example/"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Error("hide should fail for an unknown url")
	}
}

func TestShowRejectsUnknownMode(t *testing.T) {
	f := newCLIFixture(t)

	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--db", f.db, "--log-level", "error", "show", "-m", "summary"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Error("show should reject unknown modes")
	}
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out.String(), "linkdump ") {
		t.Errorf("version = %q", out.String())
	}
}
