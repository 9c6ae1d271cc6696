package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	neturl "net/url"
	"strings"
	"testing"
	"time"
)

func TestFetchSuccessFiltersHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "linkdump-test" {
			t.Errorf("User-Agent = %q", got)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Set-Cookie", "session=secret")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Add("Link", "</a>; rel=preload")
		w.Header().Add("Link", "</b>; rel=preload")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	client := New(Config{UserAgent: "linkdump-test"})
	resp, err := client.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp == nil {
		t.Fatal("Fetch() returned nil response")
	}
	if !resp.Success() {
		t.Errorf("Success() = false for status %d", resp.StatusCode)
	}

	body, err := resp.ReadBody()
	if err != nil {
		t.Fatalf("ReadBody() error = %v", err)
	}
	if string(body) != "<html>ok</html>" {
		t.Errorf("body = %q", body)
	}

	if _, ok := resp.Header["set-cookie"]; ok {
		t.Error("set-cookie should be filtered")
	}
	if _, ok := resp.Header["x-frame-options"]; ok {
		t.Error("x-frame-options should be filtered")
	}
	if got := resp.Header["content-type"]; len(got) != 1 || got[0] != "text/html; charset=utf-8" {
		t.Errorf("content-type = %v", got)
	}
	if got := resp.Header["link"]; len(got) != 2 {
		t.Errorf("link = %v, want both values", got)
	}
}

func TestFetchNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	resp, err := New(Config{}).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	defer resp.Close()

	if resp.Success() {
		t.Error("404 must not be a success")
	}
}

func TestFetchConnectionFailureReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	resp, err := New(Config{Timeout: 2 * time.Second}).Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil for connection failure", err)
	}
	if resp != nil {
		t.Errorf("Fetch() = %+v, want nil", resp)
	}
}

func TestFetchRedirectLimit(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+"/loop", http.StatusFound)
	}))
	defer server.Close()

	_, err := New(Config{MaxRedirects: 3}).Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrTooManyRedirects) {
		t.Errorf("Fetch() error = %v, want ErrTooManyRedirects", err)
	}
}

func TestReadBodyCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	resp, err := New(Config{MaxBodyBytes: 16}).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if _, err := resp.ReadBody(); !errors.Is(err, ErrBodyTooLarge) {
		t.Errorf("ReadBody() error = %v, want ErrBodyTooLarge", err)
	}
}

func TestRedirectPolicy(t *testing.T) {
	tests := []struct {
		name    string
		maxHops int
		via     int
		wantErr bool
	}{
		{"under limit", 3, 2, false},
		{"at limit", 3, 3, true},
		{"disabled", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			via := make([]*http.Request, tt.via)
			err := RedirectPolicy(tt.maxHops)(nil, via)
			if (err != nil) != tt.wantErr {
				t.Errorf("RedirectPolicy(%d) with %d hops error = %v, wantErr %v", tt.maxHops, tt.via, err, tt.wantErr)
			}
		})
	}
}

func TestFetchTimeoutReturnsNil(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	resp, err := New(Config{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil for timeout", err)
	}
	if resp != nil {
		t.Errorf("Fetch() = %+v, want nil", resp)
	}
}

// closingListener accepts connections and closes them without answering.
func closingListener(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	return "http://" + l.Addr().String()
}

func TestFetchNoResponseReturnsNil(t *testing.T) {
	tlsServer := httptest.NewTLSServer(http.NotFoundHandler())
	defer tlsServer.Close()

	tests := []struct {
		name string
		url  string
	}{
		{"untrusted certificate", tlsServer.URL + "/a"},
		{"dropped connection", closingListener(t) + "/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := New(Config{Timeout: 2 * time.Second}).Fetch(context.Background(), tt.url)
			if err != nil {
				t.Fatalf("Fetch() error = %v, want nil", err)
			}
			if resp != nil {
				t.Errorf("Fetch() = %+v, want nil", resp)
			}
		})
	}
}

func TestFetchCancelledContextIsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{}).Fetch(ctx, closingListener(t))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
}

func TestIsUnreachable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"url error", &neturl.Error{Op: "Get", URL: "https://a.com", Err: errors.New("EOF")}, true},
		{"redirect limit", &neturl.Error{Op: "Get", URL: "https://a.com", Err: ErrTooManyRedirects}, false},
		{"cancelled", &neturl.Error{Op: "Get", URL: "https://a.com", Err: context.Canceled}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUnreachable(tt.err); got != tt.want {
				t.Errorf("IsUnreachable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
