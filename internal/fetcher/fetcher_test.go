package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/chhaya/internal/model"
	"github.com/nao1215/chhaya/internal/storage"
)

func newLayout(t *testing.T) *storage.Layout {
	t.Helper()
	l := storage.New(t.TempDir())
	if err := l.Init(); err != nil {
		t.Fatal(err)
	}
	return l
}

func pageFiles(t *testing.T, l *storage.Layout) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(l.PagesDir())
	if err != nil {
		t.Fatal(err)
	}
	return entries
}

func TestFetch_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") == "" {
			t.Error("Accept header not sent")
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Forum</title></head>
<body><p>Members only</p><script>track()</script><img src="/a.png"></body></html>`))
	}))
	defer server.Close()

	layout := newLayout(t)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := New(server.Client(), layout, WithClock(func() time.Time { return fixed }))

	pageURL := server.URL + "/index.html"
	page, err := f.Fetch(context.Background(), pageURL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if page.URL != pageURL || page.Title != "Forum" || page.Status != model.PageCrawled {
		t.Errorf("page = %+v", page)
	}
	if page.TextContent != "Forum Members only" {
		t.Errorf("TextContent = %q", page.TextContent)
	}
	if len(page.Images) != 1 || page.Images[0] != server.URL+"/a.png" {
		t.Errorf("Images = %v", page.Images)
	}
	if !page.FetchedAt.Equal(fixed) {
		t.Errorf("FetchedAt = %v", page.FetchedAt)
	}

	if filepath.Base(page.StoragePath) != storage.PageFileName(pageURL) {
		t.Errorf("StoragePath = %s", page.StoragePath)
	}
	data, err := os.ReadFile(page.StoragePath)
	if err != nil {
		t.Fatalf("page artifact missing: %v", err)
	}
	want := "URL: " + pageURL + "\n\nText Content:\nForum Members only\n\nImage Links:\n" + server.URL + "/a.png\n"
	if string(data) != want {
		t.Errorf("artifact = %q, want %q", data, want)
	}
}

func TestFetch_Failures(t *testing.T) {
	t.Parallel()

	t.Run("error status writes nothing", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer server.Close()

		layout := newLayout(t)
		_, err := New(server.Client(), layout).Fetch(context.Background(), server.URL)
		if !errors.Is(err, ErrFetchFailed) {
			t.Fatalf("Fetch() error = %v, want ErrFetchFailed", err)
		}
		if !strings.Contains(err.Error(), "404") {
			t.Errorf("error should name the status: %v", err)
		}
		if n := len(pageFiles(t, layout)); n != 0 {
			t.Errorf("%d page files written on failure", n)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		}))
		defer server.Close()

		_, err := New(server.Client(), newLayout(t), WithTimeout(50*time.Millisecond)).
			Fetch(context.Background(), server.URL)
		if !errors.Is(err, ErrFetchFailed) || !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Fetch() error = %v, want ErrFetchFailed wrapping DeadlineExceeded", err)
		}
	})

	t.Run("unreachable host", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()

		_, err := New(http.DefaultClient, newLayout(t)).Fetch(context.Background(), addr)
		if !errors.Is(err, ErrFetchFailed) {
			t.Errorf("Fetch() error = %v, want ErrFetchFailed", err)
		}
	})

	t.Run("malformed url", func(t *testing.T) {
		t.Parallel()

		_, err := New(http.DefaultClient, newLayout(t)).Fetch(context.Background(), "http://[::1")
		if !errors.Is(err, ErrFetchFailed) {
			t.Errorf("Fetch() error = %v, want ErrFetchFailed", err)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<p>ok</p>"))
		}))
		defer server.Close()

		// No Init: the pages directory does not exist.
		layout := storage.New(filepath.Join(t.TempDir(), "missing"))
		_, err := New(server.Client(), layout).Fetch(context.Background(), server.URL)
		if !errors.Is(err, ErrFetchFailed) {
			t.Errorf("Fetch() error = %v, want ErrFetchFailed", err)
		}
	})
}

func TestFetch_BodyLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<p>" + strings.Repeat("a", 100) + "</p>"))
	}))
	defer server.Close()

	page, err := New(server.Client(), newLayout(t), WithMaxBodySize(10)).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if page.TextContent != "aaaaaaa" {
		t.Errorf("TextContent = %q, want the first 10 body bytes only", page.TextContent)
	}
}

func TestFetch_EmptyBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	layout := newLayout(t)
	page, err := New(server.Client(), layout).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v, want an empty crawled page", err)
	}
	if page.Status != model.PageCrawled {
		t.Errorf("Status = %v, want %v", page.Status, model.PageCrawled)
	}
	if page.Title != "" || page.TextContent != "" || len(page.Images) != 0 {
		t.Errorf("Fetch(empty) = %+v", page)
	}
	if got := len(pageFiles(t, layout)); got != 1 {
		t.Errorf("page files = %d, want 1", got)
	}
}
