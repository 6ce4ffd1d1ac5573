package fetcher

import (
	"net/url"
	"reflect"
	"strings"
	"testing"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("http://abc.onion/dir/page.html")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("visible text title and images", func(t *testing.T) {
		t.Parallel()

		doc := `<!DOCTYPE html>
<html>
<head>
  <title>  Hidden Market  </title>
  <style>.x { color: red }</style>
  <script>var secret = 1;</script>
</head>
<body>
  <h1>Welcome</h1>
  <p>Buy <b>now</b></p>
  <noscript>enable javascript</noscript>
  <template><p>template text</p></template>
  <!-- a comment -->
  <img src="logo.png">
  <img alt="no source">
  <img src="/static/banner.jpg">
  <img src="http://other.onion/x.gif">
</body>
</html>`

		got, err := Extract(strings.NewReader(doc), "text/html", base, Limits{MaxTextLength: 2000, MaxImages: 10})
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}

		if got.Title != "Hidden Market" {
			t.Errorf("Title = %q", got.Title)
		}
		if got.Text != "Hidden Market Welcome Buy now" {
			t.Errorf("Text = %q", got.Text)
		}
		want := []string{
			"http://abc.onion/dir/logo.png",
			"http://abc.onion/static/banner.jpg",
			"http://other.onion/x.gif",
		}
		if !reflect.DeepEqual(got.Images, want) {
			t.Errorf("Images = %v, want %v", got.Images, want)
		}
	})

	t.Run("text truncated in runes", func(t *testing.T) {
		t.Parallel()

		doc := "<p>" + strings.Repeat("日本", 10) + "</p>"
		got, err := Extract(strings.NewReader(doc), "text/html; charset=utf-8", base, Limits{MaxTextLength: 5})
		if err != nil {
			t.Fatal(err)
		}
		if got.Text != "日本日本日" {
			t.Errorf("Text = %q", got.Text)
		}
	})

	t.Run("image cap keeps document order", func(t *testing.T) {
		t.Parallel()

		var b strings.Builder
		for _, name := range []string{"a", "b", "c", "d"} {
			b.WriteString(`<img src="` + name + `.png">`)
		}
		got, err := Extract(strings.NewReader(b.String()), "text/html", base, Limits{MaxImages: 2})
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"http://abc.onion/dir/a.png", "http://abc.onion/dir/b.png"}
		if !reflect.DeepEqual(got.Images, want) {
			t.Errorf("Images = %v, want %v", got.Images, want)
		}
	})

	t.Run("declared charset", func(t *testing.T) {
		t.Parallel()

		got, err := Extract(strings.NewReader("<p>caf\xe9</p>"), "text/html; charset=windows-1252", base, Limits{})
		if err != nil {
			t.Fatal(err)
		}
		if got.Text != "café" {
			t.Errorf("Text = %q", got.Text)
		}
	})

	t.Run("meta charset", func(t *testing.T) {
		t.Parallel()

		doc := "<html><head><meta charset=\"iso-8859-1\"></head><body>na\xefve</body></html>"
		got, err := Extract(strings.NewReader(doc), "", base, Limits{})
		if err != nil {
			t.Fatal(err)
		}
		if got.Text != "naïve" {
			t.Errorf("Text = %q", got.Text)
		}
	})

	t.Run("empty document", func(t *testing.T) {
		t.Parallel()

		got, err := Extract(strings.NewReader(""), "text/html", base, Limits{})
		if err != nil {
			t.Fatal(err)
		}
		if got.Title != "" || got.Text != "" || got.Images == nil || len(got.Images) != 0 {
			t.Errorf("Extract(empty) = %+v", got)
		}
	})
}
