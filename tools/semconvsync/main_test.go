package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDomains(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"gen-ai,error", []string{"gen-ai", "error"}},
		{" gen-ai , error ", []string{"gen-ai", "error"}},
		{"gen-ai", []string{"gen-ai"}},
		{"", nil},
		{",,", nil},
	}
	for _, tt := range tests {
		got := parseDomains(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("parseDomains(%q) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parseDomains(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestParseListing(t *testing.T) {
	data := `[
		{"name": "spans.yaml", "path": "model/gen-ai/spans.yaml", "type": "file", "download_url": "https://example.com/spans.yaml"},
		{"name": "deprecated", "path": "model/gen-ai/deprecated", "type": "dir", "download_url": null}
	]`
	entries, err := parseListing([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Name != "spans.yaml" || entries[0].Type != "file" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Type != "dir" {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
}

func TestParseListingErrorObject(t *testing.T) {
	// The API reports errors as a JSON object, not an array.
	_, err := parseListing([]byte(`{"message": "Not Found"}`))
	if err == nil {
		t.Error("expected error for non-array response")
	}
}

func TestIsYAML(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"spans.yaml", true},
		{"registry.yml", true},
		{"README.md", false},
		{"schema.json", false},
		{"yaml", false},
	}
	for _, tt := range tests {
		if got := isYAML(tt.name); got != tt.want {
			t.Errorf("isYAML(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSafeJoin(t *testing.T) {
	t.Run("stays under base", func(t *testing.T) {
		got, err := safeJoin("out", "gen-ai", "spans.yaml")
		if err != nil {
			t.Fatal(err)
		}
		want := filepath.Join("out", "gen-ai", "spans.yaml")
		if got != want {
			t.Errorf("safeJoin = %q, want %q", got, want)
		}
	})

	t.Run("rejects traversal", func(t *testing.T) {
		for _, parts := range [][]string{
			{"gen-ai", "..", "..", "etc", "passwd"},
			{".."},
			{"..", "outside.yaml"},
		} {
			if _, err := safeJoin("out", parts...); err == nil {
				t.Errorf("safeJoin(%v) should fail", parts)
			}
		}
	})
}

func TestSyncDomain(t *testing.T) {
	const yamlBody = "groups:\n  - id: span.gen_ai.client\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/raw/") {
			fmt.Fprint(w, yamlBody)
			return
		}
		if r.URL.Query().Get("ref") != "v1.34.0" {
			http.Error(w, "bad ref", http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/contents/model/gen-ai":
			fmt.Fprintf(w, `[
				{"name": "spans.yaml", "path": "model/gen-ai/spans.yaml", "type": "file", "download_url": "%[1]s/raw/spans.yaml"},
				{"name": "metrics.yaml", "path": "model/gen-ai/metrics.yaml", "type": "file", "download_url": "%[1]s/raw/metrics.yaml"},
				{"name": "README.md", "path": "model/gen-ai/README.md", "type": "file", "download_url": "%[1]s/raw/README.md"},
				{"name": "deprecated", "path": "model/gen-ai/deprecated", "type": "dir", "download_url": null}
			]`, srvURL(r))
		case "/contents/model/gen-ai/deprecated":
			fmt.Fprintf(w, `[
				{"name": "old.yaml", "path": "model/gen-ai/deprecated/old.yaml", "type": "file", "download_url": "%s/raw/old.yaml"}
			]`, srvURL(r))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out := t.TempDir()
	opts := options{
		apiBase: srv.URL + "/contents",
		ref:     "v1.34.0",
		outDir:  out,
		client:  &http.Client{Timeout: 5 * time.Second},
	}

	n, err := syncDomain(opts, "gen-ai")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("wrote %d files, want 3", n)
	}

	for _, rel := range []string{
		filepath.Join("gen-ai", "spans.yaml"),
		filepath.Join("gen-ai", "metrics.yaml"),
		filepath.Join("gen-ai", "deprecated", "old.yaml"),
	} {
		data, err := os.ReadFile(filepath.Join(out, rel))
		if err != nil {
			t.Errorf("missing %s: %v", rel, err)
			continue
		}
		if string(data) != yamlBody {
			t.Errorf("%s: unexpected content %q", rel, data)
		}
	}

	if _, err := os.Stat(filepath.Join(out, "gen-ai", "README.md")); err == nil {
		t.Error("non-YAML file should not be written")
	}
}

func TestSyncDomainNoFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name": "README.md", "path": "model/empty/README.md", "type": "file", "download_url": ""}]`)
	}))
	defer srv.Close()

	opts := options{
		apiBase: srv.URL + "/contents",
		ref:     "v1.34.0",
		outDir:  t.TempDir(),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
	_, err := syncDomain(opts, "empty")
	if err == nil || !strings.Contains(err.Error(), "no model files found") {
		t.Errorf("expected no-files error, got: %v", err)
	}
}

func TestSyncDomainHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	opts := options{
		apiBase: srv.URL + "/contents",
		ref:     "v1.34.0",
		outDir:  t.TempDir(),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
	_, err := syncDomain(opts, "gen-ai")
	if err == nil || !strings.Contains(err.Error(), "HTTP") {
		t.Errorf("expected HTTP error, got: %v", err)
	}
}

// srvURL reconstructs the test server's base URL from the request, so the
// handler can emit download URLs that point back at itself.
func srvURL(r *http.Request) string {
	return "http://" + r.Host
}
