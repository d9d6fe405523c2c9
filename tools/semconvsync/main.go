// semconvsync refreshes the vendored semantic convention model under
// third_party/semconv/model from a pinned tag of the upstream
// opentelemetry/semantic-conventions repository.
//
// Usage:
//
//	go run ./tools/semconvsync
//	go run ./tools/semconvsync -ref v1.34.0 -domains gen-ai,error -out third_party/semconv/model
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultRef     = "v1.34.0"
	defaultDomains = "gen-ai,error"
	defaultOut     = "third_party/semconv/model"
	defaultAPI     = "https://api.github.com/repos/open-telemetry/semantic-conventions/contents"

	// maxResponseSize caps listing and file reads.
	maxResponseSize = 8 * 1024 * 1024
)

type options struct {
	apiBase string
	ref     string
	domains []string
	outDir  string
	client  *http.Client
}

// listing is one entry of a GitHub contents API response.
type listing struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

func main() {
	refFlag := flag.String("ref", defaultRef, "upstream semantic-conventions tag to sync from")
	domainsFlag := flag.String("domains", defaultDomains, "comma-separated model domains to sync")
	outFlag := flag.String("out", defaultOut, "output model directory")
	flag.Parse()

	domains := parseDomains(*domainsFlag)
	if len(domains) == 0 {
		fmt.Fprintln(os.Stderr, "usage: semconvsync [-ref TAG] [-domains gen-ai,error] [-out DIR]")
		os.Exit(1)
	}

	opts := options{
		apiBase: defaultAPI,
		ref:     *refFlag,
		domains: domains,
		outDir:  *outFlag,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	if err := syncAll(opts); err != nil {
		fatal(err)
	}
}

func parseDomains(s string) []string {
	var domains []string
	for _, d := range strings.Split(s, ",") {
		d = strings.TrimSpace(d)
		if d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}

func syncAll(opts options) error {
	for _, domain := range opts.domains {
		n, err := syncDomain(opts, domain)
		if err != nil {
			return fmt.Errorf("%s: %w", domain, err)
		}
		fmt.Fprintf(os.Stderr, "%s: wrote %d files from %s\n", domain, n, opts.ref)
	}
	return nil
}

// syncDomain mirrors one model domain, walking subdirectories breadth
// first. Only YAML files are written, and only below the output directory.
func syncDomain(opts options, domain string) (int, error) {
	written := 0
	dirs := []string{""}
	for len(dirs) > 0 {
		sub := dirs[0]
		dirs = dirs[1:]

		entries, err := list(opts, path.Join("model", domain, sub))
		if err != nil {
			return written, err
		}
		for _, e := range entries {
			switch {
			case e.Type == "dir":
				dirs = append(dirs, path.Join(sub, e.Name))
			case e.Type == "file" && isYAML(e.Name):
				data, err := download(opts.client, e.DownloadURL)
				if err != nil {
					return written, fmt.Errorf("%s: %w", e.Path, err)
				}
				dest, err := safeJoin(opts.outDir, domain, sub, e.Name)
				if err != nil {
					return written, err
				}
				if err := writeFile(dest, data); err != nil {
					return written, err
				}
				written++
			}
		}
	}
	if written == 0 {
		return 0, fmt.Errorf("no model files found")
	}
	return written, nil
}

// list fetches one directory listing from the contents API.
func list(opts options, dir string) ([]listing, error) {
	u := fmt.Sprintf("%s/%s?ref=%s", opts.apiBase, dir, url.QueryEscape(opts.ref))
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := opts.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on response body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing %s: HTTP %s", dir, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}
	return parseListing(body)
}

// parseListing decodes a contents API directory response. Error responses
// are JSON objects rather than arrays and fail decoding.
func parseListing(data []byte) ([]listing, error) {
	var entries []listing
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	return entries, nil
}

func download(client *http.Client, rawURL string) ([]byte, error) {
	resp, err := client.Get(rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on response body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

// safeJoin joins path parts under base and rejects any result that
// resolves outside it.
func safeJoin(base string, parts ...string) (string, error) {
	joined := filepath.Join(append([]string{base}, parts...)...)
	cleanBase := filepath.Clean(base)
	if joined != cleanBase && !strings.HasPrefix(joined, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %s", filepath.Join(parts...), base)
	}
	return joined, nil
}

func writeFile(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644) //nolint:gosec // vendored model files are world-readable
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "semconvsync: %v\n", err)
	os.Exit(1)
}
