// Package github loads configuration files stored in GitHub repositories
// through the gh CLI, so private repositories work with the user's gh login.
package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

const scheme = "github://"

// Location identifies one file: github://owner/repo/path/to/file[@ref].
type Location struct {
	Owner string
	Repo  string
	Path  string
	Ref   string
}

// IsGitHubURL checks if a URL is a GitHub URL
func IsGitHubURL(s string) bool {
	return strings.HasPrefix(s, scheme)
}

// ParseLocation parses a github:// URL.
func ParseLocation(s string) (Location, error) {
	if !IsGitHubURL(s) {
		return Location{}, fmt.Errorf("invalid GitHub URL format: %s", s)
	}
	rest := strings.TrimPrefix(s, scheme)

	var loc Location
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		rest, loc.Ref = rest[:i], rest[i+1:]
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Location{}, errors.New("invalid GitHub URL format: expected github://owner/repo/path/to/file")
	}
	loc.Owner, loc.Repo, loc.Path = parts[0], parts[1], parts[2]
	return loc, nil
}

// APIPath returns the contents API path for the location.
func (l Location) APIPath() string {
	p := fmt.Sprintf("repos/%s/%s/contents/%s", l.Owner, l.Repo, l.Path)
	if l.Ref != "" {
		p += "?ref=" + url.QueryEscape(l.Ref)
	}
	return p
}

// Runner executes gh with args and returns its stdout.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

// Loader fetches raw file contents.
type Loader struct {
	run Runner
}

// NewLoader creates a Loader. A nil runner uses the gh binary on PATH.
func NewLoader(run Runner) *Loader {
	if run == nil {
		run = runGH
	}
	return &Loader{run: run}
}

// Load returns the raw contents of the file at a github:// URL.
func (l *Loader) Load(ctx context.Context, githubURL string) ([]byte, error) {
	loc, err := ParseLocation(githubURL)
	if err != nil {
		return nil, err
	}
	out, err := l.run(ctx, "api", "-H", "Accept: application/vnd.github.raw", loc.APIPath())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s from GitHub: %w", githubURL, err)
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, fmt.Errorf("empty response from GitHub for %s", githubURL)
	}
	return out, nil
}

func runGH(ctx context.Context, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, errors.New("gh CLI is not installed. Please install it from https://cli.github.com/")
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("gh command failed: %s", msg)
		}
		return nil, fmt.Errorf("gh command failed: %w", err)
	}
	return stdout.Bytes(), nil
}
