// Package update compares the installed pangolin tool and pangoLEARN model
// with their latest GitHub releases.
package update

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultAPIURL is the GitHub REST endpoint releases are fetched from.
const DefaultAPIURL = "https://api.github.com"

// Component is a versioned piece of the lineage-calling toolchain. Installed
// versions print as "pangolin 2.3.8" while releases are named
// "pangolin v2.3.8", hence Separator.
type Component struct {
	Name        string
	Repo        string   // GitHub owner/name
	VersionArgs []string // arguments that make pangolin print this version
	Separator   string   // replaces spaces in the installed version to match release names
}

// Components are the tools checked by Check.
var Components = []Component{
	{Name: "pangolin", Repo: "cov-lineages/pangolin", VersionArgs: []string{"--version"}, Separator: " v"},
	{Name: "pangoLEARN", Repo: "cov-lineages/pangoLEARN", VersionArgs: []string{"--pangoLEARN-version"}, Separator: " data release "},
}

// Runner runs a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

func execRunner(ctx context.Context, name string, args ...string) (string, error) {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run %s %s: %w", name, strings.Join(args, " "), err)
	}
	return stdout.String(), nil
}

// Checker looks up installed and released versions.
type Checker struct {
	APIURL  string
	Command string // pangolin executable
	client  *http.Client
	run     Runner
	logger  *zap.Logger
}

// NewChecker creates a checker against the public GitHub API.
func NewChecker() *Checker {
	return &Checker{
		APIURL:  DefaultAPIURL,
		Command: "pangolin",
		client:  &http.Client{Timeout: 30 * time.Second},
		run:     execRunner,
		logger:  zap.NewNop(),
	}
}

// SetLogger sets the logger for request tracing.
func (c *Checker) SetLogger(l *zap.Logger) {
	c.logger = l
}

// SetClient replaces the HTTP client.
func (c *Checker) SetClient(client *http.Client) {
	c.client = client
}

// SetRunner replaces the command runner used by Installed.
func (c *Checker) SetRunner(r Runner) {
	c.run = r
}

type release struct {
	Name    string `json:"name"`
	TagName string `json:"tag_name"`
}

// Latest returns the name of the newest release of repo (owner/name).
func (c *Checker) Latest(ctx context.Context, repo string) (string, error) {
	url := strings.TrimRight(c.APIURL, "/") + "/repos/" + repo + "/releases"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	c.logger.Debug("fetching releases", zap.String("url", url))
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error for %s: %s", repo, resp.Status)
	}

	var releases []release
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&releases); err != nil {
		return "", fmt.Errorf("decode releases for %s: %w", repo, err)
	}
	if len(releases) == 0 {
		return "", fmt.Errorf("no releases published for %s", repo)
	}
	if releases[0].Name == "" {
		return releases[0].TagName, nil
	}
	return releases[0].Name, nil
}

// Installed returns the installed version of comp, normalized to match its
// release names.
func (c *Checker) Installed(ctx context.Context, comp Component) (string, error) {
	out, err := c.run(ctx, c.Command, comp.VersionArgs...)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(strings.TrimSpace(out), " ", comp.Separator), nil
}

// Status is the outcome of checking one component.
type Status struct {
	Component Component
	Installed string
	Latest    string
}

// Current reports whether the installed version is the latest release.
func (s Status) Current() bool {
	return s.Installed == s.Latest
}

// UpgradeHint returns the command that installs the latest release.
func (s Status) UpgradeHint() string {
	return fmt.Sprintf("pip install git+https://github.com/%s.git --upgrade", s.Component.Repo)
}

// Check compares every component in comps with its latest release.
func (c *Checker) Check(ctx context.Context, comps []Component) ([]Status, error) {
	statuses := make([]Status, 0, len(comps))
	for _, comp := range comps {
		installed, err := c.Installed(ctx, comp)
		if err != nil {
			return nil, fmt.Errorf("%s installed version: %w", comp.Name, err)
		}
		latest, err := c.Latest(ctx, comp.Repo)
		if err != nil {
			return nil, fmt.Errorf("%s latest release: %w", comp.Name, err)
		}
		c.logger.Debug("version check",
			zap.String("component", comp.Name),
			zap.String("installed", installed),
			zap.String("latest", latest))
		statuses = append(statuses, Status{Component: comp, Installed: installed, Latest: latest})
	}
	return statuses, nil
}

// WriteReport prints one line per component, with an upgrade hint when a
// newer release exists.
func WriteReport(w io.Writer, statuses []Status) error {
	for _, s := range statuses {
		var err error
		if s.Current() {
			_, err = fmt.Fprintf(w, "Latest %s already installed: %s\n", s.Component.Name, s.Installed)
		} else {
			_, err = fmt.Fprintf(w, "Newer %s available: %s\nConsider running: `%s`\n",
				s.Component.Name, s.Latest, s.UpgradeHint())
		}
		if err != nil {
			return err
		}
	}
	return nil
}
