package domain

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrInvalidRepoID is returned when a repository identifier is not of the form "owner/name".
var ErrInvalidRepoID = errors.New("repository identifier must be of the form owner/name")

// RepoID identifies a GitHub repository as "owner/name".
type RepoID struct {
	Owner string
	Name  string
}

// ParseRepoID parses an "owner/name" string.
func ParseRepoID(s string) (RepoID, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || !validSegment(parts[0]) || !validSegment(parts[1]) {
		return RepoID{}, fmt.Errorf("%w: %q", ErrInvalidRepoID, s)
	}
	return RepoID{Owner: parts[0], Name: parts[1]}, nil
}

func validSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `\?#% `)
}

func (r RepoID) String() string {
	return r.Owner + "/" + r.Name
}

// DataPath is the relative location of the repository's timeline document.
func (r RepoID) DataPath() string {
	return path.Join("data", r.Owner, r.Name+".json")
}

// URL is the repository's page on GitHub.
func (r RepoID) URL() string {
	return "https://github.com/" + r.String()
}

// Entry is one daily snapshot of a repository's issue and pull request counts.
type Entry struct {
	Day          time.Time `json:"day"`
	OpenIssues   int       `json:"open_issues"`
	ClosedIssues int       `json:"closed_issues"`
	OpenPRs      int       `json:"open_prs"`
	ClosedPRs    int       `json:"closed_prs"`
}

// Report is the document stored per repository. Timeline is ordered by Day ascending.
type Report struct {
	Timeline []Entry `json:"timeline"`
}

// Metric names one of the counts tracked by an Entry.
type Metric string

const (
	MetricOpenIssues   Metric = "open_issues"
	MetricOpenPRs      Metric = "open_prs"
	MetricClosedIssues Metric = "closed_issues"
	MetricClosedPRs    Metric = "closed_prs"
)

// DefaultMetrics is the selection drawn when none is configured.
var DefaultMetrics = []Metric{MetricOpenIssues, MetricOpenPRs}

// ParseMetrics parses a list of metric names, rejecting unknown and duplicate entries.
func ParseMetrics(names []string) ([]Metric, error) {
	if len(names) == 0 {
		return DefaultMetrics, nil
	}
	seen := make(map[Metric]bool, len(names))
	metrics := make([]Metric, 0, len(names))
	for _, n := range names {
		m := Metric(strings.TrimSpace(n))
		if _, ok := metricLabels[m]; !ok {
			return nil, fmt.Errorf("unknown metric %q", n)
		}
		if seen[m] {
			return nil, fmt.Errorf("duplicate metric %q", n)
		}
		seen[m] = true
		metrics = append(metrics, m)
	}
	return metrics, nil
}

var metricLabels = map[Metric]string{
	MetricOpenIssues:   "Issues",
	MetricOpenPRs:      "PRs",
	MetricClosedIssues: "Closed issues",
	MetricClosedPRs:    "Closed PRs",
}

// Label is the series name shown in the chart legend.
func (m Metric) Label() string {
	if l, ok := metricLabels[m]; ok {
		return l
	}
	return string(m)
}

// Value extracts the metric's count from an entry.
func (m Metric) Value(e Entry) int {
	switch m {
	case MetricOpenIssues:
		return e.OpenIssues
	case MetricOpenPRs:
		return e.OpenPRs
	case MetricClosedIssues:
		return e.ClosedIssues
	case MetricClosedPRs:
		return e.ClosedPRs
	}
	return 0
}

// Series is one named trace of (x, y) points.
type Series struct {
	Type string   `json:"type"`
	Name string   `json:"name"`
	X    []string `json:"x"`
	Y    []int    `json:"y"`
}
