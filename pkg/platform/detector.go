package platform

import (
	"fmt"
	"os"
	"strings"

	"github.com/storysize/storysize/internal/textmatch"
)

// Keywords maps each platform to its technology keyword family.
type Keywords map[Platform][]string

// DefaultKeywords returns the built-in keyword families. They are a starting
// point; deployments override them through configuration.
func DefaultKeywords() Keywords {
	return Keywords{
		Frontend: {
			"frontend", "front-end", "ui", "ux", "web", "browser", "page", "screen",
			"responsive", "react", "angular", "vue", "svelte", "next.js", "typescript",
			"javascript", "html", "css", "tailwind", "component", "dashboard", "modal",
		},
		Backend: {
			"backend", "back-end", "api", "rest", "graphql", "grpc", "endpoint",
			"database", "sql", "postgres", "mysql", "mongodb", "redis", "service",
			"microservice", "server", "queue", "kafka", "authentication", "schema",
			"webhook",
		},
		Mobile: {
			"mobile", "mobile app", "ios", "android", "flutter", "react native",
			"swift", "kotlin", "dart", "push notification", "app store",
			"play store", "tablet", "offline mode",
		},
		DevOps: {
			"devops", "pipeline", "ci/cd", "docker", "container", "kubernetes", "k8s",
			"helm", "terraform", "deploy", "deployment", "infrastructure",
			"monitoring", "aws", "azure", "gcp", "github actions", "jenkins",
		},
	}
}

// Request is the input to Detect.
type Request struct {
	Text        string
	Directories map[Platform]string
	Force       []Platform
}

// Detector infers required platforms. It holds no mutable state and is safe
// for concurrent use.
type Detector struct {
	matchers    map[Platform]*textmatch.Matcher
	hasContents func(dir string) bool
}

// Option configures a Detector.
type Option func(*Detector)

// WithDirectoryCheck replaces the check deciding whether a code directory
// counts as evidence.
func WithDirectoryCheck(fn func(dir string) bool) Option {
	return func(d *Detector) { d.hasContents = fn }
}

// NewDetector builds a detector from keyword families. A nil map uses DefaultKeywords.
func NewDetector(kw Keywords, opts ...Option) *Detector {
	if kw == nil {
		kw = DefaultKeywords()
	}
	d := &Detector{
		matchers:    make(map[Platform]*textmatch.Matcher, len(kw)),
		hasContents: dirNonEmpty,
	}
	for p, words := range kw {
		d.matchers[p] = textmatch.Compile(words)
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Detect returns the required platforms for req. It never fails.
func (d *Detector) Detect(req Request) Detection {
	if forced := d.forced(req); len(forced.Requirements) > 0 {
		return forced
	}

	var det Detection
	var reasons []string
	for _, p := range All() {
		techs := d.matchers[p].Find(req.Text)
		dir := req.Directories[p]
		hasDir := dir != "" && d.hasContents(dir)
		if len(techs) == 0 && !hasDir {
			continue
		}

		r := Requirement{
			Platform:     p,
			Scope:        ScopeFromCount(len(techs)),
			Technologies: techs,
		}
		if len(techs) > 0 {
			r.Sources = append(r.Sources, SourceText)
		}
		if hasDir {
			r.Sources = append(r.Sources, SourceDirectory)
			r.Directory = dir
		}
		det.Requirements = append(det.Requirements, r)
		reasons = append(reasons, fmt.Sprintf("%s (%s, %d keywords)", p, r.Scope, len(techs)))
	}

	if len(det.Requirements) == 0 {
		return Detection{
			Requirements: []Requirement{{
				Platform: Backend,
				Scope:    ScopeLow,
				Sources:  []Source{SourceDefault},
			}},
			Reason: "no platform evidence found; defaulting to backend",
		}
	}
	det.Reason = "detected " + strings.Join(reasons, ", ")
	return det
}

// forced honors an explicit platform list verbatim. Technologies are still
// collected from the text so the scope label reflects the available evidence.
func (d *Detector) forced(req Request) Detection {
	var det Detection
	seen := make(map[Platform]bool)
	var names []string
	for _, p := range req.Force {
		if !p.Valid() || seen[p] {
			continue
		}
		seen[p] = true
		techs := d.matchers[p].Find(req.Text)
		r := Requirement{
			Platform:     p,
			Scope:        ScopeFromCount(len(techs)),
			Technologies: techs,
			Sources:      []Source{SourceForced},
			Directory:    req.Directories[p],
		}
		det.Requirements = append(det.Requirements, r)
		names = append(names, string(p))
	}
	if len(det.Requirements) > 0 {
		det.Reason = "platforms forced by caller: " + strings.Join(names, ", ")
	}
	return det
}

func dirNonEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			return true
		}
	}
	return false
}
