package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/interfaces"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
)

// DefaultPreambleLines is the size of the header discarded from the release body
const DefaultPreambleLines = 2

var conventionalSubject = regexp.MustCompile(`^(\w+)(?:\(([^)]*)\))?(!)?:\s*(.+)$`)

type changelogSection struct {
	title string
	types []string
}

// Sections in the order of the angular preset of conventional-changelog
var changelogSections = []changelogSection{
	{title: "Features", types: []string{"feat"}},
	{title: "Bug Fixes", types: []string{"fix"}},
	{title: "Performance Improvements", types: []string{"perf"}},
	{title: "Reverts", types: []string{"revert"}},
}

// Changelog derives release notes from the commit log between tags
type Changelog struct {
	git           interfaces.GitRepository
	repository    model.Repository
	preambleLines int
	includeOther  bool
	now           func() time.Time
}

// ChangelogOption configures the changelog generator
type ChangelogOption func(*Changelog)

// WithChangelogRepository enables compare and commit links for the repository
func WithChangelogRepository(repo model.Repository) ChangelogOption {
	return func(c *Changelog) {
		c.repository = repo
	}
}

// WithPreambleLines sets how many leading lines are discarded from the body
func WithPreambleLines(n int) ChangelogOption {
	return func(c *Changelog) {
		c.preambleLines = n
	}
}

// WithOtherChanges keeps commits that do not follow a known type in an
// "Other Changes" section
func WithOtherChanges(include bool) ChangelogOption {
	return func(c *Changelog) {
		c.includeOther = include
	}
}

// WithChangelogClock sets the clock used for the header date
func WithChangelogClock(now func() time.Time) ChangelogOption {
	return func(c *Changelog) {
		c.now = now
	}
}

// NewChangelog creates a changelog generator
func NewChangelog(git interfaces.GitRepository, opts ...ChangelogOption) *Changelog {
	c := &Changelog{
		git:           git,
		preambleLines: DefaultPreambleLines,
		includeOther:  true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate builds the changelog for tag from the commits after the
// previous version tag. The first release covers the whole history.
func (uc *Changelog) Generate(ctx context.Context, tag model.Tag) (*model.Changelog, error) {
	logger := ctxlog.From(ctx)

	names, err := uc.git.Tags(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tags")
	}
	prev := model.PreviousTag(model.VersionTags(names), tag)

	commits, err := uc.git.Log(ctx, prev.String(), tag.String())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read commit log",
			goerr.V("from", prev),
			goerr.V("to", tag))
	}

	logger.Info("Generated changelog",
		"tag", tag,
		"previous_tag", prev,
		"commit_count", len(commits),
	)

	text := uc.render(tag, prev, commits)
	return &model.Changelog{
		Tag:      tag,
		Previous: prev,
		Commits:  commits,
		Text:     text,
		Body:     discardLines(text, uc.preambleLines),
	}, nil
}

type parsedCommit struct {
	commit   model.Commit
	kind     string
	scope    string
	subject  string
	breaking string
}

func parseCommit(c model.Commit) parsedCommit {
	p := parsedCommit{commit: c, subject: c.Subject}
	if m := conventionalSubject.FindStringSubmatch(c.Subject); m != nil {
		p.kind = strings.ToLower(m[1])
		p.scope = m[2]
		p.subject = m[4]
		if m[3] == "!" {
			p.breaking = m[4]
		}
	}
	for _, prefix := range []string{"BREAKING CHANGE:", "BREAKING-CHANGE:"} {
		if idx := strings.Index(c.Body, prefix); idx >= 0 {
			p.breaking = strings.TrimSpace(c.Body[idx+len(prefix):])
			break
		}
	}
	return p
}

func (uc *Changelog) render(tag, prev model.Tag, commits []model.Commit) string {
	var sb strings.Builder

	version := strings.TrimPrefix(tag.String(), "v")
	date := uc.now().Format("2006-01-02")
	if !uc.repository.IsZero() && prev != "" {
		fmt.Fprintf(&sb, "## [%s](https://github.com/%s/compare/%s...%s) (%s)\n\n",
			version, uc.repository.FullName(), prev, tag, date)
	} else {
		fmt.Fprintf(&sb, "## %s (%s)\n\n", version, date)
	}

	parsed := make([]parsedCommit, 0, len(commits))
	for _, c := range commits {
		parsed = append(parsed, parseCommit(c))
	}

	known := map[string]bool{}
	for _, section := range changelogSections {
		var lines []string
		for _, p := range parsed {
			for _, kind := range section.types {
				known[kind] = true
				if p.kind == kind {
					lines = append(lines, uc.bullet(p))
				}
			}
		}
		writeSection(&sb, section.title, lines)
	}

	if uc.includeOther {
		var lines []string
		for _, p := range parsed {
			if !known[p.kind] {
				lines = append(lines, uc.bullet(p))
			}
		}
		writeSection(&sb, "Other Changes", lines)
	}

	var breaking []string
	for _, p := range parsed {
		if p.breaking != "" {
			breaking = append(breaking, "* "+scopePrefix(p.scope)+p.breaking)
		}
	}
	writeSection(&sb, "BREAKING CHANGES", breaking)

	return sb.String()
}

func (uc *Changelog) bullet(p parsedCommit) string {
	ref := p.commit.ShortHash()
	if !uc.repository.IsZero() {
		ref = fmt.Sprintf("[%s](https://github.com/%s/commit/%s)", ref, uc.repository.FullName(), p.commit.Hash)
	}
	return fmt.Sprintf("* %s%s (%s)", scopePrefix(p.scope), p.subject, ref)
}

func scopePrefix(scope string) string {
	if scope == "" || scope == "*" {
		return ""
	}
	return "**" + scope + ":** "
}

func writeSection(sb *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	sb.WriteString("### " + title + "\n\n")
	for _, line := range lines {
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n")
}

// discardLines drops the first n lines of text
func discardLines(text string, n int) string {
	for i := 0; i < n; i++ {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			return ""
		}
		text = text[idx+1:]
	}
	return text
}
