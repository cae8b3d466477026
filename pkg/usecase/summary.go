package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
)

//go:embed prompts/release_summary_system.md
var summarySystemPrompt string

//go:embed prompts/release_summary_user.md
var summaryUserPromptTemplate string

// Summarizer writes a short highlights paragraph for a changelog with an LLM
type Summarizer struct {
	llmClient    gollem.LLMClient
	userTemplate *template.Template
}

// NewSummarizer creates a Summarizer
func NewSummarizer(llmClient gollem.LLMClient) (*Summarizer, error) {
	tmpl, err := template.New("user").Parse(summaryUserPromptTemplate)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse user prompt template")
	}

	return &Summarizer{
		llmClient:    llmClient,
		userTemplate: tmpl,
	}, nil
}

// Summarize returns the highlights text for the changelog
func (uc *Summarizer) Summarize(ctx context.Context, changelog *model.Changelog) (string, error) {
	logger := ctxlog.From(ctx)

	var buf bytes.Buffer
	if err := uc.userTemplate.Execute(&buf, map[string]string{
		"Tag":      changelog.Tag.String(),
		"Previous": changelog.Previous.String(),
		"Body":     changelog.Body,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute user prompt template")
	}
	userPrompt := buf.String()

	logger.Debug("Calling LLM for release summary", "prompt_length", len(userPrompt))

	session, err := uc.llmClient.NewSession(ctx,
		gollem.WithSessionSystemPrompt(summarySystemPrompt),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(userPrompt))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate LLM content")
	}
	if len(resp.Texts) == 0 {
		return "", goerr.New("no response from LLM")
	}

	return strings.TrimSpace(strings.Join(resp.Texts, "")), nil
}
