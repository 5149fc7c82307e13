package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/llm"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/prompts"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/retry"
)

// BidGenerator drafts bid content from gathered inputs.
type BidGenerator interface {
	GenerateBid(ctx context.Context, bc *prompts.BidContext) (*models.BidContent, error)
	// GenerateSection writes prose for one section of a bid.
	GenerateSection(ctx context.Context, projectName, sectionType, requirement string, knowledge []*models.ScoredChunk) (string, error)
}

// LLMBidGenerator asks a language model for the draft.
type LLMBidGenerator struct {
	client      llm.LLMClient
	temperature float64
	retry       *retry.Config
	logger      *zap.Logger
}

// NewLLMBidGenerator creates a generator backed by client.
func NewLLMBidGenerator(client llm.LLMClient, temperature float64, logger *zap.Logger) *LLMBidGenerator {
	return &LLMBidGenerator{
		client:      client,
		temperature: temperature,
		retry:       retry.DefaultConfig(),
		logger:      logger.Named("llm-generator"),
	}
}

func (g *LLMBidGenerator) GenerateBid(ctx context.Context, bc *prompts.BidContext) (*models.BidContent, error) {
	prompt := prompts.BuildBidGenerationPrompt(bc)
	system := prompts.BuildBidGenerationSystemMessage()

	var content models.BidContent
	err := retry.DoIfRetryable(ctx, g.retry, func() error {
		result, err := g.client.GenerateResponse(ctx, prompt, system, g.temperature)
		if err != nil {
			return err
		}
		g.logger.Debug("Bid draft generated",
			zap.String("model", g.client.GetModel()),
			zap.Int("prompt_tokens", result.PromptTokens),
			zap.Int("completion_tokens", result.CompletionTokens))

		parsed, err := llm.ParseJSONResponse[models.BidContent](result.Content)
		if err != nil {
			// Malformed output is not worth another paid call.
			return fmt.Errorf("parse bid draft: %w", err)
		}
		content = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &content, nil
}

func (g *LLMBidGenerator) GenerateSection(ctx context.Context, projectName, sectionType, requirement string, knowledge []*models.ScoredChunk) (string, error) {
	prompt := prompts.BuildSectionPrompt(projectName, sectionType, requirement, knowledge)
	system := prompts.BuildBidGenerationSystemMessage()

	var text string
	err := retry.DoIfRetryable(ctx, g.retry, func() error {
		result, err := g.client.GenerateResponse(ctx, prompt, system, g.temperature)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(result.Content)
		return nil
	})
	return text, err
}

// RuleBasedGenerator assembles a draft without a model. It is used when no
// AI provider is configured.
type RuleBasedGenerator struct {
	// ExpiringWindow classifies qualifications close to expiry.
	ExpiringWindow time.Duration
}

func (g RuleBasedGenerator) GenerateBid(_ context.Context, bc *prompts.BidContext) (*models.BidContent, error) {
	content := &models.BidContent{
		MatchedSpecs:         []models.MatchedSpec{},
		QualificationChecks:  []models.QualificationCheck{},
		ManualReviewSections: []models.ReviewSection{},
	}

	specs := make(map[string]*models.ProductSpec, len(bc.ProductSpecs))
	for _, spec := range bc.ProductSpecs {
		specs[normalizeParam(spec.ParamName)] = spec
	}

	for _, item := range bc.RFPItems {
		if item.ExtractedKey == "" {
			content.ManualReviewSections = append(content.ManualReviewSections, models.ReviewSection{
				Section: item.SectionType,
				Reason:  "requirement has no comparable parameter: " + firstLine(item.Content),
			})
			continue
		}
		match := models.MatchedSpec{ParamName: item.ExtractedKey, Status: models.SpecMissing}
		if spec, ok := specs[normalizeParam(item.ExtractedKey)]; ok {
			match.Value = spec.ParamValue
			match.Source = spec.ProductModel
			match.Status = models.SpecMatched
		}
		content.MatchedSpecs = append(content.MatchedSpecs, match)
	}

	now := time.Now().UTC()
	for _, q := range bc.Qualifications {
		check := models.QualificationCheck{
			Name:   q.Name,
			Status: string(q.StatusAt(now, g.ExpiringWindow)),
		}
		if q.ExpiryDate != nil {
			check.ExpiryDate = q.ExpiryDate.Format(time.DateOnly)
		}
		content.QualificationChecks = append(content.QualificationChecks, check)
	}

	content.DeviationTable = ComputeDeviationTable(bc.RFPItems, bc.ProductSpecs)
	return content, nil
}

func (g RuleBasedGenerator) GenerateSection(_ context.Context, _, sectionType, requirement string, knowledge []*models.ScoredChunk) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", sectionType)
	if len(knowledge) == 0 {
		fmt.Fprintf(&b, "%s\n", strings.TrimSpace(requirement))
		return b.String(), nil
	}
	for _, hit := range knowledge {
		b.WriteString(strings.TrimSpace(hit.Chunk.Content))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if len(line) > 120 {
		line = line[:120]
	}
	return line
}

// RenderBidMarkdown renders the stored bid artifact.
func RenderBidMarkdown(projectName, templateName string, content *models.BidContent) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Bid: %s\n\n", projectName)
	fmt.Fprintf(&b, "Template: %s\n\n", templateName)

	b.WriteString("## Technical Specifications\n\n")
	b.WriteString("| Parameter | Offered | Source | Status |\n|---|---|---|---|\n")
	for _, m := range content.MatchedSpecs {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", cell(m.ParamName), cell(m.Value), cell(m.Source), m.Status)
	}

	b.WriteString("\n## Qualifications\n\n")
	checks := append([]models.QualificationCheck(nil), content.QualificationChecks...)
	sort.SliceStable(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })
	for _, q := range checks {
		if q.ExpiryDate != "" {
			fmt.Fprintf(&b, "- %s: %s (expires %s)\n", q.Name, q.Status, q.ExpiryDate)
		} else {
			fmt.Fprintf(&b, "- %s: %s\n", q.Name, q.Status)
		}
	}

	b.WriteString("\n## Technical Deviation Table\n\n")
	b.WriteString("| Parameter | Required | Offered | Deviation | Remark |\n|---|---|---|---|---|\n")
	for _, row := range content.DeviationTable {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			cell(row.ParamName), cell(row.TenderValue), cell(row.OfferedValue), row.Deviation, cell(row.Remark))
	}

	if len(content.ManualReviewSections) > 0 {
		b.WriteString("\n## Needs Manual Review\n\n")
		for _, s := range content.ManualReviewSections {
			fmt.Fprintf(&b, "- **%s**: %s\n", s.Section, s.Reason)
		}
	}
	return []byte(b.String())
}

func cell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}

var (
	_ BidGenerator = (*LLMBidGenerator)(nil)
	_ BidGenerator = RuleBasedGenerator{}
)
