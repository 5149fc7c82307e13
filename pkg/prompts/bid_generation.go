// Package prompts builds the model prompts used for bid drafting.
package prompts

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// maxDocumentChars caps how much of an uploaded document goes into a prompt.
const maxDocumentChars = 60000

// BidContext is everything gathered for one bid generation.
type BidContext struct {
	ProjectName    string
	TemplateName   string
	TemplateType   string
	RFPText        string
	TemplateText   string
	RFPItems       []*models.RFPItem
	ProductSpecs   []*models.ProductSpec
	Qualifications []*models.Qualification
	Knowledge      []*models.ScoredChunk
}

// BuildBidGenerationPrompt asks for the structured BidContent JSON.
func BuildBidGenerationPrompt(bc *BidContext) string {
	var prompt strings.Builder

	prompt.WriteString("# Tender Response Draft\n\n")
	prompt.WriteString(fmt.Sprintf("Project: %s\n", bc.ProjectName))
	prompt.WriteString(fmt.Sprintf("Template: %s (%s)\n\n", bc.TemplateName, bc.TemplateType))

	if len(bc.RFPItems) > 0 {
		prompt.WriteString("## Extracted Requirements\n\n")
		for _, item := range bc.RFPItems {
			prompt.WriteString(fmt.Sprintf("- [%s] %s", item.SectionType, item.Content))
			if item.ExtractedKey != "" {
				prompt.WriteString(fmt.Sprintf(" (requires %s %s %s)", item.ExtractedKey, operatorOrEquals(item.Operator), item.ExtractedValue))
			}
			prompt.WriteString("\n")
		}
		prompt.WriteString("\n")
	}

	if len(bc.ProductSpecs) > 0 {
		prompt.WriteString("## Our Product Parameters\n\n")
		for _, spec := range bc.ProductSpecs {
			core := ""
			if spec.IsCoreParam {
				core = " [core]"
			}
			prompt.WriteString(fmt.Sprintf("- %s / %s: %s%s\n", spec.ProductModel, spec.ParamName, spec.ParamValue, core))
		}
		prompt.WriteString("\n")
	}

	if len(bc.Qualifications) > 0 {
		prompt.WriteString("## Company Qualifications\n\n")
		for _, q := range bc.Qualifications {
			expiry := "no expiry"
			if q.ExpiryDate != nil {
				expiry = "expires " + q.ExpiryDate.Format("2006-01-02")
			}
			prompt.WriteString(fmt.Sprintf("- %s (%s, %s)\n", q.Name, q.Status, expiry))
		}
		prompt.WriteString("\n")
	}

	if len(bc.Knowledge) > 0 {
		prompt.WriteString("## Relevant Passages From Previous Bids\n\n")
		for i, hit := range bc.Knowledge {
			prompt.WriteString(fmt.Sprintf("### Passage %d (similarity %.2f)\n%s\n\n", i+1, hit.Score, hit.Chunk.Content))
		}
	}

	if bc.RFPText != "" {
		prompt.WriteString("## RFP Document\n\n")
		prompt.WriteString(truncate(bc.RFPText))
		prompt.WriteString("\n\n")
	}
	if bc.TemplateText != "" {
		prompt.WriteString("## Template Outline\n\n")
		prompt.WriteString(truncate(bc.TemplateText))
		prompt.WriteString("\n\n")
	}

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond in JSON with:\n")
	prompt.WriteString("- `matched_specs`: one entry per tender parameter: `param_name`, `value` (our value), `source` (where the value came from), `status` (\"matched\" or \"missing\")\n")
	prompt.WriteString("- `qualification_checks`: one entry per qualification the tender requires: `name`, `status`, `expiry_date` (YYYY-MM-DD, optional)\n")
	prompt.WriteString("- `deviation_table`: `param_name`, `tender_value`, `offered_value`, `deviation` (\"positive\", \"none\" or \"negative\"), `remark`\n")
	prompt.WriteString("- `manual_review_sections`: parts a person must complete or check: `section`, `reason`\n\n")
	prompt.WriteString("Never invent product values. If a parameter is not listed above, mark it missing and add a manual review section.\n")
	prompt.WriteString("Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}

// BuildBidGenerationSystemMessage returns the system message for bid drafting.
func BuildBidGenerationSystemMessage() string {
	return `You are a bid writer for a medical equipment manufacturer. You draft tender responses strictly from the supplied product data and qualifications.`
}

// BuildSectionPrompt asks for prose for one section of a bid.
func BuildSectionPrompt(projectName, sectionType, requirement string, knowledge []*models.ScoredChunk) string {
	var prompt strings.Builder

	prompt.WriteString(fmt.Sprintf("Write the \"%s\" section of the tender response for project %s.\n\n", sectionType, projectName))
	prompt.WriteString("Requirement:\n")
	prompt.WriteString(requirement)
	prompt.WriteString("\n\n")

	if len(knowledge) > 0 {
		prompt.WriteString("Reuse wording from these previous bids where it fits:\n\n")
		for _, hit := range knowledge {
			prompt.WriteString("---\n")
			prompt.WriteString(hit.Chunk.Content)
			prompt.WriteString("\n")
		}
		prompt.WriteString("---\n\n")
	}

	prompt.WriteString("Return only the section text in markdown.\n")
	return prompt.String()
}

func operatorOrEquals(op string) string {
	if op == "" {
		return "="
	}
	return op
}

func truncate(s string) string {
	if len(s) <= maxDocumentChars {
		return s
	}
	cut := maxDocumentChars
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n[truncated]"
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
