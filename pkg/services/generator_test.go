package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/llm"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/prompts"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/retry"
)

func TestLLMBidGenerator_ParsesDraft(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(_ context.Context, prompt, system string, _ float64) (*llm.GenerateResponseResult, error) {
		assert.Contains(t, prompt, "CT tender")
		assert.NotEmpty(t, system)
		return &llm.GenerateResponseResult{Content: "<think>plan</think>\n```json\n" +
			`{"matched_specs":[{"param_name":"detector rows","value":"128","source":"CT-128","status":"matched"}],` +
			`"qualification_checks":[],"deviation_table":[],"manual_review_sections":[{"section":"pricing","reason":"manual"}]}` +
			"\n```"}, nil
	}

	gen := NewLLMBidGenerator(client, 0.2, zap.NewNop())
	content, err := gen.GenerateBid(context.Background(), &prompts.BidContext{ProjectName: "CT tender"})
	require.NoError(t, err)
	require.Len(t, content.MatchedSpecs, 1)
	assert.Equal(t, "128", content.MatchedSpecs[0].Value)
	assert.Equal(t, "pricing", content.ManualReviewSections[0].Section)
	assert.Equal(t, 1, client.Calls())
}

func TestLLMBidGenerator_RetriesTransientErrors(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(context.Context, string, string, float64) (*llm.GenerateResponseResult, error) {
		if client.Calls() < 2 {
			return nil, llm.NewError(llm.ErrorTypeRate, "slow down", true, nil)
		}
		return &llm.GenerateResponseResult{Content: `{"matched_specs":[]}`}, nil
	}

	gen := NewLLMBidGenerator(client, 0.2, zap.NewNop())
	gen.retry = &retry.Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	_, err := gen.GenerateBid(context.Background(), &prompts.BidContext{})
	require.NoError(t, err)
	assert.Equal(t, 2, client.Calls())
}

func TestLLMBidGenerator_PermanentErrorsAreNotRetried(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(context.Context, string, string, float64) (*llm.GenerateResponseResult, error) {
		return nil, llm.NewError(llm.ErrorTypeAuth, "bad key", false, errors.New("401"))
	}

	gen := NewLLMBidGenerator(client, 0.2, zap.NewNop())
	gen.retry = &retry.Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	_, err := gen.GenerateBid(context.Background(), &prompts.BidContext{})
	assert.Error(t, err)
	assert.Equal(t, 1, client.Calls())
}

func TestRuleBasedGenerator(t *testing.T) {
	expired := time.Now().AddDate(0, -1, 0)
	bc := &prompts.BidContext{
		RFPItems: []*models.RFPItem{
			{SectionType: "technical", ExtractedKey: "detector rows", ExtractedValue: "64", Operator: ">="},
			{SectionType: "technical", ExtractedKey: "weight", ExtractedValue: "500", Operator: "<="},
			{SectionType: "commercial", Content: "Quote a 5 year service contract\nwith details"},
		},
		ProductSpecs: []*models.ProductSpec{
			{ProductModel: "CT-128", ParamName: "Detector Rows", ParamValue: "128"},
		},
		Qualifications: []*models.Qualification{
			{Name: "ISO 13485"},
			{Name: "CE", ExpiryDate: &expired},
		},
	}

	content, err := RuleBasedGenerator{ExpiringWindow: 90 * 24 * time.Hour}.GenerateBid(context.Background(), bc)
	require.NoError(t, err)

	require.Len(t, content.MatchedSpecs, 2)
	assert.Equal(t, models.SpecMatched, content.MatchedSpecs[0].Status)
	assert.Equal(t, "CT-128", content.MatchedSpecs[0].Source)
	assert.Equal(t, models.SpecMissing, content.MatchedSpecs[1].Status)

	require.Len(t, content.QualificationChecks, 2)
	assert.Equal(t, "valid", content.QualificationChecks[0].Status)
	assert.Equal(t, "expired", content.QualificationChecks[1].Status)

	require.Len(t, content.ManualReviewSections, 1)
	assert.Equal(t, "commercial", content.ManualReviewSections[0].Section)
	assert.NotContains(t, content.ManualReviewSections[0].Reason, "\n")

	require.Len(t, content.DeviationTable, 2)
}

func TestRenderBidMarkdown_EscapesCells(t *testing.T) {
	out := string(RenderBidMarkdown("CT tender", "Standard", &models.BidContent{
		DeviationTable: []models.DeviationRow{{ParamName: "a|b", TenderValue: ">=1", OfferedValue: "2", Deviation: models.DeviationPositive}},
	}))
	assert.Contains(t, out, `a\|b`)
	assert.True(t, strings.HasPrefix(out, "# Bid: CT tender"))
	assert.NotContains(t, out, "Needs Manual Review")
}
