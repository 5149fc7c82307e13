package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBidContent_UnmarshalLooseValues(t *testing.T) {
	raw := `{
		"matched_specs": [{"param_name": "voltage", "value": 220, "source": "P-100", "status": "matched"}],
		"deviation_table": [{"param_name": "weight", "tender_value": 10.5, "offered_value": "9.8", "deviation": "positive"}],
		"manual_review_sections": [{"section": "pricing", "reason": "fill in manually"}]
	}`

	var content BidContent
	require.NoError(t, json.Unmarshal([]byte(raw), &content))

	require.Len(t, content.MatchedSpecs, 1)
	assert.Equal(t, MatchedSpec{ParamName: "voltage", Value: "220", Source: "P-100", Status: SpecMatched}, content.MatchedSpecs[0])

	require.Len(t, content.DeviationTable, 1)
	row := content.DeviationTable[0]
	assert.Equal(t, "10.5", row.TenderValue)
	assert.Equal(t, "9.8", row.OfferedValue)
	assert.Equal(t, DeviationPositive, row.Deviation)
	assert.Equal(t, "weight", row.ParamName)
}

func TestBidStatus_IsValid(t *testing.T) {
	assert.True(t, BidStatusDraft.IsValid())
	assert.True(t, BidStatusFinalized.IsValid())
	assert.False(t, BidStatus("archived").IsValid())
}
