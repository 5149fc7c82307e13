package llm

import (
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"think tag", "<think>\nlet me see {not json}\n</think>\n{\"a\":1}", `{"a":1}`},
		{"code fence", "Here you go:\n```json\n{\"a\": [1, 2]}\n```\nDone.", `{"a": [1, 2]}`},
		{"prose before", `The answer is {"deviation_table": []} as requested.`, `{"deviation_table": []}`},
		{"braces in strings", `{"remark": "value {x} ]"}`, `{"remark": "value {x} ]"}`},
		{"skips invalid bracket", `[note] {"ok": true}`, `{"ok": true}`},
		{"array", `result: [{"a":1},{"a":2}]`, `[{"a":1},{"a":2}]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractJSON(tc.input)
			if err != nil {
				t.Fatalf("ExtractJSON: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractJSON_NoJSON(t *testing.T) {
	for _, in := range []string{"", "no json here", "{unterminated", "<think>{\"a\":1}</think>"} {
		if _, err := ExtractJSON(in); err == nil {
			t.Errorf("ExtractJSON(%q) expected error", in)
		}
	}
}

func TestParseJSONResponse(t *testing.T) {
	type row struct {
		ParamName string `json:"param_name"`
	}
	got, err := ParseJSONResponse[[]row]("```\n[{\"param_name\":\"weight\"}]\n```")
	if err != nil {
		t.Fatalf("ParseJSONResponse: %v", err)
	}
	if len(got) != 1 || got[0].ParamName != "weight" {
		t.Fatalf("unexpected result %+v", got)
	}

	if _, err := ParseJSONResponse[row]("[1,2]"); err == nil {
		t.Fatalf("expected unmarshal error for mismatched shape")
	}
}
