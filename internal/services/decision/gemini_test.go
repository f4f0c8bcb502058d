package decision

import (
	"testing"

	"google.golang.org/genai"
)

func TestCollectCandidateText(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{"nil response", nil, ""},
		{"no candidates", &genai.GenerateContentResponse{}, ""},
		{
			"nil content candidate is skipped",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{
				{Content: nil},
				{Content: &genai.Content{Parts: []*genai.Part{{Text: "fallback"}}}},
			}},
			"fallback",
		},
		{
			"nil candidate is skipped",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{
				nil,
				{Content: &genai.Content{Parts: []*genai.Part{{Text: "ok"}}}},
			}},
			"ok",
		},
		{
			"first candidate with text wins",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: []*genai.Part{{Text: "first"}}}},
				{Content: &genai.Content{Parts: []*genai.Part{{Text: "second"}}}},
			}},
			"first",
		},
		{
			"parts are concatenated",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: []*genai.Part{{Text: "a"}, nil, {Text: "b"}}}},
			}},
			"ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := collectCandidateText(tt.resp); got != tt.want {
				t.Errorf("collectCandidateText() = %q, want %q", got, tt.want)
			}
		})
	}
}
