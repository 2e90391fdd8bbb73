package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeGenerator struct {
	responses []string
	errs      []error
	prompts   []string
	i         int
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	idx := f.i
	f.i++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return "", nil
}

func (f *fakeGenerator) ModelName() string { return "fake" }

func TestClassifyQueryNormalizesOutput(t *testing.T) {
	cases := []struct {
		raw  string
		want QueryClass
	}{
		{"specific", ClassSpecific},
		{"  Generic \n", ClassGeneric},
		{"IRRELEVANT", ClassIrrelevant},
		{"I think this is specific.", ClassIrrelevant},
		{"", ClassIrrelevant},
	}
	for _, tc := range cases {
		gen := &fakeGenerator{responses: []string{tc.raw}}
		if got := ClassifyQuery(context.Background(), gen, "q"); got != tc.want {
			t.Errorf("ClassifyQuery(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestClassifyQueryProviderErrorIsIrrelevant(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("status code: 500")}}
	if got := ClassifyQuery(context.Background(), gen, "q"); got != ClassIrrelevant {
		t.Fatalf("got %s, want irrelevant", got)
	}
}

func TestGenerateGenericAnswerFallbackString(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("boom")}}
	got := GenerateGenericAnswer(context.Background(), gen, "q")
	if got != "Unable to generate a response." {
		t.Fatalf("got %q", got)
	}
}

func TestJudgeRelatedness(t *testing.T) {
	cases := []struct {
		raw     string
		want    bool
		wantErr bool
	}{
		{"yes", true, false},
		{"Yes, they share a topic.", true, false},
		{"no", false, false},
		{"", false, true},
	}
	for _, tc := range cases {
		gen := &fakeGenerator{responses: []string{tc.raw}}
		got, err := JudgeRelatedness(context.Background(), gen, "pq", "pa", "nq")
		if (err != nil) != tc.wantErr {
			t.Errorf("JudgeRelatedness(%q) err=%v, wantErr=%v", tc.raw, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("JudgeRelatedness(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestJudgeRelatednessPropagatesProviderError(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("status code: 429")}}
	if _, err := JudgeRelatedness(context.Background(), gen, "pq", "pa", "nq"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRelatednessPromptCarriesTurn(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"no"}}
	_, _ = JudgeRelatedness(context.Background(), gen, "old question", "old answer", "new question")
	if len(gen.prompts) != 1 {
		t.Fatalf("expected one call, got %d", len(gen.prompts))
	}
	for _, frag := range []string{"old question", "old answer", "new question"} {
		if !strings.Contains(gen.prompts[0], frag) {
			t.Errorf("prompt missing %q", frag)
		}
	}
}
