package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// QueryClass is the three-way routing label for an incoming question.
type QueryClass string

const (
	ClassIrrelevant QueryClass = "irrelevant"
	ClassGeneric    QueryClass = "generic"
	ClassSpecific   QueryClass = "specific"
)

const classifyPromptTemplate = `You are a query classifier for a Patent Q&A system.

Categories:
- 'irrelevant' -> Query is NOT related to patents, inventions, or intellectual property.
- 'generic' -> Query IS related to patents but is broad/general.
- 'specific' -> Query is related to patents and is specific enough that it might match a document in a patent database.

Respond with exactly one word: irrelevant, generic, or specific.

Query: %s`

const summaryPromptTemplate = `You are an expert patent analyst. Based on the user's query '%s', provide a comprehensive and structured summary of the following patent details.

Your summary should be broken down into the following sections:

1. **Invention Overview**
2. **Key Features & Components**
3. **Claims**
4. **Applications**

Only include information present in the given data. Do not make up facts.

Patent details from DB:
%s`

const genericAnswerPromptTemplate = `You are an expert in intellectual property law and patents.
Answer the following general question in a clear, concise, and accurate manner:

Question: %s

Provide structured and informative content without unnecessary details.`

const relatednessPromptTemplate = `Previous question: %s
Previous answer: %s
New follow-up question: %s

Is the new follow-up question relevant to the previous question and its answer?
Consider topics, themes, technical domains, and conceptual relationships.
Respond only with 'yes' or 'no'.`

// ClassifyQuery labels a query irrelevant, generic, or specific. Provider
// errors and unrecognized outputs both collapse to irrelevant so a flaky
// model can never widen the search surface.
func ClassifyQuery(ctx context.Context, gen Generator, query string) QueryClass {
	out, err := gen.Generate(ctx, fmt.Sprintf(classifyPromptTemplate, query))
	if err != nil {
		log.Printf("llm classify_error err=%q", err.Error())
		return ClassIrrelevant
	}
	switch c := QueryClass(strings.ToLower(strings.TrimSpace(out))); c {
	case ClassIrrelevant, ClassGeneric, ClassSpecific:
		return c
	default:
		return ClassIrrelevant
	}
}

// GenerateSummary produces the four-section patent summary for content,
// steered by the user's query. Returns "" on provider failure.
func GenerateSummary(ctx context.Context, gen Generator, query, content string) string {
	out, err := gen.Generate(ctx, fmt.Sprintf(summaryPromptTemplate, query, content))
	if err != nil {
		log.Printf("llm summary_error err=%q", err.Error())
		return ""
	}
	return strings.TrimSpace(out)
}

// GenerateGenericAnswer answers a broad patent question directly, with no
// retrieval behind it.
func GenerateGenericAnswer(ctx context.Context, gen Generator, query string) string {
	out, err := gen.Generate(ctx, fmt.Sprintf(genericAnswerPromptTemplate, query))
	if err != nil {
		log.Printf("llm generic_answer_error err=%q", err.Error())
		return "Unable to generate a response."
	}
	return strings.TrimSpace(out)
}

// JudgeRelatedness asks a yes/no question comparing a prior turn against a
// new query. The error return distinguishes "provider unusable" from "no".
func JudgeRelatedness(ctx context.Context, gen Generator, prevQuestion, prevAnswer, newQuery string) (bool, error) {
	out, err := gen.Generate(ctx, fmt.Sprintf(relatednessPromptTemplate, prevQuestion, prevAnswer, newQuery))
	if err != nil {
		return false, err
	}
	text := strings.ToLower(strings.TrimSpace(out))
	if text == "" {
		return false, fmt.Errorf("empty relatedness response")
	}
	return strings.HasPrefix(text, "y"), nil
}
