package router

import (
	"context"
	"fmt"
	"log"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/joelkehle/intellipatent/internal/embed"
	"github.com/joelkehle/intellipatent/internal/llm"
	"github.com/joelkehle/intellipatent/internal/pinecone"
	"github.com/joelkehle/intellipatent/internal/store"
)

const (
	notRelevantMarker = "not relevant to patents"

	msgRejected        = "Your query is not relevant to patents or intellectual property."
	msgTooGeneral      = "Your query is patent-related but too general; here's a direct answer."
	msgNoMatches       = "No relevant matches found; here's a direct answer."
	msgNewTopic        = "This is a new topic unrelated to previous queries."
	msgNoMatchNewTopic = "No relevant matches found for this new topic."
	msgFollowupGeneric = "This follow-up is relevant but generic."
	msgNoMatchFollowup = "No relevant matches found for this follow-up."
	msgNoSummaryText   = "No content available for summary."

	// noteDenseOnly marks responses where a hybrid request fell back to a
	// dense-only index query because sparse inference failed.
	noteDenseOnly = "Hybrid search unavailable; results are dense-only."
)

// technicalTerms force the specific path on substring match regardless of
// what the classifier says.
var technicalTerms = []string{
	"microprocessor", "pipeline", "semiconductor", "AI", "neural",
	"cache", "encryption", "robotics", "sensor", "optics",
}

// summaryKeywords mark a follow-up as a summary request over the previous
// answer; this check outranks every other follow-up check.
var summaryKeywords = []string{
	"summary", "summarize", "explain", "details", "list", "points",
	"highlight", "brief", "short", "lines", "bullet",
}

const DefaultTopK = 5

// Router executes the search flow against injected provider capabilities.
type Router struct {
	gen      llm.Generator
	embedder embed.Embedder
	sparse   pinecone.SparseEncoder
	index    pinecone.Index
	meta     store.MetadataStore
	tracer   trace.Tracer
}

func New(gen llm.Generator, embedder embed.Embedder, sparse pinecone.SparseEncoder, index pinecone.Index, meta store.MetadataStore) *Router {
	return &Router{
		gen:      gen,
		embedder: embedder,
		sparse:   sparse,
		index:    index,
		meta:     meta,
		tracer:   otel.Tracer("intellipatent/router"),
	}
}

// Search routes one query through decide then dispatch.
func (r *Router) Search(ctx context.Context, req Request) (Response, error) {
	ctx, span := r.tracer.Start(ctx, "router.search")
	defer span.End()

	req.Query = strings.TrimSpace(req.Query)
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}

	turns := relevantTurns(req.History)
	decision := r.decide(ctx, req.Query, turns)
	span.SetAttributes(
		attribute.String("decision", decision.Kind.String()),
		attribute.Int("relevant_turns", len(turns)),
	)
	log.Printf("router decision kind=%s relevant_turns=%d context_index=%d", decision.Kind, len(turns), decision.ContextIndex)

	return r.dispatch(ctx, req, decision)
}

// decide classifies the request into one routing tag. It consults the
// generation provider for classification and relatedness but performs no
// retrieval and produces no user-facing text.
func (r *Router) decide(ctx context.Context, query string, turns []ConversationTurn) Decision {
	ctx, span := r.tracer.Start(ctx, "router.decide")
	defer span.End()

	if len(turns) == 0 {
		class := llm.ClassifyQuery(ctx, r.gen, query)
		if matchesAny(query, technicalTerms) {
			class = llm.ClassSpecific
		}
		switch class {
		case llm.ClassIrrelevant:
			return Decision{Kind: FreshIrrelevant, SearchText: query}
		case llm.ClassGeneric:
			return Decision{Kind: FreshGeneric, SearchText: query}
		default:
			return Decision{Kind: FreshSpecific, SearchText: query}
		}
	}

	// Summary intent wins over everything else on the follow-up branch.
	if matchesAny(query, summaryKeywords) {
		last := turns[len(turns)-1]
		return Decision{
			Kind:          FollowupSummary,
			SearchText:    query,
			ContextIndex:  len(turns),
			SummarySource: last.Answer,
		}
	}

	class := llm.ClassifyQuery(ctx, r.gen, query)
	forced := matchesAny(query, technicalTerms)
	if class == llm.ClassIrrelevant && !forced {
		return Decision{Kind: FollowupIrrelevant, SearchText: query}
	}

	matchIdx := r.findRelatedTurn(ctx, turns, query)
	if matchIdx < 0 {
		// Unrelated to every prior context: treated as a new topic, with the
		// irrelevant case already ruled out above.
		generic := class == llm.ClassGeneric && !forced
		return Decision{Kind: FollowupUnrelated, SearchText: query, Generic: generic}
	}

	turn := turns[matchIdx]
	augmented := fmt.Sprintf("Previous Question: %s\nPrevious Answer: %s\nFollow-up Question: %s",
		turn.Question, turn.Answer, query)
	generic := llm.ClassifyQuery(ctx, r.gen, augmented) == llm.ClassGeneric
	return Decision{
		Kind:         FollowupRelated,
		SearchText:   augmented,
		Generic:      generic,
		ContextIndex: matchIdx + 1,
	}
}

// findRelatedTurn scans relevant turns most-recent-first and returns the
// index of the first turn the provider judges related, or -1. Provider
// errors skip the turn rather than aborting the scan.
func (r *Router) findRelatedTurn(ctx context.Context, turns []ConversationTurn, query string) int {
	for i := len(turns) - 1; i >= 0; i-- {
		related, err := llm.JudgeRelatedness(ctx, r.gen, turns[i].Question, turns[i].Answer, query)
		if err != nil {
			log.Printf("router relatedness_check_skipped turn=%d err=%q", i, err.Error())
			continue
		}
		if related {
			return i
		}
	}
	return -1
}

func (r *Router) dispatch(ctx context.Context, req Request, d Decision) (Response, error) {
	ctx, span := r.tracer.Start(ctx, "router.dispatch",
		trace.WithAttributes(attribute.String("decision", d.Kind.String())))
	defer span.End()

	switch d.Kind {
	case FreshIrrelevant:
		return Response{Results: []store.PatentRecord{}, Message: msgRejected}, nil

	case FreshGeneric:
		answer := llm.GenerateGenericAnswer(ctx, r.gen, d.SearchText)
		return Response{Results: []store.PatentRecord{}, Message: msgTooGeneral, GenericAnswer: answer}, nil

	case FreshSpecific:
		return r.retrieve(ctx, req, d.SearchText, nil, "", msgNoMatches)

	case FollowupSummary:
		summary := llm.GenerateSummary(ctx, r.gen, d.SearchText, d.SummarySource)
		return Response{
			Results:     []store.PatentRecord{},
			LiveSummary: summary,
			Related:     boolPtr(true),
			Note:        fmt.Sprintf("Summary of previous response (Query #%d)", d.ContextIndex),
		}, nil

	case FollowupIrrelevant:
		// Prior context stays usable for the next question.
		return Response{Results: []store.PatentRecord{}, Message: msgRejected, Related: boolPtr(false)}, nil

	case FollowupUnrelated:
		if d.Generic {
			answer := llm.GenerateGenericAnswer(ctx, r.gen, d.SearchText)
			return Response{
				Results:       []store.PatentRecord{},
				Message:       msgNewTopic,
				GenericAnswer: answer,
				Related:       boolPtr(false),
			}, nil
		}
		return r.retrieve(ctx, req, d.SearchText, boolPtr(false), "", msgNoMatchNewTopic)

	case FollowupRelated:
		note := fmt.Sprintf("Based on context from query #%d", d.ContextIndex)
		if d.Generic {
			answer := llm.GenerateGenericAnswer(ctx, r.gen, d.SearchText)
			return Response{
				Results:       []store.PatentRecord{},
				Message:       msgFollowupGeneric,
				GenericAnswer: answer,
				Related:       boolPtr(true),
				Note:          note,
			}, nil
		}
		resp, err := r.retrieve(ctx, req, d.SearchText, boolPtr(true), note, msgNoMatchFollowup)
		if err != nil {
			return resp, err
		}
		if len(resp.Results) > 0 {
			upgraded := fmt.Sprintf("Results based on context from query #%d", d.ContextIndex)
			if strings.Contains(resp.Note, noteDenseOnly) {
				upgraded = appendNote(upgraded, noteDenseOnly)
			}
			resp.Note = upgraded
		}
		return resp, nil

	default:
		return Response{}, fmt.Errorf("unhandled decision %s", d.Kind)
	}
}

// retrieve is the shared retrieval step: embed, query the index, fetch
// metadata, and optionally summarize the hits.
func (r *Router) retrieve(ctx context.Context, req Request, searchText string, related *bool, note, noMatchMsg string) (Response, error) {
	ctx, span := r.tracer.Start(ctx, "router.retrieve")
	defer span.End()

	dense, err := r.embedder.EmbedText(ctx, searchText)
	if err != nil {
		log.Printf("router dense_embedding_failed err=%q", err.Error())
		return Response{}, fmt.Errorf("failed to generate dense embedding")
	}

	queryReq := pinecone.QueryRequest{Vector: dense, TopK: req.TopK}
	degraded := false
	if req.Hybrid {
		sparse, err := r.sparse.EmbedSparse(ctx, searchText, true)
		if err != nil {
			// Hybrid degrades to dense-only instead of failing the request.
			log.Printf("router sparse_embedding_failed err=%q", err.Error())
			degraded = true
		} else {
			queryReq.SparseVector = sparse
		}
	}
	if degraded {
		note = appendNote(note, noteDenseOnly)
	}

	matches, err := r.index.Query(ctx, queryReq)
	if err != nil {
		return Response{}, fmt.Errorf("vector index query: %w", err)
	}
	span.SetAttributes(attribute.Int("matches", len(matches)))

	if len(matches) == 0 {
		answer := llm.GenerateGenericAnswer(ctx, r.gen, searchText)
		return Response{
			Results:       []store.PatentRecord{},
			Message:       noMatchMsg,
			GenericAnswer: answer,
			Related:       related,
			Note:          note,
		}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	records, err := r.meta.FetchByVectorIDs(ctx, ids)
	if err != nil {
		return Response{}, fmt.Errorf("fetch metadata: %w", err)
	}
	if records == nil {
		records = []store.PatentRecord{}
	}

	resp := Response{Results: records, Related: related, Note: note}
	if req.Summary {
		resp.LiveSummary = r.summarizeRecords(ctx, searchText, records)
	}
	return resp, nil
}

func (r *Router) summarizeRecords(ctx context.Context, searchText string, records []store.PatentRecord) string {
	var parts []string
	for _, rec := range records {
		if rec.DetailedSummary != "" {
			parts = append(parts, rec.DetailedSummary)
		}
	}
	combined := strings.TrimSpace(strings.Join(parts, " "))
	if combined == "" {
		return msgNoSummaryText
	}
	return llm.GenerateSummary(ctx, r.gen, searchText, combined)
}

func matchesAny(query string, terms []string) bool {
	for _, t := range terms {
		if containsFold(query, t) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func appendNote(note, extra string) string {
	if note == "" {
		return extra
	}
	return note + " " + extra
}

func boolPtr(b bool) *bool { return &b }
