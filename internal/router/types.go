// Package router decides how an incoming question is answered: rejected,
// answered directly, or sent through retrieval, with or without carried
// follow-up context. Deciding and acting are separate steps so each branch is
// testable on its own.
package router

import (
	"github.com/joelkehle/intellipatent/internal/store"
)

// ConversationTurn is one prior exchange as the chat client reports it.
type ConversationTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
}

// Request is the /search payload.
type Request struct {
	Query   string             `json:"query"`
	History []ConversationTurn `json:"history,omitempty"`
	TopK    int                `json:"top_k"`
	Hybrid  bool               `json:"hybrid"`
	Summary bool               `json:"summary"`
}

// Response is the branch-dependent /search result. Related is a pointer so
// fresh-conversation responses carry no relation flag at all.
type Response struct {
	Results       []store.PatentRecord `json:"results"`
	Message       string               `json:"message,omitempty"`
	GenericAnswer string               `json:"generic_answer,omitempty"`
	LiveSummary   string               `json:"live_summary,omitempty"`
	Related       *bool                `json:"related,omitempty"`
	Note          string               `json:"note,omitempty"`
}

// DecisionKind is the routing tag produced by the decide step.
type DecisionKind int

const (
	FreshIrrelevant DecisionKind = iota
	FreshGeneric
	FreshSpecific
	FollowupSummary
	FollowupIrrelevant
	FollowupRelated
	FollowupUnrelated
)

func (k DecisionKind) String() string {
	switch k {
	case FreshIrrelevant:
		return "fresh_irrelevant"
	case FreshGeneric:
		return "fresh_generic"
	case FreshSpecific:
		return "fresh_specific"
	case FollowupSummary:
		return "followup_summary"
	case FollowupIrrelevant:
		return "followup_irrelevant"
	case FollowupRelated:
		return "followup_related"
	case FollowupUnrelated:
		return "followup_unrelated"
	default:
		return "unknown"
	}
}

// Decision is everything the dispatch step needs to act: the tag, the
// effective search/generation text, and follow-up provenance.
type Decision struct {
	Kind DecisionKind

	// SearchText is the text embedded and handed to generation. It is the
	// raw query on fresh and unrelated paths and the augmented query on
	// related follow-ups.
	SearchText string

	// Generic reports that the (possibly augmented) query classified as
	// generic on paths that still branch on it after the tag is fixed.
	Generic bool

	// ContextIndex is the 1-based position of the relevant turn that
	// supplied context; 0 when no turn did.
	ContextIndex int

	// SummarySource is the prior answer a follow-up summary is built from.
	SummarySource string
}

// relevantTurns is the subsequence of answered turns whose answer was not a
// relevance rejection. Recomputed on every request.
func relevantTurns(history []ConversationTurn) []ConversationTurn {
	var out []ConversationTurn
	for _, t := range history {
		if t.Answer == "" {
			continue
		}
		if containsFold(t.Answer, notRelevantMarker) {
			continue
		}
		out = append(out, t)
	}
	return out
}
