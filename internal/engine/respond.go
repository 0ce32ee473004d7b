package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/kotileipomo/faq-engine/internal/intent"
	"github.com/kotileipomo/faq-engine/internal/resolvers"
	"github.com/kotileipomo/faq-engine/internal/retrieval"
)

// Source says which stage of the pipeline produced a response.
type Source string

// Response sources.
const (
	SourceRules    Source = "rules"
	SourceIntent   Source = "intent"
	SourceKB       Source = "kb"
	SourceFallback Source = "fallback"
)

// Response is the outcome of Respond. Match is 1 for rule and intent answers and the best
// candidate's blend score otherwise.
type Response struct {
	Reply      resolvers.Reply       `json:"reply"`
	Source     Source                `json:"source"`
	Match      float64               `json:"match"`
	Ref        string                `json:"ref,omitempty"`
	Candidates []retrieval.Candidate `json:"candidates,omitempty"`
}

// Respond runs the full pipeline: conversational rules, deterministic intents, gated
// knowledge base retrieval and finally the fallback composer.
func (e *Engine) Respond(ctx context.Context, query, lang string) (Response, error) {
	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		return Response{}, ErrEmptyQuery
	}
	lang = resolvers.Lang(lang)

	resp, err := e.respond(ctx, query, lang)
	if err != nil {
		return Response{}, err
	}
	e.metrics.ObserveRespond(string(resp.Source), time.Since(start))

	e.logger.WithContext(ctx).Debug().
		Str("source", string(resp.Source)).
		Str("intent", string(resp.Reply.Intent)).
		Float64("match", resp.Match).
		Int("candidates", len(resp.Candidates)).
		Dur("took", time.Since(start)).
		Msg("Query answered")
	return resp, nil
}

func (e *Engine) respond(ctx context.Context, query, lang string) (Response, error) {
	if text, ok := e.rules.Match(query, lang); ok {
		return Response{
			Reply:  resolvers.Reply{Intent: intent.None, Text: text},
			Source: SourceRules,
			Match:  1,
		}, nil
	}

	rep, err := e.Answer(ctx, query, lang)
	switch {
	case err == nil:
		return Response{Reply: rep, Source: SourceIntent, Match: 1}, nil
	case !errors.Is(err, ErrNoDeterministicMatch):
		return Response{}, err
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	snap := e.store.Current()
	cands := snap.FindBestMatches(query, e.config.TopK)
	resp := Response{
		Reply:      resolvers.Reply{Intent: intent.None},
		Candidates: cands,
	}
	if len(cands) > 0 {
		resp.Match = round3(cands[0].Blend)
	}
	items := e.rules.FilterTopic(query, cands)

	accepted := len(cands) > 0 && e.config.Gate.AcceptQuery(snap.Lexicon(), query, cands[0])
	e.metrics.ObserveRetrieval(accepted)
	if accepted {
		chosen := items[0]
		resp.Source = SourceKB
		resp.Ref = chosen.Entry.Source
		resp.Reply.Text = strings.TrimSpace(chosen.Entry.Answer)
		if resp.Reply.Text == "" {
			resp.Reply.Text = e.compose(snap, query, lang, items)
		}
		return resp, nil
	}

	resp.Source = SourceFallback
	resp.Reply.Text = e.compose(snap, query, lang, items)
	return resp, nil
}

// compose answers when retrieval was not confident: the help text when the query shares
// no token with the index or nothing was found, else the best candidate's answer.
func (e *Engine) compose(snap *retrieval.Snapshot, query, lang string, items []retrieval.Candidate) string {
	tokens := snap.Lexicon().Tokens(query)
	if len(items) == 0 || !snap.Stats().Overlaps(tokens) {
		return e.rules.Reply(replyFallback, lang, query)
	}
	if ans := strings.TrimSpace(items[0].Entry.Answer); ans != "" {
		return ans
	}
	return e.rules.Reply(replyEmptyAnswer, lang, query)
}

// Match exposes the retrieval contract: the top candidates and whether the best one
// passes the acceptance gate.
func (e *Engine) Match(query string, topK int) ([]retrieval.Candidate, bool) {
	if topK <= 0 {
		topK = e.config.TopK
	}
	snap := e.store.Current()
	cands := snap.FindBestMatches(query, topK)
	if len(cands) == 0 {
		return nil, false
	}
	return cands, e.config.Gate.AcceptQuery(snap.Lexicon(), query, cands[0])
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
