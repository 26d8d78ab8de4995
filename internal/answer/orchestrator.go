// Package answer runs the question answering pipeline: refine the question
// into a search query, retrieve documents, answer per chunk of documents and
// synthesize the partial answers into one reply.
package answer

import (
	"context"
	"iter"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"docs-answer-bot/internal/chunker"
	"docs-answer-bot/internal/llm"
	"docs-answer-bot/internal/logger"
	"docs-answer-bot/internal/prompt"
	"docs-answer-bot/internal/telemetry"
	"docs-answer-bot/models"
	"docs-answer-bot/utils"
)

// Retriever finds the documents relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]models.RetrievedDocument, error)
}

type Options struct {
	// RetrievalK is the number of documents fetched for a batch answer.
	RetrievalK int
	// StreamK is the number of documents fetched for a streamed answer.
	StreamK int
	// MaxTokenLimit is the model input budget; each chunk gets half of it.
	MaxTokenLimit int
	// ChunkDelay spaces out consecutive per-chunk model calls.
	ChunkDelay    time.Duration
	LLMTimeout    time.Duration
	SearchTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		RetrievalK:    10,
		StreamK:       5,
		MaxTokenLimit: 4000,
		ChunkDelay:    2 * time.Second,
		LLMTimeout:    2 * time.Minute,
		SearchTimeout: 15 * time.Second,
	}
}

type Orchestrator struct {
	client    llm.Client
	retriever Retriever
	opts      Options
	metrics   *telemetry.Metrics
}

func NewOrchestrator(client llm.Client, retriever Retriever, opts Options, metrics *telemetry.Metrics) *Orchestrator {
	defaults := DefaultOptions()
	if opts.RetrievalK <= 0 {
		opts.RetrievalK = defaults.RetrievalK
	}
	if opts.StreamK <= 0 {
		opts.StreamK = defaults.StreamK
	}
	if opts.MaxTokenLimit <= 0 {
		opts.MaxTokenLimit = defaults.MaxTokenLimit
	}
	return &Orchestrator{
		client:    client,
		retriever: retriever,
		opts:      opts,
		metrics:   metrics,
	}
}

// Answer runs the full batch pipeline. It never returns a Go error; failures
// are carried in Result.Err so the caller can still reply to the user.
func (o *Orchestrator) Answer(ctx context.Context, question string) Result {
	ctx, span := otel.Tracer("answer").Start(ctx, "answer.batch")
	defer span.End()

	start := time.Now()
	res := o.answer(ctx, question)
	o.finish("batch", start, res.Err)

	span.SetAttributes(
		attribute.Int("answer.documents", res.Documents),
		attribute.Int("answer.chunks", res.Chunks),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	return res
}

func (o *Orchestrator) answer(ctx context.Context, question string) Result {
	var res Result

	refined, err := o.call(ctx, StageRefine, prompt.BuildRefinementPrompt(question))
	if err != nil {
		res.Err = err
		return res
	}
	res.RefinedQuery = NormalizeQuery(refined)
	if res.RefinedQuery == "" {
		res.RefinedQuery = strings.TrimSpace(question)
	}

	docs, err := o.retrieve(ctx, res.RefinedQuery, o.opts.RetrievalK)
	if err != nil {
		res.Err = err
		return res
	}
	res.Documents = len(docs)

	chunks := chunker.Split(docs, o.opts.MaxTokenLimit/2)
	res.Chunks = len(chunks)
	logger.Debug("Answering over document chunks", "refined_query", res.RefinedQuery, "documents", len(docs), "chunks", len(chunks))

	partials := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		partial, err := o.call(ctx, StageAnswer, prompt.BuildAnswerPrompt(question, chunk))
		if err != nil {
			res.Err = err
			return res
		}
		partials = append(partials, partial)

		if err := utils.Sleep(ctx, o.opts.ChunkDelay); err != nil {
			res.Err = modelError(StageAnswer, err)
			return res
		}
	}

	final, err := o.call(ctx, StageSynthesize, prompt.BuildSynthesisPrompt(question, partials))
	if err != nil {
		res.Err = err
		return res
	}
	res.Answer = final
	return res
}

// AnswerStream retrieves with the question as asked and streams a single
// grounded answer. A failure is yielded once as a *PipelineError and ends
// the stream; rendering it for the user is left to the caller.
func (o *Orchestrator) AnswerStream(ctx context.Context, question string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := otel.Tracer("answer").Start(ctx, "answer.stream")
		defer span.End()

		start := time.Now()
		var streamErr error
		defer func() { o.finish("stream", start, streamErr) }()

		docs, err := o.retrieve(ctx, question, o.opts.StreamK)
		if err != nil {
			streamErr = err
			yield("", err)
			return
		}

		callCtx, cancel := utils.WithCustomTimeout(ctx, o.opts.LLMTimeout)
		defer cancel()

		for fragment, err := range o.client.SendRequestStream(callCtx, prompt.BuildAnswerPrompt(question, docs)) {
			if err != nil {
				streamErr = modelError(StageAnswer, err)
				o.metrics.RecordLLMCall(o.client.Provider(), StageAnswer, false)
				span.RecordError(streamErr)
				yield("", streamErr)
				return
			}
			if !yield(fragment, nil) {
				return
			}
		}
		o.metrics.RecordLLMCall(o.client.Provider(), StageAnswer, true)
	}
}

func (o *Orchestrator) call(ctx context.Context, stage, p string) (string, error) {
	callCtx, cancel := utils.WithCustomTimeout(ctx, o.opts.LLMTimeout)
	defer cancel()

	reply, err := o.client.SendRequest(callCtx, p)
	o.metrics.RecordLLMCall(o.client.Provider(), stage, err == nil)
	if err != nil {
		return "", modelError(stage, err)
	}
	return reply, nil
}

func (o *Orchestrator) retrieve(ctx context.Context, query string, k int) ([]models.RetrievedDocument, error) {
	searchCtx, cancel := utils.WithCustomTimeout(ctx, o.opts.SearchTimeout)
	defer cancel()

	docs, err := o.retriever.Search(searchCtx, query, k)
	if err != nil {
		return nil, retrievalError(err)
	}
	return docs, nil
}

func (o *Orchestrator) finish(mode string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = errorKind(err)
		logger.Warn("Answer pipeline failed", "mode", mode, "error_kind", outcome, "error", err)
	}
	o.metrics.RecordPipeline(mode, outcome, time.Since(start).Seconds())
}

// NormalizeQuery strips the quoting and emphasis models like to wrap a
// refined query in.
func NormalizeQuery(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		switch r {
		case '"', '\'', '*', '`', '“', '”', '‘', '’':
			return true
		}
		return unicode.IsSpace(r)
	})
}
