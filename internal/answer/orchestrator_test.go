package answer

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docs-answer-bot/models"
)

type fakeClient struct {
	mu      sync.Mutex
	prompts []string

	// reply picks the response for the n-th call (0 based).
	reply     func(n int, prompt string) (string, error)
	fragments []string
	streamErr error
}

func (f *fakeClient) SendRequest(ctx context.Context, p string) (string, error) {
	f.mu.Lock()
	n := len(f.prompts)
	f.prompts = append(f.prompts, p)
	f.mu.Unlock()
	return f.reply(n, p)
}

func (f *fakeClient) SendRequestStream(ctx context.Context, p string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f.mu.Lock()
		f.prompts = append(f.prompts, p)
		f.mu.Unlock()
		for _, frag := range f.fragments {
			if !yield(frag, nil) {
				return
			}
		}
		if f.streamErr != nil {
			yield("", f.streamErr)
		}
	}
}

func (f *fakeClient) Provider() string { return "FAKE" }

type fakeRetriever struct {
	docs    []models.RetrievedDocument
	err     error
	queries []string
	ks      []int
}

func (f *fakeRetriever) Search(ctx context.Context, query string, k int) ([]models.RetrievedDocument, error) {
	f.queries = append(f.queries, query)
	f.ks = append(f.ks, k)
	return f.docs, f.err
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("w ", n))
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.ChunkDelay = 0
	return opts
}

func TestAnswer_RefinesRetrievesAndSynthesizes(t *testing.T) {
	const question = "사이버 보안 관련 문서를 찾아줘"
	retriever := &fakeRetriever{docs: []models.RetrievedDocument{
		{ID: "1", Content: words(1500), Metadata: models.DocumentMetadata{Title: "보안 정책"}},
		{ID: "2", Content: words(1000), Metadata: models.DocumentMetadata{Title: "VPN"}},
		{ID: "3", Content: words(10), Metadata: models.DocumentMetadata{Title: "MFA"}},
	}}
	client := &fakeClient{reply: func(n int, p string) (string, error) {
		switch n {
		case 0:
			return ` "*사이버 보안*" `, nil
		case 1:
			return "partial-A", nil
		case 2:
			return "partial-B", nil
		default:
			return "final answer https://wiki/sec", nil
		}
	}}

	res := NewOrchestrator(client, retriever, testOptions(), nil).Answer(context.Background(), question)

	require.NoError(t, res.Err)
	assert.Equal(t, "final answer https://wiki/sec", res.Text())
	assert.Equal(t, "사이버 보안", res.RefinedQuery)
	assert.Equal(t, []string{"사이버 보안"}, retriever.queries)
	assert.Equal(t, []int{10}, retriever.ks)
	assert.Equal(t, 3, res.Documents)
	assert.Equal(t, 2, res.Chunks)

	require.Len(t, client.prompts, 4)
	assert.Contains(t, client.prompts[0], question)
	for _, p := range client.prompts[1:3] {
		assert.Contains(t, p, "### **사용자의 질문:**\n"+question+"\n", "chunk prompts use the question as asked")
	}
	assert.Contains(t, client.prompts[1], "보안 정책")
	assert.NotContains(t, client.prompts[1], "\"title\":\"VPN\"")
	assert.Contains(t, client.prompts[2], "\"title\":\"VPN\"")
	assert.Contains(t, client.prompts[2], "\"title\":\"MFA\"")
	assert.True(t, strings.HasPrefix(client.prompts[3], "다음은 "+question+"에 대하여"))
	assert.Contains(t, client.prompts[3], "partial-A\n\npartial-B")
}

func TestAnswer_NoDocumentsStillSynthesizes(t *testing.T) {
	client := &fakeClient{reply: func(n int, p string) (string, error) { return "reply", nil }}

	res := NewOrchestrator(client, &fakeRetriever{}, testOptions(), nil).Answer(context.Background(), "q")

	require.NoError(t, res.Err)
	assert.Equal(t, 0, res.Chunks)
	assert.Len(t, client.prompts, 2)
}

func TestAnswer_EmptyRefinementFallsBackToQuestion(t *testing.T) {
	retriever := &fakeRetriever{}
	client := &fakeClient{reply: func(n int, p string) (string, error) {
		if n == 0 {
			return `""`, nil
		}
		return "ok", nil
	}}

	res := NewOrchestrator(client, retriever, testOptions(), nil).Answer(context.Background(), "  원래 질문 ")

	require.NoError(t, res.Err)
	assert.Equal(t, []string{"원래 질문"}, retriever.queries)
}

func TestAnswer_Failures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		retriever *fakeRetriever
		failOn    int
		wantStage string
		wantErr   error
		wantCalls int
	}{
		{"refinement fails", &fakeRetriever{}, 0, StageRefine, ErrModelCall, 1},
		{"retrieval fails", &fakeRetriever{err: boom}, -1, StageRetrieve, ErrRetrieval, 1},
		{"chunk answer fails", &fakeRetriever{docs: []models.RetrievedDocument{{Content: "x"}}}, 1, StageAnswer, ErrModelCall, 2},
		{"synthesis fails", &fakeRetriever{docs: []models.RetrievedDocument{{Content: "x"}}}, 2, StageSynthesize, ErrModelCall, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{reply: func(n int, p string) (string, error) {
				if n == tt.failOn {
					return "", boom
				}
				return "fine", nil
			}}

			res := NewOrchestrator(client, tt.retriever, testOptions(), nil).Answer(context.Background(), "q")

			require.Error(t, res.Err)
			assert.ErrorIs(t, res.Err, tt.wantErr)
			assert.ErrorIs(t, res.Err, boom)
			var perr *PipelineError
			require.ErrorAs(t, res.Err, &perr)
			assert.Equal(t, tt.wantStage, perr.Stage)
			assert.True(t, strings.HasPrefix(res.Text(), "Error generating answer:"))
			assert.Contains(t, res.Text(), "boom")
			assert.Empty(t, res.Answer)
			assert.Len(t, client.prompts, tt.wantCalls)
		})
	}
}

func TestAnswer_PacingSpacesChunkCalls(t *testing.T) {
	const delay = 20 * time.Millisecond
	retriever := &fakeRetriever{docs: []models.RetrievedDocument{
		{ID: "1", Content: words(1500)},
		{ID: "2", Content: words(1000)},
	}}
	var calledAt []time.Time
	client := &fakeClient{reply: func(n int, p string) (string, error) {
		calledAt = append(calledAt, time.Now())
		return "x", nil
	}}
	opts := testOptions()
	opts.ChunkDelay = delay

	res := NewOrchestrator(client, retriever, opts, nil).Answer(context.Background(), "q")

	require.NoError(t, res.Err)
	require.Equal(t, 2, res.Chunks)
	require.Len(t, calledAt, 4)
	// refine, chunk 1, chunk 2, synthesize
	assert.GreaterOrEqual(t, calledAt[2].Sub(calledAt[1]), delay, "between chunk calls")
	assert.GreaterOrEqual(t, calledAt[3].Sub(calledAt[2]), delay, "before synthesis")
}

func TestAnswer_PacingHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeClient{reply: func(n int, p string) (string, error) {
		if n == 1 {
			cancel()
		}
		return "x", nil
	}}
	opts := testOptions()
	opts.ChunkDelay = time.Hour

	start := time.Now()
	res := NewOrchestrator(client, &fakeRetriever{docs: []models.RetrievedDocument{{Content: "a"}}}, opts, nil).Answer(ctx, "q")

	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, "canceled", res.ErrorKind())
	assert.Less(t, time.Since(start), time.Minute)
}

func collectStream(seq iter.Seq2[string, error]) ([]string, error) {
	var got []string
	for frag, err := range seq {
		if err != nil {
			return got, err
		}
		got = append(got, frag)
	}
	return got, nil
}

func TestAnswerStream(t *testing.T) {
	retriever := &fakeRetriever{docs: []models.RetrievedDocument{{Content: "doc", Metadata: models.DocumentMetadata{Title: "T"}}}}
	client := &fakeClient{fragments: []string{"안녕", "하세요"}}

	got, err := collectStream(NewOrchestrator(client, retriever, testOptions(), nil).AnswerStream(context.Background(), "질문"))

	require.NoError(t, err)
	assert.Equal(t, []string{"안녕", "하세요"}, got)
	assert.Equal(t, []string{"질문"}, retriever.queries, "streaming skips refinement")
	assert.Equal(t, []int{5}, retriever.ks)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Document 1:")
}

func TestAnswerStream_RetrievalErrorEndsStream(t *testing.T) {
	client := &fakeClient{}

	got, err := collectStream(NewOrchestrator(client, &fakeRetriever{err: errors.New("es down")}, testOptions(), nil).AnswerStream(context.Background(), "q"))

	assert.Empty(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetrieval)
	assert.Contains(t, err.Error(), "es down")
	assert.Empty(t, client.prompts)
}

func TestAnswerStream_ModelErrorEndsStream(t *testing.T) {
	client := &fakeClient{fragments: []string{"partial"}, streamErr: errors.New("stream broke")}

	got, err := collectStream(NewOrchestrator(client, &fakeRetriever{}, testOptions(), nil).AnswerStream(context.Background(), "q"))

	assert.Equal(t, []string{"partial"}, got)
	var pipeErr *PipelineError
	require.ErrorAs(t, err, &pipeErr)
	assert.Equal(t, StageAnswer, pipeErr.Stage)
	assert.ErrorIs(t, err, ErrModelCall)
	assert.True(t, strings.HasPrefix(ErrorText(err), ErrorPrefix))
}

func TestAnswerStream_FragmentLookingLikeAnErrorIsText(t *testing.T) {
	client := &fakeClient{fragments: []string{ErrorPrefix + "is how failures start", "."}}

	got, err := collectStream(NewOrchestrator(client, &fakeRetriever{}, testOptions(), nil).AnswerStream(context.Background(), "q"))

	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestAnswerStream_ConsumerStopsEarly(t *testing.T) {
	client := &fakeClient{fragments: []string{"a", "b", "c"}}

	var got []string
	for frag := range NewOrchestrator(client, &fakeRetriever{}, testOptions(), nil).AnswerStream(context.Background(), "q") {
		got = append(got, frag)
		break
	}
	assert.Equal(t, []string{"a"}, got)
}

func TestNormalizeQuery(t *testing.T) {
	tests := map[string]string{
		`"사이버 보안"`:                "사이버 보안",
		"*\"quantum computing\"*": "quantum computing",
		"  plain \n":              "plain",
		"“smart quotes”":          "smart quotes",
		`**`:                      "",
		"inner \"quotes\" kept":   "inner \"quotes\" kept",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeQuery(in), in)
	}
}

func TestResultErrorKind(t *testing.T) {
	assert.Equal(t, "", Result{}.ErrorKind())
	assert.Equal(t, "retrieval", Result{Err: retrievalError(errors.New("x"))}.ErrorKind())
	assert.Equal(t, "model_call", Result{Err: modelError(StageRefine, errors.New("x"))}.ErrorKind())
	assert.Equal(t, "timeout", Result{Err: modelError(StageAnswer, context.DeadlineExceeded)}.ErrorKind())
}
