package conversation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goatkit/deskpilot/internal/desk"
	"github.com/goatkit/deskpilot/internal/events"
	"github.com/goatkit/deskpilot/internal/kvstore"
	"github.com/goatkit/deskpilot/internal/ratelimit"
)

func TestUnify_CommentsMergedAndSorted(t *testing.T) {
	threads := []desk.Thread{{ID: "t1", Content: "thread", CreatedTime: "2024-01-02T10:00"}}
	comments := []desk.Comment{{ID: "c1", Content: "note", CommentedTime: "2024-01-01T09:00"}}

	got := Unify(threads, nil, comments)
	require.Len(t, got, 2)
	assert.Equal(t, SourceComment, got[0].Source)
	assert.Equal(t, SourceThread, got[1].Source)
}

func TestUnify_ConversationFallbackPreservesOrder(t *testing.T) {
	convs := []desk.Conversation{
		{ID: "1", Content: "first", CreatedTime: "2024-01-01T10:00:00Z"},
		{ID: "2", Content: "second", CreatedTime: "2024-01-01T11:00:00Z"},
		{ID: "3", Content: "third", CreatedTime: "2024-01-01T12:00:00Z"},
	}
	got := Unify(nil, convs, nil)
	require.Len(t, got, 3)
	for i, want := range []string{"first", "second", "third"} {
		assert.Equal(t, want, got[i].Content)
		assert.Equal(t, SourceConversation, got[i].Source)
	}
}

func TestUnify_ConversationsIgnoredWhenThreadsPresent(t *testing.T) {
	threads := []desk.Thread{{Content: "t"}}
	convs := []desk.Conversation{{Content: "c"}}
	got := Unify(threads, convs, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "t", got[0].Content)
}

func TestUnify_NestedConversationThreads(t *testing.T) {
	convs := []desk.Conversation{{
		Content:     "question",
		CreatedTime: "2024-01-01T10:00:00Z",
		Author:      &desk.Author{Type: "END_USER", Name: "Jane"},
		Threads: []desk.Thread{
			{Summary: "answer", CreatedTime: "2024-01-01T11:00:00Z", Author: &desk.Author{Type: "AGENT", Name: "Sam"}},
		},
	}}
	got := Unify(nil, convs, nil)
	require.Len(t, got, 2)
	assert.Equal(t, Customer, got[0].AuthorType)
	assert.Equal(t, "Jane", got[0].AuthorName)
	assert.Equal(t, "answer", got[1].Content)
	assert.Equal(t, Agent, got[1].AuthorType)
}

func TestUnify_ContentAndTimeFallbacks(t *testing.T) {
	threads := []desk.Thread{
		{PlainText: "plain", PostedTime: "2024-01-01T10:00:00Z"},
		{RichText: "<b>rich</b>", CreatedTime: "2024-01-01T11:00:00Z", PostedTime: "2020-01-01T00:00:00Z"},
		{Summary: "summary", CreatedTime: "2024-01-01T12:00:00Z"},
	}
	comments := []desk.Comment{{Comment: "legacy", CreatedTime: "2024-01-01T13:00:00Z"}}

	got := Unify(threads, nil, comments)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"plain", "<b>rich</b>", "summary", "legacy"},
		[]string{got[0].Content, got[1].Content, got[2].Content, got[3].Content})
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), got[0].CreatedAt)
	assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), got[1].CreatedAt, "createdTime wins over postedTime")
}

func TestUnify_MissingTimestampSortsFirst(t *testing.T) {
	threads := []desk.Thread{
		{Content: "dated", CreatedTime: "2024-01-01T10:00:00Z"},
		{Content: "undated"},
		{Content: "garbage", CreatedTime: "yesterday"},
	}
	got := Unify(threads, nil, nil)
	require.Len(t, got, 3)
	assert.Equal(t, "undated", got[0].Content)
	assert.Equal(t, "garbage", got[1].Content)
	assert.Equal(t, "dated", got[2].Content)
	assert.False(t, got[0].TimeKnown)
	assert.Equal(t, int64(0), got[0].CreatedAt.Unix())
}

func TestUnify_MalformedCreatedTimeFallsBackToPostedTime(t *testing.T) {
	threads := []desk.Thread{
		{Content: "later", CreatedTime: "2024-01-01T12:00:00Z"},
		{Content: "posted", CreatedTime: "yesterday", PostedTime: "2024-01-01T11:00:00Z"},
	}
	got := Unify(threads, nil, nil)
	require.Len(t, got, 2)
	assert.Equal(t, "posted", got[0].Content)
	assert.True(t, got[0].TimeKnown)
	assert.True(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC).Equal(got[0].CreatedAt), "got %s", got[0].CreatedAt)
}

func TestUnify_TiesBrokenBySourceThenFetchOrder(t *testing.T) {
	ts := "2024-01-01T10:00:00Z"
	threads := []desk.Thread{{Content: "thread-a", CreatedTime: ts}, {Content: "thread-b", CreatedTime: ts}}
	comments := []desk.Comment{{Content: "comment", CommentedTime: ts}}

	got := Unify(threads, nil, comments)
	assert.Equal(t, []string{"thread-a", "thread-b", "comment"},
		[]string{got[0].Content, got[1].Content, got[2].Content})

	// Comment first in fetch order still loses the tie to a thread.
	got = Unify([]desk.Thread{{Content: "thread", CreatedTime: ts}}, nil, comments)
	assert.Equal(t, SourceThread, got[0].Source)
}

func TestUnify_AuthorAndVisibility(t *testing.T) {
	threads := []desk.Thread{
		{Content: "a", AuthorType: "END_USER"},
		{Content: "b", Author: &desk.Author{Type: "AGENT", Email: "sam@corp.test"}},
		{Content: "c", Visibility: "private"},
	}
	comments := []desk.Comment{
		{Content: "d", Commenter: &desk.Author{Name: "Lee", Type: "AGENT"}},
		{Content: "e", IsPublic: true},
	}
	got := Unify(threads, nil, comments)
	byContent := map[string]Message{}
	for _, m := range got {
		byContent[m.Content] = m
	}
	assert.Equal(t, Customer, byContent["a"].AuthorType)
	assert.Equal(t, Agent, byContent["b"].AuthorType)
	assert.Equal(t, "sam@corp.test", byContent["b"].AuthorName)
	assert.Equal(t, Internal, byContent["c"].Visibility)
	assert.Equal(t, Public, byContent["a"].Visibility)
	assert.Equal(t, Internal, byContent["d"].Visibility)
	assert.Equal(t, "Lee", byContent["d"].AuthorName)
	assert.Equal(t, Public, byContent["e"].Visibility)
}

func TestUnify_Empty(t *testing.T) {
	assert.Empty(t, Unify(nil, nil, nil))
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-01-17T10:32:00.000Z", time.Date(2024, 1, 17, 10, 32, 0, 0, time.UTC), true},
		{"2024-01-17T10:32:00+01:00", time.Date(2024, 1, 17, 9, 32, 0, 0, time.UTC), true},
		{"2024-01-17 10:32", time.Date(2024, 1, 17, 10, 32, 0, 0, time.UTC), true},
		{"2024-01-17", time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC), true},
		{"not a time", time.Unix(0, 0).UTC(), false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTime(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	got, ok := ParseTime("garbage", "", "2024-01-17T10:32:00Z")
	assert.True(t, ok, "malformed candidates fall through")
	assert.True(t, time.Date(2024, 1, 17, 10, 32, 0, 0, time.UTC).Equal(got))

	got, ok = ParseTime("garbage", "also garbage")
	assert.False(t, ok)
	assert.Equal(t, int64(0), got.Unix())
}

type stubFetcher struct {
	threads       []desk.Thread
	conversations []desk.Conversation
	comments      []desk.Comment
	threadErr     error
	convErr       error
	commentErr    error
	convCalls     int
}

func (s *stubFetcher) GetThreads(context.Context, string) ([]desk.Thread, error) {
	return s.threads, s.threadErr
}

func (s *stubFetcher) GetConversations(context.Context, string) ([]desk.Conversation, error) {
	s.convCalls++
	return s.conversations, s.convErr
}

func (s *stubFetcher) GetComments(context.Context, string) ([]desk.Comment, error) {
	return s.comments, s.commentErr
}

func TestFetch_Fallbacks(t *testing.T) {
	ctx := context.Background()

	t.Run("threads present skips conversations", func(t *testing.T) {
		f := &stubFetcher{threads: []desk.Thread{{Content: "t"}}}
		msgs, err := Fetch(ctx, f, "1", nil)
		require.NoError(t, err)
		assert.Len(t, msgs, 1)
		assert.Equal(t, 0, f.convCalls)
	})

	t.Run("threads error falls back to conversations", func(t *testing.T) {
		f := &stubFetcher{threadErr: errors.New("boom"), conversations: []desk.Conversation{{Content: "c"}}}
		msgs, err := Fetch(ctx, f, "1", nil)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, SourceConversation, msgs[0].Source)
	})

	t.Run("both fail returns threads error", func(t *testing.T) {
		threadErr := errors.New("threads down")
		f := &stubFetcher{threadErr: threadErr, convErr: errors.New("convs down")}
		_, err := Fetch(ctx, f, "1", nil)
		assert.ErrorIs(t, err, threadErr)
	})

	t.Run("comment failure degrades", func(t *testing.T) {
		f := &stubFetcher{threads: []desk.Thread{{Content: "t"}}, commentErr: errors.New("nope")}
		msgs, err := Fetch(ctx, f, "1", nil)
		require.NoError(t, err)
		assert.Len(t, msgs, 1)
	})
}

func TestTranscriptAndSummary(t *testing.T) {
	msgs := []Message{
		{Source: SourceThread, AuthorType: Customer, AuthorName: "Jane", Content: "<p>Help, it is broken</p>",
			CreatedAt: time.Date(2024, 1, 17, 10, 32, 0, 0, time.UTC), TimeKnown: true, Visibility: Public},
		{Source: SourceComment, AuthorType: Agent, Content: "checking logs", Visibility: Internal},
	}
	out := Transcript(msgs)
	assert.Equal(t, "[2024-01-17 10:32] Customer (Jane)\nHelp, it is broken\n\n[unknown time] Agent [internal comment]\nchecking logs", out)

	s := Summarize(msgs)
	assert.Equal(t, Stats{Total: 2, Threads: 1, Comments: 1, Customer: 1, Agent: 1, Internal: 1}, s)
	assert.Equal(t, "Help, it is broken", CustomerText(msgs))
}

// End to end against a fake backend: customer at T1, internal note at T1.5,
// agent reply at T2.
func TestFetch_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/tickets/42/threads":
			_, _ = w.Write([]byte(`{"data":[
				{"id":"th1","content":"My order is late","createdTime":"2024-01-17T10:00:00.000Z","author":{"name":"Jane","type":"END_USER"}},
				{"id":"th2","content":"It ships today","createdTime":"2024-01-17T12:00:00.000Z","author":{"name":"Sam","type":"AGENT"}}
			]}`))
		case "/tickets/42/comments":
			_, _ = w.Write([]byte(`{"data":[
				{"id":"cm1","content":"Checked with warehouse","commentedTime":"2024-01-17T11:00:00.000Z","isPublic":false,"commenter":{"name":"Sam","type":"AGENT"}}
			]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := desk.New("org", staticToken{}, ratelimit.New(kvstore.NewMemoryStore(nil), 45), nil,
		desk.WithBaseURL(srv.URL), desk.WithHub(events.NewMemoryHub()))

	msgs, err := Fetch(context.Background(), client, "42", nil)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, "My order is late", msgs[0].Content)
	assert.Equal(t, Customer, msgs[0].AuthorType)
	assert.Equal(t, "Checked with warehouse", msgs[1].Content)
	assert.Equal(t, SourceComment, msgs[1].Source)
	assert.Equal(t, Internal, msgs[1].Visibility)
	assert.Equal(t, "It ships today", msgs[2].Content)
	assert.Equal(t, Agent, msgs[2].AuthorType)
}

type staticToken struct{}

func (staticToken) ValidToken(context.Context) (string, error) { return "tok", nil }
func (staticToken) Invalidate(context.Context) error             { return nil }
