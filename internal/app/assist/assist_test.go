package assist

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/navigate-learning/navigate/internal/domain"
	"github.com/navigate-learning/navigate/internal/infra/sqlite"
)

func TestReply_Keywords(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", EmptyPrompt},
		{"   ", EmptyPrompt},
		{"How do I BOOK a session?", rules[0].answer},
		{"where are the materials", rules[1].answer},
		{"show my progress", rules[2].answer},
		{"send me the meet link", rules[3].answer},
		{"help", rules[4].answer},
		{"how to start", rules[4].answer},
	}
	for _, tt := range tests {
		if got := Reply(tt.in); got != tt.want {
			t.Errorf("Reply(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReply_Fallback(t *testing.T) {
	for i := range Fallbacks {
		got := reply("what's the weather", func(int) int { return i })
		if got != Fallbacks[i] {
			t.Errorf("fallback %d = %q, want %q", i, got, Fallbacks[i])
		}
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(db)
}

func TestHistory_Greets(t *testing.T) {
	svc := newTestService(t)
	msgs, err := svc.History(context.Background(), "c1")
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != Greeting || msgs[0].From != domain.SenderBot {
		t.Errorf("History() = %+v, want greeting", msgs)
	}
	again, _ := svc.History(context.Background(), "c1")
	if len(again) != 1 {
		t.Errorf("greeting repeated: %d messages", len(again))
	}
}

func TestSend_SanitizesAndStores(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	ans, err := svc.Send(ctx, "c1", "<script>x()</script><b>book</b> a session")
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if ans.Text != rules[0].answer {
		t.Errorf("answer = %q", ans.Text)
	}

	msgs, _ := svc.History(ctx, "c1")
	if len(msgs) != 3 {
		t.Fatalf("history len = %d, want 3", len(msgs))
	}
	if msgs[1].From != domain.SenderUser || msgs[1].Text != "book a session" {
		t.Errorf("stored user message = %+v", msgs[1])
	}
}

func TestSend_StoresPlainText(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	inputs := map[string]string{
		"Q&A about <i>Rome</i>": "Q&A about Rome",
		"is 5 > 3?":             "is 5 > 3?",
		`she said "hi"`:         `she said "hi"`,
	}
	for in, want := range inputs {
		conv := "plain-" + want
		if _, err := svc.Send(ctx, conv, in); err != nil {
			t.Fatalf("Send(%q) error: %v", in, err)
		}
		msgs, _ := svc.History(ctx, conv)
		if len(msgs) != 3 {
			t.Fatalf("history len = %d, want 3", len(msgs))
		}
		if msgs[1].Text != want {
			t.Errorf("stored %q, want %q", msgs[1].Text, want)
		}
	}
}

func TestSend_HistoryCapped(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 40; i++ {
		if _, err := svc.Send(ctx, "c1", fmt.Sprintf("session %d", i)); err != nil {
			t.Fatalf("Send(%d) error: %v", i, err)
		}
	}
	msgs, _ := svc.History(ctx, "c1")
	if len(msgs) != HistoryLimit {
		t.Errorf("history len = %d, want %d", len(msgs), HistoryLimit)
	}
	if last := msgs[len(msgs)-2]; last.Text != "session 39" {
		t.Errorf("newest user message = %q, want session 39", last.Text)
	}
}

func TestSend_RequiresConversation(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Send(context.Background(), "", "hi"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}
