// Package assist is the keyword-driven help assistant behind the chat widget.
package assist

import (
	"context"
	"fmt"
	"html"
	"math/rand"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	log "github.com/sirupsen/logrus"

	"github.com/navigate-learning/navigate/internal/domain"
	"github.com/navigate-learning/navigate/internal/infra/metrics"
)

// HistoryLimit is how many messages a conversation keeps.
const HistoryLimit = 50

const (
	Greeting    = "Hi! I'm Navigate Bot. Ask me about sessions, resources, or the dashboard."
	EmptyPrompt = "Please type a question so I can help."
)

type rule struct {
	keywords []string
	answer   string
}

var rules = []rule{
	{[]string{"schedule", "session", "book"},
		"To view or book sessions, open the Schedule page. You can filter by topic and time there."},
	{[]string{"resources", "resource", "materials"},
		"Resources are on the Resources page. You can search by topic or download handouts."},
	{[]string{"dashboard", "progress"},
		"Your Dashboard shows progress and completed sessions. Sign in to see personalized data."},
	{[]string{"join", "meet", "link"},
		"To join a live session, open the Live Sessions page and click the Join button."},
	{[]string{"help", "how do", "how to"},
		"Ask me about scheduling, joining sessions, or finding materials. Example: 'How do I book a session?'."},
}

// Fallbacks are used when no keyword matches.
var Fallbacks = []string{
	"I can help with scheduling, resources, and joining sessions. What would you like to do?",
	"Sorry, I didn't catch that. Try asking about schedules, resources, or the dashboard.",
	"Try: 'How do I book a session?' or 'Where are the study resources?'",
}

// Reply picks the canned answer for text. The first matching rule wins.
func Reply(text string) string {
	return reply(text, rand.Intn)
}

func reply(text string, pick func(int) int) string {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return EmptyPrompt
	}
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(t, kw) {
				return r.answer
			}
		}
	}
	return Fallbacks[pick(len(Fallbacks))]
}

// Service keeps conversation history in a ChatStore.
type Service struct {
	store  domain.ChatStore
	policy *bluemonday.Policy
	now    func() time.Time
	pick   func(int) int
}

// NewService creates an assistant over store.
func NewService(store domain.ChatStore) *Service {
	return &Service{
		store:  store,
		policy: bluemonday.StrictPolicy(),
		now:    time.Now,
		pick:   rand.Intn,
	}
}

// Send stores the user's message and the bot's answer and returns the answer.
func (s *Service) Send(ctx context.Context, conversation, text string) (*domain.ChatMessage, error) {
	if conversation == "" {
		return nil, fmt.Errorf("%w: conversation id required", domain.ErrInvalidInput)
	}
	if err := s.greet(ctx, conversation); err != nil {
		return nil, err
	}

	clean := s.clean(text)
	now := s.now().UTC()
	answer := domain.ChatMessage{Text: reply(clean, s.pick), From: domain.SenderBot, At: now}

	msgs := []domain.ChatMessage{answer}
	if clean != "" {
		msgs = []domain.ChatMessage{{Text: clean, From: domain.SenderUser, At: now}, answer}
	}
	if err := s.store.AppendChat(ctx, conversation, msgs...); err != nil {
		return nil, fmt.Errorf("append chat: %w", err)
	}
	if err := s.store.TrimChat(ctx, conversation, HistoryLimit); err != nil {
		log.WithFields(log.Fields{"conversation": conversation, "error": err}).Warn("assist: trim failed")
	}
	metrics.AssistantMessages.Inc()
	return &answer, nil
}

// History returns the conversation oldest first, greeting new conversations.
func (s *Service) History(ctx context.Context, conversation string) ([]domain.ChatMessage, error) {
	if conversation == "" {
		return nil, fmt.Errorf("%w: conversation id required", domain.ErrInvalidInput)
	}
	if err := s.greet(ctx, conversation); err != nil {
		return nil, err
	}
	return s.store.ListChat(ctx, conversation, HistoryLimit)
}

// clean strips markup and stores plain text: the strict policy escapes
// entities, which are decoded again so "Q&A" stays "Q&A".
func (s *Service) clean(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}

func (s *Service) greet(ctx context.Context, conversation string) error {
	existing, err := s.store.ListChat(ctx, conversation, 1)
	if err != nil {
		return fmt.Errorf("list chat: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	return s.store.AppendChat(ctx, conversation, domain.ChatMessage{
		Text: Greeting, From: domain.SenderBot, At: s.now().UTC(),
	})
}
