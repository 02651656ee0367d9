package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot"
)

type mockClient struct {
	requests int
	response string
	err      error
	lastBody string
}

func (m *mockClient) Do(req *http.Request) (*http.Response, error) {
	m.requests++
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	_ = req.Body.Close()
	m.lastBody = string(body)
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(m.response)),
		Header:     make(http.Header),
	}, nil
}

func newTestBot(t *testing.T, client *mockClient) *bot.Bot {
	t.Helper()
	b, err := bot.New("test-token",
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(time.Second, client),
	)
	if err != nil {
		t.Fatalf("failed to create test bot: %v", err)
	}
	return b
}

func TestTelegramNotifierDelivered(t *testing.T) {
	client := &mockClient{response: `{"ok":true,"result":{"message_id":1}}`}
	n := NewTelegramNotifier(newTestBot(t, client), BreakerSettings{})

	outcome, err := n.Send(context.Background(), 42, "<b>hello</b>")
	if err != nil || outcome != Delivered {
		t.Fatalf("expected delivered, got %v (%v)", outcome, err)
	}
	if !strings.Contains(client.lastBody, "<b>hello</b>") || !strings.Contains(client.lastBody, "HTML") {
		t.Fatalf("expected HTML message body, got %s", client.lastBody)
	}
}

func TestTelegramNotifierUndeliverable(t *testing.T) {
	client := &mockClient{response: `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`}
	n := NewTelegramNotifier(newTestBot(t, client), BreakerSettings{MaxFailures: 2})

	for i := 0; i < 5; i++ {
		outcome, err := n.Send(context.Background(), 42, "hi")
		if outcome != Undeliverable || err == nil {
			t.Fatalf("attempt %d: expected undeliverable, got %v (%v)", i, outcome, err)
		}
	}
	if n.State() != "closed" {
		t.Fatalf("blocked users must not open the breaker, state=%s", n.State())
	}
}

func TestTelegramNotifierBreakerOpens(t *testing.T) {
	client := &mockClient{err: errors.New("connection reset")}
	n := NewTelegramNotifier(newTestBot(t, client), BreakerSettings{MaxFailures: 2, Cooldown: time.Hour})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		outcome, err := n.Send(ctx, 42, "hi")
		if outcome != Transient || err == nil || errors.Is(err, ErrUnavailable) {
			t.Fatalf("attempt %d: expected plain transient failure, got %v (%v)", i, outcome, err)
		}
	}

	before := client.requests
	outcome, err := n.Send(ctx, 42, "hi")
	if outcome != Transient || !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected breaker to fail fast, got %v (%v)", outcome, err)
	}
	if client.requests != before {
		t.Fatalf("open breaker must not reach the API")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Outcome
	}{
		{nil, Delivered},
		{fmt.Errorf("%w, Forbidden: user is deactivated", bot.ErrorForbidden), Undeliverable},
		{fmt.Errorf("%w, Bad Request: chat not found", bot.ErrorBadRequest), Undeliverable},
		{context.DeadlineExceeded, Transient},
		{errors.New("boom"), Transient},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
