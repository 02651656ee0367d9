package handlers

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	telegram "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const okMessageReply = `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`

type outgoingMessage struct {
	chatID    int64
	text      string
	parseMode string
}

// fakeBotAPI answers Bot API calls by method name and decodes every
// sendMessage it receives.
type fakeBotAPI struct {
	mu       sync.Mutex
	replies  map[string]string
	methods  []string
	messages []outgoingMessage
}

func newFakeBotAPI() *fakeBotAPI {
	return &fakeBotAPI{replies: map[string]string{}}
}

func (f *fakeBotAPI) Do(req *http.Request) (*http.Response, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	_ = req.Body.Close()

	method := path.Base(req.URL.Path)
	f.mu.Lock()
	f.methods = append(f.methods, method)
	if method == "sendMessage" {
		fields, err := multipartFields(req.Header.Get("Content-Type"), body)
		if err != nil {
			f.mu.Unlock()
			return nil, err
		}
		chatID, _ := strconv.ParseInt(fields["chat_id"], 10, 64)
		f.messages = append(f.messages, outgoingMessage{
			chatID:    chatID,
			text:      fields["text"],
			parseMode: fields["parse_mode"],
		})
	}
	reply, ok := f.replies[method]
	f.mu.Unlock()
	if !ok {
		reply = okMessageReply
	}

	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(reply)),
		Header:     make(http.Header),
	}, nil
}

func (f *fakeBotAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.methods)
}

func (f *fakeBotAPI) lastMessage(t *testing.T) outgoingMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		t.Fatalf("expected a sendMessage call, got methods %v", f.methods)
	}
	return f.messages[len(f.messages)-1]
}

func multipartFields(contentType string, body []byte) (map[string]string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to parse media type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("unexpected media type %s", mediaType)
	}
	fields := map[string]string{}
	reader := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return fields, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read multipart part: %w", err)
		}
		data, err := io.ReadAll(part)
		if err != nil {
			return nil, fmt.Errorf("failed to read field %s: %w", part.FormName(), err)
		}
		fields[part.FormName()] = string(data)
	}
}

func newTestTelegramBot(t *testing.T, api *fakeBotAPI) *telegram.Bot {
	t.Helper()
	b, err := telegram.New("test-token",
		telegram.WithSkipGetMe(),
		telegram.WithHTTPClient(time.Second, api),
	)
	if err != nil {
		t.Fatalf("failed to create test bot: %v", err)
	}
	return b
}

func newTestUpdate(text string, userID int64) *models.Update {
	return &models.Update{
		Message: &models.Message{
			From: &models.User{
				ID:        userID,
				FirstName: "Ada",
				Username:  "ada",
			},
			Chat: models.Chat{
				ID: userID,
			},
			Text: text,
		},
	}
}
