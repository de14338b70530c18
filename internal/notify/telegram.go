package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

type telegramNotifier struct {
	apiBase  string
	botToken string
	chatID   string
	threadID string
	client   *http.Client
}

// NewTelegram posts run events into the bot's own channel via the Bot API.
// threadID is optional and targets a forum topic within the chat.
func NewTelegram(botToken, chatID, threadID string) (Notifier, error) {
	botToken = strings.TrimSpace(botToken)
	chatID = strings.TrimSpace(chatID)
	if botToken == "" {
		return nil, fmt.Errorf("telegram.bot_token is required")
	}
	if chatID == "" {
		return nil, fmt.Errorf("telegram.chat_id is required")
	}

	return &telegramNotifier{
		apiBase:  telegramAPIBase,
		botToken: botToken,
		chatID:   chatID,
		threadID: strings.TrimSpace(threadID),
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type sendMessageRequest struct {
	ChatID          string `json:"chat_id"`
	Text            string `json:"text"`
	MessageThreadID int    `json:"message_thread_id,omitempty"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *telegramNotifier) Notify(ctx context.Context, event Event) error {
	payload := sendMessageRequest{
		ChatID: t.chatID,
		Text:   buildMessageText(event),
	}
	if t.threadID != "" {
		id, err := strconv.Atoi(t.threadID)
		if err != nil {
			return fmt.Errorf("telegram.thread_id must be numeric: %w", err)
		}
		payload.MessageThreadID = id
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	var apiResp sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !apiResp.OK {
		return fmt.Errorf("sendMessage failed: %s", apiResp.Description)
	}
	return nil
}

func buildMessageText(event Event) string {
	lines := []string{
		fmt.Sprintf("[botctl] %s: %s %s", event.Service, event.Action, event.Status),
		fmt.Sprintf("pruned: %d, swept: %d", event.Pruned, event.Swept),
		"duration: " + event.Duration,
	}
	if event.Error != "" {
		lines = append(lines, "error: "+event.Error)
	}
	return strings.Join(lines, "\n")
}
