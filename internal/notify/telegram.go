package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/iliyamo/workday-booking/internal/config"
)

// Telegram sends content through the Telegram Bot API.
type Telegram struct {
	baseURL string
	client  *http.Client
}

func NewTelegram(cfg config.TelegramConfig) *Telegram {
	return &Telegram{
		baseURL: strings.TrimRight(cfg.APIURL, "/") + "/bot" + cfg.BotToken,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Deliver(ctx context.Context, chatID int64, c Content) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))

	var method string
	switch c.Kind {
	case KindPhoto:
		method = "sendPhoto"
		params.Set("photo", c.FileID)
		setCaption(params, c.Caption)
	case KindDocument:
		method = "sendDocument"
		params.Set("document", c.FileID)
		setCaption(params, c.Caption)
	case KindText, "":
		method = "sendMessage"
		params.Set("text", c.Text)
		params.Set("parse_mode", "HTML")
		params.Set("disable_web_page_preview", "true")
	default:
		return fmt.Errorf("unsupported content kind %q", c.Kind)
	}
	return t.call(ctx, method, params)
}

func setCaption(params url.Values, caption string) {
	if caption != "" {
		params.Set("caption", caption)
		params.Set("parse_mode", "HTML")
	}
}

func (t *Telegram) call(ctx context.Context, method string, params url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/"+method, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var body apiResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusOK || !body.OK {
		return fmt.Errorf("telegram API error: %s %s", resp.Status, body.Description)
	}
	return nil
}
