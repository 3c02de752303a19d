package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/iliyamo/workday-booking/internal/model"
	"github.com/iliyamo/workday-booking/internal/notify"
)

// SupportService relays client questions to the operator and operator
// answers back to the client.
type SupportService struct {
	notifier notify.Notifier
	operator OperatorNotifier
}

func NewSupportService(notifier notify.Notifier, operator OperatorNotifier) *SupportService {
	return &SupportService{notifier: notifier, operator: operator}
}

// Ask forwards a client question to the operator chat.
func (s *SupportService) Ask(ctx context.Context, clientID int64, username, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: message is empty", model.ErrValidation)
	}
	from := fmt.Sprintf("%d", clientID)
	if username != "" {
		from += " (@" + html.EscapeString(username) + ")"
	}
	s.operator.Notify(ctx, fmt.Sprintf("💬 <b>Support request</b>\nFrom: %s\n\n%s\n\nReply: /v1/admin/support/%d/reply",
		from, html.EscapeString(text), clientID))
	return nil
}

// Reply sends the operator's answer to the client.
func (s *SupportService) Reply(ctx context.Context, clientID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: message is empty", model.ErrValidation)
	}
	if clientID <= 0 {
		return fmt.Errorf("%w: client id is required", model.ErrValidation)
	}
	return s.notifier.Deliver(ctx, clientID, notify.Text("💬 <b>Support reply:</b>\n\n"+html.EscapeString(text)))
}
