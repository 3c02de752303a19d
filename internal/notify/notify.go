// Package notify delivers messages and files to chat users.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Kind is the type of content sent to a chat.
type Kind string

const (
	KindText     Kind = "text"
	KindPhoto    Kind = "photo"
	KindDocument Kind = "document"
)

// Content is one outbound chat message.  FileID refers to a file already
// known to the chat transport; Caption accompanies photos and documents.
type Content struct {
	Kind    Kind   `json:"kind"`
	Text    string `json:"text,omitempty"`
	FileID  string `json:"file_id,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// Text is a shorthand for a plain text message.
func Text(s string) Content { return Content{Kind: KindText, Text: s} }

// Notifier sends content to a chat.
type Notifier interface {
	Deliver(ctx context.Context, chatID int64, c Content) error
}

// LogNotifier writes messages to the log instead of sending them.  It is
// used when no bot token is configured.
type LogNotifier struct {
	Log *logrus.Entry
}

func (l LogNotifier) Deliver(_ context.Context, chatID int64, c Content) error {
	l.Log.WithFields(logrus.Fields{"chat_id": chatID, "kind": c.Kind}).Info(c.Text + c.Caption)
	return nil
}

// Operator sends service notifications to the operator chat.  A zero chat
// id disables them.
type Operator struct {
	N      Notifier
	ChatID int64
	Log    *logrus.Entry
}

// Notify sends text to the operator and logs failures.
func (o Operator) Notify(ctx context.Context, text string) {
	if o.N == nil || o.ChatID == 0 {
		return
	}
	if err := o.N.Deliver(ctx, o.ChatID, Text(text)); err != nil && o.Log != nil {
		o.Log.WithError(err).Warn("operator notification failed")
	}
}
