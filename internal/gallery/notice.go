package gallery

import (
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// NoticeLevel classifies a user-facing notification.
type NoticeLevel string

const (
	NoticeNone    NoticeLevel = ""
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is the toast shown after an operation settles.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Notifier receives every notice the manager produces.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify calls f.
func (f NotifierFunc) Notify(n Notice) {
	f(n)
}

type logNotifier struct {
	log zerolog.Logger
}

func (l logNotifier) Notify(n Notice) {
	event := l.log.Info()
	if n.Level == NoticeError {
		event = l.log.Warn()
	}
	event.Str("notice", string(n.Level)).Msg(n.Message)
}

// Result is what every operation settles to: the affected entry, the list as
// it stands afterwards, and the notice that was emitted.
type Result struct {
	Entry   Entry   `json:"item"`
	Entries []Entry `json:"items"`
	Notice  Notice  `json:"notice"`
}

// userMessenger is implemented by remote errors that carry a server message.
type userMessenger interface {
	UserMessage() string
}

// UserMessage returns the server-provided message carried anywhere in err's
// chain, or "" when there is none.
func UserMessage(err error) string {
	var um userMessenger
	if errors.As(err, &um) {
		return strings.TrimSpace(um.UserMessage())
	}
	return ""
}

// describe picks the most useful text for a toast.
func describe(err error) string {
	if err == nil {
		return ""
	}
	if msg := UserMessage(err); msg != "" {
		return msg
	}
	inner := err
	for {
		next := errors.Unwrap(inner)
		if next == nil {
			break
		}
		inner = next
	}
	return inner.Error()
}
