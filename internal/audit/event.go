// Package audit : журнал событий безопасности (входы, ротации, повторное использование refresh токенов).
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventUserRegistered     EventType = "user.registered"
	EventLoginSucceeded     EventType = "login.succeeded"
	EventLoginFailed        EventType = "login.failed"
	EventLoginGoogle        EventType = "login.google"
	EventTokenRefreshed     EventType = "token.refreshed"
	EventTokenReuseDetected EventType = "token.reuse_detected"
	EventSessionLogout      EventType = "session.logout"
)

type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	UserID     string            `json:"userId,omitempty"`
	FamilyID   string            `json:"familyId,omitempty"`
	IP         string            `json:"ip,omitempty"`
	UserAgent  string            `json:"userAgent,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
	Detail     map[string]string `json:"detail,omitempty"`
}

// NewEvent заполняет ID и время
func NewEvent(eventType EventType, userID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

// Recorder : получатель событий. Ошибка записи не должна ломать запрос,
// вызывающий код только логирует её
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Nop : ничего не пишет
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }
