package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess          ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure          ActivityEventType = "auth.login.failure"
	ActivityEventTokenIssued           ActivityEventType = "auth.token.issued"
	ActivityEventTokenRevoked          ActivityEventType = "auth.token.revoked"
	ActivityEventPasswordResetRequest  ActivityEventType = "auth.password.reset_requested"
	ActivityEventPasswordResetSuccess  ActivityEventType = "auth.password.reset"
	ActivityEventAccountActivated      ActivityEventType = "auth.account.activated"
	ActivityEventAccountRegistered     ActivityEventType = "auth.account.registered"
	ActivityEventAnonymousTokenIssued  ActivityEventType = "auth.token.anonymous_issued"
	ActivityEventSingleUseTokenIssued  ActivityEventType = "auth.token.single_use_issued"
	activityActorAccount                                 = "account"
	activityActorAnonymous                               = "anonymous"
)

// ActorRef identifies who triggered an event
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	AccountID  string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

func actorFor(account *Account) ActorRef {
	if account == nil {
		return ActorRef{Type: activityActorAnonymous}
	}
	return ActorRef{ID: account.ID.String(), Type: activityActorAccount}
}

func newActivityEvent(kind ActivityEventType, account *Account, at time.Time, meta map[string]any) ActivityEvent {
	event := ActivityEvent{
		EventType:  kind,
		Actor:      actorFor(account),
		Metadata:   meta,
		OccurredAt: at,
	}
	if account != nil {
		event.AccountID = account.ID.String()
	}
	return event
}
