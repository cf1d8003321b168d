// Package events publishes alarm outcomes as CloudEvents to configured
// subscribers
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/borgmon/alarm-clock/pkg/active"
	"github.com/borgmon/alarm-clock/pkg/logging"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

const source = "github.com/borgmon/alarm-clock"

const (
	TypeDismissed = "alarmclock.dismissed"
	TypeSnoozed   = "alarmclock.snoozed"
	TypeMissed    = "alarmclock.missed"
)

type EventSender interface {
	Notify(ctx context.Context, outcome active.Outcome) error
}

type eventSender struct {
	subscribers []string
	client      cloudevents.Client
}

// New returns a sender posting to every subscriber endpoint. Without
// subscribers nothing is sent.
func New(subscribers []string) (EventSender, error) {
	e := &eventSender{subscribers: subscribers}
	if len(subscribers) == 0 {
		return e, nil
	}

	c, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, err
	}
	e.client = c
	return e, nil
}

type outcomeData struct {
	AlarmID     int64      `json:"alarmID"`
	Name        string     `json:"name,omitempty"`
	Time        string     `json:"time"`
	Session     string     `json:"session"`
	UsedToken   bool       `json:"usedToken,omitempty"`
	SnoozeCount int        `json:"snoozeCount"`
	NextAt      *time.Time `json:"nextAt,omitempty"`
}

var eventTypes = map[active.State]string{
	active.Dismissed: TypeDismissed,
	active.Snoozed:   TypeSnoozed,
	active.Missed:    TypeMissed,
}

// eventType names the event for a state that ends a session
func eventType(state active.State) (string, bool) {
	if !state.Terminal() {
		return "", false
	}
	typ, ok := eventTypes[state]
	return typ, ok
}

func (e *eventSender) Notify(ctx context.Context, outcome active.Outcome) error {
	if len(e.subscribers) == 0 {
		return nil
	}

	typ, ok := eventType(outcome.State)
	if !ok {
		return nil
	}

	data := outcomeData{
		AlarmID:     outcome.Alarm.ID,
		Name:        outcome.Alarm.Name,
		Time:        outcome.Alarm.TimeString(),
		Session:     outcome.Session.String(),
		UsedToken:   outcome.UsedToken,
		SnoozeCount: outcome.Alarm.SnoozeCount,
	}
	if !outcome.Next.IsZero() {
		data.NextAt = &outcome.Next.At
	}

	event := cloudevents.NewEvent()
	event.SetID(fmt.Sprintf("%s:%s", outcome.Session, typ))
	event.SetTime(time.Now().UTC())
	event.SetSource(source)
	event.SetType(typ)
	if err := event.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return err
	}

	logger := logging.GetLoggerFromContext(ctx)

	var err error
	for _, endpoint := range e.subscribers {
		ctxWithTarget := cloudevents.ContextWithTarget(ctx, endpoint)

		result := e.client.Send(ctxWithTarget, event)
		if cloudevents.IsUndelivered(result) || cloudevents.IsNACK(result) {
			logger.Error().Err(result).Str("endpoint", endpoint).Msg("failed to send event")
			err = errors.Join(err, fmt.Errorf("%s: %w", endpoint, result))
		}
	}

	return err
}
