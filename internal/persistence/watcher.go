package persistence

import (
	"blogsmith/internal/core"
	"blogsmith/internal/logger"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// DefaultChannel is the notification channel written by the users trigger.
const DefaultChannel = "users_changes"

// UserChange is a realtime insert or update of a users row.
type UserChange struct {
	Operation string       `json:"op"`
	Profile   core.Profile `json:"record"`
}

// DecodeUserChange parses a users_changes notification payload.
func DecodeUserChange(payload string) (UserChange, error) {
	var change UserChange
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return UserChange{}, fmt.Errorf("failed to decode user change: %w", err)
	}
	if change.Profile.ID == "" {
		return UserChange{}, fmt.Errorf("user change without record id")
	}
	return change, nil
}

// Watcher listens for profile changes through LISTEN/NOTIFY.
type Watcher struct {
	connStr string
	channel string
}

// NewWatcher creates a watcher on channel, DefaultChannel when empty.
func NewWatcher(connStr, channel string) *Watcher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Watcher{connStr: connStr, channel: channel}
}

// Watch delivers changes until ctx ends. The returned channel is closed when
// the listener stops.
func (w *Watcher) Watch(ctx context.Context) (<-chan UserChange, error) {
	listener := pq.NewListener(w.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("Database listener event", "event", int(ev), "error", err.Error())
		}
	})

	if err := listener.Listen(w.channel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", w.channel, err)
	}
	logger.Info("Watching profile changes", "channel", w.channel)

	changes := make(chan UserChange)
	go func() {
		defer close(changes)
		defer func() { _ = listener.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				// nil after a reconnect
				if n == nil {
					continue
				}
				change, err := DecodeUserChange(n.Extra)
				if err != nil {
					logger.Warn("Ignoring malformed notification", "error", err.Error())
					continue
				}
				select {
				case changes <- change:
				case <-ctx.Done():
					return
				}
			case <-time.After(90 * time.Second):
				go func() { _ = listener.Ping() }()
			}
		}
	}()

	return changes, nil
}
