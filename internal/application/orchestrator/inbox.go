package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aescanero/rover/pkg/domain"
	"github.com/aescanero/rover/pkg/ports"
	"go.uber.org/zap"
)

const (
	inboxPath = "inbox"

	// SourceInbox marks messages opened from the inbox
	SourceInbox = "inbox"
	// SourceNotification marks messages opened from a remote notification
	SourceNotification = "notification"
)

func messagePath(id string) string {
	return fmt.Sprintf("inbox/messages/%s", id)
}

// Inbox is the result of an inbox reload
type Inbox struct {
	Messages    []domain.Message `json:"messages"`
	UnreadCount int              `json:"unread_count"`
}

// ReloadInbox fetches the inbox. The unread count comes from the response
// meta and is zero when absent.
func (m *Manager) ReloadInbox(ctx context.Context) (*Inbox, error) {
	var inbox Inbox
	err := m.runIndependent(ctx, "reload-inbox", func(ctx context.Context) error {
		env, err := m.transport.Send(ctx, ports.Request{Method: http.MethodGet, Path: inboxPath})
		if err != nil {
			return err
		}
		if unread := env.Meta("unread-messages-count"); unread.Exists() {
			inbox.UnreadCount = int(unread.Int())
		}

		primary, ok := env.Primary()
		if !ok {
			inbox.Messages = []domain.Message{}
			return nil
		}
		return m.mapper.Map(primary, &inbox.Messages)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reload inbox: %w", err)
	}

	m.inboxMu.Lock()
	m.messages = make(map[string]domain.Message, len(inbox.Messages))
	for _, msg := range inbox.Messages {
		if screen, ok := m.screens[msg.ID]; ok && msg.LandingPage == nil {
			s := screen
			msg.LandingPage = &s
		}
		m.messages[msg.ID] = msg
	}
	m.inboxMu.Unlock()

	m.logger.Debug("inbox reloaded",
		zap.Int("messages", len(inbox.Messages)),
		zap.Int("unread", inbox.UnreadCount))
	return &inbox, nil
}

// Message returns a message from the last inbox reload
func (m *Manager) Message(id string) (domain.Message, bool) {
	m.inboxMu.Lock()
	defer m.inboxMu.Unlock()
	msg, ok := m.messages[id]
	return msg, ok
}

// DeleteMessage deletes a message on the backend
func (m *Manager) DeleteMessage(ctx context.Context, id string) error {
	err := m.runIndependent(ctx, "delete-message", func(ctx context.Context) error {
		_, err := m.transport.Send(ctx, ports.Request{Method: http.MethodDelete, Path: messagePath(id)})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete message %s: %w", id, err)
	}

	m.inboxMu.Lock()
	delete(m.messages, id)
	delete(m.screens, id)
	m.inboxMu.Unlock()
	return nil
}

// PatchMessage sends the read and saved flags of msg to the backend
func (m *Manager) PatchMessage(ctx context.Context, msg domain.Message) error {
	err := m.runIndependent(ctx, "patch-message", func(ctx context.Context) error {
		body, err := m.serializer.Serialize(msg)
		if err != nil {
			return err
		}
		_, err = m.transport.Send(ctx, ports.Request{Method: http.MethodPatch, Path: messagePath(msg.ID), Body: body})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to patch message %s: %w", msg.ID, err)
	}

	m.inboxMu.Lock()
	if cached, ok := m.messages[msg.ID]; ok {
		cached.Read = msg.Read
		cached.Saved = msg.Saved
		m.messages[msg.ID] = cached
	}
	m.inboxMu.Unlock()
	return nil
}

// GetLandingPage returns the landing page of a message. A page fetched once
// is kept and not fetched again.
func (m *Manager) GetLandingPage(ctx context.Context, id string) (*domain.Screen, error) {
	m.inboxMu.Lock()
	if msg, ok := m.messages[id]; ok && msg.LandingPage != nil {
		screen := *msg.LandingPage
		m.inboxMu.Unlock()
		return &screen, nil
	}
	if screen, ok := m.screens[id]; ok {
		m.inboxMu.Unlock()
		return &screen, nil
	}
	m.inboxMu.Unlock()

	var screen domain.Screen
	err := m.runIndependent(ctx, "landing-page", func(ctx context.Context) error {
		env, err := m.transport.Send(ctx, ports.Request{Method: http.MethodGet, Path: messagePath(id) + "/landing-page"})
		if err != nil {
			return err
		}
		primary, ok := env.Primary()
		if !ok {
			return &domain.MappingError{Target: "screen", Err: fmt.Errorf("response has no primary data")}
		}
		return m.mapper.Map(primary, &screen)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get landing page for %s: %w", id, err)
	}

	m.inboxMu.Lock()
	m.screens[id] = screen
	if msg, ok := m.messages[id]; ok {
		s := screen
		msg.LandingPage = &s
		m.messages[id] = msg
	}
	m.inboxMu.Unlock()

	return &screen, nil
}

// TrackMessageOpen tracks a message opened from the inbox
func (m *Manager) TrackMessageOpen(msg domain.Message) (string, error) {
	return m.SendEvent(domain.NewMessageOpen(msg, SourceInbox, time.Now()))
}
