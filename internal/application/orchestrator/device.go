package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/rover/pkg/domain"
	"github.com/aescanero/rover/pkg/ports"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// RegisterPushToken stores a new push token and tracks a device update.
// An unchanged token does nothing and returns an empty pipeline id.
func (m *Manager) RegisterPushToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("push token is required")
	}
	if m.devices == nil {
		return "", fmt.Errorf("device store is not configured")
	}

	m.tokenMu.Lock()
	defer m.tokenMu.Unlock()

	current, err := m.devices.PushToken(ctx)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return "", fmt.Errorf("failed to read push token: %w", err)
	}
	if current == token {
		return "", nil
	}

	if err := m.devices.SavePushToken(ctx, token); err != nil {
		return "", fmt.Errorf("failed to save push token: %w", err)
	}
	m.logger.Info("push token changed")

	return m.SendEvent(domain.NewDeviceUpdate(time.Now()))
}

// NotificationResult describes how a remote notification was handled
type NotificationResult struct {
	// Handled is false for notifications not addressed to rover
	Handled    bool            `json:"handled"`
	Message    *domain.Message `json:"message,omitempty"`
	Opened     bool            `json:"opened"`
	PipelineID string          `json:"pipeline_id,omitempty"`
}

// ReceiveRemoteNotification handles a push payload. Payloads without
// "_rover": true and a "data" object are not handled. The message is mapped
// on the unordered lane, observers are told about it, and it is tracked as
// opened unless a MessageOpenDecider objects.
func (m *Manager) ReceiveRemoteNotification(ctx context.Context, payload json.RawMessage) (*NotificationResult, error) {
	if !gjson.ValidBytes(payload) {
		return &NotificationResult{}, nil
	}
	doc := gjson.ParseBytes(payload)
	data := doc.Get("data")
	if doc.Get("_rover").Type != gjson.True || !data.IsObject() {
		return &NotificationResult{}, nil
	}

	var msg domain.Message
	err := m.runIndependent(ctx, "remote-notification", func(context.Context) error {
		return m.mapper.Map(json.RawMessage(data.Raw), &msg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to map notification: %w", err)
	}

	result := &NotificationResult{Handled: true, Message: &msg}
	m.notifyMessageReceived(msg)

	if !m.shouldOpenMessage(msg) {
		m.logger.Debug("notification message not opened", zap.String("message_id", msg.ID))
		return result, nil
	}

	id, err := m.SendEvent(domain.NewMessageOpen(msg, SourceNotification, time.Now()))
	if err != nil {
		return result, err
	}
	result.Opened = true
	result.PipelineID = id
	return result, nil
}
