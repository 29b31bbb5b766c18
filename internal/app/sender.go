package app

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes outbound messages to the log instead of a chat peer. It is
// the default sender when the binary runs without a chat client attached.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendMessage(_ context.Context, peerID int64, text string) error {
	s.logger.Info("outbound message", zap.Int64("peer_id", peerID), zap.String("text", text))
	return nil
}
