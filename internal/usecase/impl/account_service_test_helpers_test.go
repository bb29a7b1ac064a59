package impl

import (
	"io"
	"log/slog"
	"time"

	"accounts/config"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig() *config.Config {
	return &config.Config{
		Auth: &config.AuthConfig{
			TokenValidity: 1440 * time.Minute,
		},
		PubSub: &config.PubSubConfig{
			Queue:          "user_registration",
			PublishTimeout: time.Second,
		},
	}
}
