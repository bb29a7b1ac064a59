package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistrationEvent_HasPushTarget(t *testing.T) {
	tests := []struct {
		name  string
		event RegistrationEvent
		want  bool
	}{
		{name: "opted in with token", event: RegistrationEvent{PushToken: "device-token", Preferences: RegistrationPreferences{Push: true}}, want: true},
		{name: "opted in without token", event: RegistrationEvent{Preferences: RegistrationPreferences{Push: true}}, want: false},
		{name: "opted out with token", event: RegistrationEvent{PushToken: "device-token"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.HasPushTarget())
		})
	}
}
