package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressed(t *testing.T) {
	aliases := []string{"говорун", "govorun_bot"}

	cases := []struct {
		name       string
		text       string
		replyToBot bool
		want       bool
	}{
		{"alias in text", "Говорун, что скажешь?", false, true},
		{"username mention", "спроси у @govorun_bot", false, true},
		{"case insensitive", "ГОВОРУН привет", false, true},
		{"reply to bot", "а почему?", true, true},
		{"plain chat", "идём обедать?", false, false},
		{"empty text not addressed", "", false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, addressed(tc.text, aliases, tc.replyToBot))
		})
	}
}

func TestAddressedIgnoresEmptyAliases(t *testing.T) {
	assert.False(t, addressed("просто текст", []string{""}, false))
}
