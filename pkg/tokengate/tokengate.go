// Package tokengate decides whether a scanned physical token may dismiss an alarm
package tokengate

import (
	"errors"

	"github.com/borgmon/alarm-clock/pkg/models"
)

// ErrTokenMismatch is the normal negative answer of the gate, the alarm keeps ringing
var ErrTokenMismatch = errors.New("token does not authorize dismissal")

// Authorize reports whether presented may dismiss alarm. Alarms that do not
// require a token always pass. An alarm without a saved token accepts any
// non-empty token, otherwise the saved and presented ids must be equal.
func Authorize(alarm models.Alarm, presented string) bool {
	if !alarm.RequireToken {
		return true
	}
	if alarm.TokenID == "" {
		return presented != ""
	}
	return alarm.TokenID == presented
}

// Check is Authorize returning ErrTokenMismatch on a negative answer
func Check(alarm models.Alarm, presented string) error {
	if !Authorize(alarm, presented) {
		return ErrTokenMismatch
	}
	return nil
}

// UsedToken reports whether a successful dismissal was backed by a token scan
func UsedToken(alarm models.Alarm, presented string) bool {
	return presented != "" && Authorize(alarm, presented)
}
