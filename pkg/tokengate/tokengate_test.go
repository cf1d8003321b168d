package tokengate

import (
	"errors"
	"testing"

	"github.com/borgmon/alarm-clock/pkg/models"
	"github.com/matryer/is"
)

func TestNotRequiredAlwaysAuthorizes(t *testing.T) {
	is := is.New(t)
	alarm := models.Alarm{RequireToken: false, TokenID: "A"}

	for _, presented := range []string{"", "A", "B", "anything"} {
		is.True(Authorize(alarm, presented))
	}
}

func TestAnyTokenWhenNoneSaved(t *testing.T) {
	is := is.New(t)
	alarm := models.Alarm{RequireToken: true}

	is.True(Authorize(alarm, "X"))
	is.True(Authorize(alarm, "04:a2:19:7f"))
	is.True(!Authorize(alarm, ""))
}

func TestSavedTokenMustMatch(t *testing.T) {
	is := is.New(t)
	alarm := models.Alarm{RequireToken: true, TokenID: "A"}

	is.True(Authorize(alarm, "A"))
	is.True(!Authorize(alarm, "B"))
	is.True(!Authorize(alarm, ""))
	is.True(!Authorize(alarm, "a"))
}

func TestAuthorizeIsIdempotent(t *testing.T) {
	is := is.New(t)
	alarm := models.Alarm{RequireToken: true}

	for i := 0; i < 3; i++ {
		is.True(Authorize(alarm, "first"))
		is.True(Authorize(alarm, "second"))
	}
	is.Equal("", alarm.TokenID)
}

func TestCheck(t *testing.T) {
	is := is.New(t)
	alarm := models.Alarm{RequireToken: true, TokenID: "1234"}

	is.NoErr(Check(alarm, "1234"))
	is.True(errors.Is(Check(alarm, "5678"), ErrTokenMismatch))
}

func TestUsedToken(t *testing.T) {
	is := is.New(t)

	is.True(!UsedToken(models.Alarm{}, ""))
	is.True(UsedToken(models.Alarm{}, "tag"))
	is.True(UsedToken(models.Alarm{RequireToken: true, TokenID: "1234"}, "1234"))
	is.True(!UsedToken(models.Alarm{RequireToken: true, TokenID: "1234"}, "5678"))
}
