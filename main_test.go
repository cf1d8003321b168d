package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/borgmon/alarm-clock/pkg/models"
	"github.com/matryer/is"
)

func execute(t *testing.T, db string, args ...string) (string, error) {
	root := newRootCommand()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--db", db}, args...))

	err := root.Execute()
	return out.String(), err
}

func TestAddListAndDisable(t *testing.T) {
	is := is.New(t)
	db := filepath.Join(t.TempDir(), "alarms.db")

	out, err := execute(t, db, "add", "07:30", "--name", "Work", "--days", "weekdays", "--repeat")
	is.NoErr(err)
	is.True(strings.Contains(out, "Added alarm 1 at 07:30"))

	out, err = execute(t, db, "list")
	is.NoErr(err)
	is.True(strings.Contains(out, "Work"))
	is.True(strings.Contains(out, "Mon,Tue,Wed,Thu,Fri (weekly)"))
	is.True(strings.Contains(out, "true"))

	out, err = execute(t, db, "export")
	is.NoErr(err)
	is.True(strings.Contains(out, "BEGIN:VCALENDAR"))
	is.True(strings.Contains(out, "RRULE"))

	_, err = execute(t, db, "disable", "1")
	is.NoErr(err)

	out, err = execute(t, db, "next")
	is.NoErr(err)
	is.Equal("No alarm scheduled\n", out)
}

func TestAddRejectsBadInput(t *testing.T) {
	is := is.New(t)
	db := filepath.Join(t.TempDir(), "alarms.db")

	_, err := execute(t, db, "add", "25:00")
	is.True(err != nil)

	_, err = execute(t, db, "add", "07:00", "--days", "someday")
	is.True(err != nil)

	_, err = execute(t, db, "add", "07:00", "--volume", "120")
	is.True(err != nil)

	_, err = execute(t, db, "remove", "abc")
	is.True(err != nil)
}

func TestSkipOneTimeAlarm(t *testing.T) {
	is := is.New(t)
	db := filepath.Join(t.TempDir(), "alarms.db")

	_, err := execute(t, db, "add", "06:15")
	is.NoErr(err)

	out, err := execute(t, db, "skip", "1")
	is.NoErr(err)
	is.True(strings.HasPrefix(out, "Skipped "))

	out, err = execute(t, db, "list")
	is.NoErr(err)
	is.True(strings.Contains(out, "false"))
}

func TestUpcomingListsEveryRing(t *testing.T) {
	is := is.New(t)
	db := filepath.Join(t.TempDir(), "alarms.db")

	_, err := execute(t, db, "add", "05:45", "--name", "Gym", "--days", "everyday", "--repeat")
	is.NoErr(err)

	out, err := execute(t, db, "upcoming", "--days", "3")
	is.NoErr(err)
	is.True(strings.Count(out, "Gym") >= 3)

	_, err = execute(t, db, "upcoming", "--days", "0")
	is.True(err != nil)
}

func TestUpcomingRingsAreMergedInOrder(t *testing.T) {
	is := is.New(t)
	// Monday
	from := time.Date(2024, time.March, 4, 6, 0, 0, 0, time.UTC)

	alarms := []models.Alarm{
		{ID: 1, Name: "late", Enabled: true, Hour: 9, Days: models.EveryDay, Repeat: true},
		{ID: 2, Name: "off", Enabled: false, Hour: 7, Days: models.EveryDay, Repeat: true},
		{ID: 3, Name: "once", Enabled: true, Hour: 8},
	}

	rings, err := upcomingRings(alarms, from, from.AddDate(0, 0, 2))
	is.NoErr(err)
	is.Equal(3, len(rings))

	is.Equal(int64(3), rings[0].alarm.ID)
	is.Equal(from.Add(2*time.Hour), rings[0].at)
	is.Equal(int64(1), rings[1].alarm.ID)
	is.Equal(from.Add(3*time.Hour), rings[1].at)
	is.Equal(int64(1), rings[2].alarm.ID)
	is.Equal(from.AddDate(0, 0, 1).Add(3*time.Hour), rings[2].at)
}

func TestParseSubscribers(t *testing.T) {
	is := is.New(t)

	got := parseSubscribers(" https://a.example/events \n\nhttps://b.example\nhttps://a.example/events\n")
	is.Equal([]string{"https://a.example/events", "https://b.example"}, got)
	is.Equal(0, len(parseSubscribers("  \n")))
}

func TestTruncateString(t *testing.T) {
	is := is.New(t)

	is.Equal("short", truncateString("short", 10))
	is.Equal("abcdefg...", truncateString("abcdefghijklmnop", 10))
	is.Equal("wäckarkl...", truncateString("wäckarklockan ringer", 11))
}

func TestResolveDatabasePath(t *testing.T) {
	is := is.New(t)

	abs := filepath.Join(t.TempDir(), "x.db")
	got, err := resolveDatabasePath(abs)
	is.NoErr(err)
	is.Equal(abs, got)
}
