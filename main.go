package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/borgmon/alarm-clock/pkg/audio"
	"github.com/borgmon/alarm-clock/pkg/calendar"
	"github.com/borgmon/alarm-clock/pkg/logging"
	"github.com/borgmon/alarm-clock/pkg/models"
	"github.com/borgmon/alarm-clock/pkg/service"
	"github.com/borgmon/alarm-clock/pkg/store"
	"github.com/borgmon/alarm-clock/pkg/timer"
	"github.com/borgmon/alarm-clock/pkg/trigger"
	"github.com/borgmon/alarm-clock/pkg/wakeup"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	appID   = "com.borgmon.alarm-clock"
	appName = "alarm-clock"
)

var (
	dbPath  string
	verbose bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Desktop alarm clock",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&dbPath, "db", "", "alarm database (default: alarms.db in the user config directory)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newRunCommand(),
		newListCommand(),
		newNextCommand(),
		newUpcomingCommand(),
		newAddCommand(),
		newRemoveCommand(),
		newEnableCommand(true),
		newEnableCommand(false),
		newSkipCommand(),
		newImportCommand(),
		newExportCommand(),
	)
	return root
}

// resolveDatabasePath places a relative database path in the user config
// directory
func resolveDatabasePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir = filepath.Join(dir, appName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, path), nil
}

func commandContext(cmd *cobra.Command) (context.Context, zerolog.Logger) {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := logging.NewConsoleLogger(cmd.ErrOrStderr(), level)
	return logging.NewContextWithLogger(cmd.Context(), logger), logger
}

func openAlarmStore(path string, logger zerolog.Logger) (*store.AlarmStore, error) {
	if dbPath != "" {
		path = dbPath
	}

	resolved, err := resolveDatabasePath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}
	return store.NewAlarmStore(store.NewSQLiteConnector(resolved), logger)
}

// withService runs fn against a service that edits the stored alarms without
// ringing them
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service) error) error {
	ctx, logger := commandContext(cmd)

	alarms, err := openAlarmStore(models.DefaultConfig().DatabasePath, logger)
	if err != nil {
		return err
	}
	defer alarms.Close()

	clock := timer.NewSystem()
	silent := wakeup.New(clock, wakeup.Drivers{}, wakeup.WithLogger(logger))
	svc := service.New(ctx, clock, silent, models.DefaultConfig(), alarms, trigger.New(clock, logger))

	return fn(ctx, svc)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid alarm id %q", arg)
	}
	return id, nil
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List alarms with their next ring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				alarms, err := svc.Alarms(ctx)
				if err != nil {
					return err
				}

				now := time.Now()
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tTIME\tDAYS\tENABLED\tNEXT")
				for _, a := range alarms {
					next := "-"
					if a.Enabled {
						next = calendar.NextOccurrence(a, now).At.Format("Mon Jan 2 15:04")
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\t%s\n", a.ID, a.Name, a.TimeString(), daysLabel(a), a.Enabled, next)
				}
				return w.Flush()
			})
		},
	}
}

func daysLabel(a models.Alarm) string {
	if a.OneTime() {
		return "once"
	}
	if a.Repeat {
		return a.Days.String() + " (weekly)"
	}
	return a.Days.String()
}

func newNextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show the alarm that rings next",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				alarm, next, ok, err := svc.Next(ctx)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "No alarm scheduled")
					return nil
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (in %s)\n",
					next.At.Format("Mon Jan 2 15:04"),
					alarm.Name,
					time.Until(next.At).Round(time.Minute))
				return nil
			})
		},
	}
}

func newUpcomingCommand() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List every ring in the coming days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}

			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				alarms, err := svc.Alarms(ctx)
				if err != nil {
					return err
				}

				now := time.Now()
				rings, err := upcomingRings(alarms, now, now.AddDate(0, 0, days))
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "WHEN\tID\tNAME")
				for _, r := range rings {
					fmt.Fprintf(w, "%s\t%d\t%s\n", r.at.Format("Mon Jan 2 15:04"), r.alarm.ID, r.alarm.Name)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "how many days ahead to look")
	return cmd
}

type ring struct {
	at    time.Time
	alarm models.Alarm
}

// upcomingRings expands the enabled alarms between from and until, earliest first
func upcomingRings(alarms []models.Alarm, from, until time.Time) ([]ring, error) {
	var rings []ring
	for _, a := range alarms {
		if !a.Enabled {
			continue
		}
		times, err := calendar.Expand(a, from, until)
		if err != nil {
			return nil, err
		}
		for _, at := range times {
			rings = append(rings, ring{at: at, alarm: a})
		}
	}

	sort.SliceStable(rings, func(i, j int) bool {
		return rings[i].at.Before(rings[j].at)
	})
	return rings, nil
}

func newAddCommand() *cobra.Command {
	var (
		alarm     models.Alarm
		days      string
		mediaType string
	)

	cmd := &cobra.Command{
		Use:   "add HH:MM",
		Short: "Add an alarm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := time.Parse("15:04", args[0])
			if err != nil {
				return fmt.Errorf("invalid time %q, expected HH:MM", args[0])
			}
			alarm.Hour, alarm.Minute = at.Hour(), at.Minute()

			if alarm.Days, err = models.ParseDaySet(days); err != nil {
				return err
			}
			if alarm.Media.Type, err = models.ParseMediaType(mediaType); err != nil {
				return err
			}
			alarm.Enabled = true

			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				if err := svc.Save(ctx, &alarm); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added alarm %d at %s\n", alarm.ID, alarm.TimeString())
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&alarm.Name, "name", "", "label")
	flags.StringVar(&days, "days", "", "weekdays, e.g. mon,tue,fri (empty rings once)")
	flags.BoolVar(&alarm.Repeat, "repeat", false, "ring every week on the selected days")
	flags.IntVar(&alarm.Volume, "volume", 80, "volume in percent")
	flags.BoolVar(&alarm.GradualVolume, "gradual", false, "raise the volume step by step")
	flags.BoolVar(&alarm.RestrictVolume, "restrict-volume", false, "undo volume changes made while ringing")
	flags.BoolVar(&alarm.Vibrate, "vibrate", false, "vibrate while ringing")
	flags.BoolVar(&alarm.TTS, "speak", false, "announce the time")
	flags.IntVar(&alarm.TTSFrequencySeconds, "speak-every", 0, "seconds between announcements (0 speaks once)")
	flags.StringVar(&alarm.Media.Path, "media", audio.DefaultRingtone, "audio file or directory")
	flags.StringVar(&mediaType, "media-type", "ringtone", "none, file, directory, ringtone or streaming")
	flags.BoolVar(&alarm.Media.Repeat, "media-repeat", true, "loop the media")
	flags.BoolVar(&alarm.Media.Shuffle, "shuffle", false, "shuffle a directory playlist")
	flags.BoolVar(&alarm.RequireToken, "require-token", false, "only dismiss with a token")
	flags.StringVar(&alarm.TokenID, "token", "", "token that dismisses the alarm (empty accepts any)")

	return cmd
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Remove an alarm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				return svc.Delete(ctx, id)
			})
		},
	}
}

func newEnableCommand(enabled bool) *cobra.Command {
	use, short := "enable ID", "Switch an alarm on"
	if !enabled {
		use, short = "disable ID", "Switch an alarm off"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				_, err := svc.SetEnabled(ctx, id, enabled)
				return err
			})
		},
	}
}

func newSkipCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "skip ID",
		Short: "Dismiss the next ring of an alarm ahead of time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				skipped, err := svc.DismissEarly(ctx, id)
				if err != nil {
					return err
				}
				if !skipped.IsZero() {
					fmt.Fprintf(cmd.OutOrStdout(), "Skipped %s\n", skipped.At.Format("Mon Jan 2 15:04"))
				}
				return nil
			})
		},
	}
}

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Add the alarms defined in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, logger := commandContext(cmd)

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			alarms, err := openAlarmStore(models.DefaultConfig().DatabasePath, logger)
			if err != nil {
				return err
			}
			defer alarms.Close()

			imported, err := alarms.Import(ctx, f)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(imported))
			for _, a := range imported {
				names = append(names, fmt.Sprintf("%d %s", a.ID, a.TimeString()))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d alarms: %s\n", len(imported), strings.Join(names, ", "))
			return nil
		},
	}
}

func newExportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write enabled alarms as an iCalendar file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				alarms, err := svc.Alarms(ctx)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}

				return calendar.Export(w, alarms, time.Now(), logging.GetLoggerFromContext(ctx))
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "-", "destination file")
	return cmd
}
