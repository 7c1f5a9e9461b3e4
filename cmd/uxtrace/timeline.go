package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/uxtrace/uxtrace/internal/correlate"
	"github.com/uxtrace/uxtrace/internal/models"
	"github.com/uxtrace/uxtrace/internal/viewerapi"
)

var (
	timelineSession string
	timelineDay     string
	timelineHost    string
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Replay a session's timeline from the collector",
	Long: `Fetch the event feed and screenshot store from the collector and
reconstruct one session/day timeline: matched slides, unmatched events,
orphan screenshots and button press counts. Without --session, lists the
sessions and days the collector knows about.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		host := cfg.Viewer.Host
		if timelineHost != "" {
			host = timelineHost
		}

		client := viewerapi.NewClient(host)
		events, err := client.Events(cmd.Context())
		if err != nil {
			return err
		}

		if timelineSession == "" {
			return printOverview(events)
		}

		day := timelineDay
		if day == "" {
			day = time.Now().Format("2006-01-02")
		}

		shots, err := client.Screenshots(cmd.Context())
		if err != nil {
			return err
		}

		dayEvents := correlate.FilterSessionDay(events, timelineSession, day)
		ordinary, flagged := correlate.Split(dayEvents)
		result := correlate.Correlate(flagged, shots, timelineSession, day)
		slides := correlate.Slides(result.Matched)

		fmt.Printf("Session %s on %s: %d events\n\n", timelineSession, day, len(dayEvents))

		fmt.Printf("Slides (%d):\n", len(slides))
		for i, slide := range slides {
			fmt.Printf("  %d. %s [%d image bytes]\n", i+1, slide.Label, len(slide.Src))
		}

		if len(result.Unmatched) > 0 {
			fmt.Printf("\nUnmatched screenshot events (%d):\n", len(result.Unmatched))
			for _, event := range result.Unmatched {
				fmt.Printf("  %s @ %s", event.Action, time.UnixMilli(event.Timestamp).Format(time.RFC3339))
				// Exact key failed; fall back to the nearest capture within
				// the tolerance window.
				if best, err := correlate.Nearest(event, shots, cfg.Viewer.Tolerance); err == nil {
					fmt.Printf("  (nearest: %s @ %s)", best.Name, time.UnixMilli(best.Timestamp).Format(time.RFC3339))
				} else {
					fmt.Printf("  (no screenshot within %s)", cfg.Viewer.Tolerance)
				}
				fmt.Println()
			}
		}
		if len(result.Orphans) > 0 {
			fmt.Printf("\nOrphan screenshots (%d):\n", len(result.Orphans))
			for _, shot := range result.Orphans {
				fmt.Printf("  %s @ %s\n", shot.Name, time.UnixMilli(shot.Timestamp).Format(time.RFC3339))
			}
		}

		counts := correlate.ButtonCounts(ordinary)
		if len(counts) > 0 {
			fmt.Printf("\nButtons pressed:\n")
			for _, row := range counts {
				fmt.Printf("  %4d  %s\n", row.Count, row.Name)
			}
		}
		return nil
	},
}

// printOverview lists the days and sessions present in the feed so the
// operator can pick a --session / --day pair.
func printOverview(events []models.FeedEvent) error {
	if len(events) == 0 {
		fmt.Println("No events yet.")
		return nil
	}

	grouped := correlate.GroupByDay(events)
	days := make([]string, 0, len(grouped))
	for day := range grouped {
		days = append(days, day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	fmt.Printf("Loaded %d events\n\n", len(events))
	for _, day := range days {
		fmt.Printf("%s:\n", day)
		for _, sessionID := range correlate.Sessions(grouped[day]) {
			count := len(correlate.FilterSessionDay(grouped[day], sessionID, day))
			fmt.Printf("  %s  (%d events)\n", sessionID, count)
		}
	}
	return nil
}

func init() {
	timelineCmd.Flags().StringVar(&timelineSession, "session", "", "session identifier to replay")
	timelineCmd.Flags().StringVar(&timelineDay, "day", "", "local calendar day (YYYY-MM-DD), defaults to today")
	timelineCmd.Flags().StringVar(&timelineHost, "host", "", "collector base URL (overrides configuration)")
}
