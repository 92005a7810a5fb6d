package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"harmony/internal/harmony"
	"harmony/internal/orchestrator"
)

var playlistCmd = &cobra.Command{
	Use:   "playlist",
	Short: "Print a feed's multi-angle HLS master playlist",
	Long: `Print the HLS master playlist of one feed. Every angle of the feed is an
EXT-X-MEDIA video alternative; --angle picks the default one.

Examples:
  # Principal feed of the first event
  harmonyctl playlist --feed 0

  # Feed 1 of event-001 defaulting to angle 102
  harmonyctl playlist --event event-001 --feed 1 --angle 102`,
	Args: cobra.NoArgs,
	RunE: runPlaylist,
}

var (
	playlistEvent string
	playlistFeed  int
	playlistAngle int
)

func init() {
	rootCmd.AddCommand(playlistCmd)

	playlistCmd.Flags().StringVar(&playlistEvent, "event", "", "event id (default is the first event)")
	playlistCmd.Flags().IntVar(&playlistFeed, "feed", 0, "feed id")
	playlistCmd.Flags().IntVar(&playlistAngle, "angle", 0, "default angle id (default is the feed's first angle)")
}

func runPlaylist(cmd *cobra.Command, args []string) error {
	repo, err := loadCatalog()
	if err != nil {
		return err
	}
	e, err := resolveEvent(repo, playlistEvent)
	if err != nil {
		return err
	}

	svc := orchestrator.NewService(repo)
	m3u8, err := svc.AnglePlaylist(e.ID, harmony.FeedID(playlistFeed), harmony.AngleID(playlistAngle))
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), m3u8)
	return err
}
