package orchestrator

import (
	"fmt"
	"strings"

	"harmony/internal/harmony"
)

// angleGroup is the EXT-X-MEDIA group every angle alternative belongs to.
const angleGroup = "angles"

// defaultBandwidth is advertised on the variant stream; the catalog does not
// carry encoder ladders.
const defaultBandwidth = 2500000

// BuildAnglePlaylist renders an HLS master playlist for feed in which every
// angle is a TYPE=VIDEO alternative of one group. The angle current is
// marked DEFAULT=YES; if it is not one of the feed's angles the first angle
// is. A feed without angles produces a header-only playlist.
func BuildAnglePlaylist(feed harmony.Feed, current harmony.AngleID) string {
	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:4\n")
	b.WriteString("#EXT-X-INDEPENDENT-SEGMENTS\n")

	if len(feed.Angles) == 0 {
		return b.String()
	}

	def, ok := feed.Angle(current)
	if !ok {
		def = feed.Angles[0]
	}

	b.WriteString("\n")
	for _, a := range feed.Angles {
		isDefault := "NO"
		if a.ID == def.ID {
			isDefault = "YES"
		}
		b.WriteString(fmt.Sprintf("#EXT-X-MEDIA:TYPE=VIDEO,GROUP-ID=%q,NAME=%q,DEFAULT=%s,AUTOSELECT=YES,URI=%q\n",
			angleGroup, angleName(a), isDefault, angleURI(a)))
	}

	b.WriteString(fmt.Sprintf("#EXT-X-STREAM-INF:BANDWIDTH=%d,VIDEO=%q\n", defaultBandwidth, angleGroup))
	b.WriteString(angleURI(def))
	b.WriteString("\n")

	return b.String()
}

func angleName(a harmony.Angle) string {
	if a.Label != "" {
		return a.Label
	}
	return fmt.Sprintf("Camera #%d", a.ID)
}

// angleURI maps a source reference to a media playlist URI. References that
// already name a playlist are used as is.
func angleURI(a harmony.Angle) string {
	if strings.HasSuffix(a.SourceRef, ".m3u8") {
		return a.SourceRef
	}
	return strings.TrimSuffix(a.SourceRef, "/") + "/playlist.m3u8"
}
