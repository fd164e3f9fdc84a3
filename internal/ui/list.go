package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
)

var (
	_ list.Item = clusterItem{}
	_ list.Item = kindItem{}
	_ list.Item = recommendationItem{}
)

// clusterItem wraps [models.TasteCluster] to implement [list.Item].
type clusterItem struct {
	cluster *models.TasteCluster
}

func (i clusterItem) FilterValue() string { return i.cluster.Label() }
func (i clusterItem) Title() string       { return i.cluster.Label() }
func (i clusterItem) Description() string {
	desc := fmt.Sprintf("%d tracks", i.cluster.TrackCount())
	if i.cluster.Description() != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.cluster.Description())
	}
	return desc
}

// kindItem wraps [models.RecommendationKind] to implement [list.Item].
type kindItem struct {
	kind  models.RecommendationKind
	blurb string
}

func (i kindItem) FilterValue() string { return string(i.kind) }
func (i kindItem) Title() string       { return string(i.kind) }
func (i kindItem) Description() string { return i.blurb }

func kindItems() []list.Item {
	return []list.Item{
		kindItem{kind: models.KindCluster, blurb: "New tracks matched to your taste clusters"},
		kindItem{kind: models.KindNostalgia, blurb: "Tracks from your formative years"},
		kindItem{kind: models.KindForgotten, blurb: "Old favorites you haven't revisited"},
	}
}

// recommendationItem wraps [models.Recommendation] to implement [list.Item].
type recommendationItem struct {
	rec *models.Recommendation
}

func (i recommendationItem) FilterValue() string { return i.rec.TrackName() }
func (i recommendationItem) Title() string       { return i.rec.TrackName() }
func (i recommendationItem) Description() string {
	desc := i.rec.ArtistName()
	if i.rec.AlbumName() != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.rec.AlbumName())
	}
	if liked := i.rec.Liked(); liked != nil {
		if *liked {
			desc = fmt.Sprintf("%s • liked", desc)
		} else {
			desc = fmt.Sprintf("%s • disliked", desc)
		}
	}
	return fmt.Sprintf("%s • %.0f%%", desc, i.rec.Confidence()*100)
}
