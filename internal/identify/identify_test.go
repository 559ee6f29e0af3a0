package identify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/legendastv/internal/domain"
)

func TestFilter(t *testing.T) {
	cands := []Candidate{
		{Name: "Glee", Kind: "tv series"},
		{Name: "Glee", Kind: "Movie"},
		{Name: `"Glee" Pilot`, Kind: "episode"},
	}
	got := Filter(cands, false)
	require.Len(t, got, 2)
	assert.Equal(t, KindMovie, got[0].Kind)

	got = Filter(cands, true)
	require.Len(t, got, 1)
	assert.Equal(t, KindEpisode, got[0].Kind)
}

func TestRefine_PicksMostSimilarCandidate(t *testing.T) {
	id := Func(func(context.Context, string) ([]Candidate, error) {
		return []Candidate{
			{Name: "Predator", Year: 1987, Kind: KindMovie},
			{Name: "Predators", Year: 2010, Kind: KindMovie},
			{Name: "Predators", Kind: KindTVSeries},
		}, nil
	})
	info := domain.VideoInfo{Title: "Predators", Year: domain.Some(2010), Kind: domain.MediaMovie, Release: "Predators 2010 R5"}

	got := Refine(context.Background(), id, "/v/p.avi", info, nil)
	assert.Equal(t, "Predators", got.Title)
	assert.Equal(t, domain.Some(2010), got.Year)
	assert.Equal(t, domain.MediaMovie, got.Kind)
	assert.Equal(t, info.Release, got.Release)
}

func TestRefine_EpisodeKeepsFileNumbersAndStripsSeriesName(t *testing.T) {
	id := Func(func(context.Context, string) ([]Candidate, error) {
		return []Candidate{{Name: `"Glee" Pilot`, Year: 2009, Kind: "episode", Season: 9, Episode: 9}}, nil
	})
	info := domain.VideoInfo{Title: "glee", Kind: domain.MediaEpisode, Season: 1, Episode: 2}

	got := Refine(context.Background(), id, "/v/glee.s01e02.avi", info, nil)
	assert.Equal(t, "Glee", got.Title)
	assert.Equal(t, 1, got.Season)
	assert.Equal(t, 2, got.Episode)
}

func TestRefine_CandidateTurnsMovieIntoEpisode(t *testing.T) {
	id := Func(func(context.Context, string) ([]Candidate, error) {
		return []Candidate{{Name: `"House" Pilot`, Year: 2004, Kind: "episode", Season: 1, Episode: 1}}, nil
	})
	got := Refine(context.Background(), id, "/v/house.avi", domain.VideoInfo{Title: "house", Kind: domain.MediaMovie}, nil)
	assert.Equal(t, domain.MediaEpisode, got.Kind)
	assert.Equal(t, "House", got.Title)
	assert.Equal(t, 1, got.Season)
	assert.Equal(t, 1, got.Episode)
}

func TestRefine_ErrorsAndEmptyKeepInfo(t *testing.T) {
	info := domain.VideoInfo{Title: "Predators", Kind: domain.MediaMovie}
	failing := Func(func(context.Context, string) ([]Candidate, error) { return nil, errors.New("offline") })

	assert.Equal(t, info, Refine(context.Background(), failing, "/v/p.avi", info, nil))
	assert.Equal(t, info, Refine(context.Background(), Nop{}, "/v/p.avi", info, nil))
	assert.Equal(t, info, Refine(context.Background(), nil, "/v/p.avi", info, nil))
}
