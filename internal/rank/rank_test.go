package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/legendastv/internal/domain"
)

func at(day int) domain.Opt[time.Time] {
	return domain.Some(time.Date(2010, 7, day, 12, 0, 0, 0, time.UTC))
}

func sub(hash, release string, date domain.Opt[time.Time]) domain.Subtitle {
	return domain.Subtitle{Hash: hash, Release: release, Title: "Predators", Language: domain.Some("brazil"), Date: date}
}

func TestRank_PredatorsScenario(t *testing.T) {
	target := Target{Title: "Predators", Release: "Predators 2010 R5 LiNE XviD Noir"}

	cam := sub("cam", "Predators.2010.CAM", at(1))
	cam.Rating = domain.Some(4)
	r5 := sub("r5", "Predators.2010.R5.LiNE.XviD-Noir", at(10))
	r5.Rating = domain.Some(10)
	r5.Highlight = true

	got, err := Rank(target, []domain.Subtitle{cam, r5})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "r5", got[0].Hash)
	assert.Equal(t, "cam", got[1].Hash)
	assert.Greater(t, got[0].Score.V, got[1].Score.V)

	// (10 + 3 + 5 + 1 + 1) * 10 / 20
	assert.InDelta(t, 10.0, got[0].Score.V, 1e-9)
	// (10 + 0 + 5*0.6 + 0.4 + 0) * 10 / 20
	assert.InDelta(t, 6.7, got[1].Score.V, 1e-9)

	// 输入切片不被修改。
	assert.False(t, cam.Score.Valid)
}

func TestRank_StableOnTies(t *testing.T) {
	target := Target{Title: "Predators", Release: "x"}
	in := []domain.Subtitle{
		sub("a", "same", at(5)),
		sub("b", "same", at(5)),
		sub("c", "same", at(5)),
	}
	got, err := Rank(target, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].Hash, got[1].Hash, got[2].Hash})
}

func TestRank_RecencyZeroWhenDatesEqual(t *testing.T) {
	target := Target{Title: "Predators", Release: "Predators"}
	one := sub("a", "Predators", at(5))
	got, err := Rank(target, []domain.Subtitle{one})
	require.NoError(t, err)
	// title 10 + release 5 + 默认 rating 0.8，recency 为 0。
	assert.InDelta(t, (10+5+0.8)*10/20.0, got[0].Score.V, 1e-9)
}

func TestRank_ExcludesUnrankable(t *testing.T) {
	target := Target{Title: "Predators", Release: "Predators"}
	noDate := sub("nodate", "Predators", domain.Opt[time.Time]{})
	noLang := sub("nolang", "Predators", at(3))
	noLang.Language = domain.Opt[string]{}

	got, err := Rank(target, []domain.Subtitle{noDate, sub("ok", "Predators", at(4)), noLang})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Hash)

	_, err = Rank(target, []domain.Subtitle{noDate})
	require.ErrorIs(t, err, domain.ErrEmptyCandidates)
}

func TestRank_RatingClampedToSiteRange(t *testing.T) {
	target := Target{Title: "Predators", Release: "Predators 2010"}

	over := sub("over", "Predators.2010", at(5))
	over.Rating = domain.Some(15)
	over.Highlight = true
	under := sub("under", "Predators.2010", at(5))
	under.Rating = domain.Some(-3)

	got, err := Rank(target, []domain.Subtitle{over, under})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// (10 + 3 + 5 + 1 + 0) * 10 / 20
	assert.InDelta(t, 9.5, got[0].Score.V, 1e-9)
	assert.LessOrEqual(t, got[0].Score.V, 10.0)
	// (10 + 0 + 5 + 0 + 0) * 10 / 20
	assert.InDelta(t, 7.5, got[1].Score.V, 1e-9)
}

func TestRank_Empty(t *testing.T) {
	_, err := Rank(Target{Title: "x"}, nil)
	require.ErrorIs(t, err, domain.ErrEmptyCandidates)
}

func TestRank_TitleFallsBackToRelease(t *testing.T) {
	target := Target{Title: "Alien", Release: ""}
	s := sub("a", "Alien", at(1))
	s.Title = ""
	got, err := Rank(target, []domain.Subtitle{s})
	require.NoError(t, err)
	// title 10 + release(""~"Alien"=0) + 0.8
	assert.InDelta(t, (10+0.8)*10/20.0, got[0].Score.V, 1e-9)
}
