package deck

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelpick/core/internal/model"
)

type DeckUnitSuite struct {
	suite.Suite
}

func testRng() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func validCatalog(n int) []model.MovieMeta {
	items := make([]model.MovieMeta, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, model.MovieMeta{
			ID:      uuid.New(),
			Title:   "Movie",
			Year:    1980 + i,
			Genres:  []string{"drama"},
			AddedAt: time.Now().Add(-time.Duration(i) * 24 * time.Hour),
		})
	}
	return items
}

func (s *DeckUnitSuite) TestBuildWithEmptyFilters(t provider.T) {
	catalog := validCatalog(20)
	opts := model.DefaultDeckOptions() // wildcards disabled

	master := Build(catalog, []model.UserFilterState{{}, {}}, opts, testRng())

	assert.Equal(t, 20, master.Size())
	assert.Empty(t, master.WildcardIDs)
}

func (s *DeckUnitSuite) TestBuildIntersectsAcrossFilters(t provider.T) {
	catalog := []model.MovieMeta{
		{ID: uuid.New(), Title: "A", Year: 1985, Genres: []string{"drama"}},
		{ID: uuid.New(), Title: "B", Year: 1995, Genres: []string{"drama"}},
		{ID: uuid.New(), Title: "C", Year: 1995, Genres: []string{"horror"}},
	}
	filters := []model.UserFilterState{
		{Genres: []string{"drama"}},
		{Decades: []string{"1990s"}},
	}

	master := Build(catalog, filters, model.DefaultDeckOptions(), testRng())

	require.Equal(t, 1, master.Size())
	assert.Equal(t, "B", master.Cards[0].Title)
}

func (s *DeckUnitSuite) TestBuildWildcards(t provider.T) {
	catalog := validCatalog(30)
	filters := []model.UserFilterState{
		{Decades: []string{"1980s", "1990s"}}, // admits the first 20 of 1980..2009
	}

	opts := model.DefaultDeckOptions()
	opts.Wildcards = model.OptionToggle{Enabled: true, Intensity: model.IntensityMedium}

	master := Build(catalog, filters, opts, testRng())

	// intersection 20, medium -> round(20 * 0.10) = 2 wildcards
	assert.Equal(t, 22, master.Size())
	assert.Len(t, master.WildcardIDs, 2)

	t.Run("Wildcards come from outside the intersection", func(t provider.T) {
		for id := range master.WildcardIDs {
			for _, mm := range catalog[:20] {
				assert.NotEqual(t, mm.ID, id)
			}
		}
	})

	t.Run("At least one wildcard when enabled and candidates exist", func(t provider.T) {
		low := opts
		low.Wildcards.Intensity = model.IntensityLow
		// intersection 5, low -> round(5 * 0.05) = 0, bumped to the minimum of one
		m := Build(validCatalog(15), []model.UserFilterState{{Decades: []string{"1990s"}}}, low, testRng())
		assert.Equal(t, 6, m.Size())
		assert.Len(t, m.WildcardIDs, 1)
	})
}

func (s *DeckUnitSuite) TestPoolStartsFullyUnseen(t provider.T) {
	master := Build(validCatalog(20), nil, model.DefaultDeckOptions(), testRng())
	pool := NewPool(master, model.DefaultDeckOptions(), time.Now())

	assert.Equal(t, 20, pool.UnseenCount())
	assert.Equal(t, 0, pool.ServedCount())
	assert.Equal(t, 0, pool.SwipedCount())
	assert.False(t, pool.Exhausted())
}

func (s *DeckUnitSuite) TestBaseWeights(t provider.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("No boosts means weight 1.0", func(t provider.T) {
		master := Build(validCatalog(5), nil, model.DefaultDeckOptions(), testRng())
		pool := NewPool(master, model.DefaultDeckOptions(), now)
		for _, c := range master.Cards {
			assert.InDelta(t, 1.0, pool.BaseWeight(c.ID), 1e-9)
		}
	})

	t.Run("Release recency boost scales with year", func(t provider.T) {
		opts := model.DefaultDeckOptions()
		opts.BoostNewReleases = model.OptionToggle{Enabled: true, Intensity: model.IntensityHigh}

		old := model.MovieMeta{ID: uuid.New(), Title: "Old", Year: 1950, AddedAt: now}
		fresh := model.MovieMeta{ID: uuid.New(), Title: "New", Year: 2025, AddedAt: now}

		master := Build([]model.MovieMeta{old, fresh}, nil, opts, testRng())
		pool := NewPool(master, opts, now)

		assert.InDelta(t, 1.0, pool.BaseWeight(old.ID), 1e-9)
		assert.InDelta(t, 7.0, pool.BaseWeight(fresh.ID), 1e-9) // 1.0 + 1.0*6.0
	})

	t.Run("Added recency boost decays over a year", func(t provider.T) {
		opts := model.DefaultDeckOptions()
		opts.BoostRecentlyAdded = model.OptionToggle{Enabled: true, Intensity: model.IntensityMedium}

		justAdded := model.MovieMeta{ID: uuid.New(), Title: "J", Year: 1950, AddedAt: now}
		ancient := model.MovieMeta{ID: uuid.New(), Title: "A", Year: 1950, AddedAt: now.Add(-2 * 365 * 24 * time.Hour)}

		master := Build([]model.MovieMeta{justAdded, ancient}, nil, opts, testRng())
		pool := NewPool(master, opts, now)

		assert.InDelta(t, 4.0, pool.BaseWeight(justAdded.ID), 1e-9) // 1.0 + 1.0*3.0
		assert.InDelta(t, 1.0, pool.BaseWeight(ancient.ID), 1e-9)
	})
}

func (s *DeckUnitSuite) TestSampleMovesUnseenToServed(t provider.T) {
	master := Build(validCatalog(20), nil, model.DefaultDeckOptions(), testRng())
	pool := NewPool(master, model.DefaultDeckOptions(), time.Now())
	rng := testRng()

	batch := pool.Sample(5, rng)

	require.Len(t, batch, 5)
	assert.Equal(t, 15, pool.UnseenCount())
	assert.Equal(t, 5, pool.ServedCount())

	t.Run("No card is drawn twice within a batch", func(t provider.T) {
		seen := make(map[uuid.UUID]struct{})
		for _, c := range batch {
			_, dup := seen[c.ID]
			assert.False(t, dup)
			seen[c.ID] = struct{}{}
		}
	})

	t.Run("Count is clamped to at most 10", func(t provider.T) {
		more := pool.Sample(100, rng)
		assert.Len(t, more, 10)
	})

	t.Run("Count is clamped to at least 1", func(t provider.T) {
		one := pool.Sample(-3, rng)
		assert.Len(t, one, 1)
	})

	t.Run("Draining the pool returns short batches", func(t provider.T) {
		rest := pool.Sample(10, rng)
		assert.Len(t, rest, 4)
		assert.Equal(t, 0, pool.UnseenCount())
	})
}

func (s *DeckUnitSuite) TestMarkSwiped(t provider.T) {
	master := Build(validCatalog(3), nil, model.DefaultDeckOptions(), testRng())
	pool := NewPool(master, model.DefaultDeckOptions(), time.Now())
	rng := testRng()

	batch := pool.Sample(2, rng)
	served := batch[0].ID

	assert.True(t, pool.MarkSwiped(served))
	assert.Equal(t, 1, pool.ServedCount())
	assert.Equal(t, 1, pool.SwipedCount())

	t.Run("Swiping an unseen card is ignored", func(t provider.T) {
		var unseen uuid.UUID
		for _, c := range master.Cards {
			if c.ID != batch[0].ID && c.ID != batch[1].ID {
				unseen = c.ID
			}
		}
		assert.False(t, pool.MarkSwiped(unseen))
	})

	t.Run("Double swipe is ignored", func(t provider.T) {
		assert.False(t, pool.MarkSwiped(served))
	})

	t.Run("Exhausted once nothing unseen or pending", func(t provider.T) {
		assert.True(t, pool.MarkSwiped(batch[1].ID))
		last := pool.Sample(1, rng)
		assert.True(t, pool.MarkSwiped(last[0].ID))
		assert.True(t, pool.Exhausted())
	})
}

func (s *DeckUnitSuite) TestAdjustWeight(t provider.T) {
	master := Build(validCatalog(5), nil, model.DefaultDeckOptions(), testRng())
	pool := NewPool(master, model.DefaultDeckOptions(), time.Now())
	target := master.Cards[0].ID

	t.Run("Boost adds exactly the multiplier", func(t provider.T) {
		pool.AdjustWeight(target, model.IntensityMedium.Multiplier())
		assert.InDelta(t, 4.0, pool.Weight(target), 1e-9)
	})

	t.Run("Demotion floors at the minimum weight", func(t provider.T) {
		pool.AdjustWeight(target, -100)
		assert.InDelta(t, MinWeight, pool.Weight(target), 1e-9)
	})

	t.Run("Served cards no longer react", func(t provider.T) {
		rng := testRng()
		for pool.UnseenCount() > 0 {
			pool.Sample(10, rng)
		}
		before := pool.Weight(target)
		pool.AdjustWeight(target, 5)
		assert.Equal(t, before, pool.Weight(target))
	})
}

func (s *DeckUnitSuite) TestSamplingFavorsHeavierEntries(t provider.T) {
	heavy := model.MovieMeta{ID: uuid.New(), Title: "Heavy", Year: 1980, AddedAt: time.Now()}
	light := model.MovieMeta{ID: uuid.New(), Title: "Light", Year: 1980, AddedAt: time.Now()}
	master := Build([]model.MovieMeta{heavy, light}, nil, model.DefaultDeckOptions(), testRng())

	rng := testRng()
	heavyFirst := 0
	const rounds = 500
	for i := 0; i < rounds; i++ {
		pool := NewPool(master, model.DefaultDeckOptions(), time.Now())
		pool.AdjustWeight(heavy.ID, 9.0) // 10x the light card
		batch := pool.Sample(1, rng)
		if batch[0].ID == heavy.ID {
			heavyFirst++
		}
	}

	// ~10/11 expected; anything above 4/5 is a safe bound
	assert.Greater(t, heavyFirst, rounds*4/5)
}

func TestDeckUnitSuite(t *testing.T) {
	suite.RunSuite(t, new(DeckUnitSuite))
}
