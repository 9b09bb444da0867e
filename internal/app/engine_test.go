package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	app "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/domain/events"
	"github.com/okian/podium/internal/domain/season"
	"github.com/okian/podium/internal/domain/types"
	"github.com/okian/podium/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// captureSink records every emitted event for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *captureSink) Emit(_ context.Context, e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *captureSink) kinds() []events.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Kind, len(s.events))
	for i, e := range s.events {
		out[i] = e.Kind
	}
	return out
}

func contains(kinds []events.Kind, k events.Kind) bool {
	for _, kk := range kinds {
		if kk == k {
			return true
		}
	}
	return false
}

// denyAll rejects every capability.
type denyAll struct{}

func (denyAll) Authorize(context.Context, app.Capability) error { return app.ErrUnauthorized }

func TestEngine_UpdateScore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a fresh engine", t, func() {
		sink := &captureSink{}
		eng := app.New(app.WithSink(sink))

		Convey("When three entities submit scores", func() {
			for _, s := range []struct {
				entity string
				score  uint64
			}{{"A", 100}, {"B", 150}, {"C", 50}} {
				_, err := eng.UpdateScore(ctx, s.entity, types.CategoryXP, types.TimeframeAllTime, s.score)
				So(err, ShouldBeNil)
			}

			Convey("Then the leaderboard is ordered by score", func() {
				entries, err := eng.GetLeaderboard(ctx, types.CategoryXP, types.TimeframeAllTime, 10)
				So(err, ShouldBeNil)
				So(len(entries), ShouldEqual, 3)
				So(entries[0].Entity, ShouldEqual, "B")
				So(entries[1].Entity, ShouldEqual, "A")
				So(entries[2].Entity, ShouldEqual, "C")
			})

			Convey("And repositioning C lands it between B and A", func() {
				ack, err := eng.UpdateScore(ctx, "C", types.CategoryXP, types.TimeframeAllTime, 120)
				So(err, ShouldBeNil)
				So(ack.Rank, ShouldEqual, 2)
			})

			Convey("And the round trip holds", func() {
				score, err := eng.GetScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime)
				So(err, ShouldBeNil)
				So(score, ShouldEqual, 100)
				rank, err := eng.GetRank(ctx, "A", types.CategoryXP, types.TimeframeAllTime)
				So(err, ShouldBeNil)
				So(rank, ShouldEqual, 2)
			})

			Convey("And parallel top lists match", func() {
				entities, scores, err := eng.GetTopEntities(ctx, types.CategoryXP, types.TimeframeAllTime, 2)
				So(err, ShouldBeNil)
				So(entities, ShouldResemble, []string{"B", "A"})
				So(scores, ShouldResemble, []uint64{150, 100})
			})

			Convey("And events were emitted", func() {
				kinds := sink.kinds()
				So(contains(kinds, events.KindScoreUpdated), ShouldBeTrue)
				So(contains(kinds, events.KindNewLeader), ShouldBeTrue)
				So(contains(kinds, events.KindActiveCountChanged), ShouldBeTrue)
			})
		})

		Convey("When a score drops to zero", func() {
			_, err := eng.UpdateScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime, 100)
			So(err, ShouldBeNil)
			ack, err := eng.UpdateScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime, 0)
			So(err, ShouldBeNil)

			Convey("Then the entry is destroyed and the bit cleared", func() {
				So(ack.Removed, ShouldBeTrue)
				_, err := eng.GetRank(ctx, "A", types.CategoryXP, types.TimeframeAllTime)
				So(errors.Is(err, types.ErrNotFound), ShouldBeTrue)
				So(eng.IsActive(ctx, "A"), ShouldBeFalse)
				So(eng.TotalActive(ctx), ShouldEqual, 0)
			})
		})

		Convey("When the category or timeframe is out of range", func() {
			_, err := eng.UpdateScore(ctx, "A", types.Category(99), types.TimeframeAllTime, 1)
			So(errors.Is(err, types.ErrInvalidCategory), ShouldBeTrue)
			_, err = eng.UpdateScore(ctx, "A", types.CategoryXP, types.Timeframe(99), 1)
			So(errors.Is(err, types.ErrInvalidTimeframe), ShouldBeTrue)
			_, err = eng.UpdateScore(ctx, "", types.CategoryXP, types.TimeframeAllTime, 1)
			So(errors.Is(err, types.ErrEmptyInput), ShouldBeTrue)
		})

		Convey("When partitions share an entity", func() {
			_, err := eng.UpdateScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime, 100)
			So(err, ShouldBeNil)
			_, err = eng.UpdateScore(ctx, "A", types.CategoryQuests, types.TimeframeDaily, 7)
			So(err, ShouldBeNil)

			Convey("Then the partitions stay independent", func() {
				xp, _ := eng.GetScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime)
				quests, _ := eng.GetScore(ctx, "A", types.CategoryQuests, types.TimeframeDaily)
				So(xp, ShouldEqual, 100)
				So(quests, ShouldEqual, 7)
			})

			Convey("And one entity with two category bits counts once", func() {
				So(eng.TotalActive(ctx), ShouldEqual, 1)
				mask := eng.ActiveCategories(ctx, "A")
				So(mask, ShouldEqual, types.CategoryXP.Bit()|types.CategoryQuests.Bit())
			})
		})
	})
}

func TestEngine_IncrementScore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an engine with one scored entity", t, func() {
		eng := app.New()
		_, err := eng.UpdateScore(ctx, "A", types.CategoryTrading, types.TimeframeWeekly, 40)
		So(err, ShouldBeNil)

		Convey("When the score is incremented", func() {
			ack, err := eng.IncrementScore(ctx, "A", types.CategoryTrading, types.TimeframeWeekly, 15)
			So(err, ShouldBeNil)

			Convey("Then the new score is the sum", func() {
				So(ack.Score, ShouldEqual, 55)
			})
		})

		Convey("When incrementing an absent entity", func() {
			ack, err := eng.IncrementScore(ctx, "B", types.CategoryTrading, types.TimeframeWeekly, 5)
			So(err, ShouldBeNil)

			Convey("Then it starts from zero", func() {
				So(ack.Score, ShouldEqual, 5)
			})
		})

		Convey("When the increment would overflow", func() {
			_, err := eng.IncrementScore(ctx, "A", types.CategoryTrading, types.TimeframeWeekly, ^uint64(0))
			So(err, ShouldBeNil)

			Convey("Then the score saturates instead of wrapping", func() {
				score, _ := eng.GetScore(ctx, "A", types.CategoryTrading, types.TimeframeWeekly)
				So(score, ShouldEqual, ^uint64(0))
			})
		})
	})
}

func TestEngine_UpdateScores(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty engine", t, func() {
		eng := app.New()

		Convey("When a valid batch is applied", func() {
			acks, err := eng.UpdateScores(ctx, []string{"A", "B", "C"}, types.CategoryXP, types.TimeframeAllTime,
				[]uint64{100, 300, 200})
			So(err, ShouldBeNil)

			Convey("Then each entry is admitted at its rank", func() {
				So(len(acks), ShouldEqual, 3)
				So(acks[0].Admitted, ShouldBeTrue)
				So(acks[1].Rank, ShouldEqual, 1)
				So(acks[2].Rank, ShouldEqual, 2)
				entries, _ := eng.GetLeaderboard(ctx, types.CategoryXP, types.TimeframeAllTime, 10)
				So(len(entries), ShouldEqual, 3)
				So(entries[0].Entity, ShouldEqual, "B")
			})
		})

		Convey("When the slices disagree in length", func() {
			_, err := eng.UpdateScores(ctx, []string{"A", "B"}, types.CategoryXP, types.TimeframeAllTime,
				[]uint64{100})

			Convey("Then the whole batch is rejected with nothing changed", func() {
				So(errors.Is(err, types.ErrLengthMismatch), ShouldBeTrue)
				entries, _ := eng.GetLeaderboard(ctx, types.CategoryXP, types.TimeframeAllTime, 10)
				So(len(entries), ShouldEqual, 0)
			})
		})

		Convey("When the batch is empty", func() {
			_, err := eng.UpdateScores(ctx, nil, types.CategoryXP, types.TimeframeAllTime, nil)
			So(errors.Is(err, types.ErrEmptyInput), ShouldBeTrue)
		})

		Convey("When one entity name is blank", func() {
			_, err := eng.UpdateScores(ctx, []string{"A", ""}, types.CategoryXP, types.TimeframeAllTime,
				[]uint64{100, 200})

			Convey("Then validation fails before any write", func() {
				So(err, ShouldNotBeNil)
				entries, _ := eng.GetLeaderboard(ctx, types.CategoryXP, types.TimeframeAllTime, 10)
				So(len(entries), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a full capacity-2 partition", t, func() {
		eng := app.New(app.WithSeasonDefaults(season.Config{IsActive: true, MaxEntries: 2}))
		_, err := eng.UpdateScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime, 100)
		So(err, ShouldBeNil)
		_, err = eng.UpdateScore(ctx, "B", types.CategoryXP, types.TimeframeAllTime, 50)
		So(err, ShouldBeNil)

		Convey("When a batch mixes admissible and inadmissible entries", func() {
			acks, err := eng.UpdateScores(ctx, []string{"C", "D"}, types.CategoryXP, types.TimeframeAllTime,
				[]uint64{10, 200})
			So(err, ShouldBeNil)

			Convey("Then the rejected entry does not abort the rest", func() {
				So(acks[0].Admitted, ShouldBeFalse)
				So(acks[1].Admitted, ShouldBeTrue)
				So(acks[1].Rank, ShouldEqual, 1)
				_, err := eng.GetRank(ctx, "C", types.CategoryXP, types.TimeframeAllTime)
				So(errors.Is(err, types.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestEngine_Admission(t *testing.T) {
	ctx := context.Background()

	Convey("Given a capacity-2 partition", t, func() {
		eng := app.New(app.WithSeasonDefaults(season.Config{IsActive: true, MaxEntries: 2}))
		_, err := eng.UpdateScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime, 100)
		So(err, ShouldBeNil)
		_, err = eng.UpdateScore(ctx, "B", types.CategoryXP, types.TimeframeAllTime, 50)
		So(err, ShouldBeNil)

		Convey("When a higher newcomer arrives", func() {
			ack, err := eng.UpdateScore(ctx, "C", types.CategoryXP, types.TimeframeAllTime, 75)
			So(err, ShouldBeNil)

			Convey("Then the lowest entry is evicted", func() {
				So(ack.Rank, ShouldEqual, 2)
				_, err := eng.GetRank(ctx, "B", types.CategoryXP, types.TimeframeAllTime)
				So(errors.Is(err, types.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a too-low newcomer arrives", func() {
			_, err := eng.UpdateScore(ctx, "C", types.CategoryXP, types.TimeframeAllTime, 25)

			Convey("Then it is explicitly not admitted and nothing changed", func() {
				So(errors.Is(err, types.ErrNotAdmitted), ShouldBeTrue)
				entries, _ := eng.GetLeaderboard(ctx, types.CategoryXP, types.TimeframeAllTime, 10)
				So(len(entries), ShouldEqual, 2)
				So(eng.IsActive(ctx, "C"), ShouldBeFalse)
			})
		})
	})
}

func TestEngine_SeasonGating(t *testing.T) {
	ctx := context.Background()

	Convey("Given an engine with a controllable clock", t, func() {
		now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		eng := app.New(app.WithNowFunc(func() time.Time { return now }))

		Convey("When a partition is deactivated", func() {
			_, err := eng.UpdateScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime, 10)
			So(err, ShouldBeNil)
			err = eng.SetSeasonConfig(ctx, types.CategoryXP, types.TimeframeAllTime, season.Config{IsActive: false, MaxEntries: 100})
			So(err, ShouldBeNil)

			Convey("Then writes are rejected but reads still work", func() {
				_, err := eng.UpdateScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime, 20)
				So(errors.Is(err, app.ErrSeasonInactive), ShouldBeTrue)
				score, err := eng.GetScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime)
				So(err, ShouldBeNil)
				So(score, ShouldEqual, 10)
			})
		})

		Convey("When a cooldown is configured", func() {
			err := eng.SetSeasonConfig(ctx, types.CategoryXP, types.TimeframeAllTime, season.Config{
				IsActive:       true,
				MaxEntries:     100,
				UpdateCooldown: time.Minute,
			})
			So(err, ShouldBeNil)
			_, err = eng.UpdateScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime, 10)
			So(err, ShouldBeNil)

			Convey("Then a burst resubmission is rejected whole", func() {
				_, err := eng.UpdateScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime, 20)
				So(errors.Is(err, app.ErrCooldownActive), ShouldBeTrue)
				score, _ := eng.GetScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime)
				So(score, ShouldEqual, 10)
			})

			Convey("And it is accepted once the window passes", func() {
				now = now.Add(2 * time.Minute)
				_, err := eng.UpdateScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime, 20)
				So(err, ShouldBeNil)
			})
		})

		Convey("When a new season starts with a window", func() {
			_, err := eng.StartNewSeason(ctx, types.CategoryTrading, 24*time.Hour)
			So(err, ShouldBeNil)
			_, err = eng.UpdateScore(ctx, "A", types.CategoryTrading, types.TimeframeDaily, 5)
			So(err, ShouldBeNil)

			Convey("Then writes stop when the window closes", func() {
				now = now.Add(25 * time.Hour)
				_, err := eng.UpdateScore(ctx, "A", types.CategoryTrading, types.TimeframeDaily, 6)
				So(errors.Is(err, app.ErrSeasonInactive), ShouldBeTrue)
			})
		})
	})
}

func TestEngine_ResetLeaderboard(t *testing.T) {
	ctx := context.Background()

	Convey("Given an engine with scores in two partitions", t, func() {
		sink := &captureSink{}
		eng := app.New(app.WithSink(sink))
		_, err := eng.UpdateScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime, 100)
		So(err, ShouldBeNil)
		_, err = eng.UpdateScore(ctx, "A", types.CategoryQuests, types.TimeframeAllTime, 30)
		So(err, ShouldBeNil)

		Convey("When one partition is reset", func() {
			err := eng.ResetLeaderboard(ctx, types.CategoryXP, types.TimeframeAllTime)
			So(err, ShouldBeNil)

			Convey("Then that partition is empty and the score reads zero", func() {
				entries, _ := eng.GetLeaderboard(ctx, types.CategoryXP, types.TimeframeAllTime, 10)
				So(len(entries), ShouldEqual, 0)
				score, err := eng.GetScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime)
				So(err, ShouldBeNil)
				So(score, ShouldEqual, 0)
			})

			Convey("And unrelated partitions and raw totals survive", func() {
				quests, _ := eng.GetScore(ctx, "A", types.CategoryQuests, types.TimeframeAllTime)
				So(quests, ShouldEqual, 30)
				raw, err := eng.RawTotal(ctx, "A", types.CategoryXP)
				So(err, ShouldBeNil)
				So(raw, ShouldEqual, 100)
			})

			Convey("And the global record is untouched", func() {
				best, holder, err := eng.BestRecord(ctx, types.CategoryXP, types.TimeframeAllTime)
				So(err, ShouldBeNil)
				So(best, ShouldEqual, 100)
				So(holder, ShouldEqual, "A")
			})

			Convey("And a reset event was emitted", func() {
				So(contains(sink.kinds(), events.KindLeaderboardReset), ShouldBeTrue)
			})
		})
	})
}

func TestEngine_Records(t *testing.T) {
	ctx := context.Background()

	Convey("Given an engine", t, func() {
		eng := app.New()

		Convey("When all-time scores land in two categories", func() {
			_, err := eng.UpdateScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime, 50)
			So(err, ShouldBeNil)
			_, err = eng.UpdateScore(ctx, "A", types.CategoryQuests, types.TimeframeAllTime, 20)
			So(err, ShouldBeNil)
			_, err = eng.UpdateScore(ctx, "B", types.CategoryXP, types.TimeframeAllTime, 60)
			So(err, ShouldBeNil)

			Convey("Then per-category records are independent", func() {
				best, holder, err := eng.BestInCategory(ctx, types.CategoryXP)
				So(err, ShouldBeNil)
				So(best, ShouldEqual, 60)
				So(holder, ShouldEqual, "B")
			})

			Convey("And the overall best sums categories per entity", func() {
				best, holder := eng.OverallBest(ctx)
				So(best, ShouldEqual, 70) // A: 50 + 20
				So(holder, ShouldEqual, "A")
			})
		})
	})
}

func TestEngine_CleanupInactive(t *testing.T) {
	ctx := context.Background()

	Convey("Given an engine with a stale entity", t, func() {
		now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		eng := app.New(
			app.WithNowFunc(func() time.Time { return now }),
			app.WithInactivityThreshold(24*time.Hour),
		)
		_, err := eng.UpdateScore(ctx, "stale", types.CategoryXP, types.TimeframeAllTime, 10)
		So(err, ShouldBeNil)
		now = now.Add(48 * time.Hour)
		_, err = eng.UpdateScore(ctx, "fresh", types.CategoryXP, types.TimeframeAllTime, 20)
		So(err, ShouldBeNil)

		Convey("When cleanup runs", func() {
			n, err := eng.CleanupInactive(ctx, []string{"stale", "fresh"})
			So(err, ShouldBeNil)

			Convey("Then only the stale entity is deactivated", func() {
				So(n, ShouldEqual, 1)
				So(eng.IsActive(ctx, "stale"), ShouldBeFalse)
				So(eng.TotalActive(ctx), ShouldEqual, 1)
			})

			Convey("And repeating it changes nothing", func() {
				n, err := eng.CleanupInactive(ctx, []string{"stale", "fresh"})
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When the batch is empty", func() {
			_, err := eng.CleanupInactive(ctx, nil)
			So(errors.Is(err, types.ErrEmptyInput), ShouldBeTrue)
		})
	})
}

func TestEngine_Authorization(t *testing.T) {
	ctx := context.Background()

	Convey("Given an engine with a denying authorizer", t, func() {
		eng := app.New(app.WithAuthorizer(denyAll{}))
		_, err := eng.UpdateScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime, 10)
		So(err, ShouldBeNil) // score writes are not admin-gated

		Convey("Then every admin entry point is rejected", func() {
			err := eng.ResetLeaderboard(ctx, types.CategoryXP, types.TimeframeAllTime)
			So(errors.Is(err, app.ErrUnauthorized), ShouldBeTrue)
			err = eng.SetSeasonConfig(ctx, types.CategoryXP, types.TimeframeAllTime, season.Config{IsActive: true, MaxEntries: 10})
			So(errors.Is(err, app.ErrUnauthorized), ShouldBeTrue)
			_, err = eng.StartNewSeason(ctx, types.CategoryXP, time.Hour)
			So(errors.Is(err, app.ErrUnauthorized), ShouldBeTrue)
			_, err = eng.CleanupInactive(ctx, []string{"A"})
			So(errors.Is(err, app.ErrUnauthorized), ShouldBeTrue)
		})

		Convey("And the gated state is unchanged", func() {
			score, _ := eng.GetScore(ctx, "A", types.CategoryXP, types.TimeframeAllTime)
			So(score, ShouldEqual, 10)
		})
	})
}
