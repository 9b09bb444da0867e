package season_test

import (
	"testing"
	"time"

	"github.com/okian/podium/internal/domain/season"
	"github.com/okian/podium/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRegistry(t *testing.T) {
	Convey("Given a registry with a controllable clock", t, func() {
		now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		reg := season.New(season.WithNowFunc(func() time.Time { return now }))
		key := types.Key{Category: types.CategoryXP, Timeframe: types.TimeframeAllTime}

		Convey("Then an unwritten key reports active defaults", func() {
			cfg := reg.Get(key)
			So(cfg.IsActive, ShouldBeTrue)
			So(cfg.MaxEntries, ShouldEqual, 1000)
			So(reg.Accepting(key), ShouldBeTrue)
		})

		Convey("When the partition is deactivated", func() {
			cfg := reg.Get(key)
			cfg.IsActive = false
			So(reg.Set(key, cfg), ShouldBeNil)

			Convey("Then it stops accepting writes", func() {
				So(reg.Accepting(key), ShouldBeFalse)
			})

			Convey("And other keys keep their defaults", func() {
				other := types.Key{Category: types.CategoryQuests, Timeframe: types.TimeframeAllTime}
				So(reg.Accepting(other), ShouldBeTrue)
			})
		})

		Convey("When an invalid config is set", func() {
			err := reg.Set(key, season.Config{IsActive: true, MaxEntries: 0})

			Convey("Then it is rejected and the old config survives", func() {
				So(err, ShouldNotBeNil)
				So(reg.Get(key).MaxEntries, ShouldEqual, 1000)
			})
		})

		Convey("When a new season starts for a category", func() {
			cfg, err := reg.StartNewSeason(types.CategoryTrading, 7*24*time.Hour)
			So(err, ShouldBeNil)

			daily := types.Key{Category: types.CategoryTrading, Timeframe: types.TimeframeDaily}

			Convey("Then the daily variant is active inside the window", func() {
				So(cfg.IsActive, ShouldBeTrue)
				So(cfg.SeasonStart, ShouldEqual, now)
				So(reg.Accepting(daily), ShouldBeTrue)
			})

			Convey("And it stops accepting once the window closes", func() {
				now = now.Add(8 * 24 * time.Hour)
				So(reg.Accepting(daily), ShouldBeFalse)
			})

			Convey("And a non-positive duration is rejected", func() {
				_, err := reg.StartNewSeason(types.CategoryTrading, 0)
				So(err, ShouldNotBeNil)
			})
		})
	})
}
