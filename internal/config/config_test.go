package config_test

import (
	"runtime"
	"testing"
	"time"

	"github.com/okian/podium/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.EventQueueSize, convey.ShouldEqual, 100_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*4)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 500_000)
			convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 100)
			convey.So(cfg.DefaultMaxEntries, convey.ShouldEqual, 1000)
			convey.So(cfg.DefaultUpdateCooldown, convey.ShouldEqual, 0)
			convey.So(cfg.InactivityThreshold, convey.ShouldEqual, 30*24*time.Hour)
			convey.So(cfg.AdminToken, convey.ShouldBeEmpty)
		})
	})
}
