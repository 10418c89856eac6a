package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/SBCM-Alliance/G-Cart/internal/config"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.SessionTTL, convey.ShouldEqual, 30*time.Minute)
			convey.So(cfg.SessionStore, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.Owner.Capacity, convey.ShouldEqual, model.Amount(30_000_000))
			convey.So(cfg.Directory.TTL, convey.ShouldEqual, time.Minute)
			convey.So(cfg.Matching.LocalFirst, convey.ShouldBeFalse)
			convey.So(cfg.Notify.Workers, convey.ShouldEqual, 2)
		})

		convey.Convey("Then the defaults validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a config", t, func() {
		cfg := config.New()

		convey.Convey("When the redis store has no address", func() {
			cfg.SessionStore = config.StoreRedis
			err := cfg.Validate()

			convey.Convey("Then it is invalid", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the store backend is unknown", func() {
			cfg.SessionStore = "etcd"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the owner capacity is negative", func() {
			cfg.Owner.Capacity = -1
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the sheet URL is not a URL", func() {
			cfg.Directory.SheetURL = "not a url"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the log format is unknown", func() {
			cfg.LogFormat = "xml"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
