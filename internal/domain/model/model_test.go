package model_test

import (
	"testing"

	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestAmountString(t *testing.T) {
	convey.Convey("Given yen amounts", t, func() {
		convey.So(model.Amount(0).String(), convey.ShouldEqual, "¥0")
		convey.So(model.Amount(999).String(), convey.ShouldEqual, "¥999")
		convey.So(model.Amount(1000).String(), convey.ShouldEqual, "¥1,000")
		convey.So(model.Amount(50_000_000).String(), convey.ShouldEqual, "¥50,000,000")
		convey.So(model.Amount(-20_000_000).String(), convey.ShouldEqual, "-¥20,000,000")
	})
}

func TestProjectRequires(t *testing.T) {
	convey.Convey("Given a project with required tags", t, func() {
		p := model.Project{ID: 101, RequiredTags: []string{"Paving", "Security"}}

		convey.Convey("Then membership is exact", func() {
			convey.So(p.Requires("Paving"), convey.ShouldBeTrue)
			convey.So(p.Requires("Security"), convey.ShouldBeTrue)
			convey.So(p.Requires("paving"), convey.ShouldBeFalse)
			convey.So(p.Requires("Electrical"), convey.ShouldBeFalse)
		})
	})
}
