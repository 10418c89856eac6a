package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it uses default naming", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "gcart")
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("jv"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithRefreshInterval(3*time.Second),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.offers.WithLabelValues("added").Inc()

			Convey("Then collectors carry the custom names and labels", func() {
				So(manager.RefreshInterval(), ShouldEqual, 3*time.Second)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var found bool
				for _, f := range families {
					if f.GetName() == "test_jv_offers_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When ignoring empty options", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithRefreshInterval(0),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults survive", func() {
				So(manager.namespace, ShouldEqual, "gcart")
				So(manager.subsystem, ShouldEqual, "marketplace")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When recording team formation metrics", func() {
			before := testutil.ToFloat64(globalManager.offers.WithLabelValues("duplicate"))
			RecordOffer("duplicate")
			RecordOffer("duplicate")

			Convey("Then offer counters move", func() {
				So(testutil.ToFloat64(globalManager.offers.WithLabelValues("duplicate")), ShouldEqual, before+2)
			})

			Convey("And the other recorders do not panic", func() {
				So(func() {
					RecordSessionCreated()
					UpdateSessionsActive(3)
					RecordProjectSelected(true)
					RecordProjectSelected(false)
					RecordBid("confirmed")
					RecordBid("rejected")
				}, ShouldNotPanic)
			})
		})

		Convey("When recording directory metrics", func() {
			before := testutil.ToFloat64(globalManager.directoryQuarantined)
			RecordDirectoryQuarantined(2)
			RecordDirectoryQuarantined(0)
			UpdateDirectoryPartners(5)

			Convey("Then only positive quarantine counts are added", func() {
				So(testutil.ToFloat64(globalManager.directoryQuarantined), ShouldEqual, before+2)
				So(testutil.ToFloat64(globalManager.directoryPartners), ShouldEqual, float64(5))
			})

			Convey("And refresh recorders do not panic", func() {
				So(func() {
					RecordDirectoryRefresh("live")
					RecordDirectoryRefresh("fallback")
					RecordDirectoryFetchLatency(12.5)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording notification, HTTP, error and system metrics", func() {
			So(func() {
				UpdateNotifyQueueSize(4)
				RecordNotifyDropped()
				RecordNotifyDelivered()
				UpdateNotifySubscribers(1)
				RecordHTTPRequest("projects", "GET", "200")
				RecordHTTPRequestDuration("projects", "GET", "200", 1.5)
				RecordErrorByComponent("directory", "fetch_failed")
				RecordErrorByEndpoint("offers", "POST", "client_error")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		RecordHTTPRequest("stats", "GET", "200")
		families, err := GetRegistry().Gather()

		Convey("Then it exposes only gcart collectors", func() {
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
			for _, f := range families {
				So(strings.HasPrefix(f.GetName(), "gcart_"), ShouldBeTrue)
			}
		})
	})
}
