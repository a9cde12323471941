package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors should be registered under the namespace", func() {
				m.recomputes.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_unit_recomputes_total"], ShouldBeTrue)
			})
		})

		Convey("When empty options are passed", func() {
			m := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithConstLabels(nil), WithPrometheusRegistry(registry))

			Convey("Then defaults should be kept", func() {
				So(m.namespace, ShouldEqual, "pbspread")
				So(m.subsystem, ShouldEqual, "squad")
				So(len(m.histogramBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording a recompute", func() {
			before := testutil.ToFloat64(globalManager.recomputes)
			RecordRecompute(3.5)

			Convey("Then the counter should increase by one", func() {
				So(testutil.ToFloat64(globalManager.recomputes), ShouldEqual, before+1)
			})
		})

		Convey("When recording pace cell outcomes", func() {
			before := testutil.ToFloat64(globalManager.paceCells.WithLabelValues(PaceAbsent))
			RecordPaceCells(PaceAbsent, 4)
			RecordPaceCells(PaceAbsent, 0)

			Convey("Then only positive counts should be added", func() {
				So(testutil.ToFloat64(globalManager.paceCells.WithLabelValues(PaceAbsent)), ShouldEqual, before+4)
			})
		})

		Convey("When publishing a snapshot", func() {
			RecordSnapshotPublished(7, 1_700_000_000)

			Convey("Then the gauges should hold the values", func() {
				So(testutil.ToFloat64(globalManager.snapshotVersion), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.snapshotLastUnix), ShouldEqual, 1_700_000_000)
			})
		})

		Convey("When recording a failed sheet fetch", func() {
			RecordSheetFetch("http", "ok", 1, 12)
			RecordSheetFetch("http", "error", 1, 0)

			Convey("Then the row gauge should keep the last successful value", func() {
				So(testutil.ToFloat64(globalManager.sheetRows), ShouldEqual, 12)
			})
		})

		Convey("When recording everything else", func() {
			So(func() {
				RecordRecomputeError()
				UpdateAthletes(10)
				UpdateSessionsWithAverage(13)
				UpdateRankedResults("k2", 9)
				RecordStaleJobDropped()
				RecordDuplicateSheet()
				UpdateQueueSize(1)
				UpdateQueueCapacity(16)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordHTTPRequest("sessions", "GET", "200", 1.2)
				RecordErrorByComponent("sheet", "fetch")
				RecordErrorByEndpoint("sessions", "GET", "not_found")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(5)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
