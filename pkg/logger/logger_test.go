package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with defaults", func() {
			So(Init(), ShouldBeNil)

			Convey("Then Get returns a usable logger", func() {
				So(Get(), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When initialized with an unknown format", func() {
			err := Init(WithFormat("xml"))

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unknown log format")
			})
		})
	})
}

func TestLoggerJSONOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithFormat(FormatJSON), WithWriter(&buf)), ShouldBeNil)
		So(SetLevelString("info"), ShouldBeNil)
		defer func() { _ = Init() }()

		Convey("When logging with fields through a named logger", func() {
			Named("engine").With(Int("athletes", 3)).Info(context.Background(), "recomputed", String("sheet", "squad"))

			Convey("Then the record should carry every field", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "recomputed")
				So(rec["component"], ShouldEqual, "engine")
				So(rec["athletes"], ShouldEqual, float64(3))
				So(rec["sheet"], ShouldEqual, "squad")
				So(rec["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When logging below the configured level", func() {
			So(SetLevelString("warn"), ShouldBeNil)
			Get().Debug(context.Background(), "hidden")
			Get().Info(context.Background(), "hidden too")

			Convey("Then nothing should be written", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		for _, lvl := range []string{"debug", "INFO", " warn ", "warning", "error", ""} {
			So(SetLevelString(lvl), ShouldBeNil)
		}
		err := SetLevelString("verbose")
		So(err, ShouldNotBeNil)
		So(strings.Contains(err.Error(), "verbose"), ShouldBeTrue)
		_ = SetLevelString("info")
	})
}
