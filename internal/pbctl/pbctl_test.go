package pbctl_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/pbspread/internal/adapters/http/api"
	"github.com/okian/pbspread/internal/adapters/sheet"
	service "github.com/okian/pbspread/internal/app"
	"github.com/okian/pbspread/internal/domain/catalog"
	"github.com/okian/pbspread/internal/domain/pace"
	"github.com/okian/pbspread/internal/pbctl"
	"github.com/okian/pbspread/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestGenerateSquad(t *testing.T) {
	Convey("Given a generated squad written as CSV", t, func() {
		cat := catalog.Default()
		rows, err := pbctl.GenerateSquad(context.Background(), cat, 25)
		So(err, ShouldBeNil)
		var buf bytes.Buffer
		So(pbctl.WriteCSV(&buf, cat, rows), ShouldBeNil)

		Convey("Then it should parse back to the same rows", func() {
			parsed, err := sheet.ParseCSV(&buf)
			So(err, ShouldBeNil)
			So(len(parsed), ShouldEqual, 25)
			for i := range rows {
				So(parsed[i][catalog.NameColumn], ShouldEqual, rows[i][catalog.NameColumn])
			}
		})

		Convey("Then every athlete should hold a well-formed 2km", func() {
			for _, row := range rows {
				pb := pace.ParsePace(row["2km"])
				So(pb, ShouldNotBeNil)
				So(pb.Malformed(), ShouldBeFalse)
			}
		})

		Convey("Then filled cells should all parse", func() {
			for _, row := range rows {
				for _, ev := range cat.Events() {
					if row[ev.Column] == "" {
						continue
					}
					So(pace.ParsePace(row[ev.Column]).Malformed(), ShouldBeFalse)
				}
			}
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := pbctl.GenerateSquad(ctx, catalog.Default(), 3)
		So(err, ShouldNotBeNil)
	})
}

func TestComputeFile(t *testing.T) {
	Convey("Given a sheet on disk", t, func() {
		path := filepath.Join(t.TempDir(), "squad.csv")
		So(os.WriteFile(path, []byte("Athlete,2km,5km\nAnn Lee,1:45.0,1:52.0\nBob Vries,1:40.0,\nCat Moss,,1:55.0\n"), 0o600), ShouldBeNil)

		Convey("When computed with two leaders per event", func() {
			var out bytes.Buffer
			So(pbctl.ComputeFile(context.Background(), path, 2, &out), ShouldBeNil)
			var sum pbctl.Summary
			So(json.Unmarshal(out.Bytes(), &sum), ShouldBeNil)

			Convey("Then the summary should rank and average each event", func() {
				So(sum.Athletes, ShouldEqual, 3)
				So(len(sum.Sessions), ShouldEqual, catalog.Count)
				k2 := sum.Sessions[catalog.K2]
				So(k2.Key, ShouldEqual, "k2")
				So(k2.Holders, ShouldEqual, 2)
				So(len(k2.Leaders), ShouldEqual, 2)
				So(k2.Leaders[0].Athlete, ShouldEqual, "Bob Vries")
				So(k2.Leaders[1].Pace, ShouldEqual, "1:45.0")
			})

			Convey("Then events nobody holds should have a null power", func() {
				fm := sum.Sessions[catalog.FM]
				So(fm.Power, ShouldBeNil)
				So(fm.Average, ShouldEqual, "0:00.0")
				So(len(fm.Leaders), ShouldEqual, 0)
			})
		})

		Convey("When the file is missing", func() {
			err := pbctl.ComputeFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), 2, &bytes.Buffer{})
			So(err, ShouldNotBeNil)
		})
	})
}

func runCmd(args ...string) (string, error) {
	cmd := pbctl.NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands(t *testing.T) {
	Convey("Given the pbctl command tree", t, func() {
		Convey("Then format should render seconds as a split", func() {
			out, err := runCmd("format", "105.36")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "1:45.3\n")
		})

		Convey("Then format should reject non-numbers", func() {
			_, err := runCmd("format", "abc")
			So(err, ShouldNotBeNil)
		})

		Convey("Then pace should print split and watts", func() {
			out, err := runCmd("pace", "6000m (2:00.0)")
			So(err, ShouldBeNil)
			So(out, ShouldStartWith, "2:00.0\t120.0s\t")
		})

		Convey("Then pace should fail on an empty cell", func() {
			_, err := runCmd("pace", "")
			So(err, ShouldNotBeNil)
		})

		Convey("Then generate should write a header and n rows", func() {
			out, err := runCmd("generate", "-n", "4")
			So(err, ShouldBeNil)
			lines := strings.Split(strings.TrimSpace(out), "\n")
			So(len(lines), ShouldEqual, 5)
			So(lines[0], ShouldStartWith, "Athlete,100m,")
		})

		Convey("Then compute should require a file", func() {
			_, err := runCmd("compute")
			So(err, ShouldNotBeNil)
		})

		Convey("Then load should reject unknown events", func() {
			_, err := runCmd("load", "--event", "marathon")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running pbspread server", t, func() {
		svc := service.New(service.WithQueueSize(64))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc, svc, svc, 100).Register(mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("When a load run uploads several sheets", func() {
			stats, err := pbctl.Run(context.Background(), &pbctl.Config{
				BaseURL:  srv.URL,
				Sheets:   5,
				Athletes: 12,
				Event:    catalog.K2,
				TopN:     5,
				Workers:  3,
				Timeout:  5 * time.Second,
				Settle:   5 * time.Second,
			})

			Convey("Then the newest sheet should be served and verified", func() {
				So(err, ShouldBeNil)
				So(stats.SheetsSubmitted, ShouldEqual, 5)
				So(stats.SheetsAccepted, ShouldEqual, 5)
				So(stats.LastSeq, ShouldEqual, 5)
				So(stats.LeaderboardEntries, ShouldEqual, 5)
			})
		})
	})

	Convey("Given no server", t, func() {
		_, err := pbctl.Run(context.Background(), &pbctl.Config{
			BaseURL: "http://127.0.0.1:1",
			Sheets:  1, Athletes: 1, Workers: 1,
			Timeout: time.Second, Settle: time.Second,
		})
		So(err, ShouldNotBeNil)
	})
}
