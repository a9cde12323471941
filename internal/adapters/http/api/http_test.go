package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pbspread/internal/adapters/http/api"
	"github.com/okian/pbspread/internal/adapters/repository"
	"github.com/okian/pbspread/internal/domain/engine"
	"github.com/okian/pbspread/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type mockSubmitter struct {
	sub     api.Submission
	err     error
	lastRaw []byte
	calls   int
}

func (m *mockSubmitter) Refresh(context.Context) (api.Submission, error) {
	m.calls++
	return m.sub, m.err
}

func (m *mockSubmitter) SubmitCSV(_ context.Context, raw []byte) (api.Submission, error) {
	m.calls++
	m.lastRaw = raw
	return m.sub, m.err
}

type mockStats struct{}

func (mockStats) GetStats() map[string]any { return map[string]any{"athletes": 3} }

func publishedStore() *repository.SnapshotStore {
	res, err := engine.Compute(context.Background(), []model.Row{
		{"Athlete": "Ann Lee", "2km": "1:45.0", "5km": "1:52.0"},
		{"Athlete": "Bob Vries", "2km": "1:40.0", "5km": "x"},
		{"Athlete": "Cat Moss", "5km": "1:55.0"},
	})
	if err != nil {
		panic(err)
	}
	store := repository.NewSnapshotStore()
	if err := store.Publish(context.Background(), &repository.Snapshot{
		ID: uuid.New(), Seq: 7, Source: "test", ComputedAt: time.Now(), Result: res,
	}); err != nil {
		panic(err)
	}
	return store
}

func newMux(reader api.Reader, sub api.Submitter) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(reader, sub, mockStats{}, 10).Register(mux)
	return mux
}

func do(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder, v any) {
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		panic(fmt.Sprintf("decode %q: %v", w.Body.String(), err))
	}
}

func TestReadRoutes(t *testing.T) {
	Convey("Given a server over a published snapshot", t, func() {
		mux := newMux(publishedStore(), &mockSubmitter{})

		Convey("When listing athletes", func() {
			w := do(mux, http.MethodGet, "/athletes", "")
			var out []map[string]any
			decode(w, &out)

			Convey("Then every athlete should be returned in row order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(len(out), ShouldEqual, 3)
				So(out[1]["name"], ShouldEqual, "Bob Vries")
				So(out[1]["initials"], ShouldEqual, "BV")
			})
		})

		Convey("When getting one athlete", func() {
			w := do(mux, http.MethodGet, "/athletes/1", "")
			var out struct {
				PBs map[string]struct {
					Pace  string              `json:"pace"`
					Power *float64            `json:"power"`
					Rank  *int                `json:"rank"`
					Diffs map[string]*float64 `json:"diffs"`
				} `json:"pbs"`
			}
			decode(w, &out)

			Convey("Then malformed values should be null", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(out.PBs["k5"].Pace, ShouldEqual, "x")
				So(out.PBs["k5"].Power, ShouldBeNil)
				So(out.PBs["k2"].Diffs["k5"], ShouldBeNil)
				So(*out.PBs["k2"].Diffs["k2"], ShouldEqual, 1.0)
				So(*out.PBs["k2"].Rank, ShouldEqual, 0)
			})
		})

		Convey("When the athlete id is unknown or bad", func() {
			So(do(mux, http.MethodGet, "/athletes/9", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/athletes/abc", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When getting a session", func() {
			w := do(mux, http.MethodGet, "/sessions/K2", "")
			var out struct {
				Key     string `json:"key"`
				Column  string `json:"column"`
				Results []struct {
					Athlete string          `json:"athlete"`
					PB      json.RawMessage `json:"pb"`
				} `json:"results"`
				Average struct {
					Holders int      `json:"holders"`
					Power   *float64 `json:"power"`
				} `json:"average"`
			}
			decode(w, &out)

			Convey("Then results should be ranked with absent athletes last", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(out.Key, ShouldEqual, "k2")
				So(out.Column, ShouldEqual, "2km")
				So(len(out.Results), ShouldEqual, 3)
				So(out.Results[0].Athlete, ShouldEqual, "Bob Vries")
				So(string(out.Results[2].PB), ShouldEqual, "null")
				So(out.Average.Holders, ShouldEqual, 2)
				So(out.Average.Power, ShouldNotBeNil)
			})
		})

		Convey("When a session nobody holds is listed", func() {
			w := do(mux, http.MethodGet, "/sessions", "")
			var out []struct {
				Key     string `json:"key"`
				Average struct {
					Power *float64 `json:"power"`
					Pace  string   `json:"pace"`
				} `json:"average"`
			}
			decode(w, &out)

			Convey("Then its average should be null", func() {
				So(len(out), ShouldEqual, 13)
				So(out[12].Key, ShouldEqual, "fm")
				So(out[12].Average.Power, ShouldBeNil)
				So(out[12].Average.Pace, ShouldEqual, "0:00.0")
			})
		})

		Convey("When the event key is unknown", func() {
			So(do(mux, http.MethodGet, "/sessions/marathon", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/leaderboard/marathon", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When requesting a leaderboard", func() {
			w := do(mux, http.MethodGet, "/leaderboard/k5?limit=5", "")
			var out struct {
				Event   string `json:"event"`
				Seq     uint64 `json:"seq"`
				Entries []struct {
					Rank    int      `json:"rank"`
					Athlete string   `json:"athlete"`
					Power   *float64 `json:"power"`
				} `json:"entries"`
			}
			decode(w, &out)

			Convey("Then ranked entries should include the malformed holder last", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(out.Event, ShouldEqual, "k5")
				So(out.Seq, ShouldEqual, 7)
				So(len(out.Entries), ShouldEqual, 3)
				So(out.Entries[0].Athlete, ShouldEqual, "Ann Lee")
				So(out.Entries[2].Athlete, ShouldEqual, "Bob Vries")
				So(out.Entries[2].Power, ShouldBeNil)
			})
		})

		Convey("When the leaderboard limit is invalid", func() {
			So(do(mux, http.MethodGet, "/leaderboard/k2?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/leaderboard/k2?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
			w := do(mux, http.MethodGet, "/leaderboard/k2?limit=11", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "limit_exceeded")
		})

		Convey("When reading snapshot metadata and stats", func() {
			w := do(mux, http.MethodGet, "/snapshot", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"seq":7`)

			w = do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"athletes":3`)
		})

		Convey("When scraping health", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "pbspread_squad_athletes")
		})
	})

	Convey("Given a server before the first publish", t, func() {
		mux := newMux(repository.NewSnapshotStore(), &mockSubmitter{})

		Convey("Then reads should be unavailable", func() {
			for _, path := range []string{"/athletes", "/athletes/0", "/sessions", "/sessions/k2", "/leaderboard/k2", "/snapshot"} {
				So(do(mux, http.MethodGet, path, "").Code, ShouldEqual, http.StatusServiceUnavailable)
			}
		})
	})
}

func TestSubmitRoutes(t *testing.T) {
	Convey("Given a server with a submitter", t, func() {
		sub := &mockSubmitter{sub: api.Submission{JobID: "job-1", Seq: 3, Rows: 2}}
		mux := newMux(repository.NewSnapshotStore(), sub)

		Convey("When posting rows", func() {
			w := do(mux, http.MethodPost, "/rows", "Athlete,2km\nAnn,1:45.0\n")

			Convey("Then the job should be accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(string(sub.lastRaw), ShouldStartWith, "Athlete,2km")
				So(w.Body.String(), ShouldContainSubstring, `"job_id":"job-1"`)
			})
		})

		Convey("When the content was already computed", func() {
			sub.sub = api.Submission{Duplicate: true, Rows: 2}
			w := do(mux, http.MethodPost, "/refresh", "")

			Convey("Then it should be reported as a duplicate", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
			})
		})

		Convey("When the body is empty", func() {
			So(do(mux, http.MethodPost, "/rows", "").Code, ShouldEqual, http.StatusBadRequest)
			So(sub.calls, ShouldEqual, 0)
		})

		Convey("When the submitter fails", func() {
			cases := []struct {
				err    error
				status int
			}{
				{api.ErrBackpressure, http.StatusTooManyRequests},
				{api.ErrNoSource, http.StatusConflict},
				{api.WrapKind("app", api.ErrUpstream, errors.New("dial")), http.StatusBadGateway},
				{api.NewKind("app", api.ErrBadRequest), http.StatusBadRequest},
				{errors.New("boom"), http.StatusInternalServerError},
			}
			for _, tc := range cases {
				sub.err = tc.err
				So(do(mux, http.MethodPost, "/refresh", "").Code, ShouldEqual, tc.status)
			}
		})

		Convey("When using the wrong method", func() {
			So(do(mux, http.MethodGet, "/refresh", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given kind errors", t, func() {
		cause := errors.New("cause")
		err := api.WrapKind("api.op", api.ErrBadRequest, cause)

		So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
		So(errors.Is(err, cause), ShouldBeTrue)
		So(err.Error(), ShouldEqual, "api.op: bad request: cause")
		So(api.NewKind("api.op", api.ErrNoSource).Error(), ShouldEqual, "api.op: no sheet source configured")
		So(api.Wrap("api.op", nil), ShouldBeNil)
	})
}
