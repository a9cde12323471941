package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pbspread/internal/adapters/mq/queue"
	"github.com/okian/pbspread/internal/adapters/mq/worker"
	"github.com/okian/pbspread/internal/adapters/repository"
	"github.com/okian/pbspread/internal/domain/catalog"
	"github.com/okian/pbspread/internal/domain/engine"
	"github.com/okian/pbspread/internal/domain/model"
	logging "github.com/okian/pbspread/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type failingComputer struct{ err error }

func (f failingComputer) Compute(context.Context, []model.Row) (*engine.Result, error) {
	return nil, f.err
}

func job(seq uint64, rows ...model.Row) queue.Job {
	return queue.Job{ID: uuid.New(), Seq: seq, Source: "test", Fingerprint: "fp", Rows: rows}
}

// drain runs the worker until the closed queue is empty.
func drain(w *worker.RecomputeWorker) {
	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		panic("worker did not stop")
	}
}

func TestRecomputeWorker(t *testing.T) {
	_ = logging.Init()
	ctx := context.Background()

	Convey("Given a worker over a real engine and store", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		store := repository.NewSnapshotStore()
		w := worker.New(q, engine.New(), store)

		Convey("When jobs arrive in order", func() {
			q.Enqueue(ctx, job(1, model.Row{"Athlete": "Ann Lee", "2km": "1:45.0"}))
			q.Enqueue(ctx, job(2, model.Row{"Athlete": "Ann Lee", "2km": "1:44.0"}, model.Row{"Athlete": "Bob Vries", "2km": "1:40.0"}))
			_ = q.Close()
			drain(w)

			Convey("Then the newest result should be published", func() {
				So(store.Seq(ctx), ShouldEqual, 2)
				entries, err := store.Leaderboard(ctx, catalog.K2, 10)
				So(err, ShouldBeNil)
				So(len(entries), ShouldEqual, 2)
				So(entries[0].Athlete, ShouldEqual, "Bob Vries")
				So(w.Stats().Published, ShouldEqual, 2)
			})
		})

		Convey("When an older job arrives after a newer one", func() {
			q.Enqueue(ctx, job(3, model.Row{"Athlete": "New"}))
			q.Enqueue(ctx, job(2, model.Row{"Athlete": "Old"}))
			_ = q.Close()
			drain(w)

			Convey("Then the stale job should be dropped", func() {
				athletes, err := store.Athletes(ctx)
				So(err, ShouldBeNil)
				So(athletes[0].Name, ShouldEqual, "New")
				So(w.Stats().Dropped, ShouldEqual, 1)
				So(w.Stats().Published, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a computer that fails", t, func() {
		q := queue.NewInMemoryQueue()
		store := repository.NewSnapshotStore()
		var mu sync.Mutex
		var failed []string
		w := worker.New(q, failingComputer{err: errors.New("boom")}, store,
			worker.WithName("failing"),
			worker.WithFailureHook(func(j queue.Job) {
				mu.Lock()
				failed = append(failed, j.Fingerprint)
				mu.Unlock()
			}),
		)
		q.Enqueue(ctx, job(1))
		_ = q.Close()
		drain(w)

		Convey("Then nothing should be published and the hook should fire", func() {
			_, err := store.Current(ctx)
			So(errors.Is(err, repository.ErrNoSnapshot), ShouldBeTrue)
			So(w.Stats().Failed, ShouldEqual, 1)
			mu.Lock()
			defer mu.Unlock()
			So(failed, ShouldResemble, []string{"fp"})
		})
	})

	Convey("Given a running worker", t, func() {
		q := queue.NewInMemoryQueue()
		w := worker.New(q, engine.New(), repository.NewSnapshotStore())
		go w.Run(ctx)

		Convey("When it is shut down", func() {
			sctx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()

			Convey("Then it should stop and tolerate a second call", func() {
				So(w.Shutdown(sctx), ShouldBeNil)
				So(w.Shutdown(sctx), ShouldBeNil)
			})
		})
	})
}
