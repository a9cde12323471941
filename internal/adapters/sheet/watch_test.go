package sheet_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/pbspread/internal/adapters/sheet"
	"github.com/okian/pbspread/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// replaceFile saves content the way editors do: write a sibling temp file
// and rename it over path.
func replaceFile(path, content string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// awaitChange reports whether a change arrives within a second.
func awaitChange(changes <-chan struct{}) bool {
	select {
	case <-changes:
		return true
	case <-time.After(time.Second):
		return false
	}
}

// drain discards changes already queued.
func drain(changes <-chan struct{}) {
	for {
		select {
		case <-changes:
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

func TestFileSourceWatch(t *testing.T) {
	Convey("Given a watched sheet file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "squad.csv")
		So(os.WriteFile(path, []byte(squadCSV), 0o600), ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		changes := make(chan struct{}, 64)
		done := make(chan error, 1)
		go func() {
			done <- sheet.NewFileSource(path).Watch(ctx, func() { changes <- struct{}{} })
		}()
		defer func() {
			cancel()
			<-done
		}()

		// The watch registers asynchronously; write until it is heard.
		ready := false
		for i := 0; i < 20 && !ready; i++ {
			So(os.WriteFile(path, []byte(squadCSV), 0o600), ShouldBeNil)
			ready = awaitChange(changes)
		}
		So(ready, ShouldBeTrue)
		drain(changes)

		Convey("When the file is replaced by rename several times", func() {
			heard := 0
			for i := 0; i < 3; i++ {
				So(replaceFile(path, squadCSV+"Cat Moss,1:50.0\n"), ShouldBeNil)
				if awaitChange(changes) {
					heard++
				}
				drain(changes)
			}

			Convey("Then every replacement should be reported", func() {
				So(heard, ShouldEqual, 3)
			})

			Convey("Then a later in-place write should still be reported", func() {
				So(os.WriteFile(path, []byte(squadCSV), 0o600), ShouldBeNil)
				So(awaitChange(changes), ShouldBeTrue)
			})
		})

		Convey("When a sibling file changes", func() {
			So(os.WriteFile(filepath.Join(dir, "other.csv"), []byte("x"), 0o600), ShouldBeNil)

			Convey("Then nothing should be reported", func() {
				So(awaitChange(changes), ShouldBeFalse)
			})
		})
	})

	Convey("Given a file source without a path", t, func() {
		err := sheet.NewFileSource("").Watch(context.Background(), func() {})
		So(errors.Is(err, sheet.ErrNoLocation), ShouldBeTrue)
	})
}
