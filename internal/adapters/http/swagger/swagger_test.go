package swagger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/smartystreets/goconvey/convey"
)

func TestSwaggerHandler(t *testing.T) {
	convey.Convey("Given a mux with the docs routes", t, func() {
		mux := http.NewServeMux()
		Register(context.Background(), mux)

		convey.Convey("Then /openapi.yaml should serve the document", func() {
			req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
			convey.So(w.Body.Len(), convey.ShouldEqual, len(OpenAPI))
		})

		convey.Convey("Then /api-docs should serve the ReDoc page", func() {
			req := httptest.NewRequest(http.MethodGet, "/api-docs", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "text/html; charset=utf-8")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "redoc-container")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, redocURL)
		})
	})

	convey.Convey("Given a nil mux", t, func() {
		convey.So(func() { Register(context.Background(), nil) }, convey.ShouldPanic)
	})
}

func TestOpenAPIDocument(t *testing.T) {
	convey.Convey("Given the embedded document", t, func() {
		doc, err := yaml.Parser().Unmarshal(OpenAPI)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then every served route should be described", func() {
			paths, ok := doc["paths"].(map[string]any)
			convey.So(ok, convey.ShouldBeTrue)
			for _, p := range []string{
				"/healthz", "/stats", "/snapshot", "/athletes", "/athletes/{id}",
				"/sessions", "/sessions/{key}", "/leaderboard/{key}", "/refresh", "/rows",
			} {
				convey.So(paths, convey.ShouldContainKey, p)
			}
		})
	})
}
