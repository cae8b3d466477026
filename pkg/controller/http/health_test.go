package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	controller "github.com/m-mizutani/tagrelease/pkg/controller/http"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/infra/memory"
)

func TestHealthEndpoint(t *testing.T) {
	server, err := controller.NewServer(
		context.Background(),
		&mockWebhookUseCase{},
		controller.WithAddr("localhost:0"),
		controller.WithWebhookSecret("test-secret"),
	)
	gt.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.Handler.ServeHTTP(w, req)
	gt.Value(t, w.Code).Equal(http.StatusOK)

	var status model.HealthStatus
	gt.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	gt.Value(t, status.Status).Equal("healthy")
	gt.Value(t, status.Service).Equal("tagrelease")
	gt.Value(t, status.Version).NotEqual("")
}

func TestRunEndpoint(t *testing.T) {
	ctx := context.Background()
	runs := memory.New()
	run := model.NewRun("run-1", model.Trigger{
		Repository: model.Repository{Owner: "acme", Name: "fastlib"},
		Tag:        "v0.1.0",
		Source:     "webhook",
	}, time.Now())
	gt.NoError(t, runs.PutRun(ctx, run))

	server, err := controller.NewServer(ctx, &mockWebhookUseCase{},
		controller.WithWebhookSecret("test-secret"),
		controller.WithRunRepository(runs),
	)
	gt.NoError(t, err)

	t.Run("existing run", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/run-1", nil))
		gt.Value(t, w.Code).Equal(http.StatusOK)

		var got model.Run
		gt.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		gt.Value(t, got.ID).Equal("run-1")
		gt.Value(t, got.State).Equal(model.StateTriggered)
		gt.Value(t, got.Trigger.Tag).Equal(model.Tag("v0.1.0"))
	})

	t.Run("missing run", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/nope", nil))
		gt.Value(t, w.Code).Equal(http.StatusNotFound)
	})
}
