package errutil_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tagrelease/pkg/utils/errutil"
)

func TestHandle(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := ctxlog.With(context.Background(), logger)

	errutil.Handle(ctx, "pipeline failed", goerr.New("boom", goerr.V("tag", "v0.1.0")))

	out := buf.String()
	gt.String(t, out).Contains("pipeline failed")
	gt.String(t, out).Contains("boom")
	gt.String(t, out).Contains("tag=v0.1.0")
}

func TestHandle_NilError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := ctxlog.With(context.Background(), logger)

	errutil.Handle(ctx, "nothing", nil)
	gt.Value(t, buf.Len()).Equal(0)
}
