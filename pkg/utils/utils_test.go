package utils

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

func TestSetLevelReachesDerivedLoggers(t *testing.T) {
	defer SetLevel(zapcore.DebugLevel)

	named := GetLogger().Named("camera")
	SetLevel(zapcore.WarnLevel)
	if named.Desugar().Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("derived logger still logs info")
	}
	if !named.Desugar().Core().Enabled(zapcore.ErrorLevel) {
		t.Fatal("derived logger drops errors")
	}
}

func TestListenAndServeStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ListenAndServe(ctx, http.NotFoundHandler(), 0)
	}()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
