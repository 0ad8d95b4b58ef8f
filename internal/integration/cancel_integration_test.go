// internal/integration/cancel_integration_test.go
package integration

import (
	"context"
	"io"
	"testing"

	"fluprep/internal/app"
)

func TestCanceledBeforeStart_Exit130(t *testing.T) {
	_, args := tree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	code := app.RunContext(ctx, append(args, "-r", "3y,6y"), io.Discard, io.Discard)
	if code != 130 {
		t.Fatalf("expected exit 130 on cancel, got %d", code)
	}
}
