package device

import (
	"context"
	"fmt"
	"io"
)

// Notifier emits the audible/visible "starting" signal.
type Notifier interface {
	Signal(ctx context.Context, message string) error
}

// BellNotifier writes a terminal bell and the message to w.
type BellNotifier struct {
	W io.Writer
}

// Signal implements Notifier.
func (b BellNotifier) Signal(_ context.Context, message string) error {
	_, err := fmt.Fprintf(b.W, "\a%s\n", message)
	return err
}
