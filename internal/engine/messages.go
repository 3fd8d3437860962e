package engine

import (
	"fmt"
	"time"

	"github.com/lcrostarosa/vigil/internal/scheduler"
	"github.com/lcrostarosa/vigil/internal/window"
)

const warningTitle = "Safety check"

func warningBody(w window.Window, delay time.Duration) string {
	return fmt.Sprintf("No activity was seen during your %s window. Confirm you are safe within %s or your contact will be notified.",
		w, scheduler.FormatDuration(delay))
}
