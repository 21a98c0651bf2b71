package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

const spinnerTick = 120 * time.Millisecond

// spinner shows that a transcription is still running. A disabled spinner
// only measures time.
type spinner struct {
	description string
	started     time.Time
	bar         *progressbar.ProgressBar

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	elapsed  time.Duration
}

func startSpinner(enabled bool, description string) *spinner {
	return startSpinnerTo(enabled, description, os.Stderr)
}

func startSpinnerTo(enabled bool, description string, w io.Writer) *spinner {
	s := &spinner{
		description: description,
		started:     time.Now(),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	if !enabled {
		close(s.done)
		return s
	}

	s.bar = progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	go s.run()
	return s
}

func (s *spinner) run() {
	defer close(s.done)
	ticker := time.NewTicker(spinnerTick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			_ = s.bar.Finish()
			return
		case <-ticker.C:
			s.bar.Describe(fmt.Sprintf("%s (%s)", s.description, time.Since(s.started).Truncate(time.Second)))
			_ = s.bar.Add(1)
		}
	}
}

// Stop clears the spinner and returns how long it ran. Later calls return the
// same duration.
func (s *spinner) Stop() time.Duration {
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.done
		s.elapsed = time.Since(s.started)
	})
	return s.elapsed
}
