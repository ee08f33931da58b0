package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/matzehuels/graphpatch/pkg/observability"
	"github.com/matzehuels/graphpatch/pkg/pipeline"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates on stderr while the base graph loads. It follows the
// loader through [observability.LoadHooks], so the line names the source
// being fetched and failed sources are reported as they fall through.
// Events are forwarded to next when set.
type Spinner struct {
	out     io.Writer
	next    observability.LoadHooks
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped chan struct{}

	mu      sync.Mutex
	message string
	width   int // widest line drawn, for clearing
	failed  []string
}

// newSpinner creates a new spinner with the given message.
func newSpinner(message string) *Spinner {
	return newSpinnerWithContext(context.Background(), message)
}

// newSpinnerWithContext creates a spinner that will stop when the context is cancelled.
func newSpinnerWithContext(ctx context.Context, message string) *Spinner {
	spinnerCtx, cancel := context.WithCancel(ctx)
	return &Spinner{
		message: message,
		out:     os.Stderr,
		ctx:     spinnerCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for i := 0; ; i++ {
			select {
			case <-s.ctx.Done():
				s.clearLine()
				return
			case <-s.done:
				return
			case <-ticker.C:
				s.draw(spinnerFrames[i%len(spinnerFrames)])
			}
		}
	}()
}

func (s *Spinner) draw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	fmt.Fprintf(s.out, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(s.message))
	s.width = max(s.width, len(s.message)+2)
}

// SetMessage replaces the text shown next to the spinner.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// OnLoadStart shows which source is being fetched.
func (s *Spinner) OnLoadStart(ctx context.Context, source string) {
	s.SetMessage(fmt.Sprintf("Loading %s...", source))
	if s.next != nil {
		s.next.OnLoadStart(ctx, source)
	}
}

// OnLoadComplete remembers failed sources; the loader moves on to the next.
func (s *Spinner) OnLoadComplete(ctx context.Context, source string, nodes, segments int, d time.Duration, err error) {
	if s.next != nil {
		s.next.OnLoadComplete(ctx, source, nodes, segments, d, err)
	}
	if err == nil {
		return
	}
	s.mu.Lock()
	s.failed = append(s.failed, source)
	s.mu.Unlock()
	s.SetMessage(fmt.Sprintf("%s failed, trying next source...", source))
}

var _ observability.LoadHooks = (*Spinner)(nil)

// Stop stops the spinner and clears the line.
func (s *Spinner) Stop() {
	s.cancel()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	<-s.stopped
	s.clearLine()
}

func (s *Spinner) clearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
}

// clear blanks the current line. Callers hold mu.
func (s *Spinner) clear() {
	if s.width > 0 {
		fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", s.width+2))
	}
}

// StopWithWorkspace stops the spinner and summarizes what was loaded.
func (s *Spinner) StopWithWorkspace(ws *pipeline.Workspace) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, src := range s.failed {
		fmt.Fprintf(s.out, "%s %s\n", styleIconWarning.Render(iconWarning), StyleWarning.Render("Source unavailable: "+src))
	}
	fmt.Fprintf(s.out, "%s %s\n", styleIconSuccess.Render(iconSuccess), loadSummary(ws))
}

// StopWithSuccess stops the spinner and shows a success message.
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	fmt.Fprintf(s.out, "%s %s\n", styleIconSuccess.Render(iconSuccess), message)
}

// StopWithError stops the spinner and shows an error message.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	fmt.Fprintf(s.out, "%s %s\n", styleIconError.Render(iconError), StyleError.Render(message))
}

// Cancelled returns true if the spinner was stopped due to context cancellation.
func (s *Spinner) Cancelled() bool {
	return s.ctx.Err() != nil
}

// loadSummary describes a freshly opened workspace on one line.
func loadSummary(ws *pipeline.Workspace) string {
	return fmt.Sprintf("Loaded %s  %s", ws.Source, statsLine(ws.Stats))
}
