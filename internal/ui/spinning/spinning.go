// Package spinning provides a friendly spinning symbol, with the elapsed time,
// to display while the engine is thinking.
package spinning

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"k8s.io/klog/v2"
)

// Spinning is a running spinner, created with New and stopped with Done.
type Spinning struct {
	wg     sync.WaitGroup
	cancel func()
	theme  []rune
	out    io.Writer
	start  time.Time
}

var (
	ThemeAscii = []rune("|/-\\")
	ThemeMoon  = []rune("🌑🌒🌓🌔🌕🌖🌗🌘")
	ThemeDots  = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

	// Theme used by New. It defaults to ThemeDots, but it can be set to anything else.
	Theme = ThemeDots

	// Period between updates of the spinner.
	Period = 200 * time.Millisecond
)

// SafeInterrupt will capture SigInt (Ctrl+C) and SigTerm and call the provided onInterrupt.
// If the program haven't exited after gracePeriod, it will call Reset to reset the terminal
// and exit.
func SafeInterrupt(onInterrupt func(), gracePeriod time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigChan
		fmt.Println()
		klog.Errorf("Got interrupted (signal %q), shutting down... (%s)", s, gracePeriod)
		if onInterrupt != nil {
			go onInterrupt()
		}
		time.Sleep(gracePeriod)
		Reset()
		klog.Fatalf("Graceful shutting down %s period expired, exiting.", gracePeriod)
	}()
}

// Reset terminal: make cursor visible, restore default terminal colors.
func Reset() {
	fmt.Print("\033[?25h\033[39;49;0m\n")
}

// New starts a spinner on stdout, prefixed by msg, that runs on a separate goroutine.
// It stops when Spinning.Done is called or ctx is cancelled.
func New(ctx context.Context, msg string) *Spinning {
	return NewWithWriter(ctx, os.Stdout, msg)
}

// NewWithWriter is like New, but writes to out.
func NewWithWriter(ctx context.Context, out io.Writer, msg string) *Spinning {
	s := &Spinning{theme: Theme, out: out, start: time.Now()}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(Period)
		defer ticker.Stop()
		_, _ = fmt.Fprint(out, "\033[?25l")
		defer func() { _, _ = fmt.Fprint(out, "\r\033[K\033[?25h") }()
		for idx := 0; ; idx = (idx + 1) % len(s.theme) {
			_, _ = fmt.Fprintf(out, "\r\033[K%s %c %.1fs", msg, s.theme[idx], time.Since(s.start).Seconds())
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return s
}

// Done stops the spinner, clears its line and returns the elapsed time since it started.
// It is safe to call it more than once.
func (s *Spinning) Done() time.Duration {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.wg.Wait()
	return time.Since(s.start)
}
