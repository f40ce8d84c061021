package util

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type SafePrinter struct {
	mu        sync.Mutex
	suspended bool
	out       io.Writer
}

// Default is the shared SafePrinter used across the application to
// ensure all packages serialize their output to the terminal and avoid
// interleaving between goroutines.
var Default = &SafePrinter{}

// NewSafePrinter returns a printer writing to w.
func NewSafePrinter(w io.Writer) *SafePrinter {
	return &SafePrinter{out: w}
}

func (s *SafePrinter) writer() io.Writer {
	if s.out != nil {
		return s.out
	}
	return os.Stdout
}

// Writer exposes the printer's destination for libraries that take an
// io.Writer, such as progress bars.
func (s *SafePrinter) Writer() io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.suspended {
			return len(p), nil
		}
		return s.writer().Write(p)
	})
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func (s *SafePrinter) Print(a ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended {
		return
	}
	fmt.Fprint(s.writer(), a...)
}

func (s *SafePrinter) Printf(format string, a ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended {
		return
	}
	fmt.Fprintf(s.writer(), format, a...)
}

func (s *SafePrinter) Println(a ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended {
		return
	}
	fmt.Fprintln(s.writer(), a...)
}

// ClearLine clears the current line and returns the cursor to the beginning.
func (s *SafePrinter) ClearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended {
		return
	}
	fmt.Fprint(s.writer(), "\r\x1b[K")
}

// Suspend silences all subsequent prints until Resume is called.
// Useful to temporarily hide status messages while interactive prompts
// take over the terminal.
func (s *SafePrinter) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = true
}

// Resume re-enables printing after Suspend.
func (s *SafePrinter) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = false
}

func (s *SafePrinter) IsSuspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspended
}
