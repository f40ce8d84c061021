// Package confirm asks a human before destructive actions run.
package confirm

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// Item is one path a destructive action would touch.
type Item struct {
	Path string
	Size int64
	Date time.Time
}

// Prompt is what the user is asked to approve.
type Prompt struct {
	Title string
	Items []Item
}

// Confirmer approves or rejects a Prompt. The action runs only on true.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// Func adapts a plain function to Confirmer.
type Func func(ctx context.Context, p Prompt) (bool, error)

func (f Func) Confirm(ctx context.Context, p Prompt) (bool, error) { return f(ctx, p) }

// AutoYes accepts every prompt after printing it. Used for --yes.
type AutoYes struct {
	Out io.Writer
}

func (a AutoYes) Confirm(ctx context.Context, p Prompt) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if a.Out != nil {
		Render(a.Out, p)
		fmt.Fprintln(a.Out, "--yes given, proceeding")
	}
	return true, nil
}

// Tiered routes prompts with at least Threshold items to Bulk and the rest
// to Single.
type Tiered struct {
	Threshold int
	Single    Confirmer
	Bulk      Confirmer
}

func (t Tiered) Confirm(ctx context.Context, p Prompt) (bool, error) {
	if t.Bulk != nil && t.Threshold > 0 && len(p.Items) >= t.Threshold {
		return t.Bulk.Confirm(ctx, p)
	}
	return t.Single.Confirm(ctx, p)
}

// Render prints the prompt title and one line per item.
func Render(w io.Writer, p Prompt) {
	var total int64
	for _, it := range p.Items {
		total += it.Size
	}
	color.New(color.FgYellow).Fprintf(w, "%s\n", p.Title)
	for _, it := range p.Items {
		fmt.Fprintf(w, "  %-60s %10s  %s\n", it.Path, humanize.IBytes(uint64(it.Size)), FormatDate(it.Date))
	}
	fmt.Fprintf(w, "%d item(s), %s\n", len(p.Items), humanize.IBytes(uint64(total)))
}

// FormatDate renders a timestamp for listings; the zero time prints as "-".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func envDisabled(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "false", "0", "no":
		return true
	}
	return false
}
