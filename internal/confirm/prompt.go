package confirm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/manifoldco/promptui"
)

// Interactive renders the prompt and asks a y/N question with promptui.
type Interactive struct {
	In  io.ReadCloser
	Out io.WriteCloser
}

func NewInteractive() *Interactive {
	return &Interactive{In: os.Stdin, Out: os.Stdout}
}

func (c *Interactive) Confirm(ctx context.Context, p Prompt) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if len(p.Items) == 0 {
		return false, nil
	}
	Render(c.Out, p)
	q := promptui.Prompt{
		Label:     fmt.Sprintf("Proceed with %d item(s)", len(p.Items)),
		IsConfirm: true,
		Stdin:     c.In,
		Stdout:    c.Out,
	}
	_, err := q.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return true, nil
}
