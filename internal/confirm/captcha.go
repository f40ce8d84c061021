package confirm

import (
	"bufio"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
)

// SkipCaptchaEnv set to "false" turns the typed-token check off.
const SkipCaptchaEnv = "NAS_TIDY_FORCE_CAPTCHA"

// Captcha requires the user to type back a short random token. It guards
// bulk deletions where a reflexive "y" is too easy.
type Captcha struct {
	In       io.Reader
	Out      io.Writer
	Attempts int
	// token is overridden in tests.
	token func() (string, error)
}

func NewCaptcha() *Captcha {
	return &Captcha{In: os.Stdin, Out: os.Stdout, Attempts: 3}
}

func (c *Captcha) Confirm(ctx context.Context, p Prompt) (bool, error) {
	if len(p.Items) == 0 {
		return false, nil
	}
	Render(c.Out, p)
	if envDisabled(SkipCaptchaEnv) {
		fmt.Fprintf(c.Out, "ℹ️  %s=false detected, skipping captcha\n", SkipCaptchaEnv)
		return true, nil
	}
	if f, ok := c.In.(*os.File); ok && !isTerminal(f) {
		// a piped stdin cannot answer a token; refuse rather than guess
		fmt.Fprintln(c.Out, "⚠️  Non-interactive stdin detected, use --yes to confirm")
		return false, nil
	}

	gen := c.token
	if gen == nil {
		gen = func() (string, error) { return genToken(6) }
	}
	token, err := gen()
	if err != nil {
		return false, fmt.Errorf("failed to generate token: %w", err)
	}
	attempts := c.Attempts
	if attempts <= 0 {
		attempts = 3
	}

	reader := bufio.NewReader(c.In)
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		fmt.Fprintf(c.Out, "Type the token to confirm [%s]: ", token)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				break
			}
			return false, fmt.Errorf("failed to read input: %w", err)
		}
		if strings.TrimSpace(line) == token {
			fmt.Fprintln(c.Out, "✅ Confirmation accepted")
			return true, nil
		}
		fmt.Fprintf(c.Out, "❌ Token mismatch (%d/%d).\n", i+1, attempts)
	}
	fmt.Fprintln(c.Out, "⚠️  Confirmation failed, nothing deleted")
	return false, nil
}

// genToken returns an uppercase alphanumeric token of length n.
func genToken(n int) (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	out := make([]byte, n)
	max := big.NewInt(int64(len(charset)))
	for i := 0; i < n; i++ {
		r, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = charset[r.Int64()]
	}
	return string(out), nil
}
