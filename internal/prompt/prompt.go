// Package prompt reads answers, secrets and yes/no decisions from a terminal
// or from plain line-oriented input.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrInterrupted is returned when the user aborts a prompt.
var ErrInterrupted = errors.New("interrupted")

type lineResult struct {
	line string
	err  error
}

// Prompter serializes all reads from one input so buffered bytes are never
// split between readers.
type Prompter struct {
	in      *bufio.Reader
	file    *os.File
	out     io.Writer
	tty     bool
	pending chan lineResult
}

// New returns a Prompter. Raw terminal features (hidden input, the
// arrow-key selector) are used only when in and out are both terminals.
func New(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok {
		p.file = f
		p.tty = term.IsTerminal(int(f.Fd())) && isTerminal(out)
	}
	return p
}

// Out is where prompts are written.
func (p *Prompter) Out() io.Writer {
	return p.out
}

// Interactive reports whether the prompter drives a real terminal.
func (p *Prompter) Interactive() bool {
	return p.tty
}

// ReadLine prints label and returns the next line without its trailing
// newline or surrounding space. io.EOF is returned once input ends. A
// cancelled context yields ErrInterrupted; the read already in flight is
// handed to the next ReadLine call.
func (p *Prompter) ReadLine(ctx context.Context, label string) (string, error) {
	if label != "" {
		fmt.Fprint(p.out, label)
	}

	if p.pending == nil {
		ch := make(chan lineResult, 1)
		p.pending = ch
		go func() {
			line, err := p.in.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
	}

	select {
	case <-ctx.Done():
		return "", ErrInterrupted
	case res := <-p.pending:
		p.pending = nil
		line := strings.TrimSpace(res.line)
		if res.err != nil {
			if errors.Is(res.err, io.EOF) {
				if line != "" {
					return line, nil
				}
				return "", io.EOF
			}
			return "", fmt.Errorf("read input: %w", res.err)
		}
		return line, nil
	}
}

// Ask reads a free-form answer. End of input counts as an interruption.
func (p *Prompter) Ask(ctx context.Context, label string) (string, error) {
	line, err := p.ReadLine(ctx, label)
	if errors.Is(err, io.EOF) {
		return "", ErrInterrupted
	}
	return line, err
}

// AskSecret reads an answer without echoing it on a terminal.
func (p *Prompter) AskSecret(ctx context.Context, label string) (string, error) {
	if !p.tty {
		return p.Ask(ctx, label)
	}

	fmt.Fprint(p.out, label)
	ch := make(chan lineResult, 1)
	go func() {
		b, err := term.ReadPassword(int(p.file.Fd()))
		ch <- lineResult{line: string(b), err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", ErrInterrupted
	case res := <-ch:
		fmt.Fprintln(p.out)
		if res.err != nil {
			return "", fmt.Errorf("read secret: %w", res.err)
		}
		return strings.TrimSpace(res.line), nil
	}
}

// Confirm asks a Yes/No question. On a terminal the answer is picked with
// the arrow keys; otherwise a y/n line is read, and an empty line takes
// defaultYes.
func (p *Prompter) Confirm(ctx context.Context, question string, defaultYes bool) (bool, error) {
	if p.tty {
		return p.confirmSelect(ctx, question, defaultYes)
	}

	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}
	for {
		line, err := p.ReadLine(ctx, fmt.Sprintf("%s %s ", question, hint))
		if errors.Is(err, io.EOF) {
			return false, ErrInterrupted
		}
		if err != nil {
			return false, err
		}
		if answer, ok := parseYesNo(line, defaultYes); ok {
			return answer, nil
		}
		fmt.Fprintln(p.out, "Please answer yes or no.")
	}
}

func parseYesNo(s string, defaultYes bool) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return defaultYes, true
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	}
	return false, false
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
