package progress

import (
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Reporter tracks a bounded unit of work such as embedding chunks.
type Reporter interface {
	Start(total int)
	Set(done int)
	Finish()
}

// Bar renders a Reporter as a terminal progress bar.
type Bar struct {
	out  io.Writer
	desc string
	bar  *progressbar.ProgressBar
}

// New returns a progress bar reporter, or a no-op reporter when disabled.
func New(enabled bool, out io.Writer, desc string) Reporter {
	if !enabled {
		return Nop{}
	}
	if out == nil {
		out = os.Stderr
	}
	return &Bar{out: out, desc: desc}
}

func (p *Bar) Start(total int) {
	if total <= 0 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(p.desc),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(theme),
	)
}

func (p *Bar) Set(done int) {
	if p.bar == nil {
		return
	}
	_ = p.bar.Set(done)
}

func (p *Bar) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}

// Nop discards progress.
type Nop struct{}

func (Nop) Start(int) {}
func (Nop) Set(int)   {}
func (Nop) Finish()   {}

var theme = progressbar.Theme{
	Saucer:        "=",
	SaucerHead:    ">",
	SaucerPadding: " ",
	BarStart:      "[",
	BarEnd:        "]",
}

// Enabled reports whether stderr is a terminal.
func Enabled() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// StartSpinner shows an indeterminate spinner until the returned func is called.
func StartSpinner(enabled bool, out io.Writer, desc string) func() {
	if !enabled {
		return func() {}
	}
	if out == nil {
		out = os.Stderr
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSpinnerType(9),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWidth(10),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(theme),
	)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = bar.Add(1)
			case <-done:
				_ = bar.Finish()
				return
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}
