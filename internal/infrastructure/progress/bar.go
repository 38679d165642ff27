package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"WikiTracker/internal/ports"
)

// Bar renders a terminal progress bar that advances once per processed row.
type Bar struct {
	bar      *progressbar.ProgressBar
	advanced int
}

var _ ports.Progress = (*Bar)(nil)

// NewBar builds a colored bar with the given label and total row count.
func NewBar(w io.Writer, label string, total int) *Bar {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%s[reset]", label)),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Bar{bar: bar}
}

// Advance moves the bar by one row.
func (b *Bar) Advance() {
	b.advanced++
	_ = b.bar.Add(1)
}

// Done finishes the bar so the terminal line is released.
func (b *Bar) Done() {
	_ = b.bar.Finish()
}

// Nop ignores progress; used when no terminal is attached.
type Nop struct{}

var _ ports.Progress = Nop{}

// Advance does nothing.
func (Nop) Advance() {}

// Done does nothing.
func (Nop) Done() {}
