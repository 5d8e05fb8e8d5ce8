package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/syt-tools/syt/internal/checkout"
	"github.com/syt-tools/syt/internal/contentsync"
	"github.com/syt-tools/syt/internal/entity"
	syterrors "github.com/syt-tools/syt/internal/errors"
	"github.com/syt-tools/syt/internal/util"
)

var (
	accentColor  = lipgloss.Color("#A78BFA") // violet
	successColor = lipgloss.Color("#10B981") // green
	warningColor = lipgloss.Color("#F59E0B") // amber
	errorColor   = lipgloss.Color("#F87171") // red
	mutedColor   = lipgloss.Color("#9CA3AF") // gray
)

const separatorWidth = 80

type palette struct {
	progress lipgloss.Style
	success  lipgloss.Style
	warning  lipgloss.Style
	failure  lipgloss.Style
	label    lipgloss.Style
	rule     lipgloss.Style
}

// printer writes human-facing output. It implements checkout.Reporter.
type printer struct {
	out   io.Writer
	width int
	style palette
}

var _ checkout.Reporter = (*printer)(nil)

// newPrinter creates a printer for w. colorMode is "auto", "always" or
// "never"; auto colors only terminals.
func newPrinter(w io.Writer, colorMode string) *printer {
	p := &printer{out: w}

	tty := false
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		tty = true
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			p.width = width
		}
	}

	r := lipgloss.NewRenderer(w)
	switch {
	case colorMode == "always":
		r.SetColorProfile(termenv.ANSI256)
	case colorMode == "never", !tty:
		r.SetColorProfile(termenv.Ascii)
	}
	p.style = palette{
		progress: r.NewStyle().Foreground(mutedColor),
		success:  r.NewStyle().Foreground(successColor).Bold(true),
		warning:  r.NewStyle().Foreground(warningColor),
		failure:  r.NewStyle().Foreground(errorColor).Bold(true),
		label:    r.NewStyle().Foreground(accentColor),
		rule:     r.NewStyle().Foreground(mutedColor),
	}
	return p
}

func (p *printer) line(s string) {
	fmt.Fprintln(p.out, util.FitWidth(s, p.width))
}

// Progress implements checkout.Reporter.
func (p *printer) Progress(msg string) {
	p.line(p.style.progress.Render(msg))
}

// Warn implements checkout.Reporter.
func (p *printer) Warn(w syterrors.Warning) {
	p.line(p.style.warning.Render(w.String()))
}

func (p *printer) Success(msg string) {
	p.line(p.style.success.Render(msg))
}

func (p *printer) Error(err error) {
	fmt.Fprintln(p.out, p.style.failure.Render("ERROR: "+err.Error()))
}

// Synced lists the files a check-out materialized.
func (p *printer) Synced(files []contentsync.SyncedFile) {
	if len(files) == 0 {
		return
	}
	p.line("Checked out files:")
	for _, f := range files {
		p.line("  - " + f.Path)
	}
}

// CheckedOut renders the show listing.
func (p *printer) CheckedOut(entities []*entity.Entity) {
	if len(entities) == 0 {
		p.line("No checked out entities found.")
		return
	}
	rule := p.style.rule.Render(strings.Repeat("-", separatorWidth))
	for _, e := range entities {
		p.line(rule)
		p.line(fmt.Sprintf("%s %s (%s)", p.style.label.Render(e.TypeName()+":"), e.Name, e.ID))
		p.line(fmt.Sprintf("%s %s (%s)", p.style.label.Render("Checked out by:"),
			e.Annotations.Get(entity.KeyLockerName), e.Annotations.Get(entity.KeyLockerID)))
		p.line(fmt.Sprintf("%s %s", p.style.label.Render("Checked out on:"), e.LockedAtRaw()))
	}
}
