package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"github.com/sushant-115/infinitygrid/config"
	"github.com/sushant-115/infinitygrid/core/datasource"
	"github.com/sushant-115/infinitygrid/core/scroller"
	"github.com/sushant-115/infinitygrid/core/span"
	"github.com/sushant-115/infinitygrid/core/viewport"
	"github.com/sushant-115/infinitygrid/internal/host"
	"github.com/sushant-115/infinitygrid/internal/surface"
)

var (
	configPath = flag.String("config", "", "Path to the YAML configuration file")
	maxHeight  = flag.Float64("max-height", 100_000, "Largest surface height, in lines, the simulated platform renders (0 = unlimited)")
	logFile    = flag.String("log", "/tmp/infinitygrid_tui.log", "Log file when no config is given; the terminal is busy")
)

// chrome is the number of lines taken by the header and the status bar.
const chrome = 2

type tui struct {
	screen   tcell.Screen
	surface  *surface.Sim
	source   *datasource.Coordinator[string]
	scroller *scroller.Scroller[string]
	logger   *zap.Logger
	// cursor is the highlighted line within the body.
	cursor int
	quit   bool
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *configPath == "" {
		cfg.Logger.OutputFile = *logFile
	}

	h, err := host.Setup(cfg)
	if err != nil {
		log.Fatalf("failed to set up host: %v", err)
	}
	defer h.Close(context.Background())

	p, err := h.Provider(context.Background())
	if err != nil {
		h.Logger.Fatal("failed to create provider", zap.Error(err))
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		h.Logger.Fatal("failed to create screen", zap.Error(err))
	}
	if err := screen.Init(); err != nil {
		h.Logger.Fatal("failed to initialize screen", zap.Error(err))
	}
	defer screen.Fini()
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorReset).Foreground(tcell.ColorReset))
	screen.HideCursor()

	_, height := screen.Size()
	// One row is one terminal line.
	sim := surface.NewSim(float64(max(height-chrome, 1)), 1, *maxHeight)

	refresh := make(chan struct{}, 1)
	src, err := h.DataSource(p, func(datasource.Event) {
		select {
		case refresh <- struct{}{}:
		default:
		}
	})
	if err != nil {
		h.Logger.Fatal("failed to create data source", zap.Error(err))
	}

	ui := newTUI(screen, sim, src, cfg, h.Logger)
	defer ui.scroller.Close()

	ui.scroller.Start()
	ui.run(refresh)
}

func newTUI(screen tcell.Screen, sim *surface.Sim, src *datasource.Coordinator[string], cfg config.Config, l *zap.Logger) *tui {
	calc := viewport.NewCalculator(sim, cfg.Viewport, l)
	return &tui{
		screen:   screen,
		surface:  sim,
		source:   src,
		scroller: scroller.New[string](src, calc, cfg.Scroller, l),
		logger:   l.Named("tui"),
	}
}

func (u *tui) run(refresh <-chan struct{}) {
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := u.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	// The debounce finishing doesn't produce an event, so redraw on a tick.
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	u.draw()
	for !u.quit {
		select {
		case ev := <-events:
			u.handle(ev)
		case <-refresh:
		case <-ticker.C:
		}
		u.draw()
	}
}

func (u *tui) bodyRows() int {
	_, h := u.screen.Size()
	return max(h-chrome, 1)
}

func (u *tui) handle(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		u.screen.Sync()
		u.surface.Resize(float64(u.bodyRows()))
		u.cursor = min(u.cursor, u.bodyRows()-1)
		u.scroller.OnResize()
	case *tcell.EventKey:
		u.handleKey(ev)
	}
}

func (u *tui) handleKey(ev *tcell.EventKey) {
	row := u.scroller.Refresh().EffectiveRowHeight()
	page := float64(u.bodyRows()) * row

	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		u.quit = true
		return
	case tcell.KeyUp:
		if u.cursor > 0 {
			u.cursor--
			return
		}
		u.surface.ScrollBy(-row)
	case tcell.KeyDown:
		if u.cursor < u.bodyRows()-1 {
			u.cursor++
			return
		}
		u.surface.ScrollBy(row)
	case tcell.KeyPgUp:
		u.surface.ScrollBy(-page)
	case tcell.KeyPgDn:
		u.surface.ScrollBy(page)
	case tcell.KeyHome:
		u.surface.ScrollTo(0)
	case tcell.KeyEnd:
		u.surface.ScrollToBottom()
	case tcell.KeyEnter:
		pos := u.topRow() + u.cursor
		u.scroller.Select(pos)
		u.logger.Debug("row selected", zap.Int("position", pos))
		return
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			u.quit = true
		case 'c':
			u.source.ClearAll()
			u.surface.ScrollTo(0)
			u.cursor = 0
			u.scroller.Start()
		}
		return
	default:
		return
	}
	u.scroller.OnScroll()
}

// topRow is the position drawn on the first body line. The body always shows
// rows of the window the scroller requests, so a bottom-aligned window puts
// its last row on the last body line.
func (u *tui) topRow() int {
	w := u.scroller.Window()
	if w.Len() == 0 {
		return 0
	}
	last := max(w.End-u.bodyRows()+1, w.Start)

	top := w.Start
	if eff := u.scroller.Refresh().EffectiveRowHeight(); eff > 0 {
		top = int(math.Floor(u.surface.ScrollOffset()/eff + 1e-9))
	}
	if top < w.Start {
		return last
	}
	return min(top, last)
}

func (u *tui) draw() {
	s := u.screen
	s.Clear()
	width, height := s.Size()
	rows := u.bodyRows()
	total := u.source.TotalLength()
	top := u.topRow()

	header := tcell.StyleDefault.Reverse(true)
	drawText(s, 0, 0, width, header, fmt.Sprintf(" infinitygrid  %d rows  [Up/Down PgUp/PgDn Home/End Enter=select c=clear q=quit]", total))

	base := tcell.StyleDefault
	for row := range u.source.IterateRange(span.New(top, top+rows-1)) {
		line := row.Position - top
		style := base
		if line == u.cursor {
			style = style.Bold(true)
		}
		if u.scroller.IsSelected(row.Position) {
			style = style.Reverse(true)
		}
		value := row.Value
		if !row.Present {
			value = "…"
			style = style.Dim(true)
		}
		drawText(s, 0, 1+line, width, style, fmt.Sprintf("%10d  %s", row.Position, value))
	}
	if total == 0 {
		drawText(s, 0, 1, width, base.Dim(true), "Loading…")
	}

	state := "ready"
	if !u.scroller.Ready() {
		state = "loading"
	}
	g := u.scroller.Refresh()
	status := fmt.Sprintf(" rows %d-%d of %d  %s  fetched %d", top, min(top+rows, total)-1, total, state, u.source.PresentCount())
	if g.NeedsClampCompensation {
		status += fmt.Sprintf("  clamped x%.4f", g.ScaleFactor)
	}
	if sel, ok := u.scroller.Selected(); ok {
		status += fmt.Sprintf("  selected %d", sel)
	}
	drawText(s, 0, height-1, width, header, status)
	s.Show()
}

// drawText writes text on line y, truncated to width cells.
func drawText(s tcell.Screen, x, y, width int, style tcell.Style, text string) {
	text = runewidth.Truncate(text, width-x, "…")
	col := x
	for _, r := range text {
		s.SetContent(col, y, r, nil, style)
		col += runewidth.RuneWidth(r)
	}
	for ; col < width && style != tcell.StyleDefault; col++ {
		s.SetContent(col, y, ' ', nil, style)
	}
}
