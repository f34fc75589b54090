package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/sushant-115/infinitygrid/config"
	"github.com/sushant-115/infinitygrid/core/datasource"
	"github.com/sushant-115/infinitygrid/core/scroller"
	"github.com/sushant-115/infinitygrid/core/viewport"
	"github.com/sushant-115/infinitygrid/internal/host"
	"github.com/sushant-115/infinitygrid/internal/surface"
)

var (
	configPath     = flag.String("config", "", "Path to the YAML configuration file")
	viewportHeight = flag.Float64("viewport-height", 400, "Height of the simulated visible area")
	rowHeight      = flag.Float64("row-height", 20, "Height of one row")
	maxHeight      = flag.Float64("max-height", 1_533_917, "Largest surface height the simulated platform renders (0 = unlimited)")
	showEvents     = flag.Bool("events", true, "Print data source events as they happen")
	historyFile    = flag.String("history", "/tmp/infinitygrid_cli.history", "Readline history file")
)

const waitTimeout = 30 * time.Second

type session struct {
	out      io.Writer
	host     *host.Host
	surface  *surface.Sim
	calc     *viewport.Calculator
	source   *datasource.Coordinator[string]
	scroller *scroller.Scroller[string]
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *configPath == "" {
		// Keep the prompt clean unless a config says otherwise.
		cfg.Logger.Level = "warn"
	}

	h, err := host.Setup(cfg)
	if err != nil {
		log.Fatalf("failed to set up host: %v", err)
	}
	defer h.Close(context.Background())

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "infinitygrid> ",
		HistoryFile:     *historyFile,
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		h.Logger.Fatal("failed to start readline", zap.Error(err))
	}
	defer rl.Close()

	s, err := newSession(h, rl.Stdout())
	if err != nil {
		h.Logger.Fatal("failed to create session", zap.Error(err))
	}
	defer func() { s.scroller.Close() }()

	fmt.Fprintln(rl.Stdout(), "infinitygrid CLI. Type 'help' for commands.")
	s.scroller.Start()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				break
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if quit := s.exec(strings.Fields(line)); quit {
			break
		}
	}
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("scroll"),
		readline.PcItem("down"),
		readline.PcItem("up"),
		readline.PcItem("top"),
		readline.PcItem("bottom"),
		readline.PcItem("resize"),
		readline.PcItem("show"),
		readline.PcItem("select"),
		readline.PcItem("wait"),
		readline.PcItem("clear"),
		readline.PcItem("stats"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

func newSession(h *host.Host, out io.Writer) (*session, error) {
	p, err := h.Provider(context.Background())
	if err != nil {
		return nil, err
	}
	s := &session{
		out:     out,
		host:    h,
		surface: surface.NewSim(*viewportHeight, *rowHeight, *maxHeight),
	}
	s.calc = viewport.NewCalculator(s.surface, h.Config.Viewport, h.Logger)

	var onChange func(datasource.Event)
	if *showEvents {
		onChange = s.printEvent
	}
	if s.source, err = h.DataSource(p, onChange); err != nil {
		return nil, err
	}
	s.scroller = scroller.New[string](s.source, s.calc, h.Config.Scroller, h.Logger)
	return s, nil
}

func (s *session) printEvent(ev datasource.Event) {
	switch ev.Kind {
	case datasource.EventFailed:
		fmt.Fprintf(s.out, "[%s] %s: %v\n", ev.Kind, ev.Range, ev.Err)
	case datasource.EventMerged:
		fmt.Fprintf(s.out, "[%s] %s stale=%t\n", ev.Kind, ev.Range, ev.Stale)
	case datasource.EventReady:
		fmt.Fprintf(s.out, "[%s] %s cacheHit=%t\n", ev.Kind, ev.Range, ev.CacheHit)
	default:
		fmt.Fprintf(s.out, "[%s] %s\n", ev.Kind, ev.Range)
	}
}

// exec runs one command and reports whether the session should end.
func (s *session) exec(args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "scroll":
		if offset, ok := s.floatArg(args, 1); ok {
			s.surface.ScrollTo(offset)
			s.scroller.OnScroll()
		}
	case "down", "up":
		rows := 1.0
		if len(args) > 1 {
			var ok bool
			if rows, ok = s.floatArg(args, 1); !ok {
				return false
			}
		}
		if args[0] == "up" {
			rows = -rows
		}
		g := s.scroller.Refresh()
		s.surface.ScrollBy(rows * g.EffectiveRowHeight())
		s.scroller.OnScroll()
	case "top":
		s.surface.ScrollTo(0)
		s.scroller.OnScroll()
	case "bottom":
		s.scroller.Refresh()
		s.surface.ScrollToBottom()
		s.scroller.OnScroll()
	case "resize":
		if h, ok := s.floatArg(args, 1); ok {
			s.surface.Resize(h)
			s.scroller.OnResize()
		}
	case "show":
		s.show()
	case "select":
		if pos, ok := s.floatArg(args, 1); ok {
			s.scroller.Select(int(pos))
		}
	case "wait":
		s.wait()
	case "clear":
		s.scroller.Close()
		s.source.ClearAll()
		s.calc.Invalidate()
		s.scroller = scroller.New[string](s.source, s.calc, s.host.Config.Scroller, s.host.Logger)
		s.surface.ScrollTo(0)
		s.scroller.Start()
	case "stats":
		s.stats()
	case "help":
		s.help()
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(s.out, "unknown command %q, try 'help'\n", args[0])
	}
	return false
}

func (s *session) floatArg(args []string, i int) (float64, bool) {
	if len(args) <= i {
		fmt.Fprintf(s.out, "%s needs an argument\n", args[0])
		return 0, false
	}
	v, err := strconv.ParseFloat(args[i], 64)
	if err != nil {
		fmt.Fprintf(s.out, "bad number %q\n", args[i])
		return 0, false
	}
	return v, true
}

func (s *session) wait() {
	s.scroller.Flush()
	deadline := time.Now().Add(waitTimeout)
	for !s.scroller.Ready() {
		if err := s.source.LastError(); err != nil && s.source.State() == datasource.StateIdle {
			fmt.Fprintf(s.out, "fetch failed: %v\n", err)
			return
		}
		if time.Now().After(deadline) {
			fmt.Fprintln(s.out, "timed out waiting for the window")
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	vp, _ := s.source.Viewport()
	fmt.Fprintf(s.out, "ready: %s\n", vp)
}

func (s *session) show() {
	if !s.scroller.Ready() {
		fmt.Fprintln(s.out, "(loading)")
	}
	n := 0
	for row := range s.scroller.Rows() {
		mark := " "
		if s.scroller.IsSelected(row.Position) {
			mark = ">"
		}
		value := row.Value
		if !row.Present {
			value = "..."
		}
		fmt.Fprintf(s.out, "%s %8d  %s\n", mark, row.Position, value)
		n++
	}
	if n == 0 {
		fmt.Fprintln(s.out, "(no rows applied yet)")
	}
}

func (s *session) stats() {
	g := s.scroller.Refresh()
	vp, hasVP := s.source.Viewport()
	pending, hasPending := s.source.Pending()

	fmt.Fprintf(s.out, "total length:   %d\n", s.source.TotalLength())
	fmt.Fprintf(s.out, "fetched rows:   %d\n", s.source.PresentCount())
	fmt.Fprintf(s.out, "state:          %s (ready=%t)\n", s.source.State(), s.scroller.Ready())
	if hasVP {
		fmt.Fprintf(s.out, "applied window: %s\n", vp)
	}
	if hasPending {
		fmt.Fprintf(s.out, "pending window: %s\n", pending)
	}
	fmt.Fprintf(s.out, "target window:  %s\n", s.scroller.Window())
	fmt.Fprintf(s.out, "scroll offset:  %.1f of %.1f\n", s.surface.ScrollOffset(), s.scroller.SurfaceHeight())
	fmt.Fprintf(s.out, "ideal height:   %.0f\n", g.IdealHeight)
	fmt.Fprintf(s.out, "clamped:        %t (scale %.6f)\n", g.NeedsClampCompensation, g.ScaleFactor)
	if err := s.source.LastError(); err != nil {
		fmt.Fprintf(s.out, "last error:     %v\n", err)
	}
}

func (s *session) help() {
	fmt.Fprint(s.out, `Commands:
  scroll <offset>   scroll to an absolute offset
  down [n], up [n]  scroll by n rows (default 1)
  top, bottom       jump to either end
  resize <height>   change the visible height
  show              print the applied window
  select <pos>      select a row
  wait              flush the debounce and wait for the window
  clear             drop every fetched row and reload
  stats             data source and geometry state
  quit              leave
`)
}
