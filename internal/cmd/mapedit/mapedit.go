// Package mapedit drives one drag gesture on a zone map against the
// placement service and prints the outcome.
package mapedit

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	entrypoint "github.com/louisbranch/soimap/internal/platform/cmd"
	"github.com/louisbranch/soimap/internal/platform/discovery"
	platformgrpc "github.com/louisbranch/soimap/internal/platform/grpc"
	"github.com/louisbranch/soimap/internal/platform/timeouts"
	"github.com/louisbranch/soimap/internal/services/placement/api/grpc/placementv1"
	"github.com/louisbranch/soimap/internal/services/placement/domain/drag"
	"github.com/louisbranch/soimap/internal/services/placement/domain/grid"
	"github.com/louisbranch/soimap/internal/services/placement/domain/layout"
	"github.com/louisbranch/soimap/internal/services/placement/mapview"
	"github.com/louisbranch/soimap/internal/services/placement/syncclient"
	"google.golang.org/grpc"
)

// Config holds mapedit command configuration.
type Config struct {
	Addr          string        `env:"SOIMAP_PLACEMENT_ADDR"`
	Zone          string        `env:"SOIMAP_MAPEDIT_ZONE"           envDefault:"soi6"`
	Width         float64       `env:"SOIMAP_MAPEDIT_WIDTH"          envDefault:"1024"`
	Height        float64       `env:"SOIMAP_MAPEDIT_HEIGHT"         envDefault:"400"`
	Mode          string        `env:"SOIMAP_MAPEDIT_MODE"`
	Locale        string        `env:"SOIMAP_MAPEDIT_LOCALE"         envDefault:"en-US"`
	CommitTimeout time.Duration `env:"SOIMAP_MAPEDIT_COMMIT_TIMEOUT" envDefault:"10s"`
	GraceWindow   time.Duration `env:"SOIMAP_MAPEDIT_GRACE_WINDOW"   envDefault:"500ms"`

	// Entity is the entity to drag. Empty prints the grid only.
	Entity string
	// Target is a "row,col" drop cell.
	Target string
	// DropX and DropY, when both set, drop at a raw container pixel instead.
	DropX float64
	DropY float64
	// Moves is how many intermediate pointer events precede the release.
	Moves int
	// History is how many journal entries to print after the grid.
	History int
	// HistoryFilter narrows the journal with an AIP-160 expression.
	HistoryFilter string
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Addr = discovery.OrLocalGRPCAddr(cfg.Addr, discovery.ServicePlacement)
	cfg.DropX, cfg.DropY = -1, -1
	cfg.Moves = 4

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "placement server address")
	fs.StringVar(&cfg.Zone, "zone", cfg.Zone, "zone to edit")
	fs.Float64Var(&cfg.Width, "width", cfg.Width, "container width in pixels")
	fs.Float64Var(&cfg.Height, "height", cfg.Height, "container height in pixels")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "layout mode: desktop or mobile (default: by width)")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "notification locale")
	fs.DurationVar(&cfg.CommitTimeout, "commit-timeout", cfg.CommitTimeout, "how long a commit may stay unresolved")
	fs.DurationVar(&cfg.GraceWindow, "grace-window", cfg.GraceWindow, "lock duration after a successful commit")
	fs.StringVar(&cfg.Entity, "entity", "", "entity id to drag")
	fs.StringVar(&cfg.Target, "to", "", "drop cell as row,col")
	fs.Float64Var(&cfg.DropX, "x", cfg.DropX, "drop at this container x instead of -to")
	fs.Float64Var(&cfg.DropY, "y", cfg.DropY, "drop at this container y instead of -to")
	fs.IntVar(&cfg.Moves, "moves", cfg.Moves, "intermediate pointer moves before release")
	fs.IntVar(&cfg.History, "history", 0, "print this many recent moves")
	fs.StringVar(&cfg.HistoryFilter, "history-filter", "", `journal filter, e.g. entity_id = "bar-a"`)
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.Entity != "" && cfg.Target == "" && (cfg.DropX < 0 || cfg.DropY < 0) {
		return Config{}, errors.New("-to or -x/-y is required with -entity")
	}
	if cfg.Target != "" {
		if _, err := ParseCell(cfg.Target); err != nil {
			return Config{}, err
		}
	}
	if cfg.HistoryFilter != "" && cfg.History <= 0 {
		return Config{}, errors.New("-history-filter requires -history")
	}
	return cfg, nil
}

// ParseCell parses "row,col".
func ParseCell(value string) (grid.Cell, error) {
	rowText, colText, ok := strings.Cut(strings.TrimSpace(value), ",")
	if !ok {
		return grid.Cell{}, fmt.Errorf("cell %q: want row,col", value)
	}
	row, err := strconv.Atoi(strings.TrimSpace(rowText))
	if err != nil {
		return grid.Cell{}, fmt.Errorf("cell %q: row: %w", value, err)
	}
	col, err := strconv.Atoi(strings.TrimSpace(colText))
	if err != nil {
		return grid.Cell{}, fmt.Errorf("cell %q: col: %w", value, err)
	}
	return grid.Cell{Row: row, Col: col}, nil
}

// Run dials the service and performs the configured gesture.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMapEdit, func(ctx context.Context) error {
		conn, err := platformgrpc.DialWithHealth(
			ctx,
			nil,
			cfg.Addr,
			placementv1.ServiceName,
			timeouts.GRPCDial,
			log.Printf,
			platformgrpc.DefaultClientDialOptions()...,
		)
		if err != nil {
			return err
		}
		defer func() {
			if err := conn.Close(); err != nil {
				log.Printf("close placement connection: %v", err)
			}
		}()
		return Edit(ctx, conn, cfg, out)
	})
}

// Edit runs the gesture over an established connection.
func Edit(ctx context.Context, conn grpc.ClientConnInterface, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	client := syncclient.NewGRPCClient(conn, cfg.Locale)
	notes := make(chan mapview.Notification, 16)
	view, err := mapview.New(mapview.Config{
		Zone:          cfg.Zone,
		Remote:        client,
		Source:        client,
		Zones:         client,
		Rect:          layout.Rect{Width: cfg.Width, Height: cfg.Height},
		Mode:          layout.Mode(cfg.Mode),
		Locale:        cfg.Locale,
		Throttle:      -1,
		GraceWindow:   cfg.GraceWindow,
		CommitTimeout: cfg.CommitTimeout,
		Notifier: mapview.NotifierFunc(func(n mapview.Notification) {
			select {
			case notes <- n:
			default:
			}
		}),
	})
	if err != nil {
		return err
	}
	defer view.Close()

	loadCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCRequest)
	err = view.Load(loadCtx)
	cancel()
	if err != nil {
		return err
	}
	printNotes(out, notes, 0)

	if cfg.Entity == "" {
		if err := printGrid(out, view); err != nil {
			return err
		}
		return printHistory(ctx, out, client, cfg)
	}

	view.SetEditMode(true)
	release, err := drive(view, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "release: %s\n", release.Outcome)
	if release.Outcome != drag.OutcomeCommitting {
		printNotes(out, notes, 0)
	} else {
		res, err := view.Await(ctx)
		if err != nil {
			return err
		}
		// The notification is sent just after Await wakes.
		printNotes(out, notes, timeouts.GRPCRequest)
		if res.Succeeded() {
			refreshCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCRequest)
			err := view.Refresh(refreshCtx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
	if err := printGrid(out, view); err != nil {
		return err
	}
	return printHistory(ctx, out, client, cfg)
}

func printHistory(ctx context.Context, out io.Writer, client *syncclient.GRPCClient, cfg Config) error {
	if cfg.History <= 0 {
		return nil
	}
	historyCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCRequest)
	defer cancel()
	page, err := client.Moves(historyCtx, cfg.Zone, cfg.HistoryFilter, cfg.History, "")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "history:")
	for _, move := range page.Moves {
		line := fmt.Sprintf("  %s %s r%dc%d -> r%dc%d", move.MovedAt, move.EntityID, move.FromRow, move.FromCol, move.ToRow, move.ToCol)
		if move.SwapWithID != "" {
			line += " swap " + move.SwapWithID
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func drive(view *mapview.View, cfg Config) (drag.Release, error) {
	var from layout.Point
	found := false
	placements, err := view.Placements()
	if err != nil {
		return drag.Release{}, err
	}
	for _, p := range placements {
		if p.Entity.ID == cfg.Entity {
			from = p.Pixel.Center()
			found = true
			break
		}
	}
	if !found {
		return drag.Release{}, fmt.Errorf("%w: %s", drag.ErrUnknownEntity, cfg.Entity)
	}

	to := layout.Point{X: cfg.DropX, Y: cfg.DropY}
	if cfg.Target != "" {
		cell, err := ParseCell(cfg.Target)
		if err != nil {
			return drag.Release{}, err
		}
		to, err = view.CellCenter(cell)
		if err != nil {
			return drag.Release{}, err
		}
	}

	if err := view.Begin(cfg.Entity, pointer(from)); err != nil {
		return drag.Release{}, err
	}
	steps := cfg.Moves
	if steps < 1 {
		steps = 1
	}
	for i := 1; i <= steps; i++ {
		ratio := float64(i) / float64(steps)
		step := layout.Point{
			X: from.X + (to.X-from.X)*ratio,
			Y: from.Y + (to.Y-from.Y)*ratio,
		}
		if _, _, err := view.Move(pointer(step)); err != nil {
			view.Cancel()
			return drag.Release{}, err
		}
	}
	return view.Release(pointer(to))
}

// printNotes writes queued notifications. A positive wait blocks for the
// first one.
func printNotes(out io.Writer, notes <-chan mapview.Notification, wait time.Duration) {
	if wait > 0 {
		select {
		case n := <-notes:
			printNote(out, n)
		case <-time.After(wait):
			return
		}
	}
	for {
		select {
		case n := <-notes:
			printNote(out, n)
		default:
			return
		}
	}
}

func printNote(out io.Writer, n mapview.Notification) {
	fmt.Fprintf(out, "[%s] %s\n", n.Kind, n.Message)
	if n.Detail != "" {
		fmt.Fprintf(out, "  %s\n", n.Detail)
	}
}

func pointer(p layout.Point) drag.PointerEvent {
	return drag.PointerEvent{ClientX: p.X, ClientY: p.Y}
}

// printGrid writes one line per row with the entity on each occupied column.
func printGrid(out io.Writer, view *mapview.View) error {
	zone := view.Zone()
	byCell := make(map[grid.Cell][]string)
	for _, entity := range view.Entities() {
		label := entity.ID
		if entity.Kind == grid.KindIndependent {
			label += "*"
		}
		byCell[entity.Cell] = append(byCell[entity.Cell], label)
	}

	fmt.Fprintf(out, "%s (%dx%d, %s)\n", zone.Name, zone.MaxRows, zone.MaxCols, view.Mode())
	w := tabwriter.NewWriter(out, 0, 0, 1, ' ', 0)
	header := []string{"row"}
	for col := 1; col <= zone.MaxCols; col++ {
		header = append(header, strconv.Itoa(col))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for row := 1; row <= zone.MaxRows; row++ {
		line := []string{strconv.Itoa(row)}
		for col := 1; col <= zone.MaxCols; col++ {
			labels := byCell[grid.Cell{Row: row, Col: col}]
			if len(labels) == 0 {
				line = append(line, ".")
				continue
			}
			line = append(line, strings.Join(labels, "+"))
		}
		fmt.Fprintln(w, strings.Join(line, "\t"))
	}
	for _, dup := range view.Duplicates() {
		fmt.Fprintf(w, "duplicate at %s: %s\n", dup.Cell, strings.Join(dup.EntityIDs, ", "))
	}
	return w.Flush()
}
