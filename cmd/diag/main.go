// Command diag runs the scene headless on a synthetic clock and prints where
// every body ends up. Two runs with the same flags print the same numbers.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/cobra"

	"github.com/star/orrery/internal/body"
	"github.com/star/orrery/internal/session"
)

// stepClock reports a time the replay moves forward by hand.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Add(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type replayOptions struct {
	steps   int
	deltaMs int
	speed   float64
	selectB string
	asJSON  bool
	verbose bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "diag",
		Short:        "Headless diagnostics for the orrery scene",
		SilenceUsage: true,
	}
	root.AddCommand(newReplayCmd(), newBodiesCmd())
	return root
}

func newReplayCmd() *cobra.Command {
	opts := replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Step the scene a fixed number of frames and print body positions",
		Long: `Step the scene on a synthetic clock and print each body's orbital angle,
rotation angle and world position after the last frame.

Examples:
  diag replay --steps 600 --delta 16
  diag replay --steps 10 --delta 1000 --speed 1
  diag replay --select jupiter --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.steps, "steps", 60, "number of frames to step")
	cmd.Flags().IntVar(&opts.deltaMs, "delta", 16, "milliseconds between frames (steps above 100ms are clamped)")
	cmd.Flags().Float64Var(&opts.speed, "speed", session.DefaultSpeed, "speed multiplier in [0, 1]")
	cmd.Flags().StringVar(&opts.selectB, "select", "", "body to focus before stepping (e.g. saturn)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the final frame as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log session events to stderr")
	return cmd
}

func newBodiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bodies",
		Short: "List the configured bodies",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-8s %-7s %8s %8s %6s\n", "id", "label", "distance", "radius", "ring")
			for _, d := range body.Descriptors() {
				fmt.Fprintf(out, "%-8s %-7s %8.1f %8.2f %6t\n", d.ID, d.Label, d.Distance, d.Radius, d.Ring)
			}
			return nil
		},
	}
}

func runReplay(ctx context.Context, out io.Writer, opts replayOptions) error {
	if opts.steps < 0 {
		return fmt.Errorf("steps must be non-negative, got %d", opts.steps)
	}
	if opts.deltaMs < 0 {
		return fmt.Errorf("delta must be non-negative, got %d", opts.deltaMs)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.speed < 0 || opts.speed > 1 {
		return fmt.Errorf("speed must be in [0, 1], got %v", opts.speed)
	}

	var logOut io.Writer = io.Discard
	if opts.verbose {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug}))

	clock := &stepClock{now: time.Unix(0, 0).UTC()}
	cfg := session.DefaultConfig()
	cfg.Clock = clock
	cfg.Speed = opts.speed
	cfg.FrameInterval = time.Hour
	sess := session.New(cfg, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go sess.Run(runCtx)

	if opts.selectB != "" {
		id, err := body.ParseID(opts.selectB)
		if err != nil {
			return err
		}
		if _, err := sess.Select(runCtx, id); err != nil {
			return err
		}
	}

	f := sess.Latest()
	step := time.Duration(opts.deltaMs) * time.Millisecond
	for i := 0; i < opts.steps; i++ {
		var err error
		if f, err = sess.Step(runCtx, clock.Add(step)); err != nil {
			return err
		}
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	}

	views, err := sess.Bodies(runCtx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "frame %d at t=%.0fms speed=%.2f selected=%q\n", f.Seq, f.TimeMs, f.Speed, f.Selected)
	fmt.Fprintf(out, "camera position=%s target=%s\n", vec(f.Camera.Position), vec(f.Camera.Target))
	fmt.Fprintf(out, "%-8s %10s %10s %s\n", "body", "orbit_deg", "spin_deg", "position")
	for _, v := range views {
		fmt.Fprintf(out, "%-8s %10.3f %10.3f %s\n",
			v.ID, degrees(v.OrbitalAngle), degrees(v.RotationAngle), vec(mgl64.Vec3(v.Position)))
	}
	return nil
}

func degrees(rad float64) float64 { return mgl64.RadToDeg(rad) }

func vec(v mgl64.Vec3) string { return fmt.Sprintf("(%.3f, %.3f, %.3f)", v[0], v[1], v[2]) }
