package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/irisdrone/pipewatch/internal/client"
	"github.com/irisdrone/pipewatch/internal/detection"
	"github.com/irisdrone/pipewatch/internal/logging"
	"github.com/irisdrone/pipewatch/internal/registry"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var watchFlags struct {
	interval time.Duration
	once     bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the backend's detections and keep a live registry",
	Long: "watch starts from the backend's registry, polls the overview snapshot\n" +
		"every interval and reconciles it locally. Statuses changed on the backend\n" +
		"are picked up on every refresh. When stdin is a terminal, typing\n" +
		"\"<id> <pending|progress|resolved>\" changes an entry's status.",
	RunE: runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.DurationVar(&watchFlags.interval, "interval", registry.DefaultRefreshInterval, "refresh interval")
	f.BoolVar(&watchFlags.once, "once", false, "refresh once, print and exit")
}

// remoteStatusWriter persists status changes on the backend. Ids allocated
// locally may not exist there, so the entry's key travels along.
func remoteStatusWriter(c *client.Client, lookup func(id string) (registry.Defect, bool)) registry.StatusWriter {
	return registry.StatusWriterFunc(func(ctx context.Context, id string, status registry.Status) error {
		u := client.StatusUpdate{ID: id, Status: status}
		if d, ok := lookup(id); ok {
			u.Location = d.Location
			u.DefectType = d.DefectType
		}
		_, err := c.UpdateStatus(ctx, u)
		return err
	})
}

// syncingAcquirer adopts the backend's current statuses before each snapshot
// so changes made by other operators show up in the local registry.
func syncingAcquirer(c *client.Client, adopt func([]registry.Defect) int) detection.Acquirer {
	snapshots := c.Acquirer()
	log := logging.New("watch")
	return detection.AcquirerFunc(func(ctx context.Context) (detection.Snapshot, error) {
		remote, err := c.Events(ctx, registry.MaxRegistrySize)
		switch {
		case errors.Is(err, client.ErrUnauthenticated):
			return detection.Snapshot{}, err
		case err != nil:
			log.Debug("⚠️ Failed to read backend statuses", "error", err)
		default:
			if n := adopt(remote); n > 0 {
				log.Debug("🔁 Picked up backend status changes", "changed", n)
			}
		}
		return snapshots.Acquire(ctx)
	})
}

func newWatchSession(c *client.Client, initial []registry.Defect, listener registry.Listener) *registry.Session {
	rec := registry.NewReconciler(registry.NewIDAllocator(), detection.NewSeededRand(0))
	var sess *registry.Session
	sess = registry.NewSession(rec,
		syncingAcquirer(c, func(remote []registry.Defect) int { return sess.AdoptStatuses(remote) }),
		registry.WithInitial(initial),
		registry.WithStatusWriter(remoteStatusWriter(c, func(id string) (registry.Defect, bool) { return sess.Get(id) })),
		registry.WithListener(listener),
	)
	return sess
}

// applyCommand handles one "<id> <status>" line typed while watching.
func applyCommand(ctx context.Context, sess *registry.Session, line string) (registry.Defect, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return registry.Defect{}, fmt.Errorf("expected \"<id> <pending|progress|resolved>\", got %q", line)
	}
	id := strings.ToUpper(fields[0])
	status, err := registry.ParseStatus(fields[1])
	if err != nil {
		return registry.Defect{}, err
	}
	if err := sess.UpdateStatus(ctx, id, status); err != nil {
		return registry.Defect{}, err
	}
	d, _ := sess.Get(id)
	return d, nil
}

// readCommands applies status commands from in until it is exhausted or ctx
// ends.
func readCommands(ctx context.Context, sess *registry.Session, in io.Reader, out io.Writer) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		d, err := applyCommand(ctx, sess, line)
		if err != nil {
			fmt.Fprintf(out, "❌ %v\n", loginHint(err))
			continue
		}
		fmt.Fprintf(out, "✅ %s (%s, %s) is now %s\n", d.ID, d.DefectType, d.Location, d.Status)
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, _, err := authedClient()
	if err != nil {
		return err
	}
	initial, err := c.Events(ctx, registry.MaxRegistrySize)
	if err != nil {
		return loginHint(err)
	}

	r := stdoutRenderer(cmd.OutOrStdout())
	sess := newWatchSession(c, initial, r.Update)
	defer sess.Close()

	if watchFlags.once {
		if err := sess.Refresh(ctx); err != nil {
			return loginHint(err)
		}
		return nil
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "👀 Watching %s every %s (Ctrl+C to stop)\n", c.BaseURL(), watchFlags.interval)
	if isatty.IsTerminal(os.Stdin.Fd()) {
		go readCommands(ctx, sess, cmd.InOrStdin(), cmd.ErrOrStderr())
	}
	err = sess.Run(ctx, watchFlags.interval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return loginHint(err)
}
