package reconciler

import (
	"context"
	"time"

	"github.com/weiawesome/tweet-graph/internal/config"
	"github.com/weiawesome/tweet-graph/internal/store"
	pkglog "github.com/weiawesome/tweet-graph/pkg/log"
)

// Result counts what one sweep found and fixed.
type Result struct {
	UsersScanned        int64
	MirrorsRepaired     int
	StaleMirrorsDropped int
	Errors              int
}

// Reconciler periodically makes followers(uid) mirror following(uid).
// following is the source of truth: follow writes it first and unfollow
// removes it first, so an interrupted write always leaves the followers side
// behind.
type Reconciler struct {
	users  store.UserRecordStore
	graph  store.SocialGraphStore
	cfg    config.ReconcilerConfig
	quit   chan struct{}
	doneCh chan struct{}
}

// New creates a new Reconciler.
func New(users store.UserRecordStore, graph store.SocialGraphStore, cfg config.ReconcilerConfig) *Reconciler {
	return &Reconciler{
		users:  users,
		graph:  graph,
		cfg:    cfg,
		quit:   make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the reconciler in a background goroutine.
func (r *Reconciler) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop signals the reconciler to stop and returns immediately.
// Call Done() to wait for it to exit.
func (r *Reconciler) Stop() {
	close(r.quit)
}

// Done returns a channel that is closed when the reconciler has fully stopped.
func (r *Reconciler) Done() <-chan struct{} {
	return r.doneCh
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.doneCh)

	interval := r.cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				l := pkglog.L()
				l.Error().Err(err).Msg("reconciler: sweep aborted")
			}
		}
	}
}

// RunOnce sweeps user ids 1..last allocated id in batches. Per-user failures
// are logged and counted; only failing to read the id sequence or being
// stopped aborts the sweep.
func (r *Reconciler) RunOnce(ctx context.Context) (Result, error) {
	l := pkglog.L()
	var res Result

	last, err := r.users.LastID(ctx)
	if err != nil {
		return res, err
	}

	batch := int64(r.cfg.BatchSize)
	if batch <= 0 {
		batch = 500
	}

	for start := int64(1); start <= last; start += batch {
		select {
		case <-r.quit:
			return res, context.Canceled
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		end := min(start+batch-1, last)
		for uid := start; uid <= end; uid++ {
			r.reconcileUser(ctx, uid, &res)
			res.UsersScanned++
		}
	}

	l.Info().
		Int64("users_scanned", res.UsersScanned).
		Int("mirrors_repaired", res.MirrorsRepaired).
		Int("stale_mirrors_dropped", res.StaleMirrorsDropped).
		Int("errors", res.Errors).
		Msg("reconciler: follow graph sweep complete")
	return res, nil
}

func (r *Reconciler) reconcileUser(ctx context.Context, uid int64, res *Result) {
	l := pkglog.L()

	// Interrupted follows: following entry without its followers mirror.
	outgoing, err := r.graph.FollowingEdges(ctx, uid)
	if err != nil {
		l.Error().Err(err).Int64(pkglog.FieldUserID, uid).Msg("reconciler: failed to read following")
		res.Errors++
	}
	for _, edge := range outgoing {
		ok, err := r.graph.HasFollowerEntry(ctx, edge.FolloweeID, edge.FollowerID)
		if err != nil {
			l.Error().Err(err).Int64(pkglog.FieldFollowerID, edge.FollowerID).
				Int64(pkglog.FieldFolloweeID, edge.FolloweeID).Msg("reconciler: failed to check mirror")
			res.Errors++
			continue
		}
		if ok {
			continue
		}
		if err := r.graph.RepairMirror(ctx, edge); err != nil {
			l.Error().Err(err).Int64(pkglog.FieldFollowerID, edge.FollowerID).
				Int64(pkglog.FieldFolloweeID, edge.FolloweeID).Msg("reconciler: failed to repair mirror")
			res.Errors++
			continue
		}
		res.MirrorsRepaired++
	}

	// Interrupted unfollows: followers entry whose following side is gone.
	incoming, err := r.graph.FollowerEdges(ctx, uid)
	if err != nil {
		l.Error().Err(err).Int64(pkglog.FieldUserID, uid).Msg("reconciler: failed to read followers")
		res.Errors++
		return
	}
	for _, edge := range incoming {
		ok, err := r.graph.IsFollowing(ctx, edge.FollowerID, edge.FolloweeID)
		if err != nil {
			l.Error().Err(err).Int64(pkglog.FieldFollowerID, edge.FollowerID).
				Int64(pkglog.FieldFolloweeID, edge.FolloweeID).Msg("reconciler: failed to check following")
			res.Errors++
			continue
		}
		if ok {
			continue
		}
		if err := r.graph.RemoveFollowerEntry(ctx, edge.FolloweeID, edge.FollowerID); err != nil {
			l.Error().Err(err).Int64(pkglog.FieldFollowerID, edge.FollowerID).
				Int64(pkglog.FieldFolloweeID, edge.FolloweeID).Msg("reconciler: failed to drop stale mirror")
			res.Errors++
			continue
		}
		res.StaleMirrorsDropped++
	}
}
