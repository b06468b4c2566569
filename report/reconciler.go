package report

import (
	"context"
	"encoding/base64"
	"errors"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/logging"
	"github.com/lunara/reportmesh/observability"
)

// ReconcilerOptions bounds the reconciler queues.
type ReconcilerOptions struct {
	// MaxPendingTitles caps queued chart titles. The oldest is dropped on
	// overflow.
	MaxPendingTitles int
	// MaxUnassignedImages caps queued images. The oldest is dropped on
	// overflow.
	MaxUnassignedImages int
	// PendingTitleTTL is the number of turns a title may wait for its image.
	// Zero keeps titles until the session is reset.
	PendingTitleTTL int
	Logger          logging.Logger
	Metrics         *observability.Metrics
}

// DefaultReconcilerOptions returns the queue bounds used when none are set.
func DefaultReconcilerOptions() ReconcilerOptions {
	return ReconcilerOptions{
		MaxPendingTitles:    32,
		MaxUnassignedImages: 32,
		PendingTitleTTL:     3,
		Logger:              logging.NoOpLogger{},
	}
}

// PendingTitle is a chart title waiting for its image.
type PendingTitle struct {
	Title      string
	Hint       string
	DeclaredAt time.Time
	Turn       int
}

type unassignedImage struct {
	data     []byte
	mimeType string
	key      string
}

// Arrival describes one image the reconciler accepted. Block is set when
// the image completed a pending chart.
type Arrival struct {
	Key      string
	MimeType string
	Data     []byte
	Block    *core.Block
}

// Reconciler pairs chart declarations with images that arrive inline or
// through the artifact store. Both queues are FIFO; a declaration whose
// filename hint names an image takes that image first, and an image is not
// handed to a title hinting at a different file while an unhinted title
// waits. A delivery whose key was already seen is ignored.
type Reconciler struct {
	opts ReconcilerOptions
	acc  *Accumulator

	mu         sync.Mutex
	pending    []PendingTitle
	unassigned []unassignedImage
	seen       map[string]struct{}
	turn       int
	now        func() time.Time
}

// NewReconciler creates a reconciler writing chart blocks into acc.
func NewReconciler(acc *Accumulator, optFns ...func(o *ReconcilerOptions)) *Reconciler {
	opts := DefaultReconcilerOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Reconciler{opts: opts, acc: acc, seen: map[string]struct{}{}, now: time.Now}
}

// DeclareChart attaches the oldest unassigned image to a new chart block,
// or queues the title when no image is waiting. The bool reports whether a
// block was created.
func (r *Reconciler) DeclareChart(title, hint string) (core.Block, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.unassigned) > 0 {
		i := r.pickImage(hint)
		img := r.unassigned[i]
		r.unassigned = append(r.unassigned[:i], r.unassigned[i+1:]...)

		return r.attach(title, img.data), true
	}

	r.pending = append(r.pending, PendingTitle{Title: title, Hint: hint, DeclaredAt: r.now().UTC(), Turn: r.turn})
	if over := len(r.pending) - r.opts.MaxPendingTitles; r.opts.MaxPendingTitles > 0 && over > 0 {
		r.opts.Logger.Warn("report.reconciler.title_dropped", "title", r.pending[0].Title, "limit", r.opts.MaxPendingTitles)
		r.pending = r.pending[over:]
		r.opts.Metrics.TitlesExpired(over)
	}

	return core.Block{}, false
}

// OnImageArrived accepts an image. It returns false when key was already
// seen. Otherwise the image completes the title hinting at it, the oldest
// unhinted title, the oldest title at all, or waits in the unassigned
// queue, in that order.
func (r *Reconciler) OnImageArrived(data []byte, mimeType, key string) (Arrival, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key != "" {
		if _, dup := r.seen[key]; dup {
			r.opts.Metrics.DuplicateArtifact()
			return Arrival{}, false
		}

		r.seen[key] = struct{}{}
	}

	arrival := Arrival{Key: key, MimeType: mimeType, Data: data}

	if len(r.pending) > 0 {
		i := r.pickTitle(key)
		title := r.pending[i]
		r.pending = append(r.pending[:i], r.pending[i+1:]...)

		b := r.attach(title.Title, data)
		arrival.Block = &b

		return arrival, true
	}

	r.unassigned = append(r.unassigned, unassignedImage{data: data, mimeType: mimeType, key: key})
	if over := len(r.unassigned) - r.opts.MaxUnassignedImages; r.opts.MaxUnassignedImages > 0 && over > 0 {
		r.opts.Logger.Warn("report.reconciler.image_dropped", "key", r.unassigned[0].key, "limit", r.opts.MaxUnassignedImages)
		r.unassigned = r.unassigned[over:]
	}

	return arrival, true
}

// Sweep loads every artifact of the session not seen yet and feeds each
// image through OnImageArrived. fn, when set, observes each accepted
// arrival right after it was reconciled. Keys that failed to load stay
// unseen so a later sweep retries them.
func (r *Reconciler) Sweep(ctx context.Context, store core.ArtifactStore, key core.SessionKey, fn func(Arrival)) ([]Arrival, error) {
	keys, err := store.ListKeys(ctx, key)
	if err != nil {
		return nil, &ArtifactStoreError{Op: "list", Err: err}
	}

	var (
		arrivals []Arrival
		errs     []error
	)

	for _, name := range keys {
		if r.Seen(name) {
			continue
		}

		a, err := store.Load(ctx, key, name)
		if err != nil {
			errs = append(errs, &ArtifactStoreError{Op: "load", Key: name, Err: err})
			continue
		}

		mimeType := a.MimeType
		if mimeType == "" {
			mimeType = core.DetectMimeType(name)
		}

		if !strings.HasPrefix(mimeType, "image/") {
			r.markSeen(name)
			continue
		}

		arrival, ok := r.OnImageArrived(a.Data, mimeType, name)
		if !ok {
			continue
		}

		arrivals = append(arrivals, arrival)

		if fn != nil {
			fn(arrival)
		}
	}

	return arrivals, errors.Join(errs...)
}

// Flush pairs remaining titles oldest first with their hinted image, or the
// oldest image no other title hints at, until one queue is empty. Leftovers
// carry into the next turn.
func (r *Reconciler) Flush() []core.Block {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []core.Block

	for len(r.pending) > 0 && len(r.unassigned) > 0 {
		title := r.pending[0]
		r.pending = r.pending[1:]

		i := r.pickImage(title.Hint)
		img := r.unassigned[i]
		r.unassigned = append(r.unassigned[:i], r.unassigned[i+1:]...)

		out = append(out, r.attach(title.Title, img.data))
	}

	return out
}

// BeginTurn advances the turn counter and drops titles that outlived
// PendingTitleTTL. It returns the number dropped.
func (r *Reconciler) BeginTurn() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.turn++

	if r.opts.PendingTitleTTL <= 0 {
		return 0
	}

	kept := r.pending[:0]
	expired := 0

	for _, p := range r.pending {
		if r.turn-p.Turn > r.opts.PendingTitleTTL {
			r.opts.Logger.Info("report.reconciler.title_expired", "title", p.Title, "declared_turn", p.Turn)
			expired++

			continue
		}

		kept = append(kept, p)
	}

	r.pending = kept
	r.opts.Metrics.TitlesExpired(expired)

	return expired
}

// Reset forgets queues, seen keys and the turn counter.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = nil
	r.unassigned = nil
	r.seen = map[string]struct{}{}
	r.turn = 0
}

// PendingTitles returns queued titles oldest first.
func (r *Reconciler) PendingTitles() []PendingTitle {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]PendingTitle(nil), r.pending...)
}

// UnassignedImages returns the number of queued images.
func (r *Reconciler) UnassignedImages() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.unassigned)
}

// Seen reports whether key was already delivered.
func (r *Reconciler) Seen(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.seen[key]

	return ok
}

// SeenCount returns the number of seen keys.
func (r *Reconciler) SeenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.seen)
}

func (r *Reconciler) markSeen(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seen[key] = struct{}{}
}

// attach must be called with mu held.
func (r *Reconciler) attach(title string, data []byte) core.Block {
	return r.acc.Append(core.BlockChart, title, base64.StdEncoding.EncodeToString(data))
}

// pickImage returns the index of the image named by hint. Otherwise it
// returns the first image no pending title hints at, else 0. Must be called
// with mu held.
func (r *Reconciler) pickImage(hint string) int {
	for i, img := range r.unassigned {
		if sameFile(hint, img.key) {
			return i
		}
	}

	for i, img := range r.unassigned {
		if !r.claimed(img.key) {
			return i
		}
	}

	return 0
}

// pickTitle returns the index of the first title whose hint names key.
// Otherwise it returns the first title without a hint, else 0. Must be
// called with mu held.
func (r *Reconciler) pickTitle(key string) int {
	for i, p := range r.pending {
		if sameFile(p.Hint, key) {
			return i
		}
	}

	for i, p := range r.pending {
		if p.Hint == "" {
			return i
		}
	}

	return 0
}

// claimed reports whether a pending title hints at key.
func (r *Reconciler) claimed(key string) bool {
	for _, p := range r.pending {
		if sameFile(p.Hint, key) {
			return true
		}
	}

	return false
}

func sameFile(hint, key string) bool {
	if hint == "" || key == "" {
		return false
	}

	return path.Base(hint) == path.Base(key)
}
