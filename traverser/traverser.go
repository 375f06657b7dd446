// Package traverser implements the Traverser + Iterator (§4.8): the
// depth-first scheduler that drives an Archive Stack Cursor over a set
// of root hierarchies, descending into nested archives, walking
// filesystem directories, deferring multi-volume groups until their
// enclosing container is exhausted, and exposing every discovered entry
// exactly once through a forward, pull-based API.
//
// A Traverser plays both roles the spec names separately - constructor
// and forward iterator - the same way bufio.Scanner or sql.Rows do: one
// Traverser is good for exactly one forward pass over its roots. This
// avoids a second exported type whose only job would be to wrap Next/
// Err/Close around the first.
//
// The walk itself runs in a background goroutine that pushes discovered
// entries across an unbuffered channel and blocks for a resume signal
// before proceeding, the same push-to-pull bridge archivewrap's
// archiverSession uses to adapt mholt/archiver/v4's callback style - here
// adapting a recursive depth-first walk to a pull-based Next(). Because
// the goroutine is parked on the resume channel whenever a live Entry is
// in the caller's hands, it never touches the shared cursor while the
// caller is reading from or mutating that entry, so sharing one
// *cursor.Cursor across both sides is safe despite the extra goroutine.
package traverser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/carlodf/archtrav/archivewrap"
	"github.com/carlodf/archtrav/cursor"
	"github.com/carlodf/archtrav/datastream"
	"github.com/carlodf/archtrav/pathhierarchy"
)

// KnownMetadataKeys is the full keyspace TraverserOptions.metadata_keys
// may draw from (§3). New rejects any configured key outside this set,
// catching typos at construction time per §9's design note.
var KnownMetadataKeys = map[string]struct{}{
	"pathname": {}, "filetype": {}, "mode": {}, "size": {},
	"uid": {}, "gid": {}, "uname": {}, "gname": {},
	"mtime": {}, "atime": {}, "ctime": {}, "birthtime": {},
	"devmajor": {}, "devminor": {}, "hardlink": {}, "symlink": {},
	"xattrs": {}, "digests": {}, "sparse": {}, "fflags": {},
}

// Options mirrors TraverserOptions (§3) exactly.
//
// Directory children are walked in name-sorted order rather than raw
// filesystem enumeration order, resolving §9's open question in favor of
// deterministic, cross-platform test assertions; this is not
// configurable.
type Options struct {
	// Passphrases is an ordered list of candidate passphrases decoders
	// try in turn when opening a protected archive.
	Passphrases []string
	// Formats allowlists decoder format names; empty means every
	// format the decoder supports.
	Formats []string
	// MetadataKeys selects which of KnownMetadataKeys to capture per
	// filesystem entry.
	MetadataKeys []string
	// DescendArchives is the default value of each file-kind entry's
	// descent flag. The Go zero value is false; construct Options via
	// DefaultOptions, or set this field explicitly, to get the spec's
	// documented true default.
	DescendArchives bool
}

// DefaultOptions returns an Options with DescendArchives set to the
// spec's documented default of true.
func DefaultOptions() Options {
	return Options{DescendArchives: true}
}

func (o Options) decodeOptions() archivewrap.DecodeOptions {
	return archivewrap.DecodeOptions{Passphrases: o.Passphrases, Formats: o.Formats}
}

func (o Options) validate() error {
	for _, k := range o.MetadataKeys {
		if _, ok := KnownMetadataKeys[k]; !ok {
			return fmt.Errorf("traverser: unknown metadata key %q", k)
		}
	}
	return nil
}

func (o Options) allowedKeys() datastream.AllowedKeys {
	return datastream.NewAllowedKeys(o.MetadataKeys)
}

// ErrNoRoots is returned by New when roots is empty.
var ErrNoRoots = errors.New("traverser: at least one root is required")

// ErrEmptyHierarchy is returned by New when one of roots is empty.
var ErrEmptyHierarchy = errors.New("traverser: root hierarchy must not be empty")

// Traverser drives a depth-first walk over roots, yielding entries one
// at a time via Next. It is not safe for concurrent use by more than one
// goroutine at a time (§5).
type Traverser struct {
	decoder   archivewrap.Decoder
	opt       Options
	decodeOpt archivewrap.DecodeOptions
	roots     []pathhierarchy.Hierarchy

	cur *cursor.Cursor

	ctx    context.Context
	cancel context.CancelFunc

	entryCh  chan *Entry
	resumeCh chan struct{}
	doneCh   chan error

	current  *Entry
	lastErr  error
	doneOnce sync.Once
	doneErr  error
	closed   bool
}

// New validates roots and opt and starts the background walk. decoder is
// the Stream Archive decoder every nested archive is opened with.
func New(decoder archivewrap.Decoder, roots []pathhierarchy.Hierarchy, opt Options) (*Traverser, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}
	for _, r := range roots {
		if len(r) == 0 {
			return nil, ErrEmptyHierarchy
		}
	}
	if err := opt.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	cur := cursor.New(decoder)
	decodeOpt := opt.decodeOptions()
	cur.Configure(decodeOpt)

	t := &Traverser{
		decoder:   decoder,
		opt:       opt,
		decodeOpt: decodeOpt,
		roots:     append([]pathhierarchy.Hierarchy(nil), roots...),
		cur:       cur,
		ctx:       ctx,
		cancel:    cancel,
		entryCh:   make(chan *Entry),
		resumeCh:  make(chan struct{}),
		doneCh:    make(chan error, 1),
	}

	w := &walker{t: t, roots: append([]pathhierarchy.Hierarchy(nil), roots...)}
	go w.run(ctx)
	return t, nil
}

// Next advances to the next entry. ok is false once every root has been
// fully walked; err is sticky, also available afterward via Err.
func (t *Traverser) Next() (*Entry, bool, error) {
	if t.closed {
		return nil, false, nil
	}
	if t.current != nil {
		select {
		case t.resumeCh <- struct{}{}:
		case <-t.ctx.Done():
			return nil, false, nil
		}
	}
	select {
	case e, ok := <-t.entryCh:
		if !ok {
			t.current = nil
			err := t.waitDone()
			t.lastErr = err
			return nil, false, err
		}
		t.current = e
		return e, true, nil
	case <-t.ctx.Done():
		return nil, false, nil
	}
}

// Err returns the error from the most recently completed Next call, if
// any.
func (t *Traverser) Err() error { return t.lastErr }

func (t *Traverser) waitDone() error {
	t.doneOnce.Do(func() { t.doneErr = <-t.doneCh })
	return t.doneErr
}

// Close stops the walk and releases every open stream in LIFO order
// (§5). It is safe to call more than once.
func (t *Traverser) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.cancel()
	_ = t.waitDone()
	return t.cur.Close()
}

// walker holds the mutable state of one background walk: the queue of
// root hierarchies (grown in place as multi-volume groups are deferred)
// and the shared cursor driving it.
type walker struct {
	t     *Traverser
	roots []pathhierarchy.Hierarchy
}

func (w *walker) run(ctx context.Context) {
	defer close(w.t.entryCh)
	err := w.walkRoots(ctx)
	w.t.doneCh <- err
}

func (w *walker) walkRoots(ctx context.Context) error {
	for i := 0; i < len(w.roots); i++ {
		if err := w.walkRoot(ctx, w.roots[i]); err != nil {
			return err
		}
	}
	return nil
}

// walkRoot dispatches a single root-level hierarchy: a directory is
// recursively enumerated; a plain file is probed/yielded through the
// cursor; a synthesized multi-volume root (from a deferred group) has no
// literal path of its own and goes straight through the cursor too.
func (w *walker) walkRoot(ctx context.Context, root pathhierarchy.Hierarchy) error {
	if root[0].Kind() == pathhierarchy.KindSingle {
		path := root[0].SingleName()
		if fi, err := os.Lstat(path); err == nil && fi.IsDir() {
			return w.walkDirectory(ctx, root, path)
		}
		return w.walkFile(ctx, root, path)
	}
	return w.walkMultiVolumeRoot(ctx, root)
}

// walkDirectory yields hierarchy as a directory entry, then recurses
// into its name-sorted children (§4.8.1), deferring any multi-volume
// groups its direct children registered until the listing is exhausted.
func (w *walker) walkDirectory(ctx context.Context, hierarchy pathhierarchy.Hierarchy, path string) error {
	size, kind, meta := datastream.CollectMetadata(path, w.t.opt.allowedKeys())
	if _, err := w.t.yieldEntry(ctx, hierarchy, kind, size, meta); err != nil {
		return err
	}

	children, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("traverser: read directory %s: %w", path, err)
	}
	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.Name()
	}
	sort.Strings(names)

	groups := map[string]*pendingGroup{}
	var order []string
	for _, name := range names {
		childHierarchy := hierarchy.AppendSingle(name)
		childPath := filepath.Join(path, name)
		entry, err := w.walkDirChild(ctx, childHierarchy, childPath)
		if err != nil {
			return err
		}
		if entry != nil && entry.grouped {
			registerGroup(groups, &order, entry, childPath)
		}
	}
	w.deferGroups(groups, order)
	return nil
}

// walkDirChild walks one directory child, returning the yielded Entry
// when the child was a file (so the caller can check for a registered
// multi-volume group); a directory child returns a nil Entry since its
// own grouping scope is its own listing, not its parent's.
func (w *walker) walkDirChild(ctx context.Context, hierarchy pathhierarchy.Hierarchy, path string) (*Entry, error) {
	if fi, err := os.Lstat(path); err == nil && fi.IsDir() {
		return nil, w.walkDirectory(ctx, hierarchy, path)
	}
	return w.walkFile(ctx, hierarchy, path)
}

func (w *walker) walkFile(ctx context.Context, hierarchy pathhierarchy.Hierarchy, path string) (*Entry, error) {
	size, kind, meta := datastream.CollectMetadata(path, w.t.opt.allowedKeys())
	if _, err := w.t.cur.CreateStream(hierarchy); err != nil {
		return nil, err
	}
	return w.walkPushedStream(ctx, hierarchy, kind, size, meta)
}

func (w *walker) walkMultiVolumeRoot(ctx context.Context, root pathhierarchy.Hierarchy) error {
	if _, err := w.t.cur.CreateStream(root); err != nil {
		return err
	}
	_, err := w.walkPushedStream(ctx, root, datastream.KindFile, 0, nil)
	return err
}

// walkPushedStream yields the entry for a stream that has already been
// pushed onto the cursor's stack (by CreateStream), then probes it as an
// archive if requested, and finally pops the pushed stream back off
// before returning - restoring the cursor to the empty stack the next
// sibling root expects.
func (w *walker) walkPushedStream(ctx context.Context, hierarchy pathhierarchy.Hierarchy, kind datastream.EntryKind, size int64, meta map[string]any) (*Entry, error) {
	entry, err := w.t.yieldEntry(ctx, hierarchy, kind, size, meta)
	if err != nil {
		_ = w.t.cur.Ascend()
		return nil, err
	}
	if err := w.maybeDescendAndWalk(ctx, entry, hierarchy); err != nil {
		_ = w.t.cur.Ascend()
		return entry, err
	}
	return entry, w.t.cur.Ascend()
}

// maybeDescendAndWalk probes hierarchy's entry as an archive when its
// descent flag is still set after yield. A probing failure (unsupported
// format, decoder error) is swallowed per §4.8: the entry stays a leaf.
// archivewrap.StreamArchive.Open already reports the underlying fault,
// so no second fault is raised here.
func (w *walker) maybeDescendAndWalk(ctx context.Context, entry *Entry, hierarchy pathhierarchy.Hierarchy) error {
	if entry.kind == datastream.KindDirectory || !entry.descent {
		return nil
	}
	if err := w.t.cur.Descend(); err != nil {
		return nil
	}
	if err := w.walkArchiveLevel(ctx, hierarchy); err != nil {
		return err
	}
	return w.t.cur.Ascend()
}

// walkArchiveLevel loops the cursor across the currently-open archive's
// entries, yielding each, recursing into nested archives on request, and
// deferring any multi-volume groups registered at this level until the
// archive reaches EOF.
func (w *walker) walkArchiveLevel(ctx context.Context, containerHierarchy pathhierarchy.Hierarchy) error {
	groups := map[string]*pendingGroup{}
	var order []string
	for {
		h, ok, err := w.t.cur.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		info, _ := w.t.cur.CurrentEntryInfo()
		kind := datastream.KindFile
		if info.IsDir {
			kind = datastream.KindDirectory
		}
		entry, err := w.t.yieldEntry(ctx, h, kind, info.Size, nil)
		if err != nil {
			return err
		}
		if entry.grouped {
			registerGroup(groups, &order, entry, info.Name)
		}
		if kind == datastream.KindFile && entry.descent {
			if err := w.t.cur.Descend(); err == nil {
				if err := w.walkArchiveLevel(ctx, h); err != nil {
					return err
				}
				if err := w.t.cur.Ascend(); err != nil {
					return err
				}
			}
		}
	}
	w.deferGroups(groups, order)
	return nil
}

// pendingGroup accumulates the parts of one multi-volume group
// registered via Entry.SetMultiVolumeGroup within a single container's
// scan (one directory listing, or one open archive level).
type pendingGroup struct {
	ordering pathhierarchy.Ordering
	parts    []string
}

func registerGroup(groups map[string]*pendingGroup, order *[]string, entry *Entry, partName string) {
	base := entry.groupBase
	g, ok := groups[base]
	if !ok {
		g = &pendingGroup{ordering: entry.groupOrdering}
		groups[base] = g
		*order = append(*order, base)
	}
	g.parts = append(g.parts, partName)
}

// deferGroups appends one synthetic root hierarchy per collected group,
// per §4.8's deferred multi-volume handling: every group becomes a new
// top-level root processed after the enclosing container's own
// traversal, resolved exactly like any other root (System File Stream by
// default, or a registered Root Stream Factory). Groups collected while
// an archive level was open therefore need a registered factory to
// actually reopen their members unless the names also happen to resolve
// as filesystem paths; see DESIGN.md.
func (w *walker) deferGroups(groups map[string]*pendingGroup, order []string) {
	for _, base := range order {
		g := groups[base]
		w.roots = append(w.roots, pathhierarchy.MakeMultiVolumePath(g.parts, g.ordering))
	}
}

// yieldEntry constructs an Entry, hands it across entryCh to whoever
// called Next, and blocks until that caller calls Next again (or the
// traverser is closed), by which point the caller has finished reading
// and mutating the entry's descent/grouping fields.
func (t *Traverser) yieldEntry(ctx context.Context, hierarchy pathhierarchy.Hierarchy, kind datastream.EntryKind, size int64, meta map[string]any) (*Entry, error) {
	entry := &Entry{
		hierarchy: hierarchy,
		kind:      kind,
		size:      size,
		metadata:  meta,
		descent:   t.opt.DescendArchives,
		decoder:   t.decoder,
		decodeOpt: t.decodeOpt,
		live:      t.cur,
		owner:     t,
	}
	select {
	case t.entryCh <- entry:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case <-t.resumeCh:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return entry, nil
}
