package gallery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/folio/internal/logger"
)

const defaultCallTimeout = 15 * time.Second

// Options tunes a Manager. Zero values pick sensible defaults.
type Options struct {
	CallTimeout time.Duration
	Notifier    Notifier
	Assets      Assets
	Now         func() time.Time
}

// Manager holds the authoritative in-memory copy of the remote table.
//
// The list is only ever changed after the remote call it depends on has
// returned successfully. Remote calls are not serialized against each other;
// the mutex is held only to read or apply a confirmed result.
type Manager struct {
	table   Table
	storage Storage

	timeout time.Duration
	notify  Notifier
	assets  Assets
	now     func() time.Time

	lifetime context.Context
	cancel   context.CancelFunc

	mu         sync.RWMutex
	entries    []Entry
	version    uint64
	categories []string
	catVersion uint64
}

// NewManager wires a manager to its remote table and object storage.
// storage may be nil when uploads are not supported.
func NewManager(table Table, storage Storage, opts Options) *Manager {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.Notifier == nil {
		opts.Notifier = logNotifier{log: logger.Component("gallery")}
	}
	if opts.Assets == nil {
		opts.Assets = DefaultAssets()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	lifetime, cancel := context.WithCancel(context.Background())
	return &Manager{
		table:    table,
		storage:  storage,
		timeout:  opts.CallTimeout,
		notify:   opts.Notifier,
		assets:   opts.Assets,
		now:      opts.Now,
		lifetime: lifetime,
		cancel:   cancel,
	}
}

// Close cancels every in-flight remote call. The cached list stays readable.
func (m *Manager) Close() {
	m.cancel()
}

// Entries returns a copy of the full list.
func (m *Manager) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// List returns the entries in category, or every entry for "All".
func (m *Manager) List(category string) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Filter(m.entries, category)
}

// Get looks up a cached entry by id.
func (m *Manager) Get(id string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, entry := range m.entries {
		if entry.ID == id {
			return entry, true
		}
	}
	return Entry{}, false
}

// Categories returns the derived filter facet, memoized per list version.
func (m *Manager) Categories() []string {
	m.mu.RLock()
	if m.categories != nil && m.catVersion == m.version {
		out := append([]string(nil), m.categories...)
		m.mu.RUnlock()
		return out
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.categories == nil || m.catVersion != m.version {
		m.categories = DeriveCategories(m.entries)
		m.catVersion = m.version
	}
	return append([]string(nil), m.categories...)
}

// ResolveImage maps an entry's image reference to a loadable location.
func (m *Manager) ResolveImage(e Entry) string {
	return m.assets.Resolve(e.Image)
}

// Refresh replaces the local list with the remote table's contents. On
// failure the previous list is kept.
func (m *Manager) Refresh(ctx context.Context) (Result, error) {
	callCtx, done := m.callContext(ctx)
	defer done()

	rows, err := m.table.SelectAll(callCtx)
	if err != nil {
		return m.fail(Entry{}, "Failed to load designs", fmt.Errorf("select design works: %w", err))
	}

	entries := make([]Entry, len(rows))
	copy(entries, rows)

	m.mu.Lock()
	m.entries = entries
	m.version++
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	return Result{Entries: snapshot}, nil
}

// Add validates the draft, uploads its file if any, inserts the row and
// prepends the confirmed entry.
func (m *Manager) Add(ctx context.Context, draft Draft) (Result, error) {
	if draft.File != nil && len(draft.File.Data) == 0 {
		draft.File = nil
	}
	fields, err := m.prepareDraft(draft)
	if err != nil {
		return m.fail(Entry{}, "Failed to add design", err)
	}

	callCtx, done := m.callContext(ctx)
	defer done()

	if draft.File != nil {
		url, err := m.upload(callCtx, *draft.File)
		if err != nil {
			return m.fail(Entry{}, "Failed to upload image", err)
		}
		fields.Image = url
	}

	created, err := m.table.Insert(callCtx, fields)
	if err != nil {
		return m.fail(Entry{}, "Failed to add design", fmt.Errorf("insert design work: %w", err))
	}

	m.mu.Lock()
	m.entries = append([]Entry{created}, m.entries...)
	m.version++
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	return m.succeed(created, snapshot, "Design added successfully"), nil
}

// Update applies patch to the entry with id. The id must already be cached;
// the entry is replaced in place once the remote update succeeds.
func (m *Manager) Update(ctx context.Context, id string, patch Patch) (Result, error) {
	if patch.File != nil && len(patch.File.Data) == 0 {
		patch.File = nil
	}
	current, ok := m.Get(id)
	if !ok {
		return m.fail(Entry{}, "Failed to update design", ErrEntryNotFound)
	}

	fields, err := mergePatch(current.Fields(), patch)
	if err != nil {
		return m.fail(current, "Failed to update design", err)
	}
	if patch.File == nil {
		if err := validateFields(fields); err != nil {
			return m.fail(current, "Failed to update design", err)
		}
	}

	callCtx, done := m.callContext(ctx)
	defer done()

	if patch.File != nil {
		url, err := m.upload(callCtx, *patch.File)
		if err != nil {
			return m.fail(current, "Failed to upload image", err)
		}
		fields.Image = url
		if err := validateFields(fields); err != nil {
			return m.fail(current, "Failed to update design", err)
		}
	}

	updated, err := m.table.Update(callCtx, id, fields)
	if err != nil {
		return m.fail(current, "Failed to update design", fmt.Errorf("update design work %s: %w", id, err))
	}
	if updated.ID == "" {
		updated.ID = id
	}
	if updated.CreatedAt.IsZero() {
		updated.CreatedAt = current.CreatedAt
	}

	m.mu.Lock()
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i] = updated
			break
		}
	}
	m.version++
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	return m.succeed(updated, snapshot, "Design updated successfully"), nil
}

// Remove deletes the row and drops it from the local list. A cached entry
// whose row is already gone remotely is dropped as well.
func (m *Manager) Remove(ctx context.Context, id string) (Result, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return m.fail(Entry{}, "Failed to delete design", ErrEntryNotFound)
	}
	removed, cached := m.Get(id)

	callCtx, done := m.callContext(ctx)
	defer done()

	message := "Design deleted successfully"
	if err := m.table.Delete(callCtx, id); err != nil {
		if !cached || !errors.Is(err, ErrEntryNotFound) {
			return m.fail(removed, "Failed to delete design", fmt.Errorf("delete design work %s: %w", id, err))
		}
		message = "Design was already deleted"
	}

	m.mu.Lock()
	kept := make([]Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		if entry.ID != id {
			kept = append(kept, entry)
		}
	}
	m.entries = kept
	m.version++
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	return m.succeed(removed, snapshot, message), nil
}

func (m *Manager) prepareDraft(draft Draft) (Fields, error) {
	fields := Fields{
		Title:    strings.TrimSpace(draft.Title),
		Category: strings.TrimSpace(draft.Category),
		Image:    strings.TrimSpace(draft.ImageURL),
		Height:   Height(strings.ToLower(strings.TrimSpace(string(draft.Height)))),
	}

	if fields.Title == "" {
		return fields, ErrTitleRequired
	}
	if fields.Category == "" {
		return fields, ErrCategoryRequired
	}

	hasFile := draft.File != nil && len(draft.File.Data) > 0
	switch {
	case hasFile && fields.Image != "":
		return fields, ErrImageAmbiguous
	case !hasFile && fields.Image == "":
		return fields, ErrImageRequired
	}

	if fields.Height != "" && !fields.Height.Valid() {
		return fields, ErrHeightInvalid
	}

	if hasFile {
		if !strings.HasPrefix(contentTypeOf(*draft.File), "image/") {
			return fields, ErrFileNotImage
		}
		if fields.Height == "" {
			fields.Height = HeightMedium
			if info, err := InspectImage(draft.File.Data); err == nil {
				fields.Height = GuessHeight(info.Width, info.Height)
			}
		}
	}
	if fields.Height == "" {
		fields.Height = HeightMedium
	}
	return fields, nil
}

func mergePatch(base Fields, patch Patch) (Fields, error) {
	out := base
	if patch.Title != nil {
		out.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Category != nil {
		out.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Height != nil {
		height, err := ParseHeight(string(*patch.Height))
		if err != nil {
			return out, err
		}
		if height != "" {
			out.Height = height
		}
	}

	hasFile := patch.File != nil && len(patch.File.Data) > 0
	if patch.Image != nil {
		image := strings.TrimSpace(*patch.Image)
		if hasFile && image != "" && image != base.Image {
			return out, ErrImageAmbiguous
		}
		if !hasFile {
			out.Image = image
		}
	}
	if hasFile && !strings.HasPrefix(contentTypeOf(*patch.File), "image/") {
		return out, ErrFileNotImage
	}
	return out, nil
}

func (m *Manager) upload(ctx context.Context, f File) (string, error) {
	if m.storage == nil {
		return "", fmt.Errorf("upload %s: object storage is not configured", f.Name)
	}
	name := UploadName(f.Name, m.now())
	if err := m.storage.Upload(ctx, name, bytes.NewReader(f.Data), contentTypeOf(f), int64(len(f.Data))); err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return m.storage.PublicURL(name), nil
}

// callContext joins the caller's context with the manager lifetime and
// bounds it with the per-call timeout.
func (m *Manager) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, m.timeout)
	stop := context.AfterFunc(m.lifetime, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (m *Manager) snapshotLocked() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *Manager) succeed(entry Entry, snapshot []Entry, message string) Result {
	notice := Notice{Level: NoticeSuccess, Message: message}
	m.notify.Notify(notice)
	return Result{Entry: entry, Entries: snapshot, Notice: notice}
}

func (m *Manager) fail(entry Entry, prefix string, err error) (Result, error) {
	notice := Notice{Level: NoticeError, Message: prefix + ": " + describe(err)}
	m.notify.Notify(notice)
	return Result{Entry: entry, Entries: m.Entries(), Notice: notice}, err
}
