package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/zombor/cfd-invoice/internal/bill"
	"github.com/zombor/cfd-invoice/internal/history"
	"github.com/zombor/cfd-invoice/internal/intake"
	"github.com/zombor/cfd-invoice/internal/scanning"
)

// Extractor turns a document into a bill record
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (*bill.Record, error)
}

// HistoryStore is the history the controller appends to and browses
type HistoryStore interface {
	Entries() []bill.Entry
	Get(id string) (bill.Entry, bool)
	Append(record bill.Record) (bill.Entry, error)
	Remove(id string) error
	Clear() error
}

// Previewer produces display bytes for a selected document
type Previewer func(data []byte, mimeType string) ([]byte, string, error)

// Listener is called with the new state after every transition.
// It runs with the controller locked and must not call back into it.
type Listener func(Snapshot)

// Snapshot is an immutable copy of the workflow state
type Snapshot struct {
	State State
	// Previous is the state ViewingHistory was entered from
	Previous     State
	DocumentName string
	MimeType     string
	Preview      []byte
	PreviewType  string
	Record       *bill.Record
	// EntryID is the history entry the current record belongs to
	EntryID string
	Error   string
}

// Controller owns the workflow state and drives extractions
type Controller struct {
	extractor Extractor
	store     HistoryStore
	render    Previewer
	listeners []Listener
	logger    *slog.Logger

	inFlight *semaphore.Weighted
	wg       sync.WaitGroup

	mu       sync.Mutex
	state    State
	previous State
	doc      string
	mimeType string
	preview  []byte
	prevType string
	record   *bill.Record
	entryID  string
	errMsg   string
}

// Option configures a Controller
type Option func(*Controller)

// WithListener registers a listener for state changes
func WithListener(l Listener) Option {
	return func(c *Controller) {
		c.listeners = append(c.listeners, l)
	}
}

// WithPreviewer replaces the preview renderer
func WithPreviewer(p Previewer) Option {
	return func(c *Controller) {
		c.render = p
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates a Controller in the Idle state
func NewController(extractor Extractor, store HistoryStore, opts ...Option) *Controller {
	c := &Controller{
		extractor: extractor,
		store:     store,
		render:    scanning.RenderPreview,
		logger:    slog.Default(),
		inFlight:  semaphore.NewWeighted(1),
		state:     StateIdle,
		previous:  StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// State returns the current state tag
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns the history entries, most recent first
func (c *Controller) History() []bill.Entry {
	return c.store.Entries()
}

// Select starts scanning doc. The Scanning state is published before the
// extraction starts; the result arrives asynchronously.
func (c *Controller) Select(ctx context.Context, doc *intake.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateScanning {
		return ErrBusy
	}
	if err := c.check(TriggerSelect); err != nil {
		return err
	}
	if !c.inFlight.TryAcquire(1) {
		return ErrBusy
	}

	preview, previewType, err := c.render(doc.Data, doc.MimeType)
	if err != nil {
		// the scan can still succeed without something to show
		c.logger.Warn("Failed to render preview", "document", doc.Name, "mimeType", doc.MimeType, "error", err)
		preview, previewType = nil, ""
	}

	c.doc = doc.Name
	c.mimeType = doc.MimeType
	c.preview = preview
	c.prevType = previewType
	c.record = nil
	c.entryID = ""
	c.errMsg = ""
	c.enter(StateScanning)

	c.wg.Add(1)
	go c.extract(ctx, doc)

	return nil
}

func (c *Controller) extract(ctx context.Context, doc *intake.Document) {
	defer c.wg.Done()
	defer c.inFlight.Release(1)

	c.logger.Info("Scanning document", "document", doc.Name, "mimeType", doc.MimeType, "bytes", len(doc.Data))

	record, err := c.extractor.Extract(ctx, doc.Data, doc.MimeType)
	if err != nil {
		c.fail(doc, err)
		return
	}

	entry, err := c.store.Append(*record)
	if err != nil {
		if !errors.Is(err, history.ErrNotPersisted) {
			c.fail(doc, fmt.Errorf("recording history: %w", err))
			return
		}
		c.logger.Warn("Scan result kept in memory only", "document", doc.Name, "id", entry.ID, "error", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(TriggerSucceed); err != nil {
		c.logger.Error("Dropping scan result", "document", doc.Name, "id", entry.ID, "error", err)
		return
	}

	result := entry.Data
	c.record = &result
	c.entryID = entry.ID
	c.enter(StateSuccess)

	c.logger.Info("Document scanned", "document", doc.Name, "id", entry.ID, "type", result.DocumentType, "items", len(result.Items))
}

func (c *Controller) fail(doc *intake.Document, err error) {
	c.logger.Error("Failed to scan document", "document", doc.Name, "mimeType", doc.MimeType, "error", err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if checkErr := c.check(TriggerFail); checkErr != nil {
		c.logger.Error("Dropping scan failure", "document", doc.Name, "error", checkErr)
		return
	}

	c.errMsg = scanning.Reason(err)
	c.enter(StateError)
}

// Wait blocks until no extraction is in flight
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Reset returns to Idle and clears the record, preview and error
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(TriggerReset); err != nil {
		return err
	}

	c.doc = ""
	c.mimeType = ""
	c.preview = nil
	c.prevType = ""
	c.record = nil
	c.entryID = ""
	c.errMsg = ""
	c.previous = StateIdle
	c.enter(StateIdle)
	return nil
}

// ToggleHistory enters ViewingHistory, or leaves it for the state it was entered from
func (c *Controller) ToggleHistory() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(TriggerToggleHistory); err != nil {
		return err
	}

	if c.state == StateViewingHistory {
		back := c.previous
		if !back.IsValid() || back == StateScanning || back == StateViewingHistory {
			back = StateIdle
		}
		c.enter(back)
		return nil
	}

	c.previous = c.state
	c.enter(StateViewingHistory)
	return nil
}

// Open shows a history entry as the current record without scanning again
func (c *Controller) Open(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(TriggerOpen); err != nil {
		return err
	}

	entry, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntry, id)
	}

	result := entry.Data
	c.record = &result
	c.entryID = entry.ID
	c.doc = ""
	c.mimeType = ""
	c.preview = nil
	c.prevType = ""
	c.errMsg = ""
	c.enter(StateSuccess)
	return nil
}

// Delete removes one history entry
func (c *Controller) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(TriggerDelete); err != nil {
		return err
	}

	if err := c.store.Remove(id); err != nil {
		return fmt.Errorf("deleting history entry: %w", err)
	}
	c.enter(StateViewingHistory)
	return nil
}

// ClearHistory empties the history. confirmed must be true.
func (c *Controller) ClearHistory(confirmed bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(TriggerClear); err != nil {
		return err
	}
	if !confirmed {
		return ErrNotConfirmed
	}

	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	c.enter(StateViewingHistory)
	return nil
}

// check returns ErrInvalidTransition if trigger is not permitted. Callers hold mu.
func (c *Controller) check(trigger Trigger) error {
	if !CanFire(c.state, trigger) {
		return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, trigger, c.state)
	}
	return nil
}

// enter moves to state and notifies listeners. Callers hold mu.
func (c *Controller) enter(state State) {
	from := c.state
	c.state = state
	c.logger.Debug("Workflow transition", "from", from, "to", state)

	if len(c.listeners) == 0 {
		return
	}
	snap := c.snapshot()
	for _, l := range c.listeners {
		l(snap)
	}
}

// snapshot copies the state. Callers hold mu.
func (c *Controller) snapshot() Snapshot {
	snap := Snapshot{
		State:        c.state,
		Previous:     c.previous,
		DocumentName: c.doc,
		MimeType:     c.mimeType,
		PreviewType:  c.prevType,
		EntryID:      c.entryID,
		Error:        c.errMsg,
	}
	if c.preview != nil {
		snap.Preview = append([]byte(nil), c.preview...)
	}
	if c.record != nil {
		r := *c.record
		r.Items = append([]bill.LineItem{}, c.record.Items...)
		snap.Record = &r
	}
	return snap
}
