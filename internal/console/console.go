// Package console holds the operator console's view model and the operations
// that move it: form submissions, table refreshes, the pre-registration feed
// and transient notifications. Every failure is caught here and surfaced as an
// error notification; nothing is retried.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyprpranav/Visitor-Management-System/internal/backend"
)

// Outcome messages shown to the operator.
const (
	MsgNoVisitorsFound   = "No visitors found matching the search criteria"
	MsgPreRegSubmitted   = "Pre-registration submitted successfully! Awaiting admin approval."
	MsgQRGenerated       = "QR code generated and ready to share!"
	MsgExported          = "Logs exported successfully"
	msgConnectFormat     = "Cannot connect to server. Please ensure the backend is running at %s"
	whatsAppSharePrefix  = "Pre-register your visit: "
	defaultShareBaseURL  = "http://localhost:5000"
	defaultCheckInReply  = "Visitor checked in successfully!"
	defaultCheckOutReply = "Visitor checked out successfully!"
)

// ErrSuperseded is returned when a history response arrives after a newer
// request for the same table was issued; the response is discarded.
var ErrSuperseded = errors.New("console: superseded by a newer request")

// Backend is the visitor REST API as the console uses it.
type Backend interface {
	Stats(ctx context.Context) (backend.Stats, error)
	History(ctx context.Context, search string) ([]backend.Visitor, error)
	CheckIn(ctx context.Context, req backend.CheckInRequest) (backend.VisitorResponse, error)
	CheckOut(ctx context.Context, req backend.CheckOutRequest) (backend.VisitorResponse, error)
	SubmitFeedback(ctx context.Context, fb backend.Feedback) (backend.MessageResponse, error)
	GenerateQR(ctx context.Context, contact string) (backend.File, error)
	Export(ctx context.Context) (backend.File, error)
	PendingPreRegistrations(ctx context.Context) ([]backend.PreRegistration, error)
	Approve(ctx context.Context, id int64) (backend.MessageResponse, error)
	Decline(ctx context.Context, id int64) (backend.MessageResponse, error)
	PreRegister(ctx context.Context, p backend.PreRegistration) (backend.MessageResponse, error)
	Probe(ctx context.Context) bool
	Endpoint() string
}

// EventType names what changed.
type EventType string

const (
	EventNotification EventType = "notification"
	EventState        EventType = "state"
)

// Event is published to subscribers after the view model changes.
type Event struct {
	Type         EventType     `json:"type"`
	Notification *Notification `json:"notification,omitempty"`
}

// Options tunes a Console.
type Options struct {
	ShareBaseURL         string
	NotificationTTL      time.Duration
	NotificationCapacity int
	Logger               *slog.Logger
}

type tableState struct {
	search string
	rows   []backend.Visitor
	loaded bool
	seq    uint64
}

type qrState struct {
	view  QRView
	image backend.File
}

// Console is the operator console controller. It is safe for concurrent use.
type Console struct {
	backend      Backend
	notes        *Notifications
	logger       *slog.Logger
	shareBaseURL string

	mu          sync.Mutex
	section     Section
	stats       backend.Stats
	statsLoaded bool
	tables      map[Table]*tableState
	pending     []backend.PreRegistration
	feedOpen    bool
	checkIn     CheckInForm
	checkOut    CheckOutForm
	preReg      PreRegistrationForm
	preRegDone  bool
	feedback    FeedbackForm
	qr          *qrState
	qrVersion   int
	subscribers []func(Event)
}

// New creates a Console over b.
func New(b Backend, opts Options) *Console {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	share := strings.TrimRight(opts.ShareBaseURL, "/")
	if share == "" {
		share = defaultShareBaseURL
	}
	return &Console{
		backend:      b,
		notes:        NewNotifications(opts.NotificationCapacity, opts.NotificationTTL),
		logger:       logger,
		shareBaseURL: share,
		section:      SectionDashboard,
		tables: map[Table]*tableState{
			TableVisitors: {},
			TableAdmin:    {},
		},
	}
}

// Subscribe registers fn for every Event. fn must not block.
func (c *Console) Subscribe(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

func (c *Console) publish(ev Event) {
	c.mu.Lock()
	subs := append([]func(Event)(nil), c.subscribers...)
	c.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (c *Console) changed() {
	c.publish(Event{Type: EventState})
}

func (c *Console) notify(kind Kind, msg string) {
	n := c.notes.Add(kind, msg)
	if kind == KindError {
		c.logger.Warn("operator notified", "message", msg)
	} else {
		c.logger.Info("operator notified", "message", msg)
	}
	c.publish(Event{Type: EventNotification, Notification: &n})
}

func (c *Console) succeed(msg, fallback string) {
	if msg == "" {
		msg = fallback
	}
	c.notify(KindSuccess, msg)
}

func (c *Console) fail(msg string) {
	c.notify(KindError, msg)
}

func (c *Console) connectMessage() string {
	return fmt.Sprintf(msgConnectFormat, c.backend.Endpoint())
}

// Notifications exposes the notification buffer.
func (c *Console) Notifications() *Notifications {
	return c.notes
}

// Dismiss hides a notification.
func (c *Console) Dismiss(id string) bool {
	ok := c.notes.Dismiss(id)
	if ok {
		c.changed()
	}
	return ok
}

// CheckConnection probes the backend and notifies the operator when it is
// unreachable.
func (c *Console) CheckConnection(ctx context.Context) bool {
	if c.backend.Probe(ctx) {
		return true
	}
	c.fail(c.connectMessage())
	return false
}

// ShowSection switches screens. Details refreshes stats and the visitor
// table; admin refreshes the admin table.
func (c *Console) ShowSection(ctx context.Context, name string) error {
	section, err := ParseSection(name)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.section = section
	c.mu.Unlock()
	c.changed()

	switch section {
	case SectionDetails:
		_ = c.RefreshDetails(ctx)
	case SectionAdmin:
		_ = c.RefreshHistory(ctx, TableAdmin, "")
	}
	return nil
}

// Section returns the visible section.
func (c *Console) Section() Section {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.section
}

// RefreshStats fetches the counters. On failure the previous values stay.
func (c *Console) RefreshStats(ctx context.Context) error {
	stats, err := c.backend.Stats(ctx)
	if err != nil {
		c.fail("Error fetching stats: " + err.Error())
		return err
	}
	c.mu.Lock()
	c.stats = stats
	c.statsLoaded = true
	c.mu.Unlock()
	c.changed()
	return nil
}

// RefreshHistory fetches the visitors matching search into table. Only the
// response to the most recent request for a table is applied.
func (c *Console) RefreshHistory(ctx context.Context, table Table, search string) error {
	search = strings.TrimSpace(search)

	c.mu.Lock()
	ts, ok := c.tables[table]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("unknown table %q", table)
	}
	ts.seq++
	ticket := ts.seq
	ts.search = search
	c.mu.Unlock()

	visitors, err := c.backend.History(ctx, search)
	if err != nil && search != "" && backend.StatusOf(err) == http.StatusNotFound {
		// an unmatched search is an empty result, not a failure
		visitors, err = nil, nil
	}

	c.mu.Lock()
	if ts.seq != ticket {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if err == nil {
		ts.rows = visitors
		ts.loaded = true
	}
	c.mu.Unlock()

	if err != nil {
		c.fail("Error fetching history: " + err.Error())
		return err
	}
	c.changed()
	if len(visitors) == 0 && search != "" {
		c.fail(MsgNoVisitorsFound)
	}
	return nil
}

// RefreshDetails refreshes stats and the visitor table concurrently.
func (c *Console) RefreshDetails(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return c.RefreshStats(ctx) })
	g.Go(func() error { return c.RefreshHistory(ctx, TableVisitors, "") })
	return g.Wait()
}

// SearchAdmin runs the admin history search.
func (c *Console) SearchAdmin(ctx context.Context, search string) error {
	return c.RefreshHistory(ctx, TableAdmin, search)
}

func (c *Console) refreshIfDetailsVisible(ctx context.Context) {
	if c.Section() == SectionDetails {
		_ = c.RefreshDetails(ctx)
	}
}

// CheckIn validates and submits a check-in. The draft is kept on failure and
// reset on success.
func (c *Console) CheckIn(ctx context.Context, form CheckInForm) error {
	form = form.normalized()
	c.mu.Lock()
	c.checkIn = form
	c.mu.Unlock()

	if err := form.Validate(); err != nil {
		c.fail(err.Error())
		return err
	}
	if !c.backend.Probe(ctx) {
		msg := c.connectMessage()
		c.fail(msg)
		return &backend.Error{Code: backend.CodeUnreachable, Message: msg}
	}

	res, err := c.backend.CheckIn(ctx, form.Request())
	if err != nil {
		if backend.HasCode(err, backend.CodeUnreachable) {
			c.fail(c.connectMessage())
		} else {
			c.fail("Check-in failed: " + err.Error())
		}
		return err
	}

	c.logger.Info("visitor checked in", "contact", form.Contact)
	c.succeed(res.Message, defaultCheckInReply)
	c.mu.Lock()
	c.checkIn = CheckInForm{}
	c.mu.Unlock()
	c.changed()
	c.refreshIfDetailsVisible(ctx)
	return nil
}

// CheckOut submits a check-out for the contact.
func (c *Console) CheckOut(ctx context.Context, form CheckOutForm) error {
	form.Contact = strings.TrimSpace(form.Contact)
	c.mu.Lock()
	c.checkOut = form
	c.mu.Unlock()

	if err := form.Validate(); err != nil {
		c.fail(err.Error())
		return err
	}
	if !c.backend.Probe(ctx) {
		msg := c.connectMessage()
		c.fail(msg)
		return &backend.Error{Code: backend.CodeUnreachable, Message: msg}
	}

	res, err := c.backend.CheckOut(ctx, backend.CheckOutRequest{Contact: form.Contact})
	if err != nil {
		c.fail("Check-out failed: " + err.Error())
		return err
	}

	c.logger.Info("visitor checked out", "contact", form.Contact)
	c.succeed(res.Message, defaultCheckOutReply)
	c.mu.Lock()
	c.checkOut = CheckOutForm{}
	c.mu.Unlock()
	c.changed()
	c.refreshIfDetailsVisible(ctx)
	return nil
}

// StartPreRegistration opens an empty pre-registration form, optionally
// prefilled with a contact from a share link.
func (c *Console) StartPreRegistration(contact string) {
	c.mu.Lock()
	c.section = SectionPreRegister
	c.preRegDone = false
	c.preReg = PreRegistrationForm{Contact: strings.TrimSpace(contact)}
	c.mu.Unlock()
	c.changed()
}

// PreRegister submits a future visit. On success the form is hidden and a
// pending-approval message shown.
func (c *Console) PreRegister(ctx context.Context, form PreRegistrationForm) error {
	form = form.normalized()
	c.mu.Lock()
	c.preReg = form
	c.mu.Unlock()

	if err := form.Validate(); err != nil {
		c.fail(err.Error())
		return err
	}

	if _, err := c.backend.PreRegister(ctx, form.Request()); err != nil {
		if backend.HasCode(err, backend.CodeServer) {
			c.fail(err.Error())
		} else {
			c.fail("Failed to submit pre-registration: " + err.Error())
		}
		return err
	}

	c.logger.Info("pre-registration submitted", "contact", form.Contact, "visit_date", form.VisitDate)
	c.notify(KindSuccess, MsgPreRegSubmitted)
	c.mu.Lock()
	c.preReg = PreRegistrationForm{}
	c.preRegDone = true
	c.mu.Unlock()
	c.changed()
	return nil
}

// SubmitFeedback sends a feedback record.
func (c *Console) SubmitFeedback(ctx context.Context, form FeedbackForm) error {
	c.mu.Lock()
	c.feedback = form
	c.mu.Unlock()

	if err := form.Validate(); err != nil {
		c.fail(err.Error())
		return err
	}

	res, err := c.backend.SubmitFeedback(ctx, form.Request())
	if err != nil {
		c.fail("Feedback submission failed: " + err.Error())
		return err
	}

	c.succeed(res.Message, "Feedback submitted successfully!")
	c.mu.Lock()
	c.feedback = FeedbackForm{}
	c.mu.Unlock()
	c.changed()
	return nil
}

// OpenNotifications opens the pre-registration feed and refreshes it.
func (c *Console) OpenNotifications(ctx context.Context) error {
	c.mu.Lock()
	c.feedOpen = true
	c.mu.Unlock()
	return c.RefreshPending(ctx)
}

// CloseNotifications closes the feed.
func (c *Console) CloseNotifications() {
	c.mu.Lock()
	c.feedOpen = false
	c.mu.Unlock()
	c.changed()
}

// RefreshPending fetches the pending pre-registrations.
func (c *Console) RefreshPending(ctx context.Context) error {
	list, err := c.backend.PendingPreRegistrations(ctx)
	c.ApplyPending(list, err)
	return err
}

// ApplyPending replaces the pending list. A failed fetch hides the badge.
// It is the poller's update hook.
func (c *Console) ApplyPending(list []backend.PreRegistration, err error) {
	if err != nil {
		c.logger.Warn("pending pre-registrations unavailable", "error", err)
		list = nil
	}
	c.mu.Lock()
	c.pending = append([]backend.PreRegistration(nil), list...)
	c.mu.Unlock()
	c.changed()
}

// PendingCount is the badge value.
func (c *Console) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Console) removePending(id int64) {
	c.mu.Lock()
	kept := c.pending[:0:0]
	for _, p := range c.pending {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	c.pending = kept
	c.mu.Unlock()
	c.changed()
}

// Approve approves a pre-registration, then refreshes the feed and the admin
// table.
func (c *Console) Approve(ctx context.Context, id int64) error {
	res, err := c.backend.Approve(ctx, id)
	if err != nil {
		c.fail("Approval failed: " + err.Error())
		return err
	}
	c.removePending(id)
	c.succeed(res.Message, "Pre-registration approved.")
	_ = c.RefreshPending(ctx)
	_ = c.RefreshHistory(ctx, TableAdmin, "")
	return nil
}

// Decline declines a pre-registration and refreshes the feed.
func (c *Console) Decline(ctx context.Context, id int64) error {
	res, err := c.backend.Decline(ctx, id)
	if err != nil {
		c.fail("Decline failed: " + err.Error())
		return err
	}
	c.removePending(id)
	c.succeed(res.Message, "Pre-registration declined.")
	_ = c.RefreshPending(ctx)
	return nil
}

// ShareLink is the pre-registration URL encoded into a visitor's QR code.
func (c *Console) ShareLink(contact string) string {
	return c.shareBaseURL + "/preregister?contact=" + url.QueryEscape(contact)
}

// GenerateQR requests a QR image for contact and derives its share links.
func (c *Console) GenerateQR(ctx context.Context, contact string) error {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		c.fail(MsgContactRequired)
		return invalid(MsgContactRequired)
	}

	img, err := c.backend.GenerateQR(ctx, contact)
	if err != nil {
		c.fail("QR code generation failed: " + err.Error())
		return err
	}

	link := c.ShareLink(contact)
	c.mu.Lock()
	c.qrVersion++
	c.qr = &qrState{
		view: QRView{
			Contact:      contact,
			ShareLink:    link,
			WhatsAppLink: "https://wa.me/?text=" + url.QueryEscape(whatsAppSharePrefix+link),
			Version:      c.qrVersion,
		},
		image: img,
	}
	c.mu.Unlock()
	c.notify(KindSuccess, MsgQRGenerated)
	c.changed()
	return nil
}

// QRImage returns the last generated QR image.
func (c *Console) QRImage() (backend.File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.qr == nil {
		return backend.File{}, false
	}
	return c.qr.image, true
}

// Export downloads the visitor log CSV.
func (c *Console) Export(ctx context.Context) (backend.File, error) {
	file, err := c.backend.Export(ctx)
	if err != nil {
		c.fail("Export failed: " + err.Error())
		return backend.File{}, err
	}
	if file.Name == "" {
		file.Name = backend.DefaultExportName
	}
	c.notify(KindSuccess, MsgExported)
	return file, nil
}

// Snapshot returns a consistent copy of the view model.
func (c *Console) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Section:  c.section,
		Stats:    StatsView{Stats: c.stats, Loaded: c.statsLoaded},
		Visitors: c.tableView(TableVisitors),
		Admin:    c.tableView(TableAdmin),
		Pending: PendingView{
			Open:  c.feedOpen,
			Badge: len(c.pending),
			Items: make([]PendingItem, 0, len(c.pending)),
		},
		CheckIn:         c.checkIn,
		CheckOut:        c.checkOut,
		PreRegistration: PreRegistrationView{Form: c.preReg, Submitted: c.preRegDone},
		Feedback:        c.feedback,
		Notifications:   c.notes.Active(),
	}
	for _, p := range c.pending {
		snap.Pending.Items = append(snap.Pending.Items, PendingItem{
			ID:        p.ID,
			Name:      p.Name,
			Contact:   p.Contact,
			Email:     orNA(p.Email),
			Company:   p.Company,
			Purpose:   p.Purpose,
			VisitDate: p.VisitDate,
			VisitTime: p.VisitTime,
		})
	}
	if c.qr != nil {
		view := c.qr.view
		snap.QR = &view
	}
	return snap
}

// tableView must be called with c.mu held.
func (c *Console) tableView(table Table) TableView {
	ts := c.tables[table]
	admin := table == TableAdmin
	view := TableView{
		ID:     table,
		Search: ts.search,
		Loaded: ts.loaded,
		Empty:  ts.loaded && len(ts.rows) == 0,
		Admin:  admin,
		Rows:   make([]VisitorRow, 0, len(ts.rows)),
	}
	for _, v := range ts.rows {
		view.Rows = append(view.Rows, newVisitorRow(v, admin))
	}
	return view
}
