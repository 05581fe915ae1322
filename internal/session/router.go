package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"sigreg/internal/flow"
	"sigreg/internal/navigation"
	"sigreg/internal/platform/metrics"
	"sigreg/internal/registry"
	"sigreg/internal/render"
	"sigreg/internal/transport"
	dErrors "sigreg/pkg/domain-errors"
	"sigreg/pkg/platform/sentinel"
)

// ActionSkipNote is the button payload that commits a signature without a
// note.
const ActionSkipNote = "flow|skip"

// Confirmation payloads for the two delete paths, with the target id after
// the separator. ActionNoop cancels either.
const (
	actionDeleteSignature = "del:confirm"
	actionDeleteRegistry  = "regdel:confirm"
	ActionNoop            = "noop"
)

// Store is the slice of the registry the router uses directly. Navigation
// and flow carry their own narrower views.
type Store interface {
	AddSubscriber(ctx context.Context, chatID int64) error
	ListUpcomingSignatures(ctx context.Context, limit int, from time.Time) ([]registry.EntityRow, error)
	ListAllEntities(ctx context.Context) ([]registry.EntityRow, error)
	GetEntityWithSignature(ctx context.Context, id uuid.UUID) (registry.EntityRow, error)
	DeactivateSignature(ctx context.Context, entityID uuid.UUID) error
	DeleteEntity(ctx context.Context, id uuid.UUID) error
}

// Router dispatches inbound chat events. One event per session is handled
// at a time; different sessions proceed concurrently.
type Router struct {
	store     Store
	nav       *navigation.Engine
	flow      *flow.Flow
	messenger transport.Messenger
	sessions  *Manager
	logger    *slog.Logger
	metrics   *metrics.Metrics
	allowed   map[int64]struct{}
	now       func() time.Time
}

type Option func(r *Router)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithAllowedChats restricts the bot to the given chat ids. An empty list
// leaves access open.
func WithAllowedChats(ids []int64) Option {
	return func(r *Router) {
		for _, id := range ids {
			r.allowed[id] = struct{}{}
		}
	}
}

// WithClock overrides the wall clock for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// New constructs a Router.
func New(store Store, nav *navigation.Engine, fl *flow.Flow, messenger transport.Messenger, opts ...Option) *Router {
	r := &Router{
		store:     store,
		nav:       nav,
		flow:      fl,
		messenger: messenger,
		sessions:  NewManager(),
		logger:    slog.Default(),
		allowed:   map[int64]struct{}{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleEvent processes one inbound event end to end, including all
// outbound replies. Returns an error only for internal failures; everything
// user-correctable is answered in chat.
func (r *Router) HandleEvent(ctx context.Context, ev transport.Event) error {
	if len(r.allowed) > 0 {
		if _, ok := r.allowed[ev.ChatID]; !ok {
			return r.messenger.Notify(ctx, ev.ChatID, "You do not have access to this bot.")
		}
	}
	if r.metrics != nil {
		r.metrics.EventHandled(string(ev.Kind))
	}

	sess := r.sessions.Get(ev.ChatID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	var err error
	switch ev.Kind {
	case transport.KindText:
		err = r.handleText(ctx, sess, strings.TrimSpace(ev.Text))
	case transport.KindAction:
		err = r.handleAction(ctx, sess, ev.Action)
	default:
		return nil
	}
	if err != nil {
		return r.answerError(ctx, sess, err)
	}
	return nil
}

// answerError turns a handler error into a chat reply. Only internal
// failures propagate to the caller.
func (r *Router) answerError(ctx context.Context, sess *Session, err error) error {
	code := dErrors.CodeOf(err)
	switch code {
	case dErrors.CodeNotFound, dErrors.CodeConflict, dErrors.CodeValidation, dErrors.CodePreconditionFailed:
		return r.messenger.Notify(ctx, sess.ChatID, dErrors.MessageOf(err))
	}
	r.logger.Error("event handling failed", "chat_id", sess.ChatID, "error", err)
	return err
}

// =============================================================================
// Text events
// =============================================================================

func (r *Router) handleText(ctx context.Context, sess *Session, text string) error {
	// "Back" wins over everything, including a flow awaiting input.
	if text == labelBack {
		return r.backToMain(ctx, sess, "Main menu.")
	}
	if strings.HasPrefix(text, "/") {
		return r.handleCommand(ctx, sess, text)
	}
	if sess.Entry.Active() {
		return r.advanceFlow(ctx, sess, text)
	}
	return r.handleMenu(ctx, sess, text)
}

func (r *Router) handleCommand(ctx context.Context, sess *Session, cmd string) error {
	switch cmd {
	case "/start":
		if err := r.store.AddSubscriber(ctx, sess.ChatID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to subscribe chat")
		}
		sess.reset()
		return r.send(ctx, sess, transport.Screen{
			Text: "Signature registry bot. You are subscribed to expiry reminders.\n" +
				"Use the menu below, or /help for commands.",
			Menu: keyboard(MenuMain),
		})

	case "/help":
		return r.send(ctx, sess, transport.Screen{
			Text: "/start - subscribe and show the menu\n" +
				"/all - full registry\n" +
				"/next - next 10 expiring signatures\n" +
				"/add - add a signature or registry entry\n" +
				"/update - update a signature\n" +
				"/delete - delete a signature\n" +
				"/registry_delete - remove an entry from the registry",
			Menu: keyboard(sess.Menu),
		})

	case "/all":
		return r.sendAll(ctx, sess)
	case "/next":
		return r.sendUpcoming(ctx, sess, 10)
	case "/add":
		return r.showMenu(ctx, sess, MenuAdd, "What do you want to add?")
	case "/update":
		return r.openTree(ctx, sess, navigation.ModeUpdate)
	case "/delete":
		return r.showMenu(ctx, sess, MenuDelete, "What do you want to delete?")
	case "/registry_delete":
		return r.openTree(ctx, sess, navigation.ModeDeleteRegistry)
	}
	return r.messenger.Notify(ctx, sess.ChatID, "Unknown command. Try /help.")
}

func (r *Router) handleMenu(ctx context.Context, sess *Session, text string) error {
	switch sess.Menu {
	case MenuInfo:
		switch text {
		case labelNext10:
			return r.sendUpcoming(ctx, sess, 10)
		case labelNext30:
			return r.sendUpcoming(ctx, sess, 30)
		case labelAll:
			return r.sendAll(ctx, sess)
		}

	case MenuAdd:
		switch text {
		case labelAddSig:
			return r.showMenu(ctx, sess, MenuAddKind, "Whose signature is it?")
		case labelRegister:
			return r.showMenu(ctx, sess, MenuRegisterKind, "Who do you want to add?")
		}

	case MenuAddKind:
		switch text {
		case labelOrg:
			return r.openTree(ctx, sess, navigation.ModeAddOrg)
		case labelPerson:
			// The picker and a free-text name race on purpose: picking an
			// entry binds it, typing a fresh name creates it.
			if err := r.openTree(ctx, sess, navigation.ModeAddPerson); err != nil {
				return err
			}
			prompt := r.flow.AwaitName(&sess.Entry, registry.KindPerson, nil, false)
			return r.send(ctx, sess, transport.Screen{
				Text: "Pick a person from the tree above, or type a new name.\n" + prompt,
			})
		}

	case MenuRegisterKind:
		switch text {
		case labelOrg:
			return r.messenger.Notify(ctx, sess.ChatID,
				"Organizations are seeded by the administrator and cannot be added from chat.")
		case labelPerson:
			return r.openTree(ctx, sess, navigation.ModeRegisterPerson)
		}

	case MenuDelete:
		switch text {
		case labelDelSig:
			return r.openTree(ctx, sess, navigation.ModeDeleteSignature)
		case labelDelReg:
			return r.openTree(ctx, sess, navigation.ModeDeleteRegistry)
		}

	default: // main menu
		switch text {
		case labelInfo:
			return r.showMenu(ctx, sess, MenuInfo, "What do you want to see?")
		case labelAdd:
			return r.showMenu(ctx, sess, MenuAdd, "What do you want to add?")
		case labelEdit:
			return r.openTree(ctx, sess, navigation.ModeUpdate)
		case labelDelete:
			return r.showMenu(ctx, sess, MenuDelete, "What do you want to delete?")
		case labelBrowse:
			return r.openTree(ctx, sess, navigation.ModeBrowse)
		}
	}

	return r.send(ctx, sess, transport.Screen{
		Text: "Use the menu buttons below, or /help.",
		Menu: keyboard(sess.Menu),
	})
}

// advanceFlow feeds one text message into the entry flow and renders the
// outcome, attaching a Skip button while a note is awaited.
func (r *Router) advanceFlow(ctx context.Context, sess *Session, text string) error {
	out, err := r.flow.HandleText(ctx, &sess.Entry, text)
	if err != nil {
		return err
	}
	return r.sendFlowOutcome(ctx, sess, out)
}

func (r *Router) sendFlowOutcome(ctx context.Context, sess *Session, out flow.Outcome) error {
	screen := transport.Screen{Text: out.Reply}
	if out.Done {
		sess.reset()
		screen.Menu = keyboard(MenuMain)
	} else if sess.Entry.Step == flow.StepAwaitNote {
		screen.Buttons = [][]transport.Button{{{Label: "Skip", Action: ActionSkipNote}}}
	}
	return r.send(ctx, sess, screen)
}

// =============================================================================
// Action events
// =============================================================================

func (r *Router) handleAction(ctx context.Context, sess *Session, action string) error {
	if cmd, ok := navigation.Decode(action); ok {
		return r.handleTree(ctx, sess, cmd)
	}

	head, arg, _ := strings.Cut(action, "|")
	switch {
	case action == ActionSkipNote:
		out, err := r.flow.SkipNote(ctx, &sess.Entry)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeValidation) {
				return r.ackStale(ctx, sess)
			}
			return err
		}
		return r.sendFlowOutcome(ctx, sess, out)

	case head == actionDeleteSignature:
		return r.confirmDeleteSignature(ctx, sess, arg)

	case head == actionDeleteRegistry:
		return r.confirmDeleteRegistry(ctx, sess, arg)

	case action == ActionNoop:
		return r.backToMain(ctx, sess, "Cancelled.")
	}

	return r.ackStale(ctx, sess)
}

// ackStale acknowledges a button whose action is unknown or no longer
// applicable. The user always gets some response.
func (r *Router) ackStale(ctx context.Context, sess *Session) error {
	return r.messenger.Notify(ctx, sess.ChatID, "That button is no longer active.")
}

func (r *Router) handleTree(ctx context.Context, sess *Session, cmd navigation.Command) error {
	res, err := r.nav.Handle(ctx, &sess.Nav, cmd)
	if err != nil {
		return err
	}

	switch {
	case res.Screen != nil:
		if sess.TreeMsg != nil {
			if err := r.messenger.EditScreen(ctx, *sess.TreeMsg, *res.Screen); err == nil {
				return nil
			}
			// The tree message may have been deleted in the chat; fall
			// through to sending a fresh one.
		}
		ref, err := r.messenger.SendScreen(ctx, sess.ChatID, *res.Screen)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to send tree screen")
		}
		sess.TreeMsg = &ref
		return nil

	case res.Selection != nil:
		sess.TreeMsg = nil
		return r.handleSelection(ctx, sess, *res.Selection)

	case res.Exited:
		return r.backToMain(ctx, sess, "Main menu.")
	}
	return nil
}

func (r *Router) handleSelection(ctx context.Context, sess *Session, sel navigation.Selection) error {
	switch sel.Mode {
	case navigation.ModeAddOrg, navigation.ModeAddPerson, navigation.ModeUpdate:
		prompt, err := r.flow.BindEntity(ctx, &sess.Entry, sel.EntityID)
		if err != nil {
			return err
		}
		return r.send(ctx, sess, transport.Screen{Text: prompt})

	case navigation.ModeRegisterPerson:
		prompt := r.flow.AwaitName(&sess.Entry, registry.KindPerson, &sel.GroupID, true)
		return r.send(ctx, sess, transport.Screen{Text: prompt})

	case navigation.ModeDeleteSignature:
		row, err := r.loadRow(ctx, sel.EntityID)
		if err != nil {
			return err
		}
		if !row.HasSignature() {
			return r.messenger.Notify(ctx, sess.ChatID,
				fmt.Sprintf("%s has no active signature to delete.", row.Name))
		}
		return r.send(ctx, sess, transport.Screen{
			Text: "Delete this signature?\n\n" + render.StatusLine(row, r.now()),
			Buttons: [][]transport.Button{{
				{Label: "Delete", Action: actionDeleteSignature + "|" + row.ID.String()},
				{Label: "Cancel", Action: ActionNoop},
			}},
		})

	case navigation.ModeDeleteRegistry:
		row, err := r.loadRow(ctx, sel.EntityID)
		if err != nil {
			return err
		}
		return r.send(ctx, sess, transport.Screen{
			Text: fmt.Sprintf("Remove %s %s from the registry?\n"+
				"All their signatures will be deleted. This cannot be undone.",
				render.KindTag(row.Kind), row.Name),
			Buttons: [][]transport.Button{{
				{Label: "Remove", Action: actionDeleteRegistry + "|" + row.ID.String()},
				{Label: "Cancel", Action: ActionNoop},
			}},
		})
	}
	return r.ackStale(ctx, sess)
}

func (r *Router) confirmDeleteSignature(ctx context.Context, sess *Session, arg string) error {
	id, err := uuid.Parse(arg)
	if err != nil {
		return r.ackStale(ctx, sess)
	}
	if err := r.store.DeactivateSignature(ctx, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate signature")
	}
	return r.backToMain(ctx, sess, "Signature deleted.")
}

func (r *Router) confirmDeleteRegistry(ctx context.Context, sess *Session, arg string) error {
	id, err := uuid.Parse(arg)
	if err != nil {
		return r.ackStale(ctx, sess)
	}
	if err := r.store.DeleteEntity(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "That entry is already gone.")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete entity")
	}
	return r.backToMain(ctx, sess, "Removed from the registry.")
}

// =============================================================================
// Shared replies
// =============================================================================

func (r *Router) send(ctx context.Context, sess *Session, screen transport.Screen) error {
	if _, err := r.messenger.SendScreen(ctx, sess.ChatID, screen); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to send reply")
	}
	return nil
}

func (r *Router) showMenu(ctx context.Context, sess *Session, menu Menu, text string) error {
	sess.Menu = menu
	return r.send(ctx, sess, transport.Screen{Text: text, Menu: keyboard(menu)})
}

// backToMain discards all session state and shows the main menu with the
// given lead text.
func (r *Router) backToMain(ctx context.Context, sess *Session, text string) error {
	sess.reset()
	return r.send(ctx, sess, transport.Screen{Text: text, Menu: keyboard(MenuMain)})
}

func (r *Router) sendUpcoming(ctx context.Context, sess *Session, limit int) error {
	today := registry.DateOnly(r.now())
	rows, err := r.store.ListUpcomingSignatures(ctx, limit, today)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list upcoming signatures")
	}
	if len(rows) == 0 {
		return r.messenger.Notify(ctx, sess.ChatID, "No upcoming signature expirations.")
	}
	return r.send(ctx, sess, transport.Screen{
		Text: fmt.Sprintf("Next %d expiring signatures:\n\n%s", len(rows), render.StatusList(rows, today)),
		Menu: keyboard(sess.Menu),
	})
}

func (r *Router) sendAll(ctx context.Context, sess *Session) error {
	rows, err := r.store.ListAllEntities(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list the registry")
	}
	if len(rows) == 0 {
		return r.messenger.Notify(ctx, sess.ChatID, "The registry is empty.")
	}
	return r.send(ctx, sess, transport.Screen{
		Text: "Full registry:\n\n" + render.StatusList(rows, r.now()),
		Menu: keyboard(sess.Menu),
	})
}

func (r *Router) openTree(ctx context.Context, sess *Session, mode navigation.Mode) error {
	screen, err := r.nav.Start(ctx, &sess.Nav, mode)
	if err != nil {
		return err
	}
	ref, err := r.messenger.SendScreen(ctx, sess.ChatID, screen)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to send tree screen")
	}
	sess.TreeMsg = &ref
	return nil
}

func (r *Router) loadRow(ctx context.Context, id uuid.UUID) (registry.EntityRow, error) {
	row, err := r.store.GetEntityWithSignature(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return registry.EntityRow{}, dErrors.New(dErrors.CodeNotFound, "That entry no longer exists.")
		}
		return registry.EntityRow{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entity")
	}
	return row, nil
}
