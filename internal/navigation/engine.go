package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"sigreg/internal/registry"
	"sigreg/internal/render"
	"sigreg/internal/transport"
	dErrors "sigreg/pkg/domain-errors"
	"sigreg/pkg/platform/sentinel"
)

// Store is the read-only slice of the registry the engine needs.
type Store interface {
	GetGroup(ctx context.Context, id uuid.UUID) (registry.Group, error)
	ListGroups(ctx context.Context, parentID *uuid.UUID) ([]registry.Group, error)
	ListGroupPersons(ctx context.Context, groupID uuid.UUID) ([]registry.EntityRow, error)
	GetGroupLegalEntity(ctx context.Context, groupID uuid.UUID) (registry.Entity, error)
	GetEntityWithSignature(ctx context.Context, id uuid.UUID) (registry.EntityRow, error)
}

// Engine renders tree screens and applies navigation transitions.
type Engine struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

type Option func(e *Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the wall clock, used by tests to pin "today" for
// status lines.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New constructs an Engine.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the outcome of one navigation step. Exactly one field is set:
// Screen for a re-render, Selection for a terminal pick, Exited when the
// session returned to idle.
type Result struct {
	Screen    *transport.Screen
	Selection *Selection
	Exited    bool
}

// Start resets st to the root of mode and renders the first screen.
func (e *Engine) Start(ctx context.Context, st *State, mode Mode) (transport.Screen, error) {
	if !mode.Valid() {
		return transport.Screen{}, dErrors.Newf(dErrors.CodeValidation, "unknown navigation mode %q", mode)
	}
	*st = State{Mode: mode, View: ViewGroups}
	return e.render(ctx, st)
}

// Handle applies one decoded command to st. A command whose mode differs
// from the session's stored mode means the session is stale (the user is
// pressing buttons of an older screen); the state is discarded and the tree
// restarts at the root of the command's mode.
func (e *Engine) Handle(ctx context.Context, st *State, cmd Command) (Result, error) {
	if st.Mode != cmd.Mode {
		e.logger.Debug("discarding stale navigation state",
			"stored_mode", st.Mode, "requested_mode", cmd.Mode)
		screen, err := e.Start(ctx, st, cmd.Mode)
		if err != nil {
			return Result{}, err
		}
		return Result{Screen: &screen}, nil
	}

	switch cmd.Action {
	case ActionEnter:
		id, err := uuid.Parse(cmd.Payload)
		if err != nil {
			return Result{}, dErrors.Newf(dErrors.CodeValidation, "bad group id %q", cmd.Payload)
		}
		group, err := e.store.GetGroup(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return Result{}, dErrors.New(dErrors.CodeNotFound, "group no longer exists")
			}
			return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group")
		}
		st.Path = append(st.Path, Crumb{ID: group.ID, Name: group.Name})
		st.View = ViewGroups

	case ActionUp:
		if len(st.Path) > 0 {
			st.Path = st.Path[:len(st.Path)-1]
		}
		st.View = ViewGroups

	case ActionShow:
		if st.Mode != ModeBrowse {
			return Result{}, dErrors.New(dErrors.CodeValidation, "sub-views exist only while browsing")
		}
		switch View(cmd.Payload) {
		case ViewGroups, ViewEmployees, ViewLegal:
			st.View = View(cmd.Payload)
		default:
			return Result{}, dErrors.Newf(dErrors.CodeValidation, "unknown view %q", cmd.Payload)
		}

	case ActionSelect:
		sel, err := e.selection(st, cmd.Payload)
		if err != nil {
			return Result{}, err
		}
		return Result{Selection: sel}, nil

	case ActionExit:
		*st = State{}
		return Result{Exited: true}, nil
	}

	screen, err := e.render(ctx, st)
	if err != nil {
		return Result{}, err
	}
	return Result{Screen: &screen}, nil
}

// selection resolves a select payload. Register-person picks the current
// group; every other picker picks an entity by id.
func (e *Engine) selection(st *State, payload string) (*Selection, error) {
	if st.Mode == ModeRegisterPerson {
		cur := st.Current()
		if cur == nil {
			return nil, dErrors.New(dErrors.CodeValidation, "no group selected")
		}
		return &Selection{Mode: st.Mode, GroupID: cur.ID}, nil
	}
	id, err := uuid.Parse(payload)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeValidation, "bad entity id %q", payload)
	}
	return &Selection{Mode: st.Mode, EntityID: id}, nil
}

// =============================================================================
// Rendering
// =============================================================================

func (e *Engine) render(ctx context.Context, st *State) (transport.Screen, error) {
	if st.Mode == ModeBrowse {
		switch st.View {
		case ViewEmployees:
			return e.renderEmployees(ctx, st)
		case ViewLegal:
			return e.renderLegal(ctx, st)
		}
	}
	return e.renderNode(ctx, st)
}

// renderNode draws the group list at the current node, plus the mode's
// selectable items and navigation controls.
func (e *Engine) renderNode(ctx context.Context, st *State) (transport.Screen, error) {
	var parentID *uuid.UUID
	if cur := st.Current(); cur != nil {
		parentID = &cur.ID
	}
	children, err := e.store.ListGroups(ctx, parentID)
	if err != nil {
		return transport.Screen{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list groups")
	}

	var buttons [][]transport.Button
	for _, g := range children {
		buttons = append(buttons, []transport.Button{{
			Label:  g.Name,
			Action: Encode(st.Mode, ActionEnter, g.ID.String()),
		}})
	}

	if parentID != nil {
		switch st.Mode {
		case ModeBrowse:
			if _, err := e.store.GetGroupLegalEntity(ctx, *parentID); err == nil {
				buttons = append(buttons, []transport.Button{{
					Label:  "Legal signature",
					Action: Encode(st.Mode, ActionShow, string(ViewLegal)),
				}})
			} else if !errors.Is(err, sentinel.ErrNotFound) {
				return transport.Screen{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load legal entity")
			}
			buttons = append(buttons, []transport.Button{{
				Label:  "Employees",
				Action: Encode(st.Mode, ActionShow, string(ViewEmployees)),
			}})

		case ModeRegisterPerson:
			buttons = append(buttons, []transport.Button{{
				Label:  "Add employee here",
				Action: Encode(st.Mode, ActionSelect, ""),
			}})

		default:
			picks, err := e.pickButtons(ctx, st, *parentID)
			if err != nil {
				return transport.Screen{}, err
			}
			buttons = append(buttons, picks...)
		}
	}

	buttons = append(buttons, e.controlRow(st))

	return transport.Screen{Text: e.header(st), Buttons: buttons}, nil
}

// pickButtons lists the entities the current picker mode may select at the
// given group, one button per entity.
func (e *Engine) pickButtons(ctx context.Context, st *State, groupID uuid.UUID) ([][]transport.Button, error) {
	orgs, persons := st.Mode.targets()
	var buttons [][]transport.Button

	if orgs {
		legal, err := e.store.GetGroupLegalEntity(ctx, groupID)
		switch {
		case err == nil:
			buttons = append(buttons, []transport.Button{{
				Label:  render.KindTag(legal.Kind) + " " + legal.Name,
				Action: Encode(st.Mode, ActionSelect, legal.ID.String()),
			}})
		case !errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load legal entity")
		}
	}
	if persons {
		rows, err := e.store.ListGroupPersons(ctx, groupID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list employees")
		}
		for _, row := range rows {
			buttons = append(buttons, []transport.Button{{
				Label:  render.KindTag(row.Kind) + " " + row.Name,
				Action: Encode(st.Mode, ActionSelect, row.ID.String()),
			}})
		}
	}
	return buttons, nil
}

func (e *Engine) renderEmployees(ctx context.Context, st *State) (transport.Screen, error) {
	cur := st.Current()
	if cur == nil {
		return transport.Screen{}, dErrors.New(dErrors.CodeValidation, "no group selected")
	}
	rows, err := e.store.ListGroupPersons(ctx, cur.ID)
	if err != nil {
		return transport.Screen{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list employees")
	}

	text := fmt.Sprintf("Employees of %s:\n\n%s", cur.Name, render.StatusList(rows, e.now()))
	if len(rows) == 0 {
		text = fmt.Sprintf("%s has no registered employees.", cur.Name)
	}
	return transport.Screen{Text: text, Buttons: [][]transport.Button{{
		{Label: "Back", Action: Encode(st.Mode, ActionShow, string(ViewGroups))},
	}}}, nil
}

func (e *Engine) renderLegal(ctx context.Context, st *State) (transport.Screen, error) {
	cur := st.Current()
	if cur == nil {
		return transport.Screen{}, dErrors.New(dErrors.CodeValidation, "no group selected")
	}

	var text string
	legal, err := e.store.GetGroupLegalEntity(ctx, cur.ID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		text = fmt.Sprintf("%s has no registered legal entity.", cur.Name)
	case err != nil:
		return transport.Screen{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load legal entity")
	default:
		row, err := e.store.GetEntityWithSignature(ctx, legal.ID)
		if err != nil {
			return transport.Screen{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load legal signature")
		}
		text = render.StatusLine(row, e.now())
	}

	return transport.Screen{Text: text, Buttons: [][]transport.Button{{
		{Label: "Back", Action: Encode(st.Mode, ActionShow, string(ViewGroups))},
	}}}, nil
}

// controlRow is the bottom row of every node screen: Up while below the
// root, always Close.
func (e *Engine) controlRow(st *State) []transport.Button {
	row := []transport.Button{}
	if len(st.Path) > 0 {
		row = append(row, transport.Button{Label: "Up", Action: Encode(st.Mode, ActionUp, "")})
	}
	return append(row, transport.Button{Label: "Close", Action: Encode(st.Mode, ActionExit, "")})
}

func (e *Engine) header(st *State) string {
	title := map[Mode]string{
		ModeBrowse:          "Registry",
		ModeAddOrg:          "Pick an organization to add a signature for",
		ModeAddPerson:       "Pick a person to add a signature for",
		ModeUpdate:          "Pick whose signature to update",
		ModeDeleteSignature: "Pick whose signature to delete",
		ModeDeleteRegistry:  "Pick who to remove from the registry",
		ModeRegisterPerson:  "Pick a group for the new employee",
	}[st.Mode]

	if len(st.Path) == 0 {
		return title
	}
	names := make([]string, 0, len(st.Path))
	for _, c := range st.Path {
		names = append(names, c.Name)
	}
	return title + "\n" + strings.Join(names, " / ")
}
