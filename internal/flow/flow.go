// Package flow drives the guided signature-entry state machine: resolve an
// entity, collect an expiry date, collect an optional note, commit. It also
// covers the shorter registration flow that only collects a name.
package flow

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
	dErrors "sigreg/pkg/domain-errors"
	"sigreg/pkg/platform/sentinel"
)

// Step is the flow's current wait state. The zero value is idle.
type Step int

const (
	StepIdle Step = iota
	StepAwaitName
	StepAwaitExpiry
	StepAwaitNote
)

// Entry is the per-session in-progress data. It lives inside the session
// struct and is discarded wholesale on cancel or commit.
type Entry struct {
	Step     Step
	EntityID uuid.UUID
	Name     string
	Kind     registry.Kind
	GroupID  *uuid.UUID
	Expiry   *time.Time
	Note     *string

	// Register marks the registration-only flow: collect a name, create the
	// entity, stop. No expiry or note steps.
	Register bool
}

// Active reports whether the flow is awaiting input.
func (e *Entry) Active() bool { return e.Step != StepIdle }

// Store is the slice of the registry the flow mutates.
type Store interface {
	GetEntityWithSignature(ctx context.Context, id uuid.UUID) (registry.EntityRow, error)
	CreateEntity(ctx context.Context, name string, kind registry.Kind, groupID *uuid.UUID) (uuid.UUID, error)
	UpsertSignature(ctx context.Context, entityID uuid.UUID, expiry time.Time, note *string) error
}

// GroupNamer resolves a group id to its display name for confirmations.
type GroupNamer interface {
	GetGroup(ctx context.Context, id uuid.UUID) (registry.Group, error)
}

// Flow advances Entry state machines. Stateless itself; safe for concurrent
// use across sessions.
type Flow struct {
	store    Store
	groups   GroupNamer
	logger   *slog.Logger
	reserved map[string]struct{}
}

type Option func(f *Flow)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Flow) {
		f.logger = logger
	}
}

// WithReservedLabels rejects the given menu labels as note text, so a user
// tapping a stale menu button mid-flow is re-prompted instead of saving the
// label as their note.
func WithReservedLabels(labels []string) Option {
	return func(f *Flow) {
		for _, l := range labels {
			f.reserved[l] = struct{}{}
		}
	}
}

// New constructs a Flow.
func New(store Store, groups GroupNamer, opts ...Option) *Flow {
	f := &Flow{store: store, groups: groups, logger: slog.Default(), reserved: map[string]struct{}{}}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Outcome is the user-visible result of one flow step. Done means the flow
// ended (committed, registered, or aborted) and the entry was cleared.
type Outcome struct {
	Reply string
	Done  bool
}

const promptExpiry = "Enter the expiry date, DD.MM.YYYY or YYYY-MM-DD."

// BindEntity starts a signature flow against an entity picked from the tree.
func (f *Flow) BindEntity(ctx context.Context, e *Entry, entityID uuid.UUID) (string, error) {
	row, err := f.store.GetEntityWithSignature(ctx, entityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "that entry no longer exists")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entity")
	}

	*e = Entry{Step: StepAwaitExpiry, EntityID: row.ID, Name: row.Name, Kind: row.Kind}
	prompt := fmt.Sprintf("%s %s.\n%s", render.KindTag(row.Kind), row.Name, promptExpiry)
	if row.HasSignature() {
		prompt = fmt.Sprintf("%s %s, current signature until %s.\n%s",
			render.KindTag(row.Kind), row.Name, render.FormatDate(*row.Expiry), promptExpiry)
	}
	return prompt, nil
}

// AwaitName starts a flow at the free-text name step. With register true the
// flow ends right after the entity is created; otherwise it continues into
// expiry and note collection for the new entity.
func (f *Flow) AwaitName(e *Entry, kind registry.Kind, groupID *uuid.UUID, register bool) string {
	*e = Entry{Step: StepAwaitName, Kind: kind, GroupID: groupID, Register: register}
	if register {
		return "Type the full name of the new employee."
	}
	return "Type the name of the new entry."
}

// Cancel discards all in-progress data.
func (f *Flow) Cancel(e *Entry) {
	*e = Entry{}
}

// HandleText advances the flow with one free-text message. Validation and
// conflict problems come back as a re-prompt in the Outcome with the state
// unchanged; only internal failures return an error.
func (f *Flow) HandleText(ctx context.Context, e *Entry, text string) (Outcome, error) {
	text = strings.TrimSpace(text)

	switch e.Step {
	case StepAwaitName:
		return f.handleName(ctx, e, text)
	case StepAwaitExpiry:
		return f.handleExpiry(ctx, e, text)
	case StepAwaitNote:
		return f.handleNote(ctx, e, text)
	}
	return Outcome{}, dErrors.New(dErrors.CodeValidation, "no entry in progress")
}

// SkipNote commits the pending signature without a note. Valid only at the
// note step.
func (f *Flow) SkipNote(ctx context.Context, e *Entry) (Outcome, error) {
	if e.Step != StepAwaitNote {
		return Outcome{}, dErrors.New(dErrors.CodeValidation, "nothing to skip")
	}
	e.Note = nil
	return f.commit(ctx, e)
}

func (f *Flow) handleName(ctx context.Context, e *Entry, name string) (Outcome, error) {
	if name == "" {
		return Outcome{Reply: "The name cannot be empty, try again."}, nil
	}

	id, err := f.store.CreateEntity(ctx, name, e.Kind, e.GroupID)
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return Outcome{Reply: fmt.Sprintf("%q is already registered, type another name.", name)}, nil
	case err != nil:
		return Outcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create entity")
	}
	e.EntityID = id
	e.Name = name

	if e.Register {
		reply := fmt.Sprintf("%s %s added to the registry.", render.KindTag(e.Kind), e.Name)
		if e.GroupID != nil {
			if g, err := f.groups.GetGroup(ctx, *e.GroupID); err == nil {
				reply = fmt.Sprintf("%s %s added to %s.", render.KindTag(e.Kind), e.Name, g.Name)
			}
		}
		f.Cancel(e)
		return Outcome{Reply: reply, Done: true}, nil
	}

	e.Step = StepAwaitExpiry
	return Outcome{Reply: promptExpiry}, nil
}

func (f *Flow) handleExpiry(ctx context.Context, e *Entry, text string) (Outcome, error) {
	expiry, err := render.ParseDate(text)
	if err != nil {
		return Outcome{Reply: fmt.Sprintf("Could not read %q as a date. %s", text, promptExpiry)}, nil
	}
	e.Expiry = &expiry

	// Organizations have no note step.
	if e.Kind == registry.KindOrg {
		return f.commit(ctx, e)
	}
	e.Step = StepAwaitNote
	return Outcome{Reply: "Add a note (token location, issuer) or press Skip."}, nil
}

func (f *Flow) handleNote(ctx context.Context, e *Entry, text string) (Outcome, error) {
	if text == "" {
		return Outcome{Reply: "The note cannot be empty. Type it, or press Skip."}, nil
	}
	if _, ok := f.reserved[text]; ok {
		return Outcome{Reply: "That is a menu button, not a note. Type the note text, or press Skip."}, nil
	}
	e.Note = &text
	return f.commit(ctx, e)
}

func (f *Flow) commit(ctx context.Context, e *Entry) (Outcome, error) {
	if e.EntityID == uuid.Nil || e.Expiry == nil {
		f.logger.Error("entry flow reached commit without required fields",
			"entity_id", e.EntityID, "step", e.Step)
		f.Cancel(e)
		return Outcome{Reply: "Insufficient data, the operation was cancelled.", Done: true}, nil
	}

	if err := f.store.UpsertSignature(ctx, e.EntityID, *e.Expiry, e.Note); err != nil {
		f.Cancel(e)
		return Outcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save signature")
	}

	reply := fmt.Sprintf("Saved: %s %s, valid until %s.",
		render.KindTag(e.Kind), e.Name, render.FormatDate(*e.Expiry))
	if e.Note != nil {
		reply += "\nNote: " + *e.Note
	}
	f.Cancel(e)
	return Outcome{Reply: reply, Done: true}, nil
}
