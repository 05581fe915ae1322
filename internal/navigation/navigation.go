// Package navigation renders tree and picker views over the registry and
// advances a per-session path stack in response to navigation actions. It
// never mutates the registry; terminal selections are handed back to the
// caller as a Selection.
package navigation

import (
	"github.com/google/uuid"
)

// Mode is the purpose a tree view is shown for. The set is closed; anything
// outside it fails to parse and is treated as a no-op by the router.
type Mode string

const (
	ModeBrowse          Mode = "browse"
	ModeAddOrg          Mode = "addorg"
	ModeAddPerson       Mode = "addperson"
	ModeUpdate          Mode = "update"
	ModeDeleteSignature Mode = "delsig"
	ModeDeleteRegistry  Mode = "delreg"
	ModeRegisterPerson  Mode = "regperson"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeBrowse, ModeAddOrg, ModeAddPerson, ModeUpdate,
		ModeDeleteSignature, ModeDeleteRegistry, ModeRegisterPerson:
		return true
	}
	return false
}

// targets reports which entity kinds the mode's picker selects.
func (m Mode) targets() (orgs, persons bool) {
	switch m {
	case ModeAddOrg:
		return true, false
	case ModeAddPerson:
		return false, true
	case ModeUpdate, ModeDeleteSignature, ModeDeleteRegistry:
		return true, true
	}
	return false, false
}

// View is the browse-mode sub-view at the current node.
type View string

const (
	ViewGroups    View = "groups"
	ViewEmployees View = "employees"
	ViewLegal     View = "legal"
)

// Crumb is one level of the navigation path.
type Crumb struct {
	ID   uuid.UUID
	Name string
}

// State is the per-session navigation state. The zero value is not usable;
// sessions obtain one through Engine.Start.
type State struct {
	Mode Mode
	Path []Crumb
	View View
}

// Current returns the group at the top of the path, or nil at the virtual
// root whose children are the top-level groups.
func (s *State) Current() *Crumb {
	if len(s.Path) == 0 {
		return nil
	}
	return &s.Path[len(s.Path)-1]
}

// Selection is a terminal picker outcome. EntityID is set when an entity was
// picked; GroupID is set for register-person, where the pick is "this group".
type Selection struct {
	Mode     Mode
	EntityID uuid.UUID
	GroupID  uuid.UUID
}
