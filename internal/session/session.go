// Package session owns the per-chat conversational state and the router
// that dispatches inbound events to the navigation engine, the entry flow,
// or the menu handlers.
package session

import (
	"sync"

	"sigreg/internal/flow"
	"sigreg/internal/navigation"
	"sigreg/internal/transport"
)

// Menu is the reply-keyboard cursor: which label set the chat currently
// shows. The labels double as the text commands the router accepts.
type Menu string

const (
	MenuMain         Menu = "main"
	MenuInfo         Menu = "info"
	MenuAdd          Menu = "add"
	MenuAddKind      Menu = "add-kind"
	MenuRegisterKind Menu = "register-kind"
	MenuDelete       Menu = "delete"
)

// Menu labels. The full set is reserved: the entry flow refuses them as
// note text so a stray tap never becomes data.
const (
	labelInfo     = "Info"
	labelAdd      = "Add"
	labelEdit     = "Edit"
	labelDelete   = "Delete"
	labelBrowse   = "Browse"
	labelNext10   = "Next 10"
	labelNext30   = "Next 30"
	labelAll      = "All"
	labelAddSig   = "Add signature"
	labelRegister = "Add to registry"
	labelOrg      = "Organization"
	labelPerson   = "Person"
	labelDelSig   = "Delete signature"
	labelDelReg   = "Delete from registry"
	labelBack     = "Back"
)

// ReservedLabels returns every menu label. Wire this into the entry flow
// so menu taps are rejected as note text.
func ReservedLabels() []string {
	return []string{
		labelInfo, labelAdd, labelEdit, labelDelete, labelBrowse,
		labelNext10, labelNext30, labelAll,
		labelAddSig, labelRegister, labelOrg, labelPerson,
		labelDelSig, labelDelReg, labelBack,
	}
}

// keyboard returns the reply keyboard for a menu.
func keyboard(m Menu) [][]string {
	switch m {
	case MenuInfo:
		return [][]string{{labelNext10, labelNext30}, {labelAll}, {labelBack}}
	case MenuAdd:
		return [][]string{{labelAddSig, labelRegister}, {labelBack}}
	case MenuAddKind, MenuRegisterKind:
		return [][]string{{labelOrg, labelPerson}, {labelBack}}
	case MenuDelete:
		return [][]string{{labelDelSig, labelDelReg}, {labelBack}}
	default:
		return [][]string{{labelInfo, labelAdd}, {labelEdit, labelDelete}, {labelBrowse}}
	}
}

// Session is the ephemeral state of one chat. Never persisted; lost on
// restart by design (the registry itself is not).
type Session struct {
	mu sync.Mutex

	ChatID  int64
	Menu    Menu
	Nav     navigation.State
	Entry   flow.Entry
	TreeMsg *transport.MessageRef
}

// reset drops everything except the chat id, returning the session to the
// main menu with no flow or tree in progress.
func (s *Session) reset() {
	s.Menu = MenuMain
	s.Nav = navigation.State{}
	s.Entry = flow.Entry{}
	s.TreeMsg = nil
}

// Manager hands out sessions keyed by chat id, creating them on first use.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{sessions: map[int64]*Session{}}
}

// Get returns the session for chatID, creating it if absent. The returned
// session is shared; callers must hold its lock while handling an event.
func (m *Manager) Get(chatID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	if !ok {
		s = &Session{ChatID: chatID, Menu: MenuMain}
		m.sessions[chatID] = s
	}
	return s
}
