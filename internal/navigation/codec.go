package navigation

import "strings"

// Action is a navigation transition carried in a button payload.
type Action string

const (
	ActionEnter  Action = "enter"
	ActionUp     Action = "up"
	ActionShow   Action = "show"
	ActionSelect Action = "select"
	ActionExit   Action = "exit"
)

const prefix = "tree"

// Command is a decoded button payload.
type Command struct {
	Mode    Mode
	Action  Action
	Payload string
}

// Encode packs a navigation command into the "tree|mode|action|payload"
// button payload form.
func Encode(m Mode, a Action, payload string) string {
	return strings.Join([]string{prefix, string(m), string(a), payload}, "|")
}

// Decode parses a button payload. ok is false for payloads that are not
// navigation commands or that name an unknown mode or action.
func Decode(s string) (Command, bool) {
	parts := strings.SplitN(s, "|", 4)
	if len(parts) != 4 || parts[0] != prefix {
		return Command{}, false
	}
	cmd := Command{Mode: Mode(parts[1]), Action: Action(parts[2]), Payload: parts[3]}
	if !cmd.Mode.Valid() {
		return Command{}, false
	}
	switch cmd.Action {
	case ActionEnter, ActionUp, ActionShow, ActionSelect, ActionExit:
		return cmd, true
	}
	return Command{}, false
}
