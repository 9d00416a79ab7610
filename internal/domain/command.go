package domain

import "strings"

// Command is a user intent produced by the key or speech input surfaces.
type Command int

const (
	CommandNone Command = iota
	CommandConnect
	CommandDisconnect
	CommandTogglePreview
	CommandToggleDepthCommit
	CommandLoadPosition
	CommandSavePosition
	CommandExit
	CommandColor
)

func (c Command) String() string {
	switch c {
	case CommandConnect:
		return "connect"
	case CommandDisconnect:
		return "disconnect"
	case CommandTogglePreview:
		return "toggle-preview"
	case CommandToggleDepthCommit:
		return "toggle-depth-commit"
	case CommandLoadPosition:
		return "load-position"
	case CommandSavePosition:
		return "save-position"
	case CommandExit:
		return "exit"
	case CommandColor:
		return "color"
	default:
		return "none"
	}
}

// CommandForKey maps a key press to a command.
func CommandForKey(key rune) Command {
	switch key {
	case ' ':
		return CommandConnect
	case 'd', 'D':
		return CommandDisconnect
	case 'p', 'P':
		return CommandTogglePreview
	case 'c', 'C':
		return CommandToggleDepthCommit
	case 'l', 'L':
		return CommandLoadPosition
	case 's', 'S':
		return CommandSavePosition
	case 'x', 'X', 0x1b:
		return CommandExit
	default:
		return CommandNone
	}
}

// Colors recognised by the speech surface.
var speechColors = map[string]bool{
	"red": true, "green": true, "blue": true, "yellow": true,
	"aquamarine": true, "white": true, "default": true,
}

// CommandForSpeech maps recognised speech text to a command. Colour names
// return CommandColor together with the normalised colour name.
func CommandForSpeech(text string) (Command, string) {
	t := strings.ToLower(strings.TrimSpace(text))
	switch t {
	case "connect":
		return CommandConnect, ""
	case "disconnect":
		return CommandDisconnect, ""
	case "toggle preview", "preview":
		return CommandTogglePreview, ""
	case "load position":
		return CommandLoadPosition, ""
	case "save position":
		return CommandSavePosition, ""
	case "exit", "quit":
		return CommandExit, ""
	}
	if speechColors[t] {
		return CommandColor, t
	}
	return CommandNone, ""
}
