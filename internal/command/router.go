// Package command decodes raw chat messages into intents.
package command

import (
	"strings"
	"unicode"
)

// Intent is one decoded chat message. The set of implementations is closed:
// FreeText, DraftCommand, VarsCommand and UnknownCommand.
type Intent interface {
	intent()
}

// FreeText is any message that is not a slash command.
type FreeText struct {
	Text string
}

// DraftCommand is "/draft [template id or description]".
type DraftCommand struct {
	Args string
}

// VarsCommand is "/vars".
type VarsCommand struct{}

// UnknownCommand is a slash command the router does not recognize.
type UnknownCommand struct {
	Name string
}

func (FreeText) intent()       {}
func (DraftCommand) intent()   {}
func (VarsCommand) intent()    {}
func (UnknownCommand) intent() {}

// Route decodes message. It holds no state and performs no I/O.
func Route(message string) Intent {
	trimmed := strings.TrimSpace(message)
	if !strings.HasPrefix(trimmed, "/") {
		return FreeText{Text: trimmed}
	}

	name, args := splitCommand(trimmed[1:])
	switch strings.ToLower(name) {
	case "draft":
		return DraftCommand{Args: unquote(args)}
	case "vars":
		return VarsCommand{}
	default:
		return UnknownCommand{Name: name}
	}
}

func splitCommand(s string) (string, string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// unquote strips one pair of matching surrounding quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
