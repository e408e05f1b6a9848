package handler

import (
	"strings"

	apperr "chatserver/pkg/errors"
)

// CommandKind tags what a line of client input means. The decision is made
// once, here at the boundary; the services below never parse free text.
type CommandKind int

const (
	CmdSay CommandKind = iota
	CmdDirect
	CmdFriendAdd
	CmdFriendList
	CmdClear
)

type Command struct {
	Kind   CommandKind
	Target string
	Body   string
}

// ParseCommand turns one input line into a tagged command. Lines not starting
// with a slash are plain public messages.
func ParseCommand(line string) (Command, error) {
	trimmed := strings.TrimSpace(line)

	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: CmdSay, Body: line}, nil
	}

	verb, rest, _ := strings.Cut(trimmed, " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "/dm":
		target, body, _ := strings.Cut(rest, " ")
		body = strings.TrimSpace(body)
		if target == "" || body == "" {
			return Command{}, apperr.InvalidArg("a private message needs a recipient and a body")
		}
		return Command{Kind: CmdDirect, Target: target, Body: body}, nil
	case "/add":
		if rest == "" {
			return Command{}, apperr.InvalidArg("a friend request needs a target")
		}
		return Command{Kind: CmdFriendAdd, Target: rest}, nil
	case "/friends":
		return Command{Kind: CmdFriendList}, nil
	case "/clear":
		return Command{Kind: CmdClear}, nil
	default:
		return Command{}, apperr.ErrUnknownCommand
	}
}
