package client

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dmitrymomot/relay/core/protocol"
)

// Usage describes the commands understood by ParseCommand.
const Usage = `Commands:
  join <group>            join a group (alias: J)
  post <group> <message>  send a message to a group (alias: S)
  Ctrl+D                  close the connection and exit`

// ParseCommand turns one line of user input into a packet.
//
//	join cats          -> Join{cats}
//	post cats meow now -> Send{cats, "meow now"}
func ParseCommand(line string) (protocol.ClientPacket, error) {
	verb, rest, ok := nextToken(line)
	if !ok {
		return nil, ErrEmptyCommand
	}

	switch verb {
	case "join", "J":
		group, rest, ok := nextToken(rest)
		if !ok {
			return nil, fmt.Errorf("%w: %s needs a group name", ErrInvalidCommand, verb)
		}
		if strings.TrimSpace(rest) != "" {
			return nil, fmt.Errorf("%w: %s takes exactly one group name", ErrInvalidCommand, verb)
		}
		return protocol.Join{Group: group}, nil

	case "post", "S":
		group, rest, ok := nextToken(rest)
		if !ok {
			return nil, fmt.Errorf("%w: %s needs a group name and a message", ErrInvalidCommand, verb)
		}
		return protocol.Send{Group: group, Message: strings.TrimLeftFunc(rest, unicode.IsSpace)}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, verb)
	}
}

// nextToken splits off the first whitespace-delimited word of text.
// The remainder keeps its leading whitespace.
func nextToken(text string) (token, rest string, ok bool) {
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	if text == "" {
		return "", "", false
	}
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		return text[:i], text[i:], true
	}
	return text, "", true
}
