package main

import (
	"strconv"
	"strings"
)

type command struct {
	name string
	args []string
	text string
}

// parseCommand splits a terminal line. Lines starting with a slash are
// commands; anything else is a message to send.
func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{name: "say", text: line}
	}

	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 {
		return command{name: "help"}
	}
	return command{
		name: strings.ToLower(fields[0]),
		args: fields[1:],
		text: strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, "/"), fields[0])),
	}
}

// index parses a 1-based list position.
func (c command) index(n int) (int, bool) {
	if len(c.args) == 0 {
		return 0, false
	}
	i, err := strconv.Atoi(c.args[0])
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

const helpText = `commands:
  /chats            list conversations
  /more             load more conversations
  /open N           open conversation N from /chats
  /new ID [NAME]    start a conversation with ID
  /older            load older messages
  /notifs           show notifications
  /read ID          mark a notification read
  /del ID           delete a notification
  /clear            clear all notifications
  /quit             exit
anything else is sent to the open conversation`
