// Package admins holds the administrator allow-list: the usernames
// permitted to manage subscriptions on behalf of other chats.
package admins

import (
	"fmt"
	"os"
	"strings"
)

// List is the immutable allow-list. It is loaded once at startup and only
// read afterwards, so it needs no locking.
type List struct {
	names map[string]struct{}
}

// Load reads a whitespace/newline-delimited username file. Usernames may
// carry a leading "@"; it is stripped. A missing file is an error; the
// caller decides whether that is fatal.
func Load(path string) (*List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("admins: read %s: %w", path, err)
	}
	names := make(map[string]struct{})
	for _, f := range strings.Fields(string(data)) {
		name := strings.TrimPrefix(f, "@")
		if name == "" {
			continue
		}
		names[name] = struct{}{}
	}
	return &List{names: names}, nil
}

// Allowed reports whether username is an administrator. The leading "@" is
// ignored; an empty username is never allowed.
func (l *List) Allowed(username string) bool {
	if l == nil {
		return false
	}
	username = strings.TrimPrefix(username, "@")
	if username == "" {
		return false
	}
	_, ok := l.names[username]
	return ok
}

// Len reports the number of configured administrators.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.names)
}
