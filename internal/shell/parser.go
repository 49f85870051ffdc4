package shell

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
)

const pidMarker = "$$"

var ErrMissingRedirectTarget = errors.New("missing redirection target")

// Command is one parsed input line. Args[0] is the command name; redirection
// operators, their operands and a trailing & are not part of Args. Empty
// redirect paths mean no redirection.
type Command struct {
	Name           string
	Args           []string
	InputRedirect  string
	OutputRedirect string
	Background     bool
}

// fmt.Stringer
func (c *Command) String() string {
	var b strings.Builder
	b.WriteString(shellquote.Join(c.Args...))
	if c.InputRedirect != "" {
		b.WriteString(" < " + shellquote.Join(c.InputRedirect))
	}
	if c.OutputRedirect != "" {
		b.WriteString(" > " + shellquote.Join(c.OutputRedirect))
	}
	if c.Background {
		b.WriteString(" &")
	}
	return b.String()
}

// Expand replaces every $$ in line with pid, scanning left to right.
func Expand(line string, pid int) string {
	return strings.ReplaceAll(line, pidMarker, strconv.Itoa(pid))
}

// Parse splits line on whitespace into a Command. A nil Command with a nil
// error means there is nothing to run: the line was empty or a comment.
// With foregroundOnly set, a trailing & is consumed but ignored.
func Parse(line string, foregroundOnly bool) (*Command, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 || strings.HasPrefix(tokens[0], "#") {
		return nil, nil
	}

	cmd := &Command{
		Name: tokens[0],
		Args: []string{tokens[0]},
	}

	last := len(tokens) - 1
	for i := 1; i <= last; i++ {
		switch tok := tokens[i]; tok {
		case "<", ">":
			if i == last {
				return nil, fmt.Errorf("%w after %q", ErrMissingRedirectTarget, tok)
			}
			i++
			if tok == "<" {
				cmd.InputRedirect = tokens[i]
			} else {
				cmd.OutputRedirect = tokens[i]
			}
		case "&":
			if i == last {
				cmd.Background = !foregroundOnly
				continue
			}
			cmd.Args = append(cmd.Args, tok)
		default:
			cmd.Args = append(cmd.Args, tok)
		}
	}

	return cmd, nil
}
