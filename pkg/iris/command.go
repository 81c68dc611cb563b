package iris

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Kind is the trigger mechanism for a command
type Kind int

const (
	// KindMessage is a command triggered by a plain chat message
	KindMessage Kind = iota

	// KindSlash is a command triggered by a slash/interaction invocation
	KindSlash

	// KindContextMenu is a command triggered from a context menu
	KindContextMenu
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindSlash:
		return "slash"
	case KindContextMenu:
		return "context-menu"
	}
	return "unknown"
}

// Scope is the deployment restriction of a command. ScopeGlobal matches
// every target; any other value restricts the command to that target id.
type Scope string

// ScopeGlobal matches invocations from any target
const ScopeGlobal Scope = ""

// OptionType is the declared type of a command option
type OptionType int

const (
	OptionString OptionType = iota
	OptionInteger
	OptionBoolean
	OptionUser
	OptionChannel
	OptionRole
	OptionNumber
)

func (t OptionType) String() string {
	switch t {
	case OptionString:
		return "string"
	case OptionInteger:
		return "integer"
	case OptionBoolean:
		return "boolean"
	case OptionUser:
		return "user"
	case OptionChannel:
		return "channel"
	case OptionRole:
		return "role"
	case OptionNumber:
		return "number"
	}
	return "unknown"
}

// Option declares one positional option of a command
type Option struct {
	// Name is the name the parsed value is stored under
	Name string

	// Type is the option's value type, validated at resolve time
	Type OptionType

	// Required rejects invocations that omit the option
	Required bool
}

// Options holds the parsed option values of an invocation, keyed by the
// declared option name. Absent optional values are simply missing.
type Options map[string]any

// Has reports whether the option was supplied
func (o Options) Has(name string) bool {
	_, ok := o[name]
	return ok
}

// String returns the string value of the option, or "" if absent
func (o Options) String(name string) string {
	v, _ := o[name].(string)
	return v
}

// Int returns the integer value of the option, or 0 if absent
func (o Options) Int(name string) int64 {
	v, _ := o[name].(int64)
	return v
}

// Bool returns the boolean value of the option, or false if absent
func (o Options) Bool(name string) bool {
	v, _ := o[name].(bool)
	return v
}

// Float returns the numeric value of the option, or 0 if absent
func (o Options) Float(name string) float64 {
	v, _ := o[name].(float64)
	return v
}

// Context is what the runtime hands a command handler when executing it
type Context struct {
	// Ctx is the host's run context
	Ctx context.Context

	// Target is the room/channel the invocation originated from
	Target string

	// Sender is the user that issued the invocation
	Sender string

	// Log is the logger to use for logging
	Log *zerolog.Logger

	// Payload is the raw platform event, if any
	Payload any
}

// Handler executes a command. The returned string is the reply text to send
// back to the invocation's target; an empty string sends nothing.
type Handler func(*Context, Options) (string, error)

// PreRunFunc runs before a command's handler; a non-nil error aborts the
// invocation and is routed like a handler error.
type PreRunFunc func(*Context) error

// ErrorHook receives a command's failure instead of the invoking layer
type ErrorHook func(error, *Context)

// Command is a registrable command definition
type Command struct {
	Name        string
	Description string
	Kind        Kind
	Scope       Scope
	Options     []Option

	Handler Handler
	PreRun  PreRunFunc
	OnError ErrorHook
}

func (c *Command) key() commandKey {
	return commandKey{name: c.Name, kind: c.Kind, scope: c.Scope}
}

type commandKey struct {
	name  string
	kind  Kind
	scope Scope
}

// Invocation describes an incoming command invocation to be resolved
// against the registry.
type Invocation struct {
	Name  string
	Kind  Kind
	Scope Scope
	Args  []string

	Target  string
	Sender  string
	Payload any
}

// parseOptions validates raw positional arguments against the declared
// options. If the last declared option is a string, it consumes the rest of
// the arguments joined by spaces, so free-text tails need no quoting.
func parseOptions(decls []Option, args []string) (Options, error) {
	opts := make(Options, len(decls))

	for i, decl := range decls {
		last := i == len(decls)-1

		if i >= len(args) {
			if decl.Required {
				return nil, errors.Wrapf(ErrOptionValidation, "missing required option %q", decl.Name)
			}
			continue
		}

		raw := args[i]
		if last && decl.Type == OptionString {
			raw = strings.Join(args[i:], " ")
		}

		v, err := parseOption(decl, raw)
		if err != nil {
			return nil, err
		}
		opts[decl.Name] = v
	}

	if len(args) > len(decls) {
		if len(decls) == 0 || decls[len(decls)-1].Type != OptionString {
			return nil, errors.Wrapf(ErrOptionValidation, "unexpected argument %q", args[len(decls)])
		}
	}

	return opts, nil
}

func parseOption(decl Option, raw string) (any, error) {
	switch decl.Type {
	case OptionString:
		return raw, nil

	case OptionInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrOptionValidation, "option %q: %q is not an integer", decl.Name, raw)
		}
		return n, nil

	case OptionBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, errors.Wrapf(ErrOptionValidation, "option %q: %q is not a boolean", decl.Name, raw)
		}
		return b, nil

	case OptionNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrOptionValidation, "option %q: %q is not a number", decl.Name, raw)
		}
		return f, nil

	case OptionUser:
		id := strings.TrimSuffix(strings.TrimPrefix(raw, "<"), ">")
		if !strings.HasPrefix(id, "@") || len(id) < 2 {
			return nil, errors.Wrapf(ErrOptionValidation, "option %q: %q is not a user id", decl.Name, raw)
		}
		return id, nil

	case OptionChannel:
		id := strings.TrimSuffix(strings.TrimPrefix(raw, "<"), ">")
		if len(id) < 2 || (id[0] != '#' && id[0] != '!') {
			return nil, errors.Wrapf(ErrOptionValidation, "option %q: %q is not a channel id", decl.Name, raw)
		}
		return id, nil

	case OptionRole:
		if raw == "" {
			return nil, errors.Wrapf(ErrOptionValidation, "option %q: empty role", decl.Name)
		}
		return raw, nil
	}

	return nil, errors.Wrapf(ErrOptionValidation, "option %q: unknown option type %d", decl.Name, decl.Type)
}
