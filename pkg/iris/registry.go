package iris

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Registry holds every known command, keyed by (name, kind, scope). It is
// one of the host's two synchronization points: all operations are safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	commands map[commandKey]*Command

	log *zerolog.Logger
}

// NewRegistry creates an empty command registry
func NewRegistry(log *zerolog.Logger) *Registry {
	return &Registry{
		commands: make(map[commandKey]*Command),
		log:      log,
	}
}

// Register adds a command. It fails with ErrDuplicateCommand if a command
// with the same (name, kind, scope) already exists.
func (r *Registry) Register(cmd *Command) error {
	if err := validate(cmd); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := cmd.key()
	if _, ok := r.commands[key]; ok {
		return errors.Wrapf(ErrDuplicateCommand, "%s (%s, scope %q)", cmd.Name, cmd.Kind, cmd.Scope)
	}

	r.commands[key] = cmd
	r.log.Debug().Str("command", cmd.Name).Stringer("kind", cmd.Kind).Str("scope", string(cmd.Scope)).Msg("registered command")
	return nil
}

// Unregister removes the command with the given (name, kind, scope). It
// fails with ErrUnknownCommand if no such command exists, so callers that
// track their own registrations can detect drift.
func (r *Registry) Unregister(name string, kind Kind, scope Scope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := commandKey{name: name, kind: kind, scope: scope}
	if _, ok := r.commands[key]; !ok {
		return errors.Wrapf(ErrUnknownCommand, "%s (%s, scope %q)", name, kind, scope)
	}

	delete(r.commands, key)
	return nil
}

// Resolve matches an invocation to a command and executes it. Lookup tries
// the invocation's scope first, then falls back to the global scope. The
// invocation's arguments are parsed against the command's declared options
// before any hook or handler runs. A handler (or pre-run) failure is routed
// to the command's error hook if it has one, otherwise returned as a
// *HandlerError.
func (r *Registry) Resolve(ctx context.Context, inv Invocation) (string, error) {
	r.mu.RLock()
	cmd, ok := r.commands[commandKey{name: inv.Name, kind: inv.Kind, scope: inv.Scope}]
	if !ok && inv.Scope != ScopeGlobal {
		cmd, ok = r.commands[commandKey{name: inv.Name, kind: inv.Kind, scope: ScopeGlobal}]
	}
	r.mu.RUnlock()

	if !ok {
		return "", errors.Wrapf(ErrUnknownCommand, "%s (%s)", inv.Name, inv.Kind)
	}

	opts, err := parseOptions(cmd.Options, inv.Args)
	if err != nil {
		return "", err
	}

	cctx := &Context{
		Ctx:     ctx,
		Target:  inv.Target,
		Sender:  inv.Sender,
		Log:     r.log,
		Payload: inv.Payload,
	}

	reply, err := execute(cmd, cctx, opts)
	if err != nil {
		herr := &HandlerError{Command: cmd.Name, Kind: cmd.Kind, Err: err}
		if cmd.OnError != nil {
			cmd.OnError(herr, cctx)
			return "", nil
		}
		return "", herr
	}

	return reply, nil
}

// Commands returns a snapshot of all registered commands, sorted by name
// then kind.
func (r *Registry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		list = append(list, cmd)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].Kind < list[j].Kind
	})
	return list
}

// Len returns the number of registered commands
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// execute runs the pre-run hook and the handler, converting a panic in
// either into an error so a misbehaving handler cannot take down the
// dispatch loop.
func execute(cmd *Command, cctx *Context, opts Options) (reply string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()

	if cmd.PreRun != nil {
		if err := cmd.PreRun(cctx); err != nil {
			return "", err
		}
	}

	return cmd.Handler(cctx, opts)
}

func validate(cmd *Command) error {
	if cmd.Name == "" {
		return errors.Wrap(ErrOptionValidation, "command name must not be empty")
	}
	if cmd.Handler == nil {
		return errors.Wrapf(ErrOptionValidation, "command %q has no handler", cmd.Name)
	}

	// Options are positional: once one is optional, the rest must be too,
	// or required values become ambiguous.
	optional := false
	seen := make(map[string]bool, len(cmd.Options))
	for _, opt := range cmd.Options {
		if opt.Name == "" {
			return errors.Wrapf(ErrOptionValidation, "command %q has an unnamed option", cmd.Name)
		}
		if seen[opt.Name] {
			return errors.Wrapf(ErrOptionValidation, "command %q declares option %q twice", cmd.Name, opt.Name)
		}
		seen[opt.Name] = true

		if optional && opt.Required {
			return errors.Wrapf(ErrOptionValidation, "command %q: required option %q follows an optional one", cmd.Name, opt.Name)
		}
		optional = optional || !opt.Required
	}

	return nil
}
