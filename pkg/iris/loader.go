package iris

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Loader tracks loaded extensions and the commands/listeners each one
// registered, so an unload can remove exactly what its load added.
type Loader struct {
	mu       sync.Mutex
	registry *Registry
	dispatch *Dispatcher
	loaded   map[string]*extensionRecord

	// active is the record registrations are attributed to while a Setup
	// call is in flight. Loads are serialized by mu and Setup runs on the
	// loading goroutine, so no extra locking is needed around it.
	active *extensionRecord

	log *zerolog.Logger
}

type extensionRecord struct {
	commands  []*Command
	listeners []listenerEntry
}

type listenerEntry struct {
	event  string
	fn     Listener
	handle ListenerHandle
}

// NewLoader creates a loader registering into the given registry and
// dispatcher.
func NewLoader(registry *Registry, dispatch *Dispatcher, log *zerolog.Logger) *Loader {
	return &Loader{
		registry: registry,
		dispatch: dispatch,
		loaded:   make(map[string]*extensionRecord),
		log:      log,
	}
}

// Load runs the extension's Setup against the host and starts tracking it.
// It fails with ErrAlreadyLoaded if an extension with the same name is
// already tracked, and with ErrExtensionLoad if Setup fails — in which case
// everything Setup managed to register is removed again.
func (l *Loader) Load(bot *Bot, ext Extension) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(bot, ext)
}

func (l *Loader) load(bot *Bot, ext Extension) error {
	name := ext.Name()
	if _, ok := l.loaded[name]; ok {
		return errors.Wrap(ErrAlreadyLoaded, name)
	}

	rec := &extensionRecord{}
	l.active = rec
	log := l.log.With().Str("extension", name).Logger()
	err := setup(ext, bot, &log)
	l.active = nil

	if err != nil {
		l.remove(rec)
		return errors.Wrapf(ErrExtensionLoad, "%s: %s", name, err)
	}

	l.loaded[name] = rec
	l.log.Info().Str("extension", name).Int("commands", len(rec.commands)).Int("listeners", len(rec.listeners)).Msg("loaded extension")
	return nil
}

// Unload removes every command and listener the named extension registered
// and stops tracking it. It fails with ErrNotLoaded if the extension is not
// tracked. Already-dispatched handler calls are not cancelled; unloading
// only prevents future resolutions.
func (l *Loader) Unload(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unload(name)
}

func (l *Loader) unload(name string) error {
	rec, ok := l.loaded[name]
	if !ok {
		return errors.Wrap(ErrNotLoaded, name)
	}

	l.remove(rec)
	delete(l.loaded, name)
	l.log.Info().Str("extension", name).Msg("unloaded extension")
	return nil
}

// Reload unloads the named extension and loads it again. The pair is
// atomic: if the fresh Setup fails, the previously registered commands and
// listeners are restored and the old record kept, so a failed reload leaves
// the registry and dispatcher exactly as they were.
func (l *Loader) Reload(bot *Bot, ext Extension) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	name := ext.Name()
	old, ok := l.loaded[name]
	if !ok {
		return errors.Wrap(ErrNotLoaded, name)
	}

	l.remove(old)
	delete(l.loaded, name)

	if err := l.load(bot, ext); err != nil {
		l.restore(old)
		l.loaded[name] = old
		return err
	}
	return nil
}

// Loaded returns the names of all tracked extensions, sorted
func (l *Loader) Loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]string, 0, len(l.loaded))
	for name := range l.loaded {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// recordCommand attributes a registration to the extension being loaded, if
// any. Registrations outside a load belong to the host and are not tracked.
func (l *Loader) recordCommand(cmd *Command) {
	if l.active != nil {
		l.active.commands = append(l.active.commands, cmd)
	}
}

func (l *Loader) recordListener(event string, fn Listener, handle ListenerHandle) {
	if l.active != nil {
		l.active.listeners = append(l.active.listeners, listenerEntry{event: event, fn: fn, handle: handle})
	}
}

func (l *Loader) remove(rec *extensionRecord) {
	for _, cmd := range rec.commands {
		if err := l.registry.Unregister(cmd.Name, cmd.Kind, cmd.Scope); err != nil {
			l.log.Warn().Err(err).Str("command", cmd.Name).Msg("command already gone during unload")
		}
	}
	for _, le := range rec.listeners {
		l.dispatch.Unsubscribe(le.handle)
	}
}

func (l *Loader) restore(rec *extensionRecord) {
	for _, cmd := range rec.commands {
		if err := l.registry.Register(cmd); err != nil {
			l.log.Error().Err(err).Str("command", cmd.Name).Msg("failed to restore command after reload")
		}
	}
	for i, le := range rec.listeners {
		rec.listeners[i].handle = l.dispatch.Subscribe(le.event, le.fn)
	}
}

// setup invokes the extension's Setup, converting a panic into an error so
// a broken extension fails its load instead of the host.
func setup(ext Extension, bot *Bot, log *zerolog.Logger) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("setup panic: %v", rec)
		}
	}()
	return ext.Setup(bot, log)
}
