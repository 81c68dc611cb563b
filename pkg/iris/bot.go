package iris

import (
	"context"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Client is the chat-platform transport the host runs on. The wire
// protocol, reconnection and data model all live behind this interface.
type Client interface {
	// UserID returns the bot's own user id on the platform
	UserID() string

	// OnEvent registers the handler the client feeds translated platform
	// events into. Must be called before Start.
	OnEvent(func(ClientEvent))

	// Start connects and blocks, delivering events until the context is
	// cancelled or the connection fails
	Start(ctx context.Context) error

	// SendText sends a text message to a target room/channel
	SendText(target, text string) error
}

// ClientEvent is a platform event translated into the host's neutral shape
type ClientEvent struct {
	// Name is the event name listeners subscribe under
	Name string

	// Target is the room/channel the event originated from
	Target string

	// Sender is the user that caused the event
	Sender string

	// Body is the text content, for message events
	Body string

	// Payload is the raw platform event
	Payload any
}

// Event names published by the host for translated client events
const (
	EventReady          = "ready"
	EventMessageCreated = "message-created"
	EventMemberJoined   = "member-joined"
)

// DefaultCommandPrefix marks a message as a command invocation
const DefaultCommandPrefix = "!"

type options struct {
	log        *zerolog.Logger
	extensions []Extension
	prefix     string
}

// BotOption configures the bot host
type BotOption func(*options)

// WithLogger sets the logger to use for logging
func WithLogger(log *zerolog.Logger) BotOption {
	return func(o *options) {
		o.log = log
	}
}

// WithExtensions sets the extensions Run loads before connecting
func WithExtensions(extensions ...Extension) BotOption {
	return func(o *options) {
		o.extensions = append(o.extensions, extensions...)
	}
}

// WithCommandPrefix sets the prefix marking a message as a command
func WithCommandPrefix(prefix string) BotOption {
	return func(o *options) {
		o.prefix = prefix
	}
}

// Bot is the long-lived host process object. It owns exactly one command
// registry, one event dispatcher and one extension loader for its lifetime,
// and exposes them to extension code at setup time.
type Bot struct {
	client     Client
	registry   *Registry
	dispatcher *Dispatcher
	loader     *Loader
	extensions []Extension
	prefix     string

	// runCtx is the context handed to command handlers; set by Run
	runCtx context.Context

	log *zerolog.Logger
}

// New creates a new bot host on the given client
func New(client Client, opts ...BotOption) *Bot {
	nop := zerolog.Nop()
	o := &options{
		log:    &nop,
		prefix: DefaultCommandPrefix,
	}
	for _, opt := range opts {
		opt(o)
	}

	b := &Bot{
		client:     client,
		registry:   NewRegistry(o.log),
		dispatcher: NewDispatcher(o.log),
		extensions: o.extensions,
		prefix:     o.prefix,
		runCtx:     context.Background(),
		log:        o.log,
	}
	b.loader = NewLoader(b.registry, b.dispatcher, o.log)

	return b
}

// ID returns the bot's own user id on the platform
func (b *Bot) ID() string {
	return b.client.UserID()
}

// Registry returns the host's command registry
func (b *Bot) Registry() *Registry {
	return b.registry
}

// Dispatcher returns the host's event dispatcher
func (b *Bot) Dispatcher() *Dispatcher {
	return b.dispatcher
}

// RegisterCommand registers a command with the host. When called from an
// extension's Setup, the registration is attributed to that extension and
// reversed on unload.
func (b *Bot) RegisterCommand(cmd *Command) error {
	if err := b.registry.Register(cmd); err != nil {
		return err
	}
	b.loader.recordCommand(cmd)
	return nil
}

// Subscribe binds a listener to a named event. When called from an
// extension's Setup, the subscription is attributed to that extension and
// removed on unload.
func (b *Bot) Subscribe(event string, fn Listener) ListenerHandle {
	handle := b.dispatcher.Subscribe(event, fn)
	b.loader.recordListener(event, fn, handle)
	return handle
}

// LoadExtension loads an extension into the host
func (b *Bot) LoadExtension(ext Extension) error {
	return b.loader.Load(b, ext)
}

// UnloadExtension unloads a previously loaded extension by name
func (b *Bot) UnloadExtension(name string) error {
	return b.loader.Unload(name)
}

// ReloadExtension atomically unloads and loads an extension again
func (b *Bot) ReloadExtension(ext Extension) error {
	return b.loader.Reload(b, ext)
}

// Extensions returns the names of all loaded extensions, sorted
func (b *Bot) Extensions() []string {
	return b.loader.Loaded()
}

// SendText sends a text message to a target room/channel
func (b *Bot) SendText(target, text string) error {
	return b.client.SendText(target, text)
}

// CommandPrefix returns the prefix marking a message as a command
func (b *Bot) CommandPrefix() string {
	return b.prefix
}

// Run loads the configured extensions, binds the client event stream and
// connects. Every extension is fully loaded before the first external event
// is accepted.
func (b *Bot) Run(ctx context.Context) error {
	b.runCtx = ctx

	for _, ext := range b.extensions {
		if err := b.LoadExtension(ext); err != nil {
			return errors.Wrapf(err, "failed to load extension %q", ext.Name())
		}
	}

	b.client.OnEvent(b.handle)
	return b.client.Start(ctx)
}

// handle is the host's run-loop entry point for one translated client
// event: it is published to the dispatcher, and message events carrying the
// command prefix are additionally resolved against the registry.
func (b *Bot) handle(evt ClientEvent) {
	b.dispatcher.Publish(evt.Name, evt)

	if evt.Name != EventMessageCreated || evt.Sender == b.client.UserID() {
		return
	}
	if !strings.HasPrefix(evt.Body, b.prefix) {
		return
	}

	args := tokenize(strings.TrimPrefix(evt.Body, b.prefix))
	if len(args) == 0 {
		return
	}

	inv := Invocation{
		Name:    args[0],
		Kind:    KindMessage,
		Scope:   Scope(evt.Target),
		Args:    args[1:],
		Target:  evt.Target,
		Sender:  evt.Sender,
		Payload: evt.Payload,
	}

	reply, err := b.registry.Resolve(b.runCtx, inv)
	switch {
	case errors.Is(err, ErrUnknownCommand):
		b.log.Debug().Str("command", inv.Name).Str("sender", evt.Sender).Msg("unknown command")
		return
	case errors.Is(err, ErrOptionValidation):
		reply = err.Error()
	case err != nil:
		b.log.Error().Err(err).Str("command", inv.Name).Msg("command failed")
		return
	}

	if reply == "" {
		return
	}
	if err := b.client.SendText(evt.Target, reply); err != nil {
		b.log.Error().Err(err).Str("target", evt.Target).Msg("failed to send reply")
	}
}

var tokenRegexp = regexp.MustCompile(`[^\s"]+|"([^"]*)"`)

// tokenize splits a command line into arguments, keeping double-quoted
// runs together. Curly quotes are normalized first.
func tokenize(input string) []string {
	for _, quote := range []string{"“", "”"} {
		input = strings.ReplaceAll(input, quote, `"`)
	}

	tokens := tokenRegexp.FindAllString(input, -1)
	for i, tok := range tokens {
		tokens[i] = strings.Trim(tok, `"`)
	}
	return tokens
}
