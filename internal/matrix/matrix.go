package matrix

import (
	"context"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/unerror/iris/pkg/iris"
)

// Client is a Matrix client. It translates mautrix sync events into the
// host's neutral ClientEvent shape, so it satisfies iris.Client.
type Client struct {
	*mautrix.Client
	log zerolog.Logger

	opts options

	mu       sync.Mutex
	handlers []func(iris.ClientEvent)
}

// options are the options for the Matrix client
type options struct {
	// Log is the logger to use for logging
	Log zerolog.Logger

	// Channels are the rooms to join on startup
	Channels mapset.Set[string]

	// Filter is the sync filter to use for the client
	Filter *mautrix.Filter
}

// ClientOption is an option for the Matrix client
type ClientOption func(*options)

// WithLogger sets the logger to use for logging
func WithLogger(log zerolog.Logger) ClientOption {
	return func(o *options) {
		o.Log = log
	}
}

// WithJoinRooms sets the rooms to join on startup
func WithJoinRooms(channels []string) ClientOption {
	return func(o *options) {
		for _, ch := range channels {
			o.Channels.Add(ch)
		}
	}
}

// WithSyncFilter sets the sync filter to use for the client
func WithSyncFilter(filter *mautrix.Filter) ClientOption {
	return func(o *options) {
		o.Filter = filter
	}
}

// NewClient creates a new Matrix client and logs it in
func NewClient(homeserverURL, username, password string, opts ...ClientOption) (*Client, error) {
	o := &options{
		Channels: mapset.NewSet[string](),
		Filter:   &mautrix.Filter{},
	}

	uid := id.NewUserID(username, homeserverURL)
	client, err := mautrix.NewClient(homeserverURL, uid, password)
	if err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(o)
	}

	client.Log = o.Log
	client.Store = mautrix.NewMemorySyncStore()
	client.Syncer.(*mautrix.DefaultSyncer).FilterJSON = o.Filter

	_, err = client.Login(&mautrix.ReqLogin{
		Type: mautrix.AuthTypePassword,
		Identifier: mautrix.UserIdentifier{
			Type: mautrix.IdentifierTypeUser,
			User: uid.Localpart(),
		},
		Password:         password,
		StoreCredentials: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to login")
	}

	c := &Client{
		Client: client,
		log:    o.Log,

		opts: *o,
	}
	c.bindSync()

	return c, nil
}

// UserID returns the bot's own Matrix user id
func (c *Client) UserID() string {
	return c.Client.UserID.String()
}

// OnEvent registers a handler for translated client events
func (c *Client) OnEvent(f func(iris.ClientEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, f)
}

// SendText sends a text message to a room
func (c *Client) SendText(target, text string) error {
	_, err := c.Client.SendText(id.RoomID(target), text)
	return err
}

// Channels returns the rooms the client is configured to join
func (c *Client) Channels() []string {
	return c.opts.Channels.ToSlice()
}

// Start reconciles room membership, announces readiness and syncs until the
// context is cancelled.
func (c *Client) Start(ctx context.Context) error {
	if err := c.ensureRooms(); err != nil {
		return errors.Wrap(err, "failed to ensure rooms")
	}

	c.emit(iris.ClientEvent{Name: iris.EventReady, Sender: c.UserID()})

	c.SyncPresence = event.PresenceOnline
	if err := c.SyncWithContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "failed to sync")
	}
	return nil
}

// bindSync hooks the mautrix syncer and translates the event types the host
// cares about.
func (c *Client) bindSync() {
	syncer := c.Syncer.(*mautrix.DefaultSyncer)

	syncer.OnEventType(event.EventMessage, func(_ mautrix.EventSource, evt *event.Event) {
		msg := evt.Content.AsMessage()
		if msg.MsgType != event.MsgText {
			return
		}
		c.emit(iris.ClientEvent{
			Name:    iris.EventMessageCreated,
			Target:  evt.RoomID.String(),
			Sender:  evt.Sender.String(),
			Body:    msg.Body,
			Payload: evt,
		})
	})

	syncer.OnEventType(event.StateMember, func(_ mautrix.EventSource, evt *event.Event) {
		if evt.Content.AsMember().Membership != event.MembershipJoin {
			return
		}
		c.emit(iris.ClientEvent{
			Name:    iris.EventMemberJoined,
			Target:  evt.RoomID.String(),
			Sender:  evt.GetStateKey(),
			Payload: evt,
		})
	})
}

func (c *Client) emit(evt iris.ClientEvent) {
	c.mu.Lock()
	handlers := make([]func(iris.ClientEvent), len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, f := range handlers {
		f(evt)
	}
}

// ensureRooms joins the configured rooms and leaves everything else
func (c *Client) ensureRooms() error {
	resp, err := c.JoinedRooms()
	if err != nil {
		return err
	}

	joinedRooms := mapset.NewSet[string]()
	for _, room := range resp.JoinedRooms {
		joinedRooms.Add(room.String())
	}

	diff := joinedRooms.Difference(c.opts.Channels)
	for _, ch := range diff.ToSlice() {
		c.log.Info().Str("channel", ch).Msg("leaving room")
		if _, err := c.LeaveRoom(id.RoomID(ch)); err != nil {
			return err
		}
	}

	for _, ch := range c.opts.Channels.ToSlice() {
		if !joinedRooms.Contains(ch) {
			c.log.Info().Str("channel", ch).Msg("joining room")
			if _, err := c.JoinRoom(ch, "", nil); err != nil {
				return err
			}
		}
	}

	return nil
}
