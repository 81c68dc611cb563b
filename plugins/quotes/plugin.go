package quotes

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/unerror/iris/internal/db"
	"github.com/unerror/iris/pkg/iris"
)

// Plugin is a quote board backed by SQLite
type Plugin struct {
	db    *db.SQLiteStore
	store *Store

	// bot is the bot instance
	bot *iris.Bot

	// log is the logger to use for logging
	log *zerolog.Logger
}

// NewPlugin creates a new quotes plugin on the given database
func NewPlugin(sdb *db.SQLiteStore) *Plugin {
	return &Plugin{db: sdb}
}

func (p *Plugin) Name() string {
	return "quotes"
}

func (p *Plugin) Setup(bot *iris.Bot, log *zerolog.Logger) error {
	p.bot = bot
	p.log = log

	p.log.Info().Msg("Initializing quotes plugin")

	st, err := NewStore(p.db)
	if err != nil {
		return err
	}
	p.store = st

	if err := bot.RegisterCommand(&iris.Command{
		Name:        "addquote",
		Description: "Save a quote",
		Kind:        iris.KindMessage,
		Options: []iris.Option{
			{Name: "text", Type: iris.OptionString, Required: true},
		},
		Handler: p.add,
	}); err != nil {
		return err
	}

	return bot.RegisterCommand(&iris.Command{
		Name:        "quote",
		Description: "Recall a quote by number, or a random one",
		Kind:        iris.KindMessage,
		Options: []iris.Option{
			{Name: "number", Type: iris.OptionInteger},
		},
		Handler: p.get,
	})
}

func (p *Plugin) add(ctx *iris.Context, opts iris.Options) (string, error) {
	id, err := p.store.Add(ctx.Ctx, ctx.Sender, opts.String("text"))
	if err != nil {
		return "", err
	}

	p.log.Debug().Int64("id", id).Str("author", ctx.Sender).Msg("saved quote")
	return fmt.Sprintf("saved as quote #%d", id), nil
}

func (p *Plugin) get(ctx *iris.Context, opts iris.Options) (string, error) {
	var (
		q   Quote
		err error
	)
	if opts.Has("number") {
		q, err = p.store.Get(ctx.Ctx, opts.Int("number"))
	} else {
		q, err = p.store.Random(ctx.Ctx)
	}
	if err != nil {
		return err.Error(), nil
	}

	return fmt.Sprintf("#%d: %s (added by %s)", q.ID, q.Body, q.Author), nil
}
