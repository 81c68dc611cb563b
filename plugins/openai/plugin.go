package openai

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/unerror/iris/pkg/iris"
)

// Plugin answers the ask command and, with a configurable chance, chimes in
// on ordinary chat messages.
type Plugin struct {
	// client is the OpenAI client to use for the plugin
	client *Client

	// bot is the bot instance
	bot *iris.Bot

	// log is the logger to use for logging
	log *zerolog.Logger

	r *rand.Rand

	cfg *Configuration
}

type Configuration struct {
	// Prompt is the system Prompt to use to prime responses
	Prompt string

	// Chance is the Chance to respond to a message. 0 = never, 100 = always
	Chance int

	// APIKey is the API key for OpenAI
	APIKey string
}

// NewPlugin creates a new OpenAI plugin
func NewPlugin(cfg Configuration) *Plugin {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	aiClient := NewClient(
		cfg.APIKey,
		WithPrompt(cfg.Prompt),
	)

	return &Plugin{
		client: aiClient,
		r:      r,
		cfg:    &cfg,
	}
}

func (p *Plugin) Name() string {
	return "openai"
}

func (p *Plugin) Setup(bot *iris.Bot, log *zerolog.Logger) error {
	p.log = log
	p.bot = bot

	p.log.Info().Msg("Initializing OpenAI plugin")

	if err := bot.RegisterCommand(&iris.Command{
		Name:        "ask",
		Description: "Ask the assistant a question",
		Kind:        iris.KindMessage,
		Options: []iris.Option{
			{Name: "prompt", Type: iris.OptionString, Required: true},
		},
		Handler: p.ask,
	}); err != nil {
		return err
	}

	bot.Subscribe(iris.EventMessageCreated, p.handleMessage)
	return nil
}

func (p *Plugin) ask(ctx *iris.Context, opts iris.Options) (string, error) {
	out, err := p.client.Prompt(ctx.Ctx, opts.String("prompt"))
	if err != nil {
		return "", errors.Wrap(err, "failed to generate response")
	}
	return out, nil
}

func (p *Plugin) handleMessage(payload any) error {
	evt, ok := payload.(iris.ClientEvent)
	if !ok || evt.Sender == p.bot.ID() || evt.Body == "" {
		return nil
	}
	// command invocations are the registry's business
	if strings.HasPrefix(evt.Body, p.bot.CommandPrefix()) {
		return nil
	}

	r := p.r.Int() % 100
	if r >= p.cfg.Chance {
		return nil
	}

	p.log.Debug().Str("msg", evt.Body).Msg("Responding to message")
	out, err := p.client.Prompt(context.Background(), evt.Body)
	if err != nil {
		p.log.Error().Err(err).Msg("Failed to generate response")
		return errors.Wrap(err, "failed to generate response")
	}

	if err := p.bot.SendText(evt.Target, out); err != nil {
		return errors.Wrap(err, "failed to send message")
	}

	return nil
}
