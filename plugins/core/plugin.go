package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/unerror/iris/pkg/iris"
)

// Plugin provides the baseline command set every deployment gets
type Plugin struct {
	// bot is the bot instance
	bot *iris.Bot

	// log is the logger to use for logging
	log *zerolog.Logger

	started time.Time
}

// NewPlugin creates a new core plugin
func NewPlugin() *Plugin {
	return &Plugin{}
}

func (p *Plugin) Name() string {
	return "core"
}

func (p *Plugin) Setup(bot *iris.Bot, log *zerolog.Logger) error {
	p.bot = bot
	p.log = log
	p.started = time.Now()

	p.log.Info().Msg("Initializing core plugin")

	commands := []*iris.Command{
		{
			Name:        "ping",
			Description: "Check that the bot is alive",
			Kind:        iris.KindMessage,
			Handler:     p.ping,
		},
		{
			Name:        "help",
			Description: "List available commands",
			Kind:        iris.KindMessage,
			Handler:     p.help,
		},
		{
			Name:        "uptime",
			Description: "How long the bot has been up",
			Kind:        iris.KindMessage,
			Handler:     p.uptime,
		},
		{
			Name:        "extensions",
			Description: "List loaded extensions",
			Kind:        iris.KindMessage,
			Handler:     p.extensions,
		},
	}
	for _, cmd := range commands {
		if err := bot.RegisterCommand(cmd); err != nil {
			return err
		}
	}

	bot.Subscribe(iris.EventReady, p.onReady)
	bot.Subscribe(iris.EventMemberJoined, p.onMemberJoined)

	return nil
}

func (p *Plugin) ping(_ *iris.Context, _ iris.Options) (string, error) {
	return "pong", nil
}

func (p *Plugin) uptime(_ *iris.Context, _ iris.Options) (string, error) {
	return fmt.Sprintf("up %s", time.Since(p.started).Round(time.Second)), nil
}

func (p *Plugin) extensions(_ *iris.Context, _ iris.Options) (string, error) {
	return "loaded extensions: " + strings.Join(p.bot.Extensions(), ", "), nil
}

func (p *Plugin) help(_ *iris.Context, _ iris.Options) (string, error) {
	var sb strings.Builder
	sb.WriteString("available commands:\n")
	for _, cmd := range p.bot.Registry().Commands() {
		if cmd.Kind != iris.KindMessage {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %s%s - %s\n", p.bot.CommandPrefix(), cmd.Name, cmd.Description))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (p *Plugin) onReady(payload any) error {
	evt, ok := payload.(iris.ClientEvent)
	if !ok {
		return nil
	}
	p.log.Info().Str("user", evt.Sender).Msg("connected and ready")
	return nil
}

func (p *Plugin) onMemberJoined(payload any) error {
	evt, ok := payload.(iris.ClientEvent)
	if !ok || evt.Sender == p.bot.ID() {
		return nil
	}

	p.log.Debug().Str("user", evt.Sender).Str("room", evt.Target).Msg("member joined")
	return p.bot.SendText(evt.Target, fmt.Sprintf("Welcome, %s!", evt.Sender))
}
