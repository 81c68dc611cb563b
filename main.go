package main

import (
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/unerror/iris/internal/db"
	"github.com/unerror/iris/internal/matrix"
	"github.com/unerror/iris/pkg/iris"
	"github.com/unerror/iris/plugins/core"
	"github.com/unerror/iris/plugins/openai"
	"github.com/unerror/iris/plugins/quotes"
)

func main() {
	a := &cli.App{
		Name:  "iris",
		Usage: "Iris is a pluggable Matrix bot host",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "matrix-homeserver",
				Usage:   "Matrix homeserver URL",
				EnvVars: []string{"MATRIX_HOMESERVER"},
			},
			&cli.StringFlag{
				Name:    "matrix-username",
				Usage:   "Matrix username",
				EnvVars: []string{"MATRIX_USERNAME"},
			},
			&cli.StringFlag{
				Name:    "matrix-password",
				Usage:   "Matrix password",
				EnvVars: []string{"MATRIX_PASSWORD"},
			},
			&cli.StringSliceFlag{
				Name:    "matrix-rooms",
				Usage:   "Matrix rooms to join",
				EnvVars: []string{"MATRIX_ROOMS"},
			},
			&cli.StringFlag{
				Name:    "command-prefix",
				Usage:   "Prefix marking a chat message as a command",
				Value:   iris.DefaultCommandPrefix,
				EnvVars: []string{"COMMAND_PREFIX"},
			},
			&cli.StringFlag{
				Name:    "database-dsn",
				Usage:   "Database DSN",
				Value:   "iris.sqlite3",
				EnvVars: []string{"DATABASE_DSN"},
			},
			&cli.StringFlag{
				Name:    "open-ai-key",
				Usage:   "OpenAI API key",
				EnvVars: []string{"OPEN_AI_KEY"},
			},
			&cli.StringFlag{
				Name:    "prompt",
				Usage:   "The prompt to use for the system chat",
				Value:   openai.DefaultPrompt,
				EnvVars: []string{"OPENAI_PROMPT"},
			},
			&cli.IntFlag{
				Name:    "chance",
				Usage:   "Chance (0-100) to respond to an ordinary message",
				Value:   openai.DefaultChance,
				EnvVars: []string{"OPENAI_CHANCE"},
			},
		},
		Action: func(c *cli.Context) error {
			logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

			conn, err := db.Open(c.String("database-dsn"))
			if err != nil {
				return errors.Wrap(err, "failed to open database")
			}
			defer conn.Close()

			mc, err := matrix.NewClient(
				c.String("matrix-homeserver"),
				c.String("matrix-username"),
				c.String("matrix-password"),
				matrix.WithJoinRooms(c.StringSlice("matrix-rooms")),
				matrix.WithLogger(logger),
			)
			if err != nil {
				return err
			}

			b := iris.New(mc,
				iris.WithLogger(&logger),
				iris.WithCommandPrefix(c.String("command-prefix")),
				iris.WithExtensions(
					core.NewPlugin(),
					quotes.NewPlugin(conn),
					openai.NewPlugin(openai.Configuration{
						APIKey: c.String("open-ai-key"),
						Prompt: c.String("prompt"),
						Chance: c.Int("chance"),
					}),
				),
			)
			return b.Run(c.Context)
		},
		Commands: []*cli.Command{
			{
				Name:  "prompt",
				Usage: "Generate a response for the given prompt",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "prompt",
						Usage:   "Prompt to generate a response for",
						EnvVars: []string{"PROMPT"},
					},
					&cli.StringFlag{
						Name:    "open-ai-key",
						Usage:   "OpenAI API key",
						EnvVars: []string{"OPEN_AI_KEY"},
					},
				},
				Action: func(c *cli.Context) error {
					oc := openai.NewClient(c.String("open-ai-key"))
					out, err := oc.Prompt(c.Context, c.String("prompt"))
					if err != nil {
						return err
					}
					log.Println(out)
					return nil
				},
			},
		},
	}

	if err := a.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
