package iris

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testExtension builds an Extension from a setup function
type testExtension struct {
	name  string
	setup func(*Bot, *zerolog.Logger) error
}

func (e *testExtension) Name() string { return e.name }

func (e *testExtension) Setup(b *Bot, log *zerolog.Logger) error {
	return e.setup(b, log)
}

func commandExtension(name, cmdName, reply string) *testExtension {
	return &testExtension{
		name: name,
		setup: func(b *Bot, _ *zerolog.Logger) error {
			return b.RegisterCommand(&Command{
				Name:    cmdName,
				Kind:    KindMessage,
				Handler: echoHandler(reply),
			})
		},
	}
}

func TestLoader_LoadUnload(t *testing.T) {
	b := New(newFakeClient())

	var seen []string
	ext := &testExtension{
		name: "greeter",
		setup: func(b *Bot, _ *zerolog.Logger) error {
			if err := b.RegisterCommand(&Command{Name: "greet", Kind: KindMessage, Handler: echoHandler("hello")}); err != nil {
				return err
			}
			b.Subscribe(EventReady, func(any) error {
				seen = append(seen, "greeter")
				return nil
			})
			return nil
		},
	}

	require.NoError(t, b.LoadExtension(ext))
	assert.Equal(t, []string{"greeter"}, b.Extensions())

	reply, err := b.Registry().Resolve(context.Background(), Invocation{Name: "greet", Kind: KindMessage})
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)

	b.Dispatcher().Publish(EventReady, nil)
	assert.Equal(t, []string{"greeter"}, seen)

	// unload must remove everything the extension added
	require.NoError(t, b.UnloadExtension("greeter"))
	assert.Empty(t, b.Extensions())

	_, err = b.Registry().Resolve(context.Background(), Invocation{Name: "greet", Kind: KindMessage})
	assert.ErrorIs(t, err, ErrUnknownCommand)

	b.Dispatcher().Publish(EventReady, nil)
	assert.Equal(t, []string{"greeter"}, seen)
}

func TestLoader_AlreadyLoaded(t *testing.T) {
	b := New(newFakeClient())

	require.NoError(t, b.LoadExtension(commandExtension("echo", "echo", "echo")))
	assert.ErrorIs(t, b.LoadExtension(commandExtension("echo", "echo2", "echo")), ErrAlreadyLoaded)
}

func TestLoader_NotLoaded(t *testing.T) {
	b := New(newFakeClient())

	assert.ErrorIs(t, b.UnloadExtension("ghost"), ErrNotLoaded)
	assert.ErrorIs(t, b.ReloadExtension(commandExtension("ghost", "boo", "")), ErrNotLoaded)
}

func TestLoader_SetupFailureRollsBack(t *testing.T) {
	b := New(newFakeClient())

	ext := &testExtension{
		name: "broken",
		setup: func(b *Bot, _ *zerolog.Logger) error {
			// registrations made before the failure must be reverted
			if err := b.RegisterCommand(&Command{Name: "before", Kind: KindMessage, Handler: echoHandler("")}); err != nil {
				return err
			}
			b.Subscribe(EventReady, func(any) error { return nil })
			return errors.New("setup exploded")
		},
	}

	err := b.LoadExtension(ext)
	require.ErrorIs(t, err, ErrExtensionLoad)

	assert.Empty(t, b.Extensions())
	assert.Zero(t, b.Registry().Len())
	assert.Zero(t, b.Dispatcher().ListenerCount(EventReady))
}

func TestLoader_SetupPanicFailsLoad(t *testing.T) {
	b := New(newFakeClient())

	ext := &testExtension{
		name: "panicky",
		setup: func(*Bot, *zerolog.Logger) error {
			panic("ouch")
		},
	}

	err := b.LoadExtension(ext)
	require.ErrorIs(t, err, ErrExtensionLoad)
	assert.Contains(t, err.Error(), "ouch")
	assert.Empty(t, b.Extensions())
}

func TestLoader_ReloadReplaces(t *testing.T) {
	b := New(newFakeClient())

	require.NoError(t, b.LoadExtension(commandExtension("echo", "echo", "v1")))
	require.NoError(t, b.ReloadExtension(commandExtension("echo", "echo", "v2")))

	reply, err := b.Registry().Resolve(context.Background(), Invocation{Name: "echo", Kind: KindMessage})
	require.NoError(t, err)
	assert.Equal(t, "v2", reply)
	assert.Equal(t, 1, b.Registry().Len())
}

func TestLoader_FailedReloadRestoresState(t *testing.T) {
	b := New(newFakeClient())

	var seen int
	ext := &testExtension{
		name: "greeter",
		setup: func(b *Bot, _ *zerolog.Logger) error {
			if err := b.RegisterCommand(&Command{Name: "greet", Kind: KindMessage, Handler: echoHandler("hello")}); err != nil {
				return err
			}
			b.Subscribe(EventReady, func(any) error {
				seen++
				return nil
			})
			return nil
		},
	}
	require.NoError(t, b.LoadExtension(ext))

	broken := &testExtension{
		name: "greeter",
		setup: func(b *Bot, _ *zerolog.Logger) error {
			if err := b.RegisterCommand(&Command{Name: "greet2", Kind: KindMessage, Handler: echoHandler("")}); err != nil {
				return err
			}
			return errors.New("new version is broken")
		},
	}

	err := b.ReloadExtension(broken)
	require.ErrorIs(t, err, ErrExtensionLoad)

	// exactly the pre-reload state: old command resolvable, new one gone,
	// one listener, extension still tracked
	reply, err := b.Registry().Resolve(context.Background(), Invocation{Name: "greet", Kind: KindMessage})
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)

	_, err = b.Registry().Resolve(context.Background(), Invocation{Name: "greet2", Kind: KindMessage})
	assert.ErrorIs(t, err, ErrUnknownCommand)

	assert.Equal(t, 1, b.Registry().Len())
	assert.Equal(t, 1, b.Dispatcher().ListenerCount(EventReady))
	assert.Equal(t, []string{"greeter"}, b.Extensions())

	b.Dispatcher().Publish(EventReady, nil)
	assert.Equal(t, 1, seen)

	// and the restored extension can still be unloaded cleanly
	require.NoError(t, b.UnloadExtension("greeter"))
	assert.Zero(t, b.Registry().Len())
	assert.Zero(t, b.Dispatcher().ListenerCount(EventReady))
}

func TestLoader_TwoExtensionsShareEvent(t *testing.T) {
	b := New(newFakeClient())

	var order []string
	listenerExtension := func(name string) *testExtension {
		return &testExtension{
			name: name,
			setup: func(b *Bot, _ *zerolog.Logger) error {
				b.Subscribe("ready", func(any) error {
					order = append(order, name)
					return nil
				})
				return nil
			},
		}
	}

	require.NoError(t, b.LoadExtension(listenerExtension("a")))
	require.NoError(t, b.LoadExtension(listenerExtension("b")))

	b.Dispatcher().Publish("ready", nil)
	require.Equal(t, []string{"a", "b"}, order)

	require.NoError(t, b.UnloadExtension("a"))

	order = nil
	b.Dispatcher().Publish("ready", nil)
	assert.Equal(t, []string{"b"}, order)
}
