package iris

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher() *Dispatcher {
	nop := zerolog.Nop()
	return NewDispatcher(&nop)
}

func TestDispatcher_PublishOrder(t *testing.T) {
	d := newTestDispatcher()

	var order []string
	record := func(name string) Listener {
		return func(any) error {
			order = append(order, name)
			return nil
		}
	}

	d.Subscribe("ready", record("a"))
	d.Subscribe("ready", record("b"))
	d.Subscribe("ready", record("c"))
	d.Subscribe("other", record("x"))

	d.Publish("ready", nil)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestDispatcher_PublishIsolation(t *testing.T) {
	d := newTestDispatcher()

	var order []string
	d.Subscribe("ready", func(any) error {
		order = append(order, "first")
		return nil
	})
	d.Subscribe("ready", func(any) error {
		order = append(order, "failing")
		return errors.New("boom")
	})
	d.Subscribe("ready", func(any) error {
		order = append(order, "panicking")
		panic("ouch")
	})
	d.Subscribe("ready", func(any) error {
		order = append(order, "last")
		return nil
	})

	// one failing or panicking listener must not starve its siblings
	d.Publish("ready", nil)
	assert.Equal(t, []string{"first", "failing", "panicking", "last"}, order)
}

func TestDispatcher_DuplicateListener(t *testing.T) {
	d := newTestDispatcher()

	calls := 0
	fn := Listener(func(any) error {
		calls++
		return nil
	})

	d.Subscribe("ready", fn)
	d.Subscribe("ready", fn)
	require.Equal(t, 2, d.ListenerCount("ready"))

	d.Publish("ready", nil)
	assert.Equal(t, 2, calls)
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	d := newTestDispatcher()

	var order []string
	record := func(name string) Listener {
		return func(any) error {
			order = append(order, name)
			return nil
		}
	}

	d.Subscribe("ready", record("a"))
	h := d.Subscribe("ready", record("b"))
	d.Subscribe("ready", record("c"))

	d.Unsubscribe(h)
	require.Equal(t, 2, d.ListenerCount("ready"))

	d.Publish("ready", nil)
	assert.Equal(t, []string{"a", "c"}, order)

	// removing the same handle twice is harmless
	d.Unsubscribe(h)
	assert.Equal(t, 2, d.ListenerCount("ready"))
}

func TestDispatcher_PublishPayload(t *testing.T) {
	d := newTestDispatcher()

	var got any
	d.Subscribe("member-joined", func(payload any) error {
		got = payload
		return nil
	})

	d.Publish("member-joined", "@alice:example.org")
	assert.Equal(t, "@alice:example.org", got)

	// publishing an event nobody listens to is a no-op
	d.Publish("guild-created", nil)
}
