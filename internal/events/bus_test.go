package events

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeMailer) Send(to, subject, htmlBody, textBody string) error {
	f.mu.Lock()
	f.sent = append(f.sent, to)
	f.mu.Unlock()
	return nil
}

func TestBus_DeliversTypedPayloads(t *testing.T) {
	b := NewBus(2, 8)
	b.Start()
	defer b.Stop()

	var mu sync.Mutex
	var got []LoginSucceeded
	require.NoError(t, b.Subscribe(TopicLoginSucceeded, func(e LoginSucceeded) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	}))

	b.Publish(context.Background(), TopicLoginSucceeded, LoginSucceeded{UserID: "u1"})
	b.Publish(context.Background(), TopicLoginSucceeded, LoginSucceeded{UserID: "u2"})
	b.Publish(context.Background(), "nobody.listens", "x")
	b.Drain()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, 2)
}

func TestBus_HandlerPanicDoesNotKillWorker(t *testing.T) {
	b := NewBus(1, 4)
	b.Start()
	defer b.Stop()

	calls := 0
	require.NoError(t, b.Subscribe(TopicIdentityUnlinked, func(e IdentityUnlinked) {
		calls++
		if e.UserID == "boom" {
			panic("listener failure")
		}
	}))
	b.Publish(context.Background(), TopicIdentityUnlinked, IdentityUnlinked{UserID: "boom"})
	b.Publish(context.Background(), TopicIdentityUnlinked, IdentityUnlinked{UserID: "ok"})
	b.Drain()
	assert.Equal(t, 2, calls)
}

func TestBus_PublishAfterStopIsDropped(t *testing.T) {
	b := NewBus(1, 1)
	b.Start()
	b.Stop()
	assert.NotPanics(t, func() {
		b.Publish(context.Background(), TopicLoginSucceeded, LoginSucceeded{})
	})
}

func TestMailListener_SkipsPlaceholderEmails(t *testing.T) {
	b := NewBus(1, 8)
	b.Start()
	defer b.Stop()

	m := &fakeMailer{}
	require.NoError(t, RegisterMailListener(b, m, "Test"))

	b.Publish(context.Background(), TopicIdentityLinked, IdentityLinked{Email: "dingtalk_abc@dingtalk.local"})
	b.Publish(context.Background(), TopicIdentityLinked, IdentityLinked{Email: ""})
	b.Publish(context.Background(), TopicIdentityLinked, IdentityLinked{Email: "real@example.com", Username: "zs"})
	b.Drain()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, []string{"real@example.com"}, m.sent)
}
