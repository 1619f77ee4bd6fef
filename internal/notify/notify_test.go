package notify

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"metaltrade/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRendererRFQ(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	req := &models.Request{ID: uuid.New(), DisplayNumber: 42, DeliveryAddress: "Пермь"}
	msg, err := r.RFQ("sales@stal.test", RFQData{
		Request: req,
		Items: []models.RequestItem{
			{Kind: models.KindMetal, Category: "Труба", Stamp: "20", Size: "57x3.5", Quantity: 3, Unit: "т", AllowAnalogs: true},
		},
		Header: "<b>Срочно</b>",
		Link:   "https://metaltrade.test/request/x?token=y",
	})
	require.NoError(t, err)
	require.Equal(t, "sales@stal.test", msg.To)
	require.Contains(t, msg.Subject, "42")
	require.Contains(t, msg.HTML, "Труба 20 57x3.5")
	require.Contains(t, msg.HTML, "Пермь")
	require.Contains(t, msg.HTML, `href="https://metaltrade.test/request/x?token=y"`)
	// пользовательский текст экранируется
	require.Contains(t, msg.HTML, "&lt;b&gt;Срочно&lt;/b&gt;")
}

func TestRendererAwardEmails(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	req := &models.Request{DisplayNumber: 7}
	sup := &models.Supplier{ShortName: "ООО Сталь"}

	win, err := r.Winner("a@stal.test", WinnerData{Request: req, Supplier: sup, Total: "1000.00", Link: "https://metaltrade.test/deals/1"})
	require.NoError(t, err)
	require.Contains(t, win.HTML, "1000.00")
	require.Contains(t, win.HTML, "ООО Сталь")

	lose, err := r.Loser("b@stal.test", LoserData{Request: req, Supplier: sup})
	require.NoError(t, err)
	require.Contains(t, lose.Subject, "7")
}

func TestMemoryQueue(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, Message{To: "a@stal.test"}))
	require.ErrorIs(t, q.Push(ctx, Message{To: "b@stal.test"}), ErrQueueFull)
	require.Equal(t, 1, q.Len())

	msg, err := q.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, "a@stal.test", msg.To)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = q.Pop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

type fakeSender struct {
	mu   sync.Mutex
	sent []Message
	fail map[string]bool
	done chan struct{}
}

func (s *fakeSender) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.done <- struct{}{} }()
	if s.fail[msg.To] {
		return errors.New("smtp: 550 mailbox unavailable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestDispatcherDeliversAndSurvivesFailures(t *testing.T) {
	sender := &fakeSender{fail: map[string]bool{"bad@stal.test": true}, done: make(chan struct{}, 3)}
	d := NewDispatcher(NewMemoryQueue(10), sender, testLogger(), 2, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(finished)
	}()

	d.Enqueue(ctx, Message{To: "a@stal.test"})
	d.Enqueue(ctx, Message{To: "bad@stal.test"})
	d.Enqueue(ctx, Message{To: "c@stal.test"})

	for i := 0; i < 3; i++ {
		select {
		case <-sender.done:
		case <-time.After(2 * time.Second):
			t.Fatal("dispatcher did not deliver messages")
		}
	}
	cancel()
	<-finished

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, 2)
}

func TestDispatcherEnqueueDropsWhenFull(t *testing.T) {
	q := NewMemoryQueue(1)
	d := NewDispatcher(q, &fakeSender{done: make(chan struct{}, 1)}, testLogger(), 1, time.Second)

	d.Enqueue(context.Background(), Message{To: "a@stal.test"})
	d.Enqueue(context.Background(), Message{To: "b@stal.test"})
	require.Equal(t, 1, q.Len())
}

func TestSMTPConfigConfigured(t *testing.T) {
	require.False(t, SMTPConfig{Host: "smtp.test"}.Configured())
	require.True(t, SMTPConfig{Host: "smtp.test", Port: 465, User: "robot", Password: "secret"}.Configured())
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(testLogger())
	require.NoError(t, s.Send(context.Background(), Message{To: "a@stal.test", Subject: "x"}))
}
