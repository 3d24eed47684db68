package driver

import (
	"context"
	"errors"
	"net"
	"os/exec"
	"strconv"
	"testing"
	"time"

	"github.com/danmuck/testcentre/internal/protocol/envelope"
	"github.com/danmuck/testcentre/internal/protocol/frame"
	"github.com/danmuck/testcentre/internal/testutil/testlog"
	"github.com/google/uuid"
)

// fakeApp dials the driver and speaks the wire protocol by hand.
type fakeApp struct {
	t    *testing.T
	conn net.Conn
}

func connectApp(t *testing.T, ctx context.Context) (*fakeApp, *Conn) {
	t.Helper()
	srv, err := Listen(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	nc, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(srv.Port()))))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = nc.Close() })

	conn, err := srv.Accept(ctx)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &fakeApp{t: t, conn: nc}, conn
}

func (a *fakeApp) readCommand() envelope.Command {
	a.t.Helper()
	_ = a.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	f, err := frame.ReadFrame(a.conn, frame.DefaultLimits())
	if err != nil {
		a.t.Errorf("app read: %v", err)
		return envelope.Command{}
	}
	return envelope.DecodeCommand(f.Payload)
}

func (a *fakeApp) write(payload []byte, err error) {
	a.t.Helper()
	if err != nil {
		a.t.Errorf("encode: %v", err)
		return
	}
	if err := frame.WriteFrame(a.conn, payload, frame.DefaultLimits()); err != nil {
		a.t.Errorf("app write: %v", err)
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSendCorrelatesByUUID(t *testing.T) {
	testlog.Start(t)
	ctx := testContext(t)
	app, conn := connectApp(t, ctx)

	go func() {
		cmd := app.readCommand()
		if cmd.Type != "get-component-text" || cmd.Argument("component-id") != "title" {
			t.Errorf("unexpected command %s", cmd.Describe())
		}
		app.write(envelope.OK().WithParameter("text", "stray").WithUUID(uuid.New()).Encode())
		app.write(envelope.OK().WithParameter("text", "Hello").WithUUID(cmd.UUID).Encode())
	}()

	text, err := conn.ComponentText(ctx, "title")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if text != "Hello" {
		t.Fatalf("response with an unknown uuid must be ignored, got %q", text)
	}
	if conn.pending.Len() != 0 {
		t.Fatalf("pending registry should be empty")
	}
}

func TestSendReturnsCommandError(t *testing.T) {
	testlog.Start(t)
	ctx := testContext(t)
	app, conn := connectApp(t, ctx)

	go func() {
		cmd := app.readCommand()
		app.write(envelope.Fail("Component not found: x").WithUUID(cmd.UUID).Encode())
	}()

	resp, err := conn.Send(ctx, "click-component", Args{"component-id": "x"})
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %v", err)
	}
	if cmdErr.Type != "click-component" || cmdErr.Message != "Component not found: x" || resp.Success {
		t.Fatalf("unexpected error %+v", cmdErr)
	}
}

func TestWaitForEventSeesEarlierAndLaterEvents(t *testing.T) {
	testlog.Start(t)
	ctx := testContext(t)
	app, conn := connectApp(t, ctx)

	app.write(envelope.NewEvent("ready").Encode())
	if _, err := conn.WaitForEvent(ctx, "ready", nil); err != nil {
		t.Fatalf("earlier event: %v", err)
	}

	got := make(chan envelope.Event, 1)
	go func() {
		ev, err := conn.WaitForEvent(ctx, "progress", func(ev envelope.Event) bool {
			v, _ := ev.Data.Int("percent")
			return v == 100
		})
		if err != nil {
			t.Errorf("wait: %v", err)
		}
		got <- ev
	}()
	app.write(envelope.NewEvent("progress").WithParameter("percent", 50).Encode())
	app.write(envelope.NewEvent("progress").WithParameter("percent", 100).Encode())

	select {
	case ev := <-got:
		if v, _ := ev.Data.Int("percent"); v != 100 {
			t.Fatalf("matched wrong event %+v", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("event never matched")
	}

	conn.ClearEvents()
	if n := len(conn.Events()); n != 0 {
		t.Fatalf("events should be cleared, got %d", n)
	}
}

func TestCloseFailsPendingSends(t *testing.T) {
	testlog.Start(t)
	ctx := testContext(t)
	app, conn := connectApp(t, ctx)

	errs := make(chan error, 1)
	go func() {
		_, err := conn.Send(ctx, "never-answered", Args{})
		errs <- err
	}()
	app.readCommand()
	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !errors.Is(<-errs, ErrConnClosed) {
		t.Fatalf("pending send should fail with ErrConnClosed")
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := conn.Send(ctx, "after-close", Args{}); !errors.Is(err, ErrConnClosed) {
		t.Fatalf("send after close should fail, got %v", err)
	}
	if _, err := conn.WaitForEvent(ctx, "anything", nil); !errors.Is(err, ErrConnClosed) {
		t.Fatalf("wait after close should fail, got %v", err)
	}
}

func TestPeerDisconnectEndsConnection(t *testing.T) {
	testlog.Start(t)
	ctx := testContext(t)
	app, conn := connectApp(t, ctx)

	_ = app.conn.Close()
	select {
	case <-conn.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("read loop did not stop")
	}
	if conn.Err() != nil {
		t.Fatalf("clean disconnect should not record an error, got %v", conn.Err())
	}
}

func TestBadFrameRecordsError(t *testing.T) {
	testlog.Start(t)
	ctx := testContext(t)
	app, conn := connectApp(t, ctx)

	buf := frame.Encode([]byte(`{}`))
	buf[3] = 0
	if _, err := app.conn.Write(buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	<-conn.Done()
	if !errors.Is(conn.Err(), frame.ErrBadMagic) {
		t.Fatalf("expected bad magic, got %v", conn.Err())
	}
}

func TestTruncatedHeaderRecordsError(t *testing.T) {
	testlog.Start(t)
	ctx := testContext(t)
	app, conn := connectApp(t, ctx)

	if _, err := app.conn.Write(frame.Encode([]byte(`{}`))[:5]); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = app.conn.Close()
	select {
	case <-conn.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("read loop did not stop")
	}
	if !errors.Is(conn.Err(), frame.ErrShortHeader) {
		t.Fatalf("a header cut short is a desync, got %v", conn.Err())
	}
}

func TestAcceptHonoursContext(t *testing.T) {
	testlog.Start(t)
	srv, err := Listen(context.Background(), "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := srv.Accept(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	_ = srv.Close()
	if _, err := srv.Accept(context.Background()); !errors.Is(err, ErrServerClosed) {
		t.Fatalf("expected ErrServerClosed, got %v", err)
	}
}

func TestPollUntil(t *testing.T) {
	testlog.Start(t)
	ctx := testContext(t)
	calls := 0
	v, err := PollUntil(ctx, time.Millisecond, func(context.Context) (int, error) {
		calls++
		return calls, nil
	}, func(n int) bool { return n >= 3 })
	if err != nil || v != 3 {
		t.Fatalf("PollUntil = %d, %v", v, err)
	}

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = WaitForResult(short, time.Millisecond, func(context.Context) (bool, error) { return false, nil }, true)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout, got %v", err)
	}

	boom := errors.New("boom")
	if _, err := PollUntil(ctx, time.Millisecond, func(context.Context) (int, error) { return 0, boom }, func(int) bool { return true }); !errors.Is(err, boom) {
		t.Fatalf("query error should end polling, got %v", err)
	}
}

func TestLaunchAppendsPortFlag(t *testing.T) {
	testlog.Start(t)
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	ctx := testContext(t)
	srv, err := Listen(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer srv.Close()

	want := "--e2e-test-port=" + strconv.Itoa(int(srv.Port()))
	app, err := srv.Launch(ctx, sh, []string{"-c", `test "$1" = "` + want + `"`, "sh"}, nil)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if err := app.Wait(); err != nil {
		t.Fatalf("app did not receive %s: %v", want, err)
	}
	if err := app.Kill(); err != nil {
		t.Fatalf("kill after exit should be a no-op: %v", err)
	}
}
