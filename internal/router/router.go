package router

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/leafo/midiroute/internal/devices"
)

// ErrForwarding matches every failure to set up a route's connections.
var ErrForwarding = errors.New("failed to forward MIDI messages")

// ForwardingError reports why a route's connections could not be opened.
type ForwardingError struct {
	Err error
}

func (e *ForwardingError) Error() string {
	return fmt.Sprintf("%s: %v", ErrForwarding, e.Err)
}

func (e *ForwardingError) Is(target error) bool { return target == ErrForwarding }

func (e *ForwardingError) Unwrap() error { return e.Err }

// Router activates routes. Status lines go to Stdout; a session ends when a
// line (or EOF) is read from Hold or the context passed to Activate is done.
// A nil Hold leaves only the context.
type Router struct {
	Stdout io.Writer
	Hold   io.Reader
	Logger *slog.Logger
}

// New returns a Router that prints to stdout and holds sessions open until
// hold yields a line.
func New(stdout io.Writer, hold io.Reader, logger *slog.Logger) *Router {
	return &Router{Stdout: stdout, Hold: hold, Logger: logger}
}

// Activate opens the target, listens on the source and forwards every
// inbound message verbatim until the session is released. Failing to open
// either side returns a *ForwardingError; a failed send is logged and
// forwarding goes on.
func (r *Router) Activate(ctx context.Context, route Route) error {
	logger := r.logger()

	fmt.Fprintln(r.Stdout, "Activating route:")
	fmt.Fprintf(r.Stdout, "  Input port: %s\n", route.Source)
	fmt.Fprintf(r.Stdout, "  Output port: %s\n", route.Target)

	conn, err := route.Target.Connect()
	if err != nil {
		return &ForwardingError{Err: err}
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Warn("failed to close output", "port", route.Target.String(), "err", err)
		}
	}()

	fwd := &forwarder{conn: conn, logger: logger}
	stop, err := route.Source.Listen(fwd.forward)
	if err != nil {
		return &ForwardingError{Err: err}
	}

	logger.Info("routing", "route", route.String())
	fmt.Fprintln(r.Stdout, "Press Enter to stop routing...")

	err = r.wait(ctx)
	stop()

	logger.Info("route stopped",
		"forwarded", fwd.forwarded.Load(),
		"failed", fwd.failed.Load())
	return err
}

func (r *Router) wait(ctx context.Context) error {
	if r.Hold == nil {
		<-ctx.Done()
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(r.Hold).ReadString('\n')
		if err == io.EOF {
			err = nil
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return &ForwardingError{Err: errors.Wrap(err, "failed to read from hold input")}
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (r *Router) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// forwarder is the listener callback. It runs on the driver's goroutine and
// is the only user of conn while the route is active.
type forwarder struct {
	conn   devices.Conn
	logger *slog.Logger

	forwarded atomic.Uint64
	failed    atomic.Uint64
}

func (f *forwarder) forward(msg []byte) {
	if err := f.conn.Send(msg); err != nil {
		f.failed.Add(1)
		f.logger.Error("Error sending message", "err", err)
		return
	}

	f.forwarded.Add(1)
	if f.logger.Enabled(context.Background(), slog.LevelDebug) {
		f.logger.Debug("forwarded", "msg", Describe(msg))
	}
}
