package dbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
)

// nameOwnerChanged is the bus daemon's signal for service (dis)appearance.
const nameOwnerChanged = "org.freedesktop.DBus.NameOwnerChanged"

// TriggeredHandler is called once per received Triggered broadcast.
type TriggeredHandler func()

// PinHandler is called once per received SetAlwaysOnTop broadcast.
type PinHandler func(pinned bool)

// busConn is the subset of *dbus.Conn the subscriber uses, separated so
// tests can drive the reconnect loop without a session bus.
type busConn interface {
	nameOwner(name string) (string, error)
	addMatch(options ...dbus.MatchOption) error
	signals(ch chan<- *dbus.Signal)
	close() error
}

// sessionConn adapts a private *dbus.Conn to busConn.
type sessionConn struct {
	conn *dbus.Conn
}

func dialSessionBus() (busConn, error) {
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		return nil, err
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, err
	}
	return &sessionConn{conn: conn}, nil
}

func (c *sessionConn) nameOwner(name string) (string, error) {
	var owner string
	err := c.conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, name).Store(&owner)
	return owner, err
}

func (c *sessionConn) addMatch(options ...dbus.MatchOption) error {
	return c.conn.AddMatchSignal(options...)
}

func (c *sessionConn) signals(ch chan<- *dbus.Signal) {
	c.conn.Signal(ch)
}

func (c *sessionConn) close() error {
	return c.conn.Close()
}

// Subscriber maintains a live subscription to the daemon's broadcasts
// for the consumer process's entire lifetime. Every failure class —
// connect failure, daemon not running, subscription failure, stream
// end — is recovered with exponential backoff; each received event is
// forwarded exactly once.
type Subscriber struct {
	logger  *slog.Logger
	backoff *Backoff

	onTriggered TriggeredHandler
	onPin       PinHandler

	// Injection points for tests.
	dial func() (busConn, error)
	wait func(ctx context.Context, d time.Duration) error
}

// NewSubscriber creates a Subscriber with default backoff bounds.
func NewSubscriber(logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		logger:  logger,
		backoff: NewBackoff(BackoffMin, BackoffMax),
		dial:    dialSessionBus,
		wait:    waitFor,
	}
}

// SetTriggeredHandler sets the callback for Triggered broadcasts.
func (s *Subscriber) SetTriggeredHandler(handler TriggeredHandler) {
	s.onTriggered = handler
}

// SetPinHandler sets the callback for SetAlwaysOnTop broadcasts.
func (s *Subscriber) SetPinHandler(handler PinHandler) {
	s.onPin = handler
}

// Run drives the connect/subscribe/consume loop until the context is
// cancelled. It never returns on failure: each attempt that ends, for
// whatever reason, is followed by a backoff sleep and a fresh attempt
// from the connection step.
func (s *Subscriber) Run(ctx context.Context) {
	for {
		err := s.subscribeOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warn("subscription attempt failed", "error", err)
		}

		delay := s.backoff.Next()
		s.logger.Info("reconnecting to daemon", "delay", delay)
		if err := s.wait(ctx, delay); err != nil {
			return
		}
	}
}

// subscribeOnce performs one Connecting → Subscribed → Ended pass:
// connect, verify the daemon owns its name, install match rules, then
// consume signals until the stream ends or the daemon goes away.
func (s *Subscriber) subscribeOnce(ctx context.Context) error {
	conn, err := s.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.close()

	owner, err := conn.nameOwner(BusName)
	if err != nil {
		return fmt.Errorf("daemon not running (no owner for %s): %w", BusName, err)
	}

	if err := conn.addMatch(
		dbus.WithMatchInterface(Interface),
		dbus.WithMatchObjectPath(dbus.ObjectPath(ObjectPath)),
	); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", Interface, err)
	}

	// Track the daemon's name so a daemon restart ends this pass
	// cleanly instead of leaving a silent subscription.
	if err := conn.addMatch(
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, BusName),
	); err != nil {
		return fmt.Errorf("failed to watch daemon name: %w", err)
	}

	ch := make(chan *dbus.Signal, 16)
	conn.signals(ch)

	// Subscribed: from here on the connection counts as a success.
	s.backoff.Reset()
	s.logger.Info("subscribed to daemon broadcasts", "owner", owner)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-ch:
			if !ok {
				return errors.New("signal stream ended")
			}
			if err := s.handleSignal(sig); err != nil {
				return err
			}
		}
	}
}

// handleSignal dispatches one bus signal. A non-nil error ends the
// current subscription pass.
func (s *Subscriber) handleSignal(sig *dbus.Signal) error {
	switch sig.Name {
	case SignalTriggered:
		s.logger.Debug("Triggered broadcast received")
		if s.onTriggered != nil {
			s.onTriggered()
		}

	case SignalAlwaysOnTop:
		if len(sig.Body) != 1 {
			s.logger.Warn("malformed SetAlwaysOnTop broadcast", "body_len", len(sig.Body))
			return nil
		}
		pinned, ok := sig.Body[0].(bool)
		if !ok {
			s.logger.Warn("malformed SetAlwaysOnTop broadcast", "body", sig.Body[0])
			return nil
		}
		s.logger.Debug("SetAlwaysOnTop broadcast received", "pinned", pinned)
		if s.onPin != nil {
			s.onPin(pinned)
		}

	case nameOwnerChanged:
		if len(sig.Body) != 3 {
			return nil
		}
		name, _ := sig.Body[0].(string)
		newOwner, _ := sig.Body[2].(string)
		if name == BusName && newOwner == "" {
			return errors.New("daemon disappeared from the bus")
		}
	}
	return nil
}

// waitFor is a cancel-safe sleep.
func waitFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
