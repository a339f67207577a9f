package dbus

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

// TypeTextHandler is called when a client invokes TypeText. It runs the
// injection synchronously; a non-nil error is returned to the caller as
// a D-Bus error.
type TypeTextHandler func() error

// Server implements the io.github.ctrltap.DoubleTap D-Bus interface on
// the session bus.
type Server struct {
	conn    *dbus.Conn
	logger  *slog.Logger
	version string

	// Handlers
	typeTextHandler TypeTextHandler
	deviceLister    func() []string
	injectorReady   func() bool

	startedAt    time.Time
	triggerCount atomic.Uint64

	mu      sync.Mutex
	running bool
}

// NewServer creates a new Server.
func NewServer(version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:  logger,
		version: version,
	}
}

// SetTypeTextHandler sets the handler called when TypeText is invoked.
func (s *Server) SetTypeTextHandler(handler TypeTextHandler) {
	s.typeTextHandler = handler
}

// SetDeviceLister sets the function reporting monitored device names.
func (s *Server) SetDeviceLister(lister func() []string) {
	s.deviceLister = lister
}

// SetInjectorReady sets the function reporting injector availability.
func (s *Server) SetInjectorReady(ready func() bool) {
	s.injectorReady = ready
}

// Start connects to the session bus, exports the interface and claims
// the well-known name. A taken name is an error: only one daemon
// instance may run per session.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.mu.Unlock()

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	s.conn = conn

	if err := conn.Export(s, ObjectPath, Interface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: ObjectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    Interface,
				Methods: doubleTapMethods(),
				Signals: doubleTapSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), ObjectPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken: another daemon instance is running", BusName)
	}

	s.mu.Lock()
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("D-Bus server started", "name", BusName, "path", ObjectPath)
	return nil
}

// Stop releases the bus name.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.conn != nil {
		if _, err := s.conn.ReleaseName(BusName); err != nil {
			s.logger.Warn("failed to release bus name", "error", err)
		}
		// The session bus connection is shared; don't close it.
	}

	s.logger.Info("D-Bus server stopped")
	return nil
}

// EmitTriggered broadcasts the zero-payload Triggered signal.
// Fire-and-forget: zero connected subscribers is not an error.
func (s *Server) EmitTriggered() error {
	if s.conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	if err := s.conn.Emit(ObjectPath, SignalTriggered); err != nil {
		return fmt.Errorf("failed to emit Triggered signal: %w", err)
	}

	s.triggerCount.Add(1)
	s.logger.Debug("emitted Triggered signal")
	return nil
}

// TypeText runs the paste injection synchronously.
// D-Bus method: TypeText() -> nothing
func (s *Server) TypeText() *dbus.Error {
	s.logger.Debug("TypeText called")

	if s.typeTextHandler == nil {
		return dbus.MakeFailedError(fmt.Errorf("injection not available"))
	}
	if err := s.typeTextHandler(); err != nil {
		s.logger.Warn("TypeText failed", "error", err)
		return dbus.MakeFailedError(err)
	}
	return nil
}

// Status reports the daemon's runtime state.
// D-Bus method: Status() -> (s version, x started_unix, t triggers, as devices, b injector_ready)
func (s *Server) Status() (string, int64, uint64, []string, bool, *dbus.Error) {
	s.logger.Debug("Status called")

	devices := []string{}
	if s.deviceLister != nil {
		devices = s.deviceLister()
	}
	ready := false
	if s.injectorReady != nil {
		ready = s.injectorReady()
	}

	s.mu.Lock()
	started := s.startedAt
	s.mu.Unlock()

	return s.version, started.Unix(), s.triggerCount.Load(), devices, ready, nil
}

// TriggerCount returns the number of Triggered signals emitted.
func (s *Server) TriggerCount() uint64 {
	return s.triggerCount.Load()
}

// doubleTapMethods returns the D-Bus method introspection data.
func doubleTapMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "TypeText",
		},
		{
			Name: "Status",
			Args: []introspect.Arg{
				{Name: "version", Type: "s", Direction: "out"},
				{Name: "started_unix", Type: "x", Direction: "out"},
				{Name: "trigger_count", Type: "t", Direction: "out"},
				{Name: "devices", Type: "as", Direction: "out"},
				{Name: "injector_ready", Type: "b", Direction: "out"},
			},
		},
	}
}

// doubleTapSignals returns the D-Bus signal introspection data.
func doubleTapSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: "Triggered",
		},
		{
			Name: "SetAlwaysOnTop",
			Args: []introspect.Arg{
				{Name: "pinned", Type: "b"},
			},
		},
	}
}
