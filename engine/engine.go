package engine

import (
	"sync"

	"doseedge/backend"
	"doseedge/config"
	"doseedge/dosing"
	"doseedge/scale"
	"doseedge/store"
)

// LogFunc is the logging callback signature.
type LogFunc func(format string, args ...interface{})

// Engine centralizes all business logic and orchestrates subsystems: the
// backend client, the push-event stream, the dosing session, and the
// live-weight monitor.
type Engine struct {
	cfg        *config.Config
	configPath string
	db         *store.DB
	logFn      LogFunc
	debugFn    LogFunc

	mu       sync.RWMutex
	client   *backend.Client
	session  *dosing.Session
	stream   *backend.Stream
	scaleMon *scale.Monitor

	Events   *EventBus
	stopChan chan struct{}
}

// Config holds the parameters needed to create an Engine.
type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	LogFunc    LogFunc
	Debug      bool
}

// New creates a new Engine. Call Start() to initialize and wire subsystems.
func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = func(string, ...interface{}) {}
	}
	debugFn := LogFunc(func(string, ...interface{}) {})
	if c.Debug {
		debugFn = logFn
	}
	return &Engine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		db:         c.DB,
		logFn:      logFn,
		debugFn:    debugFn,
		Events:     NewEventBus(),
		stopChan:   make(chan struct{}),
	}
}

// Start creates all subsystems, wires event handlers, and connects.
func (e *Engine) Start() {
	e.mu.Lock()
	e.client = backend.NewClient(&e.cfg.Backend)
	e.session = dosing.NewSession(e.cfg.Dosing, e.client, &dosingEmitter{bus: e.Events})
	e.stream = backend.NewStream(e.cfg.Backend.EventsURL, &streamHandler{engine: e})
	if e.cfg.Scale.Enabled {
		e.scaleMon = scale.NewMonitor(e.cfg.Scale.StreamURL, &scaleEmitter{bus: e.Events})
	}
	e.mu.Unlock()

	e.wireEventHandlers()

	e.stream.Start()
	if e.scaleMon != nil {
		e.scaleMon.Start()
	}

	// Initial resolve off the startup path; the backend may be unreachable.
	go e.session.Resolve()

	e.logFn("Engine started: namespace=%s line_id=%s backend=%s", e.cfg.Namespace, e.cfg.LineID, e.cfg.Backend.URL)
}

// Stop shuts down all subsystems gracefully.
func (e *Engine) Stop() {
	select {
	case <-e.stopChan:
	default:
		close(e.stopChan)
	}

	e.mu.RLock()
	stream, scaleMon, session := e.stream, e.scaleMon, e.session
	e.mu.RUnlock()

	if stream != nil {
		stream.Stop()
	}
	if scaleMon != nil {
		scaleMon.Stop()
	}
	if session != nil {
		session.Close()
	}

	e.logFn("Engine stopped")
}

// ApplyBackendConfig rebuilds the backend client, session, and push stream
// to match the current config. In-flight session state is abandoned.
func (e *Engine) ApplyBackendConfig() {
	e.mu.Lock()
	oldStream := e.stream
	oldSession := e.session
	e.client = backend.NewClient(&e.cfg.Backend)
	e.session = dosing.NewSession(e.cfg.Dosing, e.client, &dosingEmitter{bus: e.Events})
	e.stream = backend.NewStream(e.cfg.Backend.EventsURL, &streamHandler{engine: e})
	newStream := e.stream
	newSession := e.session
	e.mu.Unlock()

	if oldStream != nil {
		oldStream.Stop()
	}
	if oldSession != nil {
		oldSession.Close()
	}
	newStream.Start()
	go newSession.Resolve()

	e.logFn("Backend config applied: url=%s", e.cfg.Backend.URL)
}

// ApplyScaleConfig stops and restarts the weight monitor to match the
// current config. Always stops first to handle enable/disable cleanly.
func (e *Engine) ApplyScaleConfig() {
	e.mu.Lock()
	old := e.scaleMon
	e.scaleMon = nil
	if e.cfg.Scale.Enabled {
		e.scaleMon = scale.NewMonitor(e.cfg.Scale.StreamURL, &scaleEmitter{bus: e.Events})
	}
	mon := e.scaleMon
	e.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	if mon != nil {
		mon.Start()
	}
}

// DB returns the database handle.
func (e *Engine) DB() *store.DB { return e.db }

// AppConfig returns the app config.
func (e *Engine) AppConfig() *config.Config { return e.cfg }

// ConfigPath returns the config file path.
func (e *Engine) ConfigPath() string { return e.configPath }

// Session returns the dosing session.
func (e *Engine) Session() *dosing.Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session
}

// Backend returns the backend API client.
func (e *Engine) Backend() *backend.Client {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.client
}

// Scale returns the weight monitor, or nil when disabled.
func (e *Engine) Scale() *scale.Monitor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scaleMon
}

// StreamConnected reports whether the backend push channel is up.
func (e *Engine) StreamConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stream != nil && e.stream.IsConnected()
}
