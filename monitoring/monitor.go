// Package monitoring turns a running simulation into a small web service that
// reports progress, resources, metrics and the state of every UE, and that can
// pause and continue the engine.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/hotrace/measure"
	"github.com/sarchlab/hotrace/monitoring/web"
	"github.com/sarchlab/hotrace/registry"
	"github.com/sarchlab/hotrace/sim"
)

// ErrNotStarted is returned when stopping a monitor that is not serving.
var ErrNotStarted = errors.New("monitor server not started")

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	engine     sim.Engine
	registry   *registry.Registry
	cache      *measure.Cache
	metrics    *Metrics
	portNumber int
	browser    bool
	logger     zerolog.Logger

	serverLock sync.Mutex
	server     *http.Server

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		logger: log.With().Str("component", "monitor").Logger(),
	}
}

// WithPortNumber sets the port number of the monitor. Zero picks a random
// port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warn().
			Int("port", portNumber).
			Msg("port number not allowed for the monitoring server, " +
				"using a random port instead")

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser sets if the monitor page is opened in a browser once the server
// is up.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.browser = open
	return m
}

// WithLogger sets the logger used for server messages.
func (m *Monitor) WithLogger(logger zerolog.Logger) *Monitor {
	m.logger = logger
	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e sim.Engine) {
	m.engine = e
}

// RegisterEntities registers the registry and the cache that describe the
// UEs.
func (m *Monitor) RegisterEntities(reg *registry.Registry, cache *measure.Cache) {
	m.registry = reg
	m.cache = cache
}

// RegisterMetrics sets the metrics served under /metrics.
func (m *Monitor) RegisterMetrics(metrics *Metrics) {
	m.metrics = metrics
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// TrackTime creates a progress bar over the simulated time, counted in
// milliseconds, and returns the engine hook that advances it.
func (m *Monitor) TrackTime(stopTime sim.VTimeInSec) sim.Hook {
	bar := m.CreateProgressBar("Simulated time (ms)", toMillis(stopTime))

	return sim.HookFunc(func(ctx sim.HookCtx) {
		if ctx.Pos != sim.HookPosAfterEvent {
			return
		}

		evt, ok := ctx.Item.(sim.Event)
		if !ok {
			return
		}

		bar.SetFinished(toMillis(evt.Time()))
	})
}

func toMillis(t sim.VTimeInSec) uint64 {
	if t <= 0 {
		return 0
	}

	return uint64(float64(t) * 1000)
}

// Router returns the handler that serves the monitoring API and the web page.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/entities", m.listEntities)
	r.HandleFunc("/api/entity/{id}", m.entityDetails)
	r.HandleFunc("/api/entity/{id}/field/{path}", m.entityField)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	if m.metrics != nil {
		r.Handle("/metrics", m.metrics.Handler())
	}

	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns the URL it
// listens on.
func (m *Monitor) StartServer() (string, error) {
	m.serverLock.Lock()
	defer m.serverLock.Unlock()

	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("starting monitor: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().Err(err).Msg("monitor server stopped")
		}
	}()

	m.logger.Info().Str("url", url).Msg("monitoring simulation")

	if m.browser {
		if err := browser.OpenURL(url); err != nil {
			m.logger.Warn().Err(err).Msg("cannot open browser")
		}
	}

	return url, nil
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	m.serverLock.Lock()
	defer m.serverLock.Unlock()

	if m.server == nil {
		return ErrNotStarted
	}

	err := m.server.Shutdown(ctx)
	m.server = nil

	return err
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.engine.CurrentTime()
	fmt.Fprintf(w, "{\"now\":%.10f}", now)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	rsp := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		rsp = append(rsp, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	m.writeJSON(w, rsp)
}

type entityRsp struct {
	ID       registry.EntityID `json:"id"`
	Cell     registry.CellID   `json:"cell"`
	Attached bool              `json:"attached"`
}

func (m *Monitor) listEntities(w http.ResponseWriter, _ *http.Request) {
	rsp := []entityRsp{}

	if m.registry != nil {
		for _, id := range m.registry.Entities() {
			cell, ok := m.registry.ServingCell(id)
			rsp = append(rsp, entityRsp{ID: id, Cell: cell, Attached: ok})
		}
	}

	m.writeJSON(w, rsp)
}

// EntityState is everything the monitor knows about one UE.
type EntityState struct {
	ID          registry.EntityID
	ServingCell registry.CellID
	Attached    bool
	Address     string
	Values      measure.Snapshot
}

func (m *Monitor) entityState(id registry.EntityID) EntityState {
	state := EntityState{ID: id}
	state.ServingCell, state.Attached = m.registry.ServingCell(id)

	if addr, ok := m.registry.Address(id); ok {
		state.Address = addr.String()
	}

	if m.cache != nil {
		state.Values = m.cache.Get(id)
	}

	return state
}

func (m *Monitor) findEntityOr404(
	w http.ResponseWriter,
	r *http.Request,
) (EntityState, bool) {
	raw := mux.Vars(r)["id"]

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		http.Error(w, "Invalid entity ID", http.StatusBadRequest)
		return EntityState{}, false
	}

	if m.registry == nil || !m.registry.Contains(registry.EntityID(id)) {
		http.Error(w, "Entity not found", http.StatusNotFound)
		return EntityState{}, false
	}

	return m.entityState(registry.EntityID(id)), true
}

func (m *Monitor) entityDetails(w http.ResponseWriter, r *http.Request) {
	state, ok := m.findEntityOr404(w, r)
	if !ok {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(state)
	serializer.SetMaxDepth(2)

	m.serialize(w, serializer.Serialize)
}

func (m *Monitor) entityField(w http.ResponseWriter, r *http.Request) {
	state, ok := m.findEntityOr404(w, r)
	if !ok {
		return
	}

	fields := strings.Split(mux.Vars(r)["path"], ".")

	serializer := goseth.NewSerializer()
	serializer.SetRoot(state)
	serializer.SetMaxDepth(1)

	if err := serializer.SetEntryPoint(fields); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.serialize(w, serializer.Serialize)
}

func (m *Monitor) serialize(
	w http.ResponseWriter,
	serialize func(io.Writer) error,
) {
	buf := bytes.NewBuffer(nil)

	if err := serialize(buf); err != nil {
		m.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.fail(w, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		m.fail(w, err)
		return
	}

	memory, err := proc.MemoryInfo()
	if err != nil {
		m.fail(w, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memory.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		m.fail(w, err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.fail(w, err)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (m *Monitor) fail(w http.ResponseWriter, err error) {
	m.logger.Error().Err(err).Msg("monitor request failed")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
