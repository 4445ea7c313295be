package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-lightstrip/internal/color"
	"github.com/coreman2200/funtimes-lightstrip/internal/command"
	diag "github.com/coreman2200/funtimes-lightstrip/internal/diagnostics"
	"github.com/coreman2200/funtimes-lightstrip/internal/frame"
	"github.com/coreman2200/funtimes-lightstrip/internal/layout"
	"github.com/coreman2200/funtimes-lightstrip/internal/led"
	"github.com/coreman2200/funtimes-lightstrip/internal/selftest"
	"github.com/coreman2200/funtimes-lightstrip/internal/sequence"
)

const writeWait = 200 * time.Millisecond

// Renderer is the part of the frame scheduler the hub reports on and drives.
type Renderer interface {
	Stats() frame.Stats
	RunTest(r *selftest.Runner)
}

// Hub serves the browser preview: frames, diagnostics, control and health.
// PublishFrame and PushDiag never block the caller; Run does the writes.
type Hub struct {
	mu     sync.RWMutex
	Layout layout.Layout
	Driver string

	sub    command.Submitter
	rend   Renderer
	player *sequence.Player

	frameID   atomic.Uint64
	latest    atomic.Pointer[[]byte]
	wake      chan struct{}
	diags     chan diag.Diagnostic
	startTime time.Time

	clients     map[*websocket.Conn]string
	diagClients map[*websocket.Conn]string
	up          websocket.Upgrader
}

// NewHub builds a hub. player may be nil.
func NewHub(l layout.Layout, driver string, sub command.Submitter, rend Renderer, player *sequence.Player) *Hub {
	return &Hub{
		Layout:      l,
		Driver:      driver,
		sub:         sub,
		rend:        rend,
		player:      player,
		wake:        make(chan struct{}, 1),
		diags:       make(chan diag.Diagnostic, 64),
		startTime:   time.Now(),
		clients:     map[*websocket.Conn]string{},
		diagClients: map[*websocket.Conn]string{},
		up:          websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Routes registers the hub endpoints on mux.
func (h *Hub) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleFramesWS)
	mux.HandleFunc("/diag", h.HandleDiagWS)
	mux.HandleFunc("/control", h.HandleControlWS)
	mux.HandleFunc("/health", h.HandleHealth)
}

// PublishFrame keeps px as the latest preview frame. Older unsent frames
// are dropped.
func (h *Hub) PublishFrame(px []color.RGB) {
	rgb := led.RGBBytes(nil, px)
	h.latest.Store(&rgb)
	h.frameID.Add(1)
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// PushDiag queues d for diagnostics clients, dropping it when the queue is
// full.
func (h *Hub) PushDiag(d diag.Diagnostic) {
	select {
	case h.diags <- d:
	default:
		log.Debug().Str("code", d.Code).Msg("diag queue full")
	}
}

// Run writes queued frames and diagnostics until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case <-h.wake:
			if p := h.latest.Load(); p != nil {
				h.broadcastFrame(*p)
			}
		case d := <-h.diags:
			h.pushDiag(d)
		}
	}
}

func (h *Hub) register(set map[*websocket.Conn]string, conn *websocket.Conn, id string) {
	h.mu.Lock()
	set[conn] = id
	h.mu.Unlock()
}

// drain reads until the peer goes away, then unregisters conn.
func (h *Hub) drain(set map[*websocket.Conn]string, conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(set, conn)
		h.mu.Unlock()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	// topology goes out before registering so Run is the only writer after
	id := uuid.NewString()
	h.sendTopology(conn, id)
	h.register(h.clients, conn, id)
	log.Debug().Str("session", id).Msg("frames client connected")
	go h.drain(h.clients, conn)
}

func (h *Hub) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	id := uuid.NewString()
	h.register(h.diagClients, conn, id)
	log.Debug().Str("session", id).Msg("diag client connected")
	go h.drain(h.diagClients, conn)
}

// controlMsg is a command plus the hub-only actions.
type controlMsg struct {
	command.Command
	RunTest string `json:"runTest,omitempty"`
	Hold    int    `json:"hold,omitempty"`
	Program string `json:"program,omitempty"` // start | pause | resume | stop
}

type controlReply struct {
	OK      bool             `json:"ok"`
	Error   string           `json:"error,omitempty"`
	Session string           `json:"session"`
	State   command.Snapshot `json:"state"`
}

func (h *Hub) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	id := uuid.NewString()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		reply := controlReply{OK: true, Session: id}
		var msg controlMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			reply.OK, reply.Error = false, err.Error()
		} else if err := h.applyControl(msg); err != nil {
			reply.OK, reply.Error = false, err.Error()
			h.PushDiag(diag.Diagnostic{
				Severity: diag.Warn, Code: diag.CommandRejected, Summary: "Control message rejected",
				Detail: err.Error(), Evidence: map[string]any{"session": id},
			})
		}
		reply.State = h.sub.Snapshot()
		b, _ := json.Marshal(reply)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
}

func (h *Hub) applyControl(msg controlMsg) error {
	switch {
	case msg.RunTest != "":
		kind, ok := selftest.ParseKind(msg.RunTest)
		if !ok {
			h.PushDiag(diag.Diagnostic{
				Severity: diag.Warn, Code: diag.TestUnknown, Summary: "Unknown test name",
				Evidence: map[string]any{"name": msg.RunTest},
			})
			return errors.Errorf("unknown test %q", msg.RunTest)
		}
		h.PushDiag(diag.Diagnostic{Severity: diag.Info, Code: diag.TestRunning, Summary: "Running test", Detail: msg.RunTest})
		h.rend.RunTest(selftest.NewRunner(selftest.Plan{Kind: kind, Hold: msg.Hold}))
		return nil
	case msg.Program != "":
		if h.player == nil {
			return errors.New("no program loaded")
		}
		switch msg.Program {
		case "start":
			h.player.Start()
		case "pause":
			h.player.Pause()
		case "resume":
			h.player.Resume()
		case "stop":
			h.player.Stop()
		default:
			return errors.Errorf("unknown program action %q", msg.Program)
		}
		return nil
	}
	return command.Dispatch(h.sub, msg.Command)
}

type health struct {
	FrameID uint64           `json:"frame_id"`
	UptimeS float64          `json:"uptime_s"`
	Count   int              `json:"count"`
	Groups  int              `json:"groups"`
	Driver  string           `json:"driver"`
	Stats   frame.Stats      `json:"stats"`
	State   command.Snapshot `json:"state"`
	Program string           `json:"program,omitempty"`
}

func (h *Hub) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	resp := health{
		FrameID: h.frameID.Load(),
		UptimeS: time.Since(h.startTime).Seconds(),
		Count:   h.Layout.Count(),
		Groups:  h.Layout.Groups(),
		Driver:  h.Driver,
	}
	h.mu.RUnlock()
	resp.Stats = h.rend.Stats()
	resp.State = h.sub.Snapshot()
	if h.player != nil {
		resp.Program = string(h.player.State())
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Hub) sendTopology(conn *websocket.Conn, id string) {
	h.mu.RLock()
	top := map[string]any{
		"count":   h.Layout.Count(),
		"groups":  h.Layout.Sizes,
		"driver":  h.Driver,
		"session": id,
	}
	h.mu.RUnlock()
	b, _ := json.Marshal(top)
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func (h *Hub) broadcastFrame(rgb []byte) {
	type frameMsg struct {
		T       int64  `json:"t"`
		FrameID uint64 `json:"frame_id"`
		RGB     []byte `json:"rgb"`
	}
	b, _ := json.Marshal(frameMsg{T: time.Now().UnixNano(), FrameID: h.frameID.Load(), RGB: rgb})
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c, id := range h.clients {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Str("session", id).Msg("write frame")
		}
	}
}

func (h *Hub) pushDiag(d diag.Diagnostic) {
	b, _ := json.Marshal(d)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.diagClients {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.WriteMessage(websocket.TextMessage, b)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.Close()
	}
	for c := range h.diagClients {
		c.Close()
	}
}
