package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-lightstrip/internal/color"
	"github.com/coreman2200/funtimes-lightstrip/internal/command"
	diag "github.com/coreman2200/funtimes-lightstrip/internal/diagnostics"
	"github.com/coreman2200/funtimes-lightstrip/internal/frame"
	"github.com/coreman2200/funtimes-lightstrip/internal/layout"
	"github.com/coreman2200/funtimes-lightstrip/internal/selftest"
	"github.com/coreman2200/funtimes-lightstrip/internal/sequence"
)

type fakeRenderer struct {
	mu    sync.Mutex
	tests []selftest.Kind
}

func (f *fakeRenderer) Stats() frame.Stats { return frame.Stats{Ticks: 42, State: "static"} }

func (f *fakeRenderer) RunTest(r *selftest.Runner) {
	f.mu.Lock()
	f.tests = append(f.tests, r.Kind())
	f.mu.Unlock()
}

type fixture struct {
	hub  *Hub
	req  *command.Request
	rend *fakeRenderer
	srv  *httptest.Server
}

func newFixture(t *testing.T, player *sequence.Player) *fixture {
	t.Helper()
	l, err := layout.New(4, []int{2, 2})
	require.NoError(t, err)
	f := &fixture{req: command.NewRequest(180), rend: &fakeRenderer{}}
	f.hub = NewHub(l, "sim", f.req, f.rend, player)

	mux := http.NewServeMux()
	f.hub.Routes(mux)
	f.srv = httptest.NewServer(mux)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = f.hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		f.srv.Close()
	})
	return f
}

func (f *fixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func control(t *testing.T, conn *websocket.Conn, msg string) controlReply {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	var r controlReply
	require.NoError(t, conn.ReadJSON(&r))
	return r
}

func TestControlDispatchesCommands(t *testing.T) {
	f := newFixture(t, nil)
	conn := f.dial(t, "/control")

	r := control(t, conn, `{"op":"on"}`)
	assert.True(t, r.OK)
	assert.NotEmpty(t, r.Session)
	assert.True(t, r.State.On)
	assert.Equal(t, uint8(180), f.req.Target())

	r = control(t, conn, `{"op":"loop","action":2,"start_hue":1,"up":true}`)
	assert.True(t, r.OK)
	assert.Equal(t, "cyclic_groups_fast", r.State.Loop)

	r = control(t, conn, `{"op":"strobe"}`)
	assert.False(t, r.OK)
	assert.Contains(t, r.Error, "unknown command op")

	r = control(t, conn, `not json`)
	assert.False(t, r.OK)
}

func TestControlRunsTests(t *testing.T) {
	f := newFixture(t, nil)
	conn := f.dial(t, "/control")

	assert.True(t, control(t, conn, `{"runTest":"rgb_channels","hold":5}`).OK)
	assert.False(t, control(t, conn, `{"runTest":"plane_z"}`).OK)

	f.rend.mu.Lock()
	defer f.rend.mu.Unlock()
	assert.Equal(t, []selftest.Kind{selftest.RGBTest}, f.rend.tests)
}

func TestControlProgram(t *testing.T) {
	req := command.NewRequest(100)
	player := sequence.NewPlayer(req)
	require.NoError(t, player.Load(sequence.Program{Steps: []sequence.Step{
		{Name: "on", DurationS: 1, Command: command.Command{Op: command.OpOn}},
	}}))
	f := newFixture(t, player)
	conn := f.dial(t, "/control")

	assert.True(t, control(t, conn, `{"program":"start"}`).OK)
	assert.Equal(t, sequence.Running, player.State())
	assert.Equal(t, uint8(100), req.Target())
	assert.False(t, control(t, conn, `{"program":"rewind"}`).OK)
}

func TestFramesStream(t *testing.T) {
	f := newFixture(t, nil)
	conn := f.dial(t, "/ws")

	var top map[string]any
	require.NoError(t, conn.ReadJSON(&top))
	assert.Equal(t, float64(4), top["count"])
	assert.Equal(t, "sim", top["driver"])

	// registration happens right after the topology write
	require.Eventually(t, func() bool {
		f.hub.mu.RLock()
		defer f.hub.mu.RUnlock()
		return len(f.hub.clients) == 1
	}, time.Second, 5*time.Millisecond)

	f.hub.PublishFrame([]color.RGB{{R: 1, G: 2, B: 3}, {}, {}, {R: 255}})
	var msg struct {
		FrameID uint64 `json:"frame_id"`
		RGB     []byte `json:"rgb"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, uint64(1), msg.FrameID)
	assert.Equal(t, []byte{1, 2, 3, 0, 0, 0, 0, 0, 0, 255, 0, 0}, msg.RGB)
}

func TestDiagStream(t *testing.T) {
	f := newFixture(t, nil)
	conn := f.dial(t, "/diag")
	require.Eventually(t, func() bool {
		f.hub.mu.RLock()
		defer f.hub.mu.RUnlock()
		return len(f.hub.diagClients) == 1
	}, time.Second, 5*time.Millisecond)

	f.hub.PushDiag(diag.Diagnostic{Severity: diag.Err, Code: diag.TransportError, Summary: "boom"})
	var d diag.Diagnostic
	require.NoError(t, conn.ReadJSON(&d))
	assert.Equal(t, diag.TransportError, d.Code)
	assert.Equal(t, diag.Err, d.Severity)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	f.req.On()

	res, err := http.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

	var h health
	require.NoError(t, json.NewDecoder(res.Body).Decode(&h))
	assert.Equal(t, 4, h.Count)
	assert.Equal(t, 2, h.Groups)
	assert.Equal(t, uint64(42), h.Stats.Ticks)
	assert.True(t, h.State.On)
	assert.Empty(t, h.Program)
}
