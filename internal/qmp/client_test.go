package qmp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeeftor/rowpilot/internal/constants"
	"github.com/jeeftor/rowpilot/internal/macro"
)

// fakeQEMU answers QMP commands on a unix socket and records them
type fakeQEMU struct {
	path string
	ln   net.Listener

	mu       sync.Mutex
	commands []Command
	raw      []map[string]any
}

func newFakeQEMU(t *testing.T) *fakeQEMU {
	t.Helper()
	dir, err := os.MkdirTemp("", "qmp")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	f := &fakeQEMU{path: filepath.Join(dir, "100.qmp")}
	f.ln, err = net.Listen("unix", f.path)
	require.NoError(t, err)
	t.Cleanup(func() { f.ln.Close() })
	go f.serve()
	return f
}

func (f *fakeQEMU) serve() {
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	w := bufio.NewWriter(conn)
	reply := func(v string) {
		w.WriteString(v + "\n")
		w.Flush()
	}

	reply(`{"QMP": {"version": {"qemu": {"major": 8}}, "capabilities": []}}`)
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			return
		}
		var cmd Command
		var raw map[string]any
		json.Unmarshal(line, &cmd)
		json.Unmarshal(line, &raw)
		f.mu.Lock()
		f.commands = append(f.commands, cmd)
		f.raw = append(f.raw, raw)
		f.mu.Unlock()

		switch cmd.Execute {
		case "query-status":
			reply(`{"event": "RESUME", "data": {}}`)
			reply(`{"return": {"running": true, "status": "running"}}`)
		case "screendump":
			args := raw["arguments"].(map[string]any)
			writePPM(args["filename"].(string))
			reply(`{"return": {}}`)
		case "bogus":
			reply(`{"error": {"class": "CommandNotFound", "desc": "The command bogus has not been found"}}`)
		default:
			reply(`{"return": {}}`)
		}
	}
}

// writePPM writes a 4x2 image whose pixel (x,y) has red = x*10 and green = y*10
func writePPM(path string) {
	var buf bytes.Buffer
	buf.WriteString("P6\n4 2\n255\n")
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			buf.Write([]byte{byte(x * 10), byte(y * 10), 0})
		}
	}
	os.WriteFile(path, buf.Bytes(), 0o644)
}

func (f *fakeQEMU) Commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.commands...)
}

func (f *fakeQEMU) Raw(i int) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.raw[i]
}

func connect(t *testing.T) (*Client, *fakeQEMU) {
	t.Helper()
	srv := newFakeQEMU(t)
	c := NewWithSocketPath("100", srv.path)
	c.KeyDelay = 0
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { c.Close() })
	return c, srv
}

func TestSocketPath(t *testing.T) {
	assert.Equal(t, "/var/run/qemu-server/108.qmp", SocketPath("108", ""))
	assert.Equal(t, "/tmp/vm.sock", SocketPath("108", "/tmp/vm.sock"))
	assert.Equal(t, "/var/run/qemu-server/108.qmp", New("108").SocketPath())
}

func TestConnectNegotiatesCapabilities(t *testing.T) {
	_, srv := connect(t)
	cmds := srv.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "qmp_capabilities", cmds[0].Execute)
}

func TestNotConnected(t *testing.T) {
	c := New("1")
	err := c.Move(context.Background(), 1, 1, 0)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestQueryStatusSkipsEvents(t *testing.T) {
	c, _ := connect(t)
	st, err := c.QueryStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Equal(t, "running", st.Status)
}

func TestCommandError(t *testing.T) {
	c, _ := connect(t)
	err := c.Execute(context.Background(), "bogus", nil, nil)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "CommandNotFound", cmdErr.Class)
}

func TestTypeTextSendsKeys(t *testing.T) {
	c, srv := connect(t)
	require.NoError(t, c.TypeText(context.Background(), "Hi!"))

	cmds := srv.Commands()
	require.Len(t, cmds, 4)
	for _, cmd := range cmds[1:] {
		assert.Equal(t, "send-key", cmd.Execute)
	}

	keys := func(i int) []any {
		return srv.Raw(i)["arguments"].(map[string]any)["keys"].([]any)
	}
	assert.Len(t, keys(1), 2, "uppercase H is shift+h")
	assert.Equal(t, map[string]any{"type": "qcode", "data": "i"}, keys(2)[0])
	assert.Equal(t, map[string]any{"type": "qcode", "data": "1"}, keys(3)[1])
}

func TestTypeTextRejectsUnknownCharacters(t *testing.T) {
	c, srv := connect(t)
	err := c.TypeText(context.Background(), "a김")
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.Len(t, srv.Commands(), 1, "nothing is typed when any character is unmappable")
}

func TestHotkey(t *testing.T) {
	c, srv := connect(t)
	require.NoError(t, c.Hotkey(context.Background(), "ctrl+shift+Enter"))

	args := srv.Raw(1)["arguments"].(map[string]any)["keys"].([]any)
	var data []string
	for _, k := range args {
		data = append(data, k.(map[string]any)["data"].(string))
	}
	assert.Equal(t, []string{"ctrl", "shift", "ret"}, data)

	assert.ErrorIs(t, c.Hotkey(context.Background(), "ctrl", "nosuchkey"), ErrUnknownKey)
}

func TestClickScalesCoordinates(t *testing.T) {
	c, srv := connect(t)
	c.Width, c.Height = 1024, 768
	require.NoError(t, c.Click(context.Background(), 1023, 0, macro.ButtonRight, 2))

	cmds := srv.Commands()
	require.Len(t, cmds, 6, "move then two down/up pairs")

	move := srv.Raw(1)["arguments"].(map[string]any)["events"].([]any)
	x := move[0].(map[string]any)["data"].(map[string]any)
	assert.Equal(t, "x", x["axis"])
	assert.Equal(t, float64(constants.AbsAxisMax), x["value"])

	down := srv.Raw(2)["arguments"].(map[string]any)["events"].([]any)[0].(map[string]any)
	assert.Equal(t, "btn", down["type"])
	assert.Equal(t, map[string]any{"button": "right", "down": true}, down["data"])
}

func TestScroll(t *testing.T) {
	c, srv := connect(t)
	require.NoError(t, c.Scroll(context.Background(), 10, 10, -2))

	require.Len(t, srv.Commands(), 4)
	ev := srv.Raw(2)["arguments"].(map[string]any)["events"].([]any)[0].(map[string]any)
	assert.Equal(t, "wheel-down", ev["data"].(map[string]any)["button"])
}

func TestDrag(t *testing.T) {
	c, srv := connect(t)
	require.NoError(t, c.Drag(context.Background(), macro.Point{X: 1, Y: 1}, macro.Point{X: 5, Y: 5}, macro.ButtonLeft, 0))
	assert.Len(t, srv.Commands(), 5)
}

func moveX(srv *fakeQEMU, i int) float64 {
	ev := srv.Raw(i)["arguments"].(map[string]any)["events"].([]any)[0].(map[string]any)
	return ev["data"].(map[string]any)["value"].(float64)
}

func TestDragGlidesOverDuration(t *testing.T) {
	c, srv := connect(t)
	c.Width, c.Height = 101, 101
	start := time.Now()
	require.NoError(t, c.Drag(context.Background(), macro.Point{X: 0, Y: 0}, macro.Point{X: 100, Y: 100}, macro.ButtonLeft, 4*constants.PointerStep))
	assert.GreaterOrEqual(t, time.Since(start), 3*constants.PointerStep)

	// handshake, warp, press, four glide steps, release
	cmds := srv.Commands()
	require.Len(t, cmds, 8)
	var xs []float64
	for i := 3; i <= 6; i++ {
		xs = append(xs, moveX(srv, i))
	}
	assert.IsIncreasing(t, xs)
	assert.Equal(t, float64(constants.AbsAxisMax), moveX(srv, 6))
	release := srv.Raw(7)["arguments"].(map[string]any)["events"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"button": "left", "down": false}, release["data"])
}

func TestMoveGlidesFromLastPosition(t *testing.T) {
	c, srv := connect(t)
	ctx := context.Background()
	require.NoError(t, c.Move(ctx, 10, 10, 3*constants.PointerStep), "first move has no start and warps")
	require.Len(t, srv.Commands(), 2)

	require.NoError(t, c.Move(ctx, 40, 10, 3*constants.PointerStep))
	assert.Len(t, srv.Commands(), 5)
}

func TestScreenshotDecodesAndCrops(t *testing.T) {
	c, _ := connect(t)
	c.ScreenshotDir = t.TempDir()

	img, err := c.Screenshot(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())

	r, g, _, _ := img.At(3, 1).RGBA()
	assert.Equal(t, uint32(30), r>>8)
	assert.Equal(t, uint32(10), g>>8)

	part, err := c.Screenshot(context.Background(), &macro.Region{X: 2, Y: 0, Width: 10, Height: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, part.Bounds().Dx())
	assert.Equal(t, 1, part.Bounds().Dy())

	require.NoError(t, c.DetectScreenSize(context.Background()))
	assert.Equal(t, 4, c.Width)
	assert.Equal(t, 2, c.Height)

	entries, _ := os.ReadDir(c.ScreenshotDir)
	assert.Empty(t, entries, "screendump files are removed")
}

func TestKeyName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Enter", "ret", true},
		{"ctrl", "ctrl", true},
		{"F5", "f5", true},
		{"a", "a", true},
		{"/", "slash", true},
		{"super", "meta_l", true},
		{"?", "", false},
		{"hyper", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := KeyName(tt.in)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrUnknownKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCombo(t *testing.T) {
	assert.Equal(t, []string{"ctrl", "alt", "del"}, ParseCombo("ctrl-alt-del"))
	assert.Equal(t, []string{"ctrl", "s"}, ParseCombo(" ctrl + s "))
	assert.Equal(t, []string{"-"}, ParseCombo("-"))
}

func TestCharKeys(t *testing.T) {
	keys, err := CharKeys('Z')
	require.NoError(t, err)
	assert.Equal(t, []string{"shift", "z"}, keys)

	keys, err = CharKeys(':')
	require.NoError(t, err)
	assert.Equal(t, []string{"shift", "semicolon"}, keys)

	keys, err = CharKeys(' ')
	require.NoError(t, err)
	assert.Equal(t, []string{"spc"}, keys)
}
