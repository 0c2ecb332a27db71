package signal

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/avrile/opsroom/internal/config"
	"github.com/avrile/opsroom/internal/core"
	"github.com/avrile/opsroom/internal/domain"
)

// fakeNetConn satisfies Conn without a network. The dispatcher is driven
// directly, so only the write side matters, and writes go through the send
// channel anyway.
type fakeNetConn struct{}

func (fakeNetConn) ReadMessage() (int, []byte, error)      { return 0, nil, io.EOF }
func (fakeNetConn) WriteMessage(mt int, data []byte) error { return nil }
func (fakeNetConn) SetReadLimit(limit int64)               {}
func (fakeNetConn) SetWriteDeadline(t time.Time) error     { return nil }
func (fakeNetConn) Close() error                           { return nil }

func newTestController() *Controller {
	cfg := &config.Config{
		ReadLimit:  32768,
		PingPeriod: time.Minute,
		ChatBurst:  10,
		ChatWindow: 10 * time.Second,
	}
	return NewController(core.NewStore(0), cfg)
}

func attach(ctl *Controller, sid domain.PlayerID) *wsConn {
	c := &wsConn{conn: fakeNetConn{}, send: make(chan []byte, 32)}
	ctl.register(sid, c)
	return c
}

// recv pops the next queued outbound message, decoded loosely.
func recv(t *testing.T, c *wsConn) map[string]any {
	t.Helper()
	select {
	case data := <-c.send:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decode outbound: %v", err)
		}
		return m
	default:
		t.Fatal("no message queued")
		return nil
	}
}

func recvType(t *testing.T, c *wsConn, want string) map[string]any {
	t.Helper()
	m := recv(t, c)
	if m["type"] != want {
		t.Fatalf("message type = %v, want %s (full: %v)", m["type"], want, m)
	}
	return m
}

func drain(c *wsConn) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func roomOf(t *testing.T, m map[string]any) map[string]any {
	t.Helper()
	room, ok := m["room"].(map[string]any)
	if !ok {
		t.Fatalf("no room in %v", m)
	}
	return room
}

func TestLobbyScenario(t *testing.T) {
	ctl := newTestController()
	host := attach(ctl, "host-conn")
	guest := attach(ctl, "guest-conn")

	// Host creates a room.
	ctl.dispatch("host-conn", host, []byte(`{"type":"create_room","name":"Ava"}`))
	created := recvType(t, host, "room_created")
	code, _ := created["code"].(string)
	if !core.ValidCode(code) {
		t.Fatalf("code = %q, want 5 uppercase alphanumerics", code)
	}
	joined := recvType(t, host, "room_joined")
	room := roomOf(t, joined)
	if room["status"] != "waiting" || room["hostId"] != "host-conn" {
		t.Fatalf("fresh room = %v", room)
	}

	// Guest joins with the lowercased code; both sides see the update.
	ctl.dispatch("guest-conn", guest, []byte(fmt.Sprintf(
		`{"type":"join_room","name":"Bo","code":%q}`, strings.ToLower(code))))
	recvType(t, guest, "room_joined")
	update := recvType(t, guest, "room_update")
	if n := len(roomOf(t, update)["players"].([]any)); n != 2 {
		t.Fatalf("players = %d after join, want 2", n)
	}
	recvType(t, host, "room_update")

	// Host takes agent; guest's grab of agent bounces, operator works.
	ctl.dispatch("host-conn", host, []byte(fmt.Sprintf(
		`{"type":"set_role","code":%q,"role":"agent"}`, code)))
	recvType(t, host, "room_update")
	recvType(t, guest, "room_update")

	ctl.dispatch("guest-conn", guest, []byte(fmt.Sprintf(
		`{"type":"set_role","code":%q,"role":"agent"}`, code)))
	errMsg := recvType(t, guest, "error")
	if errMsg["code"] != "ROLE_TAKEN" {
		t.Fatalf("error code = %v, want ROLE_TAKEN", errMsg["code"])
	}

	ctl.dispatch("guest-conn", guest, []byte(fmt.Sprintf(
		`{"type":"set_role","code":%q,"role":"operator"}`, code)))
	recvType(t, guest, "room_update")
	recvType(t, host, "room_update")

	// Both ready up.
	ctl.dispatch("host-conn", host, []byte(fmt.Sprintf(`{"type":"toggle_ready","code":%q}`, code)))
	ctl.dispatch("guest-conn", guest, []byte(fmt.Sprintf(`{"type":"toggle_ready","code":%q}`, code)))
	drain(host)
	drain(guest)

	// Non-host cannot start.
	ctl.dispatch("guest-conn", guest, []byte(fmt.Sprintf(`{"type":"start_game","code":%q}`, code)))
	errMsg = recvType(t, guest, "error")
	if errMsg["code"] != "NOT_HOST" {
		t.Fatalf("error code = %v, want NOT_HOST", errMsg["code"])
	}

	// Host starts; both get game_started with status playing.
	ctl.dispatch("host-conn", host, []byte(fmt.Sprintf(`{"type":"start_game","code":%q}`, code)))
	started := recvType(t, host, "game_started")
	if roomOf(t, started)["status"] != "playing" {
		t.Fatalf("status = %v, want playing", roomOf(t, started)["status"])
	}
	recvType(t, guest, "game_started")
}

func TestUpdateStepBroadcastsEffectiveStep(t *testing.T) {
	ctl := newTestController()
	host := attach(ctl, "host-conn")
	guest := attach(ctl, "guest-conn")

	ctl.dispatch("host-conn", host, []byte(`{"type":"create_room","name":"Ava"}`))
	code := recvType(t, host, "room_created")["code"].(string)
	ctl.dispatch("guest-conn", guest, []byte(fmt.Sprintf(`{"type":"join_room","name":"Bo","code":%q}`, code)))
	drain(host)
	drain(guest)

	ctl.dispatch("host-conn", host, []byte(fmt.Sprintf(`{"type":"update_step","code":%q,"step":3}`, code)))
	if got := recvType(t, host, "step_updated")["step"].(float64); got != 3 {
		t.Fatalf("step = %v, want 3", got)
	}
	recvType(t, guest, "step_updated")

	// A regressive step is clamped; everyone still hears the effective value.
	ctl.dispatch("guest-conn", guest, []byte(fmt.Sprintf(`{"type":"update_step","code":%q,"step":1}`, code)))
	if got := recvType(t, guest, "step_updated")["step"].(float64); got != 3 {
		t.Fatalf("step after regression = %v, want 3", got)
	}
}

func TestDisconnectMigratesHostAndCleansUp(t *testing.T) {
	ctl := newTestController()
	host := attach(ctl, "host-conn")
	guest := attach(ctl, "guest-conn")

	ctl.dispatch("host-conn", host, []byte(`{"type":"create_room","name":"Ava"}`))
	code := recvType(t, host, "room_created")["code"].(string)
	ctl.dispatch("guest-conn", guest, []byte(fmt.Sprintf(`{"type":"join_room","name":"Bo","code":%q}`, code)))
	drain(host)
	drain(guest)

	// Host connection drops; guest inherits the room.
	ctl.onDisconnect("host-conn")
	left := recvType(t, guest, "player_left")
	if left["playerId"] != "host-conn" || left["playerName"] != "Ava" {
		t.Fatalf("player_left = %v", left)
	}
	update := recvType(t, guest, "room_update")
	if roomOf(t, update)["hostId"] != "guest-conn" {
		t.Fatalf("hostId = %v, want guest-conn", roomOf(t, update)["hostId"])
	}

	// Last member drops; the room vanishes.
	ctl.onDisconnect("guest-conn")
	rooms, players := ctl.store.Stats()
	if rooms != 0 || players != 0 {
		t.Fatalf("stats = (%d, %d) after all disconnects, want (0, 0)", rooms, players)
	}
}

func TestSendMessageRelaysToBothIncludingSender(t *testing.T) {
	ctl := newTestController()
	host := attach(ctl, "host-conn")
	guest := attach(ctl, "guest-conn")

	ctl.dispatch("host-conn", host, []byte(`{"type":"create_room","name":"Ava"}`))
	code := recvType(t, host, "room_created")["code"].(string)
	ctl.dispatch("guest-conn", guest, []byte(fmt.Sprintf(`{"type":"join_room","name":"Bo","code":%q}`, code)))
	drain(host)
	drain(guest)

	ctl.dispatch("host-conn", host, []byte(fmt.Sprintf(
		`{"type":"send_message","code":%q,"name":"Ava","message":"ready when you are"}`, code)))
	for _, c := range []*wsConn{host, guest} {
		msg := recvType(t, c, "message_received")
		if msg["message"] != "ready when you are" || msg["name"] != "Ava" {
			t.Fatalf("relayed message = %v", msg)
		}
	}

	// Empty message is dropped without an error.
	ctl.dispatch("host-conn", host, []byte(fmt.Sprintf(
		`{"type":"send_message","code":%q,"name":"Ava","message":"  "}`, code)))
	select {
	case data := <-host.send:
		t.Fatalf("unexpected outbound %s", data)
	default:
	}
}

func TestUnknownEventRejected(t *testing.T) {
	ctl := newTestController()
	host := attach(ctl, "host-conn")

	ctl.dispatch("host-conn", host, []byte(`{"type":"teleport"}`))
	errMsg := recvType(t, host, "error")
	if errMsg["code"] != "UPDATE_FAILED" {
		t.Fatalf("error code = %v, want UPDATE_FAILED", errMsg["code"])
	}
}

func TestValidationBeforeDomainCalls(t *testing.T) {
	ctl := newTestController()
	host := attach(ctl, "host-conn")

	ctl.dispatch("host-conn", host, []byte(`{"type":"create_room","name":"   "}`))
	if got := recvType(t, host, "error")["code"]; got != "NAME_REQUIRED" {
		t.Fatalf("error code = %v, want NAME_REQUIRED", got)
	}

	ctl.dispatch("host-conn", host, []byte(`{"type":"join_room","name":"Bo","code":""}`))
	if got := recvType(t, host, "error")["code"]; got != "CODE_REQUIRED" {
		t.Fatalf("error code = %v, want CODE_REQUIRED", got)
	}

	ctl.dispatch("host-conn", host, []byte(`{"type":"join_room","name":"Bo","code":"ZZZZZ"}`))
	if got := recvType(t, host, "error")["code"]; got != "ROOM_NOT_FOUND" {
		t.Fatalf("error code = %v, want ROOM_NOT_FOUND", got)
	}
}
