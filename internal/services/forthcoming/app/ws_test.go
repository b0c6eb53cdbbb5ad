package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
	"golang.org/x/net/websocket"
)

type wsTestFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type wsTestAckPayload struct {
	Result struct {
		Status    string `json:"status"`
		Triggered *bool  `json:"triggered"`
	} `json:"result"`
}

type wsTestErrorPayload struct {
	Error struct {
		Code      string `json:"code"`
		Reason    string `json:"reason"`
		Message   string `json:"message"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
}

type hostClient struct {
	conn    *websocket.Conn
	decoder *json.Decoder
}

func dialHost(t *testing.T, baseURL string) *hostClient {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
	conn, err := websocket.Dial(wsURL, "", baseURL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	client := &hostClient{conn: conn, decoder: json.NewDecoder(conn)}
	if hello := client.read(t); hello.Type != "host.hello" {
		t.Fatalf("first frame = %q, want host.hello", hello.Type)
	}
	return client
}

func (c *hostClient) write(t *testing.T, frame map[string]any) {
	t.Helper()
	if err := json.NewEncoder(c.conn).Encode(frame); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
}

func (c *hostClient) read(t *testing.T) wsTestFrame {
	t.Helper()
	_ = c.conn.SetDeadline(time.Now().Add(2 * time.Second))
	var got wsTestFrame
	if err := c.decoder.Decode(&got); err != nil {
		t.Fatalf("decode server frame: %v", err)
	}
	return got
}

// readUntil skips frames until one of frameType arrives.
func (c *hostClient) readUntil(t *testing.T, frameType string) wsTestFrame {
	t.Helper()
	for i := 0; i < 512; i++ {
		got := c.read(t)
		if got.Type == frameType {
			return got
		}
	}
	t.Fatalf("no %q frame received", frameType)
	return wsTestFrame{}
}

func (c *hostClient) join(t *testing.T, actor string) {
	t.Helper()
	c.write(t, map[string]any{
		"type":       "actor.joined",
		"request_id": "req-join-" + actor,
		"payload":    map[string]any{"actor_id": actor, "locale": "en-US"},
	})
	if got := c.read(t); got.Type != "host.ack" {
		t.Fatalf("frame type = %q, want host.ack", got.Type)
	}
}

func newBridge(t *testing.T) (*serviceFixture, *httptest.Server) {
	t.Helper()
	f := newServiceFixture(t)
	srv := httptest.NewServer(NewHandler(f.service))
	t.Cleanup(srv.Close)
	return f, srv
}

func lethalStrike(requestID string) map[string]any {
	return map[string]any{
		"type":       "companion.struck",
		"request_id": requestID,
		"payload": map[string]any{
			"attacker_id":          "actor-a",
			"attacker_is_actor":    true,
			"companion_tamed":      true,
			"companion_owner_id":   "actor-b",
			"companion_owner_name": "B",
			"companion_name":       "Rex",
			"damage":               20,
			"companion_health":     8,
		},
	}
}

func TestUpEndpoint(t *testing.T) {
	_, srv := newBridge(t)
	resp, err := http.Get(srv.URL + "/up")
	if err != nil {
		t.Fatalf("get /up: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestWSRejectsNonGet(t *testing.T) {
	_, srv := newBridge(t)
	resp, err := http.Post(srv.URL+"/ws", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("post /ws: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestCompanionStruckTriggersAndAcks(t *testing.T) {
	f, srv := newBridge(t)
	client := dialHost(t, srv.URL)
	client.join(t, "actor-a")

	client.write(t, lethalStrike("req-1"))
	got := client.read(t)
	if got.Type != "host.ack" || got.RequestID != "req-1" {
		t.Fatalf("frame = %+v, want host.ack for req-1", got)
	}
	var ack wsTestAckPayload
	if err := json.Unmarshal(got.Payload, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Result.Triggered == nil || !*ack.Result.Triggered {
		t.Fatalf("ack = %s, want triggered", got.Payload)
	}
	if !f.service.IsPunishing("actor-a") {
		t.Fatal("expected actor to be punishing")
	}

	client.write(t, lethalStrike("req-2"))
	if err := json.Unmarshal(client.read(t).Payload, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Result.Triggered == nil || *ack.Result.Triggered {
		t.Fatal("expected duplicate strike to not trigger")
	}
	if got := f.ledger.Snapshot("actor-a")["B:Rex"]; got != 2 {
		t.Fatalf("ledger count = %d, want 2", got)
	}
}

func TestDamageIsClampedWhilePunishing(t *testing.T) {
	_, srv := newBridge(t)
	client := dialHost(t, srv.URL)
	client.join(t, "actor-a")
	client.write(t, lethalStrike("req-1"))
	client.read(t)

	client.write(t, map[string]any{
		"type":       "actor.damaged",
		"request_id": "req-dmg",
		"payload":    map[string]any{"actor_id": "actor-a", "health": 6, "damage": 30},
	})
	got := client.read(t)
	if got.Type != "damage.clamped" {
		t.Fatalf("frame type = %q, want damage.clamped", got.Type)
	}
	var payload struct {
		Damage float64 `json:"damage"`
	}
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Damage != 5 {
		t.Fatalf("damage = %v, want 5", payload.Damage)
	}
}

func TestFullSequenceOverBridge(t *testing.T) {
	f, srv := newBridge(t)
	client := dialHost(t, srv.URL)
	client.join(t, "actor-a")
	client.write(t, lethalStrike("req-1"))
	client.read(t)

	f.clock.AdvanceTo(40)
	title := client.readUntil(t, "title.show")
	if !strings.Contains(string(title.Payload), "What have you done") {
		t.Fatalf("title payload = %s", title.Payload)
	}

	f.clock.AdvanceTo(2640)
	item := client.readUntil(t, "item.grant")
	if !strings.Contains(string(item.Payload), "Rex (B) x1") {
		t.Fatalf("item payload = %s", item.Payload)
	}
	health := client.readUntil(t, "health.set")
	if !strings.Contains(string(health.Payload), `"health":0`) {
		t.Fatalf("health payload = %s", health.Payload)
	}

	client.write(t, map[string]any{
		"type":       "actor.respawned",
		"request_id": "req-spawn",
		"payload": map[string]any{
			"actor_id": "actor-a",
			"location": map[string]any{"world": "world", "x": 10, "y": 64, "z": -5},
		},
	})
	got := client.read(t)
	if got.Type != "actor.relocate" {
		t.Fatalf("frame type = %q, want actor.relocate", got.Type)
	}
	var relocate struct {
		Relocate bool            `json:"relocate"`
		Location domain.Location `json:"location"`
	}
	if err := json.Unmarshal(got.Payload, &relocate); err != nil {
		t.Fatalf("decode relocate: %v", err)
	}
	want := domain.Location{World: "world", X: 2510, Y: 64, Z: -5}
	if !relocate.Relocate || relocate.Location != want {
		t.Fatalf("relocate = %+v, want %+v", relocate, want)
	}
}

func TestActorLeftCancelsSequence(t *testing.T) {
	f, srv := newBridge(t)
	client := dialHost(t, srv.URL)
	client.join(t, "actor-a")
	client.write(t, lethalStrike("req-1"))
	client.read(t)

	client.write(t, map[string]any{
		"type":       "actor.left",
		"request_id": "req-left",
		"payload":    map[string]any{"actor_id": "actor-a"},
	})
	if got := client.read(t); got.Type != "host.ack" {
		t.Fatalf("frame type = %q, want host.ack", got.Type)
	}
	if f.service.IsPunishing("actor-a") {
		t.Fatal("expected sequence to be cancelled")
	}
}

func TestUnsupportedAndInvalidFrames(t *testing.T) {
	_, srv := newBridge(t)
	client := dialHost(t, srv.URL)

	client.write(t, map[string]any{"type": "actor.dance", "request_id": "req-x", "payload": map[string]any{}})
	got := client.read(t)
	if got.Type != "host.error" {
		t.Fatalf("frame type = %q, want host.error", got.Type)
	}
	var payload wsTestErrorPayload
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Error.Code != "INVALID_ARGUMENT" {
		t.Fatalf("code = %q, want INVALID_ARGUMENT", payload.Error.Code)
	}
	if payload.Error.Reason != "FRAME_UNSUPPORTED" {
		t.Fatalf("reason = %q, want FRAME_UNSUPPORTED", payload.Error.Reason)
	}
	if payload.Error.Retryable {
		t.Fatal("expected unsupported frame to be final")
	}

	client.write(t, map[string]any{"type": "actor.joined", "request_id": "req-y", "payload": map[string]any{"actor_id": "  "}})
	got = client.read(t)
	if got.Type != "host.error" || got.RequestID != "req-y" {
		t.Fatalf("frame = %+v, want host.error for req-y", got)
	}

	client.write(t, map[string]any{
		"type":       "actor.joined",
		"request_id": "req-big",
		"payload":    map[string]any{"actor_id": "a", "locale": strings.Repeat("x", maxFramePayloadBytes)},
	})
	if err := json.Unmarshal(client.read(t).Payload, &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Error.Message != "payload too large" {
		t.Fatalf("message = %q, want payload too large", payload.Error.Message)
	}
	if payload.Error.Reason != "FRAME_TOO_LARGE" {
		t.Fatalf("reason = %q, want FRAME_TOO_LARGE", payload.Error.Reason)
	}
}

func TestCompanionStruckRejectsInvalidVictim(t *testing.T) {
	f, srv := newBridge(t)
	client := dialHost(t, srv.URL)
	client.join(t, "actor-a")

	frame := lethalStrike("req-bad")
	frame["payload"].(map[string]any)["companion_owner_name"] = "Bad:Owner"
	client.write(t, frame)

	got := client.read(t)
	if got.Type != "host.error" || got.RequestID != "req-bad" {
		t.Fatalf("frame = %+v, want host.error for req-bad", got)
	}
	var payload wsTestErrorPayload
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Error.Reason != "VICTIM_INVALID" {
		t.Fatalf("reason = %q, want VICTIM_INVALID", payload.Error.Reason)
	}
	if f.service.IsPunishing("actor-a") {
		t.Fatal("expected no sequence for invalid victim")
	}
}

func TestNewConnectionReplacesHost(t *testing.T) {
	f, srv := newBridge(t)
	first := dialHost(t, srv.URL)
	first.join(t, "actor-a")
	first.write(t, lethalStrike("req-1"))
	first.read(t)

	second := dialHost(t, srv.URL)
	if f.service.IsPunishing("actor-a") {
		t.Fatal("expected replaced host's actors to be cancelled")
	}
	second.join(t, "actor-b")
	if !f.service.host.Reachable("actor-b") {
		t.Fatal("expected actor-b to be reachable on the new host")
	}

	_ = first.conn.SetDeadline(time.Now().Add(2 * time.Second))
	var frame wsTestFrame
	if err := first.decoder.Decode(&frame); err == nil {
		t.Fatalf("expected replaced connection to be closed, got %+v", frame)
	}
}

func TestLedgerEndpoint(t *testing.T) {
	f, srv := newBridge(t)
	if _, err := f.service.OnQualifyingKill(t.Context(), "actor-a", "B", "Rex"); err != nil {
		t.Fatalf("qualifying kill: %v", err)
	}

	resp, err := http.Get(srv.URL + "/ledger/actor-a?locale=pt-BR")
	if err != nil {
		t.Fatalf("get ledger: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var body struct {
		ActorID string         `json:"actor_id"`
		Entries map[string]int `json:"entries"`
		Total   int            `json:"total"`
		Record  struct {
			Lore []string `json:"lore"`
		} `json:"record"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Entries["B:Rex"] != 1 || body.Total != 1 {
		t.Fatalf("body = %+v", body)
	}
	if got := body.Record.Lore[len(body.Record.Lore)-1]; got != "Companheiros abatidos: 1" {
		t.Fatalf("total line = %q", got)
	}
}
