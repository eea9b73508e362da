package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"enderborne.gg/internal/protocol"
	"enderborne.gg/internal/sim/mod"
	"enderborne.gg/internal/sim/progress"
	"enderborne.gg/internal/sim/world"
)

func startServer(t *testing.T, token string) (*websocket.Dialer, string) {
	t.Helper()
	w, err := world.New(world.Config{ID: "ws", TickRateHz: 50, Seed: 1, ViewRadius: 0, Mod: mod.DefaultConfig()}, progress.NewMemory(), nil)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	srv := httptest.NewServer(NewServer(w, nil, token).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-w.Done()
	})
	return websocket.DefaultDialer, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func send(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	if err := c.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func hello(name, token string) protocol.HelloMsg {
	h := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, PlayerName: name}
	if token != "" {
		h.Auth = &protocol.HelloAuth{Token: token}
	}
	return h
}

func TestHandshakeAndActRoundTrip(t *testing.T) {
	d, url := startServer(t, "")
	c, _, err := d.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))

	send(t, c, hello("alex", ""))
	var welcome protocol.WelcomeMsg
	if err := c.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if welcome.Type != protocol.TypeWelcome || welcome.PlayerID == "" || !welcome.Progress.HasPlayed {
		t.Fatalf("unexpected welcome: %+v", welcome)
	}

	var obs protocol.ObsMsg
	if err := c.ReadJSON(&obs); err != nil {
		t.Fatalf("read obs: %v", err)
	}
	if obs.Self.Region != "ORIGIN_REALM" {
		t.Fatalf("new player should start in the origin realm: %+v", obs.Self)
	}

	send(t, c, protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            obs.Tick,
		Actions:         []protocol.ActionReq{{ID: "s1", Type: protocol.ActionSummonTrader}},
	})
	for {
		if err := c.ReadJSON(&obs); err != nil {
			t.Fatalf("read obs: %v", err)
		}
		for _, e := range obs.Events {
			if e["type"] == protocol.EventActionResult && e["ref"] == "s1" {
				if ok, _ := e["ok"].(bool); !ok {
					t.Fatalf("summon failed: %v", e)
				}
				return
			}
		}
	}
}

func TestHandshakeRejections(t *testing.T) {
	d, url := startServer(t, "secret")
	for name, msg := range map[string]any{
		"not hello":   protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version},
		"bad token":   hello("alex", "wrong"),
		"no name":     hello("", "secret"),
		"bad version": protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.1", PlayerName: "alex"},
	} {
		c, _, err := d.Dial(url, nil)
		if err != nil {
			t.Fatalf("%s: dial: %v", name, err)
		}
		_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
		send(t, c, msg)
		var v json.RawMessage
		if err := c.ReadJSON(&v); err == nil {
			t.Fatalf("%s: expected the connection to close, got %s", name, v)
		}
		c.Close()
	}
}
