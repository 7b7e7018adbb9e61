package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestStream_UpgradesAndServes(t *testing.T) {
	hub := &mockHub{
		serveFn: func(conn *websocket.Conn, tenantID, vehicleID string) {
			defer conn.Close()
			_ = conn.WriteMessage(websocket.TextMessage, []byte(tenantID+"/"+vehicleID))
		},
	}
	srv := httptest.NewServer(setupRouter(NewStreamHandler(hub, nil)))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream?vehicleId=veh-1"
	header := http.Header{}
	header.Set(HeaderTenantID, "acme")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != "acme/veh-1" {
		t.Errorf("expected acme/veh-1, got %s", msg)
	}
}

func TestStream_RejectsForeignOrigin(t *testing.T) {
	hub := &mockHub{
		serveFn: func(*websocket.Conn, string, string) {
			t.Error("hub should not be reached")
		},
	}
	srv := httptest.NewServer(setupRouter(NewStreamHandler(hub, []string{"https://dash.example.com"})))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream"
	header := http.Header{}
	header.Set(HeaderTenantID, "acme")
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 response, got %+v", resp)
	}
}
