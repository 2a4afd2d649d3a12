package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"

	"morphfield/sculptor/internal/geometry"
	"morphfield/sculptor/internal/gesture"
	"morphfield/sculptor/internal/stream"
)

// addClient injects a client directly into the hub's registry, bypassing the
// WebSocket upgrade so tests can exercise bookkeeping and fan-out in memory.
func addClient(h *Hub, role clientRole, compress bool) *client {
	c := &client{
		id:       "test-" + string(role),
		role:     role,
		send:     make(chan outboundMessage, sendBufferSize),
		compress: compress,
	}
	h.register(c)
	return c
}

func TestOriginCheckerAllowsAllWhenUnconfigured(t *testing.T) {
	check := originChecker(nil)
	request := httptest.NewRequest(http.MethodGet, "/ws", nil)
	request.Header.Set("Origin", "https://anything.example")
	if !check(request) {
		t.Fatalf("empty allowlist should admit every origin")
	}
}

func TestOriginCheckerEnforcesAllowlist(t *testing.T) {
	check := originChecker([]string{"https://studio.example"})

	//1.- The configured origin passes, case-insensitively.
	request := httptest.NewRequest(http.MethodGet, "/ws", nil)
	request.Header.Set("Origin", "HTTPS://Studio.Example")
	if !check(request) {
		t.Fatalf("allowlisted origin rejected")
	}

	//2.- Unknown origins are refused.
	request.Header.Set("Origin", "https://evil.example")
	if check(request) {
		t.Fatalf("foreign origin admitted")
	}

	//3.- Requests without an Origin header (curl, native apps) pass.
	request.Header.Del("Origin")
	if !check(request) {
		t.Fatalf("origin-less request rejected")
	}
}

func TestClientCountsTrackRoles(t *testing.T) {
	hub := newTestHub()
	capture := addClient(hub, roleCapture, false)
	view := addClient(hub, roleView, false)

	if c, v := hub.ClientCounts(); c != 1 || v != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", c, v)
	}
	hub.unregister(view)
	hub.unregister(capture)
	if c, v := hub.ClientCounts(); c != 0 || v != 0 {
		t.Fatalf("counts after disconnect = %d/%d, want 0/0", c, v)
	}
}

func TestLastCaptureDisconnectResetsCell(t *testing.T) {
	hub := newTestHub()
	capture := addClient(hub, roleCapture, false)

	//1.- Seed the cell with a non-neutral sample.
	hub.cell.Store(gesture.InteractionSample{Scale: 2.2, OffsetX: 1})

	//2.- Dropping the only capture client must return the cell to neutral so
	// the sculpture drifts home instead of freezing mid-gesture.
	hub.unregister(capture)
	if got, want := hub.cell.Load(), gesture.Neutral(); got != want {
		t.Fatalf("cell after disconnect = %+v, want neutral", got)
	}
}

func TestCaptureDisconnectKeepsCellWhileOthersRemain(t *testing.T) {
	hub := newTestHub()
	first := addClient(hub, roleCapture, false)
	addClient(hub, roleCapture, false)

	sample := gesture.InteractionSample{Scale: 1.8}
	hub.cell.Store(sample)
	hub.unregister(first)
	if got := hub.cell.Load(); got != sample {
		t.Fatalf("cell reset while a capture client remained: %+v", got)
	}
}

func TestPublishFrameFansOutPerVariant(t *testing.T) {
	hub := newTestHub()
	plainViewer := addClient(hub, roleView, false)
	packedViewer := addClient(hub, roleView, true)
	captureClient := addClient(hub, roleCapture, false)

	points := []geometry.Point3{{X: 1, Y: 2, Z: 3}}
	hub.PublishFrame(9, geometry.ShapeFlower, points)

	//1.- Both viewers receive a decodable frame for tick 9.
	for _, c := range []*client{plainViewer, packedViewer} {
		select {
		case msg := <-c.send:
			frame, err := stream.Decode(msg.payload)
			if err != nil {
				t.Fatalf("decode for %s: %v", c.id, err)
			}
			if frame.Tick != 9 || frame.Shape != geometry.ShapeFlower || len(frame.Points) != 1 {
				t.Fatalf("frame for %s = %+v", c.id, frame)
			}
		default:
			t.Fatalf("viewer %s received no frame", c.id)
		}
	}

	//2.- Capture clients never receive position frames.
	select {
	case <-captureClient.send:
		t.Fatalf("capture client received a frame")
	default:
	}
}

func TestPublishFrameDropsWhenViewerQueueIsFull(t *testing.T) {
	hub := newTestHub()
	viewer := addClient(hub, roleView, false)

	//1.- Saturate the viewer queue, then publish one more frame.
	points := []geometry.Point3{{X: 1}}
	for i := 0; i <= sendBufferSize; i++ {
		hub.PublishFrame(uint64(i+1), geometry.ShapeGalaxy, points)
	}
	if hub.DroppedFrames() == 0 {
		t.Fatalf("expected dropped frames once the queue filled")
	}
	if len(viewer.send) != sendBufferSize {
		t.Fatalf("queue length = %d, want %d", len(viewer.send), sendBufferSize)
	}
}

func TestBroadcastControlReachesViewersOnly(t *testing.T) {
	hub := newTestHub()
	viewer := addClient(hub, roleView, false)
	captureClient := addClient(hub, roleCapture, false)

	hub.BroadcastControl(controlMessage{Type: "color", Color: "#123456"})

	select {
	case msg := <-viewer.send:
		if msg.messageType != websocket.TextMessage {
			t.Fatalf("control message type = %d, want text", msg.messageType)
		}
	default:
		t.Fatalf("viewer received no control message")
	}
	select {
	case <-captureClient.send:
		t.Fatalf("capture client received a control message")
	default:
	}
}
