package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/binstore"
	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/dashboard"
	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/overrides"
	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/realtime"
	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/view"
)

func newTestServer(t *testing.T) (*httptest.Server, *binstore.Memory) {
	t.Helper()
	mem := binstore.NewMemory()
	if err := mem.Update(context.Background(), "bin-1", map[string]any{
		"status":    false,
		"binFilled": "97",
		"lid":       "Closed",
		"binHeight": "80",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	hub := realtime.NewHub()
	ctrl := dashboard.New(mem)
	ctrl.OnViewChange(hub.Broadcast)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start controller: %v", err)
	}
	t.Cleanup(ctrl.Stop)

	mux := http.NewServeMux()
	NewServer(ctrl, hub).Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, mem
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode json: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(res.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, out.Bytes()
}

func decodeRecord(t *testing.T, payload []byte) view.Record {
	t.Helper()
	var rec view.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		t.Fatalf("unmarshal record: %v body=%s", err, payload)
	}
	return rec
}

func TestListBins(t *testing.T) {
	ts, _ := newTestServer(t)

	res, payload := doJSON(t, ts.Client(), http.MethodGet, ts.URL+"/api/bins/", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", res.StatusCode, payload)
	}

	var body binsListResponse
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	rec, ok := body.Bins["bin-1"]
	if !ok {
		t.Fatalf("bin-1 missing: %s", payload)
	}
	if rec.BinFilledPercentage != 97 || !rec.IsFull || rec.Status {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if body.LastSnapshotAt.IsZero() {
		t.Fatal("lastSnapshotAt missing")
	}
}

func TestToggleStatusEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	res, payload := doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/api/bins/bin-1/status/toggle", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", res.StatusCode, payload)
	}
	rec := decodeRecord(t, payload)
	if !rec.Status {
		t.Fatalf("status not toggled: %+v", rec)
	}
	if rec.StatusEdit.State != overrides.StateIdle {
		t.Fatalf("confirmed toggle should be idle: %+v", rec.StatusEdit)
	}

	res, _ = doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/api/bins/ghost/status/toggle", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown bin: status=%d, want 404", res.StatusCode)
	}
}

func TestHeightEditFlow(t *testing.T) {
	ts, _ := newTestServer(t)
	client := ts.Client()
	base := ts.URL + "/api/bins/bin-1/height"

	res, payload := doJSON(t, client, http.MethodPost, base+"/edit", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("edit: status=%d body=%s", res.StatusCode, payload)
	}
	if rec := decodeRecord(t, payload); rec.HeightEdit.State != overrides.StateEditing {
		t.Fatalf("edit should open session: %+v", rec.HeightEdit)
	}

	res, payload = doJSON(t, client, http.MethodPut, base, map[string]string{"value": "120"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("candidate: status=%d body=%s", res.StatusCode, payload)
	}
	if rec := decodeRecord(t, payload); rec.BinHeight != "120" {
		t.Fatalf("candidate not visible: %+v", rec)
	}

	res, payload = doJSON(t, client, http.MethodPost, base+"/save", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("save: status=%d body=%s", res.StatusCode, payload)
	}
	rec := decodeRecord(t, payload)
	if rec.HeightEdit.State != overrides.StateIdle || rec.BinHeight != "120" {
		t.Fatalf("save should confirm and go idle: %+v", rec)
	}
}

func TestHeightCancelDiscardsCandidate(t *testing.T) {
	ts, _ := newTestServer(t)
	client := ts.Client()
	base := ts.URL + "/api/bins/bin-1/height"

	doJSON(t, client, http.MethodPost, base+"/edit", nil)
	doJSON(t, client, http.MethodPut, base, map[string]string{"value": "9999"})

	res, payload := doJSON(t, client, http.MethodPost, base+"/cancel", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("cancel: status=%d body=%s", res.StatusCode, payload)
	}
	rec := decodeRecord(t, payload)
	if rec.BinHeight != "80" || rec.HeightEdit.State != overrides.StateIdle {
		t.Fatalf("cancel must restore the remote value: %+v", rec)
	}
}

func TestHeightCandidateWithoutSession(t *testing.T) {
	ts, _ := newTestServer(t)

	res, _ := doJSON(t, ts.Client(), http.MethodPut, ts.URL+"/api/bins/bin-1/height", map[string]string{"value": "10"})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status=%d, want 409", res.StatusCode)
	}
}

func TestHeightSaveRejectsNonNumeric(t *testing.T) {
	ts, _ := newTestServer(t)
	client := ts.Client()
	base := ts.URL + "/api/bins/bin-1/height"

	doJSON(t, client, http.MethodPost, base+"/edit", nil)
	doJSON(t, client, http.MethodPut, base, map[string]string{"value": "tall"})

	res, _ := doJSON(t, client, http.MethodPost, base+"/save", nil)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, want 422", res.StatusCode)
	}
}

func TestWebSocketReceivesViewFrames(t *testing.T) {
	ts, mem := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/bins"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()

	// Late joiners get the current view immediately.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ws: %v", err)
	}
	var ev realtime.Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("unmarshal event: %v msg=%s", err, string(msg))
	}
	if ev.Type != "bins.view" || ev.Bins["bin-1"].BinFilledPercentage != 97 {
		t.Fatalf("unexpected first frame: %+v", ev)
	}

	// A device report flows through to a fresh frame.
	if err := mem.Update(context.Background(), "bin-1", map[string]any{"binFilled": "55"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ws: %v", err)
	}
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.Bins["bin-1"].BinFilledPercentage != 55 {
		t.Fatalf("frame not recomposed: %+v", ev.Bins["bin-1"])
	}
}
