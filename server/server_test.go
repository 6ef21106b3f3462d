package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/chazu/blockflow/document"
	"github.com/chazu/blockflow/host"
)

const lampDoc = `
name = "lamp"

[[variables]]
key = "on"
type = "boolean"

[[variables]]
key = "level"
type = "integer"

[[blocks]]
name = "Idle"
trigger = "start"

  [[blocks.commands]]
  kind = "wait"
  duration = "1h"

[[blocks]]
name = "Flip"
trigger = "message:flip"

  [[blocks.commands]]
  kind = "set"
  variable = "on"
  value = true
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	rt := host.New(host.Options{})
	d, err := document.Parse("lamp.toml", []byte(lampDoc))
	if err != nil {
		t.Fatal(err)
	}
	rt.AddDocuments(d)
	if err := rt.LoadScene(host.DefaultScene); err != nil {
		t.Fatal(err)
	}
	s := New(host.NewWorker(rt))
	t.Cleanup(s.Stop)
	return s
}

func connectCall[Req, Res any](t *testing.T, ts *httptest.Server, method string, req *Req) (*Res, error) {
	t.Helper()
	c := connect.NewClient[Req, Res](ts.Client(), ts.URL+procedure(method), connect.WithCodec(jsonCodec{}))
	res, err := c.CallUnary(context.Background(), connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// ---------------------------------------------------------------------------
// Connect
// ---------------------------------------------------------------------------

func TestConnectStatus(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Handler())
	defer ts.Close()

	res, err := connectCall[StatusRequest, StatusResponse](t, ts, "Status", &StatusRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Scene != host.DefaultScene || !res.Busy {
		t.Errorf("scene = %q busy = %v", res.Scene, res.Busy)
	}
	if len(res.Flowcharts) != 1 || res.Flowcharts[0].Name != "lamp" {
		t.Fatalf("flowcharts = %+v", res.Flowcharts)
	}
	fc := res.Flowcharts[0]
	if len(fc.Blocks) != 2 || fc.Blocks[0].Name != "Idle" || !fc.Blocks[0].Executing {
		t.Errorf("blocks = %+v", fc.Blocks)
	}
	if fc.Variables["on"] != "false" || fc.Variables["level"] != "0" {
		t.Errorf("variables = %v", fc.Variables)
	}
}

func TestConnectSendMessage(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Handler())
	defer ts.Close()

	res, err := connectCall[SendMessageRequest, SendMessageResponse](t, ts, "SendMessage", &SendMessageRequest{Message: "flip"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Started != 1 {
		t.Errorf("started = %d, want 1", res.Started)
	}
	st, err := connectCall[StatusRequest, StatusResponse](t, ts, "Status", &StatusRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if got := st.Flowcharts[0].Variables["on"]; got != "true" {
		t.Errorf("on = %q after flip", got)
	}
}

func TestConnectErrorCodes(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Handler())
	defer ts.Close()

	_, err := connectCall[ExecuteBlockRequest, ExecuteBlockResponse](t, ts, "ExecuteBlock",
		&ExecuteBlockRequest{Flowchart: "lamp", Block: "Missing"})
	if code := connect.CodeOf(err); code != connect.CodeNotFound {
		t.Errorf("unknown block: code = %v", code)
	}

	_, err = connectCall[ExecuteBlockRequest, ExecuteBlockResponse](t, ts, "ExecuteBlock",
		&ExecuteBlockRequest{Flowchart: "lamp", Block: "Flip", Index: 5})
	if code := connect.CodeOf(err); code != connect.CodeInvalidArgument {
		t.Errorf("bad index: code = %v", code)
	}

	_, err = connectCall[SetVariableRequest, SetVariableResponse](t, ts, "SetVariable",
		&SetVariableRequest{Flowchart: "lamp", Key: "level", Value: "high"})
	if code := connect.CodeOf(err); code != connect.CodeInvalidArgument {
		t.Errorf("bad value: code = %v", code)
	}

	_, err = connectCall[SaveRequest, SaveResponse](t, ts, "Save", &SaveRequest{})
	if code := connect.CodeOf(err); code != connect.CodeInvalidArgument {
		t.Errorf("empty slot: code = %v", code)
	}

	_, err = connectCall[LoadRequest, LoadResponse](t, ts, "Load", &LoadRequest{Slot: "nope"})
	if code := connect.CodeOf(err); code != connect.CodeNotFound {
		t.Errorf("missing slot: code = %v", code)
	}
}

func TestConnectPlainJSON(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+procedure("SetVariable"), "application/json",
		strings.NewReader(`{"flowchart":"lamp","key":"level","value":"7"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %s", resp.Status)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["value"] != "7" {
		t.Errorf("response = %v", out)
	}
}

// ---------------------------------------------------------------------------
// gRPC
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, s *Server) *ControlClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go s.GRPC().Serve(lis)
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewControlClient(conn)
}

func TestGRPCControl(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, newTestServer(t))

	exec, err := c.ExecuteBlock(ctx, &ExecuteBlockRequest{Flowchart: "lamp", Block: "Idle"})
	if err != nil {
		t.Fatal(err)
	}
	if exec.Started {
		t.Error("started a block that was already executing")
	}

	stop, err := c.StopBlock(ctx, &StopBlockRequest{Flowchart: "lamp", Block: "Idle"})
	if err != nil {
		t.Fatal(err)
	}
	if !stop.Stopped {
		t.Error("Idle was not reported stopped")
	}

	st, err := c.Status(ctx, &StatusRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if st.Busy {
		t.Error("busy after stopping the only running block")
	}

	set, err := c.SetVariable(ctx, &SetVariableRequest{Flowchart: "lamp", Key: "on", Value: "true"})
	if err != nil {
		t.Fatal(err)
	}
	if set.Value != "true" {
		t.Errorf("value = %q", set.Value)
	}

	saved, err := c.Save(ctx, &SaveRequest{Slot: "one", Description: "lamp on"})
	if err != nil {
		t.Fatal(err)
	}
	if saved.Slot != "one" {
		t.Errorf("slot = %q", saved.Slot)
	}
	loaded, err := c.Load(ctx, &LoadRequest{Slot: "one"})
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Scene != host.DefaultScene || loaded.Description != "lamp on" {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestGRPCErrorCodes(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, newTestServer(t))

	_, err := c.StopBlock(ctx, &StopBlockRequest{Flowchart: "nowhere", Block: "Idle"})
	if code := status.Code(err); code != codes.NotFound {
		t.Errorf("unknown flowchart: code = %v", code)
	}
	_, err = c.SendMessage(ctx, &SendMessageRequest{})
	if code := status.Code(err); code != codes.InvalidArgument {
		t.Errorf("empty message: code = %v", code)
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestListenAndServeStopsWithContext(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.ListenAndServe(ctx, "127.0.0.1:0", "127.0.0.1:0") }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			t.Errorf("ListenAndServe = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestStoppedWorkerIsUnavailable(t *testing.T) {
	s := newTestServer(t)
	s.worker.Stop()
	_, err := s.svc.Status(context.Background(), &StatusRequest{})
	if !errors.Is(err, host.ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
	if code := connectCode(err); code != connect.CodeUnavailable {
		t.Errorf("code = %v", code)
	}
}
