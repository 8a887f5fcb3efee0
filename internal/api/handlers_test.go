// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	autoscalingv1 "k8s.io/api/autoscaling/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/dhanush6701/kubepulse/internal/broker"
	"github.com/dhanush6701/kubepulse/internal/cluster"
	"github.com/dhanush6701/kubepulse/internal/config"
	"github.com/dhanush6701/kubepulse/internal/models"
	"github.com/dhanush6701/kubepulse/internal/scaling"
)

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

type fakeCluster struct {
	namespaces []string
	pods       []models.Pod
	metrics    []models.PodMetrics
	err        error
	metricsErr error
	deleted    []string
	foreground []bool
}

func (f *fakeCluster) ListNamespaces(context.Context) ([]string, error) {
	return f.namespaces, f.err
}
func (f *fakeCluster) ListPods(_ context.Context, ns string) ([]models.Pod, error) {
	return f.pods, f.err
}
func (f *fakeCluster) ListDeployments(context.Context, string) ([]models.Deployment, error) {
	return nil, f.err
}
func (f *fakeCluster) ListEvents(context.Context, string) ([]models.ClusterEvent, error) {
	return nil, f.err
}
func (f *fakeCluster) ListPodMetrics(context.Context, string) ([]models.PodMetrics, error) {
	return f.metrics, f.metricsErr
}
func (f *fakeCluster) ReadScale(context.Context, string, string) (*autoscalingv1.Scale, error) {
	return nil, f.err
}
func (f *fakeCluster) ReplaceScale(context.Context, string, string, *autoscalingv1.Scale) error {
	return f.err
}
func (f *fakeCluster) PatchScale(context.Context, string, string, []byte, types.PatchType) error {
	return f.err
}
func (f *fakeCluster) PatchWorkload(context.Context, string, string, []byte, types.PatchType) error {
	return f.err
}
func (f *fakeCluster) DeletePod(_ context.Context, name, _ string, foreground bool) error {
	f.deleted = append(f.deleted, name)
	f.foreground = append(f.foreground, foreground)
	return f.err
}
func (f *fakeCluster) FollowLogs(context.Context, string, string, string, int64) (io.ReadCloser, error) {
	return nil, f.err
}
func (f *fakeCluster) Reachable(context.Context) error { return f.err }

type fakeRelays struct {
	room    string
	started bool
	calls   int
}

func (f *fakeRelays) Start(ns, pod, _ string) (string, bool) {
	f.calls++
	return f.room, f.started
}
func (f *fakeRelays) Active() int { return 0 }

type fakeEngine struct {
	result *scaling.Result
	err    error
	got    scaling.Request
}

func (f *fakeEngine) Scale(_ context.Context, req scaling.Request) (*scaling.Result, error) {
	f.got = req
	return f.result, f.err
}

type fakeAssistant struct {
	configured bool
	reply      string
	err        error
}

func (f *fakeAssistant) Configured() bool { return f.configured }
func (f *fakeAssistant) Chat(context.Context, string, map[string]any) (string, error) {
	return f.reply, f.err
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

type handlerFixture struct {
	handlers  *Handlers
	pinger    *fakePinger
	cluster   *fakeCluster
	relays    *fakeRelays
	engine    *fakeEngine
	assistant *fakeAssistant
}

func newFixture() *handlerFixture {
	cfg := &config.Config{}
	cfg.Security.CORSOrigins = []string{"*"}

	f := &handlerFixture{
		pinger:    &fakePinger{},
		cluster:   &fakeCluster{},
		relays:    &fakeRelays{room: "pod:default:web-1", started: true},
		engine:    &fakeEngine{result: &scaling.Result{Strategy: "replace-scale", Replicas: 3}},
		assistant: &fakeAssistant{configured: true, reply: "try kubectl describe"},
	}
	hub := broker.NewHub(nil, broker.Options{HistoryLimit: 50, DefaultRoom: "general"})
	f.handlers = NewHandlers(cfg, f.pinger, f.cluster, hub, f.relays, f.engine, f.assistant)
	return f
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func TestHealthReportsOK(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	f.handlers.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Status != "success" {
		t.Fatalf("envelope status = %q", resp.Status)
	}
	data := resp.Data.(map[string]any)
	if data["status"] != "ok" || data["storeConnected"] != true {
		t.Fatalf("health = %v", data)
	}
}

func TestHealthDegradedWhenStoreDown(t *testing.T) {
	f := newFixture()
	f.pinger.err = errors.New("server selection timeout")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	f.handlers.Health(rec, req)

	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]any)
	if data["status"] != "degraded" || data["storeConnected"] != false {
		t.Fatalf("health = %v", data)
	}
}

func TestNamespacesSuccess(t *testing.T) {
	f := newFixture()
	f.cluster.namespaces = []string{"default", "kube-system"}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/k8s/namespaces", nil)
	rec := httptest.NewRecorder()
	f.handlers.Namespaces(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	nss := resp.Data.([]any)
	if len(nss) != 2 || nss[0] != "default" {
		t.Fatalf("namespaces = %v", nss)
	}
}

func TestPodsClusterErrorPreservesStatusCode(t *testing.T) {
	f := newFixture()
	f.cluster.err = &cluster.StatusError{Code: 403, Message: "forbidden"}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/k8s/pods?ns=default", nil)
	rec := httptest.NewRecorder()
	f.handlers.Pods(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Code != "CLUSTER_ERROR" {
		t.Fatalf("error = %+v", resp.Error)
	}
}

func TestPodsTransportErrorIsBadGateway(t *testing.T) {
	f := newFixture()
	f.cluster.err = errors.New("dial tcp: connection refused")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/k8s/pods", nil)
	rec := httptest.NewRecorder()
	f.handlers.Pods(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestPodMetricsDegradesToEmptyList(t *testing.T) {
	f := newFixture()
	f.cluster.metricsErr = errors.New("the server could not find the requested resource")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/k8s/metrics?ns=default", nil)
	rec := httptest.NewRecorder()
	f.handlers.PodMetrics(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite metrics failure", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Status != "success" {
		t.Fatalf("envelope status = %q", resp.Status)
	}
}

func TestScaleSuccess(t *testing.T) {
	f := newFixture()

	body, _ := json.Marshal(map[string]any{
		"deployment": "web", "ns": "default", "replicas": 3,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/k8s/scale", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.handlers.Scale(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if f.engine.got.Workload != "web" || f.engine.got.Replicas != 3 {
		t.Fatalf("engine request = %+v", f.engine.got)
	}
	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]any)
	if data["strategy"] != "replace-scale" {
		t.Fatalf("data = %v", data)
	}
}

func TestScaleMissingFieldsRejected(t *testing.T) {
	f := newFixture()

	body := []byte(`{"replicas": 3}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/k8s/scale", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.handlers.Scale(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("error = %+v", resp.Error)
	}
}

func TestScaleExhaustedIsConflict(t *testing.T) {
	f := newFixture()
	f.engine.result = &scaling.Result{}
	f.engine.err = scaling.ErrNotPermitted

	body, _ := json.Marshal(map[string]any{
		"deployment": "web", "ns": "default", "replicas": 3,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/k8s/scale", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.handlers.Scale(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Code != "SCALE_NOT_PERMITTED" {
		t.Fatalf("error = %+v", resp.Error)
	}
}

func TestScaleFatalKeepsUpstreamStatus(t *testing.T) {
	f := newFixture()
	f.engine.result = &scaling.Result{}
	f.engine.err = &cluster.StatusError{Code: 500, Message: "etcd leader changed"}

	body, _ := json.Marshal(map[string]any{
		"deployment": "web", "ns": "default", "replicas": 1,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/k8s/scale", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.handlers.Scale(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestStreamLogsRequiresNamespaceAndPod(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/k8s/logs/stream?ns=default", nil)
	rec := httptest.NewRecorder()
	f.handlers.StreamLogs(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if f.relays.calls != 0 {
		t.Fatal("relay must not start on invalid request")
	}
}

func TestStreamLogsStartsRelay(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/k8s/logs/stream?ns=default&pod=web-1", nil)
	rec := httptest.NewRecorder()
	f.handlers.StreamLogs(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]any)
	if data["room"] != "pod:default:web-1" || data["started"] != true {
		t.Fatalf("data = %v", data)
	}
}

func TestStreamLogsDuplicateIsAcknowledged(t *testing.T) {
	f := newFixture()
	f.relays.started = false

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/k8s/logs/stream?ns=default&pod=web-1", nil)
	rec := httptest.NewRecorder()
	f.handlers.StreamLogs(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 for duplicate start", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]any)
	if data["started"] != false {
		t.Fatalf("data = %v", data)
	}
}

func TestAssistantChatNotConfigured(t *testing.T) {
	f := newFixture()
	f.assistant.configured = false

	body := []byte(`{"message": "why is my pod crashing"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistant/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.handlers.AssistantChat(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Code != "ASSISTANT_NOT_CONFIGURED" {
		t.Fatalf("error = %+v", resp.Error)
	}
}

func TestAssistantChatReturnsReply(t *testing.T) {
	f := newFixture()

	body := []byte(`{"message": "why is my pod crashing", "context": {"namespace": "default"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistant/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.handlers.AssistantChat(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]any)
	if data["reply"] != "try kubectl describe" {
		t.Fatalf("data = %v", data)
	}
}

func TestRestartPodUsesBackgroundDelete(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/k8s/pods/web-1/restart?ns=default", nil)
	req = withChiParam(req, "pod", "web-1")
	rec := httptest.NewRecorder()
	f.handlers.RestartPod(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(f.cluster.deleted) != 1 || f.cluster.deleted[0] != "web-1" {
		t.Fatalf("deleted = %v", f.cluster.deleted)
	}
	if f.cluster.foreground[0] {
		t.Fatal("restart must not use foreground propagation")
	}
}

func TestDeletePodUsesForegroundDelete(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/k8s/pods/web-1?ns=default", nil)
	req = withChiParam(req, "pod", "web-1")
	rec := httptest.NewRecorder()
	f.handlers.DeletePod(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(f.cluster.foreground) != 1 || !f.cluster.foreground[0] {
		t.Fatal("delete must use foreground propagation")
	}
}
