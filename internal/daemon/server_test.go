package daemon

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/matheus3301/lawdesk/internal/metrics"
)

func TestObserveInterceptorCountsCodes(t *testing.T) {
	m := metrics.New()
	intercept := observeInterceptor(zap.NewNop(), m)
	info := &grpc.UnaryServerInfo{FullMethod: "/lawdesk.v1.ConversationService/GetHistory"}

	ok := func(context.Context, any) (any, error) { return "resp", nil }
	unavailable := func(context.Context, any) (any, error) {
		return nil, status.Error(codes.Unavailable, "store down")
	}

	for i := 0; i < 2; i++ {
		if resp, err := intercept(context.Background(), nil, info, ok); err != nil || resp != "resp" {
			t.Fatalf("resp = %v, err = %v", resp, err)
		}
	}
	if _, err := intercept(context.Background(), nil, info, unavailable); status.Code(err) != codes.Unavailable {
		t.Fatalf("err = %v, want Unavailable passed through", err)
	}

	if got := rpcCount(t, m, "GetHistory", "OK"); got != 2 {
		t.Errorf("OK count = %v, want 2", got)
	}
	if got := rpcCount(t, m, "GetHistory", "Unavailable"); got != 1 {
		t.Errorf("Unavailable count = %v, want 1", got)
	}
}

func TestObserveInterceptorWithoutMetrics(t *testing.T) {
	intercept := observeInterceptor(zap.NewNop(), nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/lawdesk.v1.ConversationService/Search"}
	if _, err := intercept(context.Background(), nil, info, func(context.Context, any) (any, error) { return nil, nil }); err != nil {
		t.Fatal(err)
	}
}

func TestRecoverInterceptor(t *testing.T) {
	intercept := recoverInterceptor(zap.NewNop())
	info := &grpc.UnaryServerInfo{FullMethod: "/lawdesk.v1.ConversationService/Ingest"}

	_, err := intercept(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Errorf("err = %v, want Internal", err)
	}
}

func rpcCount(t *testing.T, m *metrics.Metrics, method, code string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != "lawdesk_rpc_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range metric.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["method"] == method && labels["code"] == code {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}
