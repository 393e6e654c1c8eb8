package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hyprpranav/Visitor-Management-System/internal/config"
)

type ClientSuite struct {
	suite.Suite
	mux     *http.ServeMux
	server  *httptest.Server
	metrics *Metrics
	client  *Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.mux = http.NewServeMux()
	s.server = httptest.NewServer(s.mux)
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.client = NewClient(config.BackendConfig{
		Endpoint: s.server.URL + "/api/",
		Timeout:  2 * time.Second,
	}, WithMetrics(s.metrics))
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *ClientSuite) TestEndpointTrimsTrailingSlash() {
	s.Equal(s.server.URL+"/api", s.client.Endpoint())
}

func (s *ClientSuite) TestStats() {
	s.mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{"checked_in": 3, "checked_out": 4, "total": 7})
	})

	stats, err := s.client.Stats(context.Background())
	s.Require().NoError(err)
	s.Equal(Stats{CheckedIn: 3, CheckedOut: 4, Total: 7}, stats)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.RequestsTotal.WithLabelValues("stats", "ok")))
}

func (s *ClientSuite) TestStatsNon2xxUsesFallback() {
	s.mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := s.client.Stats(context.Background())
	s.Require().Error(err)
	s.True(errors.Is(err, ErrServer))
	s.Equal("Failed to fetch stats", err.Error())
	s.Equal(http.StatusInternalServerError, StatusOf(err))
}

func (s *ClientSuite) TestHistoryEncodesSearch() {
	var gotSearch string
	s.mux.HandleFunc("GET /api/history", func(w http.ResponseWriter, r *http.Request) {
		gotSearch = r.URL.Query().Get("search")
		writeJSON(w, http.StatusOK, map[string]any{"visitors": []map[string]any{
			{"name": "Ada", "contact": "1234567890", "nda_signed": 1, "checkout_time": nil, "status": StatusCheckedIn, "overstay": true},
		}})
	})

	visitors, err := s.client.History(context.Background(), "Ada & co")
	s.Require().NoError(err)
	s.Equal("Ada & co", gotSearch)
	s.Require().Len(visitors, 1)
	s.True(visitors[0].NDASigned)
	s.True(visitors[0].Overstay)
	s.Empty(visitors[0].CheckoutTime)
}

func (s *ClientSuite) TestHistoryNotFound() {
	s.mux.HandleFunc("GET /api/history", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No visitors found matching the search criteria"})
	})

	_, err := s.client.History(context.Background(), "zzz")
	s.Require().Error(err)
	s.Equal(http.StatusNotFound, StatusOf(err))
}

func (s *ClientSuite) TestCheckInSendsJSON() {
	var got CheckInRequest
	s.mux.HandleFunc("POST /api/checkin", func(w http.ResponseWriter, r *http.Request) {
		s.Equal("application/json", r.Header.Get("Content-Type"))
		s.NoError(json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Visitor checked in successfully!",
			"visitor": map[string]any{"id": 9, "name": got.Name, "status": StatusCheckedIn},
		})
	})

	res, err := s.client.CheckIn(context.Background(), CheckInRequest{Name: "Ada", Contact: "1234567890", Purpose: "Meeting", EntryMethod: "manual"})
	s.Require().NoError(err)
	s.Equal("Visitor checked in successfully!", res.Message)
	s.Require().NotNil(res.Visitor)
	s.Equal(int64(9), res.Visitor.ID)
	s.Equal("Ada", got.Name)
	s.Equal("manual", got.EntryMethod)
}

func (s *ClientSuite) TestCheckInErrorMessagePrecedence() {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"error field", `{"error":"Duplicate"}`, "Duplicate"},
		{"detail string", `{"detail":"Contact invalid"}`, "Contact invalid"},
		{"detail structured", `{"detail":[{"loc":["contact"]}]}`, `[{"loc":["contact"]}]`},
		{"fallback", `{}`, "Check-in failed"},
	}
	var body string
	s.mux.HandleFunc("POST /api/checkin", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, body)
	})
	for _, tc := range cases {
		s.Run(tc.name, func() {
			body = tc.body
			_, err := s.client.CheckIn(context.Background(), CheckInRequest{})
			s.Require().Error(err)
			s.True(HasCode(err, CodeServer))
			s.Equal(tc.want, err.Error())
		})
	}
}

func (s *ClientSuite) TestCheckInInvalidResponse() {
	s.mux.HandleFunc("POST /api/checkin", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>oops</html>")
	})

	_, err := s.client.CheckIn(context.Background(), CheckInRequest{})
	s.Require().Error(err)
	s.True(errors.Is(err, ErrInvalidResponse))
	s.Equal("Server error: Invalid response", err.Error())
}

func (s *ClientSuite) TestUnreachable() {
	s.server.Close()

	_, err := s.client.CheckOut(context.Background(), CheckOutRequest{Contact: "1234567890"})
	s.Require().Error(err)
	s.True(errors.Is(err, ErrUnreachable))
	s.False(s.client.Probe(context.Background()))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.RequestsTotal.WithLabelValues("checkout", string(CodeUnreachable))))
}

func (s *ClientSuite) TestProbe() {
	s.mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Stats{})
	})
	s.True(s.client.Probe(context.Background()))
}

func (s *ClientSuite) TestGenerateQR() {
	png := []byte{0x89, 'P', 'N', 'G'}
	s.mux.HandleFunc("POST /api/generate-qr", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		s.NoError(json.NewDecoder(r.Body).Decode(&body))
		s.Equal("1234567890", body["contact"])
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	})

	file, err := s.client.GenerateQR(context.Background(), "1234567890")
	s.Require().NoError(err)
	s.Equal(png, file.Data)
	s.Equal("image/png", file.ContentType)
}

func (s *ClientSuite) TestGenerateQRFailure() {
	s.mux.HandleFunc("POST /api/generate-qr", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Contact is required"})
	})

	_, err := s.client.GenerateQR(context.Background(), "")
	s.Require().Error(err)
	s.Equal("Contact is required", err.Error())
}

func (s *ClientSuite) TestExport() {
	s.mux.HandleFunc("GET /api/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="visitor_logs.csv"`)
		_, _ = io.WriteString(w, "ID,Name\n1,Ada\n")
	})

	file, err := s.client.Export(context.Background())
	s.Require().NoError(err)
	s.Equal("visitor_logs.csv", file.Name)
	s.Equal("ID,Name\n1,Ada\n", string(file.Data))
}

func (s *ClientSuite) TestExportTooLarge() {
	s.mux.HandleFunc("GET /api/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write(bytes.Repeat([]byte("1,Ada\n"), maxBodyBytes/6+1))
	})

	file, err := s.client.Export(context.Background())
	s.Require().Error(err)
	s.True(errors.Is(err, ErrInvalidResponse))
	s.True(errors.Is(err, ErrBodyTooLarge))
	s.Nil(file.Data)
}

func (s *ClientSuite) TestExportErrorIsParsedAsJSON() {
	s.mux.HandleFunc("GET /api/export", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Export failed: disk full"})
	})

	_, err := s.client.Export(context.Background())
	s.Require().Error(err)
	s.Equal("Export failed: disk full", err.Error())
}

func (s *ClientSuite) TestPendingAcceptsSnakeCaseVisitFields() {
	s.mux.HandleFunc("GET /api/preregistrations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"preregistrations": []map[string]any{
			{"id": 1, "name": "Ada", "visitDate": "2026-10-20", "visitTime": "10:00"},
			{"id": 2, "name": "Bob", "visit_date": "2026-10-21", "visit_time": "11:30", "nda_signed": 0},
		}})
	})

	list, err := s.client.PendingPreRegistrations(context.Background())
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("2026-10-20", list[0].VisitDate)
	s.Equal("2026-10-21", list[1].VisitDate)
	s.Equal("11:30", list[1].VisitTime)
	s.False(list[1].NDASigned)
}

func (s *ClientSuite) TestApproveAndDecline() {
	s.mux.HandleFunc("POST /api/preregistrations/{id}/approve", func(w http.ResponseWriter, r *http.Request) {
		s.Equal("7", r.PathValue("id"))
		writeJSON(w, http.StatusOK, map[string]string{"message": "Pre-registration approved and visitor checked in at 2026-10-20 10:00:00."})
	})
	s.mux.HandleFunc("POST /api/preregistrations/{id}/decline", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{})
	})

	res, err := s.client.Approve(context.Background(), 7)
	s.Require().NoError(err)
	s.Contains(res.Message, "approved")

	_, err = s.client.Decline(context.Background(), 7)
	s.Require().Error(err)
	s.Equal("Decline failed", err.Error())
}

func (s *ClientSuite) TestPreRegisterSendsCamelCaseVisitFields() {
	var raw map[string]any
	s.mux.HandleFunc("POST /api/preregister", func(w http.ResponseWriter, r *http.Request) {
		s.NoError(json.NewDecoder(r.Body).Decode(&raw))
		writeJSON(w, http.StatusOK, map[string]string{"message": "Pre-registration submitted! Await admin approval."})
	})

	_, err := s.client.PreRegister(context.Background(), PreRegistration{
		Name: "Ada", Contact: "1234567890", Purpose: "Tour", VisitDate: "2026-10-20", VisitTime: "10:00",
	})
	s.Require().NoError(err)
	s.Equal("2026-10-20", raw["visitDate"])
	s.Equal("10:00", raw["visitTime"])
	s.NotContains(raw, "id")
}

func (s *ClientSuite) TestSubmitFeedback() {
	var got Feedback
	s.mux.HandleFunc("POST /api/feedback", func(w http.ResponseWriter, r *http.Request) {
		s.NoError(json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]string{"message": "Feedback submitted successfully!"})
	})

	res, err := s.client.SubmitFeedback(context.Background(), Feedback{Type: FeedbackSuggest, Message: "More chairs"})
	s.Require().NoError(err)
	s.Equal("Feedback submitted successfully!", res.Message)
	s.Equal(FeedbackSuggest, got.Type)
}

func TestFeedbackTypeValid(t *testing.T) {
	for _, ft := range []FeedbackType{FeedbackHelp, FeedbackReport, FeedbackSuggest} {
		if !ft.Valid() {
			t.Errorf("%q should be valid", ft)
		}
	}
	if FeedbackType("praise").Valid() {
		t.Error("unknown type should be invalid")
	}
}

type recordedSpan struct {
	noop.Span
	name   string
	kind   trace.SpanKind
	attrs  []attribute.KeyValue
	status codes.Code
	errs   []error
	ended  bool
}

func (sp *recordedSpan) SetAttributes(kv ...attribute.KeyValue) { sp.attrs = append(sp.attrs, kv...) }
func (sp *recordedSpan) SetStatus(code codes.Code, _ string)     { sp.status = code }
func (sp *recordedSpan) End(...trace.SpanEndOption)              { sp.ended = true }

func (sp *recordedSpan) RecordError(err error, _ ...trace.EventOption) {
	sp.errs = append(sp.errs, err)
}

func (sp *recordedSpan) attr(key attribute.Key) (attribute.Value, bool) {
	for _, kv := range sp.attrs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

type recordingTracer struct {
	noop.Tracer
	mu    sync.Mutex
	spans []*recordedSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	sp := &recordedSpan{name: name, kind: cfg.SpanKind(), attrs: cfg.Attributes()}
	t.mu.Lock()
	t.spans = append(t.spans, sp)
	t.mu.Unlock()
	return trace.ContextWithSpan(ctx, sp), sp
}

func (s *ClientSuite) TestCallsAreTraced() {
	s.mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{"total": 1})
	})
	s.mux.HandleFunc("POST /api/checkin", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Duplicate"})
	})
	tracer := &recordingTracer{}
	client := NewClient(config.BackendConfig{Endpoint: s.server.URL + "/api"}, WithTracer(tracer))

	_, err := client.Stats(context.Background())
	s.Require().NoError(err)
	_, err = client.CheckIn(context.Background(), CheckInRequest{Name: "Ada"})
	s.Require().Error(err)

	s.Require().Len(tracer.spans, 2)
	stats, checkin := tracer.spans[0], tracer.spans[1]

	s.Equal("backend.stats", stats.name)
	s.Equal(trace.SpanKindClient, stats.kind)
	s.True(stats.ended)
	s.Equal(codes.Unset, stats.status)
	endpoint, ok := stats.attr("backend.endpoint")
	s.Require().True(ok)
	s.Equal("stats", endpoint.AsString())
	code, ok := stats.attr("http.status_code")
	s.Require().True(ok)
	s.Equal(int64(http.StatusOK), code.AsInt64())

	s.Equal("backend.checkin", checkin.name)
	s.True(checkin.ended)
	s.Equal(codes.Error, checkin.status)
	s.Require().Len(checkin.errs, 1)
	s.True(errors.Is(checkin.errs[0], ErrServer))
	code, ok = checkin.attr("http.status_code")
	s.Require().True(ok)
	s.Equal(int64(http.StatusConflict), code.AsInt64())
}
