package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/reckon/internal/entity"
)

type fakeReportStore struct {
	records []entity.DiagnosisRecord
}

func (f *fakeReportStore) ReportsAfter(index uint64) ([]entity.DiagnosisRecord, error) {
	var out []entity.DiagnosisRecord
	for _, r := range f.records {
		if r.Index > index {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReportStore) CurrentIndex() uint64 {
	if len(f.records) == 0 {
		return 0
	}
	return f.records[len(f.records)-1].Index
}

func storedDiagnosis(index uint64, venue, equity string) entity.DiagnosisRecord {
	return entity.DiagnosisRecord{
		Index: index,
		Diagnosis: entity.Diagnosis{
			Venue:       venue,
			TakenAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			TotalEquity: decimal.RequireFromString(equity),
		},
	}
}

func TestLatestReportReturnsNewestDiagnosis(t *testing.T) {
	store := &fakeReportStore{records: []entity.DiagnosisRecord{
		storedDiagnosis(1, "bybit", "1000.5"),
		storedDiagnosis(2, "bybit", "1002"),
	}}
	server := NewServer(":0", store)

	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got entity.Diagnosis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "bybit", got.Venue)
	assert.True(t, got.TotalEquity.Equal(decimal.RequireFromString("1002")))
}

func TestLatestReportWithoutHistory(t *testing.T) {
	server := NewServer(":0", &fakeReportStore{})

	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLatestReportWithoutStore(t *testing.T) {
	server := NewServer(":0", nil)

	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReportStreamReplaysJournal(t *testing.T) {
	store := &fakeReportStore{records: []entity.DiagnosisRecord{
		storedDiagnosis(1, "bybit", "1000.5"),
		storedDiagnosis(2, "bybit", "1002"),
	}}
	server := NewServer(":0", store)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/report/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	server.handleReportStream(rec, req)

	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "id: 1\n")
	assert.Contains(t, body, "id: 2\n")
	assert.Contains(t, body, "event: report\n")
	assert.Contains(t, body, `"total_equity":"1002"`)
}

func TestReportStreamResumesFromLastEventID(t *testing.T) {
	store := &fakeReportStore{records: []entity.DiagnosisRecord{
		storedDiagnosis(1, "bybit", "1000.5"),
		storedDiagnosis(2, "bybit", "1002"),
	}}
	server := NewServer(":0", store)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/report/stream", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "1")
	rec := httptest.NewRecorder()

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	server.handleReportStream(rec, req)

	body := rec.Body.String()
	assert.NotContains(t, body, "id: 1\n")
	assert.Contains(t, body, "id: 2\n")
}

func TestParseLastEventID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   uint64
	}{
		{name: "header preferred over query", header: "7", query: "3", want: 7},
		{name: "query fallback", header: "", query: "3", want: 3},
		{name: "empty", header: "", query: "", want: 0},
		{name: "garbage resets to zero", header: "not-a-number", query: "", want: 0},
		{name: "whitespace trimmed", header: "  12  ", query: "", want: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLastEventID(tt.header, tt.query))
		})
	}
}
