package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"parishledger/internal/attendance"
	"parishledger/internal/auth"
	"parishledger/internal/finance"
	"parishledger/internal/money"
	"parishledger/internal/payment"
	"parishledger/internal/queue"
	"parishledger/internal/registry"
	"parishledger/internal/scan"
	"parishledger/internal/status"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "parishledger-test"
)

type env struct {
	router *gin.Engine
	reg    *registry.Memory
	finrep *finance.MemoryRepository
}

func newEnv(t *testing.T) env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := registry.NewMemory()
	required := money.New(5000, money.CDF)
	reg.PutActivity(registry.Activity{
		ID:             "act-1",
		Title:          "Camp biblique",
		RequiredAmount: &required,
		Currency:       money.CDF,
		StartsAt:       time.Now().UTC().Add(time.Hour),
		EndsAt:         time.Now().UTC().Add(9 * time.Hour),
	})
	reg.PutParticipant(registry.Participant{ID: "part-1", DisplayName: "Grace K.", Kind: registry.KindChild})

	att := attendance.NewService(attendance.NewMemoryRepository(), reg)
	pay := payment.NewService(payment.NewMemoryRepository(), reg)
	resolver := status.NewResolver(reg, att, pay)
	finrep := finance.NewMemoryRepository()
	agg := finance.NewAggregator(finrep)
	scans := scan.NewPool(att, reg, scan.DefaultDedupWindow)
	bus := queue.NewInMemory(16)

	h := New(zap.NewNop(), reg, att, pay, resolver, agg, scans, bus, "Paroisse Test")

	r := gin.New()
	authed := r.Group("/v1", auth.Bearer(testKey, testIssuer))
	staff := authed.Group("", auth.RequireRole(auth.RoleStaff))
	staff.POST("/activities/:activityId/attendance", h.RecordAttendance)
	staff.POST("/activities/:activityId/payments", h.RecordPayment)
	device := authed.Group("", auth.RequireRole(auth.RoleScanner))
	device.POST("/activities/:activityId/scan", h.Scan)
	device.DELETE("/activities/:activityId/scan", h.EndScan)
	authed.GET("/activities/:activityId/attendance", h.Roster)
	authed.GET("/activities/:activityId/participants/:participantId/status", h.ParticipantStatus)
	authed.GET("/activities/:activityId/participants/:participantId/payments", h.PaymentHistory)
	authed.GET("/payments/:receiptId/receipt.pdf", h.ReceiptPDF)
	authed.GET("/finance/balance", h.Balance)
	authed.GET("/finance/balance/export", h.BalanceExport)

	return env{router: r, reg: reg, finrep: finrep}
}

func token(t *testing.T, subject, role string) string {
	t.Helper()
	pair, err := auth.Issue(subject, role, testIssuer, testKey, time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return pair.AccessToken
}

func doJSON(t *testing.T, r *gin.Engine, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRecordAttendanceEndpoint(t *testing.T) {
	e := newEnv(t)
	staff := token(t, "staff-1", auth.RoleStaff)

	w := doJSON(t, e.router, http.MethodPost, "/v1/activities/act-1/attendance", staff, gin.H{
		"participant_id": "part-1",
		"status":         "present",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var rec attendance.Record
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Source != attendance.SourceManual || rec.RecordedBy != "staff-1" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestRecordAttendanceUnknownActivity(t *testing.T) {
	e := newEnv(t)
	staff := token(t, "staff-1", auth.RoleStaff)

	w := doJSON(t, e.router, http.MethodPost, "/v1/activities/act-missing/attendance", staff, gin.H{
		"participant_id": "part-1",
		"status":         "present",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAttendanceRequiresStaffRole(t *testing.T) {
	e := newEnv(t)
	device := token(t, "scanner-1", auth.RoleScanner)

	w := doJSON(t, e.router, http.MethodPost, "/v1/activities/act-1/attendance", device, gin.H{
		"participant_id": "part-1",
		"status":         "present",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("want 403, got %d", w.Code)
	}

	w = doJSON(t, e.router, http.MethodPost, "/v1/activities/act-1/attendance", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 without token, got %d", w.Code)
	}
}

func TestScanEndpoint(t *testing.T) {
	e := newEnv(t)
	device := token(t, "scanner-1", auth.RoleScanner)

	w := doJSON(t, e.router, http.MethodPost, "/v1/activities/act-1/scan", device, gin.H{"code": "participant:part-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var res scan.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Accepted || res.Attendance == nil {
		t.Fatalf("expected acceptance: %+v", res)
	}

	// Immediate rescan from the same device is a duplicate.
	w = doJSON(t, e.router, http.MethodPost, "/v1/activities/act-1/scan", device, gin.H{"code": "participant:part-1"})
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Accepted || res.Reason != scan.ReasonDuplicate {
		t.Fatalf("expected duplicate rejection: %+v", res)
	}

	// Malformed payloads invite a rescan, not an error status.
	w = doJSON(t, e.router, http.MethodPost, "/v1/activities/act-1/scan", device, gin.H{"code": "???"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Accepted || res.Reason != scan.ReasonMalformedCode {
		t.Fatalf("expected malformed rejection: %+v", res)
	}
}

func TestPaymentAndStatusEndpoints(t *testing.T) {
	e := newEnv(t)
	staff := token(t, "staff-1", auth.RoleStaff)

	w := doJSON(t, e.router, http.MethodPost, "/v1/activities/act-1/payments", staff, gin.H{
		"participant_id": "part-1",
		"amount_minor":   2000,
		"currency":       "CDF",
		"method":         "cash",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var rec payment.Record
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.ReceiptID == "" {
		t.Fatal("payment response missing receipt id")
	}

	w = doJSON(t, e.router, http.MethodGet, "/v1/activities/act-1/participants/part-1/status", staff, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var st status.ParticipantStatus
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Attendance != status.AttendanceNotYetRecorded || st.Payment != status.PaymentPartial {
		t.Fatalf("got (%s, %s), want (not-yet-recorded, partial)", st.Attendance, st.Payment)
	}

	w = doJSON(t, e.router, http.MethodGet, "/v1/payments/"+rec.ReceiptID+"/receipt.pdf", staff, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("receipt status %d", w.Code)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("receipt is not a PDF")
	}
}

func TestZeroAmountPaymentAccepted(t *testing.T) {
	e := newEnv(t)
	staff := token(t, "staff-1", auth.RoleStaff)

	// Zero minor units is a valid transaction: it gets a receipt and leaves
	// the payment state untouched.
	w := doJSON(t, e.router, http.MethodPost, "/v1/activities/act-1/payments", staff, gin.H{
		"participant_id": "part-1",
		"amount_minor":   0,
		"currency":       "CDF",
		"method":         "cash",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var rec payment.Record
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.ReceiptID == "" || rec.Amount.Minor != 0 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	w = doJSON(t, e.router, http.MethodGet, "/v1/activities/act-1/participants/part-1/status", staff, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var st status.ParticipantStatus
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Payment != status.PaymentPending {
		t.Fatalf("zero payment must leave state pending, got %s", st.Payment)
	}

	w = doJSON(t, e.router, http.MethodPost, "/v1/activities/act-1/payments", staff, gin.H{
		"participant_id": "part-1",
		"amount_minor":   -100,
		"currency":       "CDF",
		"method":         "cash",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("want 400 for negative amount, got %d", w.Code)
	}
}

func TestPaymentCurrencyMismatch(t *testing.T) {
	e := newEnv(t)
	staff := token(t, "staff-1", auth.RoleStaff)

	w := doJSON(t, e.router, http.MethodPost, "/v1/activities/act-1/payments", staff, gin.H{
		"participant_id": "part-1",
		"amount_minor":   50,
		"currency":       "USD",
		"method":         "cash",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("want 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestBalanceEndpoint(t *testing.T) {
	e := newEnv(t)
	staff := token(t, "staff-1", auth.RoleStaff)
	date := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	e.finrep.AddIncome(date, money.New(10000, money.CDF))
	e.finrep.AddIncome(date, money.New(50, money.USD))
	e.finrep.AddExpense(date, money.New(4000, money.CDF))

	w := doJSON(t, e.router, http.MethodGet, "/v1/finance/balance?period_start=2025-07-01&period_end=2025-07-31", staff, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Balance map[money.Currency]finance.Totals `json:"balance"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Balance[money.CDF].Balance.Minor != 6000 {
		t.Fatalf("CDF balance wrong: %+v", body.Balance[money.CDF])
	}
	if body.Balance[money.USD].Expense.Minor != 0 || body.Balance[money.USD].Balance.Minor != 50 {
		t.Fatalf("USD line wrong: %+v", body.Balance[money.USD])
	}

	w = doJSON(t, e.router, http.MethodGet, "/v1/finance/balance?period_start=bogus&period_end=2025-07-31", staff, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("want 400 for bad period, got %d", w.Code)
	}
}
