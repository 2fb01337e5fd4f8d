package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"parishledger/internal/attendance"
	"parishledger/internal/auth"
	"parishledger/internal/export"
	"parishledger/internal/finance"
	"parishledger/internal/metrics"
	"parishledger/internal/money"
	"parishledger/internal/payment"
	"parishledger/internal/queue"
	"parishledger/internal/registry"
	"parishledger/internal/scan"
	"parishledger/internal/status"
)

// Handler owns the HTTP surface of the ledger core.
type Handler struct {
	log      *zap.Logger
	reg      registry.Registry
	att      *attendance.Service
	pay      *payment.Service
	resolver *status.Resolver
	agg      *finance.Aggregator
	scans    *scan.Pool
	bus      queue.Queue
	orgName  string
}

// New wires the handler over the core services.
func New(log *zap.Logger, reg registry.Registry, att *attendance.Service, pay *payment.Service, resolver *status.Resolver, agg *finance.Aggregator, scans *scan.Pool, bus queue.Queue, orgName string) *Handler {
	return &Handler{
		log:      log,
		reg:      reg,
		att:      att,
		pay:      pay,
		resolver: resolver,
		agg:      agg,
		scans:    scans,
		bus:      bus,
		orgName:  orgName,
	}
}

// fail maps core errors onto HTTP statuses per the error taxonomy.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, money.ErrCurrencyMismatch), errors.Is(err, money.ErrUnknownCurrency):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, payment.ErrReceiptConflict):
		h.log.Error("receipt allocation conflict", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) publish(ctx context.Context, msg queue.Message, err error) {
	if err != nil {
		h.log.Warn("event encode failed", zap.Error(err))
		return
	}
	if err := h.bus.Publish(ctx, msg); err != nil {
		h.log.Warn("event publish failed", zap.String("type", msg.Type), zap.Error(err))
	}
}

type attendanceRequest struct {
	ParticipantID string     `json:"participant_id" binding:"required"`
	Status        string     `json:"status" binding:"required"`
	Source        string     `json:"source"`
	ArrivedAt     *time.Time `json:"arrived_at"`
}

// RecordAttendance handles POST /v1/activities/:activityId/attendance.
func (h *Handler) RecordAttendance(c *gin.Context) {
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := attendance.ParseStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	source := attendance.SourceManual
	if req.Source != "" {
		if source, err = attendance.ParseSource(req.Source); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	var arrivedAt time.Time
	if req.ArrivedAt != nil {
		arrivedAt = *req.ArrivedAt
	}

	rec, err := h.att.RecordAttendance(c.Request.Context(), c.Param("activityId"), req.ParticipantID, st, source, arrivedAt, auth.Identity(c).Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.AttendanceWrites.WithLabelValues(string(rec.Source)).Inc()
	msg, merr := queue.NewAttendanceRecorded(rec)
	h.publish(c.Request.Context(), msg, merr)
	c.JSON(http.StatusOK, rec)
}

// Roster handles GET /v1/activities/:activityId/attendance.
func (h *Handler) Roster(c *gin.Context) {
	recs, err := h.att.Roster(c.Request.Context(), c.Param("activityId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": recs})
}

type scanRequest struct {
	Code string `json:"code" binding:"required"`
}

// Scan handles POST /v1/activities/:activityId/scan. The scanning device is
// the authenticated caller; each device keeps its own de-duplication state.
func (h *Handler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	device := auth.Identity(c).Subject
	proto := h.scans.Acquire(c.Param("activityId"), device)
	res, err := proto.Scan(c.Request.Context(), req.Code)
	if err != nil {
		if errors.Is(err, scan.ErrClosed) {
			c.JSON(http.StatusConflict, gin.H{"error": "scanner session closed"})
			return
		}
		h.fail(c, err)
		return
	}
	if res.Accepted {
		metrics.ScansTotal.WithLabelValues("accepted").Inc()
		metrics.AttendanceWrites.WithLabelValues(string(attendance.SourceQRScan)).Inc()
		msg, merr := queue.NewAttendanceRecorded(*res.Attendance)
		h.publish(c.Request.Context(), msg, merr)
	} else {
		metrics.ScansTotal.WithLabelValues(string(res.Reason)).Inc()
	}
	c.JSON(http.StatusOK, res)
}

// EndScan handles DELETE /v1/activities/:activityId/scan: device released.
func (h *Handler) EndScan(c *gin.Context) {
	h.scans.Release(c.Param("activityId"), auth.Identity(c).Subject)
	c.Status(http.StatusNoContent)
}

type paymentRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
	// No `required` tag on the amount: zero is a legal payment and gin's
	// required validation rejects zero values.
	AmountMinor int64      `json:"amount_minor"`
	Currency    string     `json:"currency" binding:"required"`
	Method      string     `json:"method" binding:"required"`
	PaidAt      *time.Time `json:"paid_at"`
}

// RecordPayment handles POST /v1/activities/:activityId/payments.
func (h *Handler) RecordPayment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cur, err := money.ParseCurrency(req.Currency)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	method, err := payment.ParseMethod(req.Method)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.AmountMinor < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must not be negative"})
		return
	}
	var paidAt time.Time
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}

	rec, err := h.pay.RecordPayment(c.Request.Context(), c.Param("activityId"), req.ParticipantID, money.New(req.AmountMinor, cur), method, paidAt, auth.Identity(c).Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.PaymentsTotal.WithLabelValues(string(rec.Amount.Currency), string(rec.Method)).Inc()
	msg, merr := queue.NewPaymentRecorded(rec)
	h.publish(c.Request.Context(), msg, merr)
	c.JSON(http.StatusCreated, rec)
}

// PaymentHistory handles
// GET /v1/activities/:activityId/participants/:participantId/payments.
func (h *Handler) PaymentHistory(c *gin.Context) {
	recs, err := h.pay.History(c.Request.Context(), c.Param("activityId"), c.Param("participantId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": recs})
}

// ParticipantStatus handles
// GET /v1/activities/:activityId/participants/:participantId/status.
func (h *Handler) ParticipantStatus(c *gin.Context) {
	if _, err := h.reg.GetParticipant(c.Request.Context(), c.Param("participantId")); err != nil {
		h.fail(c, err)
		return
	}
	st, err := h.resolver.Resolve(c.Request.Context(), c.Param("activityId"), c.Param("participantId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ReceiptPDF handles GET /v1/payments/:receiptId/receipt.pdf.
func (h *Handler) ReceiptPDF(c *gin.Context) {
	rec, err := h.pay.ByReceipt(c.Request.Context(), c.Param("receiptId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown receipt"})
		return
	}
	act, err := h.reg.GetActivity(c.Request.Context(), rec.ActivityID)
	if err != nil {
		h.fail(c, err)
		return
	}
	part, err := h.reg.GetParticipant(c.Request.Context(), rec.ParticipantID)
	if err != nil {
		h.fail(c, err)
		return
	}
	data, err := export.BuildReceiptPDF(h.orgName, *rec, act, part)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+rec.ReceiptID+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

// parsePeriod reads the period_start/period_end query params.
func parsePeriod(c *gin.Context) (time.Time, time.Time, bool) {
	const layout = "2006-01-02"
	start, err := time.Parse(layout, c.Query("period_start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period_start must be YYYY-MM-DD"})
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(layout, c.Query("period_end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period_end must be YYYY-MM-DD"})
		return time.Time{}, time.Time{}, false
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period_end before period_start"})
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// Balance handles GET /v1/finance/balance.
func (h *Handler) Balance(c *gin.Context) {
	start, end, ok := parsePeriod(c)
	if !ok {
		return
	}
	lines, err := h.agg.Balance(c.Request.Context(), start, end)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": lines})
}

// BalanceExport handles GET /v1/finance/balance/export.
func (h *Handler) BalanceExport(c *gin.Context) {
	start, end, ok := parsePeriod(c)
	if !ok {
		return
	}
	lines, err := h.agg.Balance(c.Request.Context(), start, end)
	if err != nil {
		h.fail(c, err)
		return
	}
	data, err := export.BuildBalanceXLSX(start, end, lines)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="balance.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
