package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"farewatch/internal/filter"
	"farewatch/internal/fraud"
	"farewatch/internal/service"
	"farewatch/internal/storage"
)

type detectFraudRequest struct {
	TicketID  string           `json:"ticketId"`
	Timestamp *string          `json:"timestamp"`
	Station   string           `json:"station"`
	Amount    *decimal.Decimal `json:"amount"`
}

type resultResponse struct {
	TicketID    string             `json:"ticketId"`
	Timestamp   time.Time          `json:"timestamp"`
	Station     string             `json:"station"`
	Amount      float64            `json:"amount"`
	FraudScore  float64            `json:"fraudScore"`
	Status      string             `json:"status"`
	RiskLevel   string             `json:"riskLevel"`
	ProcessedAt time.Time          `json:"processedAt"`
	Factors     map[string]float64 `json:"factors,omitempty"`
}

func newResultResponse(res fraud.Result) resultResponse {
	return resultResponse{
		TicketID:    res.TicketID,
		Timestamp:   res.Timestamp.UTC(),
		Station:     res.Station,
		Amount:      res.Amount.InexactFloat64(),
		FraudScore:  res.FraudScore,
		Status:      res.Status.String(),
		RiskLevel:   string(res.RiskLevel()),
		ProcessedAt: res.ProcessedAt.UTC(),
		Factors:     res.Factors,
	}
}

type recordResponse struct {
	ID         uuid.UUID `json:"id"`
	TicketID   string    `json:"ticketId"`
	Timestamp  time.Time `json:"timestamp"`
	Station    string    `json:"station"`
	Amount     float64   `json:"amount"`
	FraudScore float64   `json:"fraudScore"`
	Status     string    `json:"status"`
	RiskLevel  string    `json:"riskLevel"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newRecordResponse(r storage.Record) recordResponse {
	return recordResponse{
		ID:         r.ID,
		TicketID:   r.TicketID,
		Timestamp:  r.Timestamp.UTC(),
		Station:    r.Station,
		Amount:     r.Amount.InexactFloat64(),
		FraudScore: r.FraudScore,
		Status:     r.Status.String(),
		RiskLevel:  string(r.RiskLevel()),
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) detectFraudHandler(c *gin.Context) {
	var req detectFraudRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	in := service.Input{TicketID: req.TicketID, Station: req.Station, Amount: req.Amount}
	if req.Timestamp != nil && strings.TrimSpace(*req.Timestamp) != "" {
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.Timestamp))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC 3339", "fields": []string{"timestamp"}})
			return
		}
		in.Timestamp = &ts
	}

	res, err := s.analyzer.Analyze(c.Request.Context(), in)
	if err != nil {
		s.writeError(c, err, req.TicketID)
		return
	}
	c.JSON(http.StatusOK, newResultResponse(res))
}

func (s *Server) listTransactionsHandler(c *gin.Context) {
	requested := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		requested = n
	}

	criteria, err := filter.Parse(filter.Params{
		Station: c.Query("station"),
		Status:  c.Query("status"),
		From:    c.Query("from"),
		To:      c.Query("to"),
		Query:   c.Query("q"),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := s.analyzer.Recent(c.Request.Context(), s.cfg.ResolveListLimit(requested), criteria)
	if err != nil {
		s.writeError(c, err, "")
		return
	}

	out := make([]recordResponse, len(records))
	for i, r := range records {
		out[i] = newRecordResponse(r)
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out, "count": len(out)})
}

func (s *Server) getTransactionHandler(c *gin.Context) {
	ticketID := c.Param("ticketId")
	rec, err := s.analyzer.Get(c.Request.Context(), ticketID)
	if err != nil {
		s.writeError(c, err, ticketID)
		return
	}
	c.JSON(http.StatusOK, newRecordResponse(rec))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) updateStatusHandler(c *gin.Context) {
	ticketID := c.Param("ticketId")

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := s.analyzer.UpdateStatus(c.Request.Context(), ticketID, req.Status); err != nil {
		s.writeError(c, err, ticketID)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) statsHandler(c *gin.Context) {
	counts, err := s.analyzer.Stats(c.Request.Context())
	if err != nil {
		s.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":   counts.Total(),
		"flagged": counts[fraud.StatusFlagged],
		"pending": counts[fraud.StatusPending],
		"cleared": counts[fraud.StatusCleared],
	})
}

// writeError maps analyzer and store errors onto status codes. Failed
// analyses never carry a score in the body.
func (s *Server) writeError(c *gin.Context, err error, ticketID string) {
	_ = c.Error(err)

	var verr *service.ValidationError
	var recErr *service.RecordError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "fields": verr.Fields})
	case errors.Is(err, storage.ErrDuplicateKey):
		c.JSON(http.StatusConflict, gin.H{"error": "transaction already recorded", "ticketId": ticketID})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found", "ticketId": ticketID})
	case errors.Is(err, storage.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of pending, flagged, cleared"})
	case errors.Is(err, service.ErrLookupUnsupported):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
	case errors.As(err, &recErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transaction scored but not recorded", "ticketId": ticketID})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
