package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	processingdomain "github.com/smallbiznis/salesledger/internal/processing/domain"
)

type runRequest struct {
	Until string `json:"until"`
}

// Preview aggregates unprocessed and processed line items of a date range
// without writing anything.
func (s *Server) Preview(c *gin.Context) {
	from, err := parseDate(c.Query("from"))
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_date", "from must be YYYY-MM-DD"))
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_date", "to must be YYYY-MM-DD"))
		return
	}

	req := processingdomain.PreviewRequest{From: from, To: to}
	res, err := s.processing.Preview(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": processingdomain.NewPreviewView(req, res)})
}

// Run triggers one pipeline run under the run lock and reports its counts.
func (s *Server) Run(c *gin.Context) {
	var body runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	req := processingdomain.RunRequest{}
	if strings.TrimSpace(body.Until) != "" {
		until, err := parseDate(body.Until)
		if err != nil {
			AbortWithError(c, newValidationError("until", "invalid_date", "until must be YYYY-MM-DD"))
			return
		}
		req.Until = &until
	}

	res, err := s.runner.Trigger(c.Request.Context(), "api", req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": processingdomain.NewRunView(res)})
}

// Ready reports whether the database answers.
func (s *Server) Ready(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, strings.TrimSpace(value), time.UTC)
}
