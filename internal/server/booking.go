package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	bookingdomain "github.com/stagewire/stagewire/internal/booking/domain"
)

func (s *Server) AcceptGigApplicant(c *gin.Context) {
	gigID := strings.TrimSpace(c.Param("id"))
	performerID := strings.TrimSpace(c.Param("performerId"))

	if err := s.bookingSvc.AcceptApplicant(c.Request.Context(), gigID, performerID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"gig_id": gigID, "performer_id": performerID, "status": "confirmed"}})
}

func (s *Server) MarkGigPerformed(c *gin.Context) {
	gigID := strings.TrimSpace(c.Param("id"))
	if err := s.bookingSvc.MarkPerformed(c.Request.Context(), gigID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"gig_id": gigID}})
}

// ClearGigFee releases an escrowed fee early only when the deadline has
// already passed; the scheduler normally gets there first.
func (s *Server) ClearGigFee(c *gin.Context) {
	gigID := strings.TrimSpace(c.Param("id"))
	if err := s.bookingSvc.ClearFee(c.Request.Context(), gigID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"gig_id": gigID, "status": "cleared"}})
}

func (s *Server) ReportGigDispute(c *gin.Context) {
	gigID := strings.TrimSpace(c.Param("id"))
	if err := s.bookingSvc.ReportDispute(c.Request.Context(), gigID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"gig_id": gigID, "status": "in_dispute"}})
}

type resolveDisputeRequest struct {
	Outcome string `json:"outcome"`
}

func (s *Server) ResolveGigDispute(c *gin.Context) {
	var req resolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	gigID := strings.TrimSpace(c.Param("id"))
	outcome := bookingdomain.DisputeOutcome(strings.ToLower(strings.TrimSpace(req.Outcome)))
	if err := s.bookingSvc.ResolveDispute(c.Request.Context(), gigID, outcome); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"gig_id": gigID, "outcome": string(outcome)}})
}

func (s *Server) CancelGig(c *gin.Context) {
	gigID := strings.TrimSpace(c.Param("id"))
	if err := s.bookingSvc.Cancel(c.Request.Context(), gigID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"gig_id": gigID}})
}
