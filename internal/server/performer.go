package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	performerdomain "github.com/stagewire/stagewire/internal/performer/domain"
)

type createPerformerRequest struct {
	Name            string `json:"name"`
	PayoutAccountID string `json:"payout_account_id"`
}

func (s *Server) CreatePerformer(c *gin.Context) {
	var req createPerformerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	domainReq := performerdomain.CreatePerformerRequest{
		Name: strings.TrimSpace(req.Name),
	}
	if account := strings.TrimSpace(req.PayoutAccountID); account != "" {
		domainReq.PayoutAccountID = &account
	}

	resp, err := s.performerSvc.Create(c.Request.Context(), domainReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPerformerByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.performerSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPerformerLedger(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.performerSvc.Ledger(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// DeletePerformer refunds the performer's in-flight gigs first so no fee
// is left orphaned by the removal.
func (s *Server) DeletePerformer(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	if err := s.bookingSvc.RefundForPerformer(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.performerSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": id}})
}
