package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	venuedomain "github.com/stagewire/stagewire/internal/venue/domain"
)

type createVenueRequest struct {
	Name string `json:"name"`
	City string `json:"city"`
}

func (s *Server) CreateVenue(c *gin.Context) {
	var req createVenueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.venueSvc.Create(c.Request.Context(), venuedomain.CreateVenueRequest{
		Name: strings.TrimSpace(req.Name),
		City: strings.TrimSpace(req.City),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetVenueProfile(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.venueSvc.GetProfile(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// DeleteVenue refunds every in-flight gig the venue still owes before the
// profile and its reference sets go away.
func (s *Server) DeleteVenue(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	if err := s.bookingSvc.RefundForVenue(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.venueSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": id}})
}
