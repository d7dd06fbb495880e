package server

import (
	"net/http"

	"github.com/anishghanwat/storemybottle/internal/identity"
	purchasedomain "github.com/anishghanwat/storemybottle/internal/purchase/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type createPurchaseRequest struct {
	BottleID string `json:"bottle_id" binding:"required"`
	VenueID  string `json:"venue_id" binding:"required"`
}

func (s *Server) createPurchase(c *gin.Context) {
	userID, _ := identity.CustomerFromContext(c.Request.Context())

	var req createPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	bottleID, err := snowflake.ParseString(req.BottleID)
	if err != nil || bottleID == 0 {
		AbortWithError(c, newValidationError("bottle_id", "invalid_bottle_id", "bottle_id must be a valid id"))
		return
	}
	venueID, err := snowflake.ParseString(req.VenueID)
	if err != nil || venueID == 0 {
		AbortWithError(c, newValidationError("venue_id", "invalid_venue_id", "venue_id must be a valid id"))
		return
	}

	purchase, err := s.purchaseSvc.Create(c.Request.Context(), purchasedomain.CreateRequest{
		UserID:   userID,
		BottleID: bottleID,
		VenueID:  venueID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": purchase})
}

type processPurchaseRequest struct {
	Action        string `json:"action" binding:"required"`
	PaymentMethod string `json:"payment_method"`
}

func (s *Server) processPurchase(c *gin.Context) {
	staffID, _ := identity.StaffFromContext(c.Request.Context())

	purchaseID, ok := parseIDParam(c, "id")
	if !ok {
		AbortWithError(c, newValidationError("id", "invalid_purchase_id", "purchase id must be a valid id"))
		return
	}

	var req processPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var (
		purchase *purchasedomain.Purchase
		err      error
	)
	switch req.Action {
	case "confirm":
		purchase, err = s.purchaseSvc.Confirm(c.Request.Context(), purchasedomain.ConfirmRequest{
			PurchaseID: purchaseID,
			StaffID:    staffID,
			Method:     purchasedomain.PaymentMethod(req.PaymentMethod),
		})
	case "reject":
		purchase, err = s.purchaseSvc.Reject(c.Request.Context(), purchaseID, staffID)
	default:
		AbortWithError(c, newValidationError("action", "invalid_action", "action must be confirm or reject"))
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": purchase})
}

func (s *Server) getPurchase(c *gin.Context) {
	userID, _ := identity.CustomerFromContext(c.Request.Context())

	purchaseID, ok := parseIDParam(c, "id")
	if !ok {
		AbortWithError(c, newValidationError("id", "invalid_purchase_id", "purchase id must be a valid id"))
		return
	}

	purchase, err := s.purchaseSvc.Get(c.Request.Context(), purchaseID, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": purchase})
}

func (s *Server) myBottles(c *gin.Context) {
	userID, _ := identity.CustomerFromContext(c.Request.Context())

	bottles, err := s.querySvc.MyBottles(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": bottles})
}

func (s *Server) purchaseHistory(c *gin.Context) {
	userID, _ := identity.CustomerFromContext(c.Request.Context())

	history, err := s.querySvc.PurchaseHistory(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": history})
}

func (s *Server) pendingPurchases(c *gin.Context) {
	venueID, ok := identity.VenueFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	pending, err := s.querySvc.PendingPurchases(c.Request.Context(), venueID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": pending})
}
