package server

import (
	"net/http"
	"strings"

	gatewaydomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/domain"
	"github.com/gin-gonic/gin"
)

type initiatePushRequest struct {
	Phone     string `json:"phone"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

// InitiatePush prompts the payer's phone for an invoice payment. The
// response carries the gateway's checkout request id; the payment itself
// arrives later through the result callback.
func (s *Server) InitiatePush(c *gin.Context) {
	var body initiatePushRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.gatewaySvc.InitiatePush(c.Request.Context(), gatewaydomain.InitiatePushRequest{
		Phone:     body.Phone,
		Amount:    body.Amount,
		Reference: body.Reference,
		Actor:     actor(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": record})
}

func (s *Server) QueryPushStatus(c *gin.Context) {
	checkoutRequestID := strings.TrimSpace(c.Param("checkout_request_id"))
	if checkoutRequestID == "" {
		AbortWithError(c, gatewaydomain.ErrRequestNotFound)
		return
	}

	status, err := s.gatewaySvc.QueryPushStatus(c.Request.Context(), checkoutRequestID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}
