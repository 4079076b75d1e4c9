package server

import (
	"net/http"
	"strings"

	allocationdomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/allocation/domain"
	gatewaydomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/domain"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type listUnallocatedQuery struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

func (s *Server) ListUnallocated(c *gin.Context) {
	var query listUnallocatedQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.allocationSvc.ListUnallocated(c.Request.Context(), allocationdomain.ListUnallocatedRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Transactions, "page_info": resp.PageInfo})
}

type manualAllocateRequest struct {
	TransactionID string `json:"transaction_id"`
	InvoiceID     string `json:"invoice_id"`
}

func (s *Server) ManualAllocate(c *gin.Context) {
	var body manualAllocateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	transactionID, err := snowflake.ParseString(strings.TrimSpace(body.TransactionID))
	if err != nil {
		AbortWithError(c, gatewaydomain.ErrTransactionNotFound)
		return
	}
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(body.InvoiceID))
	if err != nil {
		AbortWithError(c, newValidationError("invoice_id", "invalid_invoice_id", "invalid invoice id"))
		return
	}

	txn, err := s.allocationSvc.ManualAllocate(c.Request.Context(), allocationdomain.ManualAllocateRequest{
		TransactionID: transactionID,
		InvoiceID:     invoiceID,
		Actor:         actor(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": txn})
}
