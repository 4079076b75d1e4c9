package server

import (
	"net/http"
	"strings"

	invoicedomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/invoice/domain"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type createInvoiceItemRequest struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitAmount  int64  `json:"unit_amount"`
}

type createInvoiceRequest struct {
	PatientID      string                     `json:"patient_id"`
	Items          []createInvoiceItemRequest `json:"items"`
	DiscountAmount int64                      `json:"discount_amount"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var body createInvoiceRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	patientID, err := snowflake.ParseString(strings.TrimSpace(body.PatientID))
	if err != nil {
		AbortWithError(c, newValidationError("patient_id", "invalid_patient_id", "invalid patient id"))
		return
	}

	items := make([]invoicedomain.CreateInvoiceItem, 0, len(body.Items))
	for _, item := range body.Items {
		items = append(items, invoicedomain.CreateInvoiceItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitAmount:  item.UnitAmount,
		})
	}

	invoice, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		PatientID:      patientID,
		Items:          items,
		DiscountAmount: body.DiscountAmount,
		Actor:          actor(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

type listInvoicesQuery struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
	PatientID string `form:"patient_id"`
	Status    string `form:"status"`
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query listInvoicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var patientID snowflake.ID
	if v := strings.TrimSpace(query.PatientID); v != "" {
		parsed, err := snowflake.ParseString(v)
		if err != nil {
			AbortWithError(c, newValidationError("patient_id", "invalid_patient_id", "invalid patient id"))
			return
		}
		patientID = parsed
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		PatientID: patientID,
		Status:    invoicedomain.InvoiceStatus(strings.TrimSpace(query.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Invoices, "page_info": resp.PageInfo})
}

func (s *Server) GetInvoice(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invoicedomain.ErrNotFound)
		return
	}

	invoice, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

type cancelInvoiceRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CancelInvoice(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invoicedomain.ErrNotFound)
		return
	}

	var body cancelInvoiceRequest
	if err := c.ShouldBindJSON(&body); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.invoiceSvc.Cancel(c.Request.Context(), id, body.Reason, actor(c)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (s *Server) ListInvoicePayments(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invoicedomain.ErrNotFound)
		return
	}

	payments, err := s.invoiceSvc.ListPayments(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payments})
}

type recordPaymentRequest struct {
	Amount            int64  `json:"amount"`
	Method            string `json:"method"`
	ExternalReference string `json:"external_reference"`
}

// RecordPayment is the manual entry path for cash and other out-of-band
// tenders. Gateway money never comes through here.
func (s *Server) RecordPayment(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invoicedomain.ErrNotFound)
		return
	}

	var body recordPaymentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := invoicedomain.ApplyPaymentRequest{
		InvoiceID:  id,
		Amount:     body.Amount,
		Method:     invoicedomain.PaymentMethod(strings.TrimSpace(body.Method)),
		RecordedBy: actor(c),
	}
	if ref := strings.TrimSpace(body.ExternalReference); ref != "" {
		req.ExternalReference = &ref
	}

	payment, err := s.invoiceSvc.ApplyPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": payment})
}
