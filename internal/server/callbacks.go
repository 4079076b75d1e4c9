package server

import (
	"encoding/json"
	"net/http"
	"strings"

	gatewaydomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Callback endpoints speak the gateway's envelope, not the API's error
// format. The gateway retries any non-success answer, and the money it is
// reporting has already moved, so ingestion failures are logged and
// acknowledged rather than surfaced.

type stkCallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int64  `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []gatewaydomain.CallbackItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type depositNotificationBody struct {
	TransactionType string `json:"TransactionType"`
	TransID         string `json:"TransID"`
	TransTime       string `json:"TransTime"`
	TransAmount     string `json:"TransAmount"`
	BillRefNumber   string `json:"BillRefNumber"`
	MSISDN          string `json:"MSISDN"`
	FirstName       string `json:"FirstName"`
	MiddleName      string `json:"MiddleName"`
	LastName        string `json:"LastName"`
}

func callbackAck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}

func callbackReject(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ResultCode": "C2B00012", "ResultDesc": "Rejected"})
}

func (s *Server) PushCallback(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		s.log.Warn("read push callback body", zap.Error(err))
		callbackAck(c)
		return
	}

	var envelope stkCallbackEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		s.log.Warn("decode push callback", zap.Error(err))
		callbackAck(c)
		return
	}

	cb := envelope.Body.StkCallback
	err = s.gatewaySvc.HandlePushResult(c.Request.Context(), gatewaydomain.PushResultCallback{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDescription: cb.ResultDesc,
		Metadata:          cb.CallbackMetadata.Item,
		Raw:               raw,
	})
	if err != nil {
		s.log.Warn("handle push callback",
			zap.String("checkout_request_id", cb.CheckoutRequestID),
			zap.Error(err),
		)
	}
	callbackAck(c)
}

// DepositValidation is the pre-commit hook: the only callback allowed to
// reject, because the funds have not moved yet.
func (s *Server) DepositValidation(c *gin.Context) {
	var body depositNotificationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		callbackReject(c)
		return
	}

	err := s.gatewaySvc.ValidateDeposit(c.Request.Context(), gatewaydomain.DepositNotification{
		TransactionID: body.TransID,
		Amount:        body.TransAmount,
		BillReference: body.BillRefNumber,
		Phone:         body.MSISDN,
		PayerName:     payerName(body),
	})
	if err != nil {
		callbackReject(c)
		return
	}
	callbackAck(c)
}

func (s *Server) DepositConfirmation(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		s.log.Warn("read deposit confirmation body", zap.Error(err))
		callbackAck(c)
		return
	}

	var body depositNotificationBody
	if err := json.Unmarshal(raw, &body); err != nil {
		s.log.Warn("decode deposit confirmation", zap.Error(err))
		callbackAck(c)
		return
	}

	err = s.gatewaySvc.HandleDeposit(c.Request.Context(), gatewaydomain.DepositNotification{
		TransactionID: body.TransID,
		Amount:        body.TransAmount,
		BillReference: body.BillRefNumber,
		Phone:         body.MSISDN,
		PayerName:     payerName(body),
		Raw:           raw,
	})
	if err != nil {
		s.log.Warn("handle deposit confirmation",
			zap.String("trans_id", body.TransID),
			zap.Error(err),
		)
	}
	callbackAck(c)
}

func payerName(body depositNotificationBody) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{body.FirstName, body.MiddleName, body.LastName} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}
