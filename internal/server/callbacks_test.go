package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/config"
	gatewaydomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/domain"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubGatewayService struct {
	pushResults []gatewaydomain.PushResultCallback
	deposits    []gatewaydomain.DepositNotification
	handleErr   error
	validateErr error
}

func (s *stubGatewayService) InitiatePush(ctx context.Context, req gatewaydomain.InitiatePushRequest) (*gatewaydomain.PushPaymentRequest, error) {
	return nil, gatewaydomain.ErrGatewayUnavailable
}

func (s *stubGatewayService) QueryPushStatus(ctx context.Context, checkoutRequestID string) (*gatewaydomain.PushStatus, error) {
	return nil, gatewaydomain.ErrRequestNotFound
}

func (s *stubGatewayService) HandlePushResult(ctx context.Context, cb gatewaydomain.PushResultCallback) error {
	s.pushResults = append(s.pushResults, cb)
	return s.handleErr
}

func (s *stubGatewayService) ValidateDeposit(ctx context.Context, n gatewaydomain.DepositNotification) error {
	return s.validateErr
}

func (s *stubGatewayService) HandleDeposit(ctx context.Context, n gatewaydomain.DepositNotification) error {
	s.deposits = append(s.deposits, n)
	return s.handleErr
}

func newTestServer(t *testing.T, svc gatewaydomain.Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := server.NewEngine(zap.NewNop())
	server.NewServer(server.Params{
		Engine:     engine,
		Cfg:        config.Config{},
		Log:        zap.NewNop(),
		GatewaySvc: svc,
	})
	return engine
}

func postJSON(t *testing.T, engine *gin.Engine, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeAck(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var ack map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	return ack
}

const pushCallbackBody = `{
	"Body": {
		"stkCallback": {
			"MerchantRequestID": "29115-34620561-1",
			"CheckoutRequestID": "ws_CO_191220191020363925",
			"ResultCode": 0,
			"ResultDesc": "The service request is processed successfully.",
			"CallbackMetadata": {
				"Item": [
					{"Name": "Amount", "Value": 1160.00},
					{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
					{"Name": "PhoneNumber", "Value": 254712345678}
				]
			}
		}
	}
}`

func TestPushCallbackAcknowledged(t *testing.T) {
	svc := &stubGatewayService{}
	engine := newTestServer(t, svc)

	rec := postJSON(t, engine, "/api/v1/gateway/push-callback", []byte(pushCallbackBody))
	require.Equal(t, http.StatusOK, rec.Code)

	ack := decodeAck(t, rec)
	assert.Equal(t, float64(0), ack["ResultCode"])

	require.Len(t, svc.pushResults, 1)
	cb := svc.pushResults[0]
	assert.Equal(t, "ws_CO_191220191020363925", cb.CheckoutRequestID)
	assert.Equal(t, int64(0), cb.ResultCode)
	assert.Len(t, cb.Metadata, 3)
	assert.JSONEq(t, pushCallbackBody, string(cb.Raw))
}

func TestPushCallbackAcknowledgedOnServiceFailure(t *testing.T) {
	svc := &stubGatewayService{handleErr: gatewaydomain.ErrRequestNotFound}
	engine := newTestServer(t, svc)

	rec := postJSON(t, engine, "/api/v1/gateway/push-callback", []byte(pushCallbackBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeAck(t, rec)["ResultCode"])
}

func TestPushCallbackAcknowledgedOnGarbage(t *testing.T) {
	svc := &stubGatewayService{}
	engine := newTestServer(t, svc)

	rec := postJSON(t, engine, "/api/v1/gateway/push-callback", []byte(`{"Body": not json`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeAck(t, rec)["ResultCode"])
	assert.Empty(t, svc.pushResults)
}

const depositBody = `{
	"TransactionType": "Pay Bill",
	"TransID": "RKTQDM7W6S",
	"TransTime": "20191122063845",
	"TransAmount": "1160.00",
	"BusinessShortCode": "600638",
	"BillRefNumber": "INV-000001",
	"MSISDN": "254712345678",
	"FirstName": "JANE",
	"LastName": "DOE"
}`

func TestDepositConfirmationAcknowledged(t *testing.T) {
	svc := &stubGatewayService{}
	engine := newTestServer(t, svc)

	rec := postJSON(t, engine, "/api/v1/gateway/deposit-confirmation", []byte(depositBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeAck(t, rec)["ResultCode"])

	require.Len(t, svc.deposits, 1)
	n := svc.deposits[0]
	assert.Equal(t, "RKTQDM7W6S", n.TransactionID)
	assert.Equal(t, "1160.00", n.Amount)
	assert.Equal(t, "INV-000001", n.BillReference)
	assert.Equal(t, "JANE DOE", n.PayerName)
}

func TestDepositConfirmationAcknowledgedOnServiceFailure(t *testing.T) {
	svc := &stubGatewayService{handleErr: gatewaydomain.ErrInvalidAmount}
	engine := newTestServer(t, svc)

	rec := postJSON(t, engine, "/api/v1/gateway/deposit-confirmation", []byte(depositBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeAck(t, rec)["ResultCode"])
}

func TestDepositValidationAcceptsAndRejects(t *testing.T) {
	svc := &stubGatewayService{}
	engine := newTestServer(t, svc)

	rec := postJSON(t, engine, "/api/v1/gateway/deposit-validation", []byte(depositBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeAck(t, rec)["ResultCode"])

	svc.validateErr = gatewaydomain.ErrInvalidAmount
	rec = postJSON(t, engine, "/api/v1/gateway/deposit-validation", []byte(depositBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "C2B00012", decodeAck(t, rec)["ResultCode"])
}
