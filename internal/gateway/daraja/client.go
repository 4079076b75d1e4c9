// Package daraja is the outbound client for the mobile-money gateway's STK
// push API.
package daraja

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/config"
	gatewaydomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/domain"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/money"
)

const timestampLayout = "20060102150405"

// Client implements gatewaydomain.Client against the Daraja HTTP API.
type Client struct {
	baseURL      string
	shortCode    string
	passkey      string
	callbackBase string
	tokens       gatewaydomain.TokenSource
	client       *http.Client
	now          func() time.Time
}

func NewClient(cfg config.Config, tokens gatewaydomain.TokenSource) *Client {
	return &Client{
		baseURL:      cfg.Gateway.BaseURL,
		shortCode:    cfg.Gateway.ShortCode,
		passkey:      cfg.Gateway.Passkey,
		callbackBase: cfg.Gateway.CallbackBase,
		tokens:       tokens,
		client:       &http.Client{Timeout: cfg.Gateway.Timeout},
		now:          time.Now,
	}
}

// password derives the time-based request password from the shared secret.
func (c *Client) password(ts string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.shortCode + c.passkey + ts))
}

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type stkQueryPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResponse struct {
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
	ResponseDescription string `json:"ResponseDescription"`
}

type errorResponse struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (c *Client) STKPush(ctx context.Context, req gatewaydomain.STKPushRequest) (gatewaydomain.STKPushResponse, error) {
	ts := c.now().Format(timestampLayout)
	payload := stkPushPayload{
		BusinessShortCode: c.shortCode,
		Password:          c.password(ts),
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            money.MajorUnits(req.Amount),
		PartyA:            req.Phone,
		PartyB:            c.shortCode,
		PhoneNumber:       req.Phone,
		CallBackURL:       c.callbackBase + "/push-callback",
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.Description,
	}

	var body stkPushResponse
	if err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", payload, &body); err != nil {
		return gatewaydomain.STKPushResponse{}, err
	}
	return gatewaydomain.STKPushResponse{
		MerchantRequestID: body.MerchantRequestID,
		CheckoutRequestID: body.CheckoutRequestID,
		ResponseCode:      body.ResponseCode,
		Description:       body.ResponseDescription,
		CustomerMessage:   body.CustomerMessage,
	}, nil
}

func (c *Client) STKQuery(ctx context.Context, checkoutRequestID string) (gatewaydomain.STKQueryResponse, error) {
	ts := c.now().Format(timestampLayout)
	payload := stkQueryPayload{
		BusinessShortCode: c.shortCode,
		Password:          c.password(ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}

	var body stkQueryResponse
	if err := c.post(ctx, "/mpesa/stkpushquery/v1/query", payload, &body); err != nil {
		return gatewaydomain.STKQueryResponse{}, err
	}
	return gatewaydomain.STKQueryResponse{
		CheckoutRequestID: body.CheckoutRequestID,
		ResponseCode:      body.ResponseCode,
		ResultCode:        body.ResultCode,
		ResultDescription: body.ResultDesc,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// the request may have been accepted even though the response was
		// lost; callers must not auto-retry pushes
		return gatewaydomain.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var gwErr errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&gwErr)
		base := gatewaydomain.ErrGatewayRejected
		if resp.StatusCode >= http.StatusInternalServerError {
			base = gatewaydomain.ErrGatewayUnavailable
		}
		if gwErr.ErrorMessage != "" {
			return fmt.Errorf("%w: %s", base, gwErr.ErrorMessage)
		}
		return base
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
