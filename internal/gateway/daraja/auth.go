package daraja

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/config"
	gatewaydomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/domain"
)

// Auth performs the OAuth client-credentials exchange against the gateway.
type Auth struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	client         *http.Client
}

func NewAuth(cfg config.Config) *Auth {
	return &Auth{
		baseURL:        cfg.Gateway.BaseURL,
		consumerKey:    cfg.Gateway.ConsumerKey,
		consumerSecret: cfg.Gateway.ConsumerSecret,
		client:         &http.Client{Timeout: cfg.Gateway.Timeout},
	}
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

func (a *Auth) Authenticate(ctx context.Context) (gatewaydomain.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return gatewaydomain.Credential{}, err
	}
	req.SetBasicAuth(a.consumerKey, a.consumerSecret)

	resp, err := a.client.Do(req)
	if err != nil {
		return gatewaydomain.Credential{}, gatewaydomain.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return gatewaydomain.Credential{}, gatewaydomain.ErrGatewayRejected
	}

	var body authResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return gatewaydomain.Credential{}, gatewaydomain.ErrGatewayUnavailable
	}
	if strings.TrimSpace(body.AccessToken) == "" {
		return gatewaydomain.Credential{}, gatewaydomain.ErrGatewayRejected
	}

	ttl, err := strconv.ParseInt(strings.TrimSpace(body.ExpiresIn), 10, 64)
	if err != nil || ttl <= 0 {
		ttl = 3600
	}

	return gatewaydomain.Credential{
		AccessToken: body.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(ttl) * time.Second),
	}, nil
}
