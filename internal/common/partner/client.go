// internal/common/partner/client.go
package partner

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"loangenius/internal/common/config"
	"loangenius/internal/common/errors"
	httpclient "loangenius/internal/common/http"
	"loangenius/internal/common/logger"
	"loangenius/internal/common/metrics"
)

const (
	headerPartnerToken = "partner-token"
	headerEpoch        = "x-epoch"
	headerAuth         = "Authorization"
)

// Options configures a Client. Zero durations fall back to sane values.
type Options struct {
	UATBaseURL       string
	ExternalBaseURL  string
	APIKey           string
	Timeout          time.Duration
	TokenRefreshSkew time.Duration
	HTTPClient       *http.Client
	Logger           logger.Logger
}

// Client talks to the partner backend: the UAT host for token, OTP and lead
// calls and the external host for company and pincode lookups.
type Client struct {
	uatBaseURL      string
	externalBaseURL string
	apiKey          string
	timeout         time.Duration
	http            *httpclient.Client
	tokens          *TokenCache
	logger          logger.Logger
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}

	// No client-level timeout: a caller's deadline must be able to exceed it.
	hc := httpclient.NewClient(0)
	if opts.HTTPClient != nil {
		hc = httpclient.NewClientWith(opts.HTTPClient)
	}

	c := &Client{
		uatBaseURL:      strings.TrimSuffix(opts.UATBaseURL, "/"),
		externalBaseURL: strings.TrimSuffix(opts.ExternalBaseURL, "/"),
		apiKey:          opts.APIKey,
		timeout:         opts.Timeout,
		http:            hc,
		logger:          opts.Logger.WithFields(map[string]interface{}{"component": "partner"}),
	}
	c.tokens = NewTokenCache(c.fetchToken, opts.TokenRefreshSkew)
	return c
}

func NewClientFromConfig(cfg config.PartnerConfig, log logger.Logger) *Client {
	return NewClient(Options{
		UATBaseURL:       cfg.UATBaseURL,
		ExternalBaseURL:  cfg.ExternalBaseURL,
		APIKey:           cfg.APIKey,
		Timeout:          cfg.RequestTimeout(),
		TokenRefreshSkew: config.GetDuration(cfg.TokenRefreshSkew),
		Logger:           log,
	})
}

// Tokens exposes the shared token cache.
func (c *Client) Tokens() *TokenCache {
	return c.tokens
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Time, error) {
	metrics.PartnerTokenRefreshes.Inc()

	data, err := c.call(ctx, "token", "get partner token", httpclient.Request{
		Method: http.MethodPost,
		URL:    c.uatBaseURL + "/partner/token",
		Body:   map[string]string{"x-api-key": c.apiKey},
	})
	if err != nil {
		return "", time.Time{}, errors.NewPartnerTokenError(err)
	}

	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil || td.JWTToken == "" {
		return "", time.Time{}, errors.NewPartnerTokenError(
			errors.NewMalformedResponseError("get partner token", "missing jwttoken"))
	}

	c.logger.Debug("Partner token refreshed", nil)
	return td.JWTToken, parseExpiry(td.ExpiresAt, time.Now()), nil
}

// SendOTP asks the backend to text a one-time code to mobile.
func (c *Client) SendOTP(ctx context.Context, mobile string) (*OTPChallenge, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	data, err := c.call(ctx, "auth", "send OTP", httpclient.Request{
		Method:  http.MethodPost,
		URL:     c.uatBaseURL + "/partner/auth",
		Headers: map[string]string{headerPartnerToken: token},
		Body:    map[string]string{"mobile": mobile},
	})
	if err != nil {
		return nil, err
	}

	var challenge OTPChallenge
	if err := json.Unmarshal(data, &challenge); err != nil {
		return nil, errors.NewMalformedResponseError("send OTP", err.Error())
	}
	return &challenge, nil
}

// VerifyOTP checks otp against the challenge issued by SendOTP.
func (c *Client) VerifyOTP(ctx context.Context, mobile, otp, challengeToken string) (*Verification, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	data, err := c.call(ctx, "auth", "verify OTP", httpclient.Request{
		Method: http.MethodPost,
		URL:    c.uatBaseURL + "/partner/auth",
		Headers: map[string]string{
			headerPartnerToken: token,
			headerEpoch:        challengeToken,
		},
		Body: map[string]string{"mobile": mobile, "otp": otp},
	})
	if err != nil {
		return nil, err
	}

	var vd verifyData
	if err := json.Unmarshal(data, &vd); err != nil {
		return nil, errors.NewMalformedResponseError("verify OTP", err.Error())
	}
	if vd.Token == "" {
		return nil, errors.NewMalformedResponseError("verify OTP", "missing auth token")
	}

	user := vd.UserData.Data.UserData
	if user == nil {
		user = map[string]interface{}{}
	}
	if _, ok := user["mobile"]; !ok {
		user["mobile"] = mobile
	}
	return &Verification{Token: vd.Token, User: user}, nil
}

// CreateLead opens an empty lead shell and returns its identifiers.
func (c *Client) CreateLead(ctx context.Context, authToken string) (*LeadRef, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	data, err := c.call(ctx, "lead-details", "create lead", httpclient.Request{
		Method:  http.MethodPost,
		URL:     c.uatBaseURL + "/partner/loangenius/lead-details",
		Headers: map[string]string{headerPartnerToken: token, headerAuth: authToken},
		Body:    leadRequest{LeadType: leadTypePL, Payload: createLeadPayload{GenerateExit: true}},
	})
	if err != nil {
		return nil, err
	}

	var ref LeadRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, errors.NewMalformedResponseError("create lead", err.Error())
	}
	return &ref, nil
}

// SubmitLeadDetails sends the applicant payload and returns the raw offer
// data unchanged.
func (c *Client) SubmitLeadDetails(ctx context.Context, authToken string, details LeadDetails) (json.RawMessage, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	return c.call(ctx, "lead-details", "submit lead details", httpclient.Request{
		Method:  http.MethodPost,
		URL:     c.uatBaseURL + "/partner/loangenius/lead-details",
		Headers: map[string]string{headerPartnerToken: token, headerAuth: authToken},
		Body:    leadRequest{LeadType: leadTypePL, Payload: details},
	})
}

// SearchCompanies returns employer suggestions for query.
func (c *Client) SearchCompanies(ctx context.Context, query string) ([]Company, error) {
	data, err := c.call(ctx, "companies", "search companies", httpclient.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/sp/api/companies/%s?type=%s", c.externalBaseURL, url.PathEscape(query), leadTypePL),
	})
	if err != nil {
		return nil, err
	}

	var companies []Company
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &companies); err != nil {
			return nil, errors.NewMalformedResponseError("search companies", err.Error())
		}
	}
	return companies, nil
}

// SearchPincode returns the serviceable locations for a 6-digit pincode.
func (c *Client) SearchPincode(ctx context.Context, pincode string) ([]PincodeRecord, error) {
	data, err := c.call(ctx, "pincode", "search pincode", httpclient.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/sp/api/pincode/%s?type=%s", c.externalBaseURL, url.PathEscape(pincode), leadTypePL),
	})
	if err != nil {
		return nil, err
	}

	var records []PincodeRecord
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, errors.NewMalformedResponseError("search pincode", err.Error())
		}
	}
	return records, nil
}

// call performs one request and unwraps the envelope. service is the verb
// phrase used in user-facing messages ("Failed to <service>: ...").
// The client timeout only applies when ctx carries no deadline of its own.
func (c *Client) call(ctx context.Context, endpoint, service string, req httpclient.Request) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.http.DoJSON(ctx, req)
	metrics.PartnerRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, classifyTransportError(ctx, service, err)
	}

	log := c.logger.WithFields(map[string]interface{}{
		"endpoint":   endpoint,
		"statusCode": resp.StatusCode,
		"requestId":  resp.RequestID,
	})

	if !resp.OK() {
		log.Warn("Partner request failed", map[string]interface{}{"body": truncate(string(resp.Body), 512)})
		if resp.StatusCode == http.StatusUnauthorized && req.Headers[headerPartnerToken] != "" {
			c.tokens.Invalidate()
		}
		return nil, errors.NewUpstreamStatusError(service, resp.StatusCode, string(resp.Body))
	}

	var env envelope
	if err := resp.Decode(&env); err != nil {
		return nil, errors.NewMalformedResponseError(service, err.Error())
	}
	if env.Status != statusSuccess {
		msg := env.Message
		if msg == "" {
			msg = "Failed to " + service
		}
		log.Warn("Partner rejected request", map[string]interface{}{"status": env.Status, "message": env.Message})
		return nil, errors.NewBusinessRuleError(msg, service)
	}

	log.Debug("Partner request succeeded", nil)
	return env.Data, nil
}

func classifyTransportError(ctx context.Context, service string, err error) error {
	if stderrors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewRequestTimeoutError(service, err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewRequestTimeoutError(service, err)
	}
	return errors.NewNetworkError(service, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
