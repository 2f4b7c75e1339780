package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/drip-engine/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	defaultGmailAPIURL  = "https://gmail.googleapis.com"
	defaultGmailTimeout = 15 * time.Second
	gmailSendScope      = "https://www.googleapis.com/auth/gmail.send"
)

// CredentialStore loads and persists the mailbox OAuth tokens.
type CredentialStore interface {
	Get(ctx context.Context, id string) (*domain.MailboxCredential, error)
	Save(ctx context.Context, credential *domain.MailboxCredential) error
}

type GmailConfig struct {
	ClientID     string
	ClientSecret string
	MailboxID    string
	APIURL       string
	// TokenURL overrides the Google token endpoint.
	TokenURL string
	Timeout  time.Duration
}

// GmailGateway sends through the Gmail REST API. Credentials are loaded from
// the store on every call and never cached on the gateway.
type GmailGateway struct {
	client      *resty.Client
	oauth       oauth2.Config
	credentials CredentialStore
	mailboxID   string
	apiURL      string
	timeout     time.Duration
	logger      *zap.Logger
}

type gmailSendRequest struct {
	Raw string `json:"raw"`
}

type gmailSendResponse struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

func NewGmailGateway(cfg GmailConfig, credentials CredentialStore, logger *zap.Logger) (*GmailGateway, error) {
	return NewGmailGatewayWithClient(cfg, credentials, resty.New(), logger)
}

func NewGmailGatewayWithClient(
	cfg GmailConfig,
	credentials CredentialStore,
	client *resty.Client,
	logger *zap.Logger,
) (*GmailGateway, error) {
	if credentials == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if strings.TrimSpace(cfg.MailboxID) == "" {
		return nil, fmt.Errorf("mailbox id is required")
	}

	apiURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if apiURL == "" {
		apiURL = defaultGmailAPIURL
	}
	if _, err := url.ParseRequestURI(apiURL); err != nil {
		return nil, fmt.Errorf("invalid gmail api url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGmailTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	return &GmailGateway{
		client: client,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{gmailSendScope},
		},
		credentials: credentials,
		mailboxID:   strings.TrimSpace(cfg.MailboxID),
		apiURL:      apiURL,
		timeout:     timeout,
		logger:      logger,
	}, nil
}

func (g *GmailGateway) Send(ctx context.Context, msg OutboundMessage) (*SendResult, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("gateway is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	credential, token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := encodeMIME(credential.Address, msg)
	if err != nil {
		return nil, &SendError{Message: "compose failed", Cause: err}
	}

	var result gmailSendResponse
	response, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(token.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetBody(gmailSendRequest{Raw: base64.URLEncoding.EncodeToString(raw)}).
		SetResult(&result).
		Post(g.apiURL + "/gmail/v1/users/me/messages/send")
	if err != nil {
		return nil, requestError(ctx, err)
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &SendResult{MessageID: result.ID}, nil
	}

	return nil, statusError(statusCode, strings.TrimSpace(response.String()))
}

// CredentialsValid reports whether the stored credentials can currently be
// used to act on the mailbox.
func (g *GmailGateway) CredentialsValid(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, token, err := g.accessToken(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrMailboxNotConnected) || errors.Is(err, ErrCredentialsRejected) {
			return false, nil
		}
		return false, err
	}

	response, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(token.AccessToken).
		Get(g.apiURL + "/gmail/v1/users/me/profile")
	if err != nil {
		return false, requestError(ctx, err)
	}

	switch statusCode := response.StatusCode(); {
	case statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices:
		return true, nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return false, nil
	default:
		return false, statusError(statusCode, strings.TrimSpace(response.String()))
	}
}

// accessToken loads the credential and returns a usable token, refreshing
// and persisting it when it has expired.
func (g *GmailGateway) accessToken(ctx context.Context) (*domain.MailboxCredential, *oauth2.Token, error) {
	credential, err := g.credentials.Get(ctx, g.mailboxID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, &SendError{Message: "failed to load credentials", Transient: true, Cause: err}
	}
	if err != nil || !credential.Connected() {
		return nil, nil, &SendError{Message: "mailbox is not connected", Cause: domain.ErrMailboxNotConnected}
	}

	stored := &oauth2.Token{AccessToken: credential.AccessToken, TokenType: "Bearer"}
	if credential.RefreshToken != nil {
		stored.RefreshToken = *credential.RefreshToken
	}
	if credential.TokenExpiry != nil {
		stored.Expiry = *credential.TokenExpiry
	}

	httpCtx := context.WithValue(ctx, oauth2.HTTPClient, g.client.GetClient())
	token, err := g.oauth.TokenSource(httpCtx, stored).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			sendErr := &SendError{
				Message: "token refresh rejected",
				Cause:   fmt.Errorf("%w: %v", ErrCredentialsRejected, err),
			}
			if retrieveErr.Response != nil {
				sendErr.StatusCode = retrieveErr.Response.StatusCode
				sendErr.Transient = isTransientHTTPStatus(retrieveErr.Response.StatusCode)
			}
			return nil, nil, sendErr
		}
		return nil, nil, &SendError{Message: "token refresh failed", Transient: !errors.Is(err, context.Canceled), Cause: err}
	}

	if token.AccessToken != credential.AccessToken {
		g.persistRefreshed(ctx, credential, token)
	}

	return credential, token, nil
}

func (g *GmailGateway) persistRefreshed(ctx context.Context, credential *domain.MailboxCredential, token *oauth2.Token) {
	updated := *credential
	updated.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		refresh := token.RefreshToken
		updated.RefreshToken = &refresh
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		updated.TokenExpiry = &expiry
	}

	if err := g.credentials.Save(ctx, &updated); err != nil {
		g.logger.Warn("failed to persist refreshed mailbox token",
			zap.String("mailboxId", g.mailboxID),
			zap.Error(err),
		)
	}
}

func requestError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	return &SendError{
		Message:   "gateway request failed",
		Transient: !errors.Is(err, context.Canceled),
		Cause:     err,
	}
}

func statusError(statusCode int, body string) error {
	sendErr := &SendError{
		StatusCode: statusCode,
		Message:    statusMessage(statusCode, body),
		Transient:  isTransientHTTPStatus(statusCode),
	}
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		sendErr.Cause = ErrCredentialsRejected
	}
	return sendErr
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func statusMessage(statusCode int, body string) string {
	base := fmt.Sprintf("gateway returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
