package services

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/localnerve/authorizer-go"
	"github.com/parksense/parksense-api/internal/config"
	"github.com/parksense/parksense-api/internal/utils"
	"github.com/rs/zerolog/log"
)

// Session is the identity attached to a valid session cookie
type Session struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// SessionValidator checks a session cookie against a set of allowed roles
type SessionValidator interface {
	ValidateSession(cookie string, roles []string) (*Session, error)
}

// Authorizer validates sessions with the Authorizer service. The client is
// created on first use so the server can start before Authorizer is up. A
// failed start is retried on the next request.
type Authorizer struct {
	cfg         *config.Config
	redirectURL string

	mu     sync.Mutex
	client *authorizer.AuthorizerClient
}

// NewAuthorizer creates a session validator for the configured Authorizer service
func NewAuthorizer(cfg *config.Config, redirectURL string) *Authorizer {
	return &Authorizer{cfg: cfg, redirectURL: redirectURL}
}

// Initialized reports whether the Authorizer client has been created
func (a *Authorizer) Initialized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client != nil
}

func (a *Authorizer) init() (*authorizer.AuthorizerClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	// Ping the Authorizer service first
	if err := utils.PingAuthorizer(a.cfg.AuthzURL); err != nil {
		return nil, fmt.Errorf("authorizer ping failed: %w", err)
	}

	log.Info().
		Str("authorizer_url", a.cfg.AuthzURL).
		Str("client_id", a.cfg.AuthzClientID).
		Str("redirect_url", a.redirectURL).
		Msg("initializing authorizer client")

	client, err := authorizer.NewAuthorizerClient(a.cfg.AuthzClientID, a.cfg.AuthzURL, a.redirectURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorizer client: %w", err)
	}
	a.client = client

	return client, nil
}

// ValidateSession validates a session cookie for the given roles
func (a *Authorizer) ValidateSession(cookie string, roles []string) (*Session, error) {
	client, err := a.init()
	if err != nil {
		return nil, err
	}

	rolesPtrs := make([]*string, len(roles))
	for i := range roles {
		rolesPtrs[i] = &roles[i]
	}

	res, err := client.ValidateSession(&authorizer.ValidateSessionInput{
		Cookie: cookie,
		Roles:  rolesPtrs,
	})
	if err != nil {
		return nil, fmt.Errorf("session validation failed: %w", err)
	}
	if res == nil || !res.IsValid {
		return nil, fmt.Errorf("session is not valid")
	}

	return sessionFromUser(res.User)
}

// sessionFromUser reads the identity fields out of the Authorizer user object
func sessionFromUser(user interface{}) (*Session, error) {
	raw, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("failed to read session user: %w", err)
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to read session user: %w", err)
	}
	if session.Email == "" {
		return nil, fmt.Errorf("session user has no email")
	}
	return &session, nil
}
