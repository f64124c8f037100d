package google

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/klokku/slotfinder/internal/config"
	"github.com/klokku/slotfinder/internal/rest"
	"github.com/klokku/slotfinder/pkg/user"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

type googleAuthRedirect struct {
	RedirectUrl string `json:"redirectUrl"`
}

type GoogleAuth struct {
	repo        AuthRepository
	oauthConfig *oauth2.Config
}

func NewGoogleAuth(repo AuthRepository, cfg config.Application) *GoogleAuth {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.Google.ClientId,
		ClientSecret: cfg.Google.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.Host + "/api/integrations/google/auth/callback",
		Scopes:       []string{calendar.CalendarReadonlyScope},
	}
	return &GoogleAuth{repo: repo, oauthConfig: oauthConfig}
}

func (g *GoogleAuth) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	userId, err := user.CurrentId(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusForbidden, "User not found", "")
		return
	}

	stateNonce := uuid.NewString()
	if err := g.repo.StoreNonce(r.Context(), userId, stateNonce); err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Failed to handle Google authentication", "")
		return
	}

	finalUrl := r.URL.Query().Get("finalUrl")
	log.Tracef("Redirecting to Google auth URL with nonce: %s", stateNonce)
	u := g.oauthConfig.AuthCodeURL(finalUrl+"|"+stateNonce, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(googleAuthRedirect{RedirectUrl: u}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (g *GoogleAuth) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.FormValue("code")
	finalUrl, nonce, ok := strings.Cut(r.FormValue("state"), "|")
	if !ok || nonce == "" {
		rest.WriteError(w, http.StatusBadRequest, "Invalid OAuth state", "")
		return
	}

	token, err := g.oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		log.Errorf("unable to exchange code for token: %v", err)
		http.Redirect(w, r, finalUrl+"?success=false", http.StatusFound)
		return
	}

	if err := g.repo.StoreToken(r.Context(), nonce, token); err != nil {
		log.Errorf("unable to store Google auth token for nonce: %v", err)
		http.Redirect(w, r, finalUrl+"?success=false", http.StatusFound)
		return
	}
	log.Debugf("Successfully stored Google auth token for nonce: %s", nonce)
	http.Redirect(w, r, finalUrl+"?success=true", http.StatusFound)
}

func (g *GoogleAuth) OAuthLogout(w http.ResponseWriter, r *http.Request) {
	userId, err := user.CurrentId(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusForbidden, "User not found", "")
		return
	}
	if err := g.repo.DeleteToken(r.Context(), userId); err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Failed to handle Google authentication", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getClient returns nil when the user has not connected Google.
func (g *GoogleAuth) getClient(ctx context.Context, userId int) (*http.Client, error) {
	token, err := g.repo.GetToken(ctx, userId)
	if err != nil {
		log.Error(err)
		return nil, err
	}
	if token == nil {
		return nil, nil
	}
	return g.oauthConfig.Client(context.Background(), token), nil
}
