package google

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

var ErrUnknownNonce = errors.New("unknown Google auth nonce")

type AuthRepository interface {
	// StoreNonce starts a new authorization for the user, dropping any previous token.
	StoreNonce(ctx context.Context, userId int, nonce string) error
	StoreToken(ctx context.Context, nonce string, token *oauth2.Token) error
	// GetToken returns nil without error when the user never connected Google.
	GetToken(ctx context.Context, userId int) (*oauth2.Token, error)
	DeleteToken(ctx context.Context, userId int) error
}

type AuthRepositoryImpl struct {
	db *pgxpool.Pool
}

func NewAuthRepository(db *pgxpool.Pool) *AuthRepositoryImpl {
	return &AuthRepositoryImpl{db: db}
}

func (r *AuthRepositoryImpl) StoreNonce(ctx context.Context, userId int, nonce string) error {
	query := `INSERT INTO google_calendar_auth (user_id, nonce) VALUES ($1, $2)
				ON CONFLICT (user_id) DO UPDATE SET nonce = EXCLUDED.nonce, access_token = NULL, refresh_token = NULL, expiry = NULL`
	if _, err := r.db.Exec(ctx, query, userId, nonce); err != nil {
		log.Errorf("failed to store Google auth nonce for user %d: %v", userId, err)
		return err
	}
	return nil
}

func (r *AuthRepositoryImpl) StoreToken(ctx context.Context, nonce string, token *oauth2.Token) error {
	query := `UPDATE google_calendar_auth SET access_token = $1, refresh_token = $2, expiry = $3 WHERE nonce = $4`
	result, err := r.db.Exec(ctx, query, token.AccessToken, token.RefreshToken, token.Expiry.Unix(), nonce)
	if err != nil {
		log.Errorf("unable to store Google auth token: %v", err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUnknownNonce
	}
	return nil
}

func (r *AuthRepositoryImpl) GetToken(ctx context.Context, userId int) (*oauth2.Token, error) {
	query := `SELECT access_token, refresh_token, expiry FROM google_calendar_auth
				WHERE user_id = $1 AND access_token IS NOT NULL`
	var token oauth2.Token
	var expiry int64
	err := r.db.QueryRow(ctx, query, userId).Scan(&token.AccessToken, &token.RefreshToken, &expiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("unable to retrieve Google auth token: %w", err)
	}
	token.Expiry = time.Unix(expiry, 0)
	return &token, nil
}

func (r *AuthRepositoryImpl) DeleteToken(ctx context.Context, userId int) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM google_calendar_auth WHERE user_id = $1`, userId); err != nil {
		log.Errorf("failed to delete Google auth row for user %d: %v", userId, err)
		return err
	}
	return nil
}

type AuthRepositoryStub struct {
	mu     sync.Mutex
	nonces map[string]int
	tokens map[int]*oauth2.Token
}

func NewAuthRepositoryStub() *AuthRepositoryStub {
	return &AuthRepositoryStub{
		nonces: make(map[string]int),
		tokens: make(map[int]*oauth2.Token),
	}
}

func (r *AuthRepositoryStub) StoreNonce(_ context.Context, userId int, nonce string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for n, id := range r.nonces {
		if id == userId {
			delete(r.nonces, n)
		}
	}
	r.nonces[nonce] = userId
	delete(r.tokens, userId)
	return nil
}

func (r *AuthRepositoryStub) StoreToken(_ context.Context, nonce string, token *oauth2.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	userId, ok := r.nonces[nonce]
	if !ok {
		return ErrUnknownNonce
	}
	r.tokens[userId] = token
	return nil
}

func (r *AuthRepositoryStub) GetToken(_ context.Context, userId int) (*oauth2.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens[userId], nil
}

func (r *AuthRepositoryStub) DeleteToken(_ context.Context, userId int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, userId)
	return nil
}
