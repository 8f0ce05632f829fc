package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer        = "statusbot"
	secretKeyFileName  = ".statusbot-secret-key"
	minSecretKeyLength = 32
	defaultTokenExpiry = 90 * 24 * time.Hour
)

// AuthService issues and validates gateway tokens
type AuthService struct {
	secretKey   []byte
	tokenExpiry time.Duration
}

// GatewayClaims identifies the chat host a token was issued to
type GatewayClaims struct {
	ServerName string `json:"server_name"`
	jwt.RegisteredClaims
}

// NewAuthService creates an auth service. An empty secret is loaded from
// (or generated into) the secret key file in the user's home directory.
func NewAuthService(secretKey string, tokenExpiry time.Duration) (*AuthService, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		loaded, err := loadOrCreateSecret(secretKeyPath())
		if err != nil {
			return nil, err
		}
		secretKey = loaded
	}

	if len(secretKey) < minSecretKeyLength {
		return nil, fmt.Errorf("secret key is %d bytes, need at least %d for HMAC-SHA256", len(secretKey), minSecretKeyLength)
	}

	if tokenExpiry <= 0 {
		tokenExpiry = defaultTokenExpiry
	}

	return &AuthService{
		secretKey:   []byte(secretKey),
		tokenExpiry: tokenExpiry,
	}, nil
}

// GenerateToken creates a signed token for a chat host
func (a *AuthService) GenerateToken(serverName string) (string, error) {
	now := time.Now()

	claims := GatewayClaims{
		ServerName: serverName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secretKey)
}

// ValidateToken verifies and parses a token
func (a *AuthService) ValidateToken(tokenString string) (*GatewayClaims, error) {
	claims := &GatewayClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secretKey, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// TokenExpiry returns when a token issued now would expire
func (a *AuthService) TokenExpiry() time.Time {
	return time.Now().Add(a.tokenExpiry)
}

func secretKeyPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return filepath.Join(os.TempDir(), secretKeyFileName)
	}
	return filepath.Join(homeDir, secretKeyFileName)
}

// loadOrCreateSecret reads the persisted secret, generating and saving a new one when absent
func loadOrCreateSecret(keyFile string) (string, error) {
	if data, err := os.ReadFile(keyFile); err == nil && len(strings.TrimSpace(string(data))) > 0 {
		secret := strings.TrimSpace(string(data))
		log.Printf("✓ Loaded persisted secret key from %s (length: %d bytes)", keyFile, len(secret))
		return secret, nil
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "statusbot"
	}

	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate secret key: %w", err)
	}
	secret := fmt.Sprintf("statusbot-%s-%s", hostname, hex.EncodeToString(randomBytes))

	if err := os.WriteFile(keyFile, []byte(secret), 0600); err != nil {
		log.Printf("⚠️  Warning: Could not persist secret key to %s: %v", keyFile, err)
	} else {
		log.Printf("✓ Generated and persisted secret key to %s (length: %d bytes)", keyFile, len(secret))
	}

	return secret, nil
}
