package registry

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flashfusion/relay/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// assertionTTL bounds the lifetime of minted service-account assertions.
const assertionTTL = 5 * time.Minute

// serviceAccountCreds is the expected shape of the service-account
// credentials blob.
type serviceAccountCreds struct {
	ClientEmail string `json:"client_email"`
	Secret      string `json:"secret"`
}

// AuthHeaders builds the HTTP auth headers for a platform's auth config.
// It performs no I/O. All schemes except service_account are pure: fixed
// inputs produce fixed header maps. The service_account scheme mints a
// short-lived HS256 assertion from the credentials blob.
func AuthHeaders(auth domain.AuthConfig) (map[string]string, error) {
	switch auth.Scheme {
	case domain.AuthBearer:
		return map[string]string{"Authorization": "Bearer " + auth.Token}, nil

	case domain.AuthAPIKey:
		return map[string]string{"X-API-Key": auth.Key}, nil

	case domain.AuthBasic:
		creds := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Password))
		return map[string]string{"Authorization": "Basic " + creds}, nil

	case domain.AuthToken:
		return map[string]string{"Authorization": "token " + auth.Token}, nil

	case domain.AuthServiceAccount:
		token, err := signAssertion(auth.Credentials)
		if err != nil {
			return nil, fmt.Errorf("sign service account assertion: %w", err)
		}
		return map[string]string{"Authorization": "Bearer " + token}, nil

	case domain.AuthNone, "":
		return map[string]string{}, nil

	default:
		return nil, fmt.Errorf("unknown auth scheme %q", auth.Scheme)
	}
}

// signAssertion mints a short-lived JWT from a service-account blob.
func signAssertion(blob string) (string, error) {
	var creds serviceAccountCreds
	if err := json.Unmarshal([]byte(blob), &creds); err != nil {
		return "", fmt.Errorf("parse credentials blob: %w", err)
	}
	if creds.Secret == "" {
		return "", fmt.Errorf("credentials blob missing secret")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    creds.ClientEmail,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(creds.Secret))
}
