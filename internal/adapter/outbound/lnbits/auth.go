package lnbits

import "fmt"

// AuthMethod selects how the service credential is attached to requests.
type AuthMethod string

const (
	AuthAPIKeyHeader AuthMethod = "api_key_header"
	AuthAPIKeyQuery  AuthMethod = "api_key_query"
	AuthHTTPBearer   AuthMethod = "http_bearer"
	AuthOAuth2       AuthMethod = "oauth2"
)

// ParseAuthMethod validates a configured auth method name.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch m := AuthMethod(s); m {
	case AuthAPIKeyHeader, AuthAPIKeyQuery, AuthHTTPBearer, AuthOAuth2:
		return m, nil
	}
	return "", fmt.Errorf("unknown auth method %q", s)
}

// AuthConfig holds the service-level credentials.
type AuthConfig struct {
	APIKey      string
	BearerToken string
	OAuth2Token string
	Method      AuthMethod
}

// Headers returns the headers to add to every request.
func (a AuthConfig) Headers() map[string]string {
	switch a.Method {
	case AuthAPIKeyHeader:
		if a.APIKey != "" {
			return map[string]string{"X-API-KEY": a.APIKey}
		}
	case AuthHTTPBearer:
		if a.BearerToken != "" {
			return map[string]string{"Authorization": "Bearer " + a.BearerToken}
		}
	case AuthOAuth2:
		if a.OAuth2Token != "" {
			return map[string]string{"Authorization": "Bearer " + a.OAuth2Token}
		}
	}
	return map[string]string{}
}

// QueryParams returns the query parameters to merge into every request.
func (a AuthConfig) QueryParams() map[string]string {
	if a.Method == AuthAPIKeyQuery && a.APIKey != "" {
		return map[string]string{"api_key": a.APIKey}
	}
	return map[string]string{}
}

// IsConfigured reports whether the credential required by Method is present.
func (a AuthConfig) IsConfigured() bool {
	switch a.Method {
	case AuthAPIKeyHeader, AuthAPIKeyQuery:
		return a.APIKey != ""
	case AuthHTTPBearer:
		return a.BearerToken != ""
	case AuthOAuth2:
		return a.OAuth2Token != ""
	}
	return false
}
