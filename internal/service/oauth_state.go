package service

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
)

var errMalformedState = errors.New("malformed state")

// EncodeState packs the state parameter as base64url JSON.
func EncodeState(st domain.OAuthState) (string, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeState unpacks a state parameter. Padded input is accepted.
func DecodeState(raw string) (*domain.OAuthState, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return nil, errMalformedState
	}
	var st domain.OAuthState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, errMalformedState
	}
	if st.TenantID == "" || st.CredentialID == "" || st.Nonce == "" {
		return nil, errMalformedState
	}
	return &st, nil
}

// ParseCallbackURL extracts the callback parameters from a full URL. The
// query string wins; the hash fragment is the fallback for each parameter.
func ParseCallbackURL(raw string) (domain.CallbackParams, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return domain.CallbackParams{}, err
	}
	query := u.Query()
	fragment, _ := url.ParseQuery(u.Fragment)
	return CallbackParamsFrom(query, fragment), nil
}

// CallbackParamsFrom reads the parameters from the query, falling back to
// the fragment values.
func CallbackParamsFrom(query, fragment url.Values) domain.CallbackParams {
	pick := func(key string) string {
		if v := query.Get(key); v != "" {
			return v
		}
		return fragment.Get(key)
	}
	return domain.CallbackParams{
		Code:             pick("code"),
		State:            pick("state"),
		Error:            pick("error"),
		ErrorDescription: pick("error_description"),
	}
}

// ResultURL is the SPA page that reports the outcome of the flow.
func ResultURL(frontendURL string, success bool, code string) string {
	q := url.Values{}
	if success {
		q.Set("success", "true")
	} else {
		q.Set("error", code)
	}
	return strings.TrimRight(frontendURL, "/") + "/oauth/callback/result?" + q.Encode()
}
