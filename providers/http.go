package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// Timeout unique pour tous les appels gateway. Au-dela, l'adapteur rend
// FAILED/network_error et le balayage d'expiration s'occupera du reste.
const requestTimeout = 30 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// doJSON envoie une requete JSON et retourne code HTTP + corps brut.
// L'erreur retournee est une erreur transport uniquement; un code 4xx/5xx
// n'est pas une erreur ici, chaque adapteur interprete son propre corps.
func doJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, payload interface{}) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func networkInitiateFailure(err error) InitiateResult {
	return InitiateResult{
		Status:       StatusFailed,
		ErrorCode:    ErrCodeNetwork,
		ErrorMessage: err.Error(),
	}
}

func networkStatusFailure(ref string, err error) StatusResult {
	return StatusResult{
		ProviderReference: ref,
		Status:            StatusFailed,
		ErrorCode:         ErrCodeNetwork,
		ErrorMessage:      err.Error(),
	}
}
