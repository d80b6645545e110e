package dist

import (
	"bytes"
	"log"
	"net/http"
	"time"

	"github.com/pquerna/otp/totp"
)

// offlineBody is the degraded-mode reply when the order subsystem cannot
// be reached. Always served with HTTP 200 so the dashboard stays up.
var offlineBody = []byte(`{"error":"subsystem offline"}`)

// OrderProxy forwards order and settings commands to the order
// subsystem with a hard deadline. The distribution server is a relay
// here, not a participant: it never retries and never surfaces the
// subsystem's outage as its own failure.
type OrderProxy struct {
	baseURL    string
	totpSecret string
	client     *http.Client

	// OnFallback counts degraded-mode replies (optional, for metrics).
	OnFallback func()
}

// NewOrderProxy creates an OrderProxy for the given order-subsystem base
// URL. totpSecret may be empty, disabling the auth header.
func NewOrderProxy(baseURL, totpSecret string) *OrderProxy {
	return &OrderProxy{
		baseURL:    baseURL,
		totpSecret: totpSecret,
		client: &http.Client{
			Timeout: 3 * time.Second,
		},
	}
}

// Forward POSTs a JSON body to the order subsystem and returns its reply.
// On any transport failure or timeout it returns (200, offline body).
func (p *OrderProxy) Forward(path string, body []byte) (int, []byte) {
	req, err := http.NewRequest(http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		log.Printf("[proxy] build request %s: %v", path, err)
		return p.fallback()
	}
	req.Header.Set("Content-Type", "application/json")

	if p.totpSecret != "" {
		code, err := totp.GenerateCode(p.totpSecret, time.Now())
		if err != nil {
			log.Printf("[proxy] totp generate: %v", err)
			return p.fallback()
		}
		req.Header.Set("X-Order-Token", code)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		log.Printf("[proxy] order subsystem unreachable: %v", err)
		return p.fallback()
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		log.Printf("[proxy] read reply: %v", err)
		return p.fallback()
	}
	return resp.StatusCode, buf.Bytes()
}

func (p *OrderProxy) fallback() (int, []byte) {
	if p.OnFallback != nil {
		p.OnFallback()
	}
	return http.StatusOK, offlineBody
}
