package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func timestampMillis() int64 {
	return time.Now().UnixMilli()
}

// sign computes the hex-encoded HMAC-SHA256 of the query string under the
// secret key, exactly as the exchange verifies it.
func sign(queryString, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(queryString))
	return hex.EncodeToString(mac.Sum(nil))
}

// sendSigned appends the current timestamp to the query, signs the full query
// string and dispatches the request. GET carries query and signature in the
// URL; writes carry them as a form-encoded body. The API key always travels in
// the X-MBX-APIKEY header, never in the query.
func (c *Client) sendSigned(ctx context.Context, method, endpoint, query string) ([]byte, error) {
	if query != "" {
		query += "&"
	}
	query += "timestamp=" + strconv.FormatInt(timestampMillis(), 10)

	signed := query + "&signature=" + sign(query, c.apiSecret)
	url := c.baseURL + "/" + endpoint

	var (
		req *http.Request
		err error
	)
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, url+"?"+signed, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, strings.NewReader(signed))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	return c.do(req)
}

// sendWithKey dispatches an API-key-only request (listen keys, exchange
// metadata, ticker price). No signature is attached.
func (c *Client) sendWithKey(ctx context.Context, method, endpoint, query string) ([]byte, error) {
	url := c.baseURL + "/" + endpoint
	if query != "" {
		url += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	return body, nil
}

// decodeResponse surfaces exchange-level {code, msg} errors before attempting
// the endpoint's typed shape. A payload that is neither is schema drift and
// comes back as a DecodeError, distinct from transport failures.
func decodeResponse(body []byte, out interface{}) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code < 0 {
		return &apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{Err: err}
	}

	return nil
}
