/*
Package client provides easy and fast in-process access to the REST api

Instead of marshalling HTTP over a socket, the client talks directly to the
mux router. It is perfectly suited for unit tests.
*/
package client

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

// Client provides easy access to the REST API.
type Client struct {
	router         *mux.Router
	token          string
	defaultHeaders map[string]string
}

// NewWithRouter creates a client to make pseudo-REST requests to the
// backend, through the mux router.
func NewWithRouter(router *mux.Router) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// WithToken returns a new client that sends the token as bearer
// authorization.
func (c Client) WithToken(token string) Client {
	c.token = token
	return c
}

// WithHeader returns a new client with a default header added.
func (c Client) WithHeader(key string, value string) Client {
	headers := map[string]string{key: value}
	for k, v := range c.defaultHeaders {
		headers[k] = v
	}
	c.defaultHeaders = headers
	return c
}

func (c Client) do(r *http.Request, result interface{}) (int, error) {
	for key, value := range c.defaultHeaders {
		r.Header.Add(key, value)
	}
	if c.token != "" {
		r.Header.Add("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, r)
	res := rec.Result()
	resBody := rec.Body.Bytes()

	status := res.StatusCode
	if raw, ok := result.(*[]byte); ok {
		// raw bodies are handed out for any status, error bodies included
		*raw = resBody
		return status, nil
	}
	if status >= http.StatusMultipleChoices || result == nil || len(resBody) == 0 {
		return status, nil
	}
	return status, json.Unmarshal(resBody, result)
}

// RawGet gets the resource from path. The response body is unmarshalled
// into result when the request succeeds; result can be nil or a raw
// *[]byte.
func (c Client) RawGet(path string, result interface{}) (int, error) {
	r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, path, nil)
	return c.do(r, result)
}

// RawGetWithHeader gets the resource from path and returns the response
// header alongside the status.
func (c Client) RawGetWithHeader(path string, result interface{}) (int, http.Header, error) {
	r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, path, nil)
	for key, value := range c.defaultHeaders {
		r.Header.Add(key, value)
	}
	if c.token != "" {
		r.Header.Add("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, r)
	res := rec.Result()
	resBody := rec.Body.Bytes()
	status := res.StatusCode
	if status >= http.StatusMultipleChoices || result == nil || len(resBody) == 0 {
		return status, res.Header, nil
	}
	return status, res.Header, json.Unmarshal(resBody, result)
}

// RawPost posts body to path as JSON. The response body is unmarshalled
// into result when the request succeeds.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return http.StatusBadRequest, err
	}
	r, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, path, bytes.NewReader(data))
	r.Header.Set("Content-Type", "application/json")
	return c.do(r, result)
}

// RawPostMultipart posts a multipart form with string fields and one file
// part. The response body is unmarshalled into result when the request
// succeeds.
func (c Client) RawPostMultipart(path string, fields map[string]string,
	fileField, fileName string, blob []byte, result interface{}) (int, error) {

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return http.StatusBadRequest, err
		}
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, fileName)
		if err != nil {
			return http.StatusBadRequest, err
		}
		if _, err := io.Copy(part, bytes.NewReader(blob)); err != nil {
			return http.StatusBadRequest, err
		}
	}
	if err := writer.Close(); err != nil {
		return http.StatusBadRequest, err
	}
	r, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, path, body)
	r.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(r, result)
}
