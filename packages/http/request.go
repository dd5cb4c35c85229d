package http

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JSONContentType is sent with every request that carries a body.
const JSONContentType = "application/json; charset=UTF-8"

type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  method,
		URL:     requestURL,
		Headers: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// SetJSONBody serializes v as the request body and sets the JSON content
// type unless the caller already chose one.
func (r *Request) SetJSONBody(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}
	r.Body = data
	if r.Header("Content-Type") == "" {
		r.SetHeader("Content-Type", JSONContentType)
	}
	return nil
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

func (r *Request) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// JoinURL appends path to baseURL with exactly one slash between them.
// An absolute http(s) path is returned unchanged.
func JoinURL(baseURL, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if baseURL == "" {
		return path
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
