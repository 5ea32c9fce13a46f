package testhelpers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Expectation is one canned upstream response, consumed by the first matching request.
type Expectation struct {
	Method string
	URL    *url.URL

	bodyContains []string
	reqHeaders   http.Header

	StatusCode int
	RespBody   []byte
	Headers    http.Header
	Err        error

	isMatched      bool
	MismatchReason string
}

type MockTransport struct {
	Expectations []*Expectation
	Requests     []*http.Request
	mutex        sync.Mutex
}

func NewMockTransport() *MockTransport {
	return &MockTransport{
		Expectations: make([]*Expectation, 0),
	}
}

var (
	DefaultTransport = NewMockTransport()

	originalClientTransport  http.RoundTripper
	originalDefaultTransport http.RoundTripper
	active                   bool
)

func New(baseURL string) *Expectation {
	u, err := url.Parse(baseURL)
	if err != nil {
		panic(fmt.Sprintf("httpmock: invalid base URL provided: %v", err))
	}

	if u.Scheme == "" || u.Host == "" {
		panic(fmt.Sprintf("httpmock: base URL must include scheme and host (e.g., https://%s)", baseURL))
	}

	exp := &Expectation{
		URL:        u,
		Headers:    make(http.Header),
		reqHeaders: make(http.Header),
	}
	DefaultTransport.Add(exp)
	return exp
}

func (e *Expectation) Get(path string) *Expectation {
	e.Method = http.MethodGet
	e.setPath(path)
	return e
}

func (e *Expectation) Post(path string) *Expectation {
	e.Method = http.MethodPost
	e.setPath(path)
	return e
}

func (e *Expectation) setPath(path string) {
	u, err := url.Parse(path)
	if err != nil {
		panic(fmt.Sprintf("httpmock: invalid path provided: %v", err))
	}

	e.URL.Path = u.Path
	e.URL.RawQuery = u.RawQuery
}

// BodyContains requires the request body to contain s.
func (e *Expectation) BodyContains(s string) *Expectation {
	e.bodyContains = append(e.bodyContains, s)
	return e
}

// MatchHeader requires the request to carry key: value.
func (e *Expectation) MatchHeader(key, value string) *Expectation {
	e.reqHeaders.Set(key, value)
	return e
}

func (e *Expectation) Reply(statusCode int) *Expectation {
	e.StatusCode = statusCode
	return e
}

// ReplyError makes the transport fail the request with err.
func (e *Expectation) ReplyError(err error) *Expectation {
	e.Err = err
	return e
}

func (e *Expectation) BodyString(body string) *Expectation {
	e.RespBody = []byte(body)
	return e
}

func (e *Expectation) Body(body []byte) *Expectation {
	e.RespBody = body
	return e
}

func (e *Expectation) JSON(v interface{}) *Expectation {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("httpmock: failed to marshal JSON: %v", err))
	}
	e.RespBody = data
	e.Headers.Set("Content-Type", "application/json")
	return e
}

func (e *Expectation) Header(key, value string) *Expectation {
	e.Headers.Set(key, value)
	return e
}

func (t *MockTransport) Add(exp *Expectation) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.Expectations = append(t.Expectations, exp)
}

func (t *MockTransport) Reset() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.Expectations = make([]*Expectation, 0)
	t.Requests = nil
}

func IsDone() bool {
	return len(Pending()) == 0
}

// Pending lists the expectations no request has consumed yet.
func Pending() []string {
	DefaultTransport.mutex.Lock()
	defer DefaultTransport.mutex.Unlock()

	var pending []string
	for _, exp := range DefaultTransport.Expectations {
		if !exp.isMatched {
			pending = append(pending, fmt.Sprintf("%s %s", exp.Method, exp.URL))
		}
	}
	return pending
}

// RequestCount returns how many requests reached the mock for the given host.
func RequestCount(host string) int {
	DefaultTransport.mutex.Lock()
	defer DefaultTransport.mutex.Unlock()

	n := 0
	for _, req := range DefaultTransport.Requests {
		if req.URL.Host == host {
			n++
		}
	}
	return n
}

// Activate routes http.DefaultClient and every client without its own
// transport through DefaultTransport.
func Activate() {
	if active {
		return
	}

	originalClientTransport = http.DefaultClient.Transport
	originalDefaultTransport = http.DefaultTransport

	http.DefaultClient.Transport = DefaultTransport
	http.DefaultTransport = DefaultTransport
	active = true
}

// Deactivate restores the original transports and resets all mocks.
func Deactivate() {
	if active {
		http.DefaultClient.Transport = originalClientTransport
		http.DefaultTransport = originalDefaultTransport
		active = false
	}
	DefaultTransport.Reset()
}

func (t *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("httpmock: read request body: %w", err)
		}
		_ = req.Body.Close()
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.Requests = append(t.Requests, req)

	for _, exp := range t.Expectations {
		if !exp.isMatched && t.matches(exp, req, body) {
			exp.isMatched = true
			if exp.Err != nil {
				return nil, exp.Err
			}
			return t.buildResponse(exp, req), nil
		}
	}

	var reasons []string
	for _, exp := range t.Expectations {
		if exp.MismatchReason != "" {
			reasons = append(reasons, exp.MismatchReason)
		}
	}

	extra := ""
	if len(reasons) > 0 {
		extra = " (" + strings.Join(reasons, "; ") + ")"
	}

	return nil, fmt.Errorf("httpmock: no match found for request %s %s%s", req.Method, req.URL, extra)
}

func (t *MockTransport) matches(exp *Expectation, req *http.Request, body []byte) bool {
	exp.MismatchReason = ""

	if exp.Method != "" && exp.Method != req.Method {
		exp.MismatchReason = fmt.Sprintf("method mismatch: expected %s got %s", exp.Method, req.Method)
		return false
	}

	if exp.URL.Scheme != req.URL.Scheme {
		exp.MismatchReason = fmt.Sprintf("scheme mismatch: expected %s got %s", exp.URL.Scheme, req.URL.Scheme)
		return false
	}

	if exp.URL.Host != req.URL.Host {
		exp.MismatchReason = fmt.Sprintf("host mismatch: expected %s got %s", exp.URL.Host, req.URL.Host)
		return false
	}

	if exp.URL.Path != "" && strings.TrimSuffix(exp.URL.Path, "/") != strings.TrimSuffix(req.URL.Path, "/") {
		exp.MismatchReason = fmt.Sprintf("path mismatch: expected %s got %s", exp.URL.Path, req.URL.Path)
		return false
	}

	actualQuery := req.URL.Query()
	for key, values := range exp.URL.Query() {
		actualValues, ok := actualQuery[key]
		if !ok {
			exp.MismatchReason = fmt.Sprintf("missing query key %s", key)
			return false
		}

		if len(actualValues) != len(values) {
			exp.MismatchReason = fmt.Sprintf("query value count mismatch for %s: expected %v got %v", key, values, actualValues)
			return false
		}

		for i, value := range values {
			if actualValues[i] != value {
				exp.MismatchReason = fmt.Sprintf("query mismatch for %s: expected %s got %s", key, value, actualValues[i])
				return false
			}
		}
	}

	for key := range exp.reqHeaders {
		if req.Header.Get(key) != exp.reqHeaders.Get(key) {
			exp.MismatchReason = fmt.Sprintf("header mismatch for %s: expected %s got %s", key, exp.reqHeaders.Get(key), req.Header.Get(key))
			return false
		}
	}

	for _, s := range exp.bodyContains {
		if !bytes.Contains(body, []byte(s)) {
			exp.MismatchReason = fmt.Sprintf("body does not contain %q", s)
			return false
		}
	}

	return true
}

func (t *MockTransport) buildResponse(exp *Expectation, req *http.Request) *http.Response {
	statusCode := exp.StatusCode
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	return &http.Response{
		StatusCode:    statusCode,
		Status:        fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode)),
		Body:          io.NopCloser(bytes.NewReader(exp.RespBody)),
		Header:        exp.Headers.Clone(),
		Request:       req,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		ContentLength: int64(len(exp.RespBody)),
	}
}
