// Copyright 2026 github.com/DervexDev/racky
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package client talks to a Racky server. Requests are plain HTTP: POSTs
// carry their fields as multipart form data, GETs as query parameters,
// and every response body is text meant for the terminal.
package client

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
)

// UserAgent identifies the Racky CLI to the server, which formats program
// names more richly for its own client.
const UserAgent = "Racky CLI"

// Client builds one request against one server. Fields accumulate through
// the Text and File builders and are sent by Post or Get.
type Client struct {
	baseURL  string
	password string
	http     *http.Client

	texts map[string]string
	files map[string][]byte
}

// Target is the part of a server entry the client needs.
type Target interface {
	URL() string
}

// New prepares a request builder for the given server. The password
// travels verbatim in the Authorization header on every request.
func New(target Target, password string) *Client {
	return &Client{
		baseURL:  target.URL(),
		password: password,
		http:     cleanhttp.DefaultClient(),
		texts:    map[string]string{},
		files:    map[string][]byte{},
	}
}

// Text adds a form field. The value is rendered with fmt.Sprint so bools
// and numbers read naturally on the server side.
func (c *Client) Text(key string, value any) *Client {
	c.texts[key] = fmt.Sprint(value)
	return c
}

// File adds a binary form field.
func (c *Client) File(key string, data []byte) *Client {
	c.files[key] = data
	return c
}

// Post sends the accumulated fields as a multipart form.
func (c *Client) Post(path string) (*Response, error) {
	var body io.Reader
	contentType := ""

	if len(c.texts) > 0 || len(c.files) > 0 {
		var buf bytes.Buffer
		form := multipart.NewWriter(&buf)
		for key, value := range c.texts {
			if err := form.WriteField(key, value); err != nil {
				return nil, fmt.Errorf("cannot encode field %s: %w", key, err)
			}
		}
		for key, data := range c.files {
			part, err := form.CreateFormFile(key, key)
			if err != nil {
				return nil, fmt.Errorf("cannot encode file %s: %w", key, err)
			}
			if _, err := part.Write(data); err != nil {
				return nil, fmt.Errorf("cannot encode file %s: %w", key, err)
			}
		}
		if err := form.Close(); err != nil {
			return nil, fmt.Errorf("cannot finish form: %w", err)
		}
		body = &buf
		contentType = form.FormDataContentType()
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/"+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.send(req)
}

// Get sends the accumulated text fields as query parameters.
func (c *Client) Get(path string) (*Response, error) {
	query := url.Values{}
	for key, value := range c.texts {
		query.Set(key, value)
	}

	target := c.baseURL + "/" + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return c.send(req)
}

func (c *Client) send(req *http.Request) (*Response, error) {
	req.Header.Set("User-Agent", UserAgent)
	if c.password != "" {
		req.Header.Set("Authorization", c.password)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to the server: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot read server response: %w", err)
	}
	return &Response{Status: res.StatusCode, Body: string(body)}, nil
}

// Response is a server reply ready to surface on the terminal.
type Response struct {
	Status int
	Body   string

	prefix string
}

// WithPrefix prepends a heading when the response is printed.
func (r *Response) WithPrefix(prefix string) *Response {
	r.prefix = prefix
	return r
}

// Handle prints the body of a successful response to w and turns any
// other status into an error carrying the server's message.
func (r *Response) Handle(w io.Writer) error {
	if r.Status >= 200 && r.Status < 300 {
		fmt.Fprintln(w, r.prefix+r.Body)
		return nil
	}
	return fmt.Errorf("%s (%d %s)", r.Body, r.Status, http.StatusText(r.Status))
}
