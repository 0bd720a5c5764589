package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendAuthCode sends a 6-digit sign-in code.
func (c *Client) SendAuthCode(toEmail, code string) error {
	textBody := fmt.Sprintf("Your Shepherd sign-in code is: %s\n\nThis code expires in 15 minutes.", code)
	htmlBody := fmt.Sprintf(
		`<p>Your Shepherd sign-in code is:</p><p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p><p>This code expires in 15 minutes.</p>`,
		code,
	)
	return c.send(toEmail, "Your Shepherd sign-in code", htmlBody, textBody)
}

// SendAssignment notifies a team member they were assigned a prayer
// request. The body deliberately omits the request text and the
// submitter; private content is only visible inside the app.
func (c *Client) SendAssignment(toEmail, assignerName string) error {
	link := fmt.Sprintf("%s/prayer", c.baseURL)
	textBody := fmt.Sprintf("%s assigned you a prayer request.\n\nOpen Shepherd to view it: %s", assignerName, link)
	htmlBody := fmt.Sprintf(
		`<p>%s assigned you a prayer request.</p><p><a href="%s">Open Shepherd to view it</a></p>`,
		assignerName, link,
	)
	return c.send(toEmail, "You have a new prayer assignment", htmlBody, textBody)
}

func (c *Client) send(toEmail, subject, htmlBody, textBody string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.postmarkapp.com/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
