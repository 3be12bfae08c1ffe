// Package wims implements a client for the adm/raw API of WIMS servers.
//
// Every call is a form POST against the server CGI with 'module=adm/raw',
// a 'job' selector and a random request code, authenticated by the ident
// and passwd this service is registered with on the server. See
// https://wimsapi.readthedocs.io/ for the protocol details.
package wims

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wims-lti/wims-lti/internal/uniuri"
)

// Jobs of the adm/raw API used by this service.
const (
	jobCheckIdent     = "checkident"
	jobCheckClass     = "checkclass"
	jobAddClass       = "addclass"
	jobAddUser        = "adduser"
	jobGetSheetScores = "getsheetscores"
)

// Client talks to one WIMS server.
type Client struct {
	url    string
	ident  string
	passwd string
	rclass string
	http   *http.Client
}

// New creates a client for the WIMS server at rawURL, which must point to the
// server CGI, e.g. 'https://wims.example.org/wims/wims.cgi'. The timeout
// bounds each remote call.
func New(rawURL, ident, passwd, rclass string, timeout time.Duration) *Client {
	return &Client{
		url:    rawURL,
		ident:  ident,
		passwd: passwd,
		rclass: rclass,
		http:   &http.Client{Timeout: timeout},
	}
}

// response is the JSON envelope of every adm/raw reply.
type response struct {
	Status     string       `json:"status"`
	Message    string       `json:"message"`
	ClassID    string       `json:"class_id"`
	DataScores []SheetScore `json:"data_scores"`
}

// SheetScore is one participant's result on a sheet as reported by the
// getsheetscores job. GotDetails holds the score obtained on each exercise of
// the sheet, in the sheet's native scale.
type SheetScore struct {
	QUser      string    `json:"id"`
	GotDetails []float64 `json:"sheet_got_details"`
}

// Class describes a class to create on a WIMS server.
type Class struct {
	Name        string
	Institution string
	// Supervisor is the full name shown to students as the class supervisor.
	Supervisor string
	Email      string
	// Password lets the supervisor log into the class directly on WIMS.
	Password string
	Lang     string
	// Expiration is the class expiration date in yyyymmdd format.
	Expiration string
	// Limit is the maximum number of participants.
	Limit uint
}

// User describes a participant to add to a class.
type User struct {
	QUser     string
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// call performs one adm/raw request and returns the decoded reply. Status
// interpretation is left to the callers since some jobs treat an ERROR reply
// as a valid negative answer.
func (c *Client) call(ctx context.Context, job string, params url.Values) (*response, error) {
	form := url.Values{}
	for key, values := range params {
		form[key] = values
	}
	form.Set("module", "adm/raw")
	form.Set("job", job)
	form.Set("code", uniuri.NewLen(uniuri.CodeLen))
	form.Set("ident", c.ident)
	form.Set("passwd", c.passwd)
	form.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &RemoteError{Job: job, Message: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RemoteError{Job: job, Message: "request failed", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Job: job, Message: "reading response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{Job: job, Message: fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode)}
	}

	var reply response
	if err := json.Unmarshal(body, &reply); err != nil {
		// WIMS falls back to plain text when the request is malformed.
		return nil, &RemoteError{Job: job, Message: strings.TrimSpace(string(body)), Err: err}
	}

	log.Debug().
		Str("job", job).
		Str("status", reply.Status).
		Str("url", c.url).
		Msg("adm/raw call")

	return &reply, nil
}

// CheckIdent verifies that the server accepts this service's credentials.
func (c *Client) CheckIdent(ctx context.Context) error {
	reply, err := c.call(ctx, jobCheckIdent, url.Values{})
	if err != nil {
		return err
	}
	if reply.Status != "OK" {
		return &RemoteError{Job: jobCheckIdent, Message: reply.Message}
	}

	return nil
}

// CheckClass reports whether the class qclass still exists on the server. A
// reply naming a missing class is a negative answer, not an error.
func (c *Client) CheckClass(ctx context.Context, qclass string) (bool, error) {
	params := url.Values{}
	params.Set("qclass", qclass)
	params.Set("rclass", c.rclass)

	reply, err := c.call(ctx, jobCheckClass, params)
	if err != nil {
		return false, err
	}
	if reply.Status == "OK" {
		return true, nil
	}
	if strings.Contains(reply.Message, "not exist") {
		return false, nil
	}

	return false, &RemoteError{Job: jobCheckClass, Message: reply.Message}
}

// AddClass creates a class on the server and returns the class identifier
// assigned by WIMS.
func (c *Client) AddClass(ctx context.Context, class Class) (string, error) {
	data := fmt.Sprintf(
		"description=%s\ninstitution=%s\nsupervisor=%s\nemail=%s\npassword=%s\nlang=%s\nexpiration=%s\nlimit=%d\n",
		class.Name, class.Institution, class.Supervisor, class.Email,
		class.Password, class.Lang, class.Expiration, class.Limit,
	)

	params := url.Values{}
	params.Set("rclass", c.rclass)
	params.Set("data1", data)

	reply, err := c.call(ctx, jobAddClass, params)
	if err != nil {
		return "", err
	}
	if reply.Status != "OK" {
		return "", &RemoteError{Job: jobAddClass, Message: reply.Message}
	}

	return reply.ClassID, nil
}

// AddUser adds a participant to the class qclass.
func (c *Client) AddUser(ctx context.Context, qclass string, user User) error {
	data := fmt.Sprintf(
		"firstname=%s\nlastname=%s\nemail=%s\npassword=%s\n",
		user.FirstName, user.LastName, user.Email, user.Password,
	)

	params := url.Values{}
	params.Set("qclass", qclass)
	params.Set("rclass", c.rclass)
	params.Set("quser", user.QUser)
	params.Set("data1", data)

	reply, err := c.call(ctx, jobAddUser, params)
	if err != nil {
		return err
	}
	if reply.Status != "OK" {
		return &RemoteError{Job: jobAddUser, Message: reply.Message}
	}

	return nil
}

// GetSheetScores retrieves the per-exercise scores of every participant on
// one sheet of the class qclass.
func (c *Client) GetSheetScores(ctx context.Context, qclass, qsheet string) ([]SheetScore, error) {
	params := url.Values{}
	params.Set("qclass", qclass)
	params.Set("rclass", c.rclass)
	params.Set("qsheet", qsheet)

	reply, err := c.call(ctx, jobGetSheetScores, params)
	if err != nil {
		return nil, err
	}
	if reply.Status != "OK" {
		return nil, &RemoteError{Job: jobGetSheetScores, Message: reply.Message}
	}

	return reply.DataScores, nil
}
