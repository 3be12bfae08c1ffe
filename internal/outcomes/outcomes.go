// Package outcomes posts grades back to an LMS through the IMS Basic
// Outcomes service: a replaceResult XML envelope, OAuth1-signed with the
// consumer's key and secret, sent to the callback URL stored in the grade
// link.
package outcomes

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/wims-lti/wims-lti/internal/oauth1"
	"github.com/wims-lti/wims-lti/internal/uniuri"
)

const messageIDLen = 32

// ErrRejected is returned when the LMS answers the replaceResult request
// with a failure status.
var ErrRejected = errors.New("grade rejected by LMS")

// Report is one grade delivery: where to post it, how to sign it and the
// identifiers carried along for logging.
type Report struct {
	SourcedID      string
	URL            string
	Grade          float64
	ConsumerKey    string
	ConsumerSecret string

	// Context for logs only.
	QUser  string
	QSheet string
	QClass string
}

// Reporter sends replaceResult requests to LMS outcome endpoints.
type Reporter struct {
	http *http.Client
}

// NewReporter creates a reporter whose deliveries are bounded by timeout.
func NewReporter(timeout time.Duration) *Reporter {
	return &Reporter{
		http: &http.Client{Timeout: timeout},
	}
}

// BuildPayload renders the replaceResult envelope for one grade. The
// sourcedid is opaque LMS data and gets XML-escaped; the grade keeps its
// shortest decimal representation.
func BuildPayload(messageID, sourcedID string, grade float64) ([]byte, error) {
	escapedID, err := escape(sourcedID)
	if err != nil {
		return nil, errors.Wrap(err, "escaping sourcedid")
	}

	gradeStr := strconv.FormatFloat(grade, 'f', -1, 64)

	return []byte(fmt.Sprintf(replaceResultTemplate, messageID, escapedID, gradeStr)), nil
}

func escape(s string) (string, error) {
	var b bytes.Buffer
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return "", err
	}
	return b.String(), nil
}

// poxResponse is the subset of the imsx response envelope we care about.
type poxResponse struct {
	XMLName     xml.Name `xml:"imsx_POXEnvelopeResponse"`
	CodeMajor   string   `xml:"imsx_POXHeader>imsx_POXResponseHeaderInfo>imsx_statusInfo>imsx_codeMajor"`
	Description string   `xml:"imsx_POXHeader>imsx_POXResponseHeaderInfo>imsx_statusInfo>imsx_description"`
}

// accepted reports whether a codeMajor value means the LMS took the grade.
// Some LMS fixtures reply with the misspelling "succes", accept it too.
func accepted(codeMajor string) bool {
	switch strings.ToLower(strings.TrimSpace(codeMajor)) {
	case "success", "succes":
		return true
	}
	return false
}

// Send delivers one grade. It fails when the POST cannot be made, the LMS
// answers outside 2xx, the response is not a POX envelope or its status is
// not a success.
func (r *Reporter) Send(ctx context.Context, report Report) error {
	payload, err := BuildPayload(uniuri.NewLen(messageIDLen), report.SourcedID, report.Grade)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, report.URL, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "building replaceResult request")
	}

	header, err := oauth1.AuthorizationHeader(http.MethodPost, report.URL, report.ConsumerKey, report.ConsumerSecret, payload)
	if err != nil {
		return errors.Wrap(err, "signing replaceResult request")
	}
	req.Header.Set("Authorization", header)
	req.Header.Set("Content-Type", "application/xml")

	resp, err := r.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "posting replaceResult request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading replaceResult response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Wrapf(ErrRejected, "HTTP status %d", resp.StatusCode)
	}

	var pox poxResponse
	if err := xml.Unmarshal(body, &pox); err != nil {
		return errors.Wrap(err, "decoding replaceResult response")
	}

	if !accepted(pox.CodeMajor) {
		return errors.Wrapf(ErrRejected, "codeMajor %q: %s", pox.CodeMajor, pox.Description)
	}

	log.Debug().
		Str("quser", report.QUser).
		Str("qclass", report.QClass).
		Str("qsheet", report.QSheet).
		Float64("grade", report.Grade).
		Msg("grade accepted by LMS")

	return nil
}
