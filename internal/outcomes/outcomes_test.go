package outcomes

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

// payloadEnvelope mirrors the request XML for round-trip checks.
type payloadEnvelope struct {
	XMLName    xml.Name `xml:"imsx_POXEnvelopeRequest"`
	MessageID  string   `xml:"imsx_POXHeader>imsx_POXRequestHeaderInfo>imsx_messageIdentifier"`
	SourcedID  string   `xml:"imsx_POXBody>replaceResultRequest>resultRecord>sourcedGUID>sourcedId"`
	TextString string   `xml:"imsx_POXBody>replaceResultRequest>resultRecord>result>resultScore>textString"`
}

func TestBuildPayloadRoundTrip(t *testing.T) {
	testCases := []struct {
		name      string
		sourcedID string
		grade     float64
		wantGrade string
	}{
		{name: "integer grade", sourcedID: "sid-1", grade: 9, wantGrade: "9"},
		{name: "decimal grade", sourcedID: "sid-2", grade: 8.5, wantGrade: "8.5"},
		{name: "zero grade", sourcedID: "sid-3", grade: 0, wantGrade: "0"},
		{
			name:      "sourcedid with xml reserved characters",
			sourcedID: `course<42>&"user"`,
			grade:     10,
			wantGrade: "10",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := BuildPayload("msg-1", tc.sourcedID, tc.grade)
			require.NoError(t, err)

			var envelope payloadEnvelope
			require.NoError(t, xml.Unmarshal(payload, &envelope))

			assert.Equal(t, "msg-1", envelope.MessageID)
			assert.Equal(t, tc.sourcedID, envelope.SourcedID)
			assert.Equal(t, tc.wantGrade, envelope.TextString)
		})
	}
}

const successResponse = `<?xml version="1.0" encoding="UTF-8"?>
<imsx_POXEnvelopeResponse xmlns="http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0">
  <imsx_POXHeader>
    <imsx_POXResponseHeaderInfo>
      <imsx_version>V1.0</imsx_version>
      <imsx_statusInfo>
        <imsx_codeMajor>%s</imsx_codeMajor>
        <imsx_severity>status</imsx_severity>
        <imsx_description>%s</imsx_description>
      </imsx_statusInfo>
    </imsx_POXResponseHeaderInfo>
  </imsx_POXHeader>
  <imsx_POXBody><replaceResultResponse/></imsx_POXBody>
</imsx_POXEnvelopeResponse>`

func pox(codeMajor, description string) string {
	return fmt.Sprintf(successResponse, codeMajor, description)
}

func TestSend(t *testing.T) {
	testCases := []struct {
		name       string
		httpStatus int
		body       string
		wantErr    error
	}{
		{
			name:       "accepted",
			httpStatus: http.StatusOK,
			body:       pox("success", "Score updated"),
		},
		{
			name:       "accepted with historical misspelling",
			httpStatus: http.StatusOK,
			body:       pox("succes", "Score updated"),
		},
		{
			name:       "rejected by gradebook",
			httpStatus: http.StatusOK,
			body:       pox("failure", "User not enrolled"),
			wantErr:    ErrRejected,
		},
		{
			name:       "http error status",
			httpStatus: http.StatusInternalServerError,
			body:       "",
			wantErr:    ErrRejected,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var gotAuth, gotContentType string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				gotContentType = r.Header.Get("Content-Type")
				w.WriteHeader(tc.httpStatus)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			reporter := NewReporter(testTimeout)
			err := reporter.Send(context.Background(), Report{
				SourcedID:      "sid-1",
				URL:            srv.URL,
				Grade:          9,
				ConsumerKey:    "moodle",
				ConsumerSecret: "secret",
				QUser:          "jdoe",
				QSheet:         "2",
				QClass:         "9001",
			})

			if tc.wantErr != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}

			assert.Contains(t, gotAuth, "OAuth ")
			assert.Contains(t, gotAuth, `oauth_consumer_key="moodle"`)
			assert.Equal(t, "application/xml", gotContentType)
		})
	}
}

func TestSendMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not xml at all"))
	}))
	defer srv.Close()

	reporter := NewReporter(testTimeout)
	err := reporter.Send(context.Background(), Report{
		SourcedID:      "sid-1",
		URL:            srv.URL,
		Grade:          9,
		ConsumerKey:    "moodle",
		ConsumerSecret: "secret",
	})

	require.Error(t, err)
	require.NotErrorIs(t, err, ErrRejected)
}

func TestSendUnreachable(t *testing.T) {
	reporter := NewReporter(50 * time.Millisecond)
	err := reporter.Send(context.Background(), Report{
		SourcedID:      "sid-1",
		URL:            "http://127.0.0.1:1/outcomes",
		Grade:          9,
		ConsumerKey:    "moodle",
		ConsumerSecret: "secret",
	})
	require.Error(t, err)
}
