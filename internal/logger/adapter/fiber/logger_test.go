package fiber_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	adapter "github.com/wims-lti/wims-lti/internal/logger/adapter/fiber"

	"github.com/wims-lti/wims-lti/internal/logger"
)

// expectedLoggerJSONFormat implements loggers default json format.
type expectedLoggerJSONFormat struct {
	IP            net.IP    `json:"IP"`
	Status        int       `json:"status"`
	XPerformance  float32   `json:"X-Performance"`
	URI           string    `json:"URI"`
	Method        string    `json:"method"`
	Host          string    `json:"host"`
	XForwardedFor string    `json:"X-Forwarded-For"`
	UserAgent     string    `json:"User-Agent"`
	Time          time.Time `json:"time"`
}

func TestNew(t *testing.T) {
	type arguments struct {
		config     adapter.Config
		targetPath string
	}

	type want struct {
		err    error
		output *expectedLoggerJSONFormat
	}

	tests := []struct {
		name string
		args arguments
		want want
	}{
		{
			name: "empty no output at all",
			args: arguments{
				targetPath: "/",
			},
			want: want{
				err:    nil,
				output: nil,
			},
		},
		{
			name: "get / log to console json",
			args: arguments{
				targetPath: "/",
				config: adapter.Config{
					Next: nil,
					Config: logger.Log{
						EnableAccessLogToConsole: true,
						Console:                  logger.Console{Enabled: true},
					},
					CacheControlError: "",
					CheckAliveURI:     "",
				},
			},
			want: want{
				err: nil,
				output: &expectedLoggerJSONFormat{
					IP:     net.ParseIP("0.0.0.0"),
					Status: 200,
					URI:    "/",
					Method: fiber.MethodGet,
					Host:   "example.com",
				},
			},
		},
		{
			name: "get unknown path logs 404",
			args: arguments{
				targetPath: "/no_such_path",
				config: adapter.Config{
					Next: nil,
					Config: logger.Log{
						EnableAccessLogToConsole: true,
						Console:                  logger.Console{Enabled: true},
					},
					CacheControlError: "",
					CheckAliveURI:     "",
				},
			},
			want: want{
				err: nil,
				output: &expectedLoggerJSONFormat{
					IP:     net.ParseIP("0.0.0.0"),
					Status: 404,
					URI:    "/no_such_path",
					Method: fiber.MethodGet,
					Host:   "example.com",
				},
			},
		},
		{
			name: "get log with params",
			args: arguments{
				targetPath: "/?test=123",
				config: adapter.Config{
					Next: nil,
					Config: logger.Log{
						EnableAccessLogToConsole: true,
						Console:                  logger.Console{Enabled: true},
					},
					CacheControlError: "",
					CheckAliveURI:     "",
				},
			},
			want: want{
				err: nil,
				output: &expectedLoggerJSONFormat{
					IP:     net.ParseIP("0.0.0.0"),
					Status: 200,
					URI:    "/?test=123",
					Method: fiber.MethodGet,
					Host:   "example.com",
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// use test helper func for testing this config
			output, err := testMiddlewareHelper(t, tt.args.targetPath, tt.args.config)

			// is error as expected
			assert.Equal(t, tt.want.err, err)

			if tt.want.output == nil && output != "" {
				t.Errorf("expected no output, but got output %s", output)
			}

			if tt.want.output != nil && output == "" {
				t.Error("expected output but got no output")
			}

			if tt.want.output != nil && output != "" {
				var decodedOutput expectedLoggerJSONFormat
				err = json.Unmarshal([]byte(output), &decodedOutput)
				if err != nil {
					t.Error(err)
					return
				}

				assert.Equal(t, tt.want.output.Host, decodedOutput.Host)
				assert.Equal(t, tt.want.output.Method, decodedOutput.Method)
				assert.Equal(t, tt.want.output.Status, decodedOutput.Status)
				assert.Equal(t, tt.want.output.IP, decodedOutput.IP)
				assert.Equal(t, tt.want.output.URI, decodedOutput.URI)
			}
		})
	}
}

func testMiddlewareHelper(t *testing.T, targetPath string, adapterConfig adapter.Config) (string, error) {
	t.Helper()

	stdout := os.Stdout
	stderr := os.Stderr

	// capture stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	os.Stderr = w

	// create new fiber app
	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		Immutable:     true,
	})

	// use logger
	app.Use(adapter.New(adapterConfig))

	// create minimal endpoint
	app.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.SendString("hello test")
	})

	_, err := app.Test(httptest.NewRequest(fiber.MethodGet, targetPath, nil), 100000)
	if err != nil {
		_ = w.Close()
		return "", err
	}

	outC := make(chan string)
	// copy the output in a separate goroutine so printing can't block indefinitely
	go func() {
		var buf bytes.Buffer
		_, err = io.Copy(&buf, r)
		if err != nil {
			return
		}

		outC <- buf.String()
	}()

	// back to normal state
	_ = w.Close()
	os.Stdout = stdout // restoring the real stdout
	os.Stderr = stderr // restoring the real stderr
	out := <-outC

	return out, err
}
