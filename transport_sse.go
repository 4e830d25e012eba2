package vagkoll

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// SSEStream consumes the backend's server-sent-events endpoint. The request
// is long-lived: the client has dial and handshake timeouts but no overall
// deadline, and the body is read frame by frame until the server goes away.
type SSEStream struct {
	URL    string
	Client *http.Client
}

var _ LiveStream = (*SSEStream)(nil)

func NewSSEStream(url string) *SSEStream {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	return &SSEStream{
		URL:    url,
		Client: &http.Client{Transport: tr},
	}
}

// Run opens the stream and feeds each data frame to handler as raw bytes,
// in receipt order. Decoding is the consumer's job; a frame the consumer
// rejects does not abort the subscription. Returns when the server
// disconnects or ctx ends.
func (s *SSEStream) Run(ctx context.Context, handler func(payload []byte)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("open stream: unexpected status %d", resp.StatusCode)
	}

	logrus.WithField("url", s.URL).Info("📡 live stream connected")

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()

		// Blank line terminates a frame.
		if line == "" {
			if data.Len() > 0 {
				handler([]byte(data.String()))
				data.Reset()
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue // comment / keepalive
		}
		if payload, ok := strings.CutPrefix(line, "data:"); ok {
			data.WriteString(strings.TrimPrefix(payload, " "))
		}
		// event:/id:/retry: fields are not used by this feed.
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read: %w", err)
	}
	return ctx.Err()
}
