package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// RefreshPath is where a running panel accepts refresh messages.
const RefreshPath = "/api/refresh"

// HTTPNotifier posts messages to a panel running in another process.
// A panel that is not running is reported as ErrNoListener.
type HTTPNotifier struct {
	// URL is the full endpoint, e.g. http://127.0.0.1:7733/api/refresh
	URL    string
	Client *http.Client
}

// NewHTTPNotifier targets the panel listening on addr (host:port).
func NewHTTPNotifier(addr string) *HTTPNotifier {
	return &HTTPNotifier{
		URL:    "http://" + addr + RefreshPath,
		Client: &http.Client{Timeout: 2 * time.Second},
	}
}

// Notify implements Notifier.
func (h *HTTPNotifier) Notify(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if isConnRefused(err) {
			return ErrNoListener
		}
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNoListener
	case resp.StatusCode >= 300:
		return fmt.Errorf("bus: refresh rejected: %s", resp.Status)
	}
	return nil
}

func isConnRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// Handler serves RefreshPath: it decodes a Message and hands it to deliver.
func Handler(deliver func(Message)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var msg Message
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&msg); err != nil {
			http.Error(w, "invalid message", http.StatusBadRequest)
			return
		}
		deliver(msg)
		w.WriteHeader(http.StatusNoContent)
	})
}
