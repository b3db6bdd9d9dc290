package workload

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const httpLoadConcurrency = 8

// runHTTPLoad starts a throwaway HTTP server on a loopback port and drives
// the requested number of requests against it. The unit is self-contained:
// server and client live and die inside the call.
func runHTTPLoad(requests int) error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen for http workload: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	})
	server := &http.Server{Handler: mux}
	go server.Serve(listener)
	defer server.Close()

	url := fmt.Sprintf("http://%s/", listener.Addr().String())
	client := &http.Client{Timeout: 10 * time.Second}

	work := make(chan struct{}, requests)
	for i := 0; i < requests; i++ {
		work <- struct{}{}
	}
	close(work)

	workers := httpLoadConcurrency
	if workers > requests {
		workers = requests
	}
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			var firstErr error
			var served int64
			for range work {
				if err := fetchOnce(client, url); err != nil && firstErr == nil {
					firstErr = err
					continue
				}
				served++
			}
			Sink.Add(served)
			errCh <- firstErr
		}()
	}

	var firstErr error
	for i := 0; i < workers; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func fetchOnce(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
