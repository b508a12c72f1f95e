package common

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
)

// downloadAttempts bounds transient-failure retries. Everything past the
// download is local work and is never retried.
const downloadAttempts = 5

// RetryHttpRequest issues a GET and retries transient failures (network
// errors and 50x gateway codes) up to downloadAttempts times. Other non-200
// responses become HttpError immediately.
func RetryHttpRequest(ctx context.Context, url string) (*http.Response, error) {
	return retry.DoWithData(
		func() (*http.Response, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, retry.Unrecoverable(err)
			}
			res, err := http.DefaultClient.Do(req)
			if err == nil && res.StatusCode != http.StatusOK {
				err = HttpErrorFromRes(res)
				res.Body.Close()
			}
			return ValOrErr(res, err)
		},
		retry.Context(ctx),
		retry.Attempts(downloadAttempts),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// retry on err or some 50x codes
			if status, ok := err.(HttpError); ok {
				switch status.Code() {
				case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
					return true
				default:
					return false
				}
			} else if IsContextError(err) {
				return false
			}
			return true
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("http error (%d): %v, retrying", n, err)
		}))
}

// DownloadToFile streams url into dest, creating parent directories.
func DownloadToFile(ctx context.Context, url, dest string) (int64, error) {
	res, err := RetryHttpRequest(ctx, url)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, err
	}
	f, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, res.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}
