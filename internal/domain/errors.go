package domain

import (
	"context"
	"errors"
	"net"
	"net/url"
)

// Error taxonomy for the download pipeline. Only ErrNotConnected is
// retryable; everything else surfaces immediately.
var (
	// ErrNotConnected marks connectivity-class failures (DNS, refused,
	// unreachable). Retried with a fixed delay.
	ErrNotConnected = errors.New("no internet connection")

	// ErrTimeout marks the absolute per-item download deadline expiring
	ErrTimeout = errors.New("download timed out")

	// ErrDownloadFailed marks a non-2xx or otherwise failed image download
	ErrDownloadFailed = errors.New("download failed")

	// ErrImageDecodeFailed marks downloaded bytes that do not decode as an image
	ErrImageDecodeFailed = errors.New("image decode failed")

	// ErrImageSaveFailed marks a failed image write
	ErrImageSaveFailed = errors.New("image save failed")

	// ErrMetadataSaveFailed marks a failed metadata write
	ErrMetadataSaveFailed = errors.New("metadata save failed")
)

// IsConnectivityError reports whether err is a connectivity-class failure
// that warrants a retry. Context cancellation and deadlines are never
// connectivity errors; they must win the retry loop immediately.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrNotConnected) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		// dial failures (refused, unreachable, reset) are connectivity;
		// anything that got far enough to speak HTTP is not
		return opErr.Op == "dial" || opErr.Op == "read"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return IsConnectivityError(urlErr.Err)
	}
	return false
}
