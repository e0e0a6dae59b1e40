// Package fetch resolves an image_uri into a decoded image, guarding
// against SSRF the same way the rest of this codebase's download path does:
// reject private/loopback/link-local targets unless explicitly allowed.
package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Result is a successfully fetched and decoded page image.
type Result struct {
	Image     image.Image
	Bytes     []byte
	SHA256Hex string
	// MimeFlag is "content_type_mismatch" when the sniffed content type of
	// the fetched bytes isn't image/*, whether or not decoding then succeeded
	// (e.g. a mislabeled or dual-purpose file). Empty when the sniff agrees.
	MimeFlag string
}

// Options configures fetch behavior; it mirrors the subset of the global
// config the fetch path actually needs so callers don't import config.
type Options struct {
	Timeout      time.Duration
	MaxBytes     int64
	AllowPrivate bool
}

// Image resolves uri (an http(s) URL or a local filesystem path) into a
// decoded, EXIF-orientation-normalized image. On failure the second return
// value is a short flag string ("image_uri_empty", "image_load_failed",
// "image_too_large", "image_uri_rejected", "image_decode_failed"); callers use it to synthesize
// a fail-soft unknown asset instead of failing the request.
func Image(ctx context.Context, uri string, opts Options) (Result, string) {
	raw, flag := readBytes(ctx, uri, opts)
	if flag != "" {
		return Result{}, flag
	}

	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])
	mimeFlag := sniffMimeFlag(raw)

	decoded, err := decodeOriented(raw)
	if err != nil {
		return Result{Bytes: raw, SHA256Hex: hash, MimeFlag: mimeFlag}, "image_decode_failed"
	}

	return Result{Image: decoded, Bytes: raw, SHA256Hex: hash, MimeFlag: mimeFlag}, ""
}

// sniffMimeFlag reports a diagnostic flag when the content-sniffed MIME type
// of raw isn't image/*, so a caller can tell a mislabeled-but-decodable file
// apart from one whose bytes are genuinely image data.
func sniffMimeFlag(raw []byte) string {
	detected := mimetype.Detect(raw)
	if strings.HasPrefix(detected.String(), "image/") {
		return ""
	}
	return "content_type_mismatch"
}

func decodeOriented(raw []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	return img, nil
}

func readBytes(ctx context.Context, uri string, opts Options) ([]byte, string) {
	trimmed := strings.TrimSpace(uri)
	if trimmed == "" {
		return nil, "image_uri_empty"
	}

	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return readRemote(ctx, trimmed, opts)
	}
	return readLocal(trimmed, opts)
}

func readLocal(path string, opts Options) ([]byte, string) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "image_load_failed"
	}
	defer f.Close()

	lr := &io.LimitedReader{R: f, N: opts.MaxBytes + 1}
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, "image_load_failed"
	}
	if int64(len(data)) > opts.MaxBytes {
		return nil, "image_too_large"
	}
	return data, ""
}

func readRemote(ctx context.Context, rawURL string, opts Options) ([]byte, string) {
	if err := validateFetchURL(rawURL, opts.AllowPrivate); err != nil {
		return nil, "image_uri_rejected"
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "image_load_failed"
	}
	req.Header.Set("User-Agent", "visual-extraction-worker/1.0")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "image_load_failed"
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "image_load_failed"
	}

	lr := &io.LimitedReader{R: resp.Body, N: opts.MaxBytes + 1}
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, "image_load_failed"
	}
	if int64(len(data)) > opts.MaxBytes {
		return nil, "image_too_large"
	}
	return data, ""
}

func validateFetchURL(rawURL string, allowPrivate bool) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid fetch URL")
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("fetch URL must use http or https")
	}

	host := strings.ToLower(strings.TrimSpace(parsed.Hostname()))
	if host == "" {
		return fmt.Errorf("fetch URL host is required")
	}

	isLocalName := host == "localhost" || strings.HasSuffix(host, ".localhost")
	isPrivateIP := false
	if ip := net.ParseIP(host); ip != nil {
		isPrivateIP = isPrivateOrLocalIP(ip)
	}

	if (isLocalName || isPrivateIP) && !allowPrivate {
		return fmt.Errorf("fetch URL host is not allowed")
	}
	return nil
}

func isPrivateOrLocalIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalMulticast() || ip.IsLinkLocalUnicast() || ip.IsMulticast() || ip.IsUnspecified() {
		return true
	}
	if ip.IsPrivate() {
		return true
	}
	if v4 := ip.To4(); v4 != nil && v4[0] == 100 && v4[1] >= 64 && v4[1] <= 127 {
		return true
	}
	return false
}
