package analysis

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ImageAnalysisFailed is the description reported when an image cannot be analyzed
const ImageAnalysisFailed = "Image analysis failed"

// DefaultMaxImageBytes bounds image downloads
const DefaultMaxImageBytes = 10 << 20

var (
	errImageTooLarge  = errors.New("image exceeds size limit")
	errNotAnImage     = errors.New("content is not an image")
	errUnsupportedURL = errors.New("unsupported image URL scheme")
)

// IsFailedDescription reports whether desc is the analysis failure sentinel
func IsFailedDescription(desc string) bool {
	return desc == "" || desc == ImageAnalysisFailed
}

// ImageAnalyzerConfig configures image fetching
type ImageAnalyzerConfig struct {
	MaxImageBytes int64
	FetchTimeout  time.Duration
}

// ImageAnalyzer downloads images and describes them through a Vision capability
type ImageAnalyzer struct {
	vision     Vision
	httpClient *http.Client
	maxBytes   int64
	logger     *zap.Logger
}

// NewImageAnalyzer creates an image analyzer
func NewImageAnalyzer(vision Vision, cfg ImageAnalyzerConfig, logger *zap.Logger) *ImageAnalyzer {
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 20 * time.Second
	}

	return &ImageAnalyzer{
		vision:     vision,
		httpClient: &http.Client{Timeout: cfg.FetchTimeout},
		maxBytes:   cfg.MaxImageBytes,
		logger:     logger,
	}
}

// Describe returns a moderation-oriented description of the image at imageURL.
// It never fails: download or service errors yield ImageAnalysisFailed.
func (a *ImageAnalyzer) Describe(ctx context.Context, imageURL string) string {
	data, mimeType, err := a.load(ctx, imageURL)
	if err != nil {
		a.logger.Warn("Failed to load image for analysis",
			zap.String("image_url", redactURL(imageURL)),
			zap.Error(err))
		return ImageAnalysisFailed
	}

	desc, err := a.vision.Describe(ctx, ImageDescriptionPrompt, data, mimeType)
	if err != nil {
		a.logger.Warn("Vision analysis failed",
			zap.String("image_url", redactURL(imageURL)),
			zap.Error(err))
		return ImageAnalysisFailed
	}

	desc = strings.TrimSpace(desc)
	if desc == "" {
		a.logger.Warn("Vision analysis returned empty description",
			zap.String("image_url", redactURL(imageURL)))
		return ImageAnalysisFailed
	}
	return desc
}

func (a *ImageAnalyzer) load(ctx context.Context, imageURL string) ([]byte, string, error) {
	if strings.HasPrefix(imageURL, "data:") {
		return DecodeDataURL(imageURL)
	}

	u, err := url.Parse(imageURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", fmt.Errorf("%w: %q", errUnsupportedURL, u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > a.maxBytes {
		return nil, "", errImageTooLarge
	}

	mimeType := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", fmt.Errorf("%w: %s", errNotAnImage, mimeType)
	}

	return data, mimeType, nil
}

// DecodeDataURL decodes a base64 data: URL into bytes and a MIME type
func DecodeDataURL(dataURL string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(dataURL, "data:"), ",")
	if !ok {
		return nil, "", errors.New("malformed data URL")
	}

	mimeType, params, _ := strings.Cut(header, ";")
	if !strings.Contains(params, "base64") {
		return nil, "", errors.New("data URL is not base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode data URL: %w", err)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", fmt.Errorf("%w: %s", errNotAnImage, mimeType)
	}
	return data, mimeType, nil
}

// EncodeDataURL builds a base64 data: URL
func EncodeDataURL(data []byte, mimeType string) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// redactURL keeps logs readable for inline images
func redactURL(u string) string {
	if strings.HasPrefix(u, "data:") {
		if i := strings.IndexByte(u, ','); i >= 0 {
			return u[:i] + ",..."
		}
	}
	return u
}
