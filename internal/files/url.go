package files

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/koustreak/hydrahub/internal/errs"
	"github.com/koustreak/hydrahub/internal/filestore"
)

// SignedURL is a time-limited direct download link.
type SignedURL struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"`
}

// SignedURL issues a presigned GET URL for key. expirySeconds of zero
// means the service default; any value is clamped to [60, 3600].
func (s *Service) SignedURL(ctx context.Context, key string, expirySeconds int) (*SignedURL, error) {
	key = filestore.NormalizeKey(key)
	if key == "" {
		return nil, errs.Invalid(errs.Issue{Field: "key", Message: "must not be empty"})
	}

	expiresIn := s.expiry(expirySeconds)
	u, err := s.gw.PresignedReadURL(ctx, key, time.Duration(expiresIn)*time.Second)
	if err != nil {
		return nil, err
	}

	s.log.InfoWith("generated presigned url", map[string]interface{}{
		"key":        key,
		"expires_in": expiresIn,
	})
	return &SignedURL{Key: key, URL: u, ExpiresIn: expiresIn}, nil
}

var dotRuns = regexp.MustCompile(`\.\.+`)

// SanitizeKey strips leading slashes and removes runs of two or more dots
// so a client-supplied key cannot climb out of the bucket namespace.
func SanitizeKey(key string) string {
	return dotRuns.ReplaceAllString(filestore.NormalizeKey(key), "")
}

// Open streams the object at key (after SanitizeKey) for download.
// The caller must Close the returned object.
func (s *Service) Open(ctx context.Context, key string) (filestore.Object, error) {
	key = SanitizeKey(key)
	if key == "" {
		return nil, errs.Invalid(errs.Issue{Field: "key", Message: "must not be empty"})
	}
	s.log.Debug("proxying object " + key)
	return s.gw.Open(ctx, key)
}

// ContentTypeFor guesses the response content type for a proxied object.
func ContentTypeFor(key string) string {
	switch lower := strings.ToLower(key); {
	case strings.HasSuffix(lower, ".json"):
		return "application/json"
	case strings.HasSuffix(lower, ".txt"):
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
