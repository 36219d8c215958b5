package files

import (
	"context"
	"errors"
	"io"
	"time"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/koustreak/hydrahub/internal/errs"
)

// Preview limits.
const (
	DefaultPreviewLimit = 10_000
	MaxPreviewLimit     = 10_000

	DefaultExpirySeconds = 300
	MinExpirySeconds     = 60
	MaxExpirySeconds     = 3600
)

// PreviewKind says how a preview should be rendered.
type PreviewKind string

const (
	PreviewText  PreviewKind = "text"
	PreviewImage PreviewKind = "image"
)

// PreviewOptions selects the object to preview. Zero Limit and
// ExpirySeconds mean the service defaults.
type PreviewOptions struct {
	Key           string
	Limit         int
	ExpirySeconds int
}

// Preview is either a text excerpt or a signed image URL.
type Preview struct {
	Kind PreviewKind `json:"kind"`
	Key  string      `json:"key"`

	Content   string `json:"content,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`

	URL       string `json:"url,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

// Preview classifies opts.Key by extension. Images get a signed URL and
// are never read. Text objects are read up to the byte limit; content is
// cut back to the last complete UTF-8 character so it is always valid
// text. "<name>.<text ext>.gz" objects are decompressed first and the
// limit applies to the decompressed bytes. Anything else is
// ErrKindUnsupported.
func (s *Service) Preview(ctx context.Context, opts PreviewOptions) (*Preview, error) {
	key := opts.Key
	ext := Extension(key)

	if s.image[ext] {
		expiresIn := s.expiry(opts.ExpirySeconds)
		u, err := s.gw.PresignedReadURL(ctx, key, time.Duration(expiresIn)*time.Second)
		if err != nil {
			return nil, err
		}
		s.log.InfoWith("generated image preview url", map[string]interface{}{
			"key":        key,
			"expires_in": expiresIn,
		})
		return &Preview{Kind: PreviewImage, Key: key, URL: u, ExpiresIn: expiresIn}, nil
	}

	gzipped := false
	if ext == "gz" {
		inner := Extension(key[:len(key)-len(".gz")])
		if s.text[inner] {
			gzipped = true
			ext = inner
		}
	}

	if !s.text[ext] {
		s.log.WarnWith("unsupported preview file type", nil, map[string]interface{}{
			"key": key,
			"ext": ext,
		})
		return nil, errs.New(errs.ErrKindUnsupported, "only text and image files can be previewed")
	}

	limit := opts.Limit
	if limit == 0 {
		limit = s.defaultLimit
	}
	limit = clampLimit(limit)
	content, truncated, err := s.readText(ctx, key, limit, gzipped)
	if err != nil {
		return nil, err
	}

	s.log.InfoWith("generated text preview", map[string]interface{}{
		"key":       key,
		"bytes":     len(content),
		"truncated": truncated,
	})
	return &Preview{Kind: PreviewText, Key: key, Content: content, Truncated: truncated}, nil
}

func (s *Service) readText(ctx context.Context, key string, limit int, gzipped bool) (string, bool, error) {
	obj, err := s.gw.Open(ctx, key)
	if err != nil {
		return "", false, err
	}
	defer obj.Close()

	var r io.Reader = obj
	if gzipped {
		zr, err := gzip.NewReader(obj)
		if err != nil {
			return "", false, errs.Wrap(errs.ErrKindMalformedContent, "object "+key+" is not gzip data", err)
		}
		defer zr.Close()
		r = zr
	}

	// One byte past the limit tells us whether more remains without
	// reading the rest of the object.
	buf, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		if gzipped && (errors.Is(err, gzip.ErrChecksum) || errors.Is(err, gzip.ErrHeader) || errors.Is(err, io.ErrUnexpectedEOF)) {
			return "", false, errs.Wrap(errs.ErrKindMalformedContent, "object "+key+" is not gzip data", err)
		}
		var e *errs.Error
		if errors.As(err, &e) {
			return "", false, err
		}
		return "", false, errs.Wrap(errs.ErrKindConnectionFailed, "failed to read object "+key, err)
	}

	truncated := len(buf) > limit
	if truncated {
		buf = trimPartialRune(buf[:limit])
	}
	return string(buf), truncated, nil
}

// trimPartialRune drops an incomplete UTF-8 sequence at the end of b.
func trimPartialRune(b []byte) []byte {
	// A rune is at most utf8.UTFMax bytes, so only the tail needs checking.
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		c := b[len(b)-i]
		if !utf8.RuneStart(c) {
			continue
		}
		if !utf8.FullRune(b[len(b)-i:]) {
			return b[:len(b)-i]
		}
		break
	}
	return b
}

func (s *Service) expiry(seconds int) int {
	if seconds == 0 {
		seconds = s.defaultExpiry
	}
	return ClampExpiry(seconds)
}

func clampLimit(limit int) int {
	if limit == 0 {
		limit = DefaultPreviewLimit
	}
	return min(max(limit, 1), MaxPreviewLimit)
}

// ClampExpiry applies the default and the [60, 3600] bounds to a signed URL
// lifetime in seconds.
func ClampExpiry(seconds int) int {
	if seconds == 0 {
		seconds = DefaultExpirySeconds
	}
	return min(max(seconds, MinExpirySeconds), MaxExpirySeconds)
}
