package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type URLSigner interface {
	Sign(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
}

// URLIssuer hands out short-lived read URLs. A signing failure yields "",
// which callers show as an unavailable image.
type URLIssuer struct {
	signer URLSigner
	ttl    time.Duration
	log    zerolog.Logger
}

func NewURLIssuer(signer URLSigner, ttl time.Duration, log zerolog.Logger) *URLIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &URLIssuer{signer: signer, ttl: ttl, log: log}
}

// Sign returns a time-limited read URL for objectPath, or "" when the
// backend cannot sign it.
func (u *URLIssuer) Sign(ctx context.Context, objectPath string) string {
	if objectPath == "" {
		return ""
	}
	url, err := u.signer.Sign(ctx, objectPath, u.ttl)
	if err != nil {
		u.log.Warn().Err(err).Str("path", objectPath).Msg("sign url failed")
		return ""
	}
	return url
}
