package anacrolix

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/anacrolix/torrent/metainfo"

	"torrentplay/internal/domain"
)

// parseLocator accepts magnet URIs and bare info hashes (40 hex or 32 base32
// characters, optionally prefixed with urn:btih:).
func parseLocator(locator string) (metainfo.Magnet, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return metainfo.Magnet{}, domain.ErrInvalidLocator
	}
	if strings.HasPrefix(strings.ToLower(locator), "magnet:") {
		m, err := metainfo.ParseMagnetUri(locator)
		if err != nil {
			return metainfo.Magnet{}, fmt.Errorf("%w: %v", domain.ErrInvalidLocator, err)
		}
		return m, nil
	}
	h, ok := parseInfoHash(locator)
	if !ok {
		return metainfo.Magnet{}, domain.ErrInvalidLocator
	}
	return metainfo.Magnet{InfoHash: h}, nil
}

func parseInfoHash(raw string) (metainfo.Hash, bool) {
	value := strings.TrimSpace(raw)
	if len(value) > len("urn:btih:") && strings.EqualFold(value[:len("urn:btih:")], "urn:btih:") {
		value = value[len("urn:btih:"):]
	}

	var h metainfo.Hash
	switch len(value) {
	case 40:
		if err := h.FromHexString(value); err != nil {
			return metainfo.Hash{}, false
		}
		return h, true
	case 32:
		decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(value))
		if err != nil || len(decoded) != len(h) {
			return metainfo.Hash{}, false
		}
		copy(h[:], decoded)
		return h, true
	default:
		return metainfo.Hash{}, false
	}
}
