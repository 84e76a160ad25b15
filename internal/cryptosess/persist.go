package cryptosess

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MaxWarmRestartAge is the window within which a saved key-exchange
// message is still trusted across a warm restart.
const MaxWarmRestartAge = 24 * time.Hour

// SaveKeyExchange persists the 34-byte key-exchange payload to path as
// "<human-timestamp>,<epoch>,<68-hex-chars>", the format `last0503.msg`
// uses. The file is written with owner-only permissions since it is
// sensitive session material.
func SaveKeyExchange(path string, keyExchangeMsg []byte, now time.Time) error {
	if len(keyExchangeMsg) != KeyExchangeLen {
		return fmt.Errorf("cryptosess: key-exchange message must be %d bytes, got %d", KeyExchangeLen, len(keyExchangeMsg))
	}
	line := fmt.Sprintf("%s,%d,%s\n", now.Format(time.ANSIC), now.Unix(), hex.EncodeToString(keyExchangeMsg))
	return os.WriteFile(path, []byte(line), 0o600)
}

// LoadKeyExchange reads a previously saved key-exchange message and
// reconstructs a Cipher from it, provided the file is well-formed and
// not older than MaxWarmRestartAge. A malformed or stale file is not an
// error: it simply yields (nil, nil), so the caller falls through to
// waiting for a fresh KeyExchange message. Only call this once per
// process, at startup.
func LoadKeyExchange(path string, deviceKey []byte, now time.Time) (*Cipher, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, nil
	}

	line := strings.TrimSpace(string(raw))
	parts := strings.SplitN(line, ",", 3)
	if len(parts) != 3 {
		return nil, nil
	}

	epoch, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, nil
	}
	if now.Sub(time.Unix(epoch, 0)) > MaxWarmRestartAge {
		return nil, nil
	}

	hexPayload := strings.TrimSpace(parts[2])
	if len(hexPayload) != KeyExchangeLen*2 {
		return nil, nil
	}
	payload, err := hex.DecodeString(hexPayload)
	if err != nil {
		return nil, nil
	}

	return New(deviceKey, payload)
}
