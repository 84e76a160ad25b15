// Package cryptosess implements the per-session AES-derived stream
// cipher used to wrap SolarEdge protocol frames, including derivation
// from a key-exchange message and warm-restart persistence of that
// message across process restarts.
package cryptosess

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

// DeviceKeyLen and KeyExchangeLen are the fixed sizes of the two inputs
// the session cipher is derived from.
const (
	DeviceKeyLen    = 16
	KeyExchangeLen  = 34
	envelopeOverhead = 22 // rand16 | seq_le16 | rand4
)

var ErrShortCiphertext = errors.New("cryptosess: ciphertext shorter than envelope overhead")

// Cipher holds a derived session key and the monotonically increasing
// outbound sequence counter that rides inside every encrypted envelope.
// A Cipher is owned exclusively by the session controller's reader
// side; it carries its own mutex only as a defensive measure against
// accidental concurrent use, not because the design calls for shared
// access.
type Cipher struct {
	mu         sync.Mutex
	block      cipher.Block
	encryptSeq uint16
}

// New derives a session cipher from a 16-byte device key and the 34-byte
// payload of a KeyExchange (function 0x0503) message: E1 = AES_K(M[0:16]);
// derivedKey[i] = E1[i] XOR M[16+i].
func New(deviceKey, keyExchangeMsg []byte) (*Cipher, error) {
	if len(deviceKey) != DeviceKeyLen {
		return nil, fmt.Errorf("cryptosess: device key must be %d bytes, got %d", DeviceKeyLen, len(deviceKey))
	}
	if len(keyExchangeMsg) != KeyExchangeLen {
		return nil, fmt.Errorf("cryptosess: key-exchange message must be %d bytes, got %d", KeyExchangeLen, len(keyExchangeMsg))
	}

	kBlock, err := aes.NewCipher(deviceKey)
	if err != nil {
		return nil, fmt.Errorf("cryptosess: device key block cipher: %w", err)
	}
	e1 := make([]byte, aes.BlockSize)
	kBlock.Encrypt(e1, keyExchangeMsg[:aes.BlockSize])

	derived := make([]byte, aes.BlockSize)
	for i := range derived {
		derived[i] = e1[i] ^ keyExchangeMsg[aes.BlockSize+i]
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("cryptosess: derived key block cipher: %w", err)
	}

	seq, err := randomUint16()
	if err != nil {
		return nil, err
	}
	return &Cipher{block: block, encryptSeq: seq}, nil
}

func randomUint16() (uint16, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<16))
	if err != nil {
		return 0, fmt.Errorf("cryptosess: seeding sequence counter: %w", err)
	}
	return uint16(n.Uint64()), nil
}

// Encrypt wraps plaintext in the session envelope and
// advances the outgoing sequence counter.
func (c *Cipher) Encrypt(plaintext []byte) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]byte, envelopeOverhead+len(plaintext))
	if _, err := rand.Read(out[0:16]); err != nil {
		// crypto/rand failing indicates a broken system entropy source;
		// fall back to a zero prefix rather than panicking mid-session.
		for i := range out[0:16] {
			out[i] = 0
		}
	}
	c.encryptSeq++
	binary.LittleEndian.PutUint16(out[16:18], c.encryptSeq)
	if _, err := rand.Read(out[18:22]); err != nil {
		for i := 18; i < 22; i++ {
			out[i] = 0
		}
	}
	copy(out[envelopeOverhead:], plaintext)

	for i := range plaintext {
		out[envelopeOverhead+i] ^= out[18+(i&3)]
	}
	c.crypt(out)

	return out
}

// Decrypt reverses Encrypt, returning the sequence number carried in the
// envelope and the recovered plaintext.
func (c *Cipher) Decrypt(ciphertext []byte) (seq uint16, plaintext []byte, err error) {
	if len(ciphertext) < envelopeOverhead {
		return 0, nil, ErrShortCiphertext
	}

	buf := make([]byte, len(ciphertext))
	copy(buf, ciphertext)
	c.crypt(buf)

	for i := 0; i < len(buf)-envelopeOverhead; i++ {
		buf[envelopeOverhead+i] ^= buf[18+(i&3)]
	}

	seq = binary.LittleEndian.Uint16(buf[16:18])
	plaintext = buf[envelopeOverhead:]
	return seq, plaintext, nil
}

// crypt is the keystream-based stream cipher shared by Encrypt and
// Decrypt: buf[0:16] is treated as a big-endian counter seed, and every
// subsequent 16-byte block is XORed with AES_K'(counter), with the
// counter incremented (ripple carry from the last byte) after each
// block.
func (c *Cipher) crypt(buf []byte) {
	if len(buf) < 16 {
		return
	}
	counter := make([]byte, 16)
	copy(counter, buf[0:16])
	keystream := make([]byte, 16)

	for offset := 16; offset < len(buf); offset += 16 {
		c.block.Encrypt(keystream, counter)
		end := offset + 16
		if end > len(buf) {
			end = len(buf)
		}
		for i := offset; i < end; i++ {
			buf[i] ^= keystream[i-offset]
		}
		incrementCounter(counter)
	}
}

func incrementCounter(counter []byte) {
	for i := len(counter) - 1; i >= 0; i-- {
		counter[i]++
		if counter[i] != 0 {
			break
		}
	}
}
