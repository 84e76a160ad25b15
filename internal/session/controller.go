// Package session implements the application-layer state machine that
// dispatches parsed frames to handlers: reply policy, firmware
// reassembly, and RS485 master polling.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jbuehl/semonitor/internal/cryptosess"
	"github.com/jbuehl/semonitor/internal/frame"
	"github.com/jbuehl/semonitor/internal/logging"
	"github.com/jbuehl/semonitor/internal/protocol"
	"github.com/jbuehl/semonitor/internal/seqstore"
	"github.com/jbuehl/semonitor/internal/sink"
	"github.com/jbuehl/semonitor/internal/transport"
)

// Mode selects the controller's behavior, derived once from configuration.
type Mode int

const (
	ModePassive Mode = iota
	ModeMaster
	ModeCommanding
	ModeServer
)

// master-polling timing parameters, package vars (rather than const) so
// tests can shrink them instead of waiting out real timeouts.
var (
	masterAckTimeout = 10 * time.Second
	masterInterval   = 5 * time.Second
	commandPaceDelay = 2 * time.Second
)

// UpdateSize is the fixed firmware image buffer size.
const UpdateSize = 0x80000

// Command is one (function, payload) pair issued in Commanding mode.
type Command struct {
	Function uint16
	Data     []byte
}

// Config holds the controller's fixed, non-transport configuration.
type Config struct {
	Mode         Mode
	DeviceKey    []byte // 16 bytes; enables key-exchange decryption when set
	SelfAddr     uint32
	Slaves       []uint32
	HaltOnError  bool
	FirmwarePath string // non-empty enables firmware reassembly
	Commands     []Command
	// Master is the RS485 master-grant protocol's cross-cutting
	// capability flag: true whenever this run should issue bus grants,
	// whether that's the dedicated polling loop (Mode == ModeMaster) or
	// a grant-and-await-ack step interleaved with Commanding mode.
	Master bool
}

// Controller is the session-level state machine: it owns the frame
// reader, the crypto context (once a key exchange has been observed),
// the firmware buffer, and the tx-mutex/master-event pair that
// serializes outbound writes between replies and RS485 grants.
type Controller struct {
	cfg   Config
	tr    transport.Transport
	rd    *frame.Reader
	seq   *seqstore.Store
	sk    *sink.Sink
	log   *logging.Logger
	state *StateDict
	now   func() time.Time

	txMu   sync.Mutex
	cipher *cryptosess.Cipher

	firmware    []byte
	masterEvent chan struct{}
}

// New builds a Controller. passiveOrRS485 selects the frame reader's
// byte-at-a-time resync mode, matching the transport's wiring (serial
// RS485 or a file/socket being read without having initiated the
// exchange).
func New(cfg Config, tr transport.Transport, passiveOrRS485 bool, seq *seqstore.Store, sk *sink.Sink, log *logging.Logger) *Controller {
	c := &Controller{
		cfg:         cfg,
		tr:          tr,
		rd:          frame.NewReader(tr, passiveOrRS485),
		seq:         seq,
		sk:          sk,
		log:         log,
		state:       NewStateDict(),
		now:         time.Now,
		masterEvent: make(chan struct{}, 1),
	}
	if cfg.FirmwarePath != "" {
		c.firmware = make([]byte, UpdateSize)
	}
	return c
}

// State exposes the controller's debug-state dictionary, e.g. for a
// SIGINT handler to dump alongside goroutine stacks.
func (c *Controller) State() *StateDict { return c.state }

// Run drives the read loop until ctx is cancelled or the transport is
// exhausted and cannot be resumed. In Master mode it also starts the
// RS485 polling goroutine. In Commanding mode it runs the fixed command
// sequence instead of looping on inbound frames.
func (c *Controller) Run(ctx context.Context) error {
	if c.cfg.Mode == ModeCommanding {
		return c.runCommanding(ctx)
	}

	if c.cfg.Mode == ModeMaster {
		go c.masterPollLoop(ctx)
	}

	c.state.Set("passiveMode", c.cfg.Mode == ModePassive)
	for {
		select {
		case <-ctx.Done():
			c.flushFirmware()
			return ctx.Err()
		default:
		}

		payload, eof, err := c.rd.ReadFrame()
		if eof {
			if c.tr.Reconnectable() {
				newTr, rerr := c.reconnect()
				if rerr != nil {
					return rerr
				}
				c.tr = newTr
				c.rd = frame.NewReader(newTr, false)
				continue
			}
			c.flushFirmware()
			return nil
		}
		if err != nil {
			if c.cfg.HaltOnError {
				return err
			}
			c.log.Debug("frame read error: ", err)
			continue
		}
		if len(payload) == 0 {
			continue // EmptyFrame -> Idle
		}
		c.state.Set("lastByteRead", c.now())

		msg, err := frame.ParseFrame(payload)
		if err != nil {
			c.log.Data("parse error: ", err)
			if c.cfg.HaltOnError {
				return err
			}
			continue
		}
		c.log.Raw("rx", msg.Seq, payload)
		if len(msg.Extra) > 0 {
			c.log.Data("bytes after CRC: ", protocol.HexDump(msg.Extra))
		}

		if err := c.classify(msg); err != nil {
			c.log.Data("classify error: ", err)
			if c.cfg.HaltOnError {
				return err
			}
		}
	}
}

type netReconnecter interface {
	Reconnect() (transport.Transport, error)
}

func (c *Controller) reconnect() (transport.Transport, error) {
	r, ok := c.tr.(netReconnecter)
	if !ok {
		return nil, errors.New("session: transport reports Reconnectable but has no Reconnect method")
	}
	c.log.Info("transport eof, reconnecting")
	return r.Reconnect()
}

// isAllZeros reports whether a parsed message's payload is a non-empty
// run of zero bytes; classify drops such a message silently when its
// function code is not a recognised one.
func isAllZeros(payload []byte) bool {
	for _, b := range payload {
		if b != 0 {
			return false
		}
	}
	return len(payload) > 0
}

// classify dispatches a parsed message by function code, recursing into
// an EncryptedEnvelope's inner frame.
func (c *Controller) classify(msg *frame.Message) error {
	if isAllZeros(msg.Data) && protocol.Classify(protocol.Function(msg.Function)) == protocol.KindUnknown {
		return nil
	}

	switch protocol.Classify(protocol.Function(msg.Function)) {
	case protocol.KindKeyExchange:
		return c.handleKeyExchange(msg)
	case protocol.KindEncryptedEnvelope:
		return c.handleEncryptedEnvelope(msg)
	case protocol.KindServerPostData:
		return c.handleServerPostData(msg)
	case protocol.KindServerGetGmt:
		return c.handleServerGetGmt(msg)
	case protocol.KindUpgradeWrite:
		return c.handleUpgradeWrite(msg)
	case protocol.KindMasterGrantAck:
		c.signalMaster()
		return nil
	case protocol.KindMasterGrant:
		c.state.Set("masterGrant", msg.FromAddr)
		return nil
	case protocol.KindAck:
		return nil
	case protocol.KindParam:
		p, err := protocol.ParseParam(msg.Data)
		if err != nil {
			return err
		}
		c.log.Data("param: ", p)
		return nil
	case protocol.KindParamValue:
		pv, err := protocol.ParseParamValue(msg.Data)
		if err != nil {
			return err
		}
		c.log.Data("param-value: ", pv)
		return nil
	case protocol.KindStatus, protocol.KindLoggedHex:
		c.log.Data("hex: ", protocol.HexDump(msg.Data))
		return nil
	default:
		c.log.Data("unknown function ", fmt.Sprintf("%#04x", msg.Function), ": ", protocol.HexDump(msg.Data))
		return nil
	}
}

func (c *Controller) handleKeyExchange(msg *frame.Message) error {
	if len(c.cfg.DeviceKey) != cryptosess.DeviceKeyLen {
		return errors.New("session: key exchange received but no device key configured")
	}
	cip, err := cryptosess.New(c.cfg.DeviceKey, msg.Data)
	if err != nil {
		return err
	}
	c.cipher = cip
	c.state.Set("cipher", "installed")
	return c.maybeReply(msg.FromAddr, uint16(protocol.FunctionAck), nil)
}

func (c *Controller) handleEncryptedEnvelope(msg *frame.Message) error {
	if c.cipher == nil {
		// Cipher mismatch: discard and wait for a fresh key exchange.
		c.state.Set("cipher", "missing, dropped envelope")
		return nil
	}
	_, plaintext, err := c.cipher.Decrypt(msg.Data)
	if err != nil {
		c.cipher = nil
		return err
	}
	if len(plaintext) < len(frame.Magic) || !bytes.Equal(plaintext[:len(frame.Magic)], frame.Magic[:]) {
		c.cipher = nil
		return errors.New("session: decrypted envelope missing magic prefix")
	}
	inner, err := frame.ParseFrame(plaintext[len(frame.Magic):])
	if err != nil {
		return err
	}
	return c.classify(inner)
}

func (c *Controller) handleServerPostData(msg *frame.Message) error {
	snap, errs := protocol.ParseServerPostData(msg.Data, c.now)
	for _, e := range errs {
		c.log.Data("device record error: ", e)
	}
	if err := c.sk.Emit(snap, c.now()); err != nil {
		return err
	}
	return c.maybeReply(msg.FromAddr, uint16(protocol.FunctionAck), nil)
}

func (c *Controller) handleServerGetGmt(msg *frame.Message) error {
	return c.maybeReply(msg.FromAddr, uint16(protocol.FunctionServerGetGmt), protocol.LocalTimeReply(c.now()))
}

func (c *Controller) handleUpgradeWrite(msg *frame.Message) error {
	if c.firmware == nil {
		return nil // no capture file configured; nothing to reassemble
	}
	ol, err := protocol.ParseOffsetLength(msg.Data)
	if err != nil {
		return err
	}
	return c.bufferPatch(ol.Offset, ol.Length, ol.Data)
}

// bufferPatch copies data into the firmware buffer at [offset,
// offset+length), last-writer-wins on overlapping ranges. An
// out-of-range write is an error.
func (c *Controller) bufferPatch(offset, length uint32, data []byte) error {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(c.firmware)) {
		return fmt.Errorf("session: firmware write [%d,%d) exceeds buffer size %d", offset, end, len(c.firmware))
	}
	n := int(length)
	if n > len(data) {
		n = len(data)
	}
	copy(c.firmware[offset:offset+uint32(n)], data[:n])
	return nil
}

func (c *Controller) flushFirmware() {
	if c.firmware == nil || c.cfg.FirmwarePath == "" {
		return
	}
	if err := os.WriteFile(c.cfg.FirmwarePath, c.firmware, 0o644); err != nil {
		c.log.Error("firmware flush failed: ", err)
	}
}

func (c *Controller) signalMaster() {
	select {
	case c.masterEvent <- struct{}{}:
	default:
	}
}

// maybeReply transmits only in Server mode or when the master-grant
// protocol is active.
func (c *Controller) maybeReply(to uint32, function uint16, data []byte) error {
	if c.cfg.Mode != ModeServer && !c.cfg.Master {
		return nil
	}
	return c.send(to, function, data)
}

// send builds and writes one outbound frame under the tx-mutex,
// allocating the next sequence number and wrapping in the encrypted
// envelope when a cipher is installed.
func (c *Controller) send(to uint32, function uint16, data []byte) error {
	c.txMu.Lock()
	defer c.txMu.Unlock()

	seq, err := c.seq.Next()
	if err != nil {
		return err
	}
	inner := frame.FormatFrame(seq, c.cfg.SelfAddr, to, function, data)
	var out []byte
	if c.cipher != nil {
		out = frame.WithMagic(frame.FormatEncryptedFrame(c.cipher, seq, frame.WithMagic(inner)))
	} else {
		out = frame.WithMagic(inner)
	}

	c.log.Raw("tx", seq, out)
	_, err = c.tr.Write(out)
	return err
}

// masterPollLoop grants the bus to each slave in turn, waiting for a
// MasterGrantAck or a fixed timeout before moving to the next slave. A
// missing ack degrades to a fixed-rate poller without stalling, since
// the timer and the ack converge on the same event.
func (c *Controller) masterPollLoop(ctx context.Context) {
	if len(c.cfg.Slaves) == 0 {
		return
	}
	timer := time.NewTimer(masterAckTimeout)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		for _, slave := range c.cfg.Slaves {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err := c.send(slave, uint16(protocol.FunctionPolestarMasterGrant), nil); err != nil {
				c.log.Debug("master grant send failed: ", err)
			}
			c.drainMasterEvent()
			timer.Reset(masterAckTimeout)
			select {
			case <-c.masterEvent:
				if !timer.Stop() {
					<-timer.C
				}
			case <-timer.C:
				c.log.Debug("master ack timeout for slave ", slave)
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(masterInterval):
		}
	}
}

func (c *Controller) drainMasterEvent() {
	select {
	case <-c.masterEvent:
	default:
	}
}

// runCommanding issues the configured command sequence, reading exactly
// one reply frame per command before pacing to the next.
func (c *Controller) runCommanding(ctx context.Context) error {
	if len(c.cfg.Slaves) == 0 {
		return errors.New("session: commanding mode requires at least one slave address")
	}
	slave := c.cfg.Slaves[0]
	for _, cmd := range c.cfg.Commands {
		if err := c.send(slave, cmd.Function, cmd.Data); err != nil {
			return err
		}
		if c.cfg.Master {
			if err := c.send(slave, uint16(protocol.FunctionPolestarMasterGrant), nil); err != nil {
				return err
			}
			select {
			case <-c.masterEvent:
			case <-time.After(masterAckTimeout):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		payload, eof, err := c.rd.ReadFrame()
		if err != nil {
			return err
		}
		if !eof && len(payload) > 0 {
			msg, err := frame.ParseFrame(payload)
			if err != nil {
				c.log.Data("commanding reply parse error: ", err)
			} else {
				c.log.Raw("rx", msg.Seq, payload)
				if cerr := c.classify(msg); cerr != nil {
					c.log.Data("commanding reply classify error: ", cerr)
				}
			}
		}

		select {
		case <-time.After(commandPaceDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
