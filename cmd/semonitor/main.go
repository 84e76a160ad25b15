// Command semonitor parses and optionally impersonates the proprietary
// binary protocol used between string inverters and the manufacturer's
// cloud service: passive monitoring, RS485 master polling, or a fixed
// command sequence against a single slave.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/jbuehl/semonitor/internal/logging"
	"github.com/jbuehl/semonitor/internal/session"
	"github.com/jbuehl/semonitor/internal/seqstore"
	"github.com/jbuehl/semonitor/internal/sink"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SEMONITOR")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "semonitor [source]",
		Short: "Monitor and optionally impersonate a string-inverter telemetry protocol",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := ""
			if len(args) == 1 {
				source = args[0]
			}
			return run(v, source)
		},
	}

	flags := cmd.Flags()
	flags.Bool("append", false, "append vs truncate output/record files")
	flags.Int("baud", 115200, "serial baud rate")
	flags.StringArray("command", nil, "repeatable function[,type]value... command spec")
	flags.String("log-file", "stderr", "log destination (stderr|stdout|syslog|path)")
	flags.Bool("follow", false, "wait for appended data as the input file grows")
	flags.String("key-file", "", "file containing a hex encoded device key")
	flags.Bool("master", false, "function as an RS485 master")
	flags.String("out-file", "stdout", "telemetry sink destination")
	flags.IntSlice("port", nil, "repeatable network listen port")
	flags.String("record-file", "", "file to record all incoming/outgoing messages to")
	flags.StringArray("slave", nil, "repeatable hex slave address")
	flags.String("serial-type", "", "2 (RS232), 4 (RS485), or n (network)")
	flags.String("update-file", "", "file to write firmware update to")
	flags.CountP("verbosity", "v", "increase log verbosity (repeatable)")
	flags.Bool("halt-on-error", false, "propagate parse errors instead of logging and continuing")

	for _, name := range []string{
		"append", "baud", "command", "log-file", "follow", "key-file", "master",
		"out-file", "port", "record-file", "slave", "serial-type", "update-file",
		"verbosity", "halt-on-error",
	} {
		_ = v.BindPFlag(strings.ReplaceAll(name, "-", "."), flags.Lookup(name))
	}

	cmd.PersistentFlags().String("config", "", "optional config file (flags and SEMONITOR_* env vars take precedence)")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if cfgFile, _ := cmd.PersistentFlags().GetString("config"); cfgFile != "" {
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("reading config file: %w", err)
			}
		}
		return nil
	}

	return cmd
}

func run(v *viper.Viper, source string) error {
	s := settings{
		Append:      v.GetBool("append"),
		Baud:        v.GetInt("baud"),
		CommandSpec: v.GetStringSlice("command"),
		LogFile:     v.GetString("log.file"),
		Follow:      v.GetBool("follow"),
		KeyFile:     v.GetString("key.file"),
		Master:      v.GetBool("master"),
		OutFile:     v.GetString("out.file"),
		Ports:       v.GetIntSlice("port"),
		RecordFile:  v.GetString("record.file"),
		Slaves:      v.GetStringSlice("slave"),
		SerialType:  v.GetString("serial.type"),
		UpdateFile:  v.GetString("update.file"),
		Verbosity:   v.GetInt("verbosity"),
		HaltOnError: v.GetBool("halt.on.error"),
		Source:      source,
	}

	log, err := buildLogger(s)
	if err != nil {
		return err
	}

	commands, err := parseCommands(s.CommandSpec)
	if err != nil {
		return err
	}
	slaves, err := parseSlaves(s.Slaves)
	if err != nil {
		return err
	}

	mode, passiveOrRS485, master, err := deriveMode(s, len(commands), len(slaves))
	if err != nil {
		return err
	}

	tr, err := openTransport(s)
	if err != nil {
		return fmt.Errorf("opening data source: %w", err)
	}
	if s.RecordFile != "" {
		tr, err = wrapRecording(tr, s.RecordFile, s.Append)
		if err != nil {
			return err
		}
	}

	out, err := openOutFile(s.OutFile, s.Append)
	if err != nil {
		return err
	}
	sk := sink.New(out)

	deviceKey, err := loadDeviceKey(s.KeyFile)
	if err != nil {
		return err
	}

	seq := seqstore.New("seseq.txt")
	cfg := session.Config{
		Mode:         mode,
		DeviceKey:    deviceKey,
		SelfAddr:     0,
		Slaves:       slaves,
		HaltOnError:  s.HaltOnError,
		FirmwarePath: s.UpdateFile,
		Commands:     commands,
		Master:       master,
	}
	ctrl := session.New(cfg, tr, passiveOrRS485, seq, sk, log)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		ctrl.State().Dump(log)
		cancel()
	}()

	return ctrl.Run(ctx)
}

func buildLogger(s settings) (*logging.Logger, error) {
	base := logrus.New()
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	switch s.LogFile {
	case "stderr", "":
		base.SetOutput(os.Stderr)
	case "stdout":
		base.SetOutput(os.Stdout)
	case "syslog":
		// Syslog output is left to the platform's standard logging setup;
		// this build writes to stderr, which every service supervisor
		// feeding into syslog already captures.
		base.SetOutput(os.Stderr)
	default:
		flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if s.Append {
			flag = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		}
		f, err := os.OpenFile(s.LogFile, flag, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		base.SetOutput(f)
	}

	level := logging.LevelError
	switch {
	case s.Verbosity >= 4:
		level = logging.LevelRaw
	case s.Verbosity == 3:
		level = logging.LevelData
	case s.Verbosity == 2:
		level = logging.LevelDebug
	case s.Verbosity == 1:
		level = logging.LevelInfo
	}
	return logging.New(base, level), nil
}

func parseSlaves(raw []string) ([]uint32, error) {
	out := make([]uint32, 0, len(raw))
	for _, s := range raw {
		n, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("slave address %q: %w", s, err)
		}
		out = append(out, uint32(n))
	}
	return out, nil
}

func loadDeviceKey(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("key file is not valid hex: %w", err)
	}
	return key, nil
}

func openOutFile(name string, appendMode bool) (io.Writer, error) {
	switch name {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if appendMode {
			flag = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		}
		return os.OpenFile(name, flag, 0o644)
	}
}
