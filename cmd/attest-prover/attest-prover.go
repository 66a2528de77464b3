package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path"

	"code.uvattest.org/golang/internal/observability"
	"code.uvattest.org/golang/internal/transport"
	"code.uvattest.org/golang/pkg/audit"
	"code.uvattest.org/golang/pkg/audit/boltdb"
	"code.uvattest.org/golang/pkg/keystore"
	"code.uvattest.org/golang/pkg/protocols"
	"code.uvattest.org/golang/pkg/protocols/attest"
)

const usageFmt = `
Command Usage: %s [Flags]
  Answer attestation requests read from the -dev device.
  The prover proves its software identity to the connected verifier and
  serves rounds until the device fails or -rounds is reached.

Flags:
------
`

type Cmd struct {
	Dev       string
	KauthPath string
	KattPath  string
	Software  string
	AuditPath string
	Rounds    int
	Debug     bool
	TraceKeys bool
}

func parseFlags(progname string, args []string) *Cmd {
	cmd := Cmd{}

	flags := flag.NewFlagSet(progname, flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, usageFmt, path.Base(progname))
		flags.PrintDefaults()
	}

	flags.StringVar(&cmd.Dev, "dev", "-", `device carrying protocol records, eg /dev/pts/5. "-" uses stdin/stdout`)
	flags.StringVar(&cmd.KauthPath, "kauth", "kauth.key", `path of the Kauth key file`)
	flags.StringVar(&cmd.KattPath, "kattest", "kattest.key", `path of the Kattest key file`)
	flags.StringVar(&cmd.Software, "software", "", `software identifier, defaults to `+keystore.DefaultSoftwareId)
	flags.StringVar(&cmd.AuditPath, "audit", "", `path of the boltdb audit journal, empty disables journaling`)
	flags.IntVar(&cmd.Rounds, "rounds", 0, `number of rounds to serve, 0 serves until the device fails`)
	flags.BoolVar(&cmd.Debug, "debug", false, `enable debug logging`)
	flags.BoolVar(&cmd.TraceKeys, "trace-keys", false, `DEVELOPMENT ONLY, hex dump key material to the logs`)

	flags.Parse(args)

	return &cmd
}

func main() {
	cmd := parseFlags(os.Args[0], os.Args[1:])

	logger := newLogger(cmd.Debug)

	var trace *slog.Logger
	if cmd.TraceKeys {
		logger.Warn("key tracing enabled, logs expose secret material")
		trace = logger
	}

	keys, err := keystore.Load(keystore.Cfg{
		AuthKeyPath:   cmd.KauthPath,
		AttestKeyPath: cmd.KattPath,
		SoftwareId:    cmd.Software,
		Trace:         trace,
	})
	if nil != err {
		log.Fatalf("Failed loading keys, got error %v", err)
	}
	defer keys.Wipe()

	var onRound attest.RoundFunc
	if "" != cmd.AuditPath {
		store, err := boltdb.New(cmd.AuditPath)
		if nil != err {
			log.Fatalf("Failed opening audit journal, got error %v", err)
		}
		onRound = audit.Journal(store, func(err error) {
			logger.Error("failed journaling round", "error", err)
		})
	}

	engine, err := attest.NewProver(attest.ProverCfg{Keys: keys, OnRound: onRound})
	if nil != err {
		log.Fatalf("Failed prover setup, got error %v", err)
	}

	tr, err := openDevice(cmd.Dev)
	if nil != err {
		log.Fatalf("Failed opening device %s, got error %v", cmd.Dev, err)
	}

	fsm, err := attest.NewProverState(engine)
	if nil != err {
		log.Fatalf("Failed prover state setup, got error %v", err)
	}
	fsm.MaxRounds = cmd.Rounds

	ctx := observability.SetObservability(
		context.Background(),
		&observability.Observability{Logger: logger},
	)

	logger.Info("prover ready", "dev", cmd.Dev, "software", keys.SoftwareId())
	err = protocols.Run(ctx, fsm, tr)
	if nil != err {
		logger.Error("prover stopped", "served", fsm.Served(), "error", err)
		os.Exit(1)
	}
	logger.Info("prover done", "served", fsm.Served())
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func openDevice(dev string) (transport.Transport, error) {
	if "-" == dev {
		return transport.RWTransport{R: os.Stdin, W: os.Stdout}, nil
	}
	f, err := os.OpenFile(dev, os.O_RDWR, 0)
	if nil != err {
		return nil, err
	}
	var rw io.ReadWriter = f
	return transport.RWTransport{R: rw, W: rw}, nil
}
