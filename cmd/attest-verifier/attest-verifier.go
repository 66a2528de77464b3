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
	"time"

	"code.uvattest.org/golang/internal/observability"
	"code.uvattest.org/golang/internal/transport"
	"code.uvattest.org/golang/pkg/audit"
	"code.uvattest.org/golang/pkg/audit/boltdb"
	"code.uvattest.org/golang/pkg/audit/pgdb"
	"code.uvattest.org/golang/pkg/keystore"
	"code.uvattest.org/golang/pkg/protocols"
	"code.uvattest.org/golang/pkg/protocols/attest"
)

const usageFmt = `
Command Usage: %s [Flags]
  Challenge the prover connected on the -dev device.
  One attestation round runs every -interval, each round binds a fresh
  counter & nonce so recorded answers never verify twice.

Flags:
------
`

type Cmd struct {
	Dev       string
	KauthPath string
	KattPath  string
	Software  string
	AuditPath string
	AuditDSN  string
	Interval  time.Duration
	Count     int
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

	flags.StringVar(&cmd.Dev, "dev", "-", `device carrying protocol records, eg /dev/pts/4. "-" uses stdin/stdout`)
	flags.StringVar(&cmd.KauthPath, "kauth", "kauth.key", `path of the Kauth key file`)
	flags.StringVar(&cmd.KattPath, "kattest", "kattest.key", `path of the Kattest key file`)
	flags.StringVar(&cmd.Software, "software", "", `software identifier, defaults to `+keystore.DefaultSoftwareId)
	flags.StringVar(&cmd.AuditPath, "audit", "", `path of the boltdb audit journal, empty disables journaling`)
	flags.StringVar(&cmd.AuditDSN, "audit-dsn", "", `postgres DSN of the audit journal, overrides -audit`)
	flags.DurationVar(&cmd.Interval, "interval", 5*time.Second, `pause between attestation rounds`)
	flags.IntVar(&cmd.Count, "count", 0, `number of rounds to run, 0 runs until the device fails`)
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

	ctx := observability.SetObservability(
		context.Background(),
		&observability.Observability{Logger: logger},
	)

	onRound, err := newJournal(ctx, cmd, logger)
	if nil != err {
		log.Fatalf("Failed opening audit journal, got error %v", err)
	}

	engine, err := attest.NewVerifier(attest.VerifierCfg{Keys: keys, OnRound: onRound})
	if nil != err {
		log.Fatalf("Failed verifier setup, got error %v", err)
	}

	tr, err := openDevice(cmd.Dev)
	if nil != err {
		log.Fatalf("Failed opening device %s, got error %v", cmd.Dev, err)
	}

	logger.Info("verifier ready", "dev", cmd.Dev, "software", keys.SoftwareId())

	var accepted, refused int
	for round := 1; 0 == cmd.Count || round <= cmd.Count; round++ {
		fsm, err := attest.NewVerifierState(engine)
		if nil != err {
			log.Fatalf("Failed verifier state setup, got error %v", err)
		}

		err = protocols.Run(ctx, fsm, tr)
		if nil != err {
			logger.Error("verifier stopped", "accepted", accepted, "refused", refused, "error", err)
			os.Exit(1)
		}

		result := fsm.Result
		if result.Accepted {
			accepted++
		} else {
			refused++
		}
		logger.Info(
			"round completed",
			"C_V", result.Counter,
			"accepted", result.Accepted,
			"verdict", result.Round.Verdict,
		)

		if 0 == cmd.Count || round < cmd.Count {
			time.Sleep(cmd.Interval)
		}
	}

	logger.Info("verifier done", "accepted", accepted, "refused", refused)
}

// newJournal selects the audit backend from cmd, a postgres DSN wins over
// a boltdb path. It returns a nil RoundFunc when journaling is disabled.
func newJournal(ctx context.Context, cmd *Cmd, logger *slog.Logger) (attest.RoundFunc, error) {
	var store audit.Store
	var err error

	switch {
	case "" != cmd.AuditDSN:
		store, err = pgdb.New(ctx, cmd.AuditDSN)
	case "" != cmd.AuditPath:
		store, err = boltdb.New(cmd.AuditPath)
	default:
		return nil, nil
	}
	if nil != err {
		return nil, err
	}

	return audit.Journal(store, func(err error) {
		logger.Error("failed journaling round", "error", err)
	}), nil
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
