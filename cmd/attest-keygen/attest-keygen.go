package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"

	"code.uvattest.org/golang/internal/utils"
	"code.uvattest.org/golang/pkg/keystore"
)

const usageFmt = `
Command Usage: %s [Flags]
  Generate the Kauth & Kattest key files shared by one verifier/prover pair.
  Run it once, then copy the output directory to both parties.

Flags:
------
`

const (
	kauthFile   = "kauth.key"
	kattestFile = "kattest.key"
)

type Cmd struct {
	OutDir string
	Seed   []byte
	Force  bool
}

func parseFlags(progname string, args []string) *Cmd {
	cmd := Cmd{}

	flags := flag.NewFlagSet(progname, flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, usageFmt, path.Base(progname))
		flags.PrintDefaults()
	}

	flags.StringVar(&cmd.OutDir, "o", ".", `directory where to save the generated key files`)
	flags.BoolVar(&cmd.Force, "force", false, `overwrite existing key files`)

	const seedDoc = `hex encoded derivation seed of 32+ bytes.
When set, keys are derived deterministically from the seed.
When absent, keys are drawn from the system entropy source.`
	flags.Func("seed", seedDoc, func(v string) error {
		var seed utils.HexBinary
		err := seed.UnmarshalText([]byte(v))
		if nil != err {
			return err
		}
		if keystore.KeySize > len(seed) {
			return fmt.Errorf("seed holds %d bytes, need %d+", len(seed), keystore.KeySize)
		}
		cmd.Seed = seed
		return nil
	})

	flags.Parse(args)

	return &cmd
}

func main() {
	cmd := parseFlags(os.Args[0], os.Args[1:])

	var err error
	var kauth, kattest keystore.Key
	defer kauth.Wipe()
	defer kattest.Wipe()

	if 0 != len(cmd.Seed) {
		err = keystore.DeriveKeys(cmd.Seed, &kauth, &kattest)
		if nil != err {
			log.Fatalf("Failed deriving keys from seed, got error %v", err)
		}
	} else {
		rand.Read(kauth[:])
		rand.Read(kattest[:])
	}

	err = os.MkdirAll(cmd.OutDir, 0700)
	if nil != err {
		log.Fatalf("Failed creating output directory %s, got error %v", cmd.OutDir, err)
	}

	err = writeKeyFile(filepath.Join(cmd.OutDir, kauthFile), kauth, cmd.Force)
	if nil != err {
		log.Fatalf("Failed writing Kauth, got error %v", err)
	}
	err = writeKeyFile(filepath.Join(cmd.OutDir, kattestFile), kattest, cmd.Force)
	if nil != err {
		log.Fatalf("Failed writing Kattest, got error %v", err)
	}

	fmt.Printf("wrote %s & %s in %s\n", kauthFile, kattestFile, cmd.OutDir)
}

func writeKeyFile(fpath string, key keystore.Key, force bool) error {
	mode := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		// refuse clobbering provisioned key material
		mode = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(fpath, mode, 0600)
	if nil != err {
		return err
	}
	defer f.Close()

	_, err = f.Write(key[:])
	return err
}
