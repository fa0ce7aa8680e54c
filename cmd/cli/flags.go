package cli

import (
	"errors"
	"flag"
	"fmt"
	"slices"
) // .import

var Flags struct {
	RunMode       string // local, azure
	Mode          string // serve, listen, once
	AppConfigPath string // if override
	Blob          string // once mode, <container>/<blob name>
	Length        int64  // once mode, expected blob length
} // .flags

var runModes = []string{"local", "azure"}
var modes = []string{"serve", "listen", "once"}

const RUN_MODE_LOCAL = "local"
const RUN_MODE_AZURE = "azure"

const MODE_SERVE = "serve"
const MODE_LISTEN = "listen"
const MODE_ONCE = "once"

// ParseFlags read cli flags into an Flags struct which is returned
func ParseFlags(args []string) error {
	fs := flag.NewFlagSet("blob-relay", flag.ContinueOnError)

	fs.StringVar(&Flags.RunMode, "env", "local", "used to set app run mode: local or azure")
	fs.StringVar(&Flags.Mode, "mode", "serve", "how relays are triggered: serve (functions custom handler), listen (service bus) or once")
	fs.StringVar(&Flags.AppConfigPath, "appconf", "./configs/local/local.env", "used to override the app configuration file path")
	fs.StringVar(&Flags.Blob, "blob", "", "blob to relay in once mode, as <container>/<blob name>")
	fs.Int64Var(&Flags.Length, "length", -1, "expected blob length in bytes for once mode, -1 when unknown")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if !slices.Contains(runModes, Flags.RunMode) {
		return errors.New("cli flag run mode not recognized")
	} // if

	if !slices.Contains(modes, Flags.Mode) {
		return fmt.Errorf("cli flag mode %q not recognized", Flags.Mode)
	}

	if Flags.Mode == MODE_ONCE && Flags.Blob == "" {
		return errors.New("cli flag blob is required in once mode")
	}

	return nil
} // .ParseFlags
