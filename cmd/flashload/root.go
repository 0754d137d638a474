package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-stmflash/link"
)

// app holds the global flags and the serial back end shared by every command.
type app struct {
	debug     bool
	logFormat string

	opener      link.Opener
	listPorts   func() ([]string, error)
	listDetails func() ([]link.PortInfo, error)

	log zerolog.Logger
}

func newApp() *app {
	return &app{
		opener:      link.SerialOpener{},
		listPorts:   link.ListPorts,
		listDetails: link.ListPortDetails,
		log:         zerolog.Nop(),
	}
}

// logger returns the zerolog logger behind the library Logger interface.
func (a *app) logger() link.Logger {
	return zerologAdapter{log: a.log}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "flashload",
		Short:         "Program STM32 and Z80 targets over a serial link",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(cmd.ErrOrStderr(), a.logFormat, a.debug)
			if err != nil {
				return err
			}
			a.log = log
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Log every protocol step")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", formatConsole,
		fmt.Sprintf("Log output format: %s or %s", formatConsole, formatJSON))

	root.AddCommand(
		newSTM32Cmd(a),
		newZ80Cmd(a),
		newInfoCmd(a),
		newPortsCmd(a),
	)
	return root
}

// portFlags are the link flags shared by the commands that talk to a device.
type portFlags struct {
	port string
	baud int
}

const autoPort = "auto"

func (f *portFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.port, "port", "p", autoPort, "Serial port, or auto to scan every port")
	cmd.Flags().IntVarP(&f.baud, "baud", "b", link.DefaultBaudRate, "Baud rate")
}

func (f *portFlags) auto() bool {
	return f.port == "" || f.port == autoPort
}
