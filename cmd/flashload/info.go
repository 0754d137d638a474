package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-stmflash/bootloader"
)

func newInfoCmd(a *app) *cobra.Command {
	f := &portFlags{}
	var address string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Identify the STM32 on a port and start its application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			opts := []bootloader.Option{bootloader.WithLogger(a.logger())}
			if address != "" {
				addr, err := parseAddress(address)
				if err != nil {
					return err
				}
				opts = append(opts, bootloader.WithLoadAddress(addr))
			}

			session, err := connectBootloader(ctx, a, *f)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()

			prog := bootloader.New(session, opts...)
			target, err := prog.Identify(ctx)

			var unsupported *bootloader.UnsupportedDeviceError
			if err != nil && !errors.As(err, &unsupported) {
				return err
			}
			printTarget(cmd.OutOrStdout(), session.Name(), target)

			if err := prog.Release(ctx); err != nil {
				return fmt.Errorf("start application: %w", err)
			}
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&address, "address", "", "Address to start the application at (default: flash base)")
	return cmd
}

func printTarget(w io.Writer, port string, t *bootloader.Target) {
	fmt.Fprintf(w, "Port:       %s\n", port)
	fmt.Fprintf(w, "Bootloader: %s\n", t.Info.VersionString())
	fmt.Fprintf(w, "Erase:      %s\n", t.Info.EraseMode)
	fmt.Fprintf(w, "Commands:   % X\n", t.Info.Commands)
	if t.Profile.Name == "" {
		fmt.Fprintf(w, "Product ID: 0x%03X (not supported)\n", t.ID)
		return
	}
	fmt.Fprintf(w, "Product ID: 0x%03X\n", t.ID)
	fmt.Fprintf(w, "Device:     %s\n", t.Profile.Name)
	fmt.Fprintf(w, "Flash:      0x%08X, %s\n", t.Profile.FlashBase, t.Profile.Granularity)
}
