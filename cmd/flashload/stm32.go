package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-stmflash/bootloader"
	"github.com/moffa90/go-stmflash/discovery"
	"github.com/moffa90/go-stmflash/image"
	"github.com/moffa90/go-stmflash/link"
)

type stm32Flags struct {
	portFlags
	fullErase bool
	verify    bool
	address   string
	quiet     bool
}

func newSTM32Cmd(a *app) *cobra.Command {
	f := &stm32Flags{}
	cmd := &cobra.Command{
		Use:   "stm32 <image>",
		Short: "Program an STM32 through its system bootloader",
		Long: `Program an STM32 through its USART system bootloader.

The image is a raw binary, or Intel HEX when the file ends in .hex, .ihex or
.ihx. The device is identified, the flash under the image is erased, every
record is written (and read back with --verify), and the application is started
at the load address.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSTM32(cmd, a, f, args[0])
		},
	}

	f.register(cmd)
	cmd.Flags().BoolVarP(&f.fullErase, "erase-all", "e", false, "Erase the whole chip instead of the pages under the image")
	cmd.Flags().BoolVarP(&f.verify, "verify", "v", false, "Read every record back after writing")
	cmd.Flags().StringVar(&f.address, "address", "", "Load address, e.g. 0x08000000 (default: image address or flash base)")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Do not draw a progress bar")
	return cmd
}

func runSTM32(cmd *cobra.Command, a *app, f *stm32Flags, path string) error {
	ctx := cmd.Context()

	img, err := image.Load(path)
	if err != nil {
		return err
	}
	a.log.Info().
		Str("file", path).
		Str("format", img.Format.String()).
		Int("bytes", img.Size()).
		Msg("image loaded")

	opts := []bootloader.Option{
		bootloader.WithLogger(a.logger()),
		bootloader.WithVerify(f.verify),
		bootloader.WithFullChipErase(f.fullErase),
	}
	if f.address != "" {
		addr, err := parseAddress(f.address)
		if err != nil {
			return err
		}
		opts = append(opts, bootloader.WithLoadAddress(addr))
	}

	if !f.quiet {
		bar := newProgressBar(cmd.ErrOrStderr())
		opts = append(opts, bootloader.WithProgressCallback(bar.stm32))
	}

	session, err := connectBootloader(ctx, a, f.portFlags)
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	if err := bootloader.New(session, opts...).Program(ctx, img); err != nil {
		return err
	}

	a.log.Info().Str("port", session.Name()).Msg("programming complete")
	return nil
}

// connectBootloader returns a session synchronized with the STM32 bootloader,
// on the named port or on the first port that answers.
func connectBootloader(ctx context.Context, a *app, f portFlags) (*link.Session, error) {
	opts := []discovery.Option{
		discovery.WithOpener(a.opener),
		discovery.WithPortLister(a.listPorts),
		discovery.WithBaudRate(f.baud),
		discovery.WithLogger(a.logger()),
	}
	if !f.auto() {
		opts = append(opts, discovery.WithPorts(f.port))
	}

	result, err := discovery.New(opts...).AutoDiscover(ctx)
	if err != nil {
		return nil, err
	}
	a.log.Info().Str("port", result.Port).Msg("bootloader connected")
	return result.Session, nil
}

// parseAddress accepts decimal, 0x-prefixed hexadecimal and 0-prefixed octal.
func parseAddress(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint32(v), nil
}
