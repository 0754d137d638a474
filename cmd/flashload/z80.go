package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-stmflash/discovery"
	"github.com/moffa90/go-stmflash/hexloader"
	"github.com/moffa90/go-stmflash/image"
	"github.com/moffa90/go-stmflash/link"
	"github.com/moffa90/go-stmflash/protocol"
)

type z80Flags struct {
	portFlags
	quiet bool
}

func newZ80Cmd(a *app) *cobra.Command {
	f := &z80Flags{}
	cmd := &cobra.Command{
		Use:   "z80 <image>",
		Short: "Download an image to a Z80 board through the hex flash loader",
		Long: `Download an image to a Z80 board through the hex flash loader.

The loader is started with its magic sentence at 8N1 framing, then the image
is sent as 16-byte Intel HEX records, each one confirmed before the next.
Binary images start at address 0; Intel HEX images start at their own base
address. Images must end at or below 0xFFFF.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runZ80(cmd, a, f, args[0])
		},
	}

	f.register(cmd)
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Do not draw a progress bar")
	return cmd
}

func runZ80(cmd *cobra.Command, a *app, f *z80Flags, path string) error {
	ctx := cmd.Context()

	img, err := image.Load(path)
	if err != nil {
		return err
	}
	if img.Size() > hexloader.MaxImageSize {
		return fmt.Errorf("image is %d bytes: the loader accepts at most %d", img.Size(), hexloader.MaxImageSize)
	}
	base := 0
	if img.HasAddress {
		if uint64(img.Address)+uint64(img.Size()) > hexloader.MaxImageSize {
			return fmt.Errorf("image at 0x%X with %d bytes ends past 0x%04X", img.Address, img.Size(), hexloader.MaxImageSize)
		}
		base = int(img.Address)
	}

	opts := []hexloader.Option{hexloader.WithLogger(a.logger())}
	if !f.quiet {
		bar := newProgressBar(cmd.ErrOrStderr())
		opts = append(opts, hexloader.WithProgressCallback(bar.z80))
	}

	session, err := connectLoader(ctx, a, f.portFlags)
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	if err := hexloader.NewClient(session, opts...).DownloadAt(ctx, base, img.Data); err != nil {
		return err
	}

	a.log.Info().Str("port", session.Name()).Int("bytes", img.Size()).Str("base", fmt.Sprintf("0x%04X", base)).Msg("download complete")
	return nil
}

// connectLoader starts the flash loader on the named port, or on the first
// port where it answers the welcome handshake.
func connectLoader(ctx context.Context, a *app, f portFlags) (*link.Session, error) {
	ports := []string{f.port}
	if f.auto() {
		var err error
		if ports, err = a.listPorts(); err != nil {
			return nil, err
		}
	}

	probe := func(ctx context.Context, port string) link.ProbeResult {
		s, err := link.Open(a.opener, port, link.ApplicationMode(f.baud))
		if err != nil {
			return link.ProbeResult{Port: port, Status: link.PortFailure, Err: err}
		}
		if err := hexloader.NewClient(s, hexloader.WithLogger(a.logger())).Enter(ctx); err != nil {
			_ = s.Close()
			status := link.NoResponse
			if !protocol.IsProtocolError(err) {
				status = link.PortFailure
			}
			return link.ProbeResult{Port: port, Status: status, Err: err}
		}
		return link.ProbeResult{Port: port, Status: link.Connected, Session: s}
	}

	result, all, ok := link.Scan(ctx, ports, probe)
	if !ok {
		for _, r := range all {
			a.log.Debug().Str("port", r.Port).Str("status", r.Status.String()).AnErr("reason", r.Err).Msg("port skipped")
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, &discovery.NoDeviceError{Results: all}
	}

	a.log.Info().Str("port", result.Port).Msg("flash loader connected")
	return result.Session, nil
}
