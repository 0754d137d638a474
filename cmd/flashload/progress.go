package main

import (
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/moffa90/go-stmflash/bootloader"
	"github.com/moffa90/go-stmflash/hexloader"
)

// progressBar renders programming progress as a percentage bar, relabelled
// whenever the phase changes.
type progressBar struct {
	bar   *progressbar.ProgressBar
	phase string
}

func newProgressBar(w io.Writer) *progressBar {
	return &progressBar{
		bar: progressbar.NewOptions(100,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Starting"),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(w, "\n") }),
		),
	}
}

func (p *progressBar) set(phase string, percent int) {
	if phase != p.phase {
		p.bar.Describe(phaseLabel(phase))
		p.phase = phase
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	_ = p.bar.Set(percent)
}

func (p *progressBar) finish() {
	_ = p.bar.Finish()
}

// stm32 feeds the bar from the bootloader programmer.
func (p *progressBar) stm32(progress bootloader.Progress) {
	p.set(progress.Phase, int(progress.Percentage))
	if progress.Phase == bootloader.PhaseComplete {
		p.finish()
	}
}

// z80 feeds the bar from the hex loader.
func (p *progressBar) z80(progress hexloader.Progress) {
	percent := 0
	if progress.TotalRecords > 0 {
		percent = progress.CurrentRecord * 100 / progress.TotalRecords
	}
	p.set(progress.Phase, percent)
	if progress.Phase == hexloader.PhaseComplete {
		p.finish()
	}
}

func phaseLabel(phase string) string {
	switch phase {
	case bootloader.PhaseIdentify:
		return "Identifying"
	case bootloader.PhaseErase:
		return "Erasing"
	case bootloader.PhaseWrite:
		return "Writing"
	case bootloader.PhaseVerify:
		return "Verifying"
	case bootloader.PhaseGo:
		return "Starting"
	case hexloader.PhaseHandshake:
		return "Handshake"
	case hexloader.PhaseDownload:
		return "Downloading"
	default:
		return "Done"
	}
}
