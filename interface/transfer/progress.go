package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/airbusgeo/modis-grabber/service/log"
	"github.com/cavaliercoder/grab"
)

func fmtBytes(bytes int64) string {
	v := float64(bytes)
	switch {
	case v > 1<<30:
		return fmt.Sprintf("%.2fGo", v/(1<<30))
	case v > 1<<20:
		return fmt.Sprintf("%.2fMo", v/(1<<20))
	case v > 1<<10:
		return fmt.Sprintf("%.2fko", v/(1<<10))
	default:
		return fmt.Sprintf("%.2fo", v)
	}
}

// displayProgress logs the progress of the grab download every progressPeriod (0.05 = 5%), until it's done
func displayProgress(ctx context.Context, prefix string, resp *grab.Response, progressPeriod float64) {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	progress, lastBytes, seconds := 0.0, int64(0), int64(0)
	for {
		select {
		case <-t.C:
			seconds++
			if resp.Progress() > progress {
				log.Logger(ctx).Sugar().Debugf("%s: %.2f%% %s/%s (%s/s)", prefix, 100*resp.Progress(), fmtBytes(resp.BytesComplete()), fmtBytes(resp.Size), fmtBytes((resp.BytesComplete()-lastBytes)/seconds))
				seconds = 0
				progress += progressPeriod
				lastBytes = resp.BytesComplete()
			}

		case <-resp.Done:
			return
		}
	}
}

// progressWriter counts the bytes written to it and logs the progress every progressPeriod.
// It can be passed to io.TeeReader.
type progressWriter struct {
	ctx            context.Context
	prefix         string
	size, written  int64
	progressPeriod float64
	next           float64
}

func newProgressWriter(ctx context.Context, prefix string, size int64, progressPeriod float64) *progressWriter {
	if progressPeriod <= 0 {
		progressPeriod = 1
	}
	return &progressWriter{ctx: ctx, prefix: prefix, size: size, progressPeriod: progressPeriod, next: progressPeriod}
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	pw.written += int64(len(p))
	if pw.size > 0 {
		if progress := float64(pw.written) / float64(pw.size); progress >= pw.next {
			log.Logger(pw.ctx).Sugar().Debugf("%s: %.2f%% %s/%s", pw.prefix, 100*progress, fmtBytes(pw.written), fmtBytes(pw.size))
			for pw.next <= progress {
				pw.next += pw.progressPeriod
			}
		}
	}
	return len(p), nil
}
