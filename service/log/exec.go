package log

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Filter receives a message and its default level and returns the message to log with its level.
// If the last result is true, the message is dropped.
type Filter interface {
	Filter(msg string, defaultLevel zapcore.Level) (string, zapcore.Level, bool)
}

// FilterFunc adapts a function to the Filter interface
type FilterFunc func(msg string, defaultLevel zapcore.Level) (string, zapcore.Level, bool)

// Filter implements Filter
func (f FilterFunc) Filter(msg string, defaultLevel zapcore.Level) (string, zapcore.Level, bool) {
	return f(msg, defaultLevel)
}

// ProgressFilter demotes download progress lines (as printed by wget or curl) to debug
// and drops blank lines.
var ProgressFilter = FilterFunc(func(msg string, level zapcore.Level) (string, zapcore.Level, bool) {
	msg = strings.TrimRight(msg, "\r\n")
	if strings.TrimSpace(msg) == "" {
		return msg, level, true
	}
	if strings.Contains(msg, "% ") || strings.HasSuffix(strings.TrimSpace(msg), "%") || strings.Contains(msg, " .......... ") {
		return msg, zapcore.DebugLevel, false
	}
	return msg, level, false
})

type execOption struct {
	outl, errl zapcore.Level
	outf, errf Filter
}

// ExecOption is an option that can be passed to Exec()
type ExecOption func(eo *execOption)

// StdoutLevel sets the level at which stdout should be logged
func StdoutLevel(l zapcore.Level) ExecOption {
	return func(eo *execOption) {
		eo.outl = l
	}
}

// StderrLevel sets the level at which stderr should be logged
func StderrLevel(l zapcore.Level) ExecOption {
	return func(eo *execOption) {
		eo.errl = l
	}
}

// StdoutFilter sets a filter on the stdout messages
func StdoutFilter(f Filter) ExecOption {
	return func(eo *execOption) {
		eo.outf = f
	}
}

// StderrFilter sets a filter on the stderr messages
func StderrFilter(f Filter) ExecOption {
	return func(eo *execOption) {
		eo.errf = f
	}
}

// Exec runs cmd and sends its outputs to Logger(ctx).
// Unless cmd.Stdout (resp. cmd.Stderr) is already set, stdout is logged at Info level and stderr at Warn level.
// On ctx cancellation, the process is killed and ctx.Err() is returned.
func Exec(ctx context.Context, cmd *exec.Cmd, options ...ExecOption) error {
	opts := execOption{
		outl: zapcore.InfoLevel,
		errl: zapcore.WarnLevel,
	}
	for _, eo := range options {
		eo(&opts)
	}

	logger := Logger(ctx).With(zap.String("cmd", cmd.Path))
	type stream struct {
		r io.Reader
		l levelledLogger
	}
	var streams []stream

	if cmd.Stdout == nil {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("Exec.StdoutPipe: %w", err)
		}
		streams = append(streams, stream{stdout, levelledLogger{logger, opts.outl, opts.outf}})
	}
	if cmd.Stderr == nil {
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return fmt.Errorf("Exec.StderrPipe: %w", err)
		}
		streams = append(streams, stream{stderr, levelledLogger{logger, opts.errl, opts.errf}})
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("Exec.Start: %w", err)
	}

	logwg := sync.WaitGroup{}
	for _, s := range streams {
		logwg.Add(1)
		go func(s stream) {
			defer logwg.Done()
			logLines(s.r, s.l)
		}(s)
	}

	done := make(chan error, 1)
	go func() {
		// pipes must be drained before Wait
		logwg.Wait()
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if err := cmd.Process.Kill(); err != nil {
			logger.Sugar().Warnf("kill: %v", err)
		}
		<-done
		return ctx.Err()
	}
}

func logLines(sr io.Reader, logger levelledLogger) {
	r := bufio.NewReader(sr)
	clipped := false
	for {
		line, err := r.ReadSlice('\n')
		switch {
		case err == bufio.ErrBufferFull:
			if !clipped {
				logger.Print(fmt.Sprintf("%s ...[Message clipped]", line))
				clipped = true
			}
		case clipped:
			clipped = false
		case len(line) > 0:
			logger.Print(string(line))
		}
		if err != nil && err != bufio.ErrBufferFull {
			return
		}
	}
}

type levelledLogger struct {
	*zap.Logger
	level  zapcore.Level
	filter Filter
}

func (l levelledLogger) Print(msg string) {
	level := l.level
	if l.filter != nil {
		var ignore bool
		if msg, level, ignore = l.filter.Filter(msg, level); ignore {
			return
		}
	}
	if ce := l.Check(level, strings.TrimRight(msg, "\r\n")); ce != nil {
		ce.Write()
	}
}
