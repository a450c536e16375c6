package transfer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path"
	"path/filepath"

	"github.com/airbusgeo/modis-grabber/service"
	"github.com/airbusgeo/modis-grabber/service/log"
)

// Wget implements Transfer by running wget for the downloads. Listings are done by HTTP.
type Wget struct {
	*HTTP
	binary string
	token  string
}

// NewWget creates a new Wget transfer. binary defaults to "wget".
func NewWget(binary string, lister *HTTP) *Wget {
	if binary == "" {
		binary = "wget"
	}
	return &Wget{HTTP: lister, binary: binary, token: lister.token}
}

// Name implements Transfer
func (w *Wget) Name() string {
	return "Wget"
}

// wget exit status of a network failure (see man wget)
const wgetNetworkFailure = 4

// Fetch implements Transfer
func (w *Wget) Fetch(ctx context.Context, remote, localDir string) (string, error) {
	args := []string{"--no-verbose", "--tries=1", "-P", localDir}
	if w.token != "" {
		args = append(args, "--header", "Authorization: Bearer "+w.token)
	}
	args = append(args, remote)
	cmd := exec.Command(w.binary, args...)

	err := log.Exec(ctx, cmd, log.StdoutFilter(log.ProgressFilter), log.StderrFilter(log.ProgressFilter))
	if err != nil {
		err = fmt.Errorf("Wget.Fetch[%s]: %w", remote, err)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == wgetNetworkFailure {
			return "", service.MakeTemporary(err)
		}
		return "", err
	}
	return filepath.Join(localDir, path.Base(remote)), nil
}
