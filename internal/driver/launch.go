package driver

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"sync"

	"github.com/danmuck/testcentre/internal/cliport"
	"github.com/danmuck/testcentre/internal/logging"
	"github.com/rs/zerolog"
)

// App is a launched application process.
type App struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
	wg   sync.WaitGroup
}

// Launch starts path with args plus the port flag for this server. A nil env
// inherits the driver's environment. The process output is forwarded to the
// log one line at a time.
func (s *Server) Launch(ctx context.Context, path string, args []string, env []string) (*App, error) {
	argv := append(append([]string(nil), args...), cliport.Arg(s.Port()))
	cmd := exec.CommandContext(ctx, path, argv...)
	cmd.Env = env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	log := logging.Component("app").With().Int("pid", cmd.Process.Pid).Logger()
	app := &App{cmd: cmd, done: make(chan struct{})}
	app.wg.Add(2)
	go app.forward(stdout, log, zerolog.InfoLevel)
	go app.forward(stderr, log, zerolog.WarnLevel)
	go func() {
		app.wg.Wait()
		app.err = cmd.Wait()
		log.Info().Err(app.err).Msg("application exited")
		close(app.done)
	}()
	log.Info().Str("path", path).Strs("args", argv).Msg("application launched")
	return app, nil
}

func (a *App) forward(r io.Reader, log zerolog.Logger, level zerolog.Level) {
	defer a.wg.Done()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		log.WithLevel(level).Str("line", sc.Text()).Msg("app output")
	}
}

func (a *App) Pid() int {
	return a.cmd.Process.Pid
}

// Exited is closed once the process has been reaped.
func (a *App) Exited() <-chan struct{} {
	return a.done
}

// Wait blocks until the process exits and returns its exit error.
func (a *App) Wait() error {
	<-a.done
	return a.err
}

func (a *App) Kill() error {
	select {
	case <-a.done:
		return nil
	default:
	}
	return a.cmd.Process.Kill()
}
