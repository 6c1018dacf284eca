package toolclient

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
)

// execWorker wraps one spawned tool server process with fully redirected
// streams.
type execWorker struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   io.ReadCloser
	waitOnce sync.Once
	waitErr  error
}

// execFactory starts command with stdin/stdout piped and stderr discarded.
func execFactory(command, env []string) Factory {
	return func(ctx context.Context) (Worker, error) {
		cmd := exec.Command(command[0], command[1:]...)
		if len(env) > 0 {
			cmd.Env = append(os.Environ(), env...)
		}
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		cmd.Stderr = io.Discard
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return &execWorker{cmd: cmd, stdin: stdin, stdout: stdout}, nil
	}
}

func (w *execWorker) Stdin() io.WriteCloser { return w.stdin }

func (w *execWorker) Stdout() io.Reader { return w.stdout }

func (w *execWorker) Terminate() error {
	if w.cmd.Process == nil {
		return nil
	}
	return w.cmd.Process.Signal(syscall.SIGTERM)
}

func (w *execWorker) Kill() error {
	if w.cmd.Process == nil {
		return nil
	}
	return w.cmd.Process.Kill()
}

func (w *execWorker) Wait() error {
	w.waitOnce.Do(func() {
		w.waitErr = w.cmd.Wait()
	})
	return w.waitErr
}
