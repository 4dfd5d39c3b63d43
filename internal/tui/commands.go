package tui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/opensync-io/opensync/internal/config"
	"github.com/opensync-io/opensync/internal/daemon/server"
	"github.com/opensync-io/opensync/internal/models"
)

const (
	pollInterval = 2 * time.Second
	rpcTimeout   = 2 * time.Second

	// tailBytes bounds how much of the daemon log is read per refresh.
	tailBytes = 64 * 1024
)

// RecordLister lists processed records, newest first.
type RecordLister interface {
	List(ctx context.Context) ([]*models.ProcessedRecord, error)
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

func loadRecordsCmd(db RecordLister) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
		defer cancel()
		records, err := db.List(ctx)
		return RecordsLoadedMsg{Records: records, Err: err}
	}
}

func checkDaemonCmd() tea.Cmd {
	return func() tea.Msg {
		running, info, err := config.IsDaemonRunning()
		if err != nil {
			return DaemonStatusMsg{Err: err}
		}
		if !running {
			return DaemonStatusMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
		defer cancel()
		status, err := server.Check(ctx, fmt.Sprintf("%s:%d", info.Host, info.Port))
		return DaemonStatusMsg{Info: info, Status: status, Err: err}
	}
}

func tailLogCmd(path string) tea.Cmd {
	return func() tea.Msg {
		content, err := tailFile(path, tailBytes)
		if err != nil {
			return LogTailMsg{Content: fmt.Sprintf("No daemon log at %s", path)}
		}
		return LogTailMsg{Content: content}
	}
}

// tailFile returns up to limit trailing bytes of path, starting at a line
// boundary.
func tailFile(path string, limit int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	offset := info.Size() - limit
	if offset < 0 {
		offset = 0
	}
	data, err := io.ReadAll(io.NewSectionReader(f, offset, info.Size()-offset))
	if err != nil {
		return "", err
	}
	if offset > 0 {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			data = data[i+1:]
		}
	}
	return string(bytes.TrimRight(data, "\n")), nil
}

func togglePowerCmd() tea.Cmd {
	return func() tea.Msg {
		if _, err := config.SignalDaemon(syscall.SIGUSR1); err != nil {
			return ErrorMsg{Err: err}
		}
		return nil
	}
}
