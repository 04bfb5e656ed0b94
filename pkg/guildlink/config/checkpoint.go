package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultCheckpointSchedule is how often the cursor is written when the
// checkpoint block gives no schedule.
const DefaultCheckpointSchedule = "@every 30s"

// Checkpoint describes where and how often the resumption cursor is
// persisted, so a restarted process resumes where the last one stopped.
type Checkpoint struct {
	File     string
	Schedule string
	Location *time.Location
}

// LoadCursor reads a cursor written by SaveCursor. A missing file yields ""
// and no error.
func LoadCursor(file string) (string, error) {
	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read checkpoint: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveCursor replaces the checkpoint file's content with cursor. The write
// goes through a temporary file so readers never see a partial cursor.
func SaveCursor(file, cursor string) error {
	tmp, err := os.CreateTemp(filepath.Dir(file), "."+filepath.Base(file)+".*")
	if err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(cursor + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), file); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// Checkpointer writes the cursor on a cron schedule.
type Checkpointer struct {
	file   string
	cursor func() string
	logger *zap.Logger
	cron   *cron.Cron

	mu    sync.Mutex
	saved string
}

// Start schedules periodic saves of the value returned by cursor.
func (c *Checkpoint) Start(cursor func() string, logger *zap.Logger) (*Checkpointer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	schedule := c.Schedule
	if schedule == "" {
		schedule = DefaultCheckpointSchedule
	}
	location := c.Location
	if location == nil {
		location = time.Local
	}

	cp := &Checkpointer{
		file:   c.File,
		cursor: cursor,
		logger: logger,
	}
	cp.cron = cron.New(
		cron.WithLogger(NewZapCronLogger(logger)),
		cron.WithParser(cronParser),
		cron.WithLocation(location),
	)

	_, err := cp.cron.AddFunc(schedule, func() {
		if err := cp.Save(); err != nil {
			logger.Warn("Failed to save checkpoint", zap.String("file", cp.file), zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid checkpoint schedule %q: %w", schedule, err)
	}

	cp.cron.Start()
	return cp, nil
}

// Save writes the current cursor if it changed since the last save.
func (cp *Checkpointer) Save() error {
	cursor := cp.cursor()

	cp.mu.Lock()
	defer cp.mu.Unlock()

	if cursor == "" || cursor == cp.saved {
		return nil
	}
	if err := SaveCursor(cp.file, cursor); err != nil {
		return err
	}
	cp.saved = cursor
	cp.logger.Debug("Checkpoint saved", zap.String("file", cp.file), zap.String("lastMessageId", cursor))
	return nil
}

// Stop cancels the schedule, waits for a running save and writes a final one.
func (cp *Checkpointer) Stop() error {
	<-cp.cron.Stop().Done()
	return cp.Save()
}
