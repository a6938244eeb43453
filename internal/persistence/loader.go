package persistence

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/eternalApril/actorhost/internal/resp"
	"go.uber.org/zap"
)

// Load reads the journal and returns the commands to be replayed.
// A missing file is a fresh start. A command cut short by a crash ends the replay
func (a *AOF) Load() ([]resp.Value, error) {
	file, err := os.Open(a.filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("aof: load: %w", err)
	}
	defer file.Close() //nolint:errcheck

	reader := resp.NewDecoder(file)
	var commands []resp.Value

	for {
		val, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				a.logger.Warn("AOF ends with a truncated command, ignoring it", zap.Int("commands", len(commands)))
				break
			}
			return nil, fmt.Errorf("aof: load: %w", err)
		}
		commands = append(commands, val)
	}

	return commands, nil
}
