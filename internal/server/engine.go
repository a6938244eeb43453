package server

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eternalApril/actorhost/internal/config"
	"github.com/eternalApril/actorhost/internal/gc"
	"github.com/eternalApril/actorhost/internal/persistence"
	"github.com/eternalApril/actorhost/internal/resp"
	"github.com/eternalApril/actorhost/internal/storage"
	"go.uber.org/zap"
)

// Engine coordinates the execution of commands and manages the background tasks of the host
type Engine struct {
	commands       map[string]command      // Registry of available commands (the key is the command name in uppercase)
	storage        storage.Registry        // Activation table
	cfg            *config.Config          // Configuration engine
	collector      *gc.Collector           // Idle actor collector
	aof            *persistence.AOF        // AOF instance
	snapshots      persistence.Snapshotter // Snapshot backend, nil when disabled
	closeSnapshots func() error            // Releases the snapshot backend
	stopSave       chan struct{}           // Channel for the auto-save stop signal
	stopOnce       sync.Once               // Ensures that the stop happens only once
	bgSaves        sync.WaitGroup          // BGSAVE goroutines in flight
	journalMu      sync.Mutex              // Orders table changes with their AOF records
	logger         *zap.Logger
}

// NewEngine initializes the engine, registers the commands, restores the persisted
// activations and, if enabled in the config, starts the idle actor collector
func NewEngine(s storage.Registry, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	engine := &Engine{
		commands: make(map[string]command),
		storage:  s,
		cfg:      cfg,
		stopSave: make(chan struct{}),
		logger:   logger,
	}
	engine.registerBasicCommand()

	if cfg.Persistence.AOF.Enabled {
		aof, err := persistence.NewAOF(
			cfg.Persistence.AOF.Filename,
			cfg.Persistence.AOF.Fsync,
			logger,
		)
		if err != nil {
			return nil, err
		}
		engine.aof = aof

		// Restore existing AOF
		engine.restoreAOF()
	}

	if cfg.Persistence.Snapshot.Enabled {
		snapshots, closeFn, err := persistence.OpenSnapshotter(cfg.Persistence.Snapshot, logger)
		if err != nil {
			engine.closeAOF()
			return nil, err
		}
		engine.snapshots = snapshots
		engine.closeSnapshots = closeFn

		// the journal is more recent than any snapshot
		if !cfg.Persistence.AOF.Enabled {
			if err := snapshots.Load(s); err != nil {
				logger.Error("Failed to load snapshot", zap.Error(err))
			}
		}

		if cfg.Persistence.Snapshot.Interval != "" {
			go engine.startAutoSave(cfg.Persistence.Snapshot.Interval)
		}
	}

	gcOpts := []gc.Option{gc.WithOnCollect(engine.journalDeactivations)}
	if engine.aof != nil {
		gcOpts = append(gcOpts, gc.WithLocker(&engine.journalMu))
	}
	engine.collector = gc.New(s, cfg.GC.Settings, logger.Named("gc"), gcOpts...)

	if cfg.GC.Enabled {
		engine.collector.Start()
	}

	return engine, nil
}

func (e *Engine) startAutoSave(intervalStr string) {
	interval, err := time.ParseDuration(intervalStr)
	if err != nil || interval <= 0 {
		e.logger.Error("Invalid snapshot interval", zap.String("interval", intervalStr), zap.Error(err))
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.snapshots.Save(e.storage); err != nil {
				e.logger.Error("Auto-save snapshot failed", zap.Error(err))
			}
		case <-e.stopSave:
			return
		}
	}
}

func (e *Engine) restoreAOF() {
	cmds, err := e.aof.Load()
	if err != nil {
		e.logger.Error("Failed to load AOF", zap.Error(err))
		return
	}

	e.logger.Info("Restoring AOF...", zap.Int("commands", len(cmds)))

	for _, cmdVal := range cmds {
		if cmdVal.Type != resp.TypeArray || len(cmdVal.Array) == 0 {
			continue
		}

		name := strings.ToUpper(string(cmdVal.Array[0].String))
		args := cmdVal.Array[1:]

		cmd, ok := e.commands[name]
		if ok && checkArity(name, len(args)) {
			cmd.execute(&context{args: args, storage: e.storage})
		}
	}
	e.logger.Info("AOF restore finished", zap.Int("actors", e.storage.Len()))
}

// journalDeactivations records collector removals so a replay does not bring the actors back
func (e *Engine) journalDeactivations(ids []string) {
	if e.aof == nil {
		return
	}
	e.journal("DEACTIVATE", resp.MakeBulkStrings(ids...).Array)
}

func (e *Engine) journal(name string, args []resp.Value) {
	payload, err := resp.SerializeCommand(name, args)
	if err != nil {
		e.logger.Error("Failed to serialize command for AOF", zap.Error(err))
		return
	}
	if err := e.aof.Write(payload); err != nil {
		e.logger.Warn("AOF write skipped", zap.String("cmd", name), zap.Error(err))
	}
}

// register adds a new command to the engine. The command name is uppercase
func (e *Engine) register(name string, cmd command) {
	e.commands[strings.ToUpper(name)] = cmd
}

// registerBasicCommand fills the registry with standard commands
func (e *Engine) registerBasicCommand() {
	e.register("PING", commandFunc(ping))
	e.register("COMMAND", commandFunc(cmd))
	e.register("ACTIVATE", commandFunc(activate))
	e.register("TOUCH", commandFunc(touch))
	e.register("DEACTIVATE", commandFunc(deactivate))
	e.register("EXISTS", commandFunc(exists))
	e.register("IDLE", commandFunc(idle))
	e.register("ACQUIRE", commandFunc(acquire))
	e.register("RELEASE", commandFunc(release))
	e.register("ACTORS", commandFunc(actors))

	e.register("GCSETTINGS", commandFunc(func(ctx *context) resp.Value {
		s := e.collector.Settings()
		return resp.MakeArray([]resp.Value{
			resp.MakeInteger(s.ScanIntervalInSeconds()),
			resp.MakeInteger(s.IdleTimeoutInSeconds()),
		})
	}))

	e.register("GCSTATS", commandFunc(func(ctx *context) resp.Value {
		st := e.collector.Stats()
		lastScan := int64(0)
		if !st.LastScan.IsZero() {
			lastScan = st.LastScan.Unix()
		}
		return resp.MakeBulkStrings(
			"scans", strconv.FormatUint(st.Scans, 10),
			"collected", strconv.FormatUint(st.Collected, 10),
			"last_scan", strconv.FormatInt(lastScan, 10),
			"last_scanned", strconv.Itoa(st.LastScanned),
			"last_collected", strconv.Itoa(st.LastCollected),
		)
	}))

	e.register("GCSCAN", commandFunc(func(ctx *context) resp.Value {
		res := e.collector.Scan()
		return resp.MakeInteger(int64(len(res.Collected)))
	}))

	e.register("SAVE", commandFunc(func(ctx *context) resp.Value {
		if e.snapshots == nil {
			return resp.MakeErrorf("snapshots disabled")
		}
		if err := e.snapshots.Save(e.storage); err != nil {
			return resp.MakeErrorf("%s", err.Error())
		}
		return resp.MakeOK()
	}))

	e.register("BGSAVE", commandFunc(func(ctx *context) resp.Value {
		if e.snapshots == nil {
			return resp.MakeErrorf("snapshots disabled")
		}
		e.bgSaves.Add(1)
		go func() {
			defer e.bgSaves.Done()
			if err := e.snapshots.Save(e.storage); err != nil {
				e.logger.Error("Background save failed", zap.Error(err))
			}
		}()
		return resp.MakeSimpleString("Background saving started")
	}))
}

// Execute finds the command by name and executes it with the passed arguments.
// If the command is not found, returns an error in the RESP format
func (e *Engine) Execute(name string, args []resp.Value) resp.Value {
	name = strings.ToUpper(name)

	if e.logger.Core().Enabled(zap.DebugLevel) {
		e.logger.Debug("executing command",
			zap.String("cmd", name),
			zap.Int("args_count", len(args)),
		)
	}

	cmd, ok := e.commands[name]
	if !ok {
		return resp.MakeErrorf("unknown command '%s'", name)
	}

	if !checkArity(name, len(args)) {
		return resp.MakeErrorWrongNumberOfArguments(name)
	}

	ctx := &context{
		args:    args,
		storage: e.storage,
	}

	if e.aof == nil || !journaled(name) {
		return cmd.execute(ctx)
	}

	// apply and journal as one step, ordered with the collector removals
	e.journalMu.Lock()
	defer e.journalMu.Unlock()

	res := cmd.execute(ctx)
	if res.Type != resp.TypeError {
		switch name {
		case "ACTIVATE":
			// the generated id has to be replayed, not a fresh one
			e.journal(name, []resp.Value{resp.MakeBulkString(string(res.String))})
		case "DEACTIVATE":
			if res.Integer > 0 {
				e.journal(name, args)
			}
		}
	}

	return res
}

// journaled reports whether the command changes the table and goes to the AOF
func journaled(name string) bool {
	return name == "ACTIVATE" || name == "DEACTIVATE"
}

// GCSettings returns the timing of the collector
func (e *Engine) GCSettings() config.GCSettings {
	return e.collector.Settings()
}

// GCStats returns the collector counters
func (e *Engine) GCStats() gc.Stats {
	return e.collector.Stats()
}

// ActorCount returns the number of active actors
func (e *Engine) ActorCount() int {
	return e.storage.Len()
}

// Shutdown stops the background services, writes a last snapshot and closes the journal
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		e.collector.Stop()
		close(e.stopSave)
		e.bgSaves.Wait()

		if e.snapshots != nil {
			if err := e.snapshots.Save(e.storage); err != nil {
				e.logger.Error("Final snapshot failed", zap.Error(err))
			}
			if err := e.closeSnapshots(); err != nil {
				e.logger.Warn("Closing snapshot backend failed", zap.Error(err))
			}
		}

		e.closeAOF()
		e.logger.Info("Engine stopped")
	})
}

func (e *Engine) closeAOF() {
	if e.aof == nil {
		return
	}
	if err := e.aof.Close(); err != nil {
		e.logger.Warn("Closing AOF failed", zap.Error(err))
	}
}
