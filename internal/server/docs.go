package server

import (
	"sort"
	"strings"

	"github.com/eternalApril/actorhost/internal/resp"
)

type commandMetadata struct {
	arity    int      // Arity includes the command name itself, negative means "at least"
	flags    []string // read, write, fast, etc
	firstKey int      // 1-based index of the first actor id
	lastKey  int      // 1-based index of the last actor id
	step     int      // Step count for finding ids
}

var (
	commandRegistry = map[string]commandMetadata{
		"PING":       {-1, []string{"fast", "stale"}, 0, 0, 0},
		"COMMAND":    {-1, []string{"random", "loading", "stale"}, 0, 0, 0},
		"ACTIVATE":   {-1, []string{"write", "fast"}, 1, 1, 1},
		"TOUCH":      {2, []string{"write", "fast"}, 1, 1, 1},
		"DEACTIVATE": {-2, []string{"write"}, 1, -1, 1},
		"EXISTS":     {2, []string{"readonly", "fast"}, 1, 1, 1},
		"IDLE":       {2, []string{"readonly", "fast"}, 1, 1, 1},
		"ACQUIRE":    {2, []string{"write", "fast"}, 1, 1, 1},
		"RELEASE":    {2, []string{"write", "fast"}, 1, 1, 1},
		"ACTORS":     {1, []string{"readonly", "fast"}, 0, 0, 0},
		"GCSETTINGS": {1, []string{"readonly", "fast", "stale"}, 0, 0, 0},
		"GCSTATS":    {1, []string{"readonly", "fast", "stale"}, 0, 0, 0},
		"GCSCAN":     {1, []string{"write"}, 0, 0, 0},
		"SAVE":       {1, []string{"admin", "noscript"}, 0, 0, 0},
		"BGSAVE":     {1, []string{"admin", "noscript"}, 0, 0, 0},
	}
)

// commandDoc stores a description for the command
type commandDoc struct {
	summary    string
	complexity string
	group      string
	since      string
}

// commandDocsRegistry documentation registry
var commandDocsRegistry = map[string]commandDoc{
	"PING": {
		summary:    "Ping the server.",
		complexity: "O(1)",
		group:      "connection",
		since:      "1.0.0",
	},
	"COMMAND": {
		summary:    "Get array of command details.",
		complexity: "O(N) where N is the number of commands to look up.",
		group:      "server",
		since:      "1.0.0",
	},
	"ACTIVATE": {
		summary:    "Activate an actor, generating an id when none is given.",
		complexity: "O(1)",
		group:      "actor",
		since:      "1.0.0",
	},
	"TOUCH": {
		summary:    "Mark an actor as used, resetting its idle time.",
		complexity: "O(1)",
		group:      "actor",
		since:      "1.0.0",
	},
	"DEACTIVATE": {
		summary:    "Deactivate one or more actors.",
		complexity: "O(N) where N is the number of actors that will be removed.",
		group:      "actor",
		since:      "1.0.0",
	},
	"EXISTS": {
		summary:    "Determine if an actor is active.",
		complexity: "O(1)",
		group:      "actor",
		since:      "1.0.0",
	},
	"IDLE": {
		summary:    "Get the number of collector scans an actor has stayed unused.",
		complexity: "O(1)",
		group:      "actor",
		since:      "1.0.0",
	},
	"ACQUIRE": {
		summary:    "Register a call in flight; busy actors are never collected.",
		complexity: "O(1)",
		group:      "actor",
		since:      "1.0.0",
	},
	"RELEASE": {
		summary:    "End a call registered with ACQUIRE.",
		complexity: "O(1)",
		group:      "actor",
		since:      "1.0.0",
	},
	"ACTORS": {
		summary:    "Return the number of active actors.",
		complexity: "O(S) where S is the number of shards.",
		group:      "actor",
		since:      "1.0.0",
	},
	"GCSETTINGS": {
		summary:    "Return the scan interval and the idle timeout in seconds.",
		complexity: "O(1)",
		group:      "gc",
		since:      "1.0.0",
	},
	"GCSTATS": {
		summary:    "Return the counters of the idle actor collector.",
		complexity: "O(1)",
		group:      "gc",
		since:      "1.0.0",
	},
	"GCSCAN": {
		summary:    "Run a collector pass now and return the number of collected actors.",
		complexity: "O(N) where N is the number of active actors.",
		group:      "gc",
		since:      "1.0.0",
	},
	"SAVE": {
		summary:    "Synchronously save the activation table.",
		complexity: "O(N) where N is the number of active actors.",
		group:      "server",
		since:      "1.0.0",
	},
	"BGSAVE": {
		summary:    "Asynchronously save the activation table.",
		complexity: "O(N) where N is the number of active actors.",
		group:      "server",
		since:      "1.0.0",
	},
}

// checkArity validates the argument count (without the command name) against the registry
func checkArity(name string, args int) bool {
	meta, ok := commandRegistry[name]
	if !ok {
		return true
	}

	if meta.arity >= 0 {
		return args+1 == meta.arity
	}
	return args+1 >= -meta.arity
}

func makeFlagsArray(flags []string) resp.Value {
	vals := make([]resp.Value, len(flags))
	for i, f := range flags {
		vals[i] = resp.MakeSimpleString(f)
	}
	return resp.MakeArray(vals)
}

func makeInfoCmdArray(name string) []resp.Value {
	meta := commandRegistry[name]
	return []resp.Value{
		resp.MakeBulkString(strings.ToLower(name)),
		resp.MakeInteger(int64(meta.arity)),
		makeFlagsArray(meta.flags),
		resp.MakeInteger(int64(meta.firstKey)),
		resp.MakeInteger(int64(meta.lastKey)),
		resp.MakeInteger(int64(meta.step)),
	}
}

func sortedCommandNames() []string {
	names := make([]string, 0, len(commandRegistry))
	for name := range commandRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func getAllCommands() resp.Value {
	cmdArray := make([]resp.Value, 0, len(commandRegistry))
	for _, name := range sortedCommandNames() {
		cmdArray = append(cmdArray, resp.MakeArray(makeInfoCmdArray(name)))
	}
	return resp.MakeArray(cmdArray)
}

// getCommandsDocs returns documentation for specified commands or all commands
// Format: [Name, [Summary, val, Since, val...], Name, [...]]
func getCommandsDocs(args []resp.Value) resp.Value {
	var targets []string

	if len(args) == 0 {
		targets = sortedCommandNames()
	} else {
		targets = make([]string, 0, len(args))
		for _, arg := range args {
			targets = append(targets, strings.ToUpper(string(arg.String)))
		}
	}

	result := make([]resp.Value, 0, len(targets)*2)

	for _, name := range targets {
		doc, ok := commandDocsRegistry[name]
		if !ok {
			continue
		}

		result = append(result, resp.MakeBulkString(strings.ToLower(name)))
		result = append(result, resp.MakeBulkStrings(
			"summary", doc.summary,
			"since", doc.since,
			"group", doc.group,
			"complexity", doc.complexity,
		))
	}

	return resp.MakeArray(result)
}
