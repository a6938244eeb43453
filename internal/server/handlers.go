package server

import (
	"strings"

	"github.com/eternalApril/actorhost/internal/resp"
	"github.com/eternalApril/actorhost/internal/storage"
	"github.com/google/uuid"
)

// ping returns PONG or echoes its single argument
func ping(ctx *context) resp.Value {
	switch len(ctx.args) {
	case 0:
		return resp.MakeSimpleString("PONG")
	case 1:
		return resp.MakeBulkString(ctx.arg(0))
	}
	return resp.MakeErrorWrongNumberOfArguments("PING")
}

// cmd implements COMMAND, COMMAND COUNT and COMMAND DOCS
func cmd(ctx *context) resp.Value {
	if len(ctx.args) == 0 {
		return getAllCommands()
	}

	switch strings.ToUpper(ctx.arg(0)) {
	case "COUNT":
		return resp.MakeInteger(int64(len(commandRegistry)))
	case "DOCS":
		return getCommandsDocs(ctx.args[1:])
	}

	return resp.MakeErrorf("unknown subcommand '%s'", ctx.arg(0))
}

// activate creates the actor if needed and replies with its id
func activate(ctx *context) resp.Value {
	if len(ctx.args) > 1 {
		return resp.MakeErrorWrongNumberOfArguments("ACTIVATE")
	}

	var id string
	if len(ctx.args) == 1 {
		id = ctx.arg(0)
		if id == "" {
			return resp.MakeErrorf("actor id must not be empty")
		}
		if len(id) > storage.MaxIDLen {
			return resp.MakeErrorf("actor id longer than %d bytes", storage.MaxIDLen)
		}
	} else {
		id = uuid.NewString()
	}

	ctx.storage.Activate(id)
	return resp.MakeBulkString(id)
}

func touch(ctx *context) resp.Value {
	return resp.MakeBool(ctx.storage.Touch(ctx.arg(0)))
}

// deactivate replies with the number of actors that were active
func deactivate(ctx *context) resp.Value {
	var n int64
	for i := range ctx.args {
		if ctx.storage.Deactivate(ctx.arg(i)) {
			n++
		}
	}
	return resp.MakeInteger(n)
}

func exists(ctx *context) resp.Value {
	return resp.MakeBool(ctx.storage.Exists(ctx.arg(0)))
}

// idle replies with the idle scan count, or -2 if the actor is not active
func idle(ctx *context) resp.Value {
	info, ok := ctx.storage.Info(ctx.arg(0))
	if !ok {
		return resp.MakeInteger(-2)
	}
	return resp.MakeInteger(info.IdleScans)
}

func acquire(ctx *context) resp.Value {
	return resp.MakeBool(ctx.storage.Acquire(ctx.arg(0)))
}

func release(ctx *context) resp.Value {
	return resp.MakeBool(ctx.storage.Release(ctx.arg(0)))
}

func actors(ctx *context) resp.Value {
	return resp.MakeInteger(int64(ctx.storage.Len()))
}
