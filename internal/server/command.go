package server

import (
	"github.com/eternalApril/actorhost/internal/resp"
	"github.com/eternalApril/actorhost/internal/storage"
)

// context carries the arguments of one command and the table it runs against
type context struct {
	args    []resp.Value
	storage storage.Registry
}

// arg returns the i-th argument as a string
func (c *context) arg(i int) string {
	return string(c.args[i].String)
}

type command interface {
	execute(ctx *context) resp.Value
}

type commandFunc func(ctx *context) resp.Value

func (c commandFunc) execute(ctx *context) resp.Value {
	return c(ctx)
}
