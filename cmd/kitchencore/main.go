package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/area"
	"github.com/prontocore/kitchen/internal/assignment"
	"github.com/prontocore/kitchen/internal/clock"
	"github.com/prontocore/kitchen/internal/config"
	"github.com/prontocore/kitchen/internal/customer"
	"github.com/prontocore/kitchen/internal/diningsession"
	"github.com/prontocore/kitchen/internal/employee"
	"github.com/prontocore/kitchen/internal/migration"
	"github.com/prontocore/kitchen/internal/observability"
	"github.com/prontocore/kitchen/internal/order"
	"github.com/prontocore/kitchen/internal/pii"
	"github.com/prontocore/kitchen/internal/realtime"
	"github.com/prontocore/kitchen/internal/splitbill"
	"github.com/prontocore/kitchen/internal/table"
	"github.com/prontocore/kitchen/internal/waitercall"
	"github.com/prontocore/kitchen/pkg/db"
	"go.uber.org/fx"
)

var version = "dev"

func main() {
	app := fx.New(
		fx.Provide(config.Load),
		observability.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		clock.Module,
		pii.Module,
		realtime.Module,

		area.Module,
		table.Module,
		employee.Module,
		customer.Module,
		order.Module,
		diningsession.Module,
		waitercall.Module,
		splitbill.Module,
		assignment.Module,

		migration.Module,
	)
	app.Run()
}
