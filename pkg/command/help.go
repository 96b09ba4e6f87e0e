package command

import (
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/cdt/pkg/logger"
)

// Help prints help for one command, or the app help with the command list.
// It sends nothing.
type Help struct {
	Base
	Topic string
	Ctx   *cli.Context
}

func (h *Help) Init(Sender) error {
	if h.Topic != "" {
		err := cli.ShowCommandHelp(h.Ctx, h.Topic)
		if err == nil {
			return nil
		}
		logger.Error("No help for %q", h.Topic)
	}
	return cli.ShowAppHelp(h.Ctx)
}
