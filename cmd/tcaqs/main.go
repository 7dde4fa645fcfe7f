package main

import (
	"context"

	"tcaqs/cmd/tcaqs/commands"
	"tcaqs/lib/osutil"
)

func main() {
	ctx, cancel := osutil.SignalContext(context.Background())
	defer cancel()
	commands.ExecuteContext(ctx)
}
