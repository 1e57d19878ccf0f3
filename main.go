package main

import (
	"context"
	"os"
)

var App *PoolApp

func main() {
	App = initApp()
	defer App.close()

	err := App.cliCmd.Run(context.Background(), os.Args)
	if err != nil {
		App.logger.Error("Error in execution:", "msg", err)
		App.close()
		os.Exit(1)
	}
}
