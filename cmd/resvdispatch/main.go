package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"resvwatch/internal/config"
	"resvwatch/internal/dispatch"
	appLog "resvwatch/internal/log"
)

// resvdispatch fires the GitHub Actions workflow that runs resvwatch. Run
// it from any scheduler that cannot run resvwatch itself.
func main() {
	ref := flag.String("ref", "", "Git ref to dispatch on (overrides DISPATCH_REF)")
	flag.Parse()

	conf := config.LoadDispatch()
	if *ref != "" {
		conf.Ref = *ref
	}
	appLog.Setup(conf.LogLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &dispatch.Client{
		Token:    conf.Token,
		Owner:    conf.Owner,
		Repo:     conf.Repo,
		Workflow: conf.Workflow,
		Ref:      conf.Ref,
		BaseURL:  conf.BaseURL,
	}
	if err := c.Dispatch(ctx); err != nil {
		appLog.Error("dispatch failed", err, "repo", conf.Owner+"/"+conf.Repo, "workflow", conf.Workflow)
		stop()
		os.Exit(1)
	}
}
