package main

import (
	"fmt"
	"os"

	"github.com/scribear/scribear/internal/config"
	"github.com/scribear/scribear/internal/ipc"
	"github.com/scribear/scribear/internal/jobs"
	"github.com/scribear/scribear/internal/logging"
	"github.com/scribear/scribear/internal/provider"
	"github.com/scribear/scribear/internal/worker"
)

// runWorker is the worker self-reexec entrypoint (§5): it communicates
// with the main process exclusively over stdin/stdout, never writing
// logs directly (they travel as LOGGING results instead, per
// internal/logging.Forwarder).
func runWorker() {
	transport := ipc.NewTransport(os.Stdout, os.Stdin)
	log := logging.NewForwarder(transport, logging.ParseLevel(os.Getenv("LOG_LEVEL")))

	specs, factories, err := buildContextTable(os.Getenv("PROVIDER_CONFIG_PATH"))
	if err != nil {
		_ = transport.SendResult(ipc.Result{Kind: ipc.ResultInitializeWorker, WorkerError: err.Error()})
		os.Exit(1)
	}

	table := jobs.NewContextTable(specs, factories)
	implFactory := provider.NewImplFactory()
	runtime := worker.NewRuntime(log, transport, table, implFactory)

	_ = transport.SendResult(ipc.Result{Kind: ipc.ResultInitializeWorker})

	taskCh := make(chan ipc.Task)
	go func() {
		defer close(taskCh)
		for {
			task, err := transport.RecvTask()
			if err != nil {
				return
			}
			taskCh <- task
		}
	}()

	runtime.Run(taskCh, func(contextID string) (any, error) {
		return table.Get(log, contextID)
	})
}

func buildContextTable(providerConfigPath string) ([]jobs.ContextSpec, map[string]jobs.ContextFactory, error) {
	if providerConfigPath == "" {
		return nil, nil, fmt.Errorf("worker: PROVIDER_CONFIG_PATH not set")
	}

	doc, err := config.LoadProviderConfigDocument(providerConfigPath)
	if err != nil {
		return nil, nil, err
	}

	specs := contextSpecsFromDocument(doc)
	factories := make(map[string]jobs.ContextFactory, len(doc.Contexts))

	decoderFactory := provider.NewDecoderContextFactory()
	vadFactory := provider.NewVADContextFactory()

	for _, c := range doc.Contexts {
		switch c.Factory {
		case "vad":
			factories[c.UID] = vadFactory
		default:
			factories[c.UID] = decoderFactory
		}
	}

	return specs, factories, nil
}
