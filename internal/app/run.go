package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/builder"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/executor"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/invocation"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/node"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/resource"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// Run loads the graph, executes it once with the configured input and
// prints every reported result to the app's output.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	model, conv, err := a.loader.Load(ctx, a.config.GraphPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.logger.Debug("Configuration loaded and translated into unified model.")

	resources := resource.NewRegistry(a.logger)
	defer resources.Close()

	reg := a.newRegistry(ctx)
	reg.TrackResources(resources)
	defer func() {
		if cerr := reg.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	vars, err := loadVars(a.config.VarsFile, a.config.Vars)
	if err != nil {
		return err
	}

	nodeOpts := []node.Option{node.WithLogger(a.logger), node.WithResources(resources)}
	if a.config.Seed != 0 {
		nodeOpts = append(nodeOpts, node.WithSeed(a.config.Seed))
	}
	built, err := builder.Build(ctx, model, conv, reg, builder.Options{Vars: vars, NodeOptions: nodeOpts})
	if err != nil {
		return fmt.Errorf("failed to build graph: %w", err)
	}

	telemetry := invocation.Fanout{invocation.LogTelemetry{}}
	var observers []executor.Observer
	if a.config.SocketIOURL != "" {
		sink, err := a.dialSink(ctx, a.config.SocketIOURL)
		if err != nil {
			built.Close()
			return fmt.Errorf("failed to connect event sink: %w", err)
		}
		defer sink.Close()
		telemetry = append(telemetry, sink)
		observers = append(observers, sink)
	}

	execOpts := []executor.Option{
		executor.WithTimeout(a.config.Timeout),
		executor.WithRetry(a.config.Retries+1, a.config.RetryBackoff),
		executor.WithTelemetry(telemetry),
		executor.WithLogger(a.logger),
	}
	if a.config.Workers > 0 {
		execOpts = append(execOpts, executor.WithWorkers(a.config.Workers))
	}
	exec := executor.New(execOpts...)
	defer exec.Close()
	for _, o := range observers {
		exec.AddObserver(o)
	}

	g, err := exec.Compile(ctx, built.Definition)
	if err != nil {
		built.Close()
		return fmt.Errorf("failed to compile graph: %w", err)
	}
	defer g.Close()

	if a.config.HealthcheckPort > 0 {
		stop := a.startHealthcheckServer(ctx, a.config.HealthcheckPort, exec)
		defer stop()
	}

	input, err := a.input()
	if err != nil {
		return err
	}

	a.logger.Info("Starting graph execution.", "nodes", g.Len(), "entries", g.Entries(), "results", g.Results())
	outcome, err := exec.Execute(ctx, input)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	if err := printResults(a.outW, outcome.Results); err != nil {
		return err
	}
	a.logger.Info("Execution finished.", "status", outcome.Status.String(), "results", len(outcome.Results))

	if outcome.Status != executor.StatusFinished {
		return fmt.Errorf("execution %s: %w", outcome.Status, outcome.Err)
	}
	return nil
}

// input builds the entry value from the configured text or audio file.
func (a *App) input() (value.Value, error) {
	if a.config.InputText != "" {
		return value.NewText(a.config.InputText), nil
	}
	data, err := os.ReadFile(a.config.InputAudioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read input audio: %w", err)
	}
	return value.NewAudio(data, a.config.AudioSampleRate, audioFormat(a.config.InputAudioPath)), nil
}

// printResults writes one JSON line per result. Audio payloads are omitted.
func printResults(w io.Writer, results []executor.Result) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		v := value.Export(r.Value)
		delete(v, "data")
		if err := enc.Encode(map[string]any{"node": r.NodeID, "value": v}); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	return nil
}
