package gofi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gofi/config"
	"gofi/failureManager"
	"gofi/runner"
)

// Prepare a runner for the deployment.
//
// The run sequence is compiled before the runner is returned, so a malformed sequence is reported here and nothing is started.
func PrepareRunner(deployment config.Deployment, opts ...RunnerOption) (*runner.Runner, error) {
	var (
		fm         failureManager.FailureManager = failureManager.Funcs{}
		runnerOpts []runner.Option
	)

	for _, opt := range opts {
		switch t := opt.(type) {
		case config.FailureManagerOption:
			fm = t.Fm
		case config.PollIntervalOption:
			runnerOpts = append(runnerOpts, runner.WithPollInterval(t.Interval))
		case config.WaitIntervalOption:
			runnerOpts = append(runnerOpts, runner.WithWaitInterval(t.Interval))
		case config.LoggerOption:
			runnerOpts = append(runnerOpts, runner.WithLogger(t.Logger))
		case config.RunIDOption:
			runnerOpts = append(runnerOpts, runner.WithRunID(t.ID))
		case config.RecordChanBufferOption:
			runnerOpts = append(runnerOpts, runner.WithRecordBuffer(t.Size))
		}
	}
	return runner.New(deployment, fm, runnerOpts...)
}

// Run the deployment until the run sequence is complete or a timeout expires.
//
// The run is always stopped before returning.
func Run(ctx context.Context, deployment config.Deployment, wait runner.WaitOptions, opts ...RunnerOption) error {
	r, err := PrepareRunner(deployment, opts...)
	if err != nil {
		return err
	}
	if err := r.Start(ctx); err != nil {
		return err
	}
	wait.StopOnComplete = false
	waitErr := r.Wait(ctx, wait)
	return errors.Join(waitErr, r.Stop(context.WithoutCancel(ctx)))
}

type RunnerOption interface {
	RunnerOpt()
}

// Use fm to deploy nodes and apply faults
func WithFailureManager(fm failureManager.FailureManager) RunnerOption {
	return config.FailureManagerOption{Fm: fm}
}

func PollInterval(d time.Duration) RunnerOption {
	return config.PollIntervalOption{Interval: d}
}

func WaitInterval(d time.Duration) RunnerOption {
	return config.WaitIntervalOption{Interval: d}
}

func WithLogger(logger *slog.Logger) RunnerOption {
	return config.LoggerOption{Logger: logger}
}

func RunID(id string) RunnerOption {
	return config.RunIDOption{ID: id}
}

func RecordChanSize(size int) RunnerOption {
	return config.RecordChanBufferOption{Size: size}
}
