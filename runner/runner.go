package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"gofi/client"
	"gofi/config"
	"gofi/coordinator"
	"gofi/event"
	"gofi/failureManager"
	"gofi/sequence"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultWaitInterval = time.Second
)

type state int

const (
	idle state = iota
	running
	stopped
)

// The Runner controls a single run of a deployment.
//
// It compiles the run sequence before anything is started, serves the coordinator, starts the nodes and fires the external events of the sequence when their dependencies are met.
// Runtime actions, whether they are caused by external events or by commands, are executed one at a time by a command loop.
type Runner struct {
	deployment config.Deployment
	graph      *sequence.Graph
	fm         *failureManager.StatusManager
	logger     *slog.Logger
	runID      string

	pollInterval time.Duration
	waitInterval time.Duration
	recordBuffer int

	coord    *coordinator.Coordinator
	httpSrv  *coordinator.HTTPServer
	grpcSrv  *coordinator.GRPCServer
	httpAddr net.Addr
	grpcAddr net.Addr

	cmd     chan command
	resp    chan error
	done    chan struct{}
	records chan Record

	mu     sync.Mutex
	state  state
	cancel context.CancelFunc
	loops  sync.WaitGroup

	// done and records are closed by a failed Start or by Stop, whichever comes first
	doneOnce    sync.Once
	recordsOnce sync.Once
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// Configure how often the dependencies of external events are checked.
// Nodes are told to poll the coordinator at the same interval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Runner) { r.pollInterval = d }
}

// Configure how often Wait checks whether the sequence is complete
func WithWaitInterval(d time.Duration) Option {
	return func(r *Runner) { r.waitInterval = d }
}

func WithRunID(id string) Option {
	return func(r *Runner) { r.runID = id }
}

// Configure how many records can be buffered before new records are dropped
func WithRecordBuffer(size int) Option {
	return func(r *Runner) { r.recordBuffer = size }
}

// Create a runner for the deployment.
//
// The run sequence is compiled immediately. Any compile error is returned and nothing is started.
// fm is the runtime engine used to deploy nodes and apply faults. If it is nil, runtime actions do nothing.
func New(deployment config.Deployment, fm failureManager.FailureManager, opts ...Option) (*Runner, error) {
	if err := deployment.Validate(); err != nil {
		return nil, err
	}
	graph, err := sequence.Compile(deployment.RunSequence, deployment.Events)
	if err != nil {
		return nil, fmt.Errorf("runner: %v: %w", deployment.Name, err)
	}
	if fm == nil {
		fm = failureManager.Funcs{}
	}

	r := &Runner{
		deployment:   deployment,
		graph:        graph,
		logger:       slog.Default(),
		runID:        uuid.NewString(),
		pollInterval: DefaultPollInterval,
		waitInterval: DefaultWaitInterval,
		recordBuffer: 100,

		cmd:  make(chan command),
		resp: make(chan error),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("run", r.runID, "deployment", deployment.Name)
	r.fm = failureManager.NewStatusManager(fm, r.logger)
	r.records = make(chan Record, r.recordBuffer)
	return r, nil
}

func (r *Runner) RunID() string {
	return r.runID
}

// The compiled run sequence
func (r *Runner) Graph() *sequence.Graph {
	return r.graph
}

// The coordinator of the run. Nil until the run is started.
func (r *Runner) Coordinator() *coordinator.Coordinator {
	return r.coord
}

// The address of the coordinator HTTP server. Nil until the run is started.
func (r *Runner) HTTPAddr() net.Addr {
	return r.httpAddr
}

// The address of the coordinator gRPC server. Nil if it is not started.
func (r *Runner) GRPCAddr() net.Addr {
	return r.grpcAddr
}

// Return a map of the node names and whether the node is currently running
func (r *Runner) CorrectNodes() map[string]bool {
	return r.fm.CorrectNodes()
}

// Subscribe to updates about node status
func (r *Runner) SubscribeStatus(id string, callback func(node string, status failureManager.Status)) {
	r.fm.Subscribe(id, callback)
}

// Subscribe to records of the runtime actions performed by the runner.
//
// The channel is closed when the run is stopped. Records are dropped if the buffer is full.
func (r *Runner) SubscribeRecords() <-chan Record {
	return r.records
}

// Start the run.
//
// Starts the coordinator and every node whose start is not itself an event of the sequence, and then begins firing external events.
// If anything fails to start, everything that was started is torn down and the error is returned.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != idle {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.state = running
	r.mu.Unlock()

	if err := r.start(ctx); err != nil {
		r.teardown(ctx)
		r.mu.Lock()
		r.state = stopped
		r.mu.Unlock()
		r.closeDone()
		r.closeRecords()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.commandLoop()
	for _, evt := range r.graph.External() {
		r.loops.Add(1)
		go r.fire(runCtx, evt)
	}
	r.logger.Info("run started", "sequence", r.graph.Expr(), "coordinator", r.httpAddr.String())
	return nil
}

func (r *Runner) start(ctx context.Context) error {
	r.coord = coordinator.New(r.graph, coordinator.WithLogger(r.logger))

	r.httpSrv = coordinator.NewHTTPServer(r.coord, r.logger)
	addr, err := r.httpSrv.Start(net.JoinHostPort("", strconv.Itoa(r.deployment.Coordinator.Port)))
	if err != nil {
		return fmt.Errorf("runner: start coordinator: %w", err)
	}
	r.httpAddr = addr

	if port := r.deployment.Coordinator.GRPCPort; port > 0 {
		r.grpcSrv = coordinator.NewGRPCServer(r.coord, r.logger)
		addr, err := r.grpcSrv.Start(net.JoinHostPort("", strconv.Itoa(port)))
		if err != nil {
			return fmt.Errorf("runner: start coordinator: %w", err)
		}
		r.grpcAddr = addr
	}

	return r.startNodes(ctx)
}

// Start all nodes concurrently, except the nodes that are started by an event of the sequence
func (r *Runner) startNodes(ctx context.Context) error {
	delayed := map[string]bool{}
	for _, evt := range r.graph.External() {
		if evt.Kind == event.NodeOperation && evt.NodeOp == event.Start {
			delayed[evt.Node] = true
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range r.deployment.Nodes {
		if delayed[n.Name] {
			r.logger.Debug("node start delayed by run sequence", "node", n.Name)
			continue
		}
		node := r.node(n.Name)
		g.Go(func() error {
			if err := r.fm.StartNode(gctx, node); err != nil {
				return fmt.Errorf("runner: start node %v: %w", node.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Tear down everything started by a failed start
func (r *Runner) teardown(ctx context.Context) {
	for _, name := range r.fm.Running() {
		if err := r.fm.KillNode(ctx, name); err != nil {
			r.logger.Error("failed to kill node during teardown", "node", name, "error", err)
		}
	}
	if r.httpSrv != nil {
		if err := r.httpSrv.Shutdown(ctx); err != nil {
			r.logger.Error("failed to shut down coordinator", "error", err)
		}
	}
	if r.grpcSrv != nil {
		r.grpcSrv.Stop()
	}
}

// The node with the environment needed to reach the coordinator
func (r *Runner) node(name string) failureManager.Node {
	n, _ := r.deployment.Node(name)
	env := make(map[string]string, len(n.Env)+6)
	for k, v := range n.Env {
		env[k] = v
	}
	env[client.EnvCoordinatorHost] = r.deployment.Coordinator.Host
	if addr, ok := r.httpAddr.(*net.TCPAddr); ok {
		env[client.EnvCoordinatorPort] = strconv.Itoa(addr.Port)
	}
	if addr, ok := r.grpcAddr.(*net.TCPAddr); ok {
		env[client.EnvCoordinatorGRPCPort] = strconv.Itoa(addr.Port)
	}
	env[client.EnvPollInterval] = r.pollInterval.String()
	env[client.EnvNode] = name
	env[client.EnvRunID] = r.runID
	return failureManager.Node{Name: name, Env: env}
}

// Wait until the dependencies of an external event are met, perform it and receive it.
//
// An event whose action fails is not received, so the events that depend on it never happen.
func (r *Runner) fire(ctx context.Context, evt event.Event) {
	defer r.loops.Done()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for !r.coord.DependenciesMet(evt.Name, false) {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	err := r.do(externalCmd{ctx: ctx, Evt: evt})
	if errors.Is(err, ErrStopped) {
		return
	}
	if err != nil {
		r.logger.Error("external event failed", "event", evt.Name, "error", err)
		return
	}
	r.coord.Receive(evt.Name)
}

// Send a command to the command loop and wait for the result
func (r *Runner) do(cmd command) error {
	select {
	case r.cmd <- cmd:
	case <-r.done:
		return ErrStopped
	}
	return <-r.resp
}

func (r *Runner) commandLoop() {
	for {
		cmd := <-r.cmd
		ctx := cmd.context()

		var err error
		switch t := cmd.(type) {
		case stopNodeCmd:
			err = r.fm.StopNode(ctx, t.Node)
			r.record("", "stop", t.Node, err)
		case killNodeCmd:
			err = r.fm.KillNode(ctx, t.Node)
			r.record("", "kill", t.Node, err)
		case restartNodeCmd:
			err = r.fm.RestartNode(ctx, r.node(t.Node))
			r.record("", "restart", t.Node, err)
		case externalCmd:
			err = r.execute(ctx, t.Evt)
		case stopCmd:
			r.resp <- r.stop(ctx)
			return
		}
		r.resp <- err
	}
}

// Perform the runtime action of an external event
func (r *Runner) execute(ctx context.Context, evt event.Event) error {
	var (
		err    error
		action = evt.Kind.String()
	)
	switch evt.Kind {
	case event.NodeOperation:
		action = evt.NodeOp.String()
		switch evt.NodeOp {
		case event.Start:
			err = r.fm.StartNode(ctx, r.node(evt.Node))
		case event.Stop:
			err = r.fm.StopNode(ctx, evt.Node)
		case event.Kill:
			err = r.fm.KillNode(ctx, evt.Node)
		case event.Restart:
			err = r.fm.RestartNode(ctx, r.node(evt.Node))
		}
	case event.NetworkOperation:
		action = evt.NetworkOp.String()
		switch evt.NetworkOp {
		case event.Partition:
			err = r.fm.NetworkPartition(ctx, evt.Partitions)
		case event.RemovePartition:
			err = r.fm.RemoveNetworkPartition(ctx)
		}
	case event.ClockDrift:
		err = r.fm.ClockDrift(ctx, evt.Node, evt.Offset)
	case event.Workload:
		err = r.fm.RunCommandInNode(ctx, evt.Node, evt.Command)
	default:
		err = fmt.Errorf("runner: %v is not an external event", evt)
	}
	r.record(evt.Name, action, evt.Node, err)
	if err == nil {
		r.logger.Info("external event executed", "event", evt.Name, "action", action)
	}
	return err
}

func (r *Runner) record(evt, action, node string, err error) {
	rec := Record{Time: time.Now(), Event: evt, Action: action, Node: node, Err: err}
	select {
	case r.records <- rec:
	default:
		r.logger.Warn("record buffer full, dropping record", "record", rec.String())
	}
}

// Stop everything. Runs on the command loop.
func (r *Runner) stop(ctx context.Context) error {
	r.cancel()
	r.closeDone()

	var errs []error
	for _, name := range r.fm.Running() {
		err := r.fm.StopNode(ctx, name)
		r.record("", "stop", name, err)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.httpSrv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("runner: shut down coordinator: %w", err))
	}
	if r.grpcSrv != nil {
		r.grpcSrv.Stop()
	}
	r.logger.Info("run stopped")
	return errors.Join(errs...)
}

// Check that the run is running and that node is part of the deployment
func (r *Runner) check(node string) error {
	r.mu.Lock()
	s := r.state
	r.mu.Unlock()
	switch s {
	case idle:
		return ErrNotStarted
	case stopped:
		return ErrStopped
	}
	if _, ok := r.deployment.Node(node); !ok {
		return fmt.Errorf("%w: %v", ErrUnknownNode, node)
	}
	return nil
}

// Gracefully stop a node.
func (r *Runner) StopNode(ctx context.Context, node string) error {
	if err := r.check(node); err != nil {
		return err
	}
	return r.do(stopNodeCmd{ctx: ctx, Node: node})
}

// Kill a node without giving it a chance to clean up.
func (r *Runner) KillNode(ctx context.Context, node string) error {
	if err := r.check(node); err != nil {
		return err
	}
	return r.do(killNodeCmd{ctx: ctx, Node: node})
}

// Restart a node that has been started before.
func (r *Runner) RestartNode(ctx context.Context, node string) error {
	if err := r.check(node); err != nil {
		return err
	}
	return r.do(restartNodeCmd{ctx: ctx, Node: node})
}

// Stop the run.
//
// Stops firing external events, stops all running nodes and shuts down the coordinator.
// Stopping a run that has already been stopped does nothing.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case idle:
		r.mu.Unlock()
		return ErrNotStarted
	case stopped:
		r.mu.Unlock()
		return nil
	}
	r.state = stopped
	r.mu.Unlock()

	err := r.do(stopCmd{ctx: ctx})
	if errors.Is(err, ErrStopped) {
		// Start failed and tore everything down while Stop was waiting
		err = nil
	}
	r.loops.Wait()
	r.closeRecords()
	return err
}

func (r *Runner) closeDone() {
	r.doneOnce.Do(func() { close(r.done) })
}

func (r *Runner) closeRecords() {
	r.recordsOnce.Do(func() { close(r.records) })
}
