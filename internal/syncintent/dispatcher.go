// Package syncintent delivers queued sync intents to the rating-system sync
// workflow. Intents are written by the renewal service in the same write as
// the decision that caused them; this package only drains them.
package syncintent

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/tcdsagency/renewals/internal/model"
)

// Dispatcher starts the downstream work for one intent. Dispatching the same
// intent twice must not start a second run.
type Dispatcher interface {
	Dispatch(ctx context.Context, intent model.SyncIntent) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, intent model.SyncIntent) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, intent model.SyncIntent) error {
	return f(ctx, intent)
}

// TemporalConfig names the workflow that consumes reshop intents.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
	Workflow  string `yaml:"workflow" mapstructure:"workflow"`
}

// ReshopInput is the workflow argument for a rating_reshop intent.
type ReshopInput struct {
	IntentID     string `json:"intent_id"`
	RecordID     string `json:"record_id"`
	TenantID     string `json:"tenant_id"`
	PolicyNumber string `json:"policy_number"`
}

// TemporalDispatcher starts one workflow per intent. Workflow ids are derived
// from the record so a redelivered intent attaches to the existing run.
type TemporalDispatcher struct {
	client client.Client
	cfg    TemporalConfig
	log    *zap.Logger
}

// NewTemporalDispatcher wraps a connected Temporal client.
func NewTemporalDispatcher(c client.Client, cfg TemporalConfig) *TemporalDispatcher {
	return &TemporalDispatcher{
		client: c,
		cfg:    cfg,
		log:    zap.L().With(zap.String("component", "syncintent.temporal")),
	}
}

// Dial connects to the Temporal frontend.
func Dial(cfg TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    newTemporalLogger(zap.L()),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "syncintent: dial temporal %s", cfg.HostPort)
	}
	return c, nil
}

// WorkflowID is the deterministic workflow id for an intent.
func WorkflowID(intent model.SyncIntent) string {
	switch intent.Kind {
	case model.SyncRatingReshop:
		return "reshop-" + intent.RecordID
	default:
		return string(intent.Kind) + "-" + intent.RecordID
	}
}

func (d *TemporalDispatcher) Dispatch(ctx context.Context, intent model.SyncIntent) error {
	if intent.Kind != model.SyncRatingReshop {
		return eris.Errorf("syncintent: unsupported intent kind %q", intent.Kind)
	}
	opts := client.StartWorkflowOptions{
		ID:        WorkflowID(intent),
		TaskQueue: d.cfg.TaskQueue,
	}
	input := ReshopInput{
		IntentID:     intent.ID,
		RecordID:     intent.RecordID,
		TenantID:     intent.TenantID,
		PolicyNumber: intent.PolicyNumber,
	}

	run, err := d.client.ExecuteWorkflow(ctx, opts, d.cfg.Workflow, input)
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		d.log.Info("workflow already started", zap.String("workflow_id", opts.ID))
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "syncintent: start workflow %s", opts.ID)
	}
	d.log.Info("workflow started",
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
		zap.String("policy_number", intent.PolicyNumber),
	)
	return nil
}

// temporalLogger routes SDK logs through zap.
type temporalLogger struct {
	s *zap.SugaredLogger
}

func newTemporalLogger(l *zap.Logger) *temporalLogger {
	return &temporalLogger{s: l.With(zap.String("component", "temporal")).Sugar()}
}

func (l *temporalLogger) Debug(msg string, keyvals ...any) { l.s.Debugw(msg, keyvals...) }
func (l *temporalLogger) Info(msg string, keyvals ...any)  { l.s.Infow(msg, keyvals...) }
func (l *temporalLogger) Warn(msg string, keyvals ...any)  { l.s.Warnw(msg, keyvals...) }
func (l *temporalLogger) Error(msg string, keyvals ...any) { l.s.Errorw(msg, keyvals...) }
