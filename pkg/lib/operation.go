package lib

import (
	"context"
	"fmt"

	"github.com/slok/opstrack/internal/app/operation"
	"github.com/slok/opstrack/internal/model"
	"github.com/slok/opstrack/internal/task"
)

// RunOpts are the options of an operation.
type RunOpts struct {
	// Backups are the target backups. Backup takes none, bulk delete one or more and
	// the rest exactly one.
	Backups []string
	// Params are merged on top of the configured default payload parameters.
	Params map[string]any
}

// Operation is a started operation being tracked in the background.
type Operation struct {
	TaskID    string
	Operation OperationType

	handle *task.Handle
}

// Done is closed when the operation is terminated.
func (o *Operation) Done() <-chan struct{} { return o.handle.Done() }

// Wait blocks until the operation is terminated. A terminated task is returned even
// when it didn't succeed, in that case the error is [ErrTaskFailed].
func (o *Operation) Wait(ctx context.Context) (*Task, error) {
	t, err := o.handle.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	res := fromInternalTask(t)
	return &res, mapTaskError(err)
}

// Start launches an operation and returns once the server accepted it. The operation is
// tracked until it ends or ctx is cancelled.
func (c *Client) Start(ctx context.Context, op OperationType, opts RunOpts) (*Operation, error) {
	resp, err := c.operation.Run(ctx, operation.Request{
		Operation: toInternalOperation(op),
		Backups:   opts.Backups,
		Params:    opts.Params,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return &Operation{TaskID: resp.TaskID, Operation: op, handle: resp.Handle}, nil
}

// Run launches an operation and waits until it ends.
func (c *Client) Run(ctx context.Context, op OperationType, opts RunOpts) (*Task, error) {
	o, err := c.Start(ctx, op, opts)
	if err != nil {
		return nil, err
	}
	return o.Wait(ctx)
}

// Backup creates a new backup and waits until it ends.
func (c *Client) Backup(ctx context.Context, opts RunOpts) (*Task, error) {
	return c.Run(ctx, OperationBackup, opts)
}

// Restore restores a backup and waits until it ends.
func (c *Client) Restore(ctx context.Context, backup string, params map[string]any) (*Task, error) {
	return c.Run(ctx, OperationRestore, RunOpts{Backups: []string{backup}, Params: params})
}

// Verify verifies a backup and waits until it ends.
func (c *Client) Verify(ctx context.Context, backup string, params map[string]any) (*Task, error) {
	return c.Run(ctx, OperationVerify, RunOpts{Backups: []string{backup}, Params: params})
}

// Delete deletes a backup and waits until it ends.
func (c *Client) Delete(ctx context.Context, backup string) (*Task, error) {
	return c.Run(ctx, OperationDelete, RunOpts{Backups: []string{backup}})
}

// BulkDelete deletes multiple backups in a single operation and waits until it ends.
func (c *Client) BulkDelete(ctx context.Context, backups []string) (*Task, error) {
	return c.Run(ctx, OperationBulkDelete, RunOpts{Backups: backups})
}

// DryRun simulates a restore and waits until it ends.
func (c *Client) DryRun(ctx context.Context, backup string) (*Task, error) {
	return c.Run(ctx, OperationDryRun, RunOpts{Backups: []string{backup}})
}

// OnComplete registers a function called after every successful operation of the type.
// It replaces any previous function of the same type.
func (c *Client) OnComplete(op OperationType, fn func(ctx context.Context, t Task)) error {
	iop := toInternalOperation(op)
	if err := iop.Validate(); err != nil {
		return mapError(fmt.Errorf("invalid operation: %w", err))
	}

	c.manager.OnComplete(iop, func(ctx context.Context, t model.Task) {
		fn(ctx, fromInternalTask(t))
	})
	return nil
}

func toInternalOperation(op OperationType) model.OperationType {
	return model.OperationType(op)
}
