// Package lib provides a Go SDK to launch and track admin server backup operations
// programmatically.
//
// It runs the same task tracking stack as the opstrack CLI: operations are launched,
// polled until they end and their server logs are streamed without duplicates.
//
// # Quick Start
//
//	client, err := lib.New(ctx, lib.Config{ServerURL: "http://127.0.0.1:8080"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Create a backup and wait for it.
//	task, err := client.Backup(ctx, lib.RunOpts{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(task.ResultMessage)
//
// # Tracking in the background
//
// [Client.Start] returns as soon as the server accepted the operation. Use
// [Operation.Wait] to wait for it later:
//
//	op, err := client.Start(ctx, lib.OperationVerify, lib.RunOpts{Backups: []string{"nightly-01"}})
//	if err != nil {
//	    return err
//	}
//	task, err := op.Wait(ctx)
//
// Only one operation of each type can be tracked at the same time, starting a second one
// returns [ErrOperationInProgress].
//
// # Progress
//
// Set [Config].Progress to receive the operation log lines as they arrive. Lines are
// written as JSON events, one per line.
//
// # Errors
//
// Errors can be checked with [errors.Is] against the sentinels of this package:
// [ErrNotFound], [ErrNotValid], [ErrOperationInProgress], [ErrLaunchFailed] and
// [ErrTaskFailed].
package lib
