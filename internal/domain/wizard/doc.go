// Package wizard drives the step-by-step launch configuration.
//
// Steps are derived from the pending config: machine type, server version,
// world source, then either choose-backup or world-name and
// configure-world. Focus may only move back to a step already reached;
// NextStep advances one at a time. Reconfiguring a running server uses the
// same plan and differs only in what Submit calls.
package wizard
