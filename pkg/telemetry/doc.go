// Package telemetry provides OpenTelemetry metric instruments for workflow
// task execution and model dispatch. Instruments are created lazily against
// the global meter provider so callers never pay for telemetry they have not
// wired up.
package telemetry
