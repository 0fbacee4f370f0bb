// Package event carries collector notifications to interested components
// without direct dependencies between them.
//
// The collector publishes one event per collected, conflicting or failed
// message body and one per completed pass. The run command subscribes to
// print a summary line per pass.
package event
