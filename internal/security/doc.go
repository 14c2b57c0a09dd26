// Package security summarises the security posture of a daemon configuration
// so operators can review it at startup or with forwarderd --report.
//
// # What this package must NOT do
//
//   - Import goForwarder. The daemon copies the relevant settings into
//     [ReportInput].
//   - Include key material in a report.
package security
