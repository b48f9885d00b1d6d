// Package logx configures remindd's structured logging.
//
// A thin wrapper (logx.Logger) over zerolog that keeps:
//   - Console output readable (short timestamp + file:line caller)
//   - File output JSON-structured, one event per line
//   - Sinks swappable at runtime through Service.Apply (config hot reload)
package logx
