/*
Package agent runs the operator's single-threaded event loop.

Relation lifecycle events arrive as JSON files dropped into a spool directory
by the transport shim, named by zero-padded sequence number. The agent watches
the directory, dequeues events strictly in sequence order, and handles each one
start to finish: handler dispatch, a full reconciliation pass, status
recomputation, then a durable record of the handled sequence and removal of the
spool file.

Nothing in the loop is concurrent and nothing suspends mid-pass, so no locking
discipline is needed around the fact store or the daemon configuration on disk.
Crash recovery falls out of the same structure: events whose files were not yet
removed are replayed on restart, and the sequence record plus idempotent daemon
operations make the replay harmless.
*/
package agent
