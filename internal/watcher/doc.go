// Package watcher provides real-time filesystem watching with debouncing,
// gitignore-aware filtering, and per-project incremental index dispatch.
//
// The package implements a hybrid watching strategy per registered
// workspace folder:
//   - Primary: fsnotify for efficient event-based watching
//   - Fallback: polling for environments where fsnotify fails (network
//     mounts, some container filesystems)
//
// Raw events are debounced to coalesce rapid changes from IDEs and git
// operations (default: 500ms of inactivity, 5s hard ceiling), filtered
// against .gitignore patterns, then grouped by owning project into a
// compact change set and dispatched to an incremental indexing job.
// A change set arriving while a project's job is already running merges
// into one follow-up run instead of starting a second one.
//
// Usage:
//
//	mgr := watcher.NewManager(watcher.DefaultOptions(), executor.IndexProjectIncremental, bus)
//	if err := mgr.Watch(ctx, workspacePath); err != nil {
//	    return err
//	}
//	defer mgr.StopAll()
package watcher
