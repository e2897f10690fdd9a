// Package shutdown runs cleanup hooks when the process is asked to stop.
//
// Hooks run once, newest first, under a shared deadline:
//
//	h := shutdown.NewHandler(10 * time.Second)
//	h.OnShutdown(stopAutosave)
//	h.OnShutdown(stopMetricsServer)
//	sig, err := h.Wait(ctx) // SIGINT, SIGTERM or ctx cancellation
//
// A process killed outright runs no hooks; whatever it leaves on disk is
// picked up by crash recovery on the next start.
package shutdown
