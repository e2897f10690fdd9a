// Package connection talks to the status server of a running snapkeep watch.
package connection
