// Package output renders CLI results as a table, JSON or YAML.
//
// Structs are rendered through their json tags. A `table:"wide"` tag hides
// a column unless wide mode is on and `table:"-"` always hides it.
package output
