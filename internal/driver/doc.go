// Package driver sequences prepare runs: it plans one job per resolution (or
// a single job for an explicit interval), builds each job's configuration and
// walks the runner through its fixed lifecycle.
package driver
