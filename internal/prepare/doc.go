// Package prepare is the default runner behind the run driver. It loads the
// segment FASTA files named by a Config, applies the filter chain, reconciles
// segments, subsamples, attaches colors and lat/longs, and writes one JSON
// artifact per run.
package prepare
