// Package model contains the data types shared by the acquisition pipeline:
// fronts, resolver entries, releases, install results, pipeline events and
// the logger interface every component accepts.
package model
