// Package server hosts the Fiber HTTP service and its middleware chain, and
// assembles the tile components (disk store, refresh queue, downloader,
// refresh runner) that the binary shares between request serving and batch
// refresh. The router hands every non-diagnostics path to a single tile
// handler; admin surfaces register themselves under the /-/ prefix. Keep
// exports narrow and accept explicit dependencies so tests can inject fakes.
package server
