/*
Package application is a library for building compatible treesync
clients and servers.

application implements the server- and client-side application-layer
components shared by the sync store server and its clients.

Encoding

This module implements the message encoding and decoding for client-server
communications. Currently this module only supports JSON encoding.

Logger

This module implements a generic logging system that can be used by any
treesync application/executable.

Metrics

This module defines the metrics a server records, with a Prometheus
implementation and a no-op one.

ServerBase

This module provides an API for implementing the server-side network
layer: listening on TCP (TLS) and Unix sockets, per-address request
permissions, sealing blocks on a timer, and hot-reloading.
*/
package application
