package protocol

// Version is the version of the treesync protocol.
const Version = "1.0"
