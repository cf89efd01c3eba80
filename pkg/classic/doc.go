// Package classic implements ClassicV1, a flat membership protocol on top of
// the p2p engine.
//
// Four message types are registered: JOIN announces a node and is answered
// with a JOIN response on a new connection, LIST exchanges registries on a
// single connection, QUIT announces departure and MESG carries user text.
// Every payload is a JSON Body naming the direction and the sender.
//
// Peers are found by address (host:port or multiaddr) or through DNS TXT
// records, one "address:port" per record.
package classic
