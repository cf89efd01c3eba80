// Package discovery finds peer addresses for the join sequence.
//
// Peers may be given directly ("host:port" or a multiaddr such as
// /ip4/10.0.0.2/tcp/9000) or published as DNS TXT records, one
// "address:port" per record:
//
//	peers.example.org.  300  IN  TXT  "10.0.0.2:9000"
//	peers.example.org.  300  IN  TXT  "10.0.0.3:9000"
//
// A domain without TXT records is an operator error and is reported as
// *NoAnswerError rather than an empty result.
package discovery
