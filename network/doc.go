// Package network implements the TCP/UDP transport of the monitor.
//
// A Server accepts editor connections on the session port. Each connection becomes a
// Session that performs the handshake, registers itself with the arbiter.Arbiter and then
// forwards configuration frames as events. At most one session is active at a time; a
// forced handshake supersedes the active one.
//
// Next to the server run three helpers:
//
//   - Heartbeat connects back to the active editor and writes a Heartbeat frame every
//     interval. Without an editor it counts idle time and switches the display off.
//   - Discovery answers editor broadcasts by connecting to the editor's reply port.
//   - Advertiser publishes the session port over mDNS.
//
// Server.Run starts all of them:
//
//	cfg, err := network.NewConfig(network.WithAdvertise(true, ""))
//	if err != nil {
//		return err
//	}
//	srv := network.NewServer(cfg, arbiter.New(), core, power, platform.SystemResolver{})
//	return srv.Run(ctx)
package network
